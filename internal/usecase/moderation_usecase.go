package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/knadh/koanf/v2"
	"go.uber.org/zap"

	"github.com/relkin/staffportal/internal/constant"
	"github.com/relkin/staffportal/internal/discord"
	"github.com/relkin/staffportal/internal/model"
	"github.com/relkin/staffportal/internal/perm"
	"github.com/relkin/staffportal/internal/relay"
	"github.com/relkin/staffportal/internal/repository"
)

type ModerationUsecase struct {
	ModerationRepository *repository.ModerationRepository
	UserRepository       *repository.UserRepository
	Discord              *discord.Client
	Perm                 *perm.Table
	Hub                  *relay.Hub
	Log                  *zap.Logger
	Config               *koanf.Koanf
}

func NewModerationUsecase(moderationRepository *repository.ModerationRepository, userRepository *repository.UserRepository, discordClient *discord.Client, permTable *perm.Table, hub *relay.Hub, zap *zap.Logger, koanf *koanf.Koanf) *ModerationUsecase {
	return &ModerationUsecase{
		ModerationRepository: moderationRepository,
		UserRepository:       userRepository,
		Discord:              discordClient,
		Perm:                 permTable,
		Hub:                  hub,
		Log:                  zap,
		Config:               koanf,
	}
}

// Roles returns a user's current guild roles, consulting the cache before
// the Discord API. A user with no roles holds no authority at all.
func (usecase *ModerationUsecase) Roles(ctx context.Context, userId string) ([]string, error) {
	roles, found, err := usecase.UserRepository.GetRolesInCache(ctx, userId)
	if err != nil {
		usecase.Log.Warn("role cache read failed", zap.String("userId", userId), zap.Error(err))
	}
	if found {
		return roles, nil
	}

	member, err := usecase.Discord.GuildMember(ctx, userId)
	if err != nil {
		return nil, err
	}

	err = usecase.UserRepository.SetRolesInCache(ctx, userId, member.Roles)
	if err != nil {
		usecase.Log.Warn("role cache write failed", zap.String("userId", userId), zap.Error(err))
	}

	return member.Roles, nil
}

// Authorize re-derives the staff member's roles and checks the capability.
// Roles are never trusted from the caller; a failed Discord lookup denies.
func (usecase *ModerationUsecase) Authorize(ctx context.Context, staffId string, capability string) error {
	roles, err := usecase.Roles(ctx, staffId)
	if err != nil {
		usecase.Log.Warn("role derivation failed, denying action",
			zap.String("staffId", staffId),
			zap.String("capability", capability),
			zap.Error(err))
		return relay.ErrUnauthorized
	}

	if !usecase.Perm.Authorized(roles, capability) {
		return relay.ErrUnauthorized
	}

	return nil
}

func (usecase *ModerationUsecase) Warn(ctx context.Context, staffId string, playerId string, reason string) error {
	record, err := usecase.prepare(ctx, staffId, playerId, reason, constant.CapWarn)
	if err != nil {
		return err
	}

	err = usecase.ModerationRepository.AddRecord(ctx, repository.TableWarnings, record)
	if err != nil {
		return err
	}

	usecase.Hub.WarnPlayer(playerId, reason)
	usecase.notify(ctx, "Warning", record, "")

	return nil
}

func (usecase *ModerationUsecase) Kick(ctx context.Context, staffId string, playerId string, reason string) error {
	record, err := usecase.prepare(ctx, staffId, playerId, reason, constant.CapKick)
	if err != nil {
		return err
	}

	err = usecase.ModerationRepository.AddRecord(ctx, repository.TableKicks, record)
	if err != nil {
		return err
	}

	usecase.Hub.KickPlayer(playerId, reason)
	usecase.notify(ctx, "Kick", record, "")

	return nil
}

// Ban persists a ban and drops the player everywhere. A zero length is a
// permanent ban and demands its own capability; timed and permanent bans
// are never interchangeable.
func (usecase *ModerationUsecase) Ban(ctx context.Context, staffId string, playerId string, reason string, lengthHours int) error {
	if lengthHours < 0 {
		return &model.ValidationError{
			Code:    constant.ERR_VALIDATION_CODE,
			Message: "Ban length must not be negative",
			Param:   "length",
		}
	}

	record, err := usecase.prepare(ctx, staffId, playerId, reason, perm.BanCapability(lengthHours))
	if err != nil {
		return err
	}

	ban := model.BanItem{ModerationItem: record, Length: lengthHours}
	err = usecase.ModerationRepository.AddBan(ctx, ban)
	if err != nil {
		return err
	}

	usecase.Hub.BanPlayer(playerId, reason)

	length := "Permanent"
	if lengthHours > 0 {
		length = fmt.Sprintf("%d hours", lengthHours)
	}
	usecase.notify(ctx, "Ban", record, length)

	return nil
}

func (usecase *ModerationUsecase) Commend(ctx context.Context, staffId string, playerId string, reason string) error {
	record, err := usecase.prepare(ctx, staffId, playerId, reason, constant.CapCommend)
	if err != nil {
		return err
	}

	return usecase.ModerationRepository.AddRecord(ctx, repository.TableCommends, record)
}

func (usecase *ModerationUsecase) Note(ctx context.Context, staffId string, playerId string, reason string) error {
	record, err := usecase.prepare(ctx, staffId, playerId, reason, constant.CapNote)
	if err != nil {
		return err
	}

	return usecase.ModerationRepository.AddRecord(ctx, repository.TableNotes, record)
}

func (usecase *ModerationUsecase) RemoveWarn(ctx context.Context, staffId string, recordId int) error {
	err := usecase.Authorize(ctx, staffId, constant.CapRemoveWarn)
	if err != nil {
		return err
	}
	return usecase.ModerationRepository.RemoveRecord(ctx, repository.TableWarnings, recordId)
}

func (usecase *ModerationUsecase) RemoveKick(ctx context.Context, staffId string, recordId int) error {
	err := usecase.Authorize(ctx, staffId, constant.CapRemoveKick)
	if err != nil {
		return err
	}
	return usecase.ModerationRepository.RemoveRecord(ctx, repository.TableKicks, recordId)
}

func (usecase *ModerationUsecase) RemoveBan(ctx context.Context, staffId string, recordId int) error {
	err := usecase.Authorize(ctx, staffId, constant.CapRemoveBan)
	if err != nil {
		return err
	}
	return usecase.ModerationRepository.RemoveBan(ctx, recordId)
}

func (usecase *ModerationUsecase) RemoveCommend(ctx context.Context, staffId string, recordId int) error {
	err := usecase.Authorize(ctx, staffId, constant.CapRemoveCommend)
	if err != nil {
		return err
	}
	return usecase.ModerationRepository.RemoveRecord(ctx, repository.TableCommends, recordId)
}

func (usecase *ModerationUsecase) RemoveNote(ctx context.Context, staffId string, recordId int) error {
	err := usecase.Authorize(ctx, staffId, constant.CapRemoveNote)
	if err != nil {
		return err
	}
	return usecase.ModerationRepository.RemoveRecord(ctx, repository.TableNotes, recordId)
}

// CheckBan scans a player's bans and reports the first one still in force.
func (usecase *ModerationUsecase) CheckBan(ctx context.Context, playerId string) (model.BanStatus, error) {
	bans, err := usecase.ModerationRepository.GetBansByPlayer(ctx, playerId)
	if err != nil {
		return model.BanStatus{}, err
	}

	now := time.Now().UTC()
	for _, ban := range bans {
		if !ban.Active(now) {
			continue
		}
		status := model.BanStatus{Banned: true, Reason: ban.Reason}
		if ban.Length > 0 {
			expiry := ban.Expiry()
			status.Expiry = &expiry
		}
		return status, nil
	}

	return model.BanStatus{}, nil
}

// AceGroups lists the permission groups an identity's roles grant, in role
// table order.
func (usecase *ModerationUsecase) AceGroups(ctx context.Context, userId string) ([]string, error) {
	roles, err := usecase.Roles(ctx, userId)
	if err != nil {
		return nil, err
	}

	return usecase.Perm.AceGroups(roles), nil
}

// StaffStats aggregates the punishments one staff member issued, with
// weekly and monthly totals and a twelve month activity histogram.
func (usecase *ModerationUsecase) StaffStats(ctx context.Context, staffId string) (model.StaffStatsResponse, error) {
	response := model.StaffStatsResponse{}

	staff, err := usecase.UserRepository.GetUserInfo(ctx, staffId)
	if err != nil {
		return response, err
	}

	warnings, err := usecase.ModerationRepository.GetRecordsByStaff(ctx, repository.TableWarnings, staffId)
	if err != nil {
		return response, err
	}

	kicks, err := usecase.ModerationRepository.GetRecordsByStaff(ctx, repository.TableKicks, staffId)
	if err != nil {
		return response, err
	}

	bans, err := usecase.ModerationRepository.GetBansByStaff(ctx, staffId)
	if err != nil {
		return response, err
	}

	commends, err := usecase.ModerationRepository.GetRecordsByStaff(ctx, repository.TableCommends, staffId)
	if err != nil {
		return response, err
	}

	now := time.Now().UTC()
	week := now.AddDate(0, 0, -7)
	month := now.AddDate(0, -1, 0)

	response = model.StaffStatsResponse{
		Username:   staff.Username,
		Warnings:   warnings,
		Kicks:      kicks,
		Bans:       bans,
		Commends:   commends,
		TotalWarns: len(warnings),
		TotalKicks: len(kicks),
		TotalBans:  len(bans),
		PerMonth:   make([]int, 12),
	}

	for _, record := range warnings {
		if record.Date.After(week) {
			response.TotalWarnsWeek++
		}
		if record.Date.After(month) {
			response.TotalWarnsMonth++
		}
		bucketMonth(response.PerMonth, now, record.Date)
	}
	for _, record := range kicks {
		if record.Date.After(week) {
			response.TotalKicksWeek++
		}
		if record.Date.After(month) {
			response.TotalKicksMonth++
		}
		bucketMonth(response.PerMonth, now, record.Date)
	}
	for _, ban := range bans {
		if ban.Date.After(week) {
			response.TotalBansWeek++
		}
		if ban.Date.After(month) {
			response.TotalBansMonth++
		}
		bucketMonth(response.PerMonth, now, ban.Date)
	}

	return response, nil
}

// prepare authorizes the staff member and builds the record shell shared
// by every moderation table.
func (usecase *ModerationUsecase) prepare(ctx context.Context, staffId string, playerId string, reason string, capability string) (model.ModerationItem, error) {
	record := model.ModerationItem{}

	if reason == "" {
		return record, &model.ValidationError{
			Code:    constant.ERR_VALIDATION_CODE,
			Message: "Reason is required to not be empty",
			Param:   "reason",
		}
	}

	err := usecase.Authorize(ctx, staffId, capability)
	if err != nil {
		return record, err
	}

	staff, err := usecase.UserRepository.GetUserInfo(ctx, staffId)
	if err != nil {
		return record, err
	}

	player, err := usecase.UserRepository.GetUserInfo(ctx, playerId)
	if err != nil {
		return record, err
	}

	playerName := player.IngameName
	if playerName == "" {
		playerName = player.Username
	}

	return model.ModerationItem{
		Id:         playerId,
		Staff:      staffId,
		StaffName:  staff.Username,
		PlayerName: playerName,
		Reason:     reason,
		Date:       time.Now().UTC(),
	}, nil
}

// notify posts the action to the staff Discord channel. Best effort.
func (usecase *ModerationUsecase) notify(ctx context.Context, action string, record model.ModerationItem, length string) {
	fields := []model.WebhookEmbedField{
		{Name: "Player", Value: record.PlayerName},
		{Name: "Staff", Value: record.StaffName},
		{Name: "Reason", Value: record.Reason},
	}
	if length != "" {
		fields = append(fields, model.WebhookEmbedField{Name: "Length", Value: length})
	}

	message := model.WebhookMessage{
		Embeds: []model.WebhookEmbed{{
			Title:       action,
			Description: fmt.Sprintf("%s issued to %s", action, record.PlayerName),
			Fields:      fields,
		}},
	}

	err := usecase.Discord.PostWebhook(ctx, message)
	if err != nil {
		usecase.Log.Warn("webhook notification failed", zap.String("action", action), zap.Error(err))
	}
}

func bucketMonth(buckets []int, now time.Time, date time.Time) {
	months := int(now.Month()) - int(date.Month()) + 12*(now.Year()-date.Year())
	if months >= 0 && months < len(buckets) {
		buckets[months]++
	}
}
