package usecase

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/knadh/koanf/v2"
	"go.uber.org/zap"

	"github.com/relkin/staffportal/internal/constant"
	"github.com/relkin/staffportal/internal/discord"
	"github.com/relkin/staffportal/internal/model"
	"github.com/relkin/staffportal/internal/repository"
	"github.com/relkin/staffportal/internal/trust"
	"github.com/relkin/staffportal/internal/util"
	"github.com/relkin/staffportal/pkg/identity"
)

type UserUsecase struct {
	UserRepository       *repository.UserRepository
	ModerationRepository *repository.ModerationRepository
	Discord              *discord.Client
	Trust                *trust.Engine
	DB                   *pgxpool.Pool
	Log                  *zap.Logger
	Config               *koanf.Koanf
}

func NewUserUsecase(userRepository *repository.UserRepository, moderationRepository *repository.ModerationRepository, discordClient *discord.Client, trustEngine *trust.Engine, db *pgxpool.Pool, zap *zap.Logger, koanf *koanf.Koanf) *UserUsecase {
	return &UserUsecase{
		UserRepository:       userRepository,
		ModerationRepository: moderationRepository,
		Discord:              discordClient,
		Trust:                trustEngine,
		DB:                   db,
		Log:                  zap,
		Config:               koanf,
	}
}

// Login trades a Discord OAuth code for a portal session. The user record
// is upserted on every login so username and avatar stay current.
func (usecase *UserUsecase) Login(ctx *fiber.Ctx, payload model.UserLoginRequest) (model.TokenResponse, error) {
	ctxContext := ctx.Context()
	token := model.TokenResponse{}

	if payload.Code == "" {
		return token, &model.ValidationError{
			Code:    constant.ERR_VALIDATION_CODE,
			Message: "Authorization code is required to not be empty",
			Param:   "code",
		}
	}

	oauthToken, err := usecase.Discord.ExchangeCode(ctxContext, payload.Code)
	if err != nil {
		usecase.Log.Warn("discord code exchange failed", zap.Error(err))
		return token, &model.ValidationError{
			Code:    constant.ERR_UNATHORIZED_ERROR,
			Message: "Authorization code is invalid or expired",
			Param:   "code",
		}
	}

	discordUser, err := usecase.Discord.Me(ctxContext, oauthToken.AccessToken)
	if err != nil {
		return token, err
	}

	existing, err := usecase.UserRepository.GetUserInfo(ctxContext, discordUser.Id)
	user := model.User{
		Id:            discordUser.Id,
		Username:      discordUser.Username,
		Discriminator: discordUser.Discriminator,
		Avatar:        discordUser.Avatar,
		CreateDate:    time.Now().UTC(),
	}
	if err == nil {
		user.IngameName = existing.IngameName
		user.Identifiers = existing.Identifiers
		user.Playtime = existing.Playtime
		user.CreateDate = existing.CreateDate
	}

	err = usecase.UserRepository.UpsertNoTx(ctxContext, user)
	if err != nil {
		return token, err
	}

	// warm the role cache so the first privileged action does not block
	// on the Discord API
	member, err := usecase.Discord.GuildMember(ctxContext, discordUser.Id)
	if err != nil {
		usecase.Log.Warn("guild member lookup failed on login", zap.String("userId", discordUser.Id), zap.Error(err))
	} else {
		err = usecase.UserRepository.SetRolesInCache(ctxContext, discordUser.Id, member.Roles)
		if err != nil {
			usecase.Log.Warn("role cache write failed", zap.String("userId", discordUser.Id), zap.Error(err))
		}
	}

	token, err = util.GenerateTokenPair(discordUser.Id, usecase.Config.String("JWT_SECRET_KEY"))
	if err != nil {
		return token, err
	}

	err = usecase.UserRepository.SetAuthTokenInCache(ctxContext, token.AccessToken, token.RefreshToken, discordUser.Id)
	if err != nil {
		return token, err
	}

	return token, nil
}

func (usecase *UserUsecase) GetAccessToken(ctx *fiber.Ctx, userId string, accessToken string) error {
	hashedTokenFromCache, err := usecase.UserRepository.GetAccessTokenInCache(ctx.Context(), userId)
	if err != nil {
		return err
	}

	// Hash the token from client before comparing with cached hash
	hashedTokenFromClient := util.HashToken(accessToken)

	if hashedTokenFromClient != hashedTokenFromCache {
		return &model.ValidationError{
			Code:    constant.ERR_NOT_FOUND_ERROR,
			Message: "Authorization token is expired",
			Param:   "accessToken",
		}
	}

	return nil
}

func (usecase *UserUsecase) Logout(ctx *fiber.Ctx, userId string) error {
	return usecase.UserRepository.RemoveAuthToken(ctx.Context(), userId)
}

// GetProfile assembles the dashboard home payload: the user's own record,
// their moderation history and the derived trust data.
func (usecase *UserUsecase) GetProfile(ctx *fiber.Ctx, userId string) (model.ProfileResponse, error) {
	ctxContext := ctx.Context()
	response := model.ProfileResponse{}

	user, err := usecase.UserRepository.GetUserInfo(ctxContext, userId)
	if err != nil {
		return response, err
	}

	warnings, err := usecase.ModerationRepository.GetRecordsByPlayer(ctxContext, repository.TableWarnings, userId)
	if err != nil {
		return response, err
	}

	kicks, err := usecase.ModerationRepository.GetRecordsByPlayer(ctxContext, repository.TableKicks, userId)
	if err != nil {
		return response, err
	}

	bans, err := usecase.ModerationRepository.GetBansByPlayer(ctxContext, userId)
	if err != nil {
		return response, err
	}

	commends, err := usecase.ModerationRepository.GetRecordsByPlayer(ctxContext, repository.TableCommends, userId)
	if err != nil {
		return response, err
	}

	response = model.ProfileResponse{
		Id:            user.Id,
		Username:      user.Username,
		Discriminator: user.Discriminator,
		Avatar:        user.Avatar,
		Playtime:      trust.FormatPlaytime(user.Playtime),
		Trustscore:    usecase.Trust.Score(user.Playtime, len(commends)),
		Warnings:      warnings,
		Kicks:         kicks,
		Bans:          bans,
		Commends:      commends,
	}

	return response, nil
}

// AddUser upserts a joining player's record from the relay. IP-derived
// identifiers are dropped before storage; only shareable ones persist.
func (usecase *UserUsecase) AddUser(ctx context.Context, req model.AddUserRequest) error {
	if req.Id == "" {
		return &model.ValidationError{
			Code:    constant.ERR_VALIDATION_CODE,
			Message: "Player id is required to not be empty",
			Param:   "id",
		}
	}

	user := model.User{
		Id:          req.Id,
		IngameName:  req.Name,
		Identifiers: identity.FilterShareable(req.Identifiers),
		CreateDate:  time.Now().UTC(),
	}

	existing, err := usecase.UserRepository.GetUserInfo(ctx, req.Id)
	if err == nil {
		user.Username = existing.Username
		user.Discriminator = existing.Discriminator
		user.Avatar = existing.Avatar
		user.Playtime = existing.Playtime
		user.CreateDate = existing.CreateDate
	} else {
		// first sighting, pull the profile so the dashboard has a name
		discordUser, err := usecase.Discord.User(ctx, req.Id)
		if err != nil {
			usecase.Log.Warn("discord profile lookup failed for new player", zap.String("id", req.Id), zap.Error(err))
		} else {
			user.Username = discordUser.Username
			user.Discriminator = discordUser.Discriminator
			user.Avatar = discordUser.Avatar
		}
	}

	return usecase.UserRepository.UpsertNoTx(ctx, user)
}

// ListPlayers is the staff players page: every known player with
// formatted playtime.
func (usecase *UserUsecase) ListPlayers(ctx *fiber.Ctx) ([]model.PlayerSummary, error) {
	users, err := usecase.UserRepository.ListUsers(ctx.Context())
	if err != nil {
		return nil, err
	}

	summaries := make([]model.PlayerSummary, 0, len(users))
	for _, user := range users {
		summaries = append(summaries, model.PlayerSummary{
			Id:            user.Id,
			Username:      user.Username,
			Discriminator: user.Discriminator,
			IngameName:    user.IngameName,
			Playtime:      trust.FormatPlaytime(user.Playtime),
		})
	}

	return summaries, nil
}

// GetPlayerDetail is the staff view of one player, including notes which
// players never see on their own profile.
func (usecase *UserUsecase) GetPlayerDetail(ctx *fiber.Ctx, playerId string) (model.PlayerDetailResponse, error) {
	response := model.PlayerDetailResponse{}

	profile, err := usecase.GetProfile(ctx, playerId)
	if err != nil {
		return response, err
	}

	user, err := usecase.UserRepository.GetUserInfo(ctx.Context(), playerId)
	if err != nil {
		return response, err
	}

	notes, err := usecase.ModerationRepository.GetRecordsByPlayer(ctx.Context(), repository.TableNotes, playerId)
	if err != nil {
		return response, err
	}

	response = model.PlayerDetailResponse{
		ProfileResponse: profile,
		IngameName:      user.IngameName,
		Identifiers:     user.Identifiers,
		Notes:           notes,
	}

	return response, nil
}

// GetTrustscore computes the score for one identity. Serves both the
// dashboard and the relay's getTrustscore call.
func (usecase *UserUsecase) GetTrustscore(ctx context.Context, userId string) (model.TrustscoreResponse, error) {
	response := model.TrustscoreResponse{}

	playtime, err := usecase.UserRepository.GetPlaytime(ctx, userId)
	if err != nil {
		return response, err
	}

	commends, err := usecase.ModerationRepository.GetRecordsByPlayer(ctx, repository.TableCommends, userId)
	if err != nil {
		return response, err
	}

	response.Trustscore = usecase.Trust.Score(playtime, len(commends))
	response.Playtime = trust.FormatPlaytime(playtime)

	return response, nil
}
