package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/relkin/staffportal/internal/model"
)

// tables holding plain moderation records, all sharing one shape
const (
	TableWarnings = "warnings"
	TableKicks    = "kicks"
	TableCommends = "commends"
	TableNotes    = "notes"
)

type ModerationRepository struct {
	Log *zap.Logger
	DB  *pgxpool.Pool
}

func NewModerationRepository(zap *zap.Logger, db *pgxpool.Pool) *ModerationRepository {
	return &ModerationRepository{
		Log: zap,
		DB:  db,
	}
}

func (repository *ModerationRepository) AddRecord(ctx context.Context, table string, record model.ModerationItem) error {
	query := fmt.Sprintf("INSERT INTO %s (player_id, staff_id, staff_name, player_name, reason, create_datetime) VALUES ($1,$2,$3,$4,$5,$6)", table)

	_, err := repository.DB.Exec(ctx, query, record.Id, record.Staff, record.StaffName, record.PlayerName, record.Reason, record.Date)
	if err != nil {
		return err
	}

	return nil
}

func (repository *ModerationRepository) RemoveRecord(ctx context.Context, table string, recordId int) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id=$1", table)

	_, err := repository.DB.Exec(ctx, query, recordId)
	if err != nil {
		return err
	}

	return nil
}

func (repository *ModerationRepository) GetRecordsByPlayer(ctx context.Context, table string, playerId string) ([]model.ModerationItem, error) {
	query := fmt.Sprintf("SELECT id, player_id, staff_id, staff_name, player_name, reason, create_datetime FROM %s WHERE player_id=$1", table)

	rows, err := repository.DB.Query(ctx, query, playerId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRecords(rows)
}

func (repository *ModerationRepository) GetRecordsByStaff(ctx context.Context, table string, staffId string) ([]model.ModerationItem, error) {
	query := fmt.Sprintf("SELECT id, player_id, staff_id, staff_name, player_name, reason, create_datetime FROM %s WHERE staff_id=$1", table)

	rows, err := repository.DB.Query(ctx, query, staffId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRecords(rows)
}

func (repository *ModerationRepository) AddBan(ctx context.Context, ban model.BanItem) error {
	query := "INSERT INTO bans (player_id, staff_id, staff_name, player_name, reason, length, create_datetime) VALUES ($1,$2,$3,$4,$5,$6,$7)"

	_, err := repository.DB.Exec(ctx, query, ban.Id, ban.Staff, ban.StaffName, ban.PlayerName, ban.Reason, ban.Length, ban.Date)
	if err != nil {
		return err
	}

	return nil
}

func (repository *ModerationRepository) RemoveBan(ctx context.Context, recordId int) error {
	query := "DELETE FROM bans WHERE id=$1"

	_, err := repository.DB.Exec(ctx, query, recordId)
	if err != nil {
		return err
	}

	return nil
}

// GetBansByPlayer returns bans in insertion order. Ban checks take the
// first row still in force, so the order rows come back matters.
func (repository *ModerationRepository) GetBansByPlayer(ctx context.Context, playerId string) ([]model.BanItem, error) {
	query := "SELECT id, player_id, staff_id, staff_name, player_name, reason, length, create_datetime FROM bans WHERE player_id=$1"

	rows, err := repository.DB.Query(ctx, query, playerId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanBans(rows)
}

func (repository *ModerationRepository) GetBansByStaff(ctx context.Context, staffId string) ([]model.BanItem, error) {
	query := "SELECT id, player_id, staff_id, staff_name, player_name, reason, length, create_datetime FROM bans WHERE staff_id=$1"

	rows, err := repository.DB.Query(ctx, query, staffId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanBans(rows)
}

// CountRecordsSince counts one staff member's records newer than the cutoff.
func (repository *ModerationRepository) CountRecordsSince(ctx context.Context, table string, staffId string, since time.Time) (int, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE staff_id=$1 AND create_datetime >= $2", table)

	var count int
	err := repository.DB.QueryRow(ctx, query, staffId, since).Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}

func scanRecords(rows pgx.Rows) ([]model.ModerationItem, error) {
	var records []model.ModerationItem
	for rows.Next() {
		record := model.ModerationItem{}
		err := rows.Scan(&record.RecordId, &record.Id, &record.Staff, &record.StaffName, &record.PlayerName, &record.Reason, &record.Date)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

func scanBans(rows pgx.Rows) ([]model.BanItem, error) {
	var bans []model.BanItem
	for rows.Next() {
		ban := model.BanItem{}
		err := rows.Scan(&ban.RecordId, &ban.Id, &ban.Staff, &ban.StaffName, &ban.PlayerName, &ban.Reason, &ban.Length, &ban.Date)
		if err != nil {
			return nil, err
		}
		bans = append(bans, ban)
	}

	return bans, rows.Err()
}
