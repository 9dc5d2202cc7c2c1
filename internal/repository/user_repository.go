package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/relkin/staffportal/internal/constant"
	"github.com/relkin/staffportal/internal/model"
	"github.com/relkin/staffportal/internal/util"
)

const roleCacheTTL = 5 * time.Minute

type UserRepository struct {
	Log     *zap.Logger
	DB      *pgxpool.Pool
	DBCache *redis.Client
}

func NewUserRepository(zap *zap.Logger, db *pgxpool.Pool, dbCache *redis.Client) *UserRepository {
	return &UserRepository{
		Log:     zap,
		DB:      db,
		DBCache: dbCache,
	}
}

// Postgresql
func (repository *UserRepository) Upsert(ctx context.Context, tx pgx.Tx, user model.User) error {
	query := `INSERT INTO users (id, username, discriminator, avatar, ingame_name, identifiers, playtime, create_datetime)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			ON CONFLICT (id) DO UPDATE SET
				username = EXCLUDED.username,
				discriminator = EXCLUDED.discriminator,
				avatar = EXCLUDED.avatar,
				ingame_name = EXCLUDED.ingame_name,
				identifiers = EXCLUDED.identifiers`

	_, err := tx.Exec(ctx, query, user.Id, user.Username, user.Discriminator, user.Avatar, user.IngameName, user.Identifiers, user.Playtime, user.CreateDate)
	if err != nil {
		return err
	}

	return nil
}

func (repository *UserRepository) UpsertNoTx(ctx context.Context, user model.User) error {
	tx, err := repository.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = repository.Upsert(ctx, tx, user)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (repository *UserRepository) GetUserInfo(ctx context.Context, id string) (model.User, error) {
	query := "SELECT id, username, discriminator, avatar, ingame_name, identifiers, playtime, create_datetime FROM users WHERE id=$1 LIMIT 1"

	user := model.User{}
	err := repository.DB.QueryRow(ctx, query, id).Scan(&user.Id, &user.Username, &user.Discriminator, &user.Avatar, &user.IngameName, &user.Identifiers, &user.Playtime, &user.CreateDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user, &model.ValidationError{
				Code:    constant.ERR_NOT_FOUND_ERROR,
				Message: "Player not found",
				Param:   "id",
			}
		}
		return user, err
	}

	return user, nil
}

// FindByIdentifier resolves a game identifier back to a player record.
func (repository *UserRepository) FindByIdentifier(ctx context.Context, identifier string) (model.User, error) {
	query := "SELECT id, username, discriminator, avatar, ingame_name, identifiers, playtime, create_datetime FROM users WHERE $1 = ANY(identifiers) LIMIT 1"

	user := model.User{}
	err := repository.DB.QueryRow(ctx, query, identifier).Scan(&user.Id, &user.Username, &user.Discriminator, &user.Avatar, &user.IngameName, &user.Identifiers, &user.Playtime, &user.CreateDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user, &model.ValidationError{
				Code:    constant.ERR_NOT_FOUND_ERROR,
				Message: "Player not found",
				Param:   "identifier",
			}
		}
		return user, err
	}

	return user, nil
}

func (repository *UserRepository) ListUsers(ctx context.Context) ([]model.User, error) {
	query := "SELECT id, username, discriminator, avatar, ingame_name, identifiers, playtime, create_datetime FROM users ORDER BY username"

	rows, err := repository.DB.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		user := model.User{}
		err = rows.Scan(&user.Id, &user.Username, &user.Discriminator, &user.Avatar, &user.IngameName, &user.Identifiers, &user.Playtime, &user.CreateDate)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

func (repository *UserRepository) GetPlaytime(ctx context.Context, id string) (int, error) {
	query := "SELECT playtime FROM users WHERE id=$1 LIMIT 1"

	var playtime int
	err := repository.DB.QueryRow(ctx, query, id).Scan(&playtime)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, &model.ValidationError{
				Code:    constant.ERR_NOT_FOUND_ERROR,
				Message: "Player not found",
				Param:   "id",
			}
		}
		return 0, err
	}

	return playtime, nil
}

func (repository *UserRepository) IncrementPlaytime(ctx context.Context, tx pgx.Tx, id string, minutes int) error {
	query := "UPDATE users SET playtime = playtime + $1 WHERE id=$2"

	_, err := tx.Exec(ctx, query, minutes, id)
	if err != nil {
		return err
	}

	return nil
}

func (repository *UserRepository) UpdateIngameName(ctx context.Context, tx pgx.Tx, id string, name string) error {
	query := "UPDATE users SET ingame_name = $1 WHERE id=$2"

	_, err := tx.Exec(ctx, query, name, id)
	if err != nil {
		return err
	}

	return nil
}

// Redis - Cache
func (repository *UserRepository) SetAuthTokenInCache(ctx context.Context, accessToken string, refreshToken string, userId string) error {
	accessTokenKey := fmt.Sprintf("auth:accessToken:%s", userId)
	refreshTokenKey := fmt.Sprintf("auth:refreshToken:%s", userId)

	// Hash tokens before storing in Redis for security
	hashedAccessToken := util.HashToken(accessToken)
	hashedRefreshToken := util.HashToken(refreshToken)

	err := repository.DBCache.Set(ctx, accessTokenKey, hashedAccessToken, 15*time.Minute).Err()
	if err != nil {
		return err
	}

	err = repository.DBCache.Set(ctx, refreshTokenKey, hashedRefreshToken, 24*time.Hour).Err()
	if err != nil {
		return err
	}

	return nil
}

func (repository *UserRepository) GetAccessTokenInCache(ctx context.Context, userId string) (string, error) {
	accessTokenKey := fmt.Sprintf("auth:accessToken:%s", userId)
	hashedToken, err := repository.DBCache.Get(ctx, accessTokenKey).Result()
	if err == redis.Nil {
		return hashedToken, &model.ValidationError{
			Code:    constant.ERR_NOT_FOUND_ERROR,
			Message: "Authorization token not found or expired",
			Param:   "accessToken",
		}
	} else if err != nil {
		return hashedToken, err
	}

	return hashedToken, nil
}

func (repository *UserRepository) RemoveAuthToken(ctx context.Context, userId string) error {
	accessTokenKey := fmt.Sprintf("auth:accessToken:%s", userId)
	refreshTokenKey := fmt.Sprintf("auth:refreshToken:%s", userId)

	err := repository.DBCache.Del(ctx, accessTokenKey).Err()
	if err != nil {
		return err
	}

	err = repository.DBCache.Del(ctx, refreshTokenKey).Err()
	if err != nil {
		return err
	}

	return nil
}

// SetRolesInCache keeps a short-lived copy of a user's guild roles so a
// burst of privileged calls does not hammer the Discord API.
func (repository *UserRepository) SetRolesInCache(ctx context.Context, userId string, roles []string) error {
	key := fmt.Sprintf("roles:%s", userId)

	err := repository.DBCache.Del(ctx, key).Err()
	if err != nil {
		return err
	}

	if len(roles) == 0 {
		return nil
	}

	err = repository.DBCache.RPush(ctx, key, roles).Err()
	if err != nil {
		return err
	}

	return repository.DBCache.Expire(ctx, key, roleCacheTTL).Err()
}

func (repository *UserRepository) GetRolesInCache(ctx context.Context, userId string) ([]string, bool, error) {
	key := fmt.Sprintf("roles:%s", userId)

	roles, err := repository.DBCache.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, false, err
	}
	if len(roles) == 0 {
		return nil, false, nil
	}

	return roles, true, nil
}
