package setup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/relkin/staffportal/internal/model"
	"github.com/relkin/staffportal/internal/repository"
	"github.com/relkin/staffportal/internal/util"
)

// TruncateAllTables truncates all tables in correct order (children first, then parents)
func TruncateAllTables(t *testing.T, db *pgxpool.Pool, ctx context.Context) {
	t.Log("Truncating all database tables...")

	tables := []string{
		"notes",
		"commends",
		"bans",
		"kicks",
		"warnings",
		"servers",
		"users",
	}

	for _, table := range tables {
		_, err := db.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
		require.NoError(t, err, "failed to truncate table %s", table)
	}

	t.Log("All database tables truncated successfully")
}

// FlushCache clears Redis between tests so role and token caches never
// leak across cases.
func FlushCache(t *testing.T, redisClient *redis.Client, ctx context.Context) {
	require.NoError(t, redisClient.FlushDB(ctx).Err(), "failed to flush redis")
}

// SeedUser inserts a plain player record.
func SeedUser(t *testing.T, db *pgxpool.Pool, ctx context.Context, user model.User) {
	_, err := db.Exec(ctx,
		"INSERT INTO users (id, username, discriminator, avatar, ingame_name, identifiers, playtime, create_datetime) VALUES ($1, $2, $3, $4, $5, $6, $7, now())",
		user.Id, user.Username, user.Discriminator, user.Avatar, user.IngameName, user.Identifiers, user.Playtime)
	require.NoError(t, err, "failed to seed user %s", user.Id)
}

// SeedAuthenticatedUser inserts a user, caches their Discord roles and
// issues a stored token pair. The returned string goes straight into the
// Authorization header. Caching the roles up front keeps the Discord API
// out of the test path.
func SeedAuthenticatedUser(t *testing.T, db *pgxpool.Pool, redisClient *redis.Client, ctx context.Context, user model.User, roles []string) string {
	SeedUser(t, db, ctx, user)

	userRepository := repository.NewUserRepository(zap.NewNop(), db, redisClient)
	require.NoError(t, userRepository.SetRolesInCache(ctx, user.Id, roles), "failed to cache roles")

	tokens, err := util.GenerateTokenPair(user.Id, JWTSecret)
	require.NoError(t, err, "failed to generate token pair")
	require.NoError(t, userRepository.SetAuthTokenInCache(ctx, tokens.AccessToken, tokens.RefreshToken, user.Id), "failed to store tokens")

	return tokens.AccessToken
}

// CreateJSONRequest creates a test request with JSON body
func CreateJSONRequest(method, url string, jsonBody []byte) *http.Request {
	req := httptest.NewRequest(method, url, bytes.NewReader(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// CreateAuthRequest creates a test request with JSON body and Authorization header
func CreateAuthRequest(method, url string, jsonBody []byte, token string) *http.Request {
	req := CreateJSONRequest(method, url, jsonBody)
	if token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	}
	return req
}

// ParseJSONResponse helper to parse JSON response body
func ParseJSONResponse(t *testing.T, resp *http.Response) map[string]interface{} {
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "failed to read response body")
	require.NotEmpty(t, body, "response body should not be empty")

	var result map[string]interface{}
	err = json.Unmarshal(body, &result)
	require.NoError(t, err, "failed to parse JSON response")

	return result
}
