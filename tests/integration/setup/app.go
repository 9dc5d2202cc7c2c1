package setup

import (
	"context"
	"net"
	"testing"

	appconfig "github.com/relkin/staffportal/internal/config"
	"github.com/relkin/staffportal/internal/constant"
	"github.com/relkin/staffportal/internal/perm"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/knadh/koanf/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	JWTSecret  = "test-secret-key-for-jwt-token-generation"
	RelayToken = "relay-test-token"

	// Discord role ids wired into the test role table.
	StaffRole = "role-staff"
	AdminRole = "role-admin"
)

// TestRoleTable mirrors a small production roles file: a staff role with
// day-to-day moderation capabilities and an admin role on top of it.
func TestRoleTable() *perm.Table {
	return perm.NewTable(map[string]perm.Role{
		StaffRole: {
			Name: "Staff",
			Capabilities: []string{
				constant.CapStaff,
				constant.CapWarn,
				constant.CapKick,
				constant.CapTempBan,
				constant.CapCommend,
				constant.CapNote,
				constant.CapRemoveWarn,
				constant.CapRemoveKick,
				constant.CapRemoveCommend,
				constant.CapRemoveNote,
			},
			AceGroup: "group.staff",
		},
		AdminRole: {
			Name: "Admin",
			Capabilities: []string{
				constant.CapStaff,
				constant.CapAdmin,
				constant.CapWarn,
				constant.CapKick,
				constant.CapTempBan,
				constant.CapPermBan,
				constant.CapCommend,
				constant.CapNote,
				constant.CapRemoveWarn,
				constant.CapRemoveKick,
				constant.CapRemoveBan,
				constant.CapRemoveCommend,
				constant.CapRemoveNote,
			},
			AceGroup: "group.admin",
		},
	})
}

func SetupTestApp(t *testing.T, pgURL, redisURL string) (*fiber.App, *pgxpool.Pool, *redis.Client) {
	t.Log("Setting up test application...")

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	testConfig := koanf.New(".")
	_ = testConfig.Set("JWT_SECRET_KEY", JWTSecret)
	_ = testConfig.Set("RELAY_TOKEN", RelayToken)
	_ = testConfig.Set("TRUST_BASE_SCORE", 10)

	t.Log("Connecting to test PostgreSQL...")
	dbPool, err := pgxpool.New(ctx, pgURL)
	if err != nil {
		t.Fatalf("failed to connect to test db: %v", err)
	}

	t.Log("Connecting to test Redis...")
	redisClient := redis.NewClient(&redis.Options{
		Addr: redisURL,
		DB:   0,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		t.Fatalf("failed to connect to test redis: %v", err)
	}

	zapLogger := zap.NewNop()

	fiberApp := fiber.New(fiber.Config{
		AppName:               "Staffportal Test",
		DisableStartupMessage: true,
		DisableKeepalive:      true,
	})

	appconfig.Server(ctx, &appconfig.ServerConfig{
		Router:  fiberApp,
		DB:      dbPool,
		DBCache: redisClient,
		Log:     zapLogger,
		Config:  testConfig,
		Perm:    TestRoleTable(),
	})

	t.Log("Test application setup completed successfully")

	return fiberApp, dbPool, redisClient
}

// StartListener serves the app on a random local port and returns its
// address. Relay tests need a real socket; app.Test cannot upgrade to
// websocket.
func StartListener(t *testing.T, app *fiber.App) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to open listener: %v", err)
	}

	go func() {
		_ = app.Listener(ln)
	}()
	t.Cleanup(func() {
		_ = app.Shutdown()
	})

	return ln.Addr().String()
}
