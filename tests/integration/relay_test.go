package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/relkin/staffportal/internal/model"
	"github.com/relkin/staffportal/internal/repository"
	"github.com/relkin/staffportal/pkg/agent"
	"github.com/relkin/staffportal/tests/integration/setup"
)

type recordingHost struct {
	mu      sync.Mutex
	players []agent.Player
	granted [][2]string
	revoked [][2]string
}

func (h *recordingHost) Players() []agent.Player {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]agent.Player{}, h.players...)
}

func (h *recordingHost) Drop(source int, message string) {}

func (h *recordingHost) Broadcast(message string) {}

func (h *recordingHost) GrantGroup(identity string, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.granted = append(h.granted, [2]string{identity, group})
}

func (h *recordingHost) RevokeGroup(identity string, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.revoked = append(h.revoked, [2]string{identity, group})
}

func TestRelay(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	infra, err := setup.StartInfra(ctx, t)
	require.NoError(t, err)
	defer func() {
		_ = infra.Terminate(ctx, t)
	}()

	require.NoError(t, setup.RunMigration(infra.PgURL, t))

	app, db, redisClient := setup.SetupTestApp(t, infra.PgURL, infra.RedisURL)
	addr := setup.StartListener(t, app)
	relayURL := "ws://" + addr + "/relay"

	adminUser := model.User{Id: "100000000000000002", Username: "bossman", Identifiers: []string{"discord:100000000000000002"}}
	adminToken := setup.SeedAuthenticatedUser(t, db, redisClient, ctx, adminUser, []string{setup.AdminRole})
	_, err = db.Exec(ctx, "INSERT INTO servers (identifier, name) VALUES ($1, $2)", "sv-main", "Main Server")
	require.NoError(t, err)

	t.Run("connections with a wrong token are never verified", func(t *testing.T) {
		client := agent.NewClient(zap.NewNop(), &recordingHost{}, relayURL, "bogus", "sv-main")
		err := client.Connect(ctx)
		require.Error(t, err)
	})

	host := &recordingHost{}
	client := agent.NewClient(zap.NewNop(), host, relayURL, setup.RelayToken, "sv-main")
	require.NoError(t, client.Connect(ctx))
	t.Cleanup(client.Close)

	joining := agent.Player{
		Source:      7,
		Name:        "Rook",
		Ping:        32,
		Identifiers: []string{"ip:10.0.0.4", "discord:200000000000000001", "license:abc123"},
	}

	t.Run("admission registers the player without shareable-unsafe identifiers", func(t *testing.T) {
		result := client.AdmitPlayer(ctx, joining)
		require.True(t, result.Allowed)

		var identifiers []string
		require.NoError(t, db.QueryRow(ctx, "SELECT identifiers FROM users WHERE id = $1", "200000000000000001").Scan(&identifiers))
		assert.Contains(t, identifiers, "discord:200000000000000001")
		assert.Contains(t, identifiers, "license:abc123")
		assert.NotContains(t, identifiers, "ip:10.0.0.4")
	})

	t.Run("admission grants ace groups for cached staff roles", func(t *testing.T) {
		staffPlayer := agent.Player{Source: 8, Name: "Mod", Identifiers: []string{"discord:100000000000000002"}}

		result := client.AdmitPlayer(ctx, staffPlayer)
		require.True(t, result.Allowed)

		host.mu.Lock()
		granted := append([][2]string{}, host.granted...)
		host.mu.Unlock()
		assert.Contains(t, granted, [2]string{"100000000000000002", "group.admin"})
	})

	t.Run("banned players are rejected at the gate", func(t *testing.T) {
		body, _ := json.Marshal(map[string]interface{}{"id": "200000000000000001", "reason": "cheating", "length": 0})
		resp, err := app.Test(setup.CreateAuthRequest(http.MethodPost, "/api/staff/players/ban", body, adminToken), -1)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		result := client.AdmitPlayer(ctx, joining)
		assert.False(t, result.Allowed)
		assert.Contains(t, result.Message, "cheating")

		_, err = db.Exec(ctx, "DELETE FROM bans")
		require.NoError(t, err)
	})

	t.Run("in-game staff commands persist through the relay", func(t *testing.T) {
		staff := agent.Player{Source: 8, Name: "Mod", Identifiers: []string{"discord:100000000000000002"}}
		target := agent.Player{Source: 7, Name: "Rook", Identifiers: []string{"discord:200000000000000001"}}

		require.NoError(t, client.Warn(ctx, staff, target, "mic spam"))

		var count int
		require.NoError(t, db.QueryRow(ctx, "SELECT COUNT(*) FROM warnings WHERE player_id = $1 AND staff_id = $2", "200000000000000001", "100000000000000002").Scan(&count))
		assert.Equal(t, 1, count)
	})

	t.Run("unauthorized in-game commands are dropped without an answer", func(t *testing.T) {
		userRepository := repository.NewUserRepository(zap.NewNop(), db, redisClient)
		require.NoError(t, userRepository.SetRolesInCache(ctx, "200000000000000001", []string{"role-peasant"}))

		nobody := agent.Player{Source: 9, Name: "Rando", Identifiers: []string{"discord:200000000000000001"}}
		target := agent.Player{Source: 8, Name: "Mod", Identifiers: []string{"discord:100000000000000002"}}

		callCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		err := client.Warn(callCtx, nobody, target, "revenge")
		assert.ErrorIs(t, err, agent.ErrCallTimeout)

		var count int
		require.NoError(t, db.QueryRow(ctx, "SELECT COUNT(*) FROM warnings WHERE player_id = $1", "100000000000000002").Scan(&count))
		assert.Zero(t, count)
	})

	t.Run("players can query their own trust score in game", func(t *testing.T) {
		self := agent.Player{Source: 7, Name: "Rook", Identifiers: []string{"discord:200000000000000001"}}

		score, err := client.Trustscore(ctx, self, nil)
		require.NoError(t, err)
		assert.Equal(t, 10, score)
	})

	t.Run("server page shows the live roster of a connected endpoint", func(t *testing.T) {
		host.mu.Lock()
		host.players = []agent.Player{
			{Source: 7, Name: "Rook", Ping: 32, Identifiers: []string{"discord:200000000000000001"}},
		}
		host.mu.Unlock()

		resp, err := app.Test(setup.CreateAuthRequest(http.MethodGet, "/api/staff/servers/sv-main", nil, adminToken), -1)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		detail := setup.ParseJSONResponse(t, resp)
		assert.Equal(t, true, detail["connected"])
		assert.Equal(t, float64(1), detail["totalPlayers"])

		players, ok := detail["players"].([]interface{})
		require.True(t, ok)
		require.Len(t, players, 1)
		assert.Equal(t, "Rook", players[0].(map[string]interface{})["name"])
	})

	t.Run("dropped players appear in the recent list", func(t *testing.T) {
		client.PlayerDropped(agent.Player{Source: 7, Name: "Rook", Identifiers: []string{"discord:200000000000000001"}}, "Disconnected")

		require.Eventually(t, func() bool {
			resp, err := app.Test(setup.CreateAuthRequest(http.MethodGet, "/api/staff/servers/sv-main", nil, adminToken), -1)
			if err != nil || resp.StatusCode != http.StatusOK {
				return false
			}
			detail := setup.ParseJSONResponse(t, resp)
			recent, ok := detail["recentPlayers"].([]interface{})
			if !ok || len(recent) == 0 {
				return false
			}
			return recent[0].(map[string]interface{})["name"] == "Rook"
		}, 3*time.Second, 100*time.Millisecond)
	})
}
