package agent

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	fiberws "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/relkin/staffportal/internal/model"
)

type fakeHost struct {
	mu         sync.Mutex
	players    []Player
	dropped    map[int]string
	broadcasts []string
	granted    [][2]string
	revoked    [][2]string
}

func newFakeHost(players ...Player) *fakeHost {
	return &fakeHost{players: players, dropped: map[int]string{}}
}

func (h *fakeHost) Players() []Player {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Player{}, h.players...)
}

func (h *fakeHost) Drop(source int, message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropped[source] = message
}

func (h *fakeHost) Broadcast(message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcasts = append(h.broadcasts, message)
}

func (h *fakeHost) GrantGroup(identity string, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.granted = append(h.granted, [2]string{identity, group})
}

func (h *fakeHost) RevokeGroup(identity string, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.revoked = append(h.revoked, [2]string{identity, group})
}

// authConn is the authority's side of one relay connection. The websocket
// handler pumps every inbound frame into in; tests script the answers.
type authConn struct {
	conn *fiberws.Conn
	in   chan model.Frame
	done chan struct{}
}

func (a *authConn) next(t *testing.T) model.Frame {
	t.Helper()
	select {
	case frame := <-a.in:
		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame from agent")
		return model.Frame{}
	}
}

func (a *authConn) send(t *testing.T, frame model.Frame, payload interface{}) {
	t.Helper()
	data, err := sonic.Marshal(payload)
	require.NoError(t, err)
	frame.Data = data
	raw, err := sonic.Marshal(frame)
	require.NoError(t, err)
	require.NoError(t, a.conn.WriteMessage(fiberws.TextMessage, raw))
}

func (a *authConn) reply(t *testing.T, to model.Frame, payload interface{}) {
	t.Helper()
	a.send(t, model.Frame{Event: to.Event, Reply: to.Seq}, payload)
}

type authority struct {
	url   string
	conns chan *authConn
}

func startAuthority(t *testing.T) *authority {
	t.Helper()

	auth := &authority{conns: make(chan *authConn, 1)}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/relay", fiberws.New(func(conn *fiberws.Conn) {
		ac := &authConn{conn: conn, in: make(chan model.Frame, 16), done: make(chan struct{})}
		auth.conns <- ac
		defer close(ac.done)
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var frame model.Frame
			if err := sonic.Unmarshal(payload, &frame); err != nil {
				continue
			}
			ac.in <- frame
		}
	}))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		_ = app.Listener(ln)
	}()
	t.Cleanup(func() {
		_ = app.Shutdown()
	})

	auth.url = "ws://" + ln.Addr().String() + "/relay?token=secret"
	return auth
}

func (auth *authority) accept(t *testing.T) *authConn {
	t.Helper()
	select {
	case ac := <-auth.conns:
		return ac
	case <-time.After(2 * time.Second):
		t.Fatal("agent never connected")
		return nil
	}
}

// connect dials the authority and completes verification on its behalf.
func connect(t *testing.T, auth *authority, host Host) (*Client, *authConn) {
	t.Helper()

	client := NewClient(zap.NewNop(), host, auth.url, "secret", "sv-main")

	errCh := make(chan error, 1)
	go func() {
		errCh <- client.Connect(context.Background())
	}()

	ac := auth.accept(t)
	verify := ac.next(t)
	require.Equal(t, model.EventVerifyToken, verify.Event)
	var req model.VerifyTokenRequest
	require.NoError(t, sonic.Unmarshal(verify.Data, &req))
	require.Equal(t, "sv-main", req.Identifier)
	ac.reply(t, verify, model.VerifyTokenResponse{Verified: true})

	require.NoError(t, <-errCh)
	t.Cleanup(client.Close)
	return client, ac
}

func TestConnectRejectedToken(t *testing.T) {
	auth := startAuthority(t)
	client := NewClient(zap.NewNop(), newFakeHost(), auth.url, "wrong", "sv-main")

	errCh := make(chan error, 1)
	go func() {
		errCh <- client.Connect(context.Background())
	}()

	ac := auth.accept(t)
	verify := ac.next(t)
	ac.reply(t, verify, model.VerifyTokenResponse{Verified: false})

	assert.ErrorIs(t, <-errCh, ErrNotVerified)
}

func TestAdmitPlayerAllowed(t *testing.T) {
	auth := startAuthority(t)
	host := newFakeHost()
	client, ac := connect(t, auth, host)

	player := Player{Source: 3, Name: "Rook", Identifiers: []string{"ip:10.0.0.4", "discord:111222333"}}

	resCh := make(chan GateResult, 1)
	go func() {
		resCh <- client.AdmitPlayer(context.Background(), player)
	}()

	addUser := ac.next(t)
	require.Equal(t, model.EventAddUser, addUser.Event)
	var addReq model.AddUserRequest
	require.NoError(t, sonic.Unmarshal(addUser.Data, &addReq))
	assert.Equal(t, "111222333", addReq.Id)
	assert.Equal(t, "Rook", addReq.Name)
	ac.reply(t, addUser, model.AckResponse{Ok: true})

	banCheck := ac.next(t)
	require.Equal(t, model.EventGetBanned, banCheck.Event)
	ac.reply(t, banCheck, model.BanStatus{Banned: false})

	aceGroups := ac.next(t)
	require.Equal(t, model.EventGetAceGroups, aceGroups.Event)
	ac.reply(t, aceGroups, model.AceGroupsResponse{Groups: []string{"staff", "vip"}})

	result := <-resCh
	assert.True(t, result.Allowed)

	host.mu.Lock()
	defer host.mu.Unlock()
	assert.Equal(t, [][2]string{{"111222333", "staff"}, {"111222333", "vip"}}, host.granted)
}

func TestAdmitPlayerBanned(t *testing.T) {
	auth := startAuthority(t)
	client, ac := connect(t, auth, newFakeHost())

	expiry := time.Date(2026, 9, 3, 12, 0, 0, 0, time.UTC)
	player := Player{Source: 3, Name: "Rook", Identifiers: []string{"discord:111222333"}}

	resCh := make(chan GateResult, 1)
	go func() {
		resCh <- client.AdmitPlayer(context.Background(), player)
	}()

	ac.reply(t, ac.next(t), model.AckResponse{Ok: true})
	ac.reply(t, ac.next(t), model.BanStatus{Banned: true, Reason: "griefing", Expiry: &expiry})

	result := <-resCh
	assert.False(t, result.Allowed)
	assert.Contains(t, result.Message, "griefing")
	assert.Contains(t, result.Message, "Expires")
}

func TestAdmitPlayerWithoutIdentity(t *testing.T) {
	host := newFakeHost()
	client := NewClient(zap.NewNop(), host, "", "", "sv-main")

	result := client.AdmitPlayer(context.Background(), Player{Source: 1, Name: "Ghost", Identifiers: []string{"ip:10.0.0.9"}})

	assert.False(t, result.Allowed)
	assert.Contains(t, result.Message, "Discord")
}

type fakeDeferral struct {
	updates  []string
	done     bool
	rejected string
}

func (d *fakeDeferral) Update(message string) { d.updates = append(d.updates, message) }
func (d *fakeDeferral) Done()                 { d.done = true }
func (d *fakeDeferral) Reject(message string) { d.rejected = message }

func TestRunGateRejectsWithoutIdentity(t *testing.T) {
	host := newFakeHost()
	client := NewClient(zap.NewNop(), host, "", "", "sv-main")

	deferral := &fakeDeferral{}
	client.RunGate(context.Background(), Player{Source: 1, Name: "Ghost", Identifiers: []string{"ip:10.0.0.9"}}, deferral)

	assert.False(t, deferral.done)
	assert.Contains(t, deferral.rejected, "Discord")
	if assert.NotEmpty(t, deferral.updates) {
		assert.Contains(t, deferral.updates[0], "identity")
	}
}

func TestAdmitPlayerAuthorityUnreachableFailsOpen(t *testing.T) {
	auth := startAuthority(t)
	client, ac := connect(t, auth, newFakeHost())

	player := Player{Source: 3, Name: "Rook", Identifiers: []string{"discord:111222333"}}

	resCh := make(chan GateResult, 1)
	go func() {
		resCh <- client.AdmitPlayer(context.Background(), player)
	}()

	ac.reply(t, ac.next(t), model.AckResponse{Ok: true})
	require.NoError(t, ac.conn.Close())

	result := <-resCh
	assert.True(t, result.Allowed)
}

func TestAdmitPlayerSlowPermissionSyncStillAdmits(t *testing.T) {
	auth := startAuthority(t)
	host := newFakeHost()
	client, ac := connect(t, auth, host)

	player := Player{Source: 3, Name: "Rook", Identifiers: []string{"discord:111222333"}}

	resCh := make(chan GateResult, 1)
	go func() {
		resCh <- client.AdmitPlayer(context.Background(), player)
	}()

	ac.reply(t, ac.next(t), model.AckResponse{Ok: true})
	ac.reply(t, ac.next(t), model.BanStatus{Banned: false})

	// getAceGroups is never answered; the gate's one second sync budget
	// expires and the player joins without groups
	frame := ac.next(t)
	require.Equal(t, model.EventGetAceGroups, frame.Event)

	select {
	case result := <-resCh:
		assert.True(t, result.Allowed)
	case <-time.After(3 * time.Second):
		t.Fatal("gate did not admit after the permission sync deadline")
	}

	host.mu.Lock()
	defer host.mu.Unlock()
	assert.Empty(t, host.granted)
}

func TestKickCommandDropsMatchingPlayers(t *testing.T) {
	auth := startAuthority(t)
	host := newFakeHost(
		Player{Source: 1, Name: "Rook", Identifiers: []string{"discord:111222333"}},
		Player{Source: 2, Name: "Pawn", Identifiers: []string{"discord:999888777"}},
	)
	_, ac := connect(t, auth, host)

	ac.send(t, model.Frame{Event: model.EventKickPlayer}, model.PlayerCommand{Id: "111222333", Reason: "afk"})

	require.Eventually(t, func() bool {
		host.mu.Lock()
		defer host.mu.Unlock()
		return len(host.dropped) == 1
	}, 2*time.Second, 10*time.Millisecond)

	host.mu.Lock()
	defer host.mu.Unlock()
	assert.Contains(t, host.dropped[1], "afk")
	assert.NotContains(t, host.dropped, 2)
}

func TestWarnCommandBroadcasts(t *testing.T) {
	auth := startAuthority(t)
	host := newFakeHost(Player{Source: 1, Name: "Rook", Identifiers: []string{"discord:111222333"}})
	_, ac := connect(t, auth, host)

	ac.send(t, model.Frame{Event: model.EventWarnPlayer}, model.PlayerCommand{Id: "111222333", Reason: "language"})

	require.Eventually(t, func() bool {
		host.mu.Lock()
		defer host.mu.Unlock()
		return len(host.broadcasts) == 1
	}, 2*time.Second, 10*time.Millisecond)

	host.mu.Lock()
	defer host.mu.Unlock()
	assert.Contains(t, host.broadcasts[0], "Rook")
	assert.Contains(t, host.broadcasts[0], "language")
}

func TestRosterCall(t *testing.T) {
	auth := startAuthority(t)
	host := newFakeHost(
		Player{Source: 1, Name: "Rook", Ping: 40, Identifiers: []string{"discord:111222333"}},
		Player{Source: 2, Name: "Ghost", Ping: 15, Identifiers: []string{"ip:10.0.0.9"}},
	)
	_, ac := connect(t, auth, host)

	ac.send(t, model.Frame{Event: model.EventGetPlayers, Seq: 7}, model.PlayersRequest{})

	answer := ac.next(t)
	require.Equal(t, uint64(7), answer.Reply)
	var resp model.PlayersResponse
	require.NoError(t, sonic.Unmarshal(answer.Data, &resp))
	require.True(t, resp.Ok)
	require.Len(t, resp.Players, 2)
	assert.Equal(t, "111222333", resp.Players[0].Id)
	assert.Empty(t, resp.Players[1].Id)
}

func TestRosterCallForOtherEndpoint(t *testing.T) {
	auth := startAuthority(t)
	_, ac := connect(t, auth, newFakeHost())

	other := "sv-other"
	ac.send(t, model.Frame{Event: model.EventGetPlayers, Seq: 8}, model.PlayersRequest{Identifier: &other})

	answer := ac.next(t)
	var resp model.PlayersResponse
	require.NoError(t, sonic.Unmarshal(answer.Data, &resp))
	assert.False(t, resp.Ok)
}

func TestBanCommandRelaysAction(t *testing.T) {
	auth := startAuthority(t)
	client, ac := connect(t, auth, newFakeHost())

	staff := Player{Source: 1, Name: "Mod", Identifiers: []string{"discord:555"}}
	target := Player{Source: 2, Name: "Rook", Identifiers: []string{"discord:111222333"}}

	errCh := make(chan error, 1)
	go func() {
		errCh <- client.Ban(context.Background(), staff, target, "cheating", 48)
	}()

	frame := ac.next(t)
	require.Equal(t, model.EventAddBan, frame.Event)
	var req model.ModerationRequest
	require.NoError(t, sonic.Unmarshal(frame.Data, &req))
	assert.Equal(t, "555", req.Staff)
	assert.Equal(t, "111222333", req.Id)
	assert.Equal(t, 48, req.Length)
	ac.reply(t, frame, model.AckResponse{Ok: true})

	require.NoError(t, <-errCh)
}

func TestModerationRejectedByAuthority(t *testing.T) {
	auth := startAuthority(t)
	client, ac := connect(t, auth, newFakeHost())

	staff := Player{Source: 1, Name: "Mod", Identifiers: []string{"discord:555"}}
	target := Player{Source: 2, Name: "Rook", Identifiers: []string{"discord:111222333"}}

	errCh := make(chan error, 1)
	go func() {
		errCh <- client.Warn(context.Background(), staff, target, "spam")
	}()

	ac.reply(t, ac.next(t), model.AckResponse{Ok: false})

	assert.ErrorIs(t, <-errCh, ErrRejected)
}

func TestPlayerDroppedRevokesCurrentGroups(t *testing.T) {
	auth := startAuthority(t)
	host := newFakeHost()
	client, ac := connect(t, auth, host)

	client.grantedMu.Lock()
	client.granted["111222333"] = []string{"staff"}
	client.grantedMu.Unlock()

	done := make(chan struct{})
	go func() {
		client.PlayerDropped(Player{Source: 1, Name: "Rook", Identifiers: []string{"discord:111222333"}}, "Disconnected")
		close(done)
	}()

	frame := ac.next(t)
	require.Equal(t, model.EventAddRecentPlayer, frame.Event)
	var req model.RecentPlayerRequest
	require.NoError(t, sonic.Unmarshal(frame.Data, &req))
	assert.Equal(t, "sv-main", req.Identifier)
	assert.Equal(t, "111222333", req.Id)
	assert.Equal(t, "Disconnected", req.Reason)

	// the identity picked up "vip" after joining; the drop revokes the
	// authority's current set, not the one cached at join
	aceGroups := ac.next(t)
	require.Equal(t, model.EventGetAceGroups, aceGroups.Event)
	ac.reply(t, aceGroups, model.AceGroupsResponse{Groups: []string{"staff", "vip"}})

	<-done
	host.mu.Lock()
	defer host.mu.Unlock()
	assert.Equal(t, [][2]string{{"111222333", "staff"}, {"111222333", "vip"}}, host.revoked)
}

func TestPlayerDroppedAuthorityStalledRevokesJoinGroups(t *testing.T) {
	auth := startAuthority(t)
	host := newFakeHost()
	client, ac := connect(t, auth, host)

	client.grantedMu.Lock()
	client.granted["111222333"] = []string{"staff"}
	client.grantedMu.Unlock()

	done := make(chan struct{})
	go func() {
		client.PlayerDropped(Player{Source: 1, Name: "Rook", Identifiers: []string{"discord:111222333"}}, "Disconnected")
		close(done)
	}()

	frame := ac.next(t)
	require.Equal(t, model.EventAddRecentPlayer, frame.Event)

	// getAceGroups is never answered; past the sync budget the client
	// falls back to the set it granted at join
	frame = ac.next(t)
	require.Equal(t, model.EventGetAceGroups, frame.Event)

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("drop handler did not finish after the group lookup deadline")
	}

	host.mu.Lock()
	defer host.mu.Unlock()
	assert.Equal(t, [][2]string{{"111222333", "staff"}}, host.revoked)
}

func TestParseBanLength(t *testing.T) {
	cases := []struct {
		raw   string
		hours int
		ok    bool
	}{
		{"12", 12, true},
		{"12h", 12, true},
		{"2d", 48, true},
		{"0", 0, true},
		{"0d", 0, true},
		{" 3D ", 72, true},
		{"", 0, false},
		{"-4", 0, false},
		{"soon", 0, false},
	}

	for _, c := range cases {
		hours, err := ParseBanLength(c.raw)
		if c.ok {
			require.NoError(t, err, c.raw)
			assert.Equal(t, c.hours, hours, c.raw)
		} else {
			assert.ErrorIs(t, err, ErrBadLength, c.raw)
		}
	}
}
