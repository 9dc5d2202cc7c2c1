package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/relkin/staffportal/internal/model"
)

// fakeConn is an in-memory stand-in for a websocket connection.
type fakeConn struct {
	in     chan []byte
	out    chan []byte
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan []byte, 16),
		out:    make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-c.in:
		return 1, data, nil
	case <-c.closed:
		return 0, nil, errors.New("connection closed")
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	select {
	case c.out <- data:
		return nil
	case <-c.closed:
		return errors.New("connection closed")
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) push(t *testing.T, frame model.Frame) {
	t.Helper()
	data, err := sonic.Marshal(frame)
	require.NoError(t, err)
	c.in <- data
}

func (c *fakeConn) next(t *testing.T) model.Frame {
	t.Helper()
	select {
	case data := <-c.out:
		var frame model.Frame
		require.NoError(t, sonic.Unmarshal(data, &frame))
		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("no frame received from hub")
		return model.Frame{}
	}
}

func (c *fakeConn) expectSilence(t *testing.T) {
	t.Helper()
	select {
	case data := <-c.out:
		t.Fatalf("expected no frame, got %s", data)
	case <-time.After(150 * time.Millisecond):
	}
}

// answerRoster plays the endpoint side of one getPlayers call.
func answerRoster(conn *fakeConn, players []model.Player) {
	select {
	case payload := <-conn.out:
		var call model.Frame
		if err := sonic.Unmarshal(payload, &call); err != nil || call.Event != model.EventGetPlayers {
			return
		}
		data, err := sonic.Marshal(model.PlayersResponse{Ok: true, Players: players})
		if err != nil {
			return
		}
		reply, err := sonic.Marshal(model.Frame{Event: model.EventGetPlayers, Reply: call.Seq, Data: data})
		if err != nil {
			return
		}
		conn.in <- reply
	case <-time.After(2 * time.Second):
	}
}

func raw(t *testing.T, payload interface{}) json.RawMessage {
	t.Helper()
	data, err := sonic.Marshal(payload)
	require.NoError(t, err)
	return data
}

func serve(t *testing.T, hub *Hub, token string) *fakeConn {
	t.Helper()
	conn := newFakeConn()
	done := make(chan struct{})
	go func() {
		hub.Serve(conn, token)
		close(done)
	}()
	t.Cleanup(func() {
		_ = conn.Close()
		<-done
	})
	return conn
}

func verifyEndpoint(t *testing.T, conn *fakeConn, identifier string) {
	t.Helper()
	conn.push(t, model.Frame{
		Event: model.EventVerifyToken,
		Seq:   1,
		Data:  raw(t, model.VerifyTokenRequest{Identifier: identifier}),
	})
	reply := conn.next(t)
	var resp model.VerifyTokenResponse
	require.NoError(t, sonic.Unmarshal(reply.Data, &resp))
	require.True(t, resp.Verified)
}

func TestVerifyTokenCorrectSecret(t *testing.T) {
	hub := NewHub(zap.NewNop(), "secret")
	conn := serve(t, hub, "secret")

	verifyEndpoint(t, conn, "server-1")
	require.True(t, hub.Connected("server-1"))
}

func TestVerifyTokenWrongSecret(t *testing.T) {
	hub := NewHub(zap.NewNop(), "secret")

	called := false
	hub.Handle(model.EventAddUser, func(ctx context.Context, sess *Session, data json.RawMessage) (interface{}, error) {
		called = true
		return model.AckResponse{Ok: true}, nil
	})

	conn := serve(t, hub, "wrong")
	conn.push(t, model.Frame{
		Event: model.EventVerifyToken,
		Seq:   1,
		Data:  raw(t, model.VerifyTokenRequest{Identifier: "server-1"}),
	})

	reply := conn.next(t)
	var resp model.VerifyTokenResponse
	require.NoError(t, sonic.Unmarshal(reply.Data, &resp))
	require.False(t, resp.Verified)
	require.False(t, hub.Connected("server-1"))

	// every later privileged call is dropped with nothing on the wire
	conn.push(t, model.Frame{
		Event: model.EventAddUser,
		Seq:   2,
		Data:  raw(t, model.AddUserRequest{Id: "1", Name: "Alice"}),
	})
	conn.expectSilence(t)
	require.False(t, called)
}

func TestDispatchRepliesToCalls(t *testing.T) {
	hub := NewHub(zap.NewNop(), "secret")
	hub.Handle(model.EventAddUser, func(ctx context.Context, sess *Session, data json.RawMessage) (interface{}, error) {
		var req model.AddUserRequest
		require.NoError(t, sonic.Unmarshal(data, &req))
		require.Equal(t, "42", req.Id)
		return model.AckResponse{Ok: true}, nil
	})

	conn := serve(t, hub, "secret")
	verifyEndpoint(t, conn, "server-1")

	conn.push(t, model.Frame{
		Event: model.EventAddUser,
		Seq:   7,
		Data:  raw(t, model.AddUserRequest{Id: "42", Name: "Alice"}),
	})

	reply := conn.next(t)
	require.Equal(t, uint64(7), reply.Reply)
	var ack model.AckResponse
	require.NoError(t, sonic.Unmarshal(reply.Data, &ack))
	require.True(t, ack.Ok)
}

func TestHandlerFailureAnswersWithFailureMarker(t *testing.T) {
	hub := NewHub(zap.NewNop(), "secret")
	hub.Handle(model.EventGetBanned, func(ctx context.Context, sess *Session, data json.RawMessage) (interface{}, error) {
		return nil, errors.New("storage down")
	})

	conn := serve(t, hub, "secret")
	verifyEndpoint(t, conn, "server-1")

	conn.push(t, model.Frame{
		Event: model.EventGetBanned,
		Seq:   3,
		Data:  raw(t, model.IdentityRequest{Id: "42"}),
	})

	reply := conn.next(t)
	require.Equal(t, uint64(3), reply.Reply)
	var ack model.AckResponse
	require.NoError(t, sonic.Unmarshal(reply.Data, &ack))
	require.False(t, ack.Ok)
}

func TestUnauthorizedHandlerResultIsSilent(t *testing.T) {
	hub := NewHub(zap.NewNop(), "secret")
	hub.Handle(model.EventAddWarn, func(ctx context.Context, sess *Session, data json.RawMessage) (interface{}, error) {
		return nil, ErrUnauthorized
	})

	conn := serve(t, hub, "secret")
	verifyEndpoint(t, conn, "server-1")

	conn.push(t, model.Frame{
		Event: model.EventAddWarn,
		Data:  raw(t, model.ModerationRequest{Staff: "1", Id: "2", Reason: "mic spam"}),
	})
	conn.expectSilence(t)
}

func TestBroadcastReachesVerifiedEndpoints(t *testing.T) {
	hub := NewHub(zap.NewNop(), "secret")

	verified := serve(t, hub, "secret")
	verifyEndpoint(t, verified, "server-1")
	unverified := serve(t, hub, "secret")

	hub.WarnPlayer("42", "mic spam")

	frame := verified.next(t)
	require.Equal(t, model.EventWarnPlayer, frame.Event)
	var cmd model.PlayerCommand
	require.NoError(t, sonic.Unmarshal(frame.Data, &cmd))
	require.Equal(t, "42", cmd.Id)
	require.Equal(t, "mic spam", cmd.Reason)

	unverified.expectSilence(t)
}

func TestPlayersRosterCall(t *testing.T) {
	hub := NewHub(zap.NewNop(), "secret")
	conn := serve(t, hub, "secret")
	verifyEndpoint(t, conn, "server-1")

	go answerRoster(conn, []model.Player{{Source: 1, Name: "Alice", Id: "42", Ping: 30}})

	identifier := "server-1"
	players, err := hub.Players(context.Background(), &identifier)
	require.NoError(t, err)
	require.Len(t, players, 1)
	require.Equal(t, "Alice", players[0].Name)
}

func TestPlayersNoEndpoint(t *testing.T) {
	hub := NewHub(zap.NewNop(), "secret")
	identifier := "nowhere"
	_, err := hub.Players(context.Background(), &identifier)
	require.ErrorIs(t, err, ErrNoEndpoint)
}

func TestDuplicateIdentifierLastWriterWins(t *testing.T) {
	hub := NewHub(zap.NewNop(), "secret")

	first := serve(t, hub, "secret")
	verifyEndpoint(t, first, "server-1")
	second := serve(t, hub, "secret")
	verifyEndpoint(t, second, "server-1")

	go answerRoster(second, []model.Player{{Name: "Bob", Id: "7"}})

	identifier := "server-1"
	players, err := hub.Players(context.Background(), &identifier)
	require.NoError(t, err)
	require.Len(t, players, 1)
	require.Equal(t, "Bob", players[0].Name)
}
