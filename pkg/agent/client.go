package agent

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/fasthttp/websocket"
	"go.uber.org/zap"

	"github.com/relkin/staffportal/internal/model"
	"github.com/relkin/staffportal/pkg/identity"
)

// CallTimeout bounds every call the agent makes to the authority.
const CallTimeout = 5 * time.Second

var (
	ErrNotVerified = errors.New("endpoint verification rejected")
	ErrClosed      = errors.New("relay connection closed")
	ErrCallTimeout = errors.New("relay call timed out")
)

// Client is the game-server side of the relay. It holds one websocket
// connection to the authority, answers roster calls and player commands,
// and exposes the moderation calls in-game code needs.
type Client struct {
	Log  *zap.Logger
	Host Host

	endpoint   string
	token      string
	identifier string

	conn    *websocket.Conn
	writeMu sync.Mutex

	seq       uint64
	pendingMu sync.Mutex
	pending   map[uint64]chan model.Frame

	grantedMu sync.Mutex
	granted   map[string][]string

	closeOnce sync.Once
	closed    chan struct{}
}

func NewClient(log *zap.Logger, host Host, endpoint string, token string, identifier string) *Client {
	return &Client{
		Log:        log,
		Host:       host,
		endpoint:   endpoint,
		token:      token,
		identifier: identifier,
		pending:    map[uint64]chan model.Frame{},
		granted:    map[string][]string{},
		closed:     make(chan struct{}),
	}
}

// Connect dials the authority, verifies the shared secret and starts the
// read loop. A rejected secret is a hard error; the agent is useless
// without a verified session.
func (client *Client) Connect(ctx context.Context) error {
	u, err := url.Parse(client.endpoint)
	if err != nil {
		return err
	}
	q := u.Query()
	q.Set("token", client.token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return err
	}
	client.conn = conn

	go client.readLoop()

	var resp model.VerifyTokenResponse
	err = client.Call(ctx, model.EventVerifyToken, model.VerifyTokenRequest{Identifier: client.identifier}, &resp)
	if err != nil {
		client.Close()
		return err
	}
	if !resp.Verified {
		client.Close()
		return ErrNotVerified
	}

	client.Log.Info("relay session verified", zap.String("identifier", client.identifier))
	return nil
}

func (client *Client) Close() {
	client.closeOnce.Do(func() {
		close(client.closed)
		if client.conn != nil {
			_ = client.conn.Close()
		}
	})
}

// Emit sends an event without waiting for an answer.
func (client *Client) Emit(event string, payload interface{}) error {
	data, err := sonic.Marshal(payload)
	if err != nil {
		return err
	}
	return client.write(model.Frame{Event: event, Data: data})
}

// Call sends an event and decodes the authority's answer into out. A nil
// out discards the answer payload.
func (client *Client) Call(ctx context.Context, event string, payload interface{}, out interface{}) error {
	data, err := sonic.Marshal(payload)
	if err != nil {
		return err
	}

	seq := atomic.AddUint64(&client.seq, 1)
	ch := make(chan model.Frame, 1)

	client.pendingMu.Lock()
	client.pending[seq] = ch
	client.pendingMu.Unlock()

	defer func() {
		client.pendingMu.Lock()
		delete(client.pending, seq)
		client.pendingMu.Unlock()
	}()

	err = client.write(model.Frame{Event: event, Seq: seq, Data: data})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()

	select {
	case frame := <-ch:
		if out == nil {
			return nil
		}
		return sonic.Unmarshal(frame.Data, out)
	case <-ctx.Done():
		return ErrCallTimeout
	case <-client.closed:
		return ErrClosed
	}
}

func (client *Client) write(frame model.Frame) error {
	payload, err := sonic.Marshal(frame)
	if err != nil {
		return err
	}

	client.writeMu.Lock()
	defer client.writeMu.Unlock()

	select {
	case <-client.closed:
		return ErrClosed
	default:
	}

	return client.conn.WriteMessage(websocket.TextMessage, payload)
}

func (client *Client) readLoop() {
	defer client.Close()

	for {
		_, payload, err := client.conn.ReadMessage()
		if err != nil {
			return
		}

		var frame model.Frame
		if err := sonic.Unmarshal(payload, &frame); err != nil {
			client.Log.Debug("malformed relay frame", zap.Error(err))
			continue
		}

		if frame.Reply != 0 {
			client.pendingMu.Lock()
			ch, ok := client.pending[frame.Reply]
			client.pendingMu.Unlock()
			if ok {
				select {
				case ch <- frame:
				default:
				}
			}
			continue
		}

		client.handle(frame)
	}
}

func (client *Client) handle(frame model.Frame) {
	switch frame.Event {
	case model.EventWarnPlayer:
		client.handleWarn(frame)
	case model.EventKickPlayer:
		client.handleKick(frame)
	case model.EventBanPlayer:
		client.handleBan(frame)
	case model.EventGetPlayers:
		client.handleGetPlayers(frame)
	default:
		client.Log.Debug("unknown relay event", zap.String("event", frame.Event))
	}
}

func (client *Client) handleWarn(frame model.Frame) {
	var cmd model.PlayerCommand
	if err := sonic.Unmarshal(frame.Data, &cmd); err != nil {
		return
	}

	for _, player := range client.playersByIdentity(cmd.Id) {
		client.Host.Broadcast(fmt.Sprintf("%s has been warned: %s", player.Name, cmd.Reason))
	}
}

func (client *Client) handleKick(frame model.Frame) {
	var cmd model.PlayerCommand
	if err := sonic.Unmarshal(frame.Data, &cmd); err != nil {
		return
	}

	for _, player := range client.playersByIdentity(cmd.Id) {
		client.Host.Drop(player.Source, kickMessage(cmd.Reason))
	}
}

func (client *Client) handleBan(frame model.Frame) {
	var cmd model.PlayerCommand
	if err := sonic.Unmarshal(frame.Data, &cmd); err != nil {
		return
	}

	for _, player := range client.playersByIdentity(cmd.Id) {
		client.Host.Drop(player.Source, banMessage(cmd.Reason))
	}
}

func (client *Client) handleGetPlayers(frame model.Frame) {
	var req model.PlayersRequest
	if err := sonic.Unmarshal(frame.Data, &req); err != nil {
		return
	}

	// a filtered request for another endpoint gets a negative answer so
	// the authority can try the next candidate
	if req.Identifier != nil && *req.Identifier != client.identifier {
		client.reply(frame, model.PlayersResponse{Ok: false})
		return
	}

	roster := client.Host.Players()
	players := make([]model.Player, 0, len(roster))
	for _, player := range roster {
		id, _ := identity.Resolve(player.Identifiers)
		players = append(players, model.Player{
			Source: player.Source,
			Name:   player.Name,
			Id:     id,
			Ping:   player.Ping,
		})
	}

	client.reply(frame, model.PlayersResponse{Ok: true, Players: players})
}

func (client *Client) reply(frame model.Frame, payload interface{}) {
	data, err := sonic.Marshal(payload)
	if err != nil {
		return
	}
	err = client.write(model.Frame{Event: frame.Event, Reply: frame.Seq, Data: data})
	if err != nil {
		client.Log.Debug("relay reply failed", zap.String("event", frame.Event), zap.Error(err))
	}
}

func (client *Client) playersByIdentity(id string) []Player {
	var matched []Player
	for _, player := range client.Host.Players() {
		resolved, ok := identity.Resolve(player.Identifiers)
		if ok && resolved == id {
			matched = append(matched, player)
		}
	}
	return matched
}
