package relay

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/relkin/staffportal/internal/model"
)

// Conn is the slice of a websocket connection the relay needs. Satisfied
// by the fiber contrib websocket conn; tests plug in an in-memory pipe.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// websocket text message type, kept here so the relay core stays free of
// the transport import.
const textMessage = 1

const outboundQueueSize = 64

// Session is one endpoint connection. A single writer goroutine owns the
// socket's write side; everything outbound goes through the out channel.
type Session struct {
	Log *zap.Logger

	conn    Conn
	token   string
	limiter *rate.Limiter

	seq     uint64
	out     chan model.Frame
	closed  chan struct{}
	once    sync.Once
	mu      sync.Mutex
	pending map[uint64]chan model.Frame

	identifier atomic.Value // string, set on successful verifyToken
}

func newSession(log *zap.Logger, conn Conn, token string, limiter *rate.Limiter) *Session {
	sess := &Session{
		Log:     log,
		conn:    conn,
		token:   token,
		limiter: limiter,
		out:     make(chan model.Frame, outboundQueueSize),
		closed:  make(chan struct{}),
		pending: map[uint64]chan model.Frame{},
	}
	sess.identifier.Store("")
	return sess
}

// Identifier is the server identifier asserted by verifyToken, empty until
// the endpoint verified.
func (sess *Session) Identifier() string {
	return sess.identifier.Load().(string)
}

// Verified reports whether the endpoint completed verifyToken.
func (sess *Session) Verified() bool {
	return sess.Identifier() != ""
}

// Emit queues a fire-and-forget event to the endpoint.
func (sess *Session) Emit(event string, payload interface{}) error {
	data, err := marshal(payload)
	if err != nil {
		return err
	}
	return sess.send(model.Frame{Event: event, Data: data})
}

// Call sends an event expecting a reply and waits for it, bounded by ctx.
// A slow endpoint is the caller's problem to proceed past; the reply may
// still arrive afterwards and is then discarded.
func (sess *Session) Call(ctx context.Context, event string, payload interface{}) (model.Frame, error) {
	data, err := marshal(payload)
	if err != nil {
		return model.Frame{}, err
	}

	seq := atomic.AddUint64(&sess.seq, 1)
	ch := make(chan model.Frame, 1)

	sess.mu.Lock()
	sess.pending[seq] = ch
	sess.mu.Unlock()
	defer func() {
		sess.mu.Lock()
		delete(sess.pending, seq)
		sess.mu.Unlock()
	}()

	if err := sess.send(model.Frame{Event: event, Seq: seq, Data: data}); err != nil {
		return model.Frame{}, err
	}

	select {
	case frame := <-ch:
		return frame, nil
	case <-ctx.Done():
		return model.Frame{}, ErrCallTimeout
	case <-sess.closed:
		return model.Frame{}, ErrClosed
	}
}

// Players asks this endpoint for its roster. ok is false when the endpoint
// rejected the filter or did not answer in time.
func (sess *Session) Players(ctx context.Context, identifier *string) ([]model.Player, bool) {
	frame, err := sess.Call(ctx, model.EventGetPlayers, model.PlayersRequest{Identifier: identifier})
	if err != nil {
		return nil, false
	}
	var resp model.PlayersResponse
	if err := sonic.Unmarshal(frame.Data, &resp); err != nil {
		return nil, false
	}
	if !resp.Ok {
		return nil, false
	}
	return resp.Players, true
}

func (sess *Session) reply(event string, seq uint64, payload interface{}) {
	data, err := marshal(payload)
	if err != nil {
		sess.Log.Warn("failed to encode relay reply", zap.String("event", event), zap.Error(err))
		return
	}
	if err := sess.send(model.Frame{Event: event, Reply: seq, Data: data}); err != nil {
		sess.Log.Debug("failed to queue relay reply", zap.String("event", event), zap.Error(err))
	}
}

func (sess *Session) deliver(frame model.Frame) {
	sess.mu.Lock()
	ch, ok := sess.pending[frame.Reply]
	sess.mu.Unlock()
	if !ok {
		// caller already proceeded past this reply
		sess.Log.Debug("late relay reply discarded", zap.Uint64("reply", frame.Reply))
		return
	}
	select {
	case ch <- frame:
	default:
	}
}

func (sess *Session) send(frame model.Frame) error {
	select {
	case sess.out <- frame:
		return nil
	case <-sess.closed:
		return ErrClosed
	default:
		return ErrBackpressure
	}
}

func (sess *Session) writeLoop() {
	for {
		select {
		case frame := <-sess.out:
			data, err := sonic.Marshal(frame)
			if err != nil {
				sess.Log.Warn("failed to encode relay frame", zap.Error(err))
				continue
			}
			if err := sess.conn.WriteMessage(textMessage, data); err != nil {
				sess.close()
				return
			}
		case <-sess.closed:
			return
		}
	}
}

func (sess *Session) close() {
	sess.once.Do(func() {
		close(sess.closed)
		_ = sess.conn.Close()
	})
}

func marshal(payload interface{}) (json.RawMessage, error) {
	if payload == nil {
		return nil, nil
	}
	data, err := sonic.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return data, nil
}
