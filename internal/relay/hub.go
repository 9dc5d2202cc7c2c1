package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/relkin/staffportal/internal/model"
	"github.com/relkin/staffportal/internal/observability"
)

// Handler processes one inbound relay event. The returned payload, if any,
// answers the call when the endpoint asked for a reply. Returning
// ErrUnauthorized drops the call with nothing on the wire; any other error
// answers the call with a failure marker.
type Handler func(ctx context.Context, sess *Session, data json.RawMessage) (interface{}, error)

const (
	handlerTimeout = 10 * time.Second

	// CallTimeout bounds authority-initiated roster calls.
	CallTimeout = 5 * time.Second

	// inbound frames per second an endpoint may send, with burst headroom
	inboundRate  = 50
	inboundBurst = 100
)

// Hub owns every live endpoint session and dispatches their events. The
// shared secret is compared per privileged call, not once per connection;
// there is no session expiry concept on the relay.
type Hub struct {
	Log *zap.Logger

	token string

	mu           sync.RWMutex
	sessions     map[*Session]struct{}
	byIdentifier map[string]*Session

	handlers map[string]Handler
}

func NewHub(log *zap.Logger, token string) *Hub {
	return &Hub{
		Log:          log,
		token:        token,
		sessions:     map[*Session]struct{}{},
		byIdentifier: map[string]*Session{},
		handlers:     map[string]Handler{},
	}
}

// Handle registers the handler for an inbound event. Called once during
// wiring, before Serve.
func (hub *Hub) Handle(event string, handler Handler) {
	hub.handlers[event] = handler
}

// Serve runs one endpoint connection until it drops. token is the secret
// the endpoint presented at handshake time.
func (hub *Hub) Serve(conn Conn, token string) {
	sess := newSession(hub.Log, conn, token, rate.NewLimiter(rate.Limit(inboundRate), inboundBurst))

	hub.mu.Lock()
	hub.sessions[sess] = struct{}{}
	hub.mu.Unlock()

	go sess.writeLoop()
	hub.readLoop(sess)

	hub.mu.Lock()
	delete(hub.sessions, sess)
	if id := sess.Identifier(); id != "" && hub.byIdentifier[id] == sess {
		delete(hub.byIdentifier, id)
	}
	hub.mu.Unlock()

	sess.close()
	hub.Log.Info("endpoint disconnected", zap.String("identifier", sess.Identifier()))
}

func (hub *Hub) readLoop(sess *Session) {
	for {
		_, payload, err := sess.conn.ReadMessage()
		if err != nil {
			return
		}
		if !sess.limiter.Allow() {
			hub.Log.Warn("endpoint flooding relay, frame dropped", zap.String("identifier", sess.Identifier()))
			continue
		}

		var frame model.Frame
		if err := sonic.Unmarshal(payload, &frame); err != nil {
			hub.Log.Debug("malformed relay frame", zap.Error(err))
			continue
		}

		if frame.Reply != 0 {
			sess.deliver(frame)
			continue
		}
		hub.dispatch(sess, frame)
	}
}

// dispatch runs handlers synchronously so frames from one endpoint are
// processed in the order sent.
func (hub *Hub) dispatch(sess *Session, frame model.Frame) {
	if frame.Event == model.EventVerifyToken {
		hub.verify(sess, frame)
		return
	}

	handler, ok := hub.handlers[frame.Event]
	if !ok {
		hub.Log.Debug("unknown relay event", zap.String("event", frame.Event))
		return
	}

	// fail closed, and silently: an endpoint holding the wrong secret
	// learns nothing from the response
	if !hub.authorized(sess) {
		hub.Log.Debug("relay call dropped, invalid token",
			zap.String("event", frame.Event),
			zap.String("identifier", sess.Identifier()))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	result, err := handler(ctx, sess, frame.Data)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			hub.Log.Info("unauthorized relay call dropped",
				zap.String("event", frame.Event),
				zap.String("identifier", sess.Identifier()))
			return
		}
		observability.WithContext(ctx, hub.Log).Warn("relay handler failed",
			zap.String("event", frame.Event),
			zap.Error(err))
		if frame.Seq != 0 {
			sess.reply(frame.Event, frame.Seq, model.AckResponse{Ok: false})
		}
		return
	}

	if frame.Seq != 0 && result != nil {
		sess.reply(frame.Event, frame.Seq, result)
	}
}

func (hub *Hub) verify(sess *Session, frame model.Frame) {
	var req model.VerifyTokenRequest
	if err := sonic.Unmarshal(frame.Data, &req); err != nil {
		hub.Log.Debug("malformed verifyToken payload", zap.Error(err))
		return
	}

	verified := hub.authorized(sess) && req.Identifier != ""
	if verified {
		sess.identifier.Store(req.Identifier)
		// duplicate identifiers are accepted; the index is simply
		// last-writer-wins for roster queries
		hub.mu.Lock()
		hub.byIdentifier[req.Identifier] = sess
		hub.mu.Unlock()
		hub.Log.Info("endpoint verified", zap.String("identifier", req.Identifier))
	} else {
		hub.Log.Warn("endpoint failed verification", zap.String("identifier", req.Identifier))
	}

	if frame.Seq != 0 {
		sess.reply(frame.Event, frame.Seq, model.VerifyTokenResponse{Verified: verified})
	}
}

func (hub *Hub) authorized(sess *Session) bool {
	return hub.token != "" && sess.token == hub.token
}

// WarnPlayer tells every verified endpoint to warn the identity's players.
func (hub *Hub) WarnPlayer(identity string, reason string) {
	hub.broadcast(model.EventWarnPlayer, model.PlayerCommand{Id: identity, Reason: reason})
}

// KickPlayer tells every verified endpoint to drop the identity's players.
func (hub *Hub) KickPlayer(identity string, reason string) {
	hub.broadcast(model.EventKickPlayer, model.PlayerCommand{Id: identity, Reason: reason})
}

// BanPlayer tells every verified endpoint to drop the identity's players
// with the ban messaging.
func (hub *Hub) BanPlayer(identity string, reason string) {
	hub.broadcast(model.EventBanPlayer, model.PlayerCommand{Id: identity, Reason: reason})
}

func (hub *Hub) broadcast(event string, payload interface{}) {
	for _, sess := range hub.VerifiedSessions() {
		if err := sess.Emit(event, payload); err != nil {
			hub.Log.Debug("broadcast dropped for endpoint",
				zap.String("event", event),
				zap.String("identifier", sess.Identifier()),
				zap.Error(err))
		}
	}
}

// Players fetches a roster. With a non-nil identifier only that endpoint
// (last writer when duplicated) is asked; otherwise every verified
// endpoint is tried and the first positive answer wins.
func (hub *Hub) Players(ctx context.Context, identifier *string) ([]model.Player, error) {
	for _, sess := range hub.candidates(identifier) {
		callCtx, cancel := context.WithTimeout(ctx, CallTimeout)
		players, ok := sess.Players(callCtx, identifier)
		cancel()
		if ok {
			return players, nil
		}
	}
	return nil, ErrNoEndpoint
}

// Connected reports whether a verified endpoint holds the identifier.
func (hub *Hub) Connected(identifier string) bool {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	_, ok := hub.byIdentifier[identifier]
	return ok
}

// VerifiedSessions snapshots every session that completed verifyToken.
func (hub *Hub) VerifiedSessions() []*Session {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	out := make([]*Session, 0, len(hub.sessions))
	for sess := range hub.sessions {
		if sess.Verified() {
			out = append(out, sess)
		}
	}
	return out
}

func (hub *Hub) candidates(identifier *string) []*Session {
	if identifier != nil {
		hub.mu.RLock()
		sess, ok := hub.byIdentifier[*identifier]
		hub.mu.RUnlock()
		if !ok {
			return nil
		}
		return []*Session{sess}
	}
	return hub.VerifiedSessions()
}
