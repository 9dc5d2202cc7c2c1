package recent

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultTTL is how long a dropped player stays in the recent list.
const DefaultTTL = 5 * time.Minute

// Entry is one recently-seen player on a server.
type Entry struct {
	ServerIdentifier string    `json:"serverIdentifier"`
	Identity         string    `json:"id"`
	Name             string    `json:"name"`
	Reason           string    `json:"reason"`
	SeenAt           time.Time `json:"seenAt"`
}

// Tracker keeps recently-dropped players per server. Entries evict
// themselves after the TTL, independent of anything else happening to the
// tracker. Queries are a linear filter; the list never grows beyond what
// the TTL keeps alive so no index is needed.
type Tracker struct {
	Log *zap.Logger

	ttl     time.Duration
	mu      sync.Mutex
	nextId  uint64
	entries []trackedEntry
}

type trackedEntry struct {
	id uint64
	Entry
}

func NewTracker(log *zap.Logger) *Tracker {
	return &Tracker{Log: log, ttl: DefaultTTL}
}

// NewTrackerTTL builds a tracker with a custom eviction window.
func NewTrackerTTL(log *zap.Logger, ttl time.Duration) *Tracker {
	return &Tracker{Log: log, ttl: ttl}
}

// Add records a dropped player and schedules its eviction. Entries with a
// missing identity or name are ignored, matching what endpoints may report
// for players that never resolved.
func (tracker *Tracker) Add(serverIdentifier string, identity string, name string, reason string) {
	if identity == "" || name == "" {
		return
	}

	tracker.mu.Lock()
	tracker.nextId++
	id := tracker.nextId
	tracker.entries = append(tracker.entries, trackedEntry{
		id: id,
		Entry: Entry{
			ServerIdentifier: serverIdentifier,
			Identity:         identity,
			Name:             name,
			Reason:           reason,
			SeenAt:           time.Now().UTC(),
		},
	})
	tracker.mu.Unlock()

	time.AfterFunc(tracker.ttl, func() {
		tracker.evict(id)
	})

	tracker.Log.Debug("recent player added",
		zap.String("server", serverIdentifier),
		zap.String("identity", identity))
}

// ForServer returns the live entries whose server identifier matches.
func (tracker *Tracker) ForServer(serverIdentifier string) []Entry {
	tracker.mu.Lock()
	defer tracker.mu.Unlock()

	out := []Entry{}
	for _, entry := range tracker.entries {
		if entry.ServerIdentifier == serverIdentifier {
			out = append(out, entry.Entry)
		}
	}
	return out
}

func (tracker *Tracker) evict(id uint64) {
	tracker.mu.Lock()
	defer tracker.mu.Unlock()

	for i, entry := range tracker.entries {
		if entry.id == id {
			tracker.entries = append(tracker.entries[:i], tracker.entries[i+1:]...)
			return
		}
	}
}
