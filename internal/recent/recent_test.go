package recent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAddAndQueryByServer(t *testing.T) {
	tracker := NewTracker(zap.NewNop())

	tracker.Add("server-1", "1", "Alice", "Disconnected.")
	tracker.Add("server-2", "2", "Bob", "Kicked.")
	tracker.Add("server-1", "3", "Carol", "Timed out.")

	entries := tracker.ForServer("server-1")
	require.Len(t, entries, 2)
	require.Equal(t, "Alice", entries[0].Name)
	require.Equal(t, "Carol", entries[1].Name)

	require.Len(t, tracker.ForServer("server-2"), 1)
	require.Empty(t, tracker.ForServer("server-3"))
}

func TestIgnoresUnresolvedPlayers(t *testing.T) {
	tracker := NewTracker(zap.NewNop())

	tracker.Add("server-1", "", "Ghost", "Disconnected.")
	tracker.Add("server-1", "1", "", "Disconnected.")

	require.Empty(t, tracker.ForServer("server-1"))
}

func TestEntriesEvictAfterTTL(t *testing.T) {
	tracker := NewTrackerTTL(zap.NewNop(), 50*time.Millisecond)

	tracker.Add("server-1", "1", "Alice", "Disconnected.")
	require.Len(t, tracker.ForServer("server-1"), 1)

	require.Eventually(t, func() bool {
		return len(tracker.ForServer("server-1")) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestEvictionIsPerEntry(t *testing.T) {
	tracker := NewTrackerTTL(zap.NewNop(), 80*time.Millisecond)

	tracker.Add("server-1", "1", "Alice", "Disconnected.")
	time.Sleep(50 * time.Millisecond)
	tracker.Add("server-1", "2", "Bob", "Disconnected.")

	require.Eventually(t, func() bool {
		entries := tracker.ForServer("server-1")
		return len(entries) == 1 && entries[0].Name == "Bob"
	}, time.Second, 5*time.Millisecond)
}
