package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPermanentBanAlwaysActive(t *testing.T) {
	ban := BanItem{
		ModerationItem: ModerationItem{Date: time.Now().Add(-10 * 365 * 24 * time.Hour)},
		Length:         0,
	}
	require.True(t, ban.Active(time.Now()))
	require.True(t, ban.Active(time.Now().Add(100*365*24*time.Hour)))
}

func TestTimedBanExpires(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ban := BanItem{
		ModerationItem: ModerationItem{Date: created},
		Length:         24,
	}

	require.True(t, ban.Active(created))
	require.True(t, ban.Active(created.Add(23*time.Hour)))
	require.True(t, ban.Active(created.Add(24*time.Hour)))
	require.False(t, ban.Active(created.Add(24*time.Hour+time.Second)))
	require.Equal(t, created.Add(24*time.Hour), ban.Expiry())
}
