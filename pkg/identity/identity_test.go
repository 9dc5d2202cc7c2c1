package identity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveFirstMatchWins(t *testing.T) {
	id, ok := Resolve([]string{
		"steam:110000100000001",
		"discord:123456789012345678",
		"discord:999999999999999999",
	})
	require.True(t, ok)
	require.Equal(t, "123456789012345678", id)
}

func TestResolveNoneFound(t *testing.T) {
	id, ok := Resolve([]string{"steam:110000100000001", "license:abcdef"})
	require.False(t, ok)
	require.Empty(t, id)

	id, ok = Resolve(nil)
	require.False(t, ok)
	require.Empty(t, id)
}

func TestResolveScanOrderIsReportedOrder(t *testing.T) {
	id, ok := Resolve([]string{"discord:2", "discord:1"})
	require.True(t, ok)
	require.Equal(t, "2", id)
}

func TestFilterShareableDropsIP(t *testing.T) {
	out := FilterShareable([]string{"ip:10.0.0.1", "discord:1", "steam:2"})
	require.Equal(t, []string{"discord:1", "steam:2"}, out)
}
