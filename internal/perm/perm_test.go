package perm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relkin/staffportal/internal/constant"
)

func testTable() *Table {
	return NewTable(map[string]Role{
		"100": {Name: "Moderator", Capabilities: []string{"staff", "warn", "kick", "tempban", "commend"}, AceGroup: "mod"},
		"200": {Name: "Admin", Capabilities: []string{"staff", "admin", "warn", "kick", "tempban", "permban", "commend", "removewarn", "removekick", "removeban", "removecommend"}, AceGroup: "admin"},
		"300": {Name: "Helper", Capabilities: []string{"staff"}, AceGroup: "mod"},
	})
}

func TestAuthorized(t *testing.T) {
	table := testTable()

	require.True(t, table.Authorized([]string{"100"}, "warn"))
	require.True(t, table.Authorized([]string{"999", "100"}, "kick"))
	require.False(t, table.Authorized([]string{"300"}, "warn"))
	require.False(t, table.Authorized([]string{"999"}, "warn"))
}

func TestAuthorizedEmptyRoles(t *testing.T) {
	table := testTable()
	require.False(t, table.Authorized(nil, "staff"))
	require.False(t, table.Authorized([]string{}, "staff"))
}

func TestTempbanPermbanNeverInterchangeable(t *testing.T) {
	table := testTable()

	// moderator can issue timed bans but not permanent ones
	require.True(t, table.Authorized([]string{"100"}, BanCapability(24)))
	require.False(t, table.Authorized([]string{"100"}, BanCapability(0)))

	// admin holds both
	require.True(t, table.Authorized([]string{"200"}, BanCapability(24)))
	require.True(t, table.Authorized([]string{"200"}, BanCapability(0)))
}

func TestBanCapability(t *testing.T) {
	require.Equal(t, constant.CapPermBan, BanCapability(0))
	require.Equal(t, constant.CapTempBan, BanCapability(1))
	require.Equal(t, constant.CapTempBan, BanCapability(24*365))
}

func TestAceGroups(t *testing.T) {
	table := testTable()

	require.Equal(t, []string{"mod"}, table.AceGroups([]string{"100"}))
	require.Equal(t, []string{"mod", "admin"}, table.AceGroups([]string{"100", "200"}))
	// duplicate group across roles collapses
	require.Equal(t, []string{"mod"}, table.AceGroups([]string{"100", "300"}))
	require.Empty(t, table.AceGroups(nil))
	require.Empty(t, table.AceGroups([]string{"999"}))
}
