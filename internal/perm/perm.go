package perm

import (
	"fmt"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/relkin/staffportal/internal/constant"
)

// Role is one entry of the role→capability table: the set of actions a
// Discord role authorizes and the ace group granted in-game for it.
type Role struct {
	Name         string   `koanf:"name"`
	Capabilities []string `koanf:"capabilities"`
	AceGroup     string   `koanf:"ace_group"`
}

// Table maps Discord role ids to their capabilities. Loaded once at
// startup and read-only afterwards.
type Table struct {
	roles map[string]Role
}

// Load reads the roles file (JSON) and builds the table.
func Load(path string) (*Table, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), json.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load roles file %s: %w", path, err)
	}

	roles := map[string]Role{}
	if err := k.Unmarshal("roles", &roles); err != nil {
		return nil, fmt.Errorf("failed to parse roles file %s: %w", path, err)
	}

	return &Table{roles: roles}, nil
}

// NewTable builds a table directly, used by tests and embedders.
func NewTable(roles map[string]Role) *Table {
	return &Table{roles: roles}
}

// Authorized reports whether any of the subject's roles grants the action.
// An empty role set never authorizes anything.
func (table *Table) Authorized(roles []string, action string) bool {
	for _, roleId := range roles {
		role, ok := table.roles[roleId]
		if !ok {
			continue
		}
		for _, capability := range role.Capabilities {
			if capability == action {
				return true
			}
		}
	}
	return false
}

// AceGroups returns the ace group for every role the subject holds, in the
// order the roles were given, without duplicates.
func (table *Table) AceGroups(roles []string) []string {
	groups := []string{}
	seen := map[string]bool{}
	for _, roleId := range roles {
		role, ok := table.roles[roleId]
		if !ok || role.AceGroup == "" || seen[role.AceGroup] {
			continue
		}
		seen[role.AceGroup] = true
		groups = append(groups, role.AceGroup)
	}
	return groups
}

// BanCapability returns the capability a ban of the given length requires.
// Permanent bans (length 0) need permban, timed bans need tempban; the two
// are never interchangeable.
func BanCapability(lengthHours int) string {
	if lengthHours == 0 {
		return constant.CapPermBan
	}
	return constant.CapTempBan
}
