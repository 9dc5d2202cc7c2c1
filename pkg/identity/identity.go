package identity

import "strings"

// DiscordPrefix is the provider tag the game server puts in front of a
// player's Discord identifier.
const DiscordPrefix = "discord:"

// Resolve scans the session identifiers in the order the game server
// reported them and returns the first Discord identity with the provider
// prefix stripped. A player without a Discord identifier is a normal
// outcome, reported as ok=false rather than an error.
func Resolve(identifiers []string) (string, bool) {
	for _, identifier := range identifiers {
		if strings.HasPrefix(identifier, DiscordPrefix) {
			return strings.TrimPrefix(identifier, DiscordPrefix), true
		}
	}
	return "", false
}

// Has reports whether any identifier carries the Discord provider tag.
func Has(identifiers []string) bool {
	_, ok := Resolve(identifiers)
	return ok
}

// FilterShareable drops identifiers that should not be stored centrally,
// currently only the player's IP identifier.
func FilterShareable(identifiers []string) []string {
	out := make([]string, 0, len(identifiers))
	for _, identifier := range identifiers {
		if strings.HasPrefix(identifier, "ip:") {
			continue
		}
		out = append(out, identifier)
	}
	return out
}
