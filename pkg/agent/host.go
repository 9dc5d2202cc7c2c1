package agent

// Player is one connected player as the game server sees it. Source is the
// server-local session handle, Identifiers the raw identity strings the
// platform exposes for the session.
type Player struct {
	Source      int
	Name        string
	Ping        int
	Identifiers []string
}

// Host is the surface the embedding game server provides. The agent never
// touches game state directly; every effect goes through here.
type Host interface {
	// Players returns everyone currently in the session.
	Players() []Player

	// Drop disconnects one player, showing them the message.
	Drop(source int, message string)

	// Broadcast shows a chat message to everyone in the session.
	Broadcast(message string)

	// GrantGroup attaches a permission group to an identity for this
	// session.
	GrantGroup(identity string, group string)

	// RevokeGroup detaches a previously granted permission group.
	RevokeGroup(identity string, group string)
}
