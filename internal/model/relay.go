package model

import "encoding/json"

// Relay event names. Events flow in both directions over one websocket
// connection per endpoint; Seq/Reply pair calls with their answers the way
// socket.io acknowledgements do.
const (
	EventVerifyToken     = "verifyToken"
	EventAddUser         = "addUser"
	EventGetBanned       = "getBanned"
	EventAddWarn         = "addWarn"
	EventAddKick         = "addKick"
	EventAddBan          = "addBan"
	EventAddCommend      = "addCommend"
	EventGetAceGroups    = "getAceGroups"
	EventGetTrustscore   = "getTrustscore"
	EventAddRecentPlayer = "addRecentPlayer"

	EventWarnPlayer = "warnPlayer"
	EventKickPlayer = "kickPlayer"
	EventBanPlayer  = "banPlayer"
	EventGetPlayers = "getPlayers"
)

// Frame is the relay wire unit. Data is left raw so each handler decodes
// its own payload shape.
type Frame struct {
	Event string          `json:"event"`
	Seq   uint64          `json:"seq,omitempty"`
	Reply uint64          `json:"reply,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// VerifyTokenRequest asserts the endpoint's configured identifier.
type VerifyTokenRequest struct {
	Identifier string `json:"identifier"`
}

// VerifyTokenResponse reports whether the shared secret matched.
type VerifyTokenResponse struct {
	Verified bool `json:"verified"`
}

// AddUserRequest upserts a joining player's identity record centrally.
type AddUserRequest struct {
	Id          string   `json:"id"`
	Name        string   `json:"name"`
	Identifiers []string `json:"identifiers"`
}

// AckResponse is the generic success/failure marker for relay calls whose
// only interesting outcome is whether persistence worked.
type AckResponse struct {
	Ok bool `json:"ok"`
}

// IdentityRequest carries a single subject identity.
type IdentityRequest struct {
	Id string `json:"id"`
}

// ModerationRequest is an in-game moderation action relayed to the
// authority. Length is only meaningful for bans.
type ModerationRequest struct {
	Staff  string `json:"staff"`
	Id     string `json:"id"`
	Reason string `json:"reason"`
	Length int    `json:"length,omitempty"`
}

// TrustscoreRequest asks for the issuer's score, or the target's when set.
type TrustscoreRequest struct {
	Id       string `json:"id"`
	TargetId string `json:"targetId,omitempty"`
}

// AceGroupsResponse lists the ace groups an identity's roles grant.
type AceGroupsResponse struct {
	Groups []string `json:"groups"`
}

// RecentPlayerRequest reports a player drop to the recent tracker.
type RecentPlayerRequest struct {
	Identifier string `json:"identifier"`
	Id         string `json:"id"`
	Name       string `json:"name"`
	Reason     string `json:"reason"`
}

// PlayerCommand targets every connected player resolving to an identity.
type PlayerCommand struct {
	Id     string `json:"id"`
	Reason string `json:"reason"`
}

// PlayersRequest asks an endpoint for its roster. A nil identifier matches
// any endpoint.
type PlayersRequest struct {
	Identifier *string `json:"identifier"`
}

// PlayersResponse is the roster answer; Ok is false when the filter did
// not match the endpoint.
type PlayersResponse struct {
	Ok      bool     `json:"ok"`
	Players []Player `json:"players"`
}
