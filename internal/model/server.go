package model

// GameServer is one registered game-server endpoint.
type GameServer struct {
	Identifier string `json:"identifier"`
	Name       string `json:"name"`
	Connected  bool   `json:"connected"`
}

// Player is a live in-session player as reported by an endpoint's roster.
type Player struct {
	Source int    `json:"source"`
	Name   string `json:"name"`
	Id     string `json:"id"`
	Ping   int    `json:"ping"`
}

// ServerCreateRequest registers a new endpoint identifier.
type ServerCreateRequest struct {
	Identifier string `json:"identifier"`
	Name       string `json:"name"`
}

// RecentPlayer is a recently-dropped player shown on the server page.
type RecentPlayer struct {
	Id     string `json:"id"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// ServerDetailResponse is the staff server page payload.
type ServerDetailResponse struct {
	Identifier    string         `json:"identifier"`
	Name          string         `json:"name"`
	Connected     bool           `json:"connected"`
	TotalPlayers  int            `json:"totalPlayers"`
	Players       []Player       `json:"players"`
	RecentPlayers []RecentPlayer `json:"recentPlayers"`
}
