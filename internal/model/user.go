package model

import "time"

// User is a persisted player/staff record, keyed by Discord snowflake.
type User struct {
	Id            string    `json:"id"`
	Username      string    `json:"username"`
	Discriminator string    `json:"discriminator"`
	Avatar        string    `json:"avatar"`
	IngameName    string    `json:"ingameName"`
	Identifiers   []string  `json:"identifiers"`
	Playtime      int       `json:"playtime"`
	CreateDate    time.Time `json:"createDate"`
}

// ProfileResponse is the dashboard profile payload: the user's own record
// plus their moderation history and derived trust data.
type ProfileResponse struct {
	Id            string           `json:"id"`
	Username      string           `json:"username"`
	Discriminator string           `json:"discriminator"`
	Avatar        string           `json:"avatar"`
	Playtime      string           `json:"playtime"`
	Trustscore    int              `json:"trustscore"`
	Warnings      []ModerationItem `json:"warnings"`
	Kicks         []ModerationItem `json:"kicks"`
	Bans          []BanItem        `json:"bans"`
	Commends      []ModerationItem `json:"commends"`
}

// PlayerDetailResponse is the staff view of one player.
type PlayerDetailResponse struct {
	ProfileResponse
	IngameName  string           `json:"ingameName"`
	Identifiers []string         `json:"identifiers"`
	Notes       []ModerationItem `json:"notes"`
}

// PlayerSummary is one row of the staff players list.
type PlayerSummary struct {
	Id            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
	IngameName    string `json:"ingameName"`
	Playtime      string `json:"playtime"`
}

// TrustscoreResponse pairs the computed score with formatted playtime.
type TrustscoreResponse struct {
	Trustscore int    `json:"trustscore"`
	Playtime   string `json:"playtime"`
}
