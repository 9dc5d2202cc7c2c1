package model

import "time"

// ModerationItem is one persisted warning, kick, commend or note. Records
// are immutable once written; the only mutation is removal by record id.
type ModerationItem struct {
	RecordId   int       `json:"recordId"`
	Id         string    `json:"id"`
	Staff      string    `json:"staff"`
	StaffName  string    `json:"staffName"`
	PlayerName string    `json:"playerName"`
	Reason     string    `json:"reason"`
	Date       time.Time `json:"date"`
}

// BanItem is a ban record; Length is in hours, 0 means permanent.
type BanItem struct {
	ModerationItem
	Length int `json:"length"`
}

// Active reports whether the ban still applies at the given instant. A
// permanent ban (length 0) is active regardless of its creation date.
func (ban BanItem) Active(now time.Time) bool {
	if ban.Length == 0 {
		return true
	}
	return !ban.Expiry().Before(now)
}

// Expiry is the instant a timed ban lapses. Meaningless for permanent bans.
func (ban BanItem) Expiry() time.Time {
	return ban.Date.Add(time.Duration(ban.Length) * time.Hour)
}

// ModerationActionRequest is a staff dashboard action against a player.
type ModerationActionRequest struct {
	Id         string `json:"id"`
	PlayerName string `json:"playerName"`
	Reason     string `json:"reason"`
	Length     *int   `json:"length,omitempty"`
}

// BanStatus is the answer to a ban check for one identity.
type BanStatus struct {
	Banned bool       `json:"banned"`
	Reason string     `json:"reason,omitempty"`
	Expiry *time.Time `json:"expiry,omitempty"`
}

// StaffStatsResponse aggregates the punishments one staff member issued.
type StaffStatsResponse struct {
	Username        string           `json:"username"`
	Warnings        []ModerationItem `json:"warnings"`
	Kicks           []ModerationItem `json:"kicks"`
	Bans            []BanItem        `json:"bans"`
	Commends        []ModerationItem `json:"commends"`
	TotalWarns      int              `json:"totalWarns"`
	TotalWarnsWeek  int              `json:"totalWarnsWeek"`
	TotalWarnsMonth int              `json:"totalWarnsMonth"`
	TotalKicks      int              `json:"totalKicks"`
	TotalKicksWeek  int              `json:"totalKicksWeek"`
	TotalKicksMonth int              `json:"totalKicksMonth"`
	TotalBans       int              `json:"totalBans"`
	TotalBansWeek   int              `json:"totalBansWeek"`
	TotalBansMonth  int              `json:"totalBansMonth"`
	PerMonth        []int            `json:"perMonth"`
}
