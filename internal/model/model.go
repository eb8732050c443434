package model

import "time"

// Match status values.
const (
	MatchLive     = "live"
	MatchFinished = "finished"
	MatchAborted  = "aborted"
)

// Match is an archived or in-progress match record.
type Match struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Seed            int64          `json:"seed"`
	Status          string         `json:"status"` // live, finished, aborted
	Winner          string         `json:"winner,omitempty"`
	DurationSeconds float64        `json:"duration_seconds"`
	CreatedAt       time.Time      `json:"created_at"`
	FinishedAt      *time.Time     `json:"finished_at,omitempty"`
	Factions        []MatchFaction `json:"factions,omitempty"`
}

// MatchFaction is one faction's seat and final standing in a match.
type MatchFaction struct {
	MatchID    string `json:"match_id"`
	FactionID  string `json:"faction_id"`
	Name       string `json:"name"`
	Color      string `json:"color,omitempty"`
	Policy     string `json:"policy"` // policy name, or "human"
	Constructs int    `json:"constructs"`
	Units      int    `json:"units"`
}
