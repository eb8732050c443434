package repository

import (
	"context"
	"time"

	"github.com/freeeve/minimalists/api/internal/model"
	"github.com/freeeve/minimalists/api/pkg/conquest"
)

// MatchRepository archives matches and their results (Postgres).
type MatchRepository interface {
	Create(ctx context.Context, m *model.Match) error
	Finish(ctx context.Context, id, status, winner string, durationSeconds float64, finalState []byte, factions []model.MatchFaction) error
	FindByID(ctx context.Context, id string) (*model.Match, error)
	ListRecent(ctx context.Context, limit int) ([]model.Match, error)
	FinalState(ctx context.Context, id string) ([]byte, error)
}

// MatchCache holds live match snapshots for spectators (Redis).
type MatchCache interface {
	SetSnapshot(ctx context.Context, matchID string, snap *conquest.Snapshot, ttl time.Duration) error
	GetSnapshot(ctx context.Context, matchID string) (*conquest.Snapshot, error)
	AddLive(ctx context.Context, matchID string) error
	RemoveLive(ctx context.Context, matchID string) error
	ListLive(ctx context.Context) ([]string, error)
	DeleteMatchData(ctx context.Context, matchID string) error
}
