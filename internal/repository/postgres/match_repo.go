package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/freeeve/minimalists/api/internal/model"
)

// MatchRepo handles match and match_faction database operations.
type MatchRepo struct {
	db *sql.DB
}

// NewMatchRepo creates a MatchRepo.
func NewMatchRepo(db *sql.DB) *MatchRepo {
	return &MatchRepo{db: db}
}

// Create inserts a live match and its faction seats.
func (r *MatchRepo) Create(ctx context.Context, m *model.Match) error {
	policies := make(map[string]string, len(m.Factions))
	for _, f := range m.Factions {
		policies[f.FactionID] = f.Policy
	}
	policyJSON, err := json.Marshal(policies)
	if err != nil {
		return fmt.Errorf("marshal policies: %w", err)
	}
	if m.Status == "" {
		m.Status = model.MatchLive
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx,
		`INSERT INTO matches (id, name, seed, policies, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		m.ID, m.Name, m.Seed, policyJSON, m.Status,
	).Scan(&m.CreatedAt)
	if err != nil {
		return fmt.Errorf("create match: %w", err)
	}
	if err := upsertFactions(ctx, tx, m.ID, m.Factions); err != nil {
		return err
	}
	return tx.Commit()
}

// Finish records a match's outcome, its compressed final state and each
// faction's final standing.
func (r *MatchRepo) Finish(ctx context.Context, id, status, winner string, durationSeconds float64, finalState []byte, factions []model.MatchFaction) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE matches SET status = $2, winner = NULLIF($3, ''), duration_seconds = $4,
		        final_state = $5, finished_at = now()
		 WHERE id = $1`,
		id, status, winner, durationSeconds, finalState,
	)
	if err != nil {
		return fmt.Errorf("finish match: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish match %s: %w", id, sql.ErrNoRows)
	}
	if err := upsertFactions(ctx, tx, id, factions); err != nil {
		return err
	}
	return tx.Commit()
}

func upsertFactions(ctx context.Context, tx *sql.Tx, matchID string, factions []model.MatchFaction) error {
	for _, f := range factions {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO match_factions (match_id, faction_id, name, color, policy, constructs, units)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (match_id, faction_id) DO UPDATE
			 SET constructs = EXCLUDED.constructs, units = EXCLUDED.units`,
			matchID, f.FactionID, f.Name, f.Color, f.Policy, f.Constructs, f.Units,
		)
		if err != nil {
			return fmt.Errorf("upsert match faction %s: %w", f.FactionID, err)
		}
	}
	return nil
}

// FindByID returns a match with its factions, or nil if it does not exist.
func (r *MatchRepo) FindByID(ctx context.Context, id string) (*model.Match, error) {
	var m model.Match
	var winner sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, seed, status, winner, duration_seconds, created_at, finished_at
		 FROM matches WHERE id = $1`, id,
	).Scan(&m.ID, &m.Name, &m.Seed, &m.Status, &winner, &m.DurationSeconds, &m.CreatedAt, &m.FinishedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find match: %w", err)
	}
	m.Winner = winner.String

	factions, err := r.listFactions(ctx, id)
	if err != nil {
		return nil, err
	}
	m.Factions = factions
	return &m, nil
}

// ListRecent returns the most recently created matches, without factions.
func (r *MatchRepo) ListRecent(ctx context.Context, limit int) ([]model.Match, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, seed, status, winner, duration_seconds, created_at, finished_at
		 FROM matches ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	var matches []model.Match
	for rows.Next() {
		var m model.Match
		var winner sql.NullString
		if err := rows.Scan(&m.ID, &m.Name, &m.Seed, &m.Status, &winner, &m.DurationSeconds, &m.CreatedAt, &m.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		m.Winner = winner.String
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// FinalState returns the compressed final snapshot, or nil if the match is
// unknown or unfinished.
func (r *MatchRepo) FinalState(ctx context.Context, id string) ([]byte, error) {
	var state []byte
	err := r.db.QueryRowContext(ctx, `SELECT final_state FROM matches WHERE id = $1`, id).Scan(&state)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("final state: %w", err)
	}
	return state, nil
}

func (r *MatchRepo) listFactions(ctx context.Context, matchID string) ([]model.MatchFaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT match_id, faction_id, name, color, policy, constructs, units
		 FROM match_factions WHERE match_id = $1 ORDER BY faction_id`, matchID)
	if err != nil {
		return nil, fmt.Errorf("list match factions: %w", err)
	}
	defer rows.Close()

	var out []model.MatchFaction
	for rows.Next() {
		var f model.MatchFaction
		if err := rows.Scan(&f.MatchID, &f.FactionID, &f.Name, &f.Color, &f.Policy, &f.Constructs, &f.Units); err != nil {
			return nil, fmt.Errorf("scan match faction: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
