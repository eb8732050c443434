package bot

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/minimalists/api/internal/model"
	"github.com/freeeve/minimalists/api/internal/repository"
	"github.com/freeeve/minimalists/api/pkg/conquest"
)

// DefaultFactions are the faction IDs used when a config names none.
var DefaultFactions = []conquest.FactionID{"red", "blue", "green", "yellow"}

var factionColors = map[conquest.FactionID]string{
	"red":    "#d33",
	"blue":   "#36c",
	"green":  "#3a3",
	"yellow": "#db2",
}

// MatchConfig configures a single bot-vs-bot match.
type MatchConfig struct {
	Name        string
	Factions    map[conquest.FactionID]string // faction -> policy name
	Neutrals    int
	Seed        int64         // 0 = random
	MaxDuration time.Duration // simulated time before the match is called a draw
	Step        time.Duration // fixed simulation step
	DryRun      bool          // skip DB writes
	Catalog     *conquest.Catalog
	Recorder    DecisionRecorder
}

// FactionResult is one faction's final standing.
type FactionResult struct {
	Policy     string `json:"policy"`
	Constructs int    `json:"constructs"`
	Units      int    `json:"units"`
	Decisions  int    `json:"decisions"`
	Accepted   int    `json:"accepted"`
}

// MatchResult describes the outcome of a completed arena match.
type MatchResult struct {
	MatchID  string                               `json:"match_id,omitempty"`
	Seed     int64                                `json:"seed"`
	Winner   conquest.FactionID                   `json:"winner,omitempty"` // empty for a draw
	Duration time.Duration                        `json:"duration"`
	Steps    int                                  `json:"steps"`
	Factions map[conquest.FactionID]FactionResult `json:"factions"`
}

// RunMatch plays a full match between policies at a fixed step until one
// faction holds every claimed construct, MaxDuration of simulated time
// passes, or ctx is cancelled. Pass a nil repo for dry-run mode.
func RunMatch(ctx context.Context, cfg MatchConfig, repo repository.MatchRepository) (*MatchResult, error) {
	if cfg.MaxDuration == 0 {
		cfg.MaxDuration = 10 * time.Minute
	}
	if cfg.Step == 0 {
		cfg.Step = 100 * time.Millisecond
	}
	if cfg.Catalog == nil {
		cfg.Catalog = conquest.DefaultCatalog()
	}
	if cfg.Seed == 0 {
		cfg.Seed = NewSeed()
	}
	if len(cfg.Factions) == 0 {
		cfg.Factions = ParseFactionConfig("", 2)
	}
	if repo == nil {
		cfg.DryRun = true
	}

	ids := make([]conquest.FactionID, 0, len(cfg.Factions))
	for id := range cfg.Factions {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	w := conquest.NewWorld(cfg.Catalog,
		conquest.WithLogger(log.Logger),
		conquest.WithRand(rand.New(rand.NewSource(cfg.Seed))),
	)
	for _, id := range ids {
		if err := w.AddFaction(conquest.Faction{ID: id, Name: FactionName(id), Color: FactionColor(id), AIControlled: true}); err != nil {
			return nil, fmt.Errorf("add faction: %w", err)
		}
	}
	opts := DefaultMapOptions()
	if cfg.Neutrals > 0 {
		opts.Neutrals = cfg.Neutrals
	}
	if err := GenerateMap(w, cfg.Seed, ids, opts); err != nil {
		return nil, err
	}

	controllers := make([]*Controller, 0, len(ids))
	for _, id := range ids {
		var copts []ControllerOption
		if cfg.Recorder != nil {
			copts = append(copts, WithRecorder(cfg.Recorder))
		}
		c := NewController(w, id, PolicyForName(cfg.Factions[id]), copts...)
		c.Start()
		controllers = append(controllers, c)
	}

	result := &MatchResult{Seed: cfg.Seed, Factions: make(map[conquest.FactionID]FactionResult)}
	if !cfg.DryRun {
		result.MatchID = uuid.NewString()
		m := &model.Match{
			ID:       result.MatchID,
			Name:     cfg.Name,
			Seed:     cfg.Seed,
			Status:   model.MatchLive,
			Factions: MatchFactions(result.MatchID, w, cfg.Factions),
		}
		if err := repo.Create(ctx, m); err != nil {
			return nil, fmt.Errorf("create arena match: %w", err)
		}
	}

	status := model.MatchFinished
	var runErr error
	w.SetPhase(conquest.PhasePlaying)
	for w.Now() < cfg.MaxDuration {
		if err := ctx.Err(); err != nil {
			status, runErr = model.MatchAborted, err
			break
		}
		w.Step(cfg.Step)
		result.Steps++
		if winner, ok := w.Winner(); ok {
			result.Winner = winner
			break
		}
	}
	w.SetPhase(conquest.PhaseFinished)
	result.Duration = w.Now()

	v := w.View()
	for _, c := range controllers {
		decisions, accepted := c.Stats()
		c.Stop()
		result.Factions[c.Faction()] = FactionResult{
			Policy:     c.Policy().Name(),
			Constructs: len(v.Owned(c.Faction())),
			Units:      v.UnitTotal(c.Faction()),
			Decisions:  decisions,
			Accepted:   accepted,
		}
	}

	if !cfg.DryRun {
		snap := w.Snapshot()
		state, err := repository.EncodeSnapshot(&snap)
		if err != nil {
			return nil, err
		}
		// A cancelled match is still closed out as aborted.
		finishCtx := context.WithoutCancel(ctx)
		if err := repo.Finish(finishCtx, result.MatchID, status, string(result.Winner), result.Duration.Seconds(), state, MatchFactions(result.MatchID, w, cfg.Factions)); err != nil {
			if runErr != nil {
				return nil, errors.Join(runErr, fmt.Errorf("finish arena match: %w", err))
			}
			return nil, fmt.Errorf("finish arena match: %w", err)
		}
	}
	if runErr != nil {
		log.Info().Str("matchId", result.MatchID).Dur("duration", result.Duration).Msg("Arena match aborted")
		return nil, runErr
	}

	if result.Winner != "" {
		log.Info().Str("matchId", result.MatchID).Str("winner", string(result.Winner)).Dur("duration", result.Duration).Msg("Arena match won")
	} else {
		log.Info().Str("matchId", result.MatchID).Dur("duration", result.Duration).Msg("Arena match ended as draw (time limit)")
	}
	return result, nil
}

// FactionColor returns the display color for a default faction, or grey.
func FactionColor(id conquest.FactionID) string {
	if c, ok := factionColors[id]; ok {
		return c
	}
	return conquest.Unclaimed.Color
}

// MatchFactions builds the archive rows for every faction's current standing.
func MatchFactions(matchID string, w *conquest.World, policies map[conquest.FactionID]string) []model.MatchFaction {
	v := w.View()
	var out []model.MatchFaction
	for _, f := range w.Factions() {
		if f.IsUnclaimed() {
			continue
		}
		policy, ok := policies[f.ID]
		if !ok {
			policy = "human"
		}
		out = append(out, model.MatchFaction{
			MatchID:    matchID,
			FactionID:  string(f.ID),
			Name:       f.Name,
			Color:      f.Color,
			Policy:     policy,
			Constructs: len(v.Owned(f.ID)),
			Units:      v.UnitTotal(f.ID),
		})
	}
	return out
}

// FactionName title-cases a faction ID for display.
func FactionName(id conquest.FactionID) string {
	s := string(id)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// ParseFactionConfig parses a faction configuration string like
// "red=hard,*=easy". The first count default factions are always present;
// factions named explicitly are added on top.
func ParseFactionConfig(s string, count int) map[conquest.FactionID]string {
	cfg := make(map[conquest.FactionID]string)
	defaultPolicy := "easy"

	for _, part := range strings.Split(s, ",") {
		key, val, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		if key == "*" {
			defaultPolicy = val
		} else {
			cfg[conquest.FactionID(key)] = val
		}
	}

	// Fill in defaults
	for i := 0; i < count && i < len(DefaultFactions); i++ {
		if _, ok := cfg[DefaultFactions[i]]; !ok {
			cfg[DefaultFactions[i]] = defaultPolicy
		}
	}
	return cfg
}

// ParseMatchup seats count default factions, all playing policy.
func ParseMatchup(policy string, count int) map[conquest.FactionID]string {
	return ParseFactionConfig("*="+policy, count)
}
