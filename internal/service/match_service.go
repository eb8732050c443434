package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/minimalists/api/internal/bot"
	"github.com/freeeve/minimalists/api/internal/logger"
	"github.com/freeeve/minimalists/api/internal/model"
	"github.com/freeeve/minimalists/api/internal/repository"
	"github.com/freeeve/minimalists/api/pkg/conquest"
)

// PolicyHuman marks a faction seat driven by seat-token commands.
const PolicyHuman = "human"

var (
	ErrMatchNotFound   = errors.New("match not found")
	ErrMatchEnded      = errors.New("match has ended")
	ErrTooManyMatches  = errors.New("too many live matches")
	ErrInvalidFactions = errors.New("invalid faction setup")
	ErrUnknownPolicy   = errors.New("unknown policy")
)

// SeatIssuer signs seat tokens for human factions. Implemented by
// auth.JWTManager.
type SeatIssuer interface {
	GenerateSeatToken(matchID, factionID string) (string, error)
}

// MatchRecorder receives match lifecycle metrics. Implemented by
// metrics.MatchMetricsCollector.
type MatchRecorder interface {
	MatchStarted()
	MatchEnded(status string)
	ObserveTick(d time.Duration)
	RecordCommand(typ string, accepted bool)
	RecordCapture()
}

type noopRecorder struct{}

func (noopRecorder) MatchStarted()              {}
func (noopRecorder) MatchEnded(string)          {}
func (noopRecorder) ObserveTick(time.Duration)  {}
func (noopRecorder) RecordCommand(string, bool) {}
func (noopRecorder) RecordCapture()             {}

// Options tune the live match loop.
type Options struct {
	TickRate        int           // world steps per wall-clock second
	Step            time.Duration // simulated time per step; defaults to 1/TickRate
	MaxDuration     time.Duration // simulated time before a match is called a draw
	SnapshotEvery   int           // ticks between cached snapshots; 0 disables
	SnapshotTTL     time.Duration
	MaxLive         int
	DefaultNeutrals int
	Catalog         *conquest.Catalog
}

func (o Options) withDefaults() Options {
	if o.TickRate <= 0 {
		o.TickRate = 20
	}
	if o.Step <= 0 {
		o.Step = o.interval()
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 30 * time.Minute
	}
	if o.DefaultNeutrals <= 0 {
		o.DefaultNeutrals = bot.DefaultMapOptions().Neutrals
	}
	if o.Catalog == nil {
		o.Catalog = conquest.DefaultCatalog()
	}
	return o
}

func (o Options) interval() time.Duration {
	return time.Second / time.Duration(o.TickRate)
}

// FactionSeat describes one faction in a new match.
type FactionSeat struct {
	ID     string `json:"id" validate:"omitempty,alphanum,max=16"`
	Name   string `json:"name" validate:"max=32"`
	Color  string `json:"color" validate:"omitempty,hexcolor"`
	Policy string `json:"policy" validate:"required"` // policy name, difficulty or "human"
}

// CreateMatchRequest is the input to CreateMatch.
type CreateMatchRequest struct {
	Name     string        `json:"name" validate:"max=64"`
	Factions []FactionSeat `json:"factions" validate:"required,min=2,max=4,dive"`
	Neutrals int           `json:"neutrals" validate:"gte=0,lte=64"`
	Seed     int64         `json:"seed"`
}

// CreatedMatch is returned from CreateMatch. Seats holds a token per human
// faction.
type CreatedMatch struct {
	ID    string            `json:"id"`
	Seed  int64             `json:"seed"`
	Seats map[string]string `json:"seats,omitempty"`
}

// MatchSummary describes a running match.
type MatchSummary struct {
	ID        string               `json:"id"`
	Name      string               `json:"name"`
	Seed      int64                `json:"seed"`
	Phase     conquest.Phase       `json:"phase"`
	Time      float64              `json:"time"`
	CreatedAt time.Time            `json:"created_at"`
	Factions  []model.MatchFaction `json:"factions"`
}

// MatchService owns every live match. Each match runs on its own
// goroutine, which is the only code touching that match's World.
type MatchService struct {
	repo        repository.MatchRepository
	cache       repository.MatchCache
	broadcaster Broadcaster
	seats       SeatIssuer
	metrics     MatchRecorder
	decisions   bot.DecisionRecorder
	opts        Options

	mu      sync.Mutex
	matches map[string]*liveMatch
	wg      sync.WaitGroup
}

// NewMatchService creates a MatchService. repo and cache may be nil, in
// which case matches are neither archived nor cached.
func NewMatchService(repo repository.MatchRepository, cache repository.MatchCache, broadcaster Broadcaster, seats SeatIssuer, opts Options) *MatchService {
	if broadcaster == nil {
		broadcaster = NoopBroadcaster{}
	}
	return &MatchService{
		repo:        repo,
		cache:       cache,
		broadcaster: broadcaster,
		seats:       seats,
		metrics:     noopRecorder{},
		opts:        opts.withDefaults(),
		matches:     make(map[string]*liveMatch),
	}
}

// SetMetrics attaches a metrics recorder.
func (s *MatchService) SetMetrics(m MatchRecorder) {
	if m != nil {
		s.metrics = m
	}
}

// SetDecisionRecorder attaches a recorder for AI decisions.
func (s *MatchService) SetDecisionRecorder(r bot.DecisionRecorder) {
	s.decisions = r
}

// CreateMatch builds a seeded world, seats the factions and starts the
// match loop.
func (s *MatchService) CreateMatch(ctx context.Context, req CreateMatchRequest) (*CreatedMatch, error) {
	seats, err := resolveSeats(req.Factions)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	full := s.opts.MaxLive > 0 && len(s.matches) >= s.opts.MaxLive
	s.mu.Unlock()
	if full {
		return nil, ErrTooManyMatches
	}

	id := uuid.NewString()
	seed := req.Seed
	if seed == 0 {
		seed = bot.NewSeed()
	}
	mlog := logger.ForMatch(id)

	w := conquest.NewWorld(s.opts.Catalog,
		conquest.WithLogger(mlog),
		conquest.WithRand(rand.New(rand.NewSource(seed))),
	)
	ids := make([]conquest.FactionID, 0, len(seats))
	policies := make(map[conquest.FactionID]string, len(seats))
	for _, seat := range seats {
		fid := conquest.FactionID(seat.ID)
		human := seat.Policy == PolicyHuman
		if err := w.AddFaction(conquest.Faction{ID: fid, Name: seat.Name, Color: seat.Color, AIControlled: !human}); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFactions, err)
		}
		ids = append(ids, fid)
		if !human {
			policies[fid] = seat.Policy
		}
	}

	mapOpts := bot.DefaultMapOptions()
	mapOpts.Neutrals = s.opts.DefaultNeutrals
	if req.Neutrals > 0 {
		mapOpts.Neutrals = req.Neutrals
	}
	if err := bot.GenerateMap(w, seed, ids, mapOpts); err != nil {
		return nil, err
	}

	var copts []bot.ControllerOption
	if s.decisions != nil {
		copts = append(copts, bot.WithRecorder(s.decisions))
	}
	var controllers []*bot.Controller
	for _, fid := range ids {
		if p, ok := policies[fid]; ok {
			controllers = append(controllers, bot.NewController(w, fid, bot.PolicyForName(p), copts...))
		}
	}

	record := &model.Match{
		ID:       id,
		Name:     req.Name,
		Seed:     seed,
		Status:   model.MatchLive,
		Factions: bot.MatchFactions(id, w, policies),
	}
	if s.repo != nil {
		if err := s.repo.Create(ctx, record); err != nil {
			return nil, fmt.Errorf("create match: %w", err)
		}
	} else {
		record.CreatedAt = time.Now()
	}

	created := &CreatedMatch{ID: id, Seed: seed}
	for _, fid := range ids {
		if _, ok := policies[fid]; ok {
			continue
		}
		if s.seats == nil {
			return nil, fmt.Errorf("%w: human seat requires a seat issuer", ErrInvalidFactions)
		}
		token, err := s.seats.GenerateSeatToken(id, string(fid))
		if err != nil {
			return nil, fmt.Errorf("seat token: %w", err)
		}
		if created.Seats == nil {
			created.Seats = make(map[string]string)
		}
		created.Seats[string(fid)] = token
	}

	m := newLiveMatch(s, record, w, controllers, policies, mlog)
	if s.cache != nil {
		if err := s.cache.AddLive(ctx, id); err != nil {
			mlog.Warn().Err(err).Msg("Failed to index live match")
		}
	}

	s.mu.Lock()
	s.matches[id] = m
	s.mu.Unlock()
	s.metrics.MatchStarted()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		m.run()
	}()

	mlog.Info().Int64("seed", seed).Int("factions", len(ids)).Int("neutrals", mapOpts.Neutrals).Msg("Match started")
	return created, nil
}

// resolveSeats fills in default IDs, names and colors and checks policies.
func resolveSeats(in []FactionSeat) ([]FactionSeat, error) {
	if len(in) < 2 || len(in) > len(bot.DefaultFactions) {
		return nil, fmt.Errorf("%w: need 2 to %d factions", ErrInvalidFactions, len(bot.DefaultFactions))
	}
	out := make([]FactionSeat, len(in))
	seen := make(map[string]bool, len(in))
	for i, seat := range in {
		if seat.ID == "" {
			seat.ID = string(bot.DefaultFactions[i])
		}
		if seat.ID == string(conquest.UnclaimedID) || seen[seat.ID] {
			return nil, fmt.Errorf("%w: duplicate or reserved faction id %q", ErrInvalidFactions, seat.ID)
		}
		seen[seat.ID] = true
		if seat.Name == "" {
			seat.Name = bot.FactionName(conquest.FactionID(seat.ID))
		}
		if seat.Color == "" {
			seat.Color = bot.FactionColor(conquest.FactionID(seat.ID))
		}
		if seat.Policy != PolicyHuman && !bot.KnownPolicy(seat.Policy) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, seat.Policy)
		}
		out[i] = seat
	}
	return out, nil
}

func (s *MatchService) lookup(id string) (*liveMatch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	return m, ok
}

func (s *MatchService) remove(id string) {
	s.mu.Lock()
	delete(s.matches, id)
	s.mu.Unlock()
}

// SubmitCommand applies a human command on the match goroutine. Engine
// rejections come back as an unaccepted result, not an error.
func (s *MatchService) SubmitCommand(ctx context.Context, matchID, factionID string, cmd Command) (*CommandResult, error) {
	m, ok := s.lookup(matchID)
	if !ok {
		return nil, ErrMatchNotFound
	}
	fid := conquest.FactionID(factionID)
	if _, ai := m.policies[fid]; ai {
		return nil, fmt.Errorf("%w: faction %s is AI controlled", ErrNotOwner, factionID)
	}

	var cmdErr error
	if err := m.do(ctx, func() { cmdErr = cmd.apply(m.w, fid) }); err != nil {
		return nil, err
	}
	s.metrics.RecordCommand(cmd.Type, cmdErr == nil)
	if cmdErr != nil {
		m.log.Debug().Err(cmdErr).Str("faction", factionID).Str("type", cmd.Type).Msg("Command rejected")
		return &CommandResult{Reason: cmdErr.Error()}, nil
	}
	return &CommandResult{Accepted: true}, nil
}

// Pause freezes the simulation and the AI controllers.
func (s *MatchService) Pause(ctx context.Context, matchID string) error {
	return s.setPhase(ctx, matchID, conquest.PhasePlaying, conquest.PhasePaused, EventMatchPaused)
}

// Resume continues a paused match.
func (s *MatchService) Resume(ctx context.Context, matchID string) error {
	return s.setPhase(ctx, matchID, conquest.PhasePaused, conquest.PhasePlaying, EventMatchResumed)
}

func (s *MatchService) setPhase(ctx context.Context, matchID string, from, to conquest.Phase, event string) error {
	m, ok := s.lookup(matchID)
	if !ok {
		return ErrMatchNotFound
	}
	var phaseErr error
	err := m.do(ctx, func() {
		if m.w.Phase() != from {
			phaseErr = fmt.Errorf("%w: match is %s", ErrMatchNotRunning, m.w.Phase())
			return
		}
		m.w.SetPhase(to)
		s.broadcaster.BroadcastMatchEvent(matchID, event, map[string]any{"time": m.w.Now().Seconds()})
	})
	if err != nil {
		return err
	}
	if phaseErr == nil {
		m.log.Info().Str("phase", string(to)).Msg("Match phase changed")
	}
	return phaseErr
}

// Snapshot returns a match's latest state: the cached snapshot, the live
// world, or the archived final state, in that order.
func (s *MatchService) Snapshot(ctx context.Context, matchID string) (*conquest.Snapshot, error) {
	if s.cache != nil {
		snap, err := s.cache.GetSnapshot(ctx, matchID)
		if err != nil {
			log.Warn().Err(err).Str("matchId", matchID).Msg("Snapshot cache read failed")
		} else if snap != nil {
			return snap, nil
		}
	}

	if m, ok := s.lookup(matchID); ok {
		var snap conquest.Snapshot
		if err := m.do(ctx, func() { snap = m.w.Snapshot() }); err == nil {
			return &snap, nil
		} else if !errors.Is(err, ErrMatchEnded) {
			return nil, err
		}
	}

	if s.repo != nil {
		state, err := s.repo.FinalState(ctx, matchID)
		if err != nil {
			return nil, err
		}
		if state != nil {
			return repository.DecodeSnapshot(state)
		}
	}
	return nil, ErrMatchNotFound
}

// ListLive summarizes every running match, oldest first.
func (s *MatchService) ListLive(ctx context.Context) ([]MatchSummary, error) {
	s.mu.Lock()
	live := make([]*liveMatch, 0, len(s.matches))
	for _, m := range s.matches {
		live = append(live, m)
	}
	s.mu.Unlock()

	out := make([]MatchSummary, 0, len(live))
	for _, m := range live {
		var sum MatchSummary
		err := m.do(ctx, func() { sum = m.summary() })
		if errors.Is(err, ErrMatchEnded) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	sortSummaries(out)
	return out, nil
}

// History lists recently archived matches.
func (s *MatchService) History(ctx context.Context, limit int) ([]model.Match, error) {
	if s.repo == nil {
		return nil, nil
	}
	return s.repo.ListRecent(ctx, limit)
}

// Result returns the archived record for a match.
func (s *MatchService) Result(ctx context.Context, matchID string) (*model.Match, error) {
	if s.repo == nil {
		return nil, ErrMatchNotFound
	}
	m, err := s.repo.FindByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrMatchNotFound
	}
	return m, nil
}

// ReapStale aborts matches a previous process left marked live. Live
// worlds are not persisted, so they cannot be resumed.
func (s *MatchService) ReapStale(ctx context.Context) (int, error) {
	if s.cache == nil {
		return 0, nil
	}
	ids, err := s.cache.ListLive(ctx)
	if err != nil {
		return 0, fmt.Errorf("list live matches: %w", err)
	}
	if len(ids) == 0 {
		log.Info().Msg("No stale matches to reap")
		return 0, nil
	}

	reaped := 0
	for _, id := range ids {
		if _, ok := s.lookup(id); ok {
			continue
		}
		if s.repo != nil {
			if err := s.repo.Finish(ctx, id, model.MatchAborted, "", 0, nil, nil); err != nil {
				log.Warn().Err(err).Str("matchId", id).Msg("Failed to mark stale match aborted")
			}
		}
		if err := s.cache.DeleteMatchData(ctx, id); err != nil {
			log.Error().Err(err).Str("matchId", id).Msg("Failed to clear stale match data")
			continue
		}
		reaped++
	}
	log.Info().Int("count", reaped).Msg("Reaped stale matches after restart")
	return reaped, nil
}

// Stop aborts every live match and waits for their loops to exit.
func (s *MatchService) Stop(ctx context.Context) error {
	s.mu.Lock()
	for _, m := range s.matches {
		m.abort()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
