package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/freeeve/minimalists/api/internal/bot"
	"github.com/freeeve/minimalists/api/internal/model"
	"github.com/freeeve/minimalists/api/internal/repository"
	"github.com/freeeve/minimalists/api/pkg/conquest"
)

// persistTimeout bounds cache and archive writes made from the match loop.
const persistTimeout = 10 * time.Second

// liveMatch is a running match. Apart from the channels, its state is
// touched only by the run goroutine, directly or through do.
type liveMatch struct {
	svc         *MatchService
	record      *model.Match
	w           *conquest.World
	controllers []*bot.Controller
	policies    map[conquest.FactionID]string // AI seats only
	log         zerolog.Logger

	inbox chan func()
	quit  chan struct{}
	done  chan struct{}
	once  sync.Once

	ticks int
	dirty bool
}

func newLiveMatch(s *MatchService, record *model.Match, w *conquest.World, controllers []*bot.Controller, policies map[conquest.FactionID]string, log zerolog.Logger) *liveMatch {
	m := &liveMatch{
		svc:         s,
		record:      record,
		w:           w,
		controllers: controllers,
		policies:    policies,
		log:         log,
		inbox:       make(chan func(), 64),
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	w.Subscribe(m.onEvent)
	return m
}

// do runs fn on the match goroutine and waits for it.
func (m *liveMatch) do(ctx context.Context, fn func()) error {
	ran := make(chan struct{})
	select {
	case m.inbox <- func() { fn(); close(ran) }:
	case <-m.done:
		return ErrMatchEnded
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ran:
		return nil
	case <-m.done:
		select {
		case <-ran:
			return nil
		default:
			return ErrMatchEnded
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *liveMatch) abort() {
	m.once.Do(func() { close(m.quit) })
}

func (m *liveMatch) run() {
	defer close(m.done)

	for _, c := range m.controllers {
		c.Start()
	}
	m.w.SetPhase(conquest.PhasePlaying)

	ticker := time.NewTicker(m.svc.opts.interval())
	defer ticker.Stop()
	for {
		select {
		case <-m.quit:
			m.finish(model.MatchAborted, "")
			return
		case fn := <-m.inbox:
			fn()
		case <-ticker.C:
			if winner, over := m.tick(); over {
				m.finish(model.MatchFinished, winner)
				return
			}
		}
	}
}

// tick advances the world one step and reports whether the match is over.
func (m *liveMatch) tick() (conquest.FactionID, bool) {
	if m.w.Phase() != conquest.PhasePlaying {
		return "", false
	}
	start := time.Now()
	m.w.Step(m.svc.opts.Step)
	m.ticks++
	m.svc.metrics.ObserveTick(time.Since(start))

	if m.dirty {
		m.dirty = false
		snap := m.w.Snapshot()
		m.svc.broadcaster.BroadcastMatchEvent(m.record.ID, EventMatchTick, &snap)
	}
	if every := m.svc.opts.SnapshotEvery; every > 0 && m.ticks%every == 0 {
		m.cacheSnapshot()
	}

	if winner, ok := m.w.Winner(); ok {
		return winner, true
	}
	return "", m.w.Now() >= m.svc.opts.MaxDuration
}

func (m *liveMatch) onEvent(e conquest.Event) {
	id := m.record.ID
	switch e.Type {
	case conquest.EventOwnershipChanged:
		m.svc.metrics.RecordCapture()
		m.svc.broadcaster.BroadcastMatchEvent(id, EventConstructCaptured, map[string]any{
			"construct": e.Construct,
			"from":      e.From,
			"to":        e.To,
			"time":      e.Time.Seconds(),
		})
		m.dirty = true
	case conquest.EventTypeChanged:
		m.svc.broadcaster.BroadcastMatchEvent(id, EventConstructTypeChanged, map[string]any{
			"construct": e.Construct,
			"from_type": e.FromType,
			"to_type":   e.ToType,
			"reason":    e.Reason,
			"time":      e.Time.Seconds(),
		})
		m.dirty = true
	case conquest.EventUnitCountChanged, conquest.EventUnitLaunched, conquest.EventUnitDestroyed:
		m.dirty = true
	}
}

func (m *liveMatch) cacheSnapshot() {
	if m.svc.cache == nil {
		return
	}
	snap := m.w.Snapshot()
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := m.svc.cache.SetSnapshot(ctx, m.record.ID, &snap, m.svc.opts.SnapshotTTL); err != nil {
		m.log.Warn().Err(err).Msg("Failed to cache snapshot")
	}
}

// finish stops the AI, stores the final state and unregisters the match.
func (m *liveMatch) finish(status string, winner conquest.FactionID) {
	m.w.SetPhase(conquest.PhaseFinished)
	for _, c := range m.controllers {
		c.Stop()
	}
	id := m.record.ID
	duration := m.w.Now()
	snap := m.w.Snapshot()

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if cache := m.svc.cache; cache != nil {
		if err := cache.SetSnapshot(ctx, id, &snap, m.svc.opts.SnapshotTTL); err != nil {
			m.log.Warn().Err(err).Msg("Failed to cache final snapshot")
		}
		if err := cache.RemoveLive(ctx, id); err != nil {
			m.log.Warn().Err(err).Msg("Failed to remove match from live index")
		}
	}
	if repo := m.svc.repo; repo != nil {
		state, err := repository.EncodeSnapshot(&snap)
		if err != nil {
			m.log.Error().Err(err).Msg("Failed to encode final state")
		}
		if err := repo.Finish(ctx, id, status, string(winner), duration.Seconds(), state, bot.MatchFactions(id, m.w, m.policies)); err != nil {
			m.log.Error().Err(err).Msg("Failed to archive match")
		}
	}

	m.svc.remove(id)
	m.svc.metrics.MatchEnded(status)
	m.svc.broadcaster.BroadcastMatchEvent(id, EventMatchEnded, map[string]any{
		"status":   status,
		"winner":   winner,
		"duration": duration.Seconds(),
	})

	if winner != "" {
		m.log.Info().Str("winner", string(winner)).Dur("duration", duration).Int("ticks", m.ticks).Msg("Match won")
	} else {
		m.log.Info().Str("status", status).Dur("duration", duration).Int("ticks", m.ticks).Msg("Match ended without a winner")
	}
}

func (m *liveMatch) summary() MatchSummary {
	return MatchSummary{
		ID:        m.record.ID,
		Name:      m.record.Name,
		Seed:      m.record.Seed,
		Phase:     m.w.Phase(),
		Time:      m.w.Now().Seconds(),
		CreatedAt: m.record.CreatedAt,
		Factions:  bot.MatchFactions(m.record.ID, m.w, m.policies),
	}
}

func sortSummaries(s []MatchSummary) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].CreatedAt.Equal(s[j].CreatedAt) {
			return s[i].ID < s[j].ID
		}
		return s[i].CreatedAt.Before(s[j].CreatedAt)
	})
}
