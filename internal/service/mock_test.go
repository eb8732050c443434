package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/freeeve/minimalists/api/internal/model"
	"github.com/freeeve/minimalists/api/internal/repository"
	"github.com/freeeve/minimalists/api/pkg/conquest"
)

// The match loop writes from its own goroutine, so every mock is locked.

type mockMatchRepo struct {
	mu       sync.Mutex
	matches  map[string]*model.Match
	states   map[string][]byte
	finished chan string
}

func newMockMatchRepo() *mockMatchRepo {
	return &mockMatchRepo{
		matches:  make(map[string]*model.Match),
		states:   make(map[string][]byte),
		finished: make(chan string, 16),
	}
}

func (m *mockMatchRepo) Create(_ context.Context, match *model.Match) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	match.CreatedAt = time.Now()
	cp := *match
	m.matches[match.ID] = &cp
	return nil
}

func (m *mockMatchRepo) Finish(_ context.Context, id, status, winner string, durationSeconds float64, finalState []byte, factions []model.MatchFaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	match, ok := m.matches[id]
	if !ok {
		return fmt.Errorf("finish match %s: %w", id, sql.ErrNoRows)
	}
	now := time.Now()
	match.Status = status
	match.Winner = winner
	match.DurationSeconds = durationSeconds
	match.FinishedAt = &now
	if factions != nil {
		match.Factions = factions
	}
	m.states[id] = finalState
	m.finished <- id
	return nil
}

func (m *mockMatchRepo) FindByID(_ context.Context, id string) (*model.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	match, ok := m.matches[id]
	if !ok {
		return nil, nil
	}
	cp := *match
	return &cp, nil
}

func (m *mockMatchRepo) ListRecent(_ context.Context, limit int) ([]model.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Match
	for _, match := range m.matches {
		out = append(out, *match)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *mockMatchRepo) FinalState(_ context.Context, id string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[id], nil
}

func (m *mockMatchRepo) get(id string) *model.Match {
	m.mu.Lock()
	defer m.mu.Unlock()
	if match, ok := m.matches[id]; ok {
		cp := *match
		return &cp
	}
	return nil
}

type mockMatchCache struct {
	mu        sync.Mutex
	snapshots map[string][]byte
	live      map[string]bool
	writes    int
}

func newMockMatchCache() *mockMatchCache {
	return &mockMatchCache{snapshots: make(map[string][]byte), live: make(map[string]bool)}
}

func (c *mockMatchCache) SetSnapshot(_ context.Context, id string, snap *conquest.Snapshot, _ time.Duration) error {
	data, err := repository.EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots[id] = data
	c.writes++
	return nil
}

func (c *mockMatchCache) GetSnapshot(_ context.Context, id string) (*conquest.Snapshot, error) {
	c.mu.Lock()
	data, ok := c.snapshots[id]
	c.mu.Unlock()
	if !ok {
		return nil, nil
	}
	return repository.DecodeSnapshot(data)
}

func (c *mockMatchCache) AddLive(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.live[id] = true
	return nil
}

func (c *mockMatchCache) RemoveLive(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.live, id)
	return nil
}

func (c *mockMatchCache) ListLive(_ context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for id := range c.live {
		out = append(out, id)
	}
	return out, nil
}

func (c *mockMatchCache) DeleteMatchData(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.snapshots, id)
	delete(c.live, id)
	return nil
}

func (c *mockMatchCache) isLive(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live[id]
}

type recordedEvent struct {
	matchID string
	typ     string
	data    any
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (b *recordingBroadcaster) BroadcastMatchEvent(matchID, eventType string, data any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, recordedEvent{matchID, eventType, data})
}

func (b *recordingBroadcaster) count(typ string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.events {
		if e.typ == typ {
			n++
		}
	}
	return n
}

type countingMetrics struct {
	mu       sync.Mutex
	started  int
	ended    map[string]int
	ticks    int
	commands map[bool]int
	captures int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{ended: make(map[string]int), commands: make(map[bool]int)}
}

func (c *countingMetrics) MatchStarted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started++
}

func (c *countingMetrics) MatchEnded(status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ended[status]++
}

func (c *countingMetrics) ObserveTick(time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks++
}

func (c *countingMetrics) RecordCommand(_ string, accepted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commands[accepted]++
}

func (c *countingMetrics) RecordCapture() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.captures++
}
