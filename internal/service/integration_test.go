//go:build integration

package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/freeeve/minimalists/api/internal/model"
	"github.com/freeeve/minimalists/api/internal/repository/postgres"
	redisrepo "github.com/freeeve/minimalists/api/internal/repository/redis"
	"github.com/freeeve/minimalists/api/internal/testutil"
	"github.com/freeeve/minimalists/api/pkg/conquest"
)

func setupService(t *testing.T, opts Options) (*MatchService, *postgres.MatchRepo, *redisrepo.Client) {
	t.Helper()
	db := testutil.SetupDB(t)
	rdb := testutil.SetupRedis(t)
	testutil.CleanupDB(t, db)
	testutil.CleanupRedis(t, rdb)

	repo := postgres.NewMatchRepo(db)
	cache := redisrepo.NewClientFromPool(rdb)
	svc := NewMatchService(repo, cache, nil, nil, opts)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		svc.Stop(ctx)
	})
	return svc, repo, cache
}

func TestIntegrationMatchArchived(t *testing.T) {
	svc, repo, cache := setupService(t, Options{
		TickRate:      500,
		Step:          250 * time.Millisecond,
		MaxDuration:   30 * time.Second,
		SnapshotEvery: 10,
		SnapshotTTL:   time.Minute,
	})
	ctx := context.Background()

	created, err := svc.CreateMatch(ctx, CreateMatchRequest{
		Name:     "integration",
		Seed:     99,
		Factions: []FactionSeat{{Policy: "coordinated"}, {Policy: "warlord"}},
	})
	require.NoError(t, err)

	live, err := cache.ListLive(ctx)
	require.NoError(t, err)
	require.Contains(t, live, created.ID)

	require.Eventually(t, func() bool {
		m, err := repo.FindByID(ctx, created.ID)
		return err == nil && m != nil && m.Status == model.MatchFinished
	}, 10*time.Second, 50*time.Millisecond)

	m, err := svc.Result(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, m.Factions, 2)
	require.NotNil(t, m.FinishedAt)

	require.Eventually(t, func() bool {
		live, err := cache.ListLive(ctx)
		return err == nil && len(live) == 0
	}, 5*time.Second, 20*time.Millisecond)

	snap, err := svc.Snapshot(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, conquest.PhaseFinished, snap.Phase)
}

func TestIntegrationReapStale(t *testing.T) {
	svc, repo, cache := setupService(t, Options{})
	ctx := context.Background()

	stale := &model.Match{ID: "00000000-0000-0000-0000-000000000001", Name: "stale", Seed: 1}
	require.NoError(t, repo.Create(ctx, stale))
	require.NoError(t, cache.AddLive(ctx, stale.ID))

	n, err := svc.ReapStale(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	m, err := repo.FindByID(ctx, stale.ID)
	require.NoError(t, err)
	require.Equal(t, model.MatchAborted, m.Status)
}
