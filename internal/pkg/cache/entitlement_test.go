package cache

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ManuelReschke/FoxPass/app/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type profileStore struct {
	mu    sync.Mutex
	p     models.Profile
	loads int
}

func (s *profileStore) load(context.Context) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	p := s.p
	return &p, nil
}

func (s *profileStore) bump(pro bool) models.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.p.IsPro = pro
	s.p.EntitlementVersion++
	return s.p
}

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not reachable at %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestSnapshot_WithoutRedisLoadsEveryTime(t *testing.T) {
	store := &profileStore{p: models.Profile{ID: 3, Points: 40, EntitlementVersion: 2}}
	c := NewEntitlementCache(nil)

	for i := 0; i < 2; i++ {
		snap, err := c.Snapshot(context.Background(), 3, store.load)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), snap.Version)
		assert.Equal(t, 40, snap.Points)
	}
	assert.Equal(t, 2, store.loads)
}

func TestSnapshot_LoadError(t *testing.T) {
	c := NewEntitlementCache(nil)
	boom := errors.New("db down")
	_, err := c.Snapshot(context.Background(), 1, func(context.Context) (*models.Profile, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestWaitForVersion_PollingFallback(t *testing.T) {
	store := &profileStore{p: models.Profile{ID: 1, EntitlementVersion: 4}}
	c := NewEntitlementCache(nil)

	go func() {
		time.Sleep(100 * time.Millisecond)
		store.bump(true)
	}()

	start := time.Now()
	snap, err := c.WaitForVersion(context.Background(), 1, 4, 5*time.Second, store.load)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), snap.Version)
	assert.True(t, snap.IsPro)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestWaitForVersion_ReturnsImmediatelyWhenAhead(t *testing.T) {
	store := &profileStore{p: models.Profile{ID: 1, EntitlementVersion: 9}}
	snap, err := NewEntitlementCache(nil).WaitForVersion(context.Background(), 1, 3, 5*time.Second, store.load)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), snap.Version)
	assert.Equal(t, 1, store.loads)
}

func TestWaitForVersion_TimesOutWithCurrentSnapshot(t *testing.T) {
	store := &profileStore{p: models.Profile{ID: 1, EntitlementVersion: 2}}
	snap, err := NewEntitlementCache(nil).WaitForVersion(context.Background(), 1, 2, 50*time.Millisecond, store.load)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), snap.Version)
}

func TestRedisSnapshotCacheAndInvalidate(t *testing.T) {
	rdb := testRedis(t)
	ctx := context.Background()
	store := &profileStore{p: models.Profile{ID: 77, EntitlementVersion: 1}}
	c := NewEntitlementCache(rdb)
	require.NoError(t, c.Invalidate(ctx, 77))

	_, err := c.Snapshot(ctx, 77, store.load)
	require.NoError(t, err)
	snap, err := c.Snapshot(ctx, 77, store.load)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), snap.Version)
	assert.Equal(t, 1, store.loads, "second read served from cache")

	p := store.bump(true)
	c.EntitlementChanged(ctx, &p)
	snap, err = c.Snapshot(ctx, 77, store.load)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), snap.Version)
	assert.True(t, snap.Active)
}

func TestRedisWaitForVersionWakesOnPublish(t *testing.T) {
	rdb := testRedis(t)
	store := &profileStore{p: models.Profile{ID: 78, EntitlementVersion: 1}}
	c := NewEntitlementCache(rdb)

	go func() {
		time.Sleep(150 * time.Millisecond)
		p := store.bump(true)
		c.EntitlementChanged(context.Background(), &p)
	}()

	snap, err := c.WaitForVersion(context.Background(), 78, 1, 10*time.Second, store.load)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), snap.Version)
}
