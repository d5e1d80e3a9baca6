package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ManuelReschke/FoxPass/app/models"
	"github.com/ManuelReschke/FoxPass/internal/pkg/entitlements"
	"github.com/ManuelReschke/FoxPass/internal/pkg/metrics"
	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultSnapshotTTL = 10 * time.Minute
	MaxWait            = 30 * time.Second

	// fallbackPollInterval is used by WaitForVersion when pub/sub is unavailable.
	fallbackPollInterval = time.Second
)

// LoadFunc reads the current profile from the authoritative store.
type LoadFunc func(ctx context.Context) (*models.Profile, error)

// EntitlementCache is a read-through snapshot cache with a per-user change
// channel. A nil Redis client disables caching and pub/sub.
type EntitlementCache struct {
	rdb *redis.Client
	ttl time.Duration
	now func() time.Time
}

// NewEntitlementCache creates a cache on rdb.
func NewEntitlementCache(rdb *redis.Client) *EntitlementCache {
	return &EntitlementCache{rdb: rdb, ttl: DefaultSnapshotTTL, now: time.Now}
}

func SnapshotKey(userID uint) string {
	return fmt.Sprintf("foxpass:entitlement:%d", userID)
}

func ChangeChannel(userID uint) string {
	return fmt.Sprintf("foxpass:entitlement:changed:%d", userID)
}

// Snapshot returns the cached snapshot of userID, loading and caching it on
// a miss. Cache failures fall through to load.
func (c *EntitlementCache) Snapshot(ctx context.Context, userID uint, load LoadFunc) (*entitlements.Snapshot, error) {
	if c.rdb != nil {
		raw, err := c.rdb.Get(ctx, SnapshotKey(userID)).Bytes()
		switch {
		case err == nil:
			var snap entitlements.Snapshot
			if err := json.Unmarshal(raw, &snap); err == nil {
				snap = snap.Refresh(c.now())
				return &snap, nil
			}
		case !errors.Is(err, redis.Nil):
			log.Warnf("[Cache] Reading entitlement snapshot for user %d failed: %v", userID, err)
		}
	}

	p, err := load(ctx)
	if err != nil {
		return nil, err
	}
	snap := entitlements.NewSnapshot(p, c.now())
	c.store(ctx, snap)
	return &snap, nil
}

func (c *EntitlementCache) store(ctx context.Context, snap entitlements.Snapshot) {
	if c.rdb == nil {
		return
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, SnapshotKey(snap.UserID), raw, c.ttl).Err(); err != nil {
		log.Warnf("[Cache] Storing entitlement snapshot for user %d failed: %v", snap.UserID, err)
	}
}

// Invalidate drops the cached snapshot of userID.
func (c *EntitlementCache) Invalidate(ctx context.Context, userID uint) error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Del(ctx, SnapshotKey(userID)).Err()
}

// EntitlementChanged invalidates the snapshot and announces the new version
// to long-poll waiters.
func (c *EntitlementCache) EntitlementChanged(ctx context.Context, p *models.Profile) {
	if c.rdb == nil || p == nil {
		return
	}
	if err := c.Invalidate(ctx, p.ID); err != nil {
		log.Warnf("[Cache] Invalidating entitlement for user %d failed: %v", p.ID, err)
	}
	version := strconv.FormatUint(p.EntitlementVersion, 10)
	if err := c.rdb.Publish(ctx, ChangeChannel(p.ID), version).Err(); err != nil {
		log.Warnf("[Cache] Publishing entitlement version for user %d failed: %v", p.ID, err)
	}
}

// WaitForVersion blocks until the stored version of userID exceeds since or
// wait elapses, and returns the latest snapshot either way.
func (c *EntitlementCache) WaitForVersion(ctx context.Context, userID uint, since uint64, wait time.Duration, load LoadFunc) (*entitlements.Snapshot, error) {
	if wait <= 0 {
		return c.read(ctx, load)
	}
	if wait > MaxWait {
		wait = MaxWait
	}
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	metrics.LongPollWaiters.Inc()
	defer metrics.LongPollWaiters.Dec()

	var wake <-chan *redis.Message
	if c.rdb != nil {
		// Subscribe before the first read so a change in between is not lost.
		sub := c.rdb.Subscribe(ctx, ChangeChannel(userID))
		defer sub.Close()
		if _, err := sub.Receive(ctx); err != nil {
			log.Warnf("[Cache] Subscribing to entitlement changes for user %d failed: %v", userID, err)
		} else {
			wake = sub.Channel()
		}
	}

	var ticker *time.Ticker
	var tick <-chan time.Time
	if wake == nil {
		ticker = time.NewTicker(fallbackPollInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	snap, err := c.read(ctx, load)
	if err != nil {
		return nil, err
	}
	for snap.Version <= since {
		select {
		case <-ctx.Done():
			return snap, nil
		case msg, ok := <-wake:
			if !ok {
				return snap, nil
			}
			if v, err := strconv.ParseUint(msg.Payload, 10, 64); err == nil && v <= since {
				continue
			}
		case <-tick:
		}
		next, err := c.read(ctx, load)
		if err != nil {
			if ctx.Err() != nil {
				return snap, nil
			}
			return nil, err
		}
		snap = next
	}
	return snap, nil
}

func (c *EntitlementCache) read(ctx context.Context, load LoadFunc) (*entitlements.Snapshot, error) {
	p, err := load(ctx)
	if err != nil {
		return nil, err
	}
	snap := entitlements.NewSnapshot(p, c.now())
	return &snap, nil
}
