package statistics

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
)

const (
	CacheKey        = "foxpass:statistics"
	CacheExpiration = 5 * time.Minute
)

// ProfileCounter counts profiles.
type ProfileCounter interface {
	Count() (int64, error)
	CountPro() (int64, error)
}

// MessageCounter counts unread admin messages.
type MessageCounter interface {
	CountUnread() (int64, error)
}

// Data is the admin dashboard summary.
type Data struct {
	TotalUsers     int64     `json:"total_users"`
	ProUsers       int64     `json:"pro_users"`
	UnreadMessages int64     `json:"unread_admin_messages"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Statistics serves Data from a Redis hash, recounting from the database
// when the hash is missing or expired. A nil Redis client always recounts.
type Statistics struct {
	profiles ProfileCounter
	messages MessageCounter
	rdb      *redis.Client
	ttl      time.Duration
	now      func() time.Time
}

func New(profiles ProfileCounter, messages MessageCounter, rdb *redis.Client) *Statistics {
	return &Statistics{profiles: profiles, messages: messages, rdb: rdb, ttl: CacheExpiration, now: time.Now}
}

// Get returns the cached statistics or recounts them.
func (s *Statistics) Get(ctx context.Context) (*Data, error) {
	if data, ok := s.cached(ctx); ok {
		return data, nil
	}
	return s.Refresh(ctx)
}

// Refresh recounts and stores the statistics.
func (s *Statistics) Refresh(ctx context.Context) (*Data, error) {
	if s.profiles == nil {
		return nil, errors.New("statistics: no profile source")
	}
	total, err := s.profiles.Count()
	if err != nil {
		return nil, err
	}
	pro, err := s.profiles.CountPro()
	if err != nil {
		return nil, err
	}
	var unread int64
	if s.messages != nil {
		if unread, err = s.messages.CountUnread(); err != nil {
			return nil, err
		}
	}
	data := &Data{TotalUsers: total, ProUsers: pro, UnreadMessages: unread, UpdatedAt: s.now().UTC().Truncate(time.Second)}

	if s.rdb != nil {
		pipe := s.rdb.TxPipeline()
		pipe.HSet(ctx, CacheKey, map[string]interface{}{
			"total_users":     data.TotalUsers,
			"pro_users":       data.ProUsers,
			"unread_messages": data.UnreadMessages,
			"updated_at":      data.UpdatedAt.Unix(),
		})
		pipe.Expire(ctx, CacheKey, s.ttl)
		if _, err := pipe.Exec(ctx); err != nil {
			log.Warnf("[Cache] Failed to store statistics: %v", err)
		}
	}
	return data, nil
}

// Invalidate drops the cached statistics.
func (s *Statistics) Invalidate(ctx context.Context) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, CacheKey).Err(); err != nil {
		log.Warnf("[Cache] Failed to invalidate statistics: %v", err)
	}
}

func (s *Statistics) cached(ctx context.Context) (*Data, bool) {
	if s.rdb == nil {
		return nil, false
	}
	vals, err := s.rdb.HGetAll(ctx, CacheKey).Result()
	if err != nil || len(vals) < 4 {
		return nil, false
	}
	field := func(name string) (int64, bool) {
		n, err := strconv.ParseInt(vals[name], 10, 64)
		return n, err == nil
	}
	total, ok1 := field("total_users")
	pro, ok2 := field("pro_users")
	unread, ok3 := field("unread_messages")
	updated, ok4 := field("updated_at")
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return nil, false
	}
	return &Data{TotalUsers: total, ProUsers: pro, UnreadMessages: unread, UpdatedAt: time.Unix(updated, 0).UTC()}, true
}
