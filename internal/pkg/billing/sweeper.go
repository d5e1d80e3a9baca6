package billing

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ManuelReschke/FoxPass/app/models"
	"github.com/ManuelReschke/FoxPass/internal/pkg/metrics"
	"github.com/gofiber/fiber/v2/log"
	"github.com/robfig/cron/v3"
)

const (
	DefaultSweepSchedule = "@every 15m"
	sweepBatchSize       = 200
	sweepTimeout         = 2 * time.Minute
)

// Sweeper revokes Pro records whose expiry has passed without a processor
// event doing so.
type Sweeper struct {
	service  *Service
	schedule string
	cron     *cron.Cron
	mu       sync.Mutex
}

// NewSweeper creates a sweeper running on a cron schedule.
func NewSweeper(service *Service, schedule string) *Sweeper {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	return &Sweeper{service: service, schedule: schedule}
}

// Start registers the cron job and starts the scheduler.
func (sw *Sweeper) Start() error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := c.AddFunc(sw.schedule, sw.runScheduled); err != nil {
		return err
	}
	sw.mu.Lock()
	sw.cron = c
	sw.mu.Unlock()
	c.Start()
	log.Infof("[Sweeper] Expiry sweep scheduled (%s)", sw.schedule)
	return nil
}

// Stop halts the scheduler and waits for a running sweep.
func (sw *Sweeper) Stop() {
	sw.mu.Lock()
	c := sw.cron
	sw.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
}

func (sw *Sweeper) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()
	if _, err := sw.service.SweepExpired(ctx); err != nil {
		log.Errorf("[Sweeper] Expiry sweep failed: %v", err)
	}
}

// SweepExpired revokes every expired Pro record and returns how many were
// revoked. Records renewed since they were listed are skipped.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	now := s.now()
	expired, err := s.repo.ListExpiredPro(ctx, now, sweepBatchSize)
	if err != nil {
		return 0, err
	}

	revoked := 0
	for i := range expired {
		p := &expired[i]
		m := Revoke("expiry_sweep", false)
		m.Guard = ExpiredGuard(now)
		_, err := s.Apply(ctx, Selector{UserID: p.ID}, m, lapsedAt(p, now))
		switch {
		case err == nil:
			revoked++
			metrics.SweeperRevocations.Inc()
		case errors.Is(err, ErrNotExpired), errors.Is(err, ErrStaleEvent):
		default:
			return revoked, err
		}
	}
	if revoked > 0 {
		log.Infof("[Sweeper] Revoked %d expired entitlements", revoked)
	}
	return revoked, nil
}

// lapsedAt stamps a sweep revocation with the moment the entitlement ran
// out, so a processor event created after the lapse still supersedes it
// when it is delivered after the sweep.
func lapsedAt(p *models.Profile, now time.Time) time.Time {
	at := now
	if p.SubscriptionExpiresAt != nil && p.SubscriptionExpiresAt.Before(now) {
		at = *p.SubscriptionExpiresAt
	}
	if p.LastEventAt != nil && p.LastEventAt.After(at) {
		at = *p.LastEventAt
	}
	return at
}
