package billing

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ManuelReschke/FoxPass/app/models"
	"gorm.io/gorm"
)

// MemoryRepository is an in-process Repository used by tests and local tooling.
type MemoryRepository struct {
	mu            sync.Mutex
	profiles      map[uint]models.Profile
	events        []models.BillingWebhookEvent
	Cancellations []models.Cancellation
	AdminMessages []string
	AdminActions  []models.AdminAction
	promoCodes    map[string]models.PromoCode
	nextPromoID   uint
}

// NewMemoryRepository seeds a repository with the given profiles.
func NewMemoryRepository(profiles ...models.Profile) *MemoryRepository {
	r := &MemoryRepository{
		profiles:   make(map[uint]models.Profile),
		promoCodes: make(map[string]models.PromoCode),
	}
	for _, p := range profiles {
		r.profiles[p.ID] = p
	}
	return r
}

// PutProfile inserts or replaces a profile.
func (r *MemoryRepository) PutProfile(p models.Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[p.ID] = p
}

// Profile returns a copy of the stored profile.
func (r *MemoryRepository) Profile(id uint) (models.Profile, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[id]
	return p, ok
}

// Events returns a copy of the webhook event log.
func (r *MemoryRepository) Events() []models.BillingWebhookEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.BillingWebhookEvent, len(r.events))
	copy(out, r.events)
	return out
}

func (r *MemoryRepository) FindProfile(_ context.Context, sel Selector) (*models.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.find(sel)
	if !ok {
		return nil, ErrProfileNotFound
	}
	return &p, nil
}

func (r *MemoryRepository) find(sel Selector) (models.Profile, bool) {
	if sel.SubscriptionID != "" {
		for _, p := range r.profiles {
			if p.SubscriptionID() == sel.SubscriptionID {
				return p, true
			}
		}
	}
	if sel.CustomerID != "" {
		for _, p := range r.profiles {
			if p.CustomerID() == sel.CustomerID {
				return p, true
			}
		}
	}
	if sel.UserID != 0 {
		p, ok := r.profiles[sel.UserID]
		return p, ok
	}
	return models.Profile{}, false
}

func (r *MemoryRepository) ApplyMutation(_ context.Context, sel Selector, m Mutation, eventAt time.Time) (*models.Profile, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.find(sel)
	if !ok {
		return nil, false, ErrProfileNotFound
	}
	next, err := Reduce(current, m, eventAt)
	if err != nil {
		return &current, false, err
	}
	if next.EntitlementVersion == current.EntitlementVersion {
		return &current, false, nil
	}
	r.profiles[next.ID] = next
	return &next, true, nil
}

func (r *MemoryRepository) ListExpiredPro(_ context.Context, now time.Time, limit int) ([]models.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Profile
	for _, p := range r.profiles {
		if p.IsPro && p.SubscriptionExpiresAt != nil && !p.SubscriptionExpiresAt.After(now) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SubscriptionExpiresAt.Before(*out[j].SubscriptionExpiresAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) CreateWebhookEventIfNotExists(_ context.Context, event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.Provider == event.Provider && e.ProviderEventID == event.ProviderEventID {
			stored := e
			return false, &stored, nil
		}
	}
	event.ID = uint(len(r.events) + 1)
	event.CreatedAt = time.Now()
	r.events = append(r.events, *event)
	stored := *event
	return true, &stored, nil
}

func (r *MemoryRepository) MarkWebhookProcessed(_ context.Context, id uint, outcome, processingError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.events {
		if r.events[i].ID == id {
			now := time.Now()
			r.events[i].ProcessedAt = &now
			r.events[i].Outcome = outcome
			r.events[i].ProcessingError = processingError
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *MemoryRepository) CreateCancellation(_ context.Context, c *models.Cancellation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.ID = uint(len(r.Cancellations) + 1)
	r.Cancellations = append(r.Cancellations, *c)
	return nil
}

func (r *MemoryRepository) CreateAdminMessage(_ context.Context, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.AdminMessages = append(r.AdminMessages, message)
	return nil
}

func (r *MemoryRepository) CreateAdminAction(_ context.Context, a *models.AdminAction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.AdminActions = append(r.AdminActions, *a)
	return nil
}

func (r *MemoryRepository) FindPromoCode(_ context.Context, code string) (*models.PromoCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.promoCodes[models.NormalizePromoCode(code)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

func (r *MemoryRepository) ListActivePromoCodes(_ context.Context) ([]models.PromoCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.PromoCode
	for _, p := range r.promoCodes {
		if p.IsActive {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r *MemoryRepository) SavePromoCode(_ context.Context, p *models.PromoCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.Code = models.NormalizePromoCode(p.Code)
	if p.ID == 0 {
		r.nextPromoID++
		p.ID = r.nextPromoID
	}
	r.promoCodes[p.Code] = *p
	return nil
}

func (r *MemoryRepository) IncrementPromoCodeUse(_ context.Context, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := models.NormalizePromoCode(code)
	p, ok := r.promoCodes[key]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	p.TimesUsed++
	r.promoCodes[key] = p
	return nil
}
