package billing

import (
	"context"
	"errors"
	"time"

	"github.com/ManuelReschke/FoxPass/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// maxCASAttempts bounds the read-reduce-write loop of ApplyMutation.
const maxCASAttempts = 5

// Selector identifies the profile an entitlement change targets. Fields are
// tried in order: subscription id, customer id, user id.
type Selector struct {
	SubscriptionID string
	CustomerID     string
	UserID         uint
}

func (s Selector) empty() bool {
	return s.SubscriptionID == "" && s.CustomerID == "" && s.UserID == 0
}

// Repository provides DB operations used by the billing service.
type Repository interface {
	FindProfile(ctx context.Context, sel Selector) (*models.Profile, error)
	// ApplyMutation folds m into the selected profile with a compare-and-set
	// on entitlement_version. The bool reports whether a row was written.
	ApplyMutation(ctx context.Context, sel Selector, m Mutation, eventAt time.Time) (*models.Profile, bool, error)
	ListExpiredPro(ctx context.Context, now time.Time, limit int) ([]models.Profile, error)

	CreateWebhookEventIfNotExists(ctx context.Context, event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error)
	MarkWebhookProcessed(ctx context.Context, id uint, outcome, processingError string) error

	CreateCancellation(ctx context.Context, c *models.Cancellation) error
	CreateAdminMessage(ctx context.Context, message string) error
	CreateAdminAction(ctx context.Context, a *models.AdminAction) error

	FindPromoCode(ctx context.Context, code string) (*models.PromoCode, error)
	ListActivePromoCodes(ctx context.Context) ([]models.PromoCode, error)
	SavePromoCode(ctx context.Context, p *models.PromoCode) error
	IncrementPromoCodeUse(ctx context.Context, code string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) FindProfile(ctx context.Context, sel Selector) (*models.Profile, error) {
	if sel.empty() {
		return nil, ErrProfileNotFound
	}
	lookups := []struct {
		column string
		value  interface{}
		ok     bool
	}{
		{"stripe_subscription_id", sel.SubscriptionID, sel.SubscriptionID != ""},
		{"stripe_customer_id", sel.CustomerID, sel.CustomerID != ""},
		{"id", sel.UserID, sel.UserID != 0},
	}
	for _, l := range lookups {
		if !l.ok {
			continue
		}
		var p models.Profile
		err := r.db.WithContext(ctx).Where(l.column+" = ?", l.value).First(&p).Error
		if err == nil {
			return &p, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return nil, ErrProfileNotFound
}

func (r *gormRepository) ApplyMutation(ctx context.Context, sel Selector, m Mutation, eventAt time.Time) (*models.Profile, bool, error) {
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		current, err := r.FindProfile(ctx, sel)
		if err != nil {
			return nil, false, err
		}
		next, err := Reduce(*current, m, eventAt)
		if err != nil {
			return current, false, err
		}
		if next.EntitlementVersion == current.EntitlementVersion {
			return current, false, nil
		}

		tx := r.db.WithContext(ctx).Model(&models.Profile{}).
			Where("id = ? AND entitlement_version = ?", current.ID, current.EntitlementVersion).
			Updates(map[string]interface{}{
				"is_pro":                  next.IsPro,
				"subscription_expires_at": nullable(next.SubscriptionExpiresAt),
				"subscription_started_at": nullable(next.SubscriptionStartedAt),
				"stripe_subscription_id":  nullable(next.StripeSubscriptionID),
				"stripe_customer_id":      nullable(next.StripeCustomerID),
				"points":                  next.Points,
				"entitlement_version":     next.EntitlementVersion,
				"last_event_at":           nullable(next.LastEventAt),
				"updated_at":              time.Now(),
			})
		if tx.Error != nil {
			return nil, false, tx.Error
		}
		if tx.RowsAffected == 1 {
			return &next, true, nil
		}
	}
	return nil, false, ErrVersionConflict
}

// nullable turns a nil pointer column into an explicit NULL.
func nullable[T any](v *T) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func (r *gormRepository) ListExpiredPro(ctx context.Context, now time.Time, limit int) ([]models.Profile, error) {
	var profiles []models.Profile
	q := r.db.WithContext(ctx).
		Where("is_pro = ? AND subscription_expires_at IS NOT NULL AND subscription_expires_at <= ?", true, now).
		Order("subscription_expires_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&profiles).Error
	return profiles, err
}

func (r *gormRepository) CreateWebhookEventIfNotExists(ctx context.Context, event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.BillingWebhookEvent
	if err := r.db.WithContext(ctx).Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(ctx context.Context, id uint, outcome, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
		"outcome":          outcome,
	}
	return r.db.WithContext(ctx).Model(&models.BillingWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

func (r *gormRepository) CreateCancellation(ctx context.Context, c *models.Cancellation) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *gormRepository) CreateAdminMessage(ctx context.Context, message string) error {
	return models.CreateAdminMessage(r.db.WithContext(ctx), message)
}

func (r *gormRepository) CreateAdminAction(ctx context.Context, a *models.AdminAction) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *gormRepository) FindPromoCode(ctx context.Context, code string) (*models.PromoCode, error) {
	var p models.PromoCode
	err := r.db.WithContext(ctx).Where("code = ?", models.NormalizePromoCode(code)).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) ListActivePromoCodes(ctx context.Context) ([]models.PromoCode, error) {
	var codes []models.PromoCode
	err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("code ASC").Find(&codes).Error
	return codes, err
}

func (r *gormRepository) SavePromoCode(ctx context.Context, p *models.PromoCode) error {
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *gormRepository) IncrementPromoCodeUse(ctx context.Context, code string) error {
	return r.db.WithContext(ctx).Model(&models.PromoCode{}).
		Where("code = ?", models.NormalizePromoCode(code)).
		UpdateColumn("times_used", gorm.Expr("times_used + ?", 1)).Error
}
