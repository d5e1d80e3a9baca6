package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	ROLE_USER       = "user"
	ROLE_ADMIN      = "admin"
	STATUS_ACTIVE   = "active"
	STATUS_INACTIVE = "inactive"
	STATUS_DISABLED = "disabled"
)

// Profile is the per-user record holding the Pro entitlement next to the
// public profile fields. Entitlement columns are only written through the
// billing package so every change bumps EntitlementVersion.
type Profile struct {
	ID                    uint           `gorm:"primaryKey" json:"id"`
	Username              string         `gorm:"type:varchar(150);uniqueIndex" json:"username" validate:"required,min=3,max=150"`
	Email                 string         `gorm:"type:varchar(200);index" json:"email" validate:"omitempty,email,max=200"`
	Role                  string         `gorm:"type:varchar(50);default:'user'" json:"role" validate:"oneof=user admin"`
	Status                string         `gorm:"type:varchar(50);default:'active'" json:"status" validate:"oneof=active inactive disabled"`
	IsPro                 bool           `gorm:"default:false;index" json:"is_pro"`
	SubscriptionExpiresAt *time.Time     `gorm:"type:timestamp;default:null;index" json:"subscription_expires_at"`
	SubscriptionStartedAt *time.Time     `gorm:"type:timestamp;default:null" json:"subscription_started_at"`
	StripeSubscriptionID  *string        `gorm:"type:varchar(191);default:null;uniqueIndex" json:"-"`
	StripeCustomerID      *string        `gorm:"type:varchar(191);default:null;index" json:"-"`
	Points                int            `gorm:"not null;default:0" json:"points"`
	EntitlementVersion    uint64         `gorm:"not null;default:0" json:"entitlement_version"`
	LastEventAt           *time.Time     `gorm:"type:timestamp;default:null" json:"-"`
	CreatedAt             time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt             gorm.DeletedAt `gorm:"index" json:"-"`
}

func (p *Profile) Validate() error {
	v := validator.New()

	return v.Struct(p)
}

// IsActive reports whether the account status is active
func (p *Profile) IsActive() bool {
	return p.Status == STATUS_ACTIVE
}

// IsAdmin reports whether the profile carries the admin role
func (p *Profile) IsAdmin() bool {
	return p.Role == ROLE_ADMIN
}

// CustomerID returns the stored processor customer id or "".
func (p *Profile) CustomerID() string {
	if p.StripeCustomerID == nil {
		return ""
	}
	return *p.StripeCustomerID
}

// SubscriptionID returns the stored processor subscription id or "".
func (p *Profile) SubscriptionID() string {
	if p.StripeSubscriptionID == nil {
		return ""
	}
	return *p.StripeSubscriptionID
}

// DisplayName is used in admin-facing messages.
func (p *Profile) DisplayName() string {
	if p.Username == "" {
		return "Unknown User"
	}
	return p.Username
}
