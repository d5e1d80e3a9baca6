package repository

import (
	"github.com/ManuelReschke/FoxPass/app/models"
	"gorm.io/gorm"
)

// ProfileRepository covers the non-entitlement profile columns. Entitlement
// fields are written by the billing service only.
type ProfileRepository interface {
	Create(profile *models.Profile) error
	GetByID(id uint) (*models.Profile, error)
	GetByUsername(username string) (*models.Profile, error)
	UpdateAccount(profile *models.Profile) error
	List(offset, limit int) ([]models.Profile, error)
	Count() (int64, error)
	CountPro() (int64, error)
}

// PromoCodeRepository defines the interface for the promo code allow-list
type PromoCodeRepository interface {
	Create(code *models.PromoCode) error
	GetByID(id uint) (*models.PromoCode, error)
	GetByCode(code string) (*models.PromoCode, error)
	GetAll() ([]models.PromoCode, error)
	SetActive(id uint, active bool) error
	Delete(id uint) error
}

// AdminMessageRepository defines the interface for the admin inbox
type AdminMessageRepository interface {
	GetUnread(limit int) ([]models.AdminMessage, error)
	MarkAsRead(id uint) error
	CountUnread() (int64, error)
}

// Repositories holds all repository instances
type Repositories struct {
	Profile      ProfileRepository
	PromoCode    PromoCodeRepository
	AdminMessage AdminMessageRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Profile:      NewProfileRepository(db),
		PromoCode:    NewPromoCodeRepository(db),
		AdminMessage: NewAdminMessageRepository(db),
	}
}
