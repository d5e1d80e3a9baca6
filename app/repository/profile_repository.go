package repository

import (
	"strings"

	"github.com/ManuelReschke/FoxPass/app/models"
	"gorm.io/gorm"
)

// profileRepository implements the ProfileRepository interface
type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new profile repository instance
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

// Create creates a new profile; entitlement columns start at their defaults
func (r *profileRepository) Create(profile *models.Profile) error {
	if profile.Role == "" {
		profile.Role = models.ROLE_USER
	}
	if profile.Status == "" {
		profile.Status = models.STATUS_ACTIVE
	}
	if err := profile.Validate(); err != nil {
		return err
	}
	return r.db.Omit(
		"IsPro", "SubscriptionExpiresAt", "SubscriptionStartedAt",
		"StripeSubscriptionID", "StripeCustomerID", "Points",
		"EntitlementVersion", "LastEventAt",
	).Create(profile).Error
}

// GetByID retrieves a profile by its ID
func (r *profileRepository) GetByID(id uint) (*models.Profile, error) {
	var profile models.Profile
	err := r.db.First(&profile, id).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetByUsername retrieves a profile by username
func (r *profileRepository) GetByUsername(username string) (*models.Profile, error) {
	var profile models.Profile
	err := r.db.Where("username = ?", strings.TrimSpace(username)).First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpdateAccount updates username, email, role and status
func (r *profileRepository) UpdateAccount(profile *models.Profile) error {
	if err := profile.Validate(); err != nil {
		return err
	}
	return r.db.Model(&models.Profile{}).Where("id = ?", profile.ID).Updates(map[string]interface{}{
		"username": profile.Username,
		"email":    profile.Email,
		"role":     profile.Role,
		"status":   profile.Status,
	}).Error
}

// List retrieves profiles with pagination
func (r *profileRepository) List(offset, limit int) ([]models.Profile, error) {
	var profiles []models.Profile
	err := r.db.Order("id ASC").Offset(offset).Limit(limit).Find(&profiles).Error
	return profiles, err
}

// Count returns the total number of profiles
func (r *profileRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Profile{}).Count(&count).Error
	return count, err
}

// CountPro returns the number of profiles currently flagged Pro
func (r *profileRepository) CountPro() (int64, error) {
	var count int64
	err := r.db.Model(&models.Profile{}).Where("is_pro = ?", true).Count(&count).Error
	return count, err
}
