package repository

import (
	"github.com/ManuelReschke/FoxPass/app/models"
	"gorm.io/gorm"
)

// promoCodeRepository implements the PromoCodeRepository interface
type promoCodeRepository struct {
	db *gorm.DB
}

// NewPromoCodeRepository creates a new promo code repository instance
func NewPromoCodeRepository(db *gorm.DB) PromoCodeRepository {
	return &promoCodeRepository{db: db}
}

// Create stores a new promo code with its code normalized
func (r *promoCodeRepository) Create(code *models.PromoCode) error {
	code.Code = models.NormalizePromoCode(code.Code)
	return r.db.Create(code).Error
}

// GetByID retrieves a promo code by its ID
func (r *promoCodeRepository) GetByID(id uint) (*models.PromoCode, error) {
	var code models.PromoCode
	if err := r.db.First(&code, id).Error; err != nil {
		return nil, err
	}
	return &code, nil
}

// GetByCode retrieves a promo code by its (normalized) code
func (r *promoCodeRepository) GetByCode(code string) (*models.PromoCode, error) {
	var pc models.PromoCode
	if err := r.db.Where("code = ?", models.NormalizePromoCode(code)).First(&pc).Error; err != nil {
		return nil, err
	}
	return &pc, nil
}

// GetAll retrieves all promo codes ordered by code
func (r *promoCodeRepository) GetAll() ([]models.PromoCode, error) {
	var codes []models.PromoCode
	err := r.db.Order("code ASC").Find(&codes).Error
	return codes, err
}

// SetActive enables or disables a promo code
func (r *promoCodeRepository) SetActive(id uint, active bool) error {
	res := r.db.Model(&models.PromoCode{}).Where("id = ?", id).Update("is_active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete removes a promo code
func (r *promoCodeRepository) Delete(id uint) error {
	return r.db.Delete(&models.PromoCode{}, id).Error
}
