package repository

import (
	"github.com/ManuelReschke/FoxPass/app/models"
	"gorm.io/gorm"
)

// adminMessageRepository implements the AdminMessageRepository interface
type adminMessageRepository struct {
	db *gorm.DB
}

// NewAdminMessageRepository creates a new admin message repository instance
func NewAdminMessageRepository(db *gorm.DB) AdminMessageRepository {
	return &adminMessageRepository{db: db}
}

// GetUnread retrieves the newest unread messages
func (r *adminMessageRepository) GetUnread(limit int) ([]models.AdminMessage, error) {
	var messages []models.AdminMessage
	err := r.db.Where("is_read = ?", false).Order("created_at DESC").Limit(limit).Find(&messages).Error
	return messages, err
}

// MarkAsRead flags a message as read
func (r *adminMessageRepository) MarkAsRead(id uint) error {
	msg := models.AdminMessage{ID: id}
	return msg.MarkAsRead(r.db)
}

// CountUnread returns the number of unread messages
func (r *adminMessageRepository) CountUnread() (int64, error) {
	var count int64
	err := r.db.Model(&models.AdminMessage{}).Where("is_read = ?", false).Count(&count).Error
	return count, err
}
