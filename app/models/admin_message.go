package models

import (
	"time"

	"gorm.io/gorm"
)

// AdminMessage is a notification shown in the admin inbox.
type AdminMessage struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Message   string         `gorm:"type:text;not null" json:"message"`
	IsRead    bool           `gorm:"default:false;index" json:"is_read"`
	CreatedAt time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// MarkAsRead flags the message as read
func (m *AdminMessage) MarkAsRead(db *gorm.DB) error {
	m.IsRead = true
	return db.Model(m).Update("is_read", true).Error
}

// CreateAdminMessage stores a new admin inbox message
func CreateAdminMessage(db *gorm.DB, message string) error {
	return db.Create(&AdminMessage{Message: message}).Error
}
