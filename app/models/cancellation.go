package models

import "time"

// Cancellation is the audit row written when a user cancels Pro.
type Cancellation struct {
	ID                   uint      `gorm:"primaryKey" json:"id"`
	UserID               uint      `gorm:"not null;index" json:"user_id"`
	Username             string    `gorm:"type:varchar(150)" json:"username"`
	SubscriptionID       string    `gorm:"type:varchar(191);default:''" json:"subscription_id"`
	CancelledAt          time.Time `gorm:"not null;index" json:"cancelled_at"`
	SubscriptionDuration string    `gorm:"type:varchar(50)" json:"subscription_duration"`
	CreatedAt            time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Cancellation) TableName() string {
	return "cancellations"
}
