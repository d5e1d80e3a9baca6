package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	AdminActionGrantPro       = "grant_pro"
	AdminActionRevokePro      = "revoke_pro"
	AdminActionAdjustPoints   = "adjust_points"
	AdminActionSyncPromoCodes = "sync_promo_codes"
)

// AdminAction records an administrator write for later review.
type AdminAction struct {
	ID          string    `gorm:"type:char(36);primaryKey" json:"id"`
	AdminID     uint      `gorm:"not null;index" json:"admin_id"`
	ActionType  string    `gorm:"type:varchar(50);not null;index" json:"action_type"`
	TargetID    *uint     `gorm:"index" json:"target_id,omitempty"`
	DetailsJSON string    `gorm:"type:text" json:"details"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

// NewAdminAction builds an action record with a fresh id.
func NewAdminAction(adminID uint, actionType string, targetID *uint, details map[string]interface{}) *AdminAction {
	a := &AdminAction{
		ID:         uuid.New().String(),
		AdminID:    adminID,
		ActionType: actionType,
		TargetID:   targetID,
	}
	a.SetDetails(details)
	return a
}

func (a *AdminAction) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}

// SetDetails serializes arbitrary details into DetailsJSON.
func (a *AdminAction) SetDetails(details map[string]interface{}) {
	if len(details) == 0 {
		a.DetailsJSON = ""
		return
	}
	b, err := json.Marshal(details)
	if err != nil {
		return
	}
	a.DetailsJSON = string(b)
}
