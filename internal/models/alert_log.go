package models

import "gorm.io/gorm"

const (
	LogStatusSent   = "sent"
	LogStatusFailed = "failed"
)

// AlertLog is one per-recipient delivery outcome, written in a single batch
// once the whole fan-out has settled.
type AlertLog struct {
	gorm.Model

	TaskID uint    `gorm:"not null;index" json:"task_id"`
	UserID *uint   `gorm:"index" json:"user_id"` // nil for group recipients
	Status string  `gorm:"not null" json:"status"`
	Error  *string `json:"error"`

	// Relationships
	Task AlertTask `gorm:"foreignKey:TaskID;constraint:OnUpdate:Cascade,OnDelete:CASCADE" json:"-"`
}
