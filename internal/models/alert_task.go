package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	TaskStatusPending    = "pending"
	TaskStatusProcessing = "processing"
	TaskStatusCompleted  = "completed"
	TaskStatusFailed     = "failed"
)

// AlertTask records one webhook invocation and the aggregate outcome of its
// fan-out. Status only moves forward: processing -> completed | failed.
type AlertTask struct {
	gorm.Model

	TopicSlug      *string        `gorm:"index" json:"topic_slug"` // nil for direct messages
	SenderID       *uint          `gorm:"index" json:"sender_id"`
	Status         string         `gorm:"not null" json:"status"`
	RecipientCount int            `gorm:"not null;default:0" json:"recipient_count"`
	SuccessCount   int            `gorm:"not null;default:0" json:"success_count"`
	Payload        datatypes.JSON `gorm:"type:jsonb" json:"payload"`
	Error          *string        `json:"error"`

	// Relationships
	Sender *User      `gorm:"foreignKey:SenderID;constraint:OnUpdate:Cascade,OnDelete:SET NULL" json:"sender,omitempty"`
	Logs   []AlertLog `gorm:"foreignKey:TaskID;constraint:OnUpdate:Cascade,OnDelete:CASCADE" json:"logs,omitempty"`
}
