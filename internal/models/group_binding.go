package models

import "gorm.io/gorm"

const (
	BindingStatusPending  = "pending"
	BindingStatusApproved = "approved"
	BindingStatusRejected = "rejected"
)

// GroupBinding associates a topic with an external group chat. Only approved
// bindings receive traffic.
type GroupBinding struct {
	gorm.Model

	TopicID   uint   `gorm:"not null;uniqueIndex:idx_topic_chat" json:"topic_id"`
	ChatID    string `gorm:"not null;uniqueIndex:idx_topic_chat" json:"chat_id"`
	Status    string `gorm:"not null;default:pending" json:"status"`
	CreatedBy *uint  `gorm:"index" json:"created_by"`

	// Relationships
	Topic   Topic `gorm:"foreignKey:TopicID;constraint:OnUpdate:Cascade,OnDelete:CASCADE" json:"topic,omitempty"`
	Creator *User `gorm:"foreignKey:CreatedBy;constraint:OnUpdate:Cascade,OnDelete:SET NULL" json:"creator,omitempty"`
}
