package models

import "gorm.io/gorm"

type Subscription struct {
	gorm.Model

	UserID  uint `gorm:"not null;uniqueIndex:idx_user_topic" json:"user_id"`
	TopicID uint `gorm:"not null;uniqueIndex:idx_user_topic" json:"topic_id"`

	// Relationships
	User  User  `gorm:"foreignKey:UserID;constraint:OnUpdate:Cascade,OnDelete:CASCADE" json:"user,omitempty"`
	Topic Topic `gorm:"foreignKey:TopicID;constraint:OnUpdate:Cascade,OnDelete:CASCADE" json:"topic,omitempty"`
}
