package models

import "gorm.io/gorm"

const (
	TopicStatusPending  = "pending"
	TopicStatusApproved = "approved"
	TopicStatusRejected = "rejected"
)

type Topic struct {
	gorm.Model

	Slug        string `gorm:"uniqueIndex;not null" json:"slug"` // key used in webhook URLs
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
	Status      string `gorm:"not null;default:pending" json:"status"`
	IsGlobal    bool   `gorm:"default:false" json:"is_global"` // global topics accept webhook posts with an unresolved token
	CreatedBy   *uint  `gorm:"index" json:"created_by"`
	ApprovedBy  *uint  `json:"approved_by"`

	// Relationships
	Creator       *User          `gorm:"foreignKey:CreatedBy;constraint:OnUpdate:Cascade,OnDelete:SET NULL" json:"creator,omitempty"`
	Subscriptions []Subscription `gorm:"foreignKey:TopicID;constraint:OnUpdate:Cascade,OnDelete:CASCADE" json:"subscriptions,omitempty"`
	GroupBindings []GroupBinding `gorm:"foreignKey:TopicID;constraint:OnUpdate:Cascade,OnDelete:CASCADE" json:"group_bindings,omitempty"`
}
