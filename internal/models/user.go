package models

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PersonalTokenLength is the fixed length of webhook bearer tokens.
const PersonalTokenLength = 8

type User struct {
	gorm.Model

	Name         string  `gorm:"not null" json:"name"`
	FeishuUserID string  `gorm:"index" json:"feishu_user_id"` // open_id ("ou_" prefix) or legacy user_id; empty means undeliverable
	Email        *string `gorm:"uniqueIndex" json:"email"`
	IsAdmin      bool    `gorm:"default:false" json:"is_admin"`
	IsTrusted    bool    `gorm:"default:false" json:"is_trusted"`

	PersonalToken string `gorm:"size:8;uniqueIndex;not null" json:"personal_token"`

	// Relationships
	Subscriptions []Subscription `gorm:"foreignKey:UserID;constraint:OnUpdate:Cascade,OnDelete:CASCADE" json:"subscriptions,omitempty"`
}

// NewPersonalToken returns a fresh 8-character lowercase hex token.
func NewPersonalToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:PersonalTokenLength]
}
