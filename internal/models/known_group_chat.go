package models

import (
	"time"

	"gorm.io/gorm"
)

// KnownGroupChat is a directory entry for a group chat the bot is a member of,
// maintained from platform membership events. It feeds the binding UI.
type KnownGroupChat struct {
	gorm.Model

	ChatID       string    `gorm:"uniqueIndex;not null" json:"chat_id"`
	Name         string    `gorm:"not null" json:"name"`
	LastActiveAt time.Time `json:"last_active_at"`
}
