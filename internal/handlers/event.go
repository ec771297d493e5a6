package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/alerthub-dev/alerthub/db"
	"github.com/alerthub-dev/alerthub/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm/clause"
)

const (
	eventBotAdded   = "im.chat.member.bot.added_v1"
	eventBotDeleted = "im.chat.member.bot.deleted_v1"
)

type platformEvent struct {
	Challenge string `json:"challenge"`
	Type      string `json:"type"`
	Header    struct {
		EventType string `json:"event_type"`
	} `json:"header"`
	Event struct {
		ChatID string `json:"chat_id"`
		Name   string `json:"name"`
	} `json:"event"`
}

// FeishuEvent receives platform callbacks: the URL-verification challenge and
// bot group-membership changes that maintain the group chat directory.
func FeishuEvent(ctx *gin.Context) {
	var event platformEvent

	if err := ctx.BindJSON(&event); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if event.Type == "url_verification" {
		ctx.JSON(http.StatusOK, gin.H{"challenge": event.Challenge})
		return
	}

	switch event.Header.EventType {
	case eventBotAdded:
		handleBotAdded(ctx, event)
	case eventBotDeleted:
		handleBotDeleted(ctx, event)
	default:
		ctx.JSON(http.StatusOK, gin.H{})
	}
}

func handleBotAdded(ctx *gin.Context, event platformEvent) {
	if event.Event.ChatID == "" {
		ctx.JSON(http.StatusOK, gin.H{})
		return
	}

	name := event.Event.Name

	if name == "" {
		name = "Unknown Group"
	}

	log.Printf("[Feishu Event] Bot added to group %s (%s)", event.Event.ChatID, name)

	chat := models.KnownGroupChat{
		ChatID:       event.Event.ChatID,
		Name:         name,
		LastActiveAt: time.Now(),
	}

	err := db.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chat_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "last_active_at"}),
	}).Create(&chat).Error

	if err != nil {
		log.Printf("[Feishu Event] Failed to upsert group chat %s: %v", event.Event.ChatID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{})
}

// handleBotDeleted drops the directory entry and any bindings pointing at the
// chat; a group the bot left can no longer receive alerts.
func handleBotDeleted(ctx *gin.Context, event platformEvent) {
	if event.Event.ChatID == "" {
		ctx.JSON(http.StatusOK, gin.H{})
		return
	}

	log.Printf("[Feishu Event] Bot removed from group %s", event.Event.ChatID)

	if err := db.DB.Where("chat_id = ?", event.Event.ChatID).Delete(&models.KnownGroupChat{}).Error; err != nil {
		log.Printf("[Feishu Event] Failed to delete group chat %s: %v", event.Event.ChatID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if err := db.DB.Where("chat_id = ?", event.Event.ChatID).Delete(&models.GroupBinding{}).Error; err != nil {
		log.Printf("[Feishu Event] Failed to delete bindings for chat %s: %v", event.Event.ChatID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{})
}
