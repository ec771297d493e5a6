package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/alerthub-dev/alerthub/db"
	"github.com/alerthub-dev/alerthub/internal/models"
	"github.com/alerthub-dev/alerthub/internal/notifier"
	"github.com/alerthub-dev/alerthub/internal/utils"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type CreateBindingRequest struct {
	ChatID string `json:"chat_id" binding:"required"`
}

// ListKnownGroupChats returns the group chats the bot is currently a member
// of, most recently active first. This is the candidate list for bindings.
func ListKnownGroupChats(ctx *gin.Context) {
	var chats []models.KnownGroupChat

	if err := db.DB.Order("last_active_at desc").Find(&chats).Error; err != nil {
		log.Printf("Failed to list known group chats: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	ctx.JSON(http.StatusOK, chats)
}

// ListBindings returns the bindings of one topic.
func ListBindings(ctx *gin.Context) {
	topicID, err := utils.GetTopicID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var bindings []models.GroupBinding

	if err := db.DB.Preload("Creator").Where("topic_id = ?", topicID).Find(&bindings).Error; err != nil {
		log.Printf("Failed to list bindings for topic %d: %v", topicID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	ctx.JSON(http.StatusOK, bindings)
}

// CreateBinding requests a topic -> group chat binding. Admins and trusted
// users bind immediately; others file a pending request.
func CreateBinding(ctx *gin.Context) {
	topicID, err := utils.GetTopicID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var body CreateBindingRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	user, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var topic models.Topic

	if err := db.DB.First(&topic, topicID).Error; err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Topic not found"})
		return
	}

	var chat models.KnownGroupChat

	if err := db.DB.Where("chat_id = ?", body.ChatID).First(&chat).Error; err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Unknown group chat; add the bot to the group first"})
		return
	}

	var existing models.GroupBinding

	err = db.DB.Where("topic_id = ? AND chat_id = ?", topicID, body.ChatID).First(&existing).Error

	if err == nil {
		ctx.JSON(http.StatusConflict, gin.H{"error": "Binding already exists"})
		return
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("Database error when checking binding: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	status := models.BindingStatusPending

	if user.IsAdmin || user.IsTrusted {
		status = models.BindingStatusApproved
	}

	userID := user.ID

	binding := models.GroupBinding{
		TopicID:   uint(topicID),
		ChatID:    body.ChatID,
		Status:    status,
		CreatedBy: &userID,
	}

	if err := db.DB.Create(&binding).Error; err != nil {
		log.Printf("Failed to create binding: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if status == models.BindingStatusPending {
		go notifier.NotifyBindingRequest(topic, chat.Name, user.Name)
	}

	ctx.JSON(http.StatusCreated, binding)
}

// ApproveBinding activates a pending binding.
func ApproveBinding(ctx *gin.Context) {
	setBindingStatus(ctx, models.BindingStatusApproved)
}

// RejectBinding rejects a pending binding.
func RejectBinding(ctx *gin.Context) {
	setBindingStatus(ctx, models.BindingStatusRejected)
}

func setBindingStatus(ctx *gin.Context, status string) {
	bindingID, err := utils.GetBindingID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var binding models.GroupBinding

	if err := db.DB.First(&binding, bindingID).Error; err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Binding not found"})
		return
	}

	binding.Status = status

	if err := db.DB.Save(&binding).Error; err != nil {
		log.Printf("Failed to set binding %d status to %s: %v", bindingID, status, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	ctx.JSON(http.StatusOK, binding)
}

// DeleteBinding removes a binding. Admins may delete any; others only their
// own requests.
func DeleteBinding(ctx *gin.Context) {
	bindingID, err := utils.GetBindingID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var binding models.GroupBinding

	if err := db.DB.First(&binding, bindingID).Error; err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Binding not found"})
		return
	}

	if !user.IsAdmin && (binding.CreatedBy == nil || *binding.CreatedBy != user.ID) {
		ctx.JSON(http.StatusForbidden, gin.H{"error": "You can only delete your own binding requests"})
		return
	}

	if err := db.DB.Delete(&binding).Error; err != nil {
		log.Printf("Failed to delete binding %d: %v", bindingID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true})
}
