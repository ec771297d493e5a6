package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/alerthub-dev/alerthub/db"
	"github.com/alerthub-dev/alerthub/internal/models"
	"github.com/alerthub-dev/alerthub/internal/utils"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Subscribe adds a user to a topic. Users may subscribe themselves; admins
// may subscribe anyone.
func Subscribe(ctx *gin.Context) {
	topicID, userID, ok := subscriptionTarget(ctx)

	if !ok {
		return
	}

	var topic models.Topic

	if err := db.DB.First(&topic, topicID).Error; err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Topic not found"})
		return
	}

	var existing models.Subscription

	err := db.DB.Where("topic_id = ? AND user_id = ?", topicID, userID).First(&existing).Error

	if err == nil {
		ctx.JSON(http.StatusConflict, gin.H{"error": "Already subscribed"})
		return
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("Database error when checking subscription: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	subscription := models.Subscription{
		TopicID: uint(topicID),
		UserID:  uint(userID),
	}

	if err := db.DB.Create(&subscription).Error; err != nil {
		log.Printf("Failed to create subscription: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	ctx.JSON(http.StatusCreated, subscription)
}

// Unsubscribe removes a user from a topic under the same permission rule as
// Subscribe.
func Unsubscribe(ctx *gin.Context) {
	topicID, userID, ok := subscriptionTarget(ctx)

	if !ok {
		return
	}

	err := db.DB.Where("topic_id = ? AND user_id = ?", topicID, userID).
		Delete(&models.Subscription{}).Error

	if err != nil {
		log.Printf("Failed to delete subscription: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true})
}

func subscriptionTarget(ctx *gin.Context) (uint64, uint64, bool) {
	topicID, err := utils.GetTopicID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return 0, 0, false
	}

	userID, err := utils.GetUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return 0, 0, false
	}

	current, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return 0, 0, false
	}

	if uint64(current.ID) != userID && !current.IsAdmin {
		ctx.JSON(http.StatusForbidden, gin.H{"error": "You can only manage your own subscription"})
		return 0, 0, false
	}

	return topicID, userID, true
}
