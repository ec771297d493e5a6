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

type CreateTopicRequest struct {
	Name        string `json:"name" binding:"required"`
	Slug        string `json:"slug" binding:"required"`
	Description string `json:"description"`
	IsGlobal    bool   `json:"is_global"`
}

type UpdateTopicRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsGlobal    *bool  `json:"is_global"`
}

// ListTopics returns approved topics. Non-admins only see their own
// subscription rows embedded, so the dashboard can show what they follow
// without leaking the full subscriber list.
func ListTopics(ctx *gin.Context) {
	user, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	query := db.DB.Where("status = ?", models.TopicStatusApproved)

	if user.IsAdmin {
		query = query.Preload("Subscriptions.User")
	} else {
		query = query.Preload("Subscriptions", "user_id = ?", user.ID)
	}

	var topics []models.Topic

	if err := query.Find(&topics).Error; err != nil {
		log.Printf("Failed to list topics: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	ctx.JSON(http.StatusOK, topics)
}

// ListTopicRequests returns pending topics awaiting approval.
func ListTopicRequests(ctx *gin.Context) {
	var topics []models.Topic

	err := db.DB.Preload("Creator").
		Where("status = ?", models.TopicStatusPending).
		Find(&topics).Error

	if err != nil {
		log.Printf("Failed to list topic requests: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	ctx.JSON(http.StatusOK, topics)
}

// ListAllTopics returns every topic regardless of status.
func ListAllTopics(ctx *gin.Context) {
	var topics []models.Topic

	err := db.DB.Preload("Creator").Preload("Subscriptions").
		Order("created_at desc").
		Find(&topics).Error

	if err != nil {
		log.Printf("Failed to list all topics: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	ctx.JSON(http.StatusOK, topics)
}

// ListMyTopicRequests returns the topics the caller created.
func ListMyTopicRequests(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var topics []models.Topic

	if err := db.DB.Where("created_by = ?", userID).Order("created_at desc").Find(&topics).Error; err != nil {
		log.Printf("Failed to list topic requests for user %d: %v", userID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	ctx.JSON(http.StatusOK, topics)
}

// CreateTopic creates a topic. Admins and trusted users get it approved
// immediately; everyone else files a pending request and the admins are
// notified.
func CreateTopic(ctx *gin.Context) {
	var body CreateTopicRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	user, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var existing models.Topic

	err = db.DB.Where("slug = ?", body.Slug).First(&existing).Error

	if err == nil {
		ctx.JSON(http.StatusConflict, gin.H{"error": "Slug already exists"})
		return
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("Database error when checking existing topic: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	status := models.TopicStatusPending

	if user.IsAdmin || user.IsTrusted {
		status = models.TopicStatusApproved
	}

	userID := user.ID

	topic := models.Topic{
		Name:        body.Name,
		Slug:        body.Slug,
		Description: body.Description,
		IsGlobal:    body.IsGlobal && user.IsAdmin,
		Status:      status,
		CreatedBy:   &userID,
	}

	if err := db.DB.Create(&topic).Error; err != nil {
		log.Printf("Failed to create topic: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if status == models.TopicStatusPending {
		go notifier.NotifyTopicRequest(topic, user.Name)
	}

	ctx.JSON(http.StatusCreated, topic)
}

// UpdateTopic applies a partial update.
func UpdateTopic(ctx *gin.Context) {
	topicID, err := utils.GetTopicID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var body UpdateTopicRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	var topic models.Topic

	if err := db.DB.First(&topic, topicID).Error; err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Topic not found"})
		return
	}

	if body.Name != "" {
		topic.Name = body.Name
	}

	if body.Description != "" {
		topic.Description = body.Description
	}

	if body.IsGlobal != nil {
		topic.IsGlobal = *body.IsGlobal
	}

	if err := db.DB.Save(&topic).Error; err != nil {
		log.Printf("Failed to update topic %d: %v", topicID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	ctx.JSON(http.StatusOK, topic)
}

// DeleteTopic removes a topic along with its subscriptions and bindings.
func DeleteTopic(ctx *gin.Context) {
	topicID, err := utils.GetTopicID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var topic models.Topic

	if err := db.DB.First(&topic, topicID).Error; err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Topic not found"})
		return
	}

	if err := db.DB.Select("Subscriptions", "GroupBindings").Delete(&topic).Error; err != nil {
		log.Printf("Failed to delete topic %d: %v", topicID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true})
}

// ApproveTopic marks a pending topic as approved.
func ApproveTopic(ctx *gin.Context) {
	setTopicStatus(ctx, models.TopicStatusApproved)
}

// RejectTopic marks a pending topic as rejected.
func RejectTopic(ctx *gin.Context) {
	setTopicStatus(ctx, models.TopicStatusRejected)
}

func setTopicStatus(ctx *gin.Context, status string) {
	topicID, err := utils.GetTopicID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var topic models.Topic

	if err := db.DB.First(&topic, topicID).Error; err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Topic not found"})
		return
	}

	topic.Status = status
	topic.ApprovedBy = &userID

	if err := db.DB.Save(&topic).Error; err != nil {
		log.Printf("Failed to set topic %d status to %s: %v", topicID, status, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	ctx.JSON(http.StatusOK, topic)
}
