package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/alerthub-dev/alerthub/db"
	"github.com/alerthub-dev/alerthub/internal/models"
	"github.com/alerthub-dev/alerthub/internal/utils"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const inlineLogLimit = 10

type TaskSummary struct {
	models.AlertTask
	LogsTruncated bool `json:"logs_truncated"`
}

// ListTasks returns recent alert tasks, newest first, with at most ten log
// rows inlined per task.
func ListTasks(ctx *gin.Context) {
	limit := 50

	if raw := ctx.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	if limit > 100 {
		limit = 100
	}

	var tasks []models.AlertTask

	err := db.DB.Preload("Sender").Preload("Logs").
		Order("created_at desc").
		Limit(limit).
		Find(&tasks).Error

	if err != nil {
		log.Printf("Failed to list tasks: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	summaries := make([]TaskSummary, len(tasks))

	for i, task := range tasks {
		truncated := false

		if len(task.Logs) > inlineLogLimit {
			task.Logs = task.Logs[:inlineLogLimit]
			truncated = true
		}

		summaries[i] = TaskSummary{AlertTask: task, LogsTruncated: truncated}
	}

	ctx.JSON(http.StatusOK, summaries)
}

// GetTask returns one task with all its delivery logs. This is how callers
// observe delivery status after the webhook acknowledgment.
func GetTask(ctx *gin.Context) {
	taskID, err := utils.GetTaskID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var task models.AlertTask

	err = db.DB.Preload("Sender").Preload("Logs").First(&task, taskID).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
			return
		}

		log.Printf("Failed to load task %d: %v", taskID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	ctx.JSON(http.StatusOK, task)
}

type TopicStat struct {
	TopicSlug       *string `json:"topic_slug"`
	TotalTasks      int64   `json:"total_tasks"`
	TotalRecipients int64   `json:"total_recipients"`
	TotalSuccess    int64   `json:"total_success"`
}

type RecentStat struct {
	TaskCount       int64 `json:"task_count"`
	TotalRecipients int64 `json:"total_recipients"`
	TotalSuccess    int64 `json:"total_success"`
}

// GetStats returns per-topic delivery totals and a success-rate summary for
// the last 24 hours.
func GetStats(ctx *gin.Context) {
	var topicStats []TopicStat

	err := db.DB.Model(&models.AlertTask{}).
		Select("topic_slug, count(*) as total_tasks, coalesce(sum(recipient_count), 0) as total_recipients, coalesce(sum(success_count), 0) as total_success").
		Group("topic_slug").
		Scan(&topicStats).Error

	if err != nil {
		log.Printf("Failed to compute topic stats: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	var recent RecentStat

	last24h := time.Now().Add(-24 * time.Hour)

	err = db.DB.Model(&models.AlertTask{}).
		Select("count(*) as task_count, coalesce(sum(recipient_count), 0) as total_recipients, coalesce(sum(success_count), 0) as total_success").
		Where("created_at > ?", last24h).
		Scan(&recent).Error

	if err != nil {
		log.Printf("Failed to compute recent stats: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	successRate := 100.0

	if recent.TotalRecipients > 0 {
		successRate = float64(recent.TotalSuccess) / float64(recent.TotalRecipients) * 100
	}

	ctx.JSON(http.StatusOK, gin.H{
		"topics": topicStats,
		"recent": gin.H{
			"alertsReceived":  recent.TaskCount,
			"plannedMessages": recent.TotalRecipients,
			"successCount":    recent.TotalSuccess,
			"failedCount":     recent.TotalRecipients - recent.TotalSuccess,
			"successRate":     successRate,
		},
	})
}
