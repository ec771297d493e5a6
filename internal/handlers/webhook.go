package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/alerthub-dev/alerthub/db"
	"github.com/alerthub-dev/alerthub/internal/alert"
	"github.com/alerthub-dev/alerthub/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

var dispatcher *alert.Dispatcher

// InitDispatcher wires the delivery engine used by the webhook routes.
func InitDispatcher(d *alert.Dispatcher) {
	dispatcher = d
}

// findUserByToken resolves a personal webhook token to its owner. Tokens have
// a fixed 8-character contract, so anything else skips the lookup entirely.
func findUserByToken(token string) *models.User {
	if len(token) != models.PersonalTokenLength {
		return nil
	}

	var user models.User

	err := db.DB.Where("personal_token = ?", token).First(&user).Error

	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[Webhook] Database error resolving token: %v", err)
		}
		return nil
	}

	return &user
}

// readBody parses the raw request body as a non-empty JSON object. It returns
// the raw bytes so the task row can store the payload verbatim.
func readBody(ctx *gin.Context) ([]byte, map[string]interface{}, bool) {
	raw, err := io.ReadAll(ctx.Request.Body)

	if err != nil || strings.TrimSpace(string(raw)) == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Empty body"})
		return nil, nil, false
	}

	var body map[string]interface{}

	if err := json.Unmarshal(raw, &body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return nil, nil, false
	}

	return raw, body, true
}

// TopicWebhook handles POST /webhook/:token/topic/:slug and fans the payload
// out to every resolved recipient of the topic.
func TopicWebhook(ctx *gin.Context) {
	if ctx.Request.Method != http.MethodPost {
		WebhookUsage(ctx)
		return
	}

	token := ctx.Param("token")
	slug := ctx.Param("slug")

	user := findUserByToken(token)

	if user == nil {
		// Global topics accept posts whose token does not resolve; the task
		// is then recorded without a sender.
		var topic models.Topic

		err := db.DB.Where("slug = ?", slug).First(&topic).Error

		if err != nil || !topic.IsGlobal {
			log.Printf("[Webhook] Invalid personal token for slug %s", slug)
			ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid personal token"})
			return
		}
	}

	raw, body, ok := readBody(ctx)

	if !ok {
		return
	}

	var topic models.Topic

	if err := db.DB.Where("slug = ?", slug).First(&topic).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[Webhook] Topic not found: %s", slug)
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Topic not found"})
			return
		}

		log.Printf("[Webhook] Database error resolving topic %s: %v", slug, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	recipients, err := alert.ResolveRecipients(&topic)

	if err != nil {
		log.Printf("[Webhook] Failed to resolve recipients for %s: %v", slug, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	var senderID *uint

	if user != nil {
		senderID = &user.ID
	}

	task, err := dispatcher.CreateTask(&topic.Slug, senderID, len(recipients), raw)

	if err != nil {
		log.Printf("[Webhook] Failed to create task for %s: %v", slug, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if len(recipients) == 0 {
		if err := dispatcher.FinalizeEmpty(task); err != nil {
			log.Printf("[Webhook] Failed to finalize empty task %d: %v", task.ID, err)
		}

		ctx.JSON(http.StatusOK, gin.H{
			"message":        "No recipients for this topic",
			"taskId":         task.ID,
			"status":         models.TaskStatusCompleted,
			"recipientCount": 0,
		})
		return
	}

	msg := alert.Normalize(body)

	dispatcher.Dispatch(task, recipients, msg, topic.Name, topic.Name)

	ctx.JSON(http.StatusAccepted, gin.H{
		"message":        "Alert received and processing started",
		"taskId":         task.ID,
		"status":         models.TaskStatusProcessing,
		"recipientCount": len(recipients),
	})
}

// DMWebhook handles POST /webhook/:token/dm, delivering the payload back to
// the token's owner only.
func DMWebhook(ctx *gin.Context) {
	if ctx.Request.Method != http.MethodPost {
		WebhookUsage(ctx)
		return
	}

	token := ctx.Param("token")

	user := findUserByToken(token)

	if user == nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid personal token"})
		return
	}

	if user.FeishuUserID == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "User has no Feishu ID linked"})
		return
	}

	raw, body, ok := readBody(ctx)

	if !ok {
		return
	}

	task, err := dispatcher.CreateTask(nil, &user.ID, 1, raw)

	if err != nil {
		log.Printf("[Webhook] Failed to create DM task: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	msg := alert.Normalize(body)

	dispatcher.Dispatch(task, []alert.Recipient{alert.SelfRecipient(user)}, msg, "Direct Message", "DM")

	ctx.JSON(http.StatusAccepted, gin.H{
		"message":        "DM received and processing started",
		"taskId":         task.ID,
		"status":         models.TaskStatusProcessing,
		"recipientCount": 1,
	})
}

// WebhookUsage answers non-POST methods on the webhook paths with a hint.
func WebhookUsage(ctx *gin.Context) {
	ctx.JSON(http.StatusMethodNotAllowed, gin.H{
		"error":   "Method not allowed",
		"message": "Please use POST to send alerts to this webhook",
		"format":  "POST /webhook/:token/topic/:slug",
		"example": `curl -X POST -H "Content-Type: application/json" -d '{"content":{"text":"Hello"}}' URL`,
	})
}
