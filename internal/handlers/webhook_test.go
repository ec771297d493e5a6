package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/alerthub-dev/alerthub/db"
	"github.com/alerthub-dev/alerthub/internal/alert"
	"github.com/alerthub-dev/alerthub/internal/handlers"
	"github.com/alerthub-dev/alerthub/internal/models"
	"github.com/alerthub-dev/alerthub/internal/router"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type sentMessage struct {
	ReceiveID     string
	ReceiveIDType string
	MsgType       string
	Content       map[string]interface{}
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (f *fakeSender) SendMessage(_ context.Context, receiveID, receiveIDType, msgType string, content map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sent = append(f.sent, sentMessage{receiveID, receiveIDType, msgType, content})

	return nil
}

func setupTestDB(t *testing.T) {
	t.Helper()

	database, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, database.AutoMigrate(
		&models.User{},
		&models.Topic{},
		&models.Subscription{},
		&models.GroupBinding{},
		&models.KnownGroupChat{},
		&models.AlertTask{},
		&models.AlertLog{},
	))

	db.DB = database
}

func setupWebhookTest(t *testing.T) (*gin.Engine, *fakeSender, *alert.Dispatcher) {
	t.Helper()

	gin.SetMode(gin.TestMode)
	setupTestDB(t)

	sender := &fakeSender{}
	d := alert.NewDispatcher(sender)
	handlers.InitDispatcher(d)

	return router.NewRouter(), sender, d
}

func createWebhookUser(t *testing.T, name, token, feishuID string) *models.User {
	t.Helper()

	user := &models.User{Name: name, FeishuUserID: feishuID, PersonalToken: token}
	require.NoError(t, db.DB.Create(user).Error)

	return user
}

func createApprovedTopic(t *testing.T, slug, name string) *models.Topic {
	t.Helper()

	topic := &models.Topic{Slug: slug, Name: name, Status: models.TopicStatusApproved}
	require.NoError(t, db.DB.Create(topic).Error)

	return topic
}

func subscribe(t *testing.T, user *models.User, topic *models.Topic) {
	t.Helper()

	require.NoError(t, db.DB.Create(&models.Subscription{UserID: user.ID, TopicID: topic.ID}).Error)
}

func postWebhook(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	return resp
}

func countTasks(t *testing.T) int64 {
	t.Helper()

	var count int64
	require.NoError(t, db.DB.Model(&models.AlertTask{}).Count(&count).Error)

	return count
}

func TestTopicWebhookInvalidToken(t *testing.T) {
	r, _, _ := setupWebhookTest(t)
	createApprovedTopic(t, "prod-alerts", "Prod Alerts")

	w := postWebhook(r, "/webhook/notatoken/topic/prod-alerts", `{"content":{"text":"hello"}}`)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, int64(0), countTasks(t))
}

func TestTopicWebhookEmptyBody(t *testing.T) {
	r, _, _ := setupWebhookTest(t)
	createWebhookUser(t, "Ada", "abcd1234", "ou_ada")
	createApprovedTopic(t, "prod-alerts", "Prod Alerts")

	w := postWebhook(r, "/webhook/abcd1234/topic/prod-alerts", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, int64(0), countTasks(t))
}

func TestTopicWebhookInvalidJSON(t *testing.T) {
	r, _, _ := setupWebhookTest(t)
	createWebhookUser(t, "Ada", "abcd1234", "ou_ada")
	createApprovedTopic(t, "prod-alerts", "Prod Alerts")

	w := postWebhook(r, "/webhook/abcd1234/topic/prod-alerts", `{"oops`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, int64(0), countTasks(t))
}

func TestTopicWebhookUnknownSlug(t *testing.T) {
	r, _, _ := setupWebhookTest(t)
	createWebhookUser(t, "Ada", "abcd1234", "ou_ada")

	w := postWebhook(r, "/webhook/abcd1234/topic/nope", `{"content":{"text":"hello"}}`)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, int64(0), countTasks(t))
}

func TestTopicWebhookFanOut(t *testing.T) {
	r, sender, d := setupWebhookTest(t)

	caller := createWebhookUser(t, "Caller", "abcd1234", "ou_caller")
	topic := createApprovedTopic(t, "prod-alerts", "Prod Alerts")
	subscribe(t, caller, topic)
	subscribe(t, createWebhookUser(t, "Ben", "ffff0000", "ou_ben"), topic)

	w := postWebhook(r, "/webhook/abcd1234/topic/prod-alerts", `{"content":{"text":"hello"}}`)

	require.Equal(t, http.StatusAccepted, w.Code)

	resp := decodeResponse(t, w)
	assert.Equal(t, models.TaskStatusProcessing, resp["status"])
	assert.Equal(t, float64(2), resp["recipientCount"])

	d.Wait()

	var task models.AlertTask
	require.NoError(t, db.DB.Preload("Logs").First(&task, uint(resp["taskId"].(float64))).Error)

	assert.Equal(t, models.TaskStatusCompleted, task.Status)
	assert.Equal(t, 2, task.RecipientCount)
	assert.Equal(t, 2, task.SuccessCount)
	require.NotNil(t, task.SenderID)
	assert.Equal(t, caller.ID, *task.SenderID)
	assert.Len(t, task.Logs, 2)

	require.Len(t, sender.sent, 2)
	assert.Equal(t, "[Prod Alerts]\nhello", sender.sent[0].Content["text"])
}

func TestTopicWebhookZeroRecipients(t *testing.T) {
	r, sender, _ := setupWebhookTest(t)

	createWebhookUser(t, "Ada", "abcd1234", "ou_ada")
	createApprovedTopic(t, "quiet", "Quiet Topic")

	w := postWebhook(r, "/webhook/abcd1234/topic/quiet", `{"content":{"text":"hello"}}`)

	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeResponse(t, w)
	assert.Equal(t, models.TaskStatusCompleted, resp["status"])
	assert.Equal(t, float64(0), resp["recipientCount"])

	var task models.AlertTask
	require.NoError(t, db.DB.Preload("Logs").First(&task, uint(resp["taskId"].(float64))).Error)

	assert.Equal(t, models.TaskStatusCompleted, task.Status)
	assert.Equal(t, 0, task.SuccessCount)
	assert.Empty(t, task.Logs)
	assert.Empty(t, sender.sent)
}

func TestTopicWebhookGlobalTopicAcceptsUnknownToken(t *testing.T) {
	r, _, d := setupWebhookTest(t)

	topic := &models.Topic{Slug: "announce", Name: "Announcements", Status: models.TopicStatusApproved, IsGlobal: true}
	require.NoError(t, db.DB.Create(topic).Error)

	subscriber := createWebhookUser(t, "Ada", "abcd1234", "ou_ada")
	subscribe(t, subscriber, topic)

	w := postWebhook(r, "/webhook/notatoken/topic/announce", `{"content":{"text":"hello"}}`)

	require.Equal(t, http.StatusAccepted, w.Code)

	resp := decodeResponse(t, w)

	d.Wait()

	var task models.AlertTask
	require.NoError(t, db.DB.First(&task, uint(resp["taskId"].(float64))).Error)

	assert.Nil(t, task.SenderID)
	assert.Equal(t, models.TaskStatusCompleted, task.Status)
}

func TestTopicWebhookMethodNotAllowed(t *testing.T) {
	r, _, _ := setupWebhookTest(t)

	req := httptest.NewRequest(http.MethodGet, "/webhook/abcd1234/topic/prod-alerts", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	resp := decodeResponse(t, w)
	assert.Equal(t, "Method not allowed", resp["error"])
}

func TestDMWebhookInvalidToken(t *testing.T) {
	r, _, _ := setupWebhookTest(t)

	w := postWebhook(r, "/webhook/notatoken/dm", `{"content":{"text":"hello"}}`)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, int64(0), countTasks(t))
}

func TestDMWebhookNoFeishuID(t *testing.T) {
	r, _, _ := setupWebhookTest(t)

	createWebhookUser(t, "Ghost", "abcd1234", "")

	w := postWebhook(r, "/webhook/abcd1234/dm", `{"content":{"text":"hello"}}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, int64(0), countTasks(t))
}

func TestDMWebhookDelivers(t *testing.T) {
	r, sender, d := setupWebhookTest(t)

	user := createWebhookUser(t, "Ada", "abcd1234", "ou_ada")

	w := postWebhook(r, "/webhook/abcd1234/dm", `{"content":{"text":"hello"}}`)

	require.Equal(t, http.StatusAccepted, w.Code)

	resp := decodeResponse(t, w)
	assert.Equal(t, float64(1), resp["recipientCount"])

	d.Wait()

	var task models.AlertTask
	require.NoError(t, db.DB.Preload("Logs").First(&task, uint(resp["taskId"].(float64))).Error)

	assert.Nil(t, task.TopicSlug)
	assert.Equal(t, models.TaskStatusCompleted, task.Status)
	assert.Equal(t, 1, task.SuccessCount)
	require.Len(t, task.Logs, 1)
	require.NotNil(t, task.Logs[0].UserID)
	assert.Equal(t, user.ID, *task.Logs[0].UserID)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "ou_ada", sender.sent[0].ReceiveID)
	assert.Equal(t, "[Direct Message]\nhello", sender.sent[0].Content["text"])
}

func TestTopicWebhookInferredImage(t *testing.T) {
	r, sender, d := setupWebhookTest(t)

	caller := createWebhookUser(t, "Ada", "abcd1234", "ou_ada")
	topic := createApprovedTopic(t, "prod-alerts", "Prod Alerts")
	subscribe(t, caller, topic)

	w := postWebhook(r, "/webhook/abcd1234/topic/prod-alerts", `{"image_key":"img_1"}`)

	require.Equal(t, http.StatusAccepted, w.Code)

	d.Wait()

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "image", sender.sent[0].MsgType)
	assert.Equal(t, map[string]interface{}{"image_key": "img_1"}, sender.sent[0].Content)
}
