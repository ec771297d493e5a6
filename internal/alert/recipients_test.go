package alert

import (
	"testing"
	"time"

	"github.com/alerthub-dev/alerthub/db"
	"github.com/alerthub-dev/alerthub/internal/feishu"
	"github.com/alerthub-dev/alerthub/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

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

func createTopic(t *testing.T, slug string) *models.Topic {
	t.Helper()

	topic := &models.Topic{Slug: slug, Name: slug, Status: models.TopicStatusApproved}
	require.NoError(t, db.DB.Create(topic).Error)

	return topic
}

func createSubscriber(t *testing.T, topic *models.Topic, name, feishuID string) *models.User {
	t.Helper()

	user := &models.User{Name: name, FeishuUserID: feishuID, PersonalToken: models.NewPersonalToken()}
	require.NoError(t, db.DB.Create(user).Error)
	require.NoError(t, db.DB.Create(&models.Subscription{UserID: user.ID, TopicID: topic.ID}).Error)

	return user
}

func TestResolveRecipientsIDTypeDerivation(t *testing.T) {
	setupTestDB(t)

	topic := createTopic(t, "prod-alerts")
	createSubscriber(t, topic, "Ada", "ou_abc123")
	createSubscriber(t, topic, "Ben", "legacy_456")

	recipients, err := ResolveRecipients(topic)
	require.NoError(t, err)
	require.Len(t, recipients, 2)

	assert.Equal(t, feishu.ReceiveIDTypeOpenID, recipients[0].ReceiveIDType)
	assert.Equal(t, "ou_abc123", recipients[0].ReceiveID)
	assert.Equal(t, feishu.ReceiveIDTypeUserID, recipients[1].ReceiveIDType)
}

func TestResolveRecipientsSkipsUsersWithoutFeishuID(t *testing.T) {
	setupTestDB(t)

	topic := createTopic(t, "prod-alerts")
	createSubscriber(t, topic, "Ada", "ou_abc123")
	createSubscriber(t, topic, "Ghost", "")

	recipients, err := ResolveRecipients(topic)
	require.NoError(t, err)
	require.Len(t, recipients, 1)
	assert.Equal(t, "Ada", recipients[0].Name)
}

func TestResolveRecipientsOnlyApprovedBindings(t *testing.T) {
	setupTestDB(t)

	topic := createTopic(t, "prod-alerts")

	require.NoError(t, db.DB.Create(&models.GroupBinding{
		TopicID: topic.ID, ChatID: "oc_approved", Status: models.BindingStatusApproved,
	}).Error)
	require.NoError(t, db.DB.Create(&models.GroupBinding{
		TopicID: topic.ID, ChatID: "oc_pending", Status: models.BindingStatusPending,
	}).Error)
	require.NoError(t, db.DB.Create(&models.GroupBinding{
		TopicID: topic.ID, ChatID: "oc_rejected", Status: models.BindingStatusRejected,
	}).Error)

	recipients, err := ResolveRecipients(topic)
	require.NoError(t, err)
	require.Len(t, recipients, 1)

	assert.Equal(t, RecipientGroup, recipients[0].Kind)
	assert.Equal(t, "oc_approved", recipients[0].ReceiveID)
	assert.Equal(t, feishu.ReceiveIDTypeChatID, recipients[0].ReceiveIDType)
	assert.Nil(t, recipients[0].UserID)
}

func TestResolveRecipientsGroupNamesFromDirectory(t *testing.T) {
	setupTestDB(t)

	topic := createTopic(t, "prod-alerts")

	require.NoError(t, db.DB.Create(&models.KnownGroupChat{
		ChatID: "oc_named", Name: "Ops Channel", LastActiveAt: time.Now(),
	}).Error)
	require.NoError(t, db.DB.Create(&models.GroupBinding{
		TopicID: topic.ID, ChatID: "oc_named", Status: models.BindingStatusApproved,
	}).Error)
	require.NoError(t, db.DB.Create(&models.GroupBinding{
		TopicID: topic.ID, ChatID: "oc_unlisted", Status: models.BindingStatusApproved,
	}).Error)

	recipients, err := ResolveRecipients(topic)
	require.NoError(t, err)
	require.Len(t, recipients, 2)

	assert.Equal(t, "Ops Channel", recipients[0].Name)
	assert.Equal(t, "oc_unlisted", recipients[1].Name)
}

func TestResolveRecipientsUsersBeforeGroups(t *testing.T) {
	setupTestDB(t)

	topic := createTopic(t, "prod-alerts")

	require.NoError(t, db.DB.Create(&models.GroupBinding{
		TopicID: topic.ID, ChatID: "oc_group", Status: models.BindingStatusApproved,
	}).Error)
	createSubscriber(t, topic, "Ada", "ou_abc123")

	recipients, err := ResolveRecipients(topic)
	require.NoError(t, err)
	require.Len(t, recipients, 2)

	assert.Equal(t, RecipientUser, recipients[0].Kind)
	assert.Equal(t, RecipientGroup, recipients[1].Kind)
}

func TestSelfRecipient(t *testing.T) {
	setupTestDB(t)

	user := &models.User{Name: "Ada", FeishuUserID: "ou_abc123", PersonalToken: models.NewPersonalToken()}
	require.NoError(t, db.DB.Create(user).Error)

	recipient := SelfRecipient(user)

	assert.Equal(t, RecipientUser, recipient.Kind)
	assert.Equal(t, feishu.ReceiveIDTypeOpenID, recipient.ReceiveIDType)
	require.NotNil(t, recipient.UserID)
	assert.Equal(t, user.ID, *recipient.UserID)
}
