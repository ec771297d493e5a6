package alert

import (
	"strings"

	"github.com/alerthub-dev/alerthub/db"
	"github.com/alerthub-dev/alerthub/internal/feishu"
	"github.com/alerthub-dev/alerthub/internal/models"
)

type RecipientKind string

const (
	RecipientUser  RecipientKind = "user"
	RecipientGroup RecipientKind = "group"
)

// Recipient is one fan-out target, tagged with the addressing details the
// chat client needs.
type Recipient struct {
	Kind          RecipientKind
	Name          string
	UserID        *uint // set for user recipients, links the delivery log
	ReceiveID     string
	ReceiveIDType string
}

// ResolveRecipients builds the full fan-out list for a topic: subscribers
// with a linked platform identity first, then approved group bindings. Users
// without a platform identifier cannot receive messages and are skipped.
// Pending and rejected bindings never receive traffic.
func ResolveRecipients(topic *models.Topic) ([]Recipient, error) {
	var subs []models.Subscription

	err := db.DB.Preload("User").
		Where("topic_id = ?", topic.ID).
		Order("created_at asc").
		Find(&subs).Error

	if err != nil {
		return nil, err
	}

	recipients := make([]Recipient, 0, len(subs))

	for _, sub := range subs {
		if sub.User.FeishuUserID == "" {
			continue
		}

		userID := sub.UserID

		recipients = append(recipients, Recipient{
			Kind:          RecipientUser,
			Name:          sub.User.Name,
			UserID:        &userID,
			ReceiveID:     sub.User.FeishuUserID,
			ReceiveIDType: receiveIDTypeFor(sub.User.FeishuUserID),
		})
	}

	var bindings []models.GroupBinding

	err = db.DB.Where("topic_id = ? AND status = ?", topic.ID, models.BindingStatusApproved).
		Order("created_at asc").
		Find(&bindings).Error

	if err != nil {
		return nil, err
	}

	if len(bindings) == 0 {
		return recipients, nil
	}

	chatIDs := make([]string, 0, len(bindings))

	for _, binding := range bindings {
		chatIDs = append(chatIDs, binding.ChatID)
	}

	var chats []models.KnownGroupChat

	if err := db.DB.Where("chat_id IN ?", chatIDs).Find(&chats).Error; err != nil {
		return nil, err
	}

	chatNames := make(map[string]string, len(chats))

	for _, chat := range chats {
		chatNames[chat.ChatID] = chat.Name
	}

	for _, binding := range bindings {
		name := chatNames[binding.ChatID]

		if name == "" {
			name = binding.ChatID
		}

		recipients = append(recipients, Recipient{
			Kind:          RecipientGroup,
			Name:          name,
			ReceiveID:     binding.ChatID,
			ReceiveIDType: feishu.ReceiveIDTypeChatID,
		})
	}

	return recipients, nil
}

// SelfRecipient addresses a direct message back to the token's owner.
func SelfRecipient(user *models.User) Recipient {
	userID := user.ID

	return Recipient{
		Kind:          RecipientUser,
		Name:          user.Name,
		UserID:        &userID,
		ReceiveID:     user.FeishuUserID,
		ReceiveIDType: receiveIDTypeFor(user.FeishuUserID),
	}
}

func receiveIDTypeFor(feishuUserID string) string {
	if strings.HasPrefix(feishuUserID, feishu.OpenIDPrefix) {
		return feishu.ReceiveIDTypeOpenID
	}

	return feishu.ReceiveIDTypeUserID
}
