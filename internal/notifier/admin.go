package notifier

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/alerthub-dev/alerthub/db"
	"github.com/alerthub-dev/alerthub/internal/feishu"
	"github.com/alerthub-dev/alerthub/internal/models"
)

var client *feishu.Client

// Init wires the chat client used for admin notification cards.
func Init(c *feishu.Client) {
	client = c
}

// NotifyTopicRequest sends every admin an interactive card announcing a new
// pending topic.
func NotifyTopicRequest(topic models.Topic, creatorName string) {
	detail := fmt.Sprintf("**Name:** %s\n**Slug:** %s\n**Requested by:** %s", topic.Name, topic.Slug, creatorName)
	notifyAdmins("New Topic Request", "orange", detail)
}

// NotifyBindingRequest sends every admin an interactive card announcing a new
// pending group binding.
func NotifyBindingRequest(topic models.Topic, groupName, creatorName string) {
	detail := fmt.Sprintf("**Topic:** %s\n**Group:** %s\n**Requested by:** %s", topic.Name, groupName, creatorName)
	notifyAdmins("New Group Binding Request", "blue", detail)
}

func notifyAdmins(title, template, detail string) {
	if client == nil {
		return
	}

	var admins []models.User

	if err := db.DB.Where("is_admin = ?", true).Find(&admins).Error; err != nil {
		log.Printf("[Notifier] Failed to load admins: %v", err)
		return
	}

	if len(admins) == 0 {
		log.Printf("[Notifier] No admins found to notify")
		return
	}

	content := map[string]interface{}{
		"config": map[string]interface{}{"wide_screen_mode": true},
		"header": map[string]interface{}{
			"template": template,
			"title":    map[string]interface{}{"content": title, "tag": "plain_text"},
		},
		"elements": []interface{}{
			map[string]interface{}{
				"tag":  "div",
				"text": map[string]interface{}{"content": detail, "tag": "lark_md"},
			},
			map[string]interface{}{
				"tag":  "div",
				"text": map[string]interface{}{"content": "Review it in the admin dashboard.", "tag": "plain_text"},
			},
		},
	}

	for _, admin := range admins {
		if admin.FeishuUserID == "" {
			continue
		}

		idType := feishu.ReceiveIDTypeUserID

		if strings.HasPrefix(admin.FeishuUserID, feishu.OpenIDPrefix) {
			idType = feishu.ReceiveIDTypeOpenID
		}

		err := client.SendMessage(context.Background(), admin.FeishuUserID, idType, "interactive", content)

		if err != nil {
			log.Printf("[Notifier] Failed to notify admin %s: %v", admin.Name, err)
		}
	}
}
