package alert

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/alerthub-dev/alerthub/db"
	"github.com/alerthub-dev/alerthub/internal/models"
	"gorm.io/datatypes"
)

// Sender is the outbound chat operation the dispatcher needs. Satisfied by
// *feishu.Client.
type Sender interface {
	SendMessage(ctx context.Context, receiveID, receiveIDType, msgType string, content map[string]interface{}) error
}

// Dispatcher runs the fan-out for alert tasks: one send per recipient, all in
// parallel, one aggregate write after every outcome is known. Tasks are
// independent of each other; there is no cross-task coordination.
type Dispatcher struct {
	Sender Sender

	// OnSettled, when set, is called once per task after the aggregate state
	// has been persisted.
	OnSettled func(task models.AlertTask)

	inflight sync.WaitGroup
}

func NewDispatcher(sender Sender) *Dispatcher {
	return &Dispatcher{Sender: sender}
}

// CreateTask inserts the task row before any delivery work starts.
func (d *Dispatcher) CreateTask(topicSlug *string, senderID *uint, recipientCount int, payload []byte) (*models.AlertTask, error) {
	task := &models.AlertTask{
		TopicSlug:      topicSlug,
		SenderID:       senderID,
		Status:         models.TaskStatusProcessing,
		RecipientCount: recipientCount,
		SuccessCount:   0,
		Payload:        datatypes.JSON(payload),
	}

	if err := db.DB.Create(task).Error; err != nil {
		return nil, err
	}

	return task, nil
}

// FinalizeEmpty completes a task that resolved to zero recipients. No log
// rows are written.
func (d *Dispatcher) FinalizeEmpty(task *models.AlertTask) error {
	task.Status = models.TaskStatusCompleted

	return db.DB.Model(task).Update("status", models.TaskStatusCompleted).Error
}

// Dispatch starts the asynchronous fan-out and returns immediately. The HTTP
// caller gets its acknowledgment before any send resolves.
func (d *Dispatcher) Dispatch(task *models.AlertTask, recipients []Recipient, msg Message, textLabel, cardLabel string) {
	d.inflight.Add(1)

	go func() {
		defer d.inflight.Done()
		d.fanOut(task, recipients, msg, textLabel, cardLabel)
	}()
}

// Wait blocks until every in-flight fan-out has settled.
func (d *Dispatcher) Wait() {
	d.inflight.Wait()
}

type outcome struct {
	status  string
	errText string
}

func (d *Dispatcher) fanOut(task *models.AlertTask, recipients []Recipient, msg Message, textLabel, cardLabel string) {
	outcomes := make([]outcome, len(recipients))

	var wg sync.WaitGroup

	for i := range recipients {
		wg.Add(1)

		go func(i int, recipient Recipient) {
			defer wg.Done()

			// A panicking send must still settle its slot so the barrier and
			// the aggregate stay correct.
			defer func() {
				if r := recover(); r != nil {
					log.Printf("Task %d: send to %s panicked: %v", task.ID, recipient.Name, r)
					outcomes[i] = outcome{status: models.LogStatusFailed, errText: "unknown error"}
				}
			}()

			m := msg.Labeled(textLabel, cardLabel)

			err := d.Sender.SendMessage(context.Background(), recipient.ReceiveID, recipient.ReceiveIDType, m.Type, m.Content)

			if err != nil {
				log.Printf("Task %d: failed to send to %s: %v", task.ID, recipient.Name, err)
				outcomes[i] = outcome{status: models.LogStatusFailed, errText: err.Error()}
				return
			}

			outcomes[i] = outcome{status: models.LogStatusSent}
		}(i, recipients[i])
	}

	wg.Wait()

	successCount := 0

	for _, o := range outcomes {
		if o.status == models.LogStatusSent {
			successCount++
		}
	}

	failures := len(outcomes) - successCount

	status := models.TaskStatusCompleted

	if successCount == 0 && len(recipients) > 0 {
		status = models.TaskStatusFailed
	}

	updates := map[string]interface{}{
		"status":        status,
		"success_count": successCount,
		"error":         nil,
	}

	if failures > 0 {
		updates["error"] = fmt.Sprintf("Failed to send to %d recipients", failures)
	}

	if err := db.DB.Model(&models.AlertTask{}).Where("id = ?", task.ID).Updates(updates).Error; err != nil {
		log.Printf("Task %d: failed to persist aggregate state: %v", task.ID, err)
	}

	logs := make([]models.AlertLog, len(recipients))

	for i, recipient := range recipients {
		logs[i] = models.AlertLog{
			TaskID: task.ID,
			UserID: recipient.UserID,
			Status: outcomes[i].status,
		}

		if outcomes[i].errText != "" {
			errText := outcomes[i].errText
			logs[i].Error = &errText
		}
	}

	if len(logs) > 0 {
		if err := db.DB.Create(&logs).Error; err != nil {
			log.Printf("Task %d: failed to persist delivery logs: %v", task.ID, err)
		}
	}

	log.Printf("Task %d: sent %d/%d alerts", task.ID, successCount, len(recipients))

	if d.OnSettled != nil {
		task.Status = status
		task.SuccessCount = successCount
		d.OnSettled(*task)
	}
}
