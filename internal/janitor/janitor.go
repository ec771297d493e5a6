package janitor

import (
	"fmt"
	"log"
	"time"

	"github.com/alerthub-dev/alerthub/db"
	"github.com/alerthub-dev/alerthub/internal/models"
	"github.com/robfig/cron/v3"
)

// staleAfter is how long a task may sit in processing before it is considered
// orphaned. In-flight fan-outs are not persisted across restarts, so a task
// still processing after this long will never settle on its own.
const staleAfter = time.Hour

// Start sweeps once immediately, then hourly.
func Start() *cron.Cron {
	SweepStaleTasks()

	c := cron.New()

	if _, err := c.AddFunc("@hourly", SweepStaleTasks); err != nil {
		log.Printf("[Janitor] Failed to schedule sweep: %v", err)
		return c
	}

	c.Start()
	log.Println("[Janitor] Started hourly stale task sweep")

	return c
}

// SweepStaleTasks fails every task orphaned in processing so it reaches a
// terminal state.
func SweepStaleTasks() {
	cutoff := time.Now().Add(-staleAfter)

	result := db.DB.Model(&models.AlertTask{}).
		Where("status = ? AND updated_at < ?", models.TaskStatusProcessing, cutoff).
		Updates(map[string]interface{}{
			"status": models.TaskStatusFailed,
			"error":  fmt.Sprintf("Task did not settle within %s", staleAfter),
		})

	if result.Error != nil {
		log.Printf("[Janitor] Sweep failed: %v", result.Error)
		return
	}

	if result.RowsAffected > 0 {
		log.Printf("[Janitor] Failed %d stale tasks", result.RowsAffected)
	}
}
