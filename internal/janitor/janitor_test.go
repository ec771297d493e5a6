package janitor

import (
	"testing"
	"time"

	"github.com/alerthub-dev/alerthub/db"
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

	require.NoError(t, database.AutoMigrate(&models.AlertTask{}, &models.AlertLog{}))

	db.DB = database
}

func createTask(t *testing.T, status string, age time.Duration) *models.AlertTask {
	t.Helper()

	task := &models.AlertTask{Status: status, RecipientCount: 1}
	require.NoError(t, db.DB.Create(task).Error)

	// Backdate past gorm's automatic timestamping.
	require.NoError(t, db.DB.Model(task).UpdateColumn("updated_at", time.Now().Add(-age)).Error)

	return task
}

func TestSweepFailsStaleProcessingTasks(t *testing.T) {
	setupTestDB(t)

	stale := createTask(t, models.TaskStatusProcessing, 2*time.Hour)

	SweepStaleTasks()

	var task models.AlertTask
	require.NoError(t, db.DB.First(&task, stale.ID).Error)

	assert.Equal(t, models.TaskStatusFailed, task.Status)
	require.NotNil(t, task.Error)
	assert.Contains(t, *task.Error, "did not settle")
}

func TestSweepLeavesFreshTasksAlone(t *testing.T) {
	setupTestDB(t)

	fresh := createTask(t, models.TaskStatusProcessing, 5*time.Minute)

	SweepStaleTasks()

	var task models.AlertTask
	require.NoError(t, db.DB.First(&task, fresh.ID).Error)

	assert.Equal(t, models.TaskStatusProcessing, task.Status)
	assert.Nil(t, task.Error)
}

func TestSweepLeavesSettledTasksAlone(t *testing.T) {
	setupTestDB(t)

	completed := createTask(t, models.TaskStatusCompleted, 2*time.Hour)
	failed := createTask(t, models.TaskStatusFailed, 2*time.Hour)

	SweepStaleTasks()

	var task models.AlertTask

	require.NoError(t, db.DB.First(&task, completed.ID).Error)
	assert.Equal(t, models.TaskStatusCompleted, task.Status)

	// Reset so the previous record's primary key doesn't leak into this query.
	task = models.AlertTask{}
	require.NoError(t, db.DB.First(&task, failed.ID).Error)
	assert.Equal(t, models.TaskStatusFailed, task.Status)
}
