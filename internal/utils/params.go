package utils

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
)

func GetTopicID(ctx *gin.Context) (uint64, error) {
	return getIDParam(ctx, "topic_id", "Topic")
}

func GetUserID(ctx *gin.Context) (uint64, error) {
	return getIDParam(ctx, "user_id", "User")
}

func GetBindingID(ctx *gin.Context) (uint64, error) {
	return getIDParam(ctx, "binding_id", "Binding")
}

func GetTaskID(ctx *gin.Context) (uint64, error) {
	return getIDParam(ctx, "task_id", "Task")
}

func getIDParam(ctx *gin.Context, name, label string) (uint64, error) {
	idStr := ctx.Param(name)

	if idStr == "" {
		return 0, errors.New(label + " ID not found")
	}

	id, err := strconv.ParseUint(idStr, 10, 32)

	if err != nil {
		return 0, errors.New("Invalid " + label + " ID")
	}

	return id, nil
}
