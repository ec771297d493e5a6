package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/alerthub-dev/alerthub/db"
	"github.com/alerthub-dev/alerthub/internal/models"
	"github.com/alerthub-dev/alerthub/internal/types"
	"github.com/alerthub-dev/alerthub/internal/utils"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type CreateUserRequest struct {
	Name         string `json:"name" binding:"required"`
	FeishuUserID string `json:"feishu_user_id" binding:"required"`
	Email        string `json:"email" binding:"omitempty,email"`
	IsAdmin      bool   `json:"is_admin"`
	IsTrusted    bool   `json:"is_trusted"`
}

type UpdateUserRequest struct {
	Name         string `json:"name"`
	FeishuUserID string `json:"feishu_user_id"`
	Email        string `json:"email" binding:"omitempty,email"`
	IsAdmin      *bool  `json:"is_admin"`
	IsTrusted    *bool  `json:"is_trusted"`
}

// ListUsers returns all users with their subscriptions embedded.
func ListUsers(ctx *gin.Context) {
	var users []models.User

	if err := db.DB.Preload("Subscriptions.Topic").Find(&users).Error; err != nil {
		log.Printf("Failed to list users: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	ctx.JSON(http.StatusOK, users)
}

// CreateUser provisions a user directly, with a fresh personal token.
func CreateUser(ctx *gin.Context) {
	var body CreateUserRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	user := models.User{
		Name:          body.Name,
		FeishuUserID:  body.FeishuUserID,
		IsAdmin:       body.IsAdmin,
		IsTrusted:     body.IsTrusted,
		PersonalToken: models.NewPersonalToken(),
	}

	if body.Email != "" {
		user.Email = &body.Email
	}

	if err := db.DB.Create(&user).Error; err != nil {
		log.Printf("Failed to create user: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	ctx.JSON(http.StatusCreated, user)
}

// UpdateUser applies a partial update.
func UpdateUser(ctx *gin.Context) {
	userID, err := utils.GetUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var body UpdateUserRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	var user models.User

	if err := db.DB.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}

		log.Printf("Failed to load user %d: %v", userID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if body.Name != "" {
		user.Name = body.Name
	}

	if body.FeishuUserID != "" {
		user.FeishuUserID = body.FeishuUserID
	}

	if body.Email != "" {
		user.Email = &body.Email
	}

	if body.IsAdmin != nil {
		user.IsAdmin = *body.IsAdmin
	}

	if body.IsTrusted != nil {
		user.IsTrusted = *body.IsTrusted
	}

	if err := db.DB.Save(&user).Error; err != nil {
		log.Printf("Failed to update user %d: %v", userID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	ctx.JSON(http.StatusOK, user)
}

// DeleteUser removes a user; subscriptions cascade away with it.
func DeleteUser(ctx *gin.Context) {
	userID, err := utils.GetUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User

	if err := db.DB.First(&user, userID).Error; err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	if err := db.DB.Select("Subscriptions").Delete(&user).Error; err != nil {
		log.Printf("Failed to delete user %d: %v", userID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true})
}

// RegenerateToken replaces the caller's personal webhook token. The old token
// stops working immediately.
func RegenerateToken(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var user models.User

	if err := db.DB.First(&user, userID).Error; err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	user.PersonalToken = models.NewPersonalToken()

	if err := db.DB.Save(&user).Error; err != nil {
		log.Printf("Failed to regenerate token for user %d: %v", userID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	ctx.JSON(http.StatusOK, types.UserResponse{
		ID:            user.ID,
		Name:          user.Name,
		FeishuUserID:  user.FeishuUserID,
		Email:         user.Email,
		IsAdmin:       user.IsAdmin,
		IsTrusted:     user.IsTrusted,
		PersonalToken: user.PersonalToken,
	})
}
