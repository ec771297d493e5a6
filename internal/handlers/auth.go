package handlers

import (
	"errors"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/alerthub-dev/alerthub/db"
	"github.com/alerthub-dev/alerthub/internal/auth"
	"github.com/alerthub-dev/alerthub/internal/feishu"
	"github.com/alerthub-dev/alerthub/internal/models"
	"github.com/alerthub-dev/alerthub/internal/types"
	"github.com/alerthub-dev/alerthub/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var feishuClient *feishu.Client

// InitFeishuClient wires the chat platform client used by the OAuth flow.
func InitFeishuClient(client *feishu.Client) {
	feishuClient = client
}

var Domain = os.Getenv("DOMAIN")

func adminEmails() map[string]bool {
	emails := make(map[string]bool)

	for _, email := range strings.Split(os.Getenv("ADMIN_EMAILS"), ",") {
		trimmed := strings.TrimSpace(email)

		if trimmed != "" {
			emails[trimmed] = true
		}
	}

	return emails
}

// LoginURL hands the frontend the platform OAuth entry point along with a
// state cookie for CSRF protection.
func LoginURL(ctx *gin.Context) {
	appID := os.Getenv("FEISHU_APP_ID")
	redirectURI := os.Getenv("REDIRECT_URI")

	if redirectURI == "" {
		redirectURI = "http://localhost:5173/auth/callback"
	}

	state := uuid.NewString()

	http.SetCookie(ctx.Writer, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		Domain:   Domain,
		MaxAge:   600,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	loginURL := "https://open.feishu.cn/open-apis/authen/v1/index?app_id=" + appID +
		"&redirect_uri=" + url.QueryEscape(redirectURI) +
		"&state=" + state

	ctx.JSON(http.StatusOK, gin.H{"loginUrl": loginURL})
}

// Callback completes the OAuth flow: verifies state, exchanges the code for
// the user's identity, upserts the user row and issues the session cookie.
func Callback(ctx *gin.Context) {
	code := ctx.Query("code")
	state := ctx.Query("state")

	storedState, err := ctx.Cookie("oauth_state")

	if err != nil || state == "" || state != storedState {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid state parameter"})
		return
	}

	if code == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "No code provided"})
		return
	}

	info, err := feishuClient.GetUserAccessToken(ctx.Request.Context(), code)

	if err != nil {
		log.Printf("OAuth callback error: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Authentication failed"})
		return
	}

	isAdmin := adminEmails()[info.Email]

	var user models.User

	err = db.DB.Where("feishu_user_id = ?", info.OpenID).First(&user).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = models.User{
			Name:          info.Name,
			FeishuUserID:  info.OpenID,
			IsAdmin:       isAdmin,
			PersonalToken: models.NewPersonalToken(),
		}

		if info.Email != "" {
			user.Email = &info.Email
		}

		if err := db.DB.Create(&user).Error; err != nil {
			log.Printf("Failed to create user during OAuth callback: %v", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Authentication failed"})
			return
		}
	} else if err != nil {
		log.Printf("Database error during OAuth callback: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Authentication failed"})
		return
	} else {
		// Refresh name and admin status on every login.
		user.Name = info.Name
		user.IsAdmin = isAdmin

		if info.Email != "" {
			user.Email = &info.Email
		}

		if err := db.DB.Save(&user).Error; err != nil {
			log.Printf("Failed to update user during OAuth callback: %v", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Authentication failed"})
			return
		}
	}

	token, err := auth.GenerateJWT(user.ID)

	if err != nil {
		log.Printf("Failed to generate JWT: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Authentication failed"})
		return
	}

	http.SetCookie(ctx.Writer, &http.Cookie{
		Name:     "session",
		Value:    token,
		Path:     "/",
		Domain:   Domain,
		MaxAge:   60 * 60 * 24 * 7,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"user": types.UserResponse{
			ID:           user.ID,
			Name:         user.Name,
			FeishuUserID: user.FeishuUserID,
			Email:        user.Email,
			IsAdmin:      user.IsAdmin,
			IsTrusted:    user.IsTrusted,
		},
	})
}

// Me returns the authenticated caller, personal token included so the
// dashboard can render the webhook URL.
func Me(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var user models.User

	if err := db.DB.First(&user, userID).Error; err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"user": types.UserResponse{
			ID:            user.ID,
			Name:          user.Name,
			FeishuUserID:  user.FeishuUserID,
			Email:         user.Email,
			IsAdmin:       user.IsAdmin,
			IsTrusted:     user.IsTrusted,
			PersonalToken: user.PersonalToken,
		},
	})
}

// Logout clears the session cookie.
func Logout(ctx *gin.Context) {
	http.SetCookie(ctx.Writer, &http.Cookie{
		Name:     "session",
		Value:    "",
		Path:     "/",
		Domain:   Domain,
		MaxAge:   -1,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	ctx.JSON(http.StatusOK, gin.H{"success": true})
}
