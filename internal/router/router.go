package router

import (
	"time"

	"github.com/alerthub-dev/alerthub/internal/handlers"
	"github.com/alerthub-dev/alerthub/internal/middleware"
	"github.com/alerthub-dev/alerthub/internal/types"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func NewRouter() *gin.Engine {
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     types.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api := r.Group("/api")
	{
		api.GET("/health", handlers.HealthCheck)
		api.GET("/ws/tasks", middleware.AuthMiddleware(), middleware.AdminMiddleware(), handlers.TaskFeed)
		api.POST("/feishu/event", handlers.FeishuEvent)

		auth := api.Group("/auth")
		{
			auth.GET("/login-url", handlers.LoginURL)
			auth.GET("/callback", handlers.Callback)
			auth.GET("/me", middleware.AuthMiddleware(), handlers.Me)
			auth.POST("/logout", handlers.Logout)
		}

		topics := api.Group("/topics", middleware.AuthMiddleware())
		{
			topics.GET("", handlers.ListTopics)
			topics.POST("", handlers.CreateTopic)
			topics.GET("/requests", middleware.AdminMiddleware(), handlers.ListTopicRequests)
			topics.GET("/all", middleware.AdminMiddleware(), handlers.ListAllTopics)
			topics.GET("/my-requests", handlers.ListMyTopicRequests)
			topics.PUT("/:topic_id", middleware.AdminMiddleware(), handlers.UpdateTopic)
			topics.DELETE("/:topic_id", middleware.AdminMiddleware(), handlers.DeleteTopic)
			topics.POST("/:topic_id/approve", middleware.AdminMiddleware(), handlers.ApproveTopic)
			topics.POST("/:topic_id/reject", middleware.AdminMiddleware(), handlers.RejectTopic)

			// Subscription endpoints
			topics.POST("/:topic_id/subscribe/:user_id", handlers.Subscribe)
			topics.DELETE("/:topic_id/subscribe/:user_id", handlers.Unsubscribe)

			// Group binding endpoints
			topics.GET("/:topic_id/bindings", handlers.ListBindings)
			topics.POST("/:topic_id/bindings", handlers.CreateBinding)
		}

		bindings := api.Group("/bindings", middleware.AuthMiddleware())
		{
			bindings.POST("/:binding_id/approve", middleware.AdminMiddleware(), handlers.ApproveBinding)
			bindings.POST("/:binding_id/reject", middleware.AdminMiddleware(), handlers.RejectBinding)
			bindings.DELETE("/:binding_id", handlers.DeleteBinding)
		}

		api.GET("/groups", middleware.AuthMiddleware(), handlers.ListKnownGroupChats)

		users := api.Group("/users", middleware.AuthMiddleware())
		{
			users.POST("/me/token", handlers.RegenerateToken)
			users.GET("", middleware.AdminMiddleware(), handlers.ListUsers)
			users.POST("", middleware.AdminMiddleware(), handlers.CreateUser)
			users.PUT("/:user_id", middleware.AdminMiddleware(), handlers.UpdateUser)
			users.DELETE("/:user_id", middleware.AdminMiddleware(), handlers.DeleteUser)
		}

		alerts := api.Group("/alerts", middleware.AuthMiddleware())
		{
			alerts.GET("/tasks", middleware.AdminMiddleware(), handlers.ListTasks)
			alerts.GET("/tasks/:task_id", handlers.GetTask)
		}

		api.GET("/stats", middleware.AuthMiddleware(), middleware.AdminMiddleware(), handlers.GetStats)
	}

	// Webhook ingestion. Any is used so non-POST methods reach the usage
	// hint instead of a bare 404.
	webhook := r.Group("/webhook")
	{
		webhook.Any("/:token/topic/:slug", handlers.TopicWebhook)
		webhook.Any("/:token/dm", handlers.DMWebhook)
	}

	return r
}
