package main

import (
	"log"
	"os"

	"github.com/alerthub-dev/alerthub/db"
	"github.com/alerthub-dev/alerthub/internal/alert"
	"github.com/alerthub-dev/alerthub/internal/auth"
	"github.com/alerthub-dev/alerthub/internal/feishu"
	"github.com/alerthub-dev/alerthub/internal/handlers"
	"github.com/alerthub-dev/alerthub/internal/janitor"
	"github.com/alerthub-dev/alerthub/internal/notifier"
	"github.com/alerthub-dev/alerthub/internal/router"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment")
	}

	if err := auth.InitJWTSecret(); err != nil {
		log.Fatalf("Failed to initialize JWT secret: %v", err)
	}

	if err := db.ConnectDatabase(os.Getenv("DATABASE_URL")); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.MigrateDatabase(); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	client := feishu.NewClient(os.Getenv("FEISHU_APP_ID"), os.Getenv("FEISHU_APP_SECRET"))

	dispatcher := alert.NewDispatcher(client)
	dispatcher.OnSettled = handlers.BroadcastTaskSettled

	handlers.InitDispatcher(dispatcher)
	handlers.InitFeishuClient(client)
	notifier.Init(client)

	sweeper := janitor.Start()
	defer sweeper.Stop()

	r := router.NewRouter()

	var port string

	if port = os.Getenv("PORT"); port == "" {
		port = "3000"
		log.Println("PORT not set, defaulting to 3000")
	}

	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
