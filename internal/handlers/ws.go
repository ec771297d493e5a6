package handlers

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/alerthub-dev/alerthub/internal/models"
	"github.com/alerthub-dev/alerthub/internal/types"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var (
	taskClients   = make(map[*websocket.Conn]bool)
	taskClientsMu sync.RWMutex
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// BroadcastTaskSettled pushes a task's final state to every connected
// dashboard client. Wired as the dispatcher's OnSettled hook.
func BroadcastTaskSettled(task models.AlertTask) {
	taskClientsMu.RLock()

	if len(taskClients) == 0 {
		taskClientsMu.RUnlock()
		return
	}

	clientsCopy := make([]*websocket.Conn, 0, len(taskClients))
	for conn := range taskClients {
		clientsCopy = append(clientsCopy, conn)
	}
	taskClientsMu.RUnlock()

	for _, conn := range clientsCopy {
		if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			log.Printf("Failed to set write deadline for broadcast: %v", err)
			continue
		}

		err := conn.WriteJSON(map[string]interface{}{
			"type":            "task_settled",
			"task_id":         task.ID,
			"status":          task.Status,
			"success_count":   task.SuccessCount,
			"recipient_count": task.RecipientCount,
		})

		if err != nil {
			log.Printf("Failed to broadcast task update: %v", err)
			taskClientsMu.Lock()
			delete(taskClients, conn)
			taskClientsMu.Unlock()
			conn.Close()
		}
	}
}

// TaskFeed upgrades the connection and streams task settlement events until
// the client goes away.
func TaskFeed(c *gin.Context) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			for _, allowed := range types.AllowedOrigins {
				if origin == allowed {
					return true
				}
			}
			return false
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Printf("Failed to set initial read deadline: %v", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			log.Printf("Failed to set read deadline in pong handler: %v", err)
		}
		return nil
	})

	taskClientsMu.Lock()
	taskClients[conn] = true
	taskClientsMu.Unlock()

	defer func() {
		taskClientsMu.Lock()
		delete(taskClients, conn)
		taskClientsMu.Unlock()
		conn.Close()

		log.Printf("Task feed connection closed")
	}()

	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		log.Printf("Failed to set write deadline for welcome message: %v", err)
		return
	}

	err = conn.WriteJSON(map[string]string{
		"type":    "connected",
		"message": "Task feed connection established",
	})

	if err != nil {
		log.Printf("Failed to send welcome message: %v", err)
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	go func() {
		for range ticker.C {
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}()

	for {
		if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			log.Printf("Failed to set read deadline: %v", err)
			break
		}

		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("Task feed error: %v", err)
			}
			break
		}
	}
}
