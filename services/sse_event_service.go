// services/sse_event_service.go
package services

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"game-session-engine/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// StreamSessionEventsSSE streams the session's event feed (JOINED,
// WAITLISTED, PROMOTED, STARTED, CLAIMED, WON, COMPLETED) to the client.
// Delivery is best-effort polling on a created_at cursor.
func (s *EventService) StreamSessionEventsSSE(c *fiber.Ctx) error {
	sessionID := c.Params("id")

	// SSE headers
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()

		var lastMaxCreatedAt time.Time

		// Initialize cursor at the newest existing event so clients only
		// see what happens after they connect.
		var latest models.GameEvent
		if err := s.DB.
			Where("session_id = ?", sessionID).
			Order("created_at DESC").
			First(&latest).Error; err == nil {
			lastMaxCreatedAt = latest.CreatedAt
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("SSE init error for session %s: %v", sessionID, err)
		}

		// Initial keepalive (comment event)
		w.WriteString(":\n\n")
		w.Flush()

		for {
			select {
			case <-ticker.C:
				var newEvents []models.GameEvent

				err := s.DB.
					Where("session_id = ?", sessionID).
					Where("created_at > ?", lastMaxCreatedAt).
					Order("created_at ASC").
					Find(&newEvents).Error

				if err != nil {
					log.Printf("SSE query error for session %s: %v", sessionID, err)
					continue
				}

				if len(newEvents) == 0 {
					continue
				}

				lastMaxCreatedAt = newEvents[len(newEvents)-1].CreatedAt

				for _, event := range newEvents {
					payload, _ := json.Marshal(event)

					fmt.Fprintf(w,
						"event: %s\ndata: %s\n\n",
						event.Type, payload,
					)
				}

				if err := w.Flush(); err != nil {
					// Client disconnected
					return
				}

			case <-c.Context().Done():
				// Client closed connection
				return
			}
		}
	})

	return nil
}
