// services/event_service.go
package services

import (
	"encoding/json"
	"log"

	"game-session-engine/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EventService appends rows to the per-session notification feed.
// Delivery is fire-and-forget: a failed insert is logged, never returned.
type EventService struct {
	DB *gorm.DB
}

func NewEventService(db *gorm.DB) *EventService {
	return &EventService{DB: db}
}

func (s *EventService) Emit(sessionID, eventType string, payload map[string]interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[EVENTS] failed to marshal %s payload for session %s: %v", eventType, sessionID, err)
		body = []byte("{}")
	}

	event := models.GameEvent{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		Type:        eventType,
		PayloadJSON: string(body),
	}

	if err := s.DB.Create(&event).Error; err != nil {
		log.Printf("[EVENTS] failed to persist %s for session %s: %v", eventType, sessionID, err)
	}
}
