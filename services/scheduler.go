// services/scheduler.go
package services

import (
	"log"
	"time"

	"game-session-engine/models"

	"github.com/go-co-op/gocron/v2"
)

// StartAutoStartScheduler starts scheduled sessions whose start time has
// passed. Runs once a minute for the lifetime of the process.
func (s *GameService) StartAutoStartScheduler() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			s.StartDueSessions()
		}),
	)
}

// StartDueSessions performs one scheduler pass. A scheduled session with
// zero admitted players stays scheduled (no admin override here) and is
// retried on the next pass.
func (s *GameService) StartDueSessions() {
	var sessions []models.Session
	now := time.Now()
	err := s.DB.Where("status = ? AND start_time <= ?", models.SessionStatusScheduled, now).
		Find(&sessions).Error
	if err != nil {
		log.Printf("[Scheduler] DB error: %v", err)
		return
	}

	for _, session := range sessions {
		if _, err := s.Start(session.ID, false); err != nil {
			log.Printf("[Scheduler] Failed to start session %s: %v", session.ID, err)
		} else {
			log.Printf("✅ Auto-started session: %s (%s)", session.ID, session.Code)
		}
	}
}
