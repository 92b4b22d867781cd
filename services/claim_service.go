// services/claim_service.go
package services

import (
	"time"

	"game-session-engine/models"

	"gorm.io/gorm"
)

// ClaimService records square claims. Each card has its own lock so two
// concurrent claims on the same card never interleave, while claims on
// different cards stay independent.
type ClaimService struct {
	DB    *gorm.DB
	Locks *LockRegistry
}

func NewClaimService(db *gorm.DB, locks *LockRegistry) *ClaimService {
	return &ClaimService{DB: db, Locks: locks}
}

// Claim marks the square at (row, col) claimed and returns the card with
// fresh state. ErrAlreadyClaimed is soft: idempotent callers may treat it
// as success, the square state is unchanged.
func (s *ClaimService) Claim(sessionID, cardID string, row, col int) (*models.Card, error) {
	lock, err := s.Locks.acquireCard(sessionID, cardID)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	// Reload inside the lock so the mutation applies to current state.
	var card models.Card
	if err := s.DB.First(&card, "id = ?", cardID).Error; err != nil {
		return nil, err
	}

	idx := card.SquareIndex(row, col)
	if idx < 0 {
		return nil, ErrOutOfBounds
	}

	squares, err := card.Squares()
	if err != nil {
		return nil, err
	}

	if squares[idx].Claimed {
		return &card, ErrAlreadyClaimed
	}

	now := time.Now()
	squares[idx].Claimed = true
	squares[idx].ClaimedAt = &now

	if err := card.SetSquares(squares); err != nil {
		return nil, err
	}
	if err := s.DB.Save(&card).Error; err != nil {
		return nil, err
	}

	return &card, nil
}
