// models/card.go
package models

import (
	"encoding/json"
	"time"
)

// FreeSquareContent marks the free center cell on odd-dimension grids.
const FreeSquareContent = "FREE"

// Square is one cell of a card. Layout fields (Row, Col, Content, IsFree)
// are fixed at generation time; only Claimed/ClaimedAt mutate afterwards.
type Square struct {
	Row       int        `json:"row"`
	Col       int        `json:"col"`
	Content   string     `json:"content"`
	IsFree    bool       `json:"is_free"`
	Claimed   bool       `json:"claimed"`
	ClaimedAt *time.Time `json:"claimed_at,omitempty"`
}

// Card is a player's grid for one session. Exactly one card exists per
// (session, player) pair, enforced by the unique index.
type Card struct {
	ID        string `json:"id" gorm:"primaryKey"`
	SessionID string `json:"session_id" gorm:"uniqueIndex:idx_card_session_player;not null"`
	PlayerID  string `json:"player_id" gorm:"uniqueIndex:idx_card_session_player;not null"`
	Dimension int    `json:"dimension" gorm:"not null"`

	// Row-major matrix of squares, JSON-encoded.
	SquaresJSON string `json:"-" gorm:"column:squares;type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Card) Squares() ([]Square, error) {
	var squares []Square
	if c.SquaresJSON == "" {
		return nil, nil
	}
	if err := json.Unmarshal([]byte(c.SquaresJSON), &squares); err != nil {
		return nil, err
	}
	return squares, nil
}

func (c *Card) SetSquares(squares []Square) error {
	b, err := json.Marshal(squares)
	if err != nil {
		return err
	}
	c.SquaresJSON = string(b)
	return nil
}

// SquareIndex returns the row-major slice index for a position, or -1 when
// the position is outside the grid.
func (c *Card) SquareIndex(row, col int) int {
	if row < 0 || row >= c.Dimension || col < 0 || col >= c.Dimension {
		return -1
	}
	return row*c.Dimension + col
}
