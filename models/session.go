// models/session.go
package models

import (
	"encoding/json"
	"time"
)

const (
	SessionStatusDraft     = "draft"
	SessionStatusScheduled = "scheduled"
	SessionStatusActive    = "active"
	SessionStatusCompleted = "completed"
)

const (
	AccessModeOpen   = "open"
	AccessModeClosed = "closed"
)

// Session is one bingo match: players, cards, at most one winner.
type Session struct {
	ID   string `json:"id" gorm:"primaryKey"`
	Name string `json:"name"`

	// Code is the short human-enterable join token. Stored upper-case,
	// matched case-insensitively on join.
	Code string `json:"code" gorm:"uniqueIndex;not null"`

	Dimension   int    `json:"dimension" gorm:"not null"`
	PatternType string `json:"pattern_type" gorm:"not null"`
	AccessMode  string `json:"access_mode" gorm:"default:'open'"` // open | closed
	Capacity    int    `json:"capacity" gorm:"default:0"`         // 0 = unbounded
	AssetPool   string `json:"asset_pool" gorm:"default:'default'"`

	Status string `json:"status" gorm:"default:'draft'"` // draft | scheduled | active | completed

	// Ordered player lists, JSON-encoded. A player ID appears in at most
	// one of the three at any time.
	AdmittedJSON   string `json:"-" gorm:"column:admitted;type:text"`
	WaitlistJSON   string `json:"-" gorm:"column:waitlist;type:text"`
	EliminatedJSON string `json:"-" gorm:"column:eliminated;type:text"`

	WinnerID    *string    `json:"winner_id,omitempty"`
	StartTime   *time.Time `json:"start_time,omitempty"` // only used if scheduled
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Corrupt is set by the consistency sweep when persisted state violates
	// the single-winner invariant. Claim processing halts on corrupt rows.
	Corrupt bool `json:"corrupt" gorm:"default:false"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Session) Admitted() []string   { return decodePlayerList(s.AdmittedJSON) }
func (s *Session) Waitlist() []string   { return decodePlayerList(s.WaitlistJSON) }
func (s *Session) Eliminated() []string { return decodePlayerList(s.EliminatedJSON) }

func (s *Session) SetAdmitted(ids []string)   { s.AdmittedJSON = encodePlayerList(ids) }
func (s *Session) SetWaitlist(ids []string)   { s.WaitlistJSON = encodePlayerList(ids) }
func (s *Session) SetEliminated(ids []string) { s.EliminatedJSON = encodePlayerList(ids) }

// HasPlayer reports whether the player is admitted or waitlisted.
func (s *Session) HasPlayer(playerID string) bool {
	return contains(s.Admitted(), playerID) || contains(s.Waitlist(), playerID)
}

func (s *Session) IsAdmitted(playerID string) bool {
	return contains(s.Admitted(), playerID)
}

func (s *Session) IsEliminated(playerID string) bool {
	return contains(s.Eliminated(), playerID)
}

func decodePlayerList(raw string) []string {
	if raw == "" {
		return nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil
	}
	return ids
}

func encodePlayerList(ids []string) string {
	if len(ids) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(ids)
	return string(b)
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
