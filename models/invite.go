// models/invite.go
package models

import "time"

const (
	InviteStatusPending  = "pending"
	InviteStatusAccepted = "accepted"
	InviteStatusRevoked  = "revoked"
)

// Invite grants a player a seat claim in a closed session. Only an
// accepted invite admits.
type Invite struct {
	SessionID string `json:"session_id" gorm:"primaryKey;not null"`
	PlayerID  string `json:"player_id" gorm:"primaryKey;not null"`
	InviterID string `json:"inviter_id" gorm:"not null"`

	Status string `json:"status" gorm:"default:'pending'"` // pending | accepted | revoked

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
