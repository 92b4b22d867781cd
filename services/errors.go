// services/errors.go
package services

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrInvalidState       = errors.New("operation not allowed in current session state")
	ErrInvalidCode        = errors.New("join code does not match")
	ErrAlreadyJoined      = errors.New("player already joined or waitlisted")
	ErrNotInvited         = errors.New("closed session requires an accepted invite")
	ErrNotParticipant     = errors.New("player has no card in this session")
	ErrOutOfBounds        = errors.New("square position outside the grid")
	ErrAlreadyClaimed     = errors.New("square already claimed")
	ErrInsufficientAssets = errors.New("asset pool is empty")
	ErrBusy               = errors.New("session busy, retry")
	ErrSessionCorrupt     = errors.New("session state corrupt, claims halted")
)

// httpStatus maps engine errors onto HTTP codes once, so every handler
// responds consistently.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrNotInvited):
		return fiber.StatusForbidden
	case errors.Is(err, ErrInvalidCode), errors.Is(err, ErrOutOfBounds), errors.Is(err, ErrInsufficientAssets):
		return fiber.StatusBadRequest
	case errors.Is(err, ErrAlreadyJoined), errors.Is(err, ErrAlreadyClaimed):
		return fiber.StatusConflict
	case errors.Is(err, ErrBusy):
		return fiber.StatusTooManyRequests
	case errors.Is(err, ErrNotParticipant):
		return fiber.StatusForbidden
	case errors.Is(err, ErrSessionCorrupt):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

func writeError(c *fiber.Ctx, err error) error {
	return c.Status(httpStatus(err)).JSON(fiber.Map{"error": err.Error()})
}
