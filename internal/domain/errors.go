package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrSessionNotFound is returned when no session exists for the given ID.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionNotActive is returned when a session is not in an answerable state.
	ErrSessionNotActive = errors.New("session not active")
	// ErrSessionTerminal is returned on any mutation of a completed or abandoned session.
	ErrSessionTerminal = errors.New("session already finished")
	// ErrQuestionNotFound indicates a submitted question ID is not the pending one.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrOptionNotFound indicates a submitted option ID is invalid.
	ErrOptionNotFound = errors.New("option not found")
	// ErrSubmissionTooSoon rejects bursts under the minimum inter-answer interval.
	ErrSubmissionTooSoon = errors.New("submission too soon after previous answer")
	// ErrPowerupNotFound indicates an unknown catalog entry.
	ErrPowerupNotFound = errors.New("powerup not found")
	// ErrInsufficientInventory is returned when no units remain to activate.
	ErrInsufficientInventory = errors.New("insufficient_inventory")
	// ErrMaxUsesReached is returned when the per-session cap is exhausted.
	ErrMaxUsesReached = errors.New("max_uses_reached")
	// ErrInsufficientPoints is returned when available points cannot cover a purchase.
	ErrInsufficientPoints = errors.New("insufficient points")
	// ErrInvalidRemoveOptions rejects a remove-options effect on a true/false question.
	ErrInvalidRemoveOptions = errors.New("remove options not allowed on true/false question")
	// ErrSnapshotNotFound is returned when no snapshot exists for a leaderboard key.
	ErrSnapshotNotFound = errors.New("leaderboard snapshot not found")
	// ErrStatsNotFound is returned when a user has no stats row yet.
	ErrStatsNotFound = errors.New("user stats not found")
)

// CooldownError carries the remaining cooldown so callers can render an
// actionable message.
type CooldownError struct {
	PowerupID string
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("on_cooldown: %s available in %s", e.PowerupID, e.Remaining.Round(time.Second))
}

// Is lets errors.Is match any cooldown error regardless of remaining time.
func (e *CooldownError) Is(target error) bool {
	_, ok := target.(*CooldownError)
	return ok
}
