package domain

import "time"

// MultiplierScope controls how long a multiplier effect lasts.
type MultiplierScope string

const (
	MultiplierAllRemaining MultiplierScope = "all_remaining"
	MultiplierNextQuestion MultiplierScope = "next_question"
)

// Effect is the closed set of powerup effects. Each kind is its own
// type so application sites switch exhaustively instead of probing a
// keyed payload.
type Effect interface {
	Kind() string
}

// FreezeTime pauses the countdown for Duration without blocking answers.
type FreezeTime struct {
	Duration time.Duration `json:"duration"`
}

// AddTime extends the session clock, capped at the configured maximum
// session duration.
type AddTime struct {
	Seconds int `json:"seconds"`
}

// Multiplier scales net points for the next question or all remaining ones.
type Multiplier struct {
	Value float64         `json:"value"`
	Scope MultiplierScope `json:"scope"`
}

// BlockPenalty shields the next Count wrong answers from point and time
// penalties. The streak still resets.
type BlockPenalty struct {
	Count int `json:"count"`
}

// RemoveOptions removes Count incorrect options from the current
// question. Rejected on true/false questions.
type RemoveOptions struct {
	Count int `json:"count"`
}

// SkipQuestion discards the current question with no points and no penalty.
type SkipQuestion struct{}

func (FreezeTime) Kind() string    { return "freeze_time" }
func (AddTime) Kind() string       { return "add_time" }
func (Multiplier) Kind() string    { return "multiplier" }
func (BlockPenalty) Kind() string  { return "block_penalty" }
func (RemoveOptions) Kind() string { return "remove_options" }
func (SkipQuestion) Kind() string  { return "skip_question" }

// PowerupDefinition is a static catalog entry.
type PowerupDefinition struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Cost          int           `json:"cost"`
	Effect        Effect        `json:"effect"`
	MaxPerSession int           `json:"maxPerSession"`
	Cooldown      time.Duration `json:"cooldown"` // zero means no cooldown
}

// InventoryEntry is the per-(user, powerup) owned quantity. It is the
// single resource under concurrent contention; all decrements go
// through the repository's atomic compare-and-decrement.
type InventoryEntry struct {
	UserID    string    `json:"userId"`
	PowerupID string    `json:"powerupId"`
	Quantity  int       `json:"quantity"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PowerupActivation is the immutable usage record enforcing per-session
// caps and cooldowns.
type PowerupActivation struct {
	ID            string        `json:"id"`
	SessionID     string        `json:"sessionId"`
	PowerupID     string        `json:"powerupId"`
	RemainingTime time.Duration `json:"remainingTime"`
	ActivatedAt   time.Time     `json:"activatedAt"`
}

// PowerupPurchase records one purchase against the catalog.
type PowerupPurchase struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	PowerupID   string    `json:"powerupId"`
	Quantity    int       `json:"quantity"`
	UnitCost    int       `json:"unitCost"`
	TotalCost   int       `json:"totalCost"` // after bulk discount
	PurchasedAt time.Time `json:"purchasedAt"`
}
