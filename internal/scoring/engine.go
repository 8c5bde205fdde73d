// Package scoring computes per-answer point breakdowns. It is pure:
// no storage, no clocks, no side effects.
package scoring

import (
	"math"
	"sort"
	"time"

	"quickfire-quiz-service/internal/config"
	"quickfire-quiz-service/internal/domain"
)

// Input carries everything the engine needs to score one answer.
type Input struct {
	Difficulty       domain.Difficulty
	Correct          bool
	Streak           int     // consecutive correct answers before this one
	ListeningHours   float64 // user's historical listening time for the artist
	ActiveMultiplier float64 // 0 or 1 means no multiplier in effect
}

// Engine applies the difficulty/listening/streak step tables.
type Engine struct {
	basePoints  map[domain.Difficulty]int
	penalties   map[domain.Difficulty]int
	listening   []config.StepFloat // ascending by Min
	streaks     []config.StepInt   // ascending by Min
	timePenalty time.Duration
}

// NewEngine builds an engine from the scoring config. Step tables are
// sorted so lookups walk from the highest threshold down.
func NewEngine(cfg config.Scoring, timePenalty time.Duration) *Engine {
	e := &Engine{
		basePoints:  make(map[domain.Difficulty]int, len(cfg.BasePoints)),
		penalties:   make(map[domain.Difficulty]int, len(cfg.Penalties)),
		listening:   append([]config.StepFloat(nil), cfg.ListeningTiers...),
		streaks:     append([]config.StepInt(nil), cfg.StreakTiers...),
		timePenalty: timePenalty,
	}
	for k, v := range cfg.BasePoints {
		e.basePoints[domain.Difficulty(k)] = v
	}
	for k, v := range cfg.Penalties {
		e.penalties[domain.Difficulty(k)] = v
	}
	sort.Slice(e.listening, func(i, j int) bool { return e.listening[i].Min < e.listening[j].Min })
	sort.Slice(e.streaks, func(i, j int) bool { return e.streaks[i].Min < e.streaks[j].Min })
	return e
}

// TimePenalty is the clock cost reported for a wrong answer. The
// session manager applies it; the engine only reports it.
func (e *Engine) TimePenalty() time.Duration {
	return e.timePenalty
}

// ListeningMultiplier is a non-decreasing step function of hours listened.
func (e *Engine) ListeningMultiplier(hours float64) float64 {
	m := 1.0
	for _, step := range e.listening {
		if hours >= step.Min {
			m = step.Value
		}
	}
	return m
}

// StreakBonus is a non-decreasing step function of the current streak.
func (e *Engine) StreakBonus(streak int) int {
	b := 0
	for _, step := range e.streaks {
		if streak >= step.Min {
			b = step.Value
		}
	}
	return b
}

// Score returns the point breakdown for one answer.
//
// Correct: net = floor(floor(base×listening) + streakBonus) × multiplier,
// floored again after the multiplier. Wrong: net = −penalty(difficulty);
// the caller decides whether a shield nullifies it.
func (e *Engine) Score(in Input) domain.AnswerBreakdown {
	if !in.Correct {
		penalty := e.penalties[in.Difficulty]
		return domain.AnswerBreakdown{Penalty: penalty, Net: -penalty}
	}

	base := e.basePoints[in.Difficulty]
	withListening := int(math.Floor(float64(base) * e.ListeningMultiplier(in.ListeningHours)))
	streakBonus := e.StreakBonus(in.Streak)
	pre := withListening + streakBonus

	mult := in.ActiveMultiplier
	if mult < 1 {
		mult = 1
	}
	net := int(math.Floor(float64(pre) * mult))

	return domain.AnswerBreakdown{
		Base:            base,
		ListeningBonus:  withListening - base,
		StreakBonus:     streakBonus,
		MultiplierBonus: net - pre,
		Net:             net,
	}
}
