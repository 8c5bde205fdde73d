package app

import (
	"sync"
	"time"

	"quickfire-quiz-service/internal/config"
	"quickfire-quiz-service/internal/domain"
)

// AntiCheatMonitor consumes the live answer stream and flags sessions
// whose recent answers are too fast to be human while staying too
// accurate. Flagging is soft: the session still completes and scores,
// it is only excluded from ranked standings until review.
type AntiCheatMonitor struct {
	windowSize   int
	minAvg       time.Duration
	accuracy     float64
	anomalyLimit int

	mu      sync.Mutex
	windows map[string]*cheatWindow
}

type cheatWindow struct {
	samples   []answerSample
	anomalies int
}

type answerSample struct {
	taken   time.Duration
	correct bool
}

func NewAntiCheatMonitor(cfg config.AntiCheat) *AntiCheatMonitor {
	return &AntiCheatMonitor{
		windowSize:   cfg.WindowSize,
		minAvg:       time.Duration(cfg.MinPlausibleMS) * time.Millisecond,
		accuracy:     cfg.AccuracyThreshold,
		anomalyLimit: cfg.AnomalyLimit,
		windows:      make(map[string]*cheatWindow),
	}
}

// Observe feeds one answer into the session's rolling window and
// reports whether the session should be marked pending review.
func (m *AntiCheatMonitor) Observe(a domain.QuizAnswer) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[a.SessionID]
	if !ok {
		w = &cheatWindow{}
		m.windows[a.SessionID] = w
	}
	if a.TimingAnomaly {
		w.anomalies++
	}
	w.samples = append(w.samples, answerSample{taken: a.TimeTaken, correct: a.Correct})
	if len(w.samples) > m.windowSize {
		w.samples = w.samples[len(w.samples)-m.windowSize:]
	}

	if w.anomalies >= m.anomalyLimit {
		cheatFlags.Inc()
		return true
	}
	if len(w.samples) < m.windowSize {
		return false
	}

	var total time.Duration
	correct := 0
	for _, s := range w.samples {
		total += s.taken
		if s.correct {
			correct++
		}
	}
	avg := total / time.Duration(len(w.samples))
	acc := float64(correct) / float64(len(w.samples))
	if avg < m.minAvg && acc > m.accuracy {
		cheatFlags.Inc()
		return true
	}
	return false
}

// Forget drops the window once a session reaches a terminal state.
func (m *AntiCheatMonitor) Forget(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.windows, sessionID)
}
