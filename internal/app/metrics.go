package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	answersScored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quickfire_answers_scored_total",
		Help: "Answers accepted and scored.",
	})
	sessionsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quickfire_sessions_finished_total",
		Help: "Sessions reaching a terminal state.",
	}, []string{"status"})
	powerupActivations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quickfire_powerup_activations_total",
		Help: "Powerup activation attempts by outcome.",
	}, []string{"outcome"})
	cheatFlags = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quickfire_anticheat_flags_total",
		Help: "Sessions flagged pending review.",
	})
	snapshotRebuildSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "quickfire_snapshot_rebuild_seconds",
		Help:    "Wall time of one leaderboard snapshot rebuild.",
		Buckets: prometheus.DefBuckets,
	})
)
