package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Questions struct {
		TTL        string `yaml:"ttl"`
		PerSession int    `yaml:"per_session"`
		PoolSize   int    `yaml:"pool_size"`
	} `yaml:"questions"`
	Session   Session   `yaml:"session"`
	Scoring   Scoring   `yaml:"scoring"`
	Powerups  Powerups  `yaml:"powerups"`
	AntiCheat AntiCheat `yaml:"anticheat"`
	Ranking   Ranking   `yaml:"ranking"`
	Rewards   Rewards   `yaml:"rewards"`
}

// Session holds the timing policy of the session manager. Every value
// is product policy, not a derived invariant.
type Session struct {
	BaseDuration     string `yaml:"base_duration"`      // scored window length
	MaxDuration      string `yaml:"max_duration"`       // cap for add-time effects
	Countdown        string `yaml:"countdown"`          // pre-roll before the clock starts
	LatencyGrace     string `yaml:"latency_grace"`      // client clock tolerance
	MinAnswerGap     string `yaml:"min_answer_gap"`     // burst rejection floor
	StalenessWindow  string `yaml:"staleness_window"`   // no-activity auto-abandon
	WrongTimePenalty string `yaml:"wrong_time_penalty"` // clock cost of a wrong answer
	BoundaryGrace    string `yaml:"boundary_grace"`     // rollover grace for in-flight sessions
}

// Scoring mirrors the scoring engine's step tables.
type Scoring struct {
	BasePoints     map[string]int `yaml:"base_points"`     // by difficulty
	Penalties      map[string]int `yaml:"penalties"`       // by difficulty
	ListeningTiers []StepFloat    `yaml:"listening_tiers"` // min hours -> multiplier
	StreakTiers    []StepInt      `yaml:"streak_tiers"`    // min streak -> bonus points
}

type StepFloat struct {
	Min   float64 `yaml:"min"`
	Value float64 `yaml:"value"`
}

type StepInt struct {
	Min   int `yaml:"min"`
	Value int `yaml:"value"`
}

// Powerups holds the catalog and the purchase economy.
type Powerups struct {
	// Discounts maps minimum quantity to fractional discount, e.g. 3 -> 0.10.
	Discounts []DiscountTier `yaml:"discounts"`
	Catalog   []CatalogEntry `yaml:"catalog"`
}

type DiscountTier struct {
	MinQuantity int     `yaml:"min_quantity"`
	Discount    float64 `yaml:"discount"`
}

// CatalogEntry is the YAML form of a powerup definition; Effect fields
// are flattened because YAML has no tagged unions.
type CatalogEntry struct {
	ID            string  `yaml:"id"`
	Name          string  `yaml:"name"`
	Cost          int     `yaml:"cost"`
	Effect        string  `yaml:"effect"`
	Duration      string  `yaml:"duration,omitempty"`
	Seconds       int     `yaml:"seconds,omitempty"`
	Value         float64 `yaml:"value,omitempty"`
	Scope         string  `yaml:"scope,omitempty"`
	Count         int     `yaml:"count,omitempty"`
	MaxPerSession int     `yaml:"max_per_session"`
	Cooldown      string  `yaml:"cooldown,omitempty"`
}

type AntiCheat struct {
	WindowSize        int     `yaml:"window_size"`        // answers per rolling window
	MinPlausibleMS    int     `yaml:"min_plausible_ms"`   // human floor for average answer time
	AccuracyThreshold float64 `yaml:"accuracy_threshold"` // window accuracy above which to flag
	AnomalyLimit      int     `yaml:"anomaly_limit"`      // timing anomalies before review
}

type Ranking struct {
	TopAbsolute int        `yaml:"top_absolute"` // ranks awarded the highest tier outright
	Bands       []TierBand `yaml:"bands"`        // percentile bands below the absolute cut
	ArchiveTopN int        `yaml:"archive_top_n"`
}

type TierBand struct {
	Percentile float64 `yaml:"percentile"` // inclusive upper bound, e.g. 0.01
	Tier       string  `yaml:"tier"`
}

type Rewards struct {
	TierPoints    map[string]int `yaml:"tier_points"` // bonus points per tier at rollover
	TopRankPoints int            `yaml:"top_rank_points"`
}

// Load reads YAML config from path and fills defaults for anything unset.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Default returns the built-in configuration used when no file is given.
func Default() Config {
	cfg := Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Questions.PerSession == 0 {
		c.Questions.PerSession = 15
	}
	if c.Questions.PoolSize == 0 {
		c.Questions.PoolSize = 30
	}
	s := &c.Session
	setIfEmpty(&s.BaseDuration, "90s")
	setIfEmpty(&s.MaxDuration, "150s")
	setIfEmpty(&s.Countdown, "3s")
	setIfEmpty(&s.LatencyGrace, "3s")
	setIfEmpty(&s.MinAnswerGap, "350ms")
	setIfEmpty(&s.StalenessWindow, "2m")
	setIfEmpty(&s.WrongTimePenalty, "2s")
	setIfEmpty(&s.BoundaryGrace, "30s")

	if c.Scoring.BasePoints == nil {
		c.Scoring.BasePoints = map[string]int{"easy": 5, "medium": 8, "hard": 12, "expert": 18}
	}
	if c.Scoring.Penalties == nil {
		c.Scoring.Penalties = map[string]int{"easy": 3, "medium": 4, "hard": 5, "expert": 6}
	}
	if c.Scoring.ListeningTiers == nil {
		c.Scoring.ListeningTiers = []StepFloat{
			{Min: 1, Value: 1.05},
			{Min: 5, Value: 1.10},
			{Min: 20, Value: 1.15},
			{Min: 50, Value: 1.20},
			{Min: 100, Value: 1.25},
		}
	}
	if c.Scoring.StreakTiers == nil {
		c.Scoring.StreakTiers = []StepInt{
			{Min: 3, Value: 2},
			{Min: 5, Value: 5},
			{Min: 10, Value: 10},
			{Min: 15, Value: 15},
			{Min: 20, Value: 20},
		}
	}
	if c.Powerups.Discounts == nil {
		c.Powerups.Discounts = []DiscountTier{
			{MinQuantity: 3, Discount: 0.10},
			{MinQuantity: 5, Discount: 0.15},
			{MinQuantity: 10, Discount: 0.25},
		}
	}
	if c.Powerups.Catalog == nil {
		c.Powerups.Catalog = []CatalogEntry{
			{ID: "freeze", Name: "Time Freeze", Cost: 150, Effect: "freeze_time", Duration: "10s", MaxPerSession: 2, Cooldown: "20s"},
			{ID: "extra-time", Name: "Extra Time", Cost: 120, Effect: "add_time", Seconds: 15, MaxPerSession: 2},
			{ID: "double-up", Name: "Double Up", Cost: 250, Effect: "multiplier", Value: 2.0, Scope: "next_question", MaxPerSession: 3, Cooldown: "15s"},
			{ID: "surge", Name: "Point Surge", Cost: 400, Effect: "multiplier", Value: 1.5, Scope: "all_remaining", MaxPerSession: 1},
			{ID: "shield", Name: "Penalty Shield", Cost: 180, Effect: "block_penalty", Count: 1, MaxPerSession: 2},
			{ID: "fifty-fifty", Name: "50/50", Cost: 100, Effect: "remove_options", Count: 2, MaxPerSession: 3, Cooldown: "10s"},
			{ID: "skip", Name: "Skip", Cost: 80, Effect: "skip_question", MaxPerSession: 2},
		}
	}
	a := &c.AntiCheat
	if a.WindowSize == 0 {
		a.WindowSize = 5
	}
	if a.MinPlausibleMS == 0 {
		a.MinPlausibleMS = 1500
	}
	if a.AccuracyThreshold == 0 {
		a.AccuracyThreshold = 0.90
	}
	if a.AnomalyLimit == 0 {
		a.AnomalyLimit = 3
	}
	r := &c.Ranking
	if r.TopAbsolute == 0 {
		r.TopAbsolute = 10
	}
	if r.Bands == nil {
		r.Bands = []TierBand{
			{Percentile: 0.01, Tier: "diamond"},
			{Percentile: 0.05, Tier: "platinum"},
			{Percentile: 0.15, Tier: "gold"},
			{Percentile: 0.40, Tier: "silver"},
			{Percentile: 1.00, Tier: "bronze"},
		}
	}
	if r.ArchiveTopN == 0 {
		r.ArchiveTopN = 100
	}
	if c.Rewards.TierPoints == nil {
		c.Rewards.TierPoints = map[string]int{
			"legend": 1000, "diamond": 500, "platinum": 250,
			"gold": 100, "silver": 50, "bronze": 20,
		}
	}
	if c.Rewards.TopRankPoints == 0 {
		c.Rewards.TopRankPoints = 2000
	}
}

func setIfEmpty(dst *string, val string) {
	if *dst == "" {
		*dst = val
	}
}

// TTLDuration parses a duration string or returns the fallback if empty
// or invalid.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
