package risk

import (
	"math"
	"strings"

	"github.com/dineshreddykolli/mindcare-ai/internal/fault"
)

// Weights are the blend coefficients of the four score components.
type Weights struct {
	Depression float64 `mapstructure:"depression" yaml:"depression" json:"depression"`
	Anxiety    float64 `mapstructure:"anxiety" yaml:"anxiety" json:"anxiety"`
	Sentiment  float64 `mapstructure:"sentiment" yaml:"sentiment" json:"sentiment"`
	Crisis     float64 `mapstructure:"crisis" yaml:"crisis" json:"crisis"`
}

// Thresholds are the inclusive lower bounds of each level on the 0-100 scale.
type Thresholds struct {
	Critical float64 `mapstructure:"critical" yaml:"critical" json:"critical"`
	High     float64 `mapstructure:"high" yaml:"high" json:"high"`
	Moderate float64 `mapstructure:"moderate" yaml:"moderate" json:"moderate"`
}

// UrgencyLabels map each level to a recommended scheduling urgency.
type UrgencyLabels struct {
	Critical string `mapstructure:"critical" yaml:"critical" json:"critical"`
	High     string `mapstructure:"high" yaml:"high" json:"high"`
	Moderate string `mapstructure:"moderate" yaml:"moderate" json:"moderate"`
	Low      string `mapstructure:"low" yaml:"low" json:"low"`
}

// Config holds the clinical tuning of the classifier.
type Config struct {
	Weights    Weights       `mapstructure:"weights" yaml:"weights" json:"weights"`
	Thresholds Thresholds    `mapstructure:"thresholds" yaml:"thresholds" json:"thresholds"`
	Urgency    UrgencyLabels `mapstructure:"urgency" yaml:"urgency" json:"urgency"`
	Lexicon    []string      `mapstructure:"lexicon" yaml:"lexicon" json:"lexicon"`

	// NeutralSentiment is the sentiment component used when no sentiment
	// score was supplied.
	NeutralSentiment float64 `mapstructure:"neutral_sentiment" yaml:"neutral_sentiment" json:"neutral_sentiment"`
}

// DefaultLexicon is the crisis keyword list used when none is configured.
var DefaultLexicon = []string{
	"suicide",
	"suicidal",
	"kill myself",
	"end my life",
	"self-harm",
	"hurt myself",
	"cut myself",
	"no reason to live",
	"better off dead",
	"worthless",
	"hopeless",
}

// DefaultConfig returns the standard clinical configuration.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{Depression: 0.4, Anxiety: 0.3, Sentiment: 0.15, Crisis: 0.15},
		Thresholds: Thresholds{
			Critical: 80,
			High:     60,
			Moderate: 40,
		},
		Urgency: UrgencyLabels{
			Critical: "immediate (within hours)",
			High:     "within 48 hours",
			Moderate: "standard scheduling",
			Low:      "routine",
		},
		Lexicon:          append([]string(nil), DefaultLexicon...),
		NeutralSentiment: 50,
	}
}

// Validate checks the configuration for internal consistency.
func (c Config) Validate() error {
	w := c.Weights
	for name, v := range map[string]float64{
		"risk.weights.depression": w.Depression,
		"risk.weights.anxiety":    w.Anxiety,
		"risk.weights.sentiment":  w.Sentiment,
		"risk.weights.crisis":     w.Crisis,
	} {
		if v < 0 || math.IsNaN(v) {
			return fault.Invalid(name, "must be non-negative, got %v", v)
		}
	}

	t := c.Thresholds
	if !(t.Moderate > 0 && t.Moderate < t.High && t.High < t.Critical && t.Critical <= 100) {
		return fault.Invalid("risk.thresholds", "must satisfy 0 < moderate < high < critical <= 100, got %v/%v/%v",
			t.Moderate, t.High, t.Critical)
	}

	if c.NeutralSentiment < 0 || c.NeutralSentiment > 100 {
		return fault.Invalid("risk.neutral_sentiment", "must be within [0,100], got %v", c.NeutralSentiment)
	}

	empty := true
	for _, k := range c.Lexicon {
		if strings.TrimSpace(k) != "" {
			empty = false
			break
		}
	}
	if empty {
		return fault.Invalid("risk.lexicon", "must contain at least one keyword")
	}
	return nil
}

// Level returns the level for a blended score. The self-harm override is
// applied by the classifier, not here.
func (t Thresholds) Level(score float64) Level {
	switch {
	case score >= t.Critical:
		return LevelCritical
	case score >= t.High:
		return LevelHigh
	case score >= t.Moderate:
		return LevelModerate
	default:
		return LevelLow
	}
}

// For returns the urgency label of a level.
func (u UrgencyLabels) For(l Level) string {
	switch l {
	case LevelCritical:
		return u.Critical
	case LevelHigh:
		return u.High
	case LevelModerate:
		return u.Moderate
	default:
		return u.Low
	}
}
