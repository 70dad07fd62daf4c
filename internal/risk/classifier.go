// Package risk turns screening subtotals, sentiment and free text into a
// bounded risk score and a discrete level.
package risk

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/dineshreddykolli/mindcare-ai/internal/fault"
	"github.com/dineshreddykolli/mindcare-ai/internal/screening"
)

// Classifier is safe for concurrent use; it holds only immutable config.
type Classifier struct {
	cfg     Config
	lexicon *Lexicon
	now     func() time.Time
	newID   func() string
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithClock overrides the assessment timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Classifier) { c.now = now }
}

// WithIDs overrides assessment ID generation.
func WithIDs(newID func() string) Option {
	return func(c *Classifier) { c.newID = newID }
}

// NewClassifier validates cfg and builds a classifier.
func NewClassifier(cfg Config, opts ...Option) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Classifier{
		cfg:     cfg,
		lexicon: NewLexicon(cfg.Lexicon),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Config returns the classifier's configuration.
func (c *Classifier) Config() Config { return c.cfg }

// Classify computes the components, blended score and level.
func (c *Classifier) Classify(in Input) (Result, error) {
	if in.Depression < 0 || in.Depression > screening.MaxDepression {
		return Result{}, fault.Invalid("depression", "subtotal %d outside [0,%d]", in.Depression, screening.MaxDepression)
	}
	if in.Anxiety < 0 || in.Anxiety > screening.MaxAnxiety {
		return Result{}, fault.Invalid("anxiety", "subtotal %d outside [0,%d]", in.Anxiety, screening.MaxAnxiety)
	}

	sentiment := c.cfg.NeutralSentiment
	if in.Sentiment != nil {
		s := *in.Sentiment
		if math.IsNaN(s) || s < -1 || s > 1 {
			return Result{}, fault.Invalid("sentiment", "score %v outside [-1,1]", s)
		}
		sentiment = (1 - s) / 2 * 100
	}

	keywords := c.lexicon.Match(in.Text)
	crisis := 0.0
	if len(keywords) > 0 || in.SelfHarm {
		crisis = 100
	}

	comp := Components{
		Depression: float64(in.Depression) / screening.MaxDepression * 100,
		Anxiety:    float64(in.Anxiety) / screening.MaxAnxiety * 100,
		Sentiment:  sentiment,
		Crisis:     crisis,
	}
	w := c.cfg.Weights
	score := clamp(w.Depression*comp.Depression +
		w.Anxiety*comp.Anxiety +
		w.Sentiment*comp.Sentiment +
		w.Crisis*comp.Crisis)

	level := c.cfg.Thresholds.Level(score)
	if in.SelfHarm {
		level = LevelCritical
	}

	return Result{
		Components: comp,
		Score:      score,
		Level:      level,
		Urgency:    c.cfg.Urgency.For(level),
		Keywords:   keywords,
		Thresholds: c.cfg.Thresholds,
	}, nil
}

// Assess scores and classifies an intake, producing a new snapshot.
// Nothing is returned on failure so partial assessments cannot escape.
func (c *Classifier) Assess(in *screening.IntakeResponse) (*Assessment, error) {
	scores, err := screening.ScoreIntake(in)
	if err != nil {
		return nil, err
	}
	if in.PatientID == "" {
		return nil, fault.Invalid("patient_id", "is required")
	}

	res, err := c.Classify(Input{
		Depression: scores.Depression,
		Anxiety:    scores.Anxiety,
		SelfHarm:   scores.SelfHarm,
		Sentiment:  in.Sentiment,
		Text:       in.Text.Combined(),
	})
	if err != nil {
		return nil, err
	}

	a := &Assessment{
		ID:         c.newID(),
		PatientID:  in.PatientID,
		IntakeID:   in.ID,
		Scores:     scores,
		Keywords:   res.Keywords,
		Components: res.Components,
		Score:      res.Score,
		Level:      res.Level,
		Urgency:    res.Urgency,
		Thresholds: res.Thresholds,
		AssessedAt: c.now().UTC(),
	}
	if in.Sentiment != nil {
		s := *in.Sentiment
		a.Sentiment = &s
	}
	return a, nil
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
