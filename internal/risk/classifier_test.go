package risk

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/dineshreddykolli/mindcare-ai/internal/fault"
	"github.com/dineshreddykolli/mindcare-ai/internal/screening"
)

func newTestClassifier(t *testing.T) *Classifier {
	t.Helper()
	c, err := NewClassifier(DefaultConfig(),
		WithClock(func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }),
		WithIDs(func() string { return "asm-1" }),
	)
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}
	return c
}

func ptr(f float64) *float64 { return &f }

func TestClassify_Blend(t *testing.T) {
	c := newTestClassifier(t)
	res, err := c.Classify(Input{Depression: 27, Anxiety: 21, Sentiment: ptr(-1)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 0.4*100 + 0.3*100 + 0.15*100 + 0.15*0
	if math.Abs(res.Score-85) > 1e-9 {
		t.Errorf("score = %v, want 85", res.Score)
	}
	if res.Level != LevelCritical {
		t.Errorf("level = %q, want critical", res.Level)
	}
	if res.Urgency != "immediate (within hours)" {
		t.Errorf("urgency = %q", res.Urgency)
	}
}

func TestClassify_NullSentimentIsNeutral(t *testing.T) {
	c := newTestClassifier(t)
	res, err := c.Classify(Input{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Components.Sentiment != 50 {
		t.Errorf("sentiment component = %v, want 50", res.Components.Sentiment)
	}
	if math.Abs(res.Score-7.5) > 1e-9 {
		t.Errorf("score = %v, want 7.5", res.Score)
	}
	if res.Level != LevelLow || res.Urgency != "routine" {
		t.Errorf("got %q/%q, want low/routine", res.Level, res.Urgency)
	}
}

func TestClassify_Levels(t *testing.T) {
	th := DefaultConfig().Thresholds
	tests := []struct {
		score float64
		want  Level
	}{
		{0, LevelLow},
		{39.99, LevelLow},
		{40, LevelModerate},
		{59.99, LevelModerate},
		{60, LevelHigh},
		{79.99, LevelHigh},
		{80, LevelCritical},
		{100, LevelCritical},
	}
	for _, tt := range tests {
		if got := th.Level(tt.score); got != tt.want {
			t.Errorf("Level(%v) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestClassify_SelfHarmForcesCritical(t *testing.T) {
	c := newTestClassifier(t)
	for _, s := range []*float64{nil, ptr(1), ptr(0), ptr(-1)} {
		for dep := 0; dep <= 27; dep += 9 {
			for anx := 0; anx <= 21; anx += 7 {
				res, err := c.Classify(Input{Depression: dep, Anxiety: anx, Sentiment: s, SelfHarm: true})
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if res.Level != LevelCritical {
					t.Fatalf("dep=%d anx=%d: level = %q, want critical", dep, anx, res.Level)
				}
				if res.Components.Crisis != 100 {
					t.Fatalf("crisis component = %v, want 100", res.Components.Crisis)
				}
			}
		}
	}
}

func TestClassify_Monotonic(t *testing.T) {
	c := newTestClassifier(t)
	sentiments := []float64{1, 0.5, 0, -0.5, -1}

	score := func(dep, anx int, s float64) float64 {
		res, err := c.Classify(Input{Depression: dep, Anxiety: anx, Sentiment: ptr(s)})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return res.Score
	}

	for dep := 0; dep <= 27; dep++ {
		for anx := 0; anx <= 21; anx++ {
			for i, s := range sentiments {
				base := score(dep, anx, s)
				if dep < 27 && score(dep+1, anx, s) < base {
					t.Fatalf("depression %d->%d decreased score", dep, dep+1)
				}
				if anx < 21 && score(dep, anx+1, s) < base {
					t.Fatalf("anxiety %d->%d decreased score", anx, anx+1)
				}
				if i+1 < len(sentiments) && score(dep, anx, sentiments[i+1]) < base {
					t.Fatalf("sentiment %v->%v decreased score", s, sentiments[i+1])
				}
				if base < 0 || base > 100 {
					t.Fatalf("score %v out of bounds", base)
				}
			}
		}
	}
}

func TestClassify_Keywords(t *testing.T) {
	c := newTestClassifier(t)
	res, err := c.Classify(Input{Text: "I feel HOPELESS and sometimes think about Suicide. Hopeless."})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"suicide", "hopeless"}
	if len(res.Keywords) != len(want) {
		t.Fatalf("keywords = %v, want %v", res.Keywords, want)
	}
	for i := range want {
		if res.Keywords[i] != want[i] {
			t.Errorf("keywords[%d] = %q, want %q", i, res.Keywords[i], want[i])
		}
	}
	if res.Components.Crisis != 100 {
		t.Errorf("crisis component = %v, want 100", res.Components.Crisis)
	}
}

func TestClassify_RejectsMalformed(t *testing.T) {
	c := newTestClassifier(t)
	tests := []struct {
		name string
		in   Input
	}{
		{"sentiment above 1", Input{Sentiment: ptr(1.01)}},
		{"sentiment below -1", Input{Sentiment: ptr(-1.5)}},
		{"sentiment NaN", Input{Sentiment: ptr(math.NaN())}},
		{"depression above max", Input{Depression: 28}},
		{"negative anxiety", Input{Anxiety: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Classify(tt.in)
			var verr *fault.ErrValidation
			if !errors.As(err, &verr) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestAssess_SelfHarmScenario(t *testing.T) {
	c := newTestClassifier(t)
	a, err := c.Assess(&screening.IntakeResponse{
		ID:         "intake-1",
		PatientID:  "p-1",
		Depression: []int{2, 2, 2, 1, 1, 1, 1, 1, 3},
		Anxiety:    []int{0, 0, 0, 0, 0, 0, 0},
		Sentiment:  ptr(0.9),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Scores.Depression != 14 || !a.Scores.SelfHarm {
		t.Fatalf("scores = %+v", a.Scores)
	}
	if a.Level != LevelCritical {
		t.Errorf("level = %q, want critical", a.Level)
	}
	if a.ID != "asm-1" || a.PatientID != "p-1" || a.IntakeID != "intake-1" {
		t.Errorf("identity = %s/%s/%s", a.ID, a.PatientID, a.IntakeID)
	}
	if !a.Alerting() {
		t.Error("critical assessment should alert")
	}
}

func TestAssess_ValidationBeforeScoring(t *testing.T) {
	c := newTestClassifier(t)
	a, err := c.Assess(&screening.IntakeResponse{
		PatientID:  "p-1",
		Depression: []int{1, 1, 1},
		Anxiety:    make([]int, 7),
	})
	if err == nil || a != nil {
		t.Fatalf("expected rejection, got %+v, %v", a, err)
	}

	a, err = c.Assess(&screening.IntakeResponse{
		Depression: make([]int, 9),
		Anxiety:    make([]int, 7),
	})
	if err == nil || a != nil {
		t.Fatalf("expected rejection for missing patient, got %+v, %v", a, err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"non-monotonic thresholds", func(c *Config) { c.Thresholds.High = 85 }},
		{"equal thresholds", func(c *Config) { c.Thresholds.Moderate = 60 }},
		{"negative weight", func(c *Config) { c.Weights.Anxiety = -0.1 }},
		{"empty lexicon", func(c *Config) { c.Lexicon = []string{" ", ""} }},
		{"neutral sentiment out of range", func(c *Config) { c.NeutralSentiment = 120 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
			if _, err := NewClassifier(cfg); err == nil {
				t.Fatal("NewClassifier accepted invalid config")
			}
		})
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestCustomThresholds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Thresholds = Thresholds{Critical: 70, High: 50, Moderate: 20}
	c, err := NewClassifier(cfg)
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}
	res, _ := c.Classify(Input{Depression: 27, Sentiment: ptr(1)})
	// 0.4*100 = 40
	if res.Level != LevelModerate {
		t.Errorf("level = %q, want moderate under custom thresholds", res.Level)
	}
}
