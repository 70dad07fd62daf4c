package dropout

import (
	"fmt"
	"math"
	"os"
	"sort"
	"sync"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	"github.com/dineshreddykolli/mindcare-ai/internal/fault"
)

// Weights are the coefficients of the linear dropout model.
type Weights struct {
	NoShowRate     float64 `yaml:"no_show_rate" json:"no_show_rate"`
	CancelRate     float64 `yaml:"cancel_rate" json:"cancel_rate"`
	DaysSinceLast  float64 `yaml:"days_since_last" json:"days_since_last"`
	SentimentTrend float64 `yaml:"sentiment_trend" json:"sentiment_trend"`
	AttendanceRate float64 `yaml:"attendance_rate" json:"attendance_rate"`
}

// Model is one immutable, versioned weight set. Predictions carry the
// version so they stay interpretable after the weights change.
type Model struct {
	Version string  `yaml:"version" json:"version"`
	Base    float64 `yaml:"base" json:"base"`
	Weights Weights `yaml:"weights" json:"weights"`
	Notes   string  `yaml:"notes,omitempty" json:"notes,omitempty"`
}

// DefaultVersion is the version of DefaultModel.
const DefaultVersion = "v1.0.0"

// DefaultModel is the heuristic weight set shipped with the engine. The
// weights are not clinically validated.
func DefaultModel() Model {
	return Model{
		Version: DefaultVersion,
		Base:    20,
		Weights: Weights{
			NoShowRate:     40,
			CancelRate:     25,
			DaysSinceLast:  8,
			SentimentTrend: 10,
			AttendanceRate: 20,
		},
		Notes: "heuristic baseline",
	}
}

// Validate checks the model definition.
func (m Model) Validate() error {
	if !semver.IsValid(m.Version) {
		return fault.Invalid("dropout.model.version", "%q is not a semantic version (want vMAJOR.MINOR.PATCH)", m.Version)
	}
	for name, v := range map[string]float64{
		"base":            m.Base,
		"no_show_rate":    m.Weights.NoShowRate,
		"cancel_rate":     m.Weights.CancelRate,
		"days_since_last": m.Weights.DaysSinceLast,
		"sentiment_trend": m.Weights.SentimentTrend,
		"attendance_rate": m.Weights.AttendanceRate,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fault.Invalid("dropout.model."+name, "must be finite")
		}
	}
	return nil
}

// Registry holds every known model keyed by version.
type Registry struct {
	mu     sync.RWMutex
	models map[string]Model
}

// NewRegistry returns a registry holding DefaultModel.
func NewRegistry() *Registry {
	r := &Registry{models: make(map[string]Model)}
	r.models[DefaultVersion] = DefaultModel()
	return r
}

// Register adds m. Re-registering a version with the same weights is a
// no-op; changing weights under an existing version is rejected.
func (r *Registry) Register(m Model) error {
	if err := m.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.models[m.Version]; ok {
		if prev.Base != m.Base || prev.Weights != m.Weights {
			return fault.Invalid("dropout.model.version", "weights changed under %s without a version bump", m.Version)
		}
		return nil
	}
	r.models[m.Version] = m
	return nil
}

// Get returns the model with the given version.
func (r *Registry) Get(version string) (Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[version]
	if !ok {
		return Model{}, &fault.ErrNotFound{Entity: "dropout model", ID: version}
	}
	return m, nil
}

// Latest returns the model with the highest version.
func (r *Registry) Latest() Model {
	versions := r.Versions()
	m, _ := r.Get(versions[len(versions)-1])
	return m
}

// Versions returns the registered versions in semver order.
func (r *Registry) Versions() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.models))
	for v := range r.models {
		out = append(out, v)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return semver.Compare(out[i], out[j]) < 0 })
	return out
}

type modelFile struct {
	Models []Model `yaml:"models"`
}

// LoadFile registers every model listed in a YAML file of the form
//
//	models:
//	  - version: v1.1.0
//	    base: 18
//	    weights: {no_show_rate: 45, ...}
func (r *Registry) LoadFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model file: %w", err)
	}
	var f modelFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse model file %s: %w", path, err)
	}
	var loaded []string
	for _, m := range f.Models {
		if err := r.Register(m); err != nil {
			return loaded, fmt.Errorf("register model from %s: %w", path, err)
		}
		loaded = append(loaded, m.Version)
	}
	return loaded, nil
}
