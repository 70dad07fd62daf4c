package matching

import "github.com/dineshreddykolli/mindcare-ai/internal/fault"

// Config holds the ranking rule points.
type Config struct {
	TopN int `mapstructure:"top_n" yaml:"top_n" json:"top_n"`

	SpecialtyBase  float64 `mapstructure:"specialty_base" yaml:"specialty_base" json:"specialty_base"`
	SpecialtyExtra float64 `mapstructure:"specialty_extra" yaml:"specialty_extra" json:"specialty_extra"`
	SpecialtyCap   float64 `mapstructure:"specialty_cap" yaml:"specialty_cap" json:"specialty_cap"`
	Language       float64 `mapstructure:"language" yaml:"language" json:"language"`
	HighRisk       float64 `mapstructure:"high_risk" yaml:"high_risk" json:"high_risk"`
	SuccessMax     float64 `mapstructure:"success_max" yaml:"success_max" json:"success_max"`
	Format         float64 `mapstructure:"format" yaml:"format" json:"format"`
}

// DefaultConfig returns the standard rule points.
func DefaultConfig() Config {
	return Config{
		TopN:           3,
		SpecialtyBase:  40,
		SpecialtyExtra: 10,
		SpecialtyCap:   50,
		Language:       20,
		HighRisk:       15,
		SuccessMax:     15,
		Format:         5,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.TopN < 1 {
		return fault.Invalid("matching.top_n", "must be at least 1, got %d", c.TopN)
	}
	for name, v := range map[string]float64{
		"matching.specialty_base":  c.SpecialtyBase,
		"matching.specialty_extra": c.SpecialtyExtra,
		"matching.specialty_cap":   c.SpecialtyCap,
		"matching.language":        c.Language,
		"matching.high_risk":       c.HighRisk,
		"matching.success_max":     c.SuccessMax,
		"matching.format":          c.Format,
	} {
		if v < 0 {
			return fault.Invalid(name, "must be non-negative, got %v", v)
		}
	}
	if c.SpecialtyCap < c.SpecialtyBase {
		return fault.Invalid("matching.specialty_cap", "must be at least specialty_base")
	}
	return nil
}
