package screening

import "time"

// Instrument names a standardized questionnaire.
type Instrument string

const (
	PHQ9 Instrument = "phq9"
	GAD7 Instrument = "gad7"
)

// Item names in instrument order. The ninth PHQ-9 item asks about thoughts
// of self-harm and is surfaced independently of the total.
var (
	DepressionItems = []string{
		"interest", "depressed", "sleep", "fatigue", "appetite",
		"failure", "concentration", "movement", "self_harm",
	}
	AnxietyItems = []string{
		"nervous", "control_worry", "worry_much", "trouble_relaxing",
		"restless", "irritable", "afraid",
	}
)

const (
	// SelfHarmItem is the index of the self-harm question in DepressionItems.
	SelfHarmItem = 8

	MinAnswer = 0
	MaxAnswer = 3

	MaxDepression = 27
	MaxAnxiety    = 21
)

// Band is a severity band of a questionnaire subtotal.
type Band string

const (
	BandMinimal          Band = "minimal"
	BandMild             Band = "mild"
	BandModerate         Band = "moderate"
	BandModeratelySevere Band = "moderately_severe"
	BandSevere           Band = "severe"
)

// FreeText holds the narrative intake answers scanned for crisis language
// and specialty needs.
type FreeText struct {
	PrimaryConcern      string `json:"primary_concern"`
	SymptomsDescription string `json:"symptoms_description,omitempty"`
	GoalsForTherapy     string `json:"goals_for_therapy,omitempty"`
	SubstanceUse        string `json:"substance_use,omitempty"`
}

// Combined joins every field into one block for keyword scanning.
func (f FreeText) Combined() string {
	out := f.PrimaryConcern
	for _, s := range []string{f.SymptomsDescription, f.GoalsForTherapy, f.SubstanceUse} {
		if s != "" {
			out += "\n" + s
		}
	}
	return out
}

// Preferences are the patient's stated therapist preferences.
type Preferences struct {
	Language        string   `json:"language,omitempty"`
	RequireLanguage bool     `json:"require_language,omitempty"`
	SessionFormat   string   `json:"session_format,omitempty"`
	TherapistGender string   `json:"therapist_gender,omitempty"`
	Specialties     []string `json:"specialties,omitempty"`
}

// IntakeResponse is a submitted intake. It is treated as immutable once
// submitted; subtotals are always derived from the answers.
type IntakeResponse struct {
	ID          string      `json:"id"`
	PatientID   string      `json:"patient_id"`
	Depression  []int       `json:"depression"`
	Anxiety     []int       `json:"anxiety"`
	Text        FreeText    `json:"text"`
	Preferences Preferences `json:"preferences"`

	// Sentiment is supplied by an external analyzer, in [-1, 1]. Nil when
	// no analysis was available.
	Sentiment   *float64  `json:"sentiment,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Scores is the output of the score calculator.
type Scores struct {
	Depression     int  `json:"depression"`
	Anxiety        int  `json:"anxiety"`
	SelfHarm       bool `json:"self_harm"`
	SelfHarmAnswer int  `json:"self_harm_answer"`
	DepressionBand Band `json:"depression_band"`
	AnxietyBand    Band `json:"anxiety_band"`
}
