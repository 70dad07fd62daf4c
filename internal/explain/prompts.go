package explain

import (
	"bytes"
	"text/template"

	"github.com/dineshreddykolli/mindcare-ai/internal/llm"
)

// explanationSchema is the structured output every prompt asks for.
var explanationSchema = &llm.Schema{
	Name:        "clinical-explanation",
	Description: "A brief explanation of a triage decision for clinic staff",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"summary": map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": "Two to three sentences for clinic staff",
			},
		},
		"required":             []any{"summary"},
		"additionalProperties": false,
	},
}

type explanationOutput struct {
	Summary string `json:"summary"`
}

const riskSystemPrompt = `You assist clinic staff at a mental health practice. You are given the structured result of an intake risk assessment. Explain in two to three plain sentences why the patient received this risk level.

Rules:
- Use only the figures provided. Do not speculate about diagnoses.
- Mention crisis language or the self-harm item when present.
- Do not recommend treatment; the recommended follow-up is already decided.`

var riskUserTemplate = template.Must(template.New("risk").Parse(`Risk level: {{.Level}}
Overall score: {{printf "%.1f" .Score}} / 100
Recommended follow-up: {{.Urgency}}
PHQ-9: {{.Depression}} ({{.DepBand}})
GAD-7: {{.Anxiety}} ({{.AnxBand}})
Self-harm item endorsed: {{.SelfHarm}}
Crisis keywords: {{if .Keywords}}{{range $i, $k := .Keywords}}{{if $i}}, {{end}}{{$k}}{{end}}{{else}}none{{end}}

Component scores (0-100):
- depression: {{printf "%.1f" .Components.Depression}}
- anxiety: {{printf "%.1f" .Components.Anxiety}}
- sentiment: {{printf "%.1f" .Components.Sentiment}}
- crisis: {{printf "%.1f" .Components.Crisis}}`))

const matchSystemPrompt = `You assist clinic staff at a mental health practice. Explain why this therapist is a good match for this patient in two to three plain sentences that would be helpful for clinic staff. Use only the facts provided.`

var matchUserTemplate = template.Must(template.New("match").Parse(`Patient:
- Risk level: {{.Patient.Level}}
- Needs: {{if .Patient.Needs}}{{range $i, $n := .Patient.Needs}}{{if $i}}, {{end}}{{$n}}{{end}}{{else}}not specified{{end}}
- Preferred language: {{if .Patient.Language}}{{.Patient.Language}}{{else}}not specified{{end}}

Therapist:
- ID: {{.Candidate.TherapistID}}{{if .Therapist.Name}} ({{.Therapist.Name}}){{end}}
{{- if .Therapist.Specialties}}
- Specialties: {{range $i, $s := .Therapist.Specialties}}{{if $i}}, {{end}}{{$s}}{{end}}{{end}}
{{- if .Therapist.Languages}}
- Languages: {{range $i, $l := .Therapist.Languages}}{{if $i}}, {{end}}{{$l}}{{end}}{{end}}
- Accepts high-risk: {{.Therapist.AcceptsHighRisk}}
- Open slots: {{.Candidate.CapacityRemaining}}

Match score: {{printf "%.0f" .Candidate.Score}}/100
Rules:
{{range .Candidate.Reasoning}}- {{.Rule}}: {{if .Fired}}+{{printf "%.0f" .Points}}{{else}}not applied{{end}}{{if .Detail}} ({{.Detail}}){{end}}
{{end}}`))

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
