// Package matching ranks therapists for a patient and turns a ranked
// candidate into an assignment against the capacity ledger.
package matching

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/dineshreddykolli/mindcare-ai/internal/capacity"
	"github.com/dineshreddykolli/mindcare-ai/internal/fault"
	"github.com/dineshreddykolli/mindcare-ai/internal/risk"
)

// CapacityView is the read side of the capacity ledger.
type CapacityView interface {
	Usage(therapistID string) (capacity.Usage, error)
}

// Ranker scores roster entries. Rank has no side effects, so it may be
// called repeatedly and concurrently.
type Ranker struct {
	cfg      Config
	capacity CapacityView
}

// NewRanker validates cfg and builds a ranker reading remaining capacity
// from view.
func NewRanker(cfg Config, view CapacityView) (*Ranker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if view == nil {
		return nil, fault.Invalid("capacity", "a capacity view is required")
	}
	return &Ranker{cfg: cfg, capacity: view}, nil
}

// Rank returns the top candidates for p. An empty candidate list is a
// valid outcome meaning nobody can take the patient right now.
func (r *Ranker) Rank(p Patient, roster []Therapist) (Ranking, error) {
	if _, ok := risk.ParseLevel(string(p.Level)); !ok {
		return Ranking{}, fault.Invalid("risk_level", "unknown level %q", p.Level)
	}

	out := Ranking{PatientID: p.ID, Candidates: []Candidate{}}
	needs := normalize(p.Needs)
	seen := make(map[string]bool, len(roster))

	for _, t := range roster {
		if seen[t.ID] {
			out.Excluded = append(out.Excluded, Exclusion{TherapistID: t.ID, Reason: "duplicate roster entry"})
			continue
		}
		seen[t.ID] = true

		c, reason := r.score(p, needs, t)
		if reason != "" {
			out.Excluded = append(out.Excluded, Exclusion{TherapistID: t.ID, Reason: reason})
			continue
		}
		out.Candidates = append(out.Candidates, c)
	}

	slices.SortFunc(out.Candidates, compareCandidates)
	if len(out.Candidates) > r.cfg.TopN {
		out.Candidates = out.Candidates[:r.cfg.TopN]
	}
	return out, nil
}

func compareCandidates(a, b Candidate) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	if c := cmp.Compare(b.CapacityRemaining, a.CapacityRemaining); c != 0 {
		return c
	}
	if c := cmp.Compare(a.CurrentCaseload, b.CurrentCaseload); c != 0 {
		return c
	}
	return strings.Compare(a.TherapistID, b.TherapistID)
}

// score evaluates one therapist. A non-empty reason means the therapist
// is ineligible.
func (r *Ranker) score(p Patient, needs map[string]bool, t Therapist) (Candidate, string) {
	if !t.Active {
		return Candidate{}, "inactive"
	}
	if err := t.Validate(); err != nil {
		return Candidate{}, err.Error()
	}
	usage, err := r.capacity.Usage(t.ID)
	if err != nil {
		return Candidate{}, err.Error()
	}
	if usage.Remaining() <= 0 {
		return Candidate{}, "no remaining capacity"
	}

	highRisk := p.Level.AtLeast(risk.LevelHigh)
	if p.Level == risk.LevelCritical && !t.AcceptsHighRisk {
		return Candidate{}, "does not accept high-risk patients"
	}

	langs := normalize(t.Languages)
	wantLang := strings.ToLower(strings.TrimSpace(p.Language))
	langMatch := wantLang != "" && langs[wantLang]
	if p.RequireLanguage && wantLang != "" && !langMatch {
		return Candidate{}, fmt.Sprintf("does not speak required language %q", p.Language)
	}

	var rules []RuleResult

	var overlap []string
	for s := range normalize(t.Specialties) {
		if needs[s] {
			overlap = append(overlap, s)
		}
	}
	slices.Sort(overlap)
	spec := RuleResult{Rule: RuleSpecialty}
	if len(overlap) > 0 {
		spec.Fired = true
		spec.Points = math.Min(r.cfg.SpecialtyCap, r.cfg.SpecialtyBase+r.cfg.SpecialtyExtra*float64(len(overlap)-1))
		spec.Detail = "matches " + strings.Join(overlap, ", ")
	} else {
		spec.Detail = "no overlapping specialty"
	}
	rules = append(rules, spec)

	lang := RuleResult{Rule: RuleLanguage}
	switch {
	case wantLang == "":
		lang.Detail = "no language preference"
	case langMatch:
		lang.Fired = true
		lang.Points = r.cfg.Language
		lang.Detail = "speaks " + wantLang
	default:
		lang.Detail = "does not speak " + wantLang
	}
	rules = append(rules, lang)

	hr := RuleResult{Rule: RuleHighRisk}
	switch {
	case !highRisk:
		hr.Detail = "patient is not high risk"
	case t.AcceptsHighRisk:
		hr.Fired = true
		hr.Points = r.cfg.HighRisk
		hr.Detail = "accepts high-risk patients"
	default:
		hr.Detail = "does not accept high-risk patients"
	}
	rules = append(rules, hr)

	succ := RuleResult{
		Rule:   RuleSuccess,
		Fired:  t.SuccessRate > 0,
		Points: t.SuccessRate / 100 * r.cfg.SuccessMax,
		Detail: fmt.Sprintf("%.0f%% success rate", t.SuccessRate),
	}
	rules = append(rules, succ)

	format := RuleResult{Rule: RuleFormat}
	switch {
	case p.Format == "":
		format.Detail = "no session format preference"
	case t.offers(p.Format):
		format.Fired = true
		format.Points = r.cfg.Format
		format.Detail = "offers " + string(p.Format)
	default:
		format.Detail = "does not offer " + string(p.Format)
	}
	rules = append(rules, format)

	rules = append(rules, RuleResult{
		Rule:   RuleExperience,
		Detail: fmt.Sprintf("%d years experience", t.YearsExperience),
	})

	total := 0.0
	for _, rr := range rules {
		total += rr.Points
	}

	return Candidate{
		TherapistID:       t.ID,
		Score:             math.Max(0, math.Min(100, total)),
		CapacityRemaining: usage.Remaining(),
		CurrentCaseload:   usage.Current,
		Reasoning:         rules,
	}, ""
}
