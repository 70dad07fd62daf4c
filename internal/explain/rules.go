package explain

import (
	"fmt"
	"strings"

	"github.com/dineshreddykolli/mindcare-ai/internal/matching"
	"github.com/dineshreddykolli/mindcare-ai/internal/risk"
)

// RiskText is the deterministic explanation of an assessment.
func RiskText(a risk.Assessment) string {
	v := viewOf(a)
	var b strings.Builder
	fmt.Fprintf(&b, "Risk level %s (score %.1f). ", v.Level, v.Score)
	fmt.Fprintf(&b, "PHQ-9 %d (%s), GAD-7 %d (%s).", v.Depression, v.DepBand, v.Anxiety, v.AnxBand)
	if len(v.Keywords) > 0 {
		fmt.Fprintf(&b, " Crisis language detected: %s.", strings.Join(v.Keywords, ", "))
	}
	if v.SelfHarm {
		b.WriteString(" Self-harm item endorsed.")
	}
	if v.Urgency != "" {
		fmt.Fprintf(&b, " Recommended follow-up: %s.", v.Urgency)
	}
	return b.String()
}

// MatchText is the deterministic explanation of a ranked candidate. It
// lists each rule that contributed points.
func MatchText(m MatchSubject) string {
	c := m.Candidate
	var parts []string
	for _, r := range c.Reasoning {
		if !r.Fired || r.Points == 0 {
			continue
		}
		part := fmt.Sprintf("%s +%.0f", strings.ReplaceAll(r.Rule, "_", " "), r.Points)
		if r.Detail != "" {
			part += " (" + r.Detail + ")"
		}
		parts = append(parts, part)
	}

	name := c.TherapistID
	if m.Therapist.Name != "" {
		name = m.Therapist.Name
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s scored %.0f/100", name, c.Score)
	if len(parts) > 0 {
		fmt.Fprintf(&b, ": %s", strings.Join(parts, "; "))
	}
	b.WriteString(".")
	if exp := experienceDetail(c.Reasoning); exp != "" {
		fmt.Fprintf(&b, " %s.", upperFirst(exp))
	}
	fmt.Fprintf(&b, " %d open slot(s).", c.CapacityRemaining)
	return b.String()
}

func viewOf(a risk.Assessment) riskView {
	return riskView{
		Level:      a.Level,
		Score:      a.Score,
		Urgency:    a.Urgency,
		Depression: a.Scores.Depression,
		DepBand:    strings.ReplaceAll(string(a.Scores.DepressionBand), "_", " "),
		Anxiety:    a.Scores.Anxiety,
		AnxBand:    strings.ReplaceAll(string(a.Scores.AnxietyBand), "_", " "),
		SelfHarm:   a.Scores.SelfHarm,
		Keywords:   a.Keywords,
		Components: a.Components,
	}
}

func experienceDetail(rules []matching.RuleResult) string {
	for _, r := range rules {
		if r.Rule == matching.RuleExperience {
			return r.Detail
		}
	}
	return ""
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
