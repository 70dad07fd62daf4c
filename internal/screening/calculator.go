package screening

import (
	"fmt"

	"github.com/dineshreddykolli/mindcare-ai/internal/fault"
)

// Score sums the depression and anxiety answers. Every answer must be
// present and within [0,3]; a missing answer changes the total, so short
// answer sets are rejected rather than zero-filled.
func Score(depression, anxiety []int) (Scores, error) {
	if err := checkAnswers("depression", depression, len(DepressionItems)); err != nil {
		return Scores{}, err
	}
	if err := checkAnswers("anxiety", anxiety, len(AnxietyItems)); err != nil {
		return Scores{}, err
	}

	s := Scores{
		Depression:     sum(depression),
		Anxiety:        sum(anxiety),
		SelfHarmAnswer: depression[SelfHarmItem],
	}
	s.SelfHarm = s.SelfHarmAnswer >= 1
	s.DepressionBand = DepressionBand(s.Depression)
	s.AnxietyBand = AnxietyBand(s.Anxiety)
	return s, nil
}

// ScoreIntake scores a submitted intake.
func ScoreIntake(in *IntakeResponse) (Scores, error) {
	if in == nil {
		return Scores{}, fault.Invalid("intake", "is required")
	}
	return Score(in.Depression, in.Anxiety)
}

// Ordered converts answers keyed by item name into instrument order.
// Unknown item names and missing items are both rejected.
func Ordered(inst Instrument, named map[string]int) ([]int, error) {
	var items []string
	switch inst {
	case PHQ9:
		items = DepressionItems
	case GAD7:
		items = AnxietyItems
	default:
		return nil, fault.Invalid("instrument", "unknown instrument %q", inst)
	}

	known := make(map[string]bool, len(items))
	out := make([]int, len(items))
	for i, name := range items {
		known[name] = true
		v, ok := named[name]
		if !ok {
			return nil, fault.Invalid(fmt.Sprintf("%s.%s", inst, name), "answer is missing")
		}
		out[i] = v
	}
	for name := range named {
		if !known[name] {
			return nil, fault.Invalid(fmt.Sprintf("%s.%s", inst, name), "unknown item")
		}
	}
	return out, nil
}

// DepressionBand maps a PHQ-9 subtotal to its severity band.
func DepressionBand(total int) Band {
	switch {
	case total >= 20:
		return BandSevere
	case total >= 15:
		return BandModeratelySevere
	case total >= 10:
		return BandModerate
	case total >= 5:
		return BandMild
	default:
		return BandMinimal
	}
}

// AnxietyBand maps a GAD-7 subtotal to its severity band.
func AnxietyBand(total int) Band {
	switch {
	case total >= 15:
		return BandSevere
	case total >= 10:
		return BandModerate
	case total >= 5:
		return BandMild
	default:
		return BandMinimal
	}
}

func checkAnswers(field string, answers []int, want int) error {
	if len(answers) != want {
		return fault.Invalid(field, "expected %d answers, got %d", want, len(answers))
	}
	for i, v := range answers {
		if v < MinAnswer || v > MaxAnswer {
			return fault.Invalid(fmt.Sprintf("%s[%d]", field, i), "answer %d outside [%d,%d]", v, MinAnswer, MaxAnswer)
		}
	}
	return nil
}

func sum(vs []int) int {
	total := 0
	for _, v := range vs {
		total += v
	}
	return total
}
