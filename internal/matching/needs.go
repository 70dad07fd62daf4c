package matching

import (
	"sort"
	"strings"
)

// NeedKeywords maps a specialty to the free-text terms that suggest it.
var NeedKeywords = map[string][]string{
	"anxiety":          {"anxiety", "anxious", "panic", "worry", "nervous", "fear"},
	"depression":       {"depression", "depressed", "sad", "hopeless", "empty", "numb"},
	"trauma":           {"trauma", "ptsd", "abuse", "assault", "flashback", "nightmare"},
	"addiction":        {"addiction", "alcohol", "drug", "substance", "drinking", "gambling"},
	"family":           {"family", "parent", "sibling", "divorce"},
	"couples":          {"relationship", "partner", "marriage", "spouse", "couples"},
	"eating_disorders": {"eating", "anorexia", "bulimia", "binge", "weight", "food"},
	"child":            {"child", "kid", "adolescent", "teen", "school"},
}

// InferNeeds scans text for specialty keywords and merges the patient's
// explicitly requested specialties. The result is sorted and deduplicated.
func InferNeeds(text string, requested []string) []string {
	found := normalize(requested)
	lower := strings.ToLower(text)
	for need, words := range NeedKeywords {
		for _, w := range words {
			if strings.Contains(lower, w) {
				found[need] = true
				break
			}
		}
	}
	out := make([]string, 0, len(found))
	for n := range found {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
