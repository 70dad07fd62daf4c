package intake

import (
	"encoding/json"
	"strings"

	"github.com/dineshreddykolli/mindcare-ai/internal/fault"
)

// LooseList accepts either a JSON array of strings or a single delimited
// string such as "anxiety, trauma" or the array literal "{anxiety,trauma}".
// Values are lowercased, trimmed and deduplicated in first-seen order.
type LooseList []string

func (l *LooseList) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*l = Normalize(splitDelimited(s))
		return nil
	}
	var arr []string
	if err := json.Unmarshal(b, &arr); err != nil {
		return fault.Invalid("list", "expected a string or a list of strings")
	}
	var parts []string
	for _, v := range arr {
		parts = append(parts, splitDelimited(v)...)
	}
	*l = Normalize(parts)
	return nil
}

func splitDelimited(s string) []string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "{")
	s = strings.TrimSuffix(s, "}")
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == '|'
	})
}

// Normalize lowercases and trims values, dropping blanks and duplicates.
func Normalize(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.Trim(strings.TrimSpace(v), `"'`))
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// token canonicalizes an enum-like value: "In Person" and "in-person" both
// become "in_person".
func token(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}
