package sheets

import (
	"strconv"
	"strings"
)

// parseNumeric converts a report cell to a number. Thousands separators and a
// currency prefix are stripped; a trailing percent divides by 100.
func parseNumeric(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ',', '$', ' ':
			return -1
		default:
			return r
		}
	}, s)
	if strings.HasSuffix(clean, "%") {
		f, err := strconv.ParseFloat(strings.TrimSuffix(clean, "%"), 64)
		if err != nil {
			return 0, false
		}
		return f / 100.0, true
	}
	f, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
