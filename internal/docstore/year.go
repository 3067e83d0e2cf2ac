package docstore

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	fourDigitYear = regexp.MustCompile(`20\d{2}`)
	twoDigitYear  = regexp.MustCompile(`(\d{2})년`)
)

// ExtractYear pulls a document year out of free text. Explicit years win:
// a 4-digit year first, then the Korean two-digit form ("24년"). The
// relative forms anchor on the library rather than the wall clock, so
// "최근" always lands on a year that actually has documents.
func (s *Store) ExtractYear(text string) int {
	if m := fourDigitYear.FindString(text); m != "" {
		y, _ := strconv.Atoi(m)
		return y
	}

	if m := twoDigitYear.FindStringSubmatch(text); m != nil {
		y, _ := strconv.Atoi(m[1])
		if y < 50 {
			return 2000 + y
		}
		return 1900 + y
	}

	if strings.Contains(text, "최근") || strings.Contains(text, "최신") {
		return s.latestYear()
	}
	if strings.Contains(text, "작년") || strings.Contains(text, "지난해") {
		if latest := s.latestYear(); latest > 0 {
			return latest - 1
		}
	}

	return 0
}
