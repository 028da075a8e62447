package extract

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/orderproof/internal/fields"
)

// IDInTexts reports whether id appears in any text once punctuation and
// spacing are ignored.
func IDInTexts(id string, texts []string) bool {
	key := fields.OrderIDKey(id)
	if len(key) < 6 {
		return false
	}
	for _, t := range texts {
		if strings.Contains(fields.OrderIDKey(t), key) {
			return true
		}
	}
	return false
}

// AmountInTexts reports whether v is printed in any text, with or without
// thousands separators.
func AmountInTexts(v float64, texts []string) bool {
	if v <= 0 {
		return false
	}
	whole := strconv.FormatInt(int64(math.Floor(v)), 10)
	cents := int(math.Round((v - math.Floor(v)) * 100))
	re := regexp.MustCompile(`(?:^|[^\d.])` + whole + `(?:\.(\d{1,2}))?(?:[^\d]|$)`)
	for _, t := range texts {
		t = strings.ReplaceAll(t, ",", "")
		for _, m := range re.FindAllStringSubmatch(t, -1) {
			got := 0
			if m[1] != "" {
				got, _ = strconv.Atoi(m[1])
				if len(m[1]) == 1 {
					got *= 10
				}
			}
			if got == cents {
				return true
			}
		}
	}
	return false
}

// AmountWithin reports whether a and b differ by at most tol.
func AmountWithin(a, b, tol float64) bool { return math.Abs(a-b) <= tol+1e-9 }

// TextInTexts reports whether s appears in any text, ignoring case.
func TextInTexts(s string, texts []string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return false
	}
	for _, t := range texts {
		if strings.Contains(strings.ToLower(t), s) {
			return true
		}
	}
	return false
}
