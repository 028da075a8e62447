package verify

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	reRatingOutOf = regexp.MustCompile(`(?i)\b([1-5](?:\.[0-9])?)\s*(?:out\s*of|/)\s*5\b`)
	reRatedStars  = regexp.MustCompile(`(?i)\b(?:rated|rating[: ]*|gave)\s*([1-5])(?:\s*stars?)?\b|\b([1-5])\s*stars?\b`)

	reWindowClosed = regexp.MustCompile(`(?i)return\s*(?:window|period|policy)?\s*(?:is\s*|has\s*)?(?:closed|expired|ended|over)|(?:no\s*longer|not)\s*(?:eligible|available)\s*for\s*(?:return|replacement)|non[-\s]?returnable|return\s*(?:window\s*)?closed\s*on|exchange\s*/?\s*return\s*window\s*closed`)
	reWindowOpen   = regexp.MustCompile(`(?i)(?:return|replace)\s*(?:items?\s*)?(?:by|before|until|till)\b|eligible\s*for\s*return|return\s*window\s*(?:open|closes)|request\s*(?:a\s*)?return|return\s*(?:is\s*)?available\s*(?:till|until)`)
)

// DetectRating returns the star rating shown in texts, 0 when none is found.
// Filled star glyphs are counted when no numeric rating is printed.
func DetectRating(texts []string) int {
	for _, t := range texts {
		if m := reRatingOutOf.FindStringSubmatch(t); m != nil {
			if f, err := strconv.ParseFloat(m[1], 64); err == nil {
				return int(f + 0.5)
			}
		}
	}
	for _, t := range texts {
		if m := reRatedStars.FindStringSubmatch(t); m != nil {
			v := m[1]
			if v == "" {
				v = m[2]
			}
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
	}
	best := 0
	for _, t := range texts {
		if n := strings.Count(t, "★"); n > best && n <= 5 {
			best = n
		}
	}
	return best
}

// ReturnWindowClosed reports whether texts state the return window has
// closed. An explicit closed statement wins over open-window wording.
func ReturnWindowClosed(texts []string) (closed, seen bool) {
	for _, t := range texts {
		if reWindowClosed.MatchString(t) {
			return true, true
		}
	}
	for _, t := range texts {
		if reWindowOpen.MatchString(t) {
			return false, true
		}
	}
	return false, false
}
