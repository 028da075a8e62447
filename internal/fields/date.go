package fields

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	reDateLabel = regexp.MustCompile(`(?i)\b(?:order(?:ed)?\s*(?:on|date|placed(?:\s*on)?)|placed\s*on|date\s*of\s*order|purchase\s*date|order\s*placed)\b`)
	reDateDMY   = regexp.MustCompile(`\b(\d{1,2})[/\-.](\d{1,2})[/\-.](\d{2}|\d{4})\b`)
	reDateISO   = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	reDateDMonY = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+(jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*\.?,?\s+(\d{4})\b`)
	reDateMonDY = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})\b`)
	reISODate   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

var monthIndex = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "sept": time.September, "oct": time.October,
	"nov": time.November, "dec": time.December,
}

const (
	dateScoreLabelled = 2
	dateScoreAny      = 1
)

// scanDate prefers a date on (or right after) an order-date label, then the
// first date anywhere. Output is YYYY-MM-DD.
func scanDate(text string) (string, int) {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		loc := reDateLabel.FindStringIndex(line)
		if loc == nil {
			continue
		}
		if d, ok := firstDate(line[loc[1]:]); ok {
			return d, dateScoreLabelled
		}
		if i+1 < len(lines) {
			if d, ok := firstDate(lines[i+1]); ok {
				return d, dateScoreLabelled
			}
		}
	}
	for _, line := range lines {
		if d, ok := firstDate(line); ok {
			return d, dateScoreAny
		}
	}
	return "", 0
}

// firstDate returns the leftmost valid date in s.
func firstDate(s string) (string, bool) {
	best, bestPos := "", -1
	try := func(pos int, d string, ok bool) {
		if ok && (bestPos < 0 || pos < bestPos) {
			best, bestPos = d, pos
		}
	}
	if m := reDateISO.FindStringSubmatchIndex(s); m != nil {
		d, ok := buildDate(s[m[2]:m[3]], s[m[4]:m[5]], s[m[6]:m[7]])
		try(m[0], d, ok)
	}
	if m := reDateDMY.FindStringSubmatchIndex(s); m != nil {
		d, ok := buildDate(s[m[6]:m[7]], s[m[4]:m[5]], s[m[2]:m[3]])
		try(m[0], d, ok)
	}
	if m := reDateDMonY.FindStringSubmatchIndex(s); m != nil {
		d, ok := buildDateMonth(s[m[6]:m[7]], s[m[4]:m[5]], s[m[2]:m[3]])
		try(m[0], d, ok)
	}
	if m := reDateMonDY.FindStringSubmatchIndex(s); m != nil {
		d, ok := buildDateMonth(s[m[6]:m[7]], s[m[2]:m[3]], s[m[4]:m[5]])
		try(m[0], d, ok)
	}
	return best, bestPos >= 0
}

func buildDate(y, m, d string) (string, bool) {
	mi, err := strconv.Atoi(m)
	if err != nil || mi < 1 || mi > 12 {
		return "", false
	}
	return buildDateMonthIndex(y, time.Month(mi), d)
}

func buildDateMonth(y, mon, d string) (string, bool) {
	mi, ok := monthIndex[strings.ToLower(mon)]
	if !ok {
		mi, ok = monthIndex[strings.ToLower(mon[:3])]
	}
	if !ok {
		return "", false
	}
	return buildDateMonthIndex(y, mi, d)
}

func buildDateMonthIndex(y string, m time.Month, d string) (string, bool) {
	yi, err := strconv.Atoi(y)
	if err != nil {
		return "", false
	}
	if yi < 100 {
		yi += 2000
	}
	di, err := strconv.Atoi(d)
	if err != nil || di < 1 || di > 31 {
		return "", false
	}
	t := time.Date(yi, m, di, 0, 0, 0, 0, time.UTC)
	if t.Day() != di || !plausibleYear(yi) {
		return "", false
	}
	return t.Format("2006-01-02"), true
}

func plausibleYear(y int) bool { return y >= 2000 && y <= 2100 }

// validDate is the sanity check applied to dates from any source.
func validDate(s string) bool {
	if !reISODate.MatchString(s) {
		return false
	}
	t, err := time.Parse("2006-01-02", s)
	return err == nil && plausibleYear(t.Year())
}
