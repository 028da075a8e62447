package fields

import (
	"regexp"
	"strings"
)

var sellerLabels = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bsold\s*by\s*[:\-]?\s*`),
	regexp.MustCompile(`(?i)\bseller(?:\s*name)?\s*[:\-]?\s*`),
	regexp.MustCompile(`(?i)\bfulfil?led\s*by\s*[:\-]?\s*`),
}

var (
	reSellerTail = regexp.MustCompile(`(?i)(?:,?\s+and\s+fulfil?led\s+by.*|,\s*fulfil?led\s+by.*|\s+\|.*|\s+(?:rating|ratings|positive)\b.*|\s+\d(?:\.\d)?\s*★.*)$`)
	reURL        = regexp.MustCompile(`(?i)https?://|www\.|\b[a-z0-9-]+\.(?:com|in|net|org|co)(?:/|\b)`)
)

const (
	sellerScoreSoldBy = 3
	maxSellerLen      = 80
)

// scanSeller reads the value after a seller label on the same line, or the
// next line when the label stands alone. "sold by" outranks "seller", which
// outranks "fulfilled by".
func scanSeller(text string) (string, int) {
	lines := strings.Split(text, "\n")
	for rank, re := range sellerLabels {
		for i, line := range lines {
			loc := re.FindStringIndex(line)
			if loc == nil {
				continue
			}
			v := cleanSeller(line[loc[1]:])
			if v == "" && i+1 < len(lines) {
				v = cleanSeller(lines[i+1])
			}
			if validSeller(v) {
				return v, sellerScoreSoldBy - rank
			}
		}
	}
	return "", 0
}

func cleanSeller(v string) string {
	v = reSellerTail.ReplaceAllString(strings.TrimSpace(v), "")
	return strings.Trim(v, " :-.,;|")
}

func validSeller(v string) bool {
	if len(v) < 2 || len(v) > maxSellerLen {
		return false
	}
	if !hasLetter(v) || reURL.MatchString(v) {
		return false
	}
	switch strings.ToLower(v) {
	case "details", "information", "info", "seller", "name":
		return false
	}
	return true
}
