package fields

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

const (
	scoreNearKeyword = 4
	scoreSeparator   = 2
	scoreAlnumMix    = 2
	scoreRepeated    = 1

	minOrderIDScore = 4
	minOrderIDLen   = 6
	maxOrderIDLen   = 40
	minOrderDigits  = 4
)

var (
	reOrderKeyword = regexp.MustCompile(`(?i)\b(?:sub[- ]?)?order\b|\bord\s*(?:id|no)\b`)
	reLabeledID    = regexp.MustCompile(`(?i)\b(?:sub[- ]?)?order\s*(?:id|no\.?|number|num|#)?\s*(?:is\s+)?[:#.\-]?\s*#?\s*([A-Z0-9][A-Z0-9\-_/]{4,40})`)
	reBareLabel    = regexp.MustCompile(`(?i)^\s*(?:sub[- ]?)?order\s*(?:id|no\.?|number|num|#)\s*[:#.\-]?\s*$`)
	reLeadingToken = regexp.MustCompile(`(?i)^\s*[#:]?\s*([A-Z0-9][A-Z0-9\-_/]{4,40})`)
	reExcludedLine = regexp.MustCompile(`(?i)\b(?:tracking|track(?:ing)?\s*(?:id|no|number)|shipment|awb|invoice|utr|upi|transaction|txn|ref(?:erence)?\s*(?:id|no|number)|payment\s*id|gstin|pan\s*no|phone|mobile)\b`)
	reUUID         = regexp.MustCompile(`(?i)^[0-9a-f]{8}-?[0-9a-f]{4}-?[0-9a-f]{4}-?[0-9a-f]{4}-?[0-9a-f]{12}$`)
	reHex24        = regexp.MustCompile(`(?i)^[0-9a-f]{24}$`)
	reNoisyRun     = regexp.MustCompile(`\d[\d \-]{8,34}\d`)
)

// defaultInternalMarkers flag identifiers minted by our own system, which show
// up on screenshots of the deal page rather than the marketplace.
var defaultInternalMarkers = []string{"MOBO", "BUZZMA", "CAMPAIGN", "DEAL-", "MEDIATOR", "TEST"}

type orderIDScanner struct {
	platforms []PlatformPattern
	markers   []string
}

type occurrence struct {
	value       string
	nearKeyword bool
	pos         int
}

// scan returns the deduplicated, scored candidates, best first.
func (s orderIDScanner) scan(text string) []Candidate {
	lines := strings.Split(text, "\n")
	lower := strings.ToLower(text)
	upper := strings.ToUpper(text)

	mentions := make([]int, len(s.platforms))
	for i, p := range s.platforms {
		mentions[i] = p.mentionedIn(lower)
	}
	dominant := -1
	for i, p := range s.platforms {
		if len(p.Groups) > 0 && mentions[i] > 0 && (dominant < 0 || mentions[i] > mentions[dominant]) {
			dominant = i
		}
	}

	var occs []occurrence
	pos := 0
	for i, line := range lines {
		near := reOrderKeyword.MatchString(line) || (i > 0 && reOrderKeyword.MatchString(lines[i-1]) && !reExcludedLine.MatchString(lines[i-1]))
		add := func(v string, offset int) {
			if excludedAt(line, offset) {
				return
			}
			occs = append(occs, occurrence{value: cleanID(v), nearKeyword: near, pos: pos + offset})
		}

		for pi, p := range s.platforms {
			if p.RequireMention && mentions[pi] == 0 {
				continue
			}
			for _, loc := range p.re.FindAllStringIndex(line, -1) {
				add(line[loc[0]:loc[1]], loc[0])
			}
		}
		for _, m := range reLabeledID.FindAllStringSubmatchIndex(line, -1) {
			add(line[m[2]:m[3]], m[2])
		}
		if i > 0 && reBareLabel.MatchString(lines[i-1]) {
			if m := reLeadingToken.FindStringSubmatchIndex(line); m != nil && !excludedAt(line, m[2]) {
				occs = append(occs, occurrence{value: cleanID(line[m[2]:m[3]]), nearKeyword: true, pos: pos + m[2]})
			}
		}
		for _, loc := range reNoisyRun.FindAllStringIndex(line, -1) {
			if v, ok := s.coerce(line[loc[0]:loc[1]], dominant, mentions, near); ok {
				add(v, loc[0])
			}
		}
		pos += len(line) + 1
	}

	byKey := map[string]*Candidate{}
	for _, o := range occs {
		if s.rejected(o.value) {
			continue
		}
		score, platform := s.score(o, upper, mentions)
		key := normalizeKey(o.value)
		c, ok := byKey[key]
		if !ok {
			byKey[key] = &Candidate{Value: o.value, Score: score, Platform: platform, key: key, length: len(o.value), firstPos: o.pos}
			continue
		}
		if score > c.Score || (score == c.Score && len(o.value) > c.length) {
			c.Value, c.Score, c.Platform, c.length = o.value, score, platform, len(o.value)
		}
		if o.pos < c.firstPos {
			c.firstPos = o.pos
		}
	}

	out := make([]Candidate, 0, len(byKey))
	for _, c := range byKey {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].length != out[j].length {
			return out[i].length > out[j].length
		}
		if out[i].firstPos != out[j].firstPos {
			return out[i].firstPos < out[j].firstPos
		}
		return out[i].Value < out[j].Value
	})
	return out
}

// score is the single scoring function every candidate goes through.
func (s orderIDScanner) score(o occurrence, upperText string, mentions []int) (int, string) {
	score := 0
	if o.nearKeyword {
		score += scoreNearKeyword
	}
	if strings.ContainsAny(o.value, "-_/") {
		score += scoreSeparator
	}
	if hasLetter(o.value) && hasDigit(o.value) {
		score += scoreAlnumMix
	}
	platform := ""
	bonus := 0
	for i, p := range s.platforms {
		if p.RequireMention && mentions[i] == 0 {
			continue
		}
		if p.re.FindString(o.value) == o.value && p.Bonus > bonus {
			bonus, platform = p.Bonus, p.Name
		}
	}
	score += bonus
	if strings.Count(upperText, o.value) >= 2 {
		score += scoreRepeated
	}
	return score, platform
}

// coerce repairs a digit run that OCR split with spaces into the canonical
// dashed layout of the dominant platform, or of any platform whose layout has
// exactly that many digits when the run sits next to an order keyword.
func (s orderIDScanner) coerce(raw string, dominant int, mentions []int, near bool) (string, bool) {
	if !strings.Contains(raw, " ") {
		return "", false
	}
	for _, p := range s.platforms {
		if p.re.MatchString(raw) {
			return "", false
		}
	}
	digits := onlyDigits(raw)
	if dominant >= 0 {
		if v, ok := s.platforms[dominant].Format(digits); ok {
			return v, true
		}
	}
	if !near {
		return "", false
	}
	for i, p := range s.platforms {
		if p.RequireMention && mentions[i] == 0 {
			continue
		}
		if v, ok := p.Format(digits); ok {
			return v, true
		}
	}
	return "", false
}

// excludedAt reports whether the text at offset is governed by a tracking,
// invoice or payment-reference label rather than an order label. The closest
// label before offset wins; a line carrying only exclusion labels is excluded.
func excludedAt(line string, offset int) bool {
	ex := reExcludedLine.FindAllStringIndex(line, -1)
	if len(ex) == 0 {
		return false
	}
	ord := reOrderKeyword.FindAllStringIndex(line, -1)
	lastEx, lastOrd := -1, -1
	for _, m := range ex {
		if m[0] <= offset {
			lastEx = m[0]
		}
	}
	for _, m := range ord {
		if m[0] <= offset {
			lastOrd = m[0]
		}
	}
	if lastEx < 0 && lastOrd < 0 {
		return len(ord) == 0
	}
	return lastEx > lastOrd
}

func (s orderIDScanner) rejected(v string) bool {
	if len(v) < minOrderIDLen || len(v) > maxOrderIDLen {
		return true
	}
	if countDigits(v) < minOrderDigits {
		return true
	}
	if reUUID.MatchString(v) || reHex24.MatchString(v) {
		return true
	}
	for _, m := range s.markers {
		if strings.Contains(v, m) {
			return true
		}
	}
	return false
}

func cleanID(v string) string {
	v = strings.TrimRight(strings.TrimSpace(v), "-_/.,:;")
	return strings.ToUpper(v)
}

// normalizeKey keeps only letters and digits, upper-cased.
func normalizeKey(v string) string {
	var b strings.Builder
	for _, r := range v {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func countDigits(s string) int { return len(onlyDigits(s)) }

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

func hasDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
