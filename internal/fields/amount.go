package fields

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	reFinalLabel   = regexp.MustCompile(`(?i)\b(?:grand\s*total|order\s*total|amount\s*paid|total\s*paid|paid\s*amount|you\s*paid|you\s*pay|total\s*payable|amount\s*payable|net\s*payable|net\s*amount|final\s*amount|final\s*price|to\s*pay|total\s*amount|payable\s*amount|amount\s*to\s*be\s*paid)\b`)
	reGenericLabel = regexp.MustCompile(`(?i)\b(?:total|sub\s*-?\s*total|item\s*total|price|amount|selling\s*price|sale\s*price|deal\s*price|special\s*price|offer\s*price)\b`)
	reNegative     = regexp.MustCompile(`(?i)\b(?:mrp|m\.r\.p|list\s*price|you\s*save|savings|saved|discount|coupon|delivery\s*(?:fee|charges?)|shipping|convenience\s*fee|handling\s*fee|cashback|emi|per\s*month|/\s*month|was)\b|\d+\s*%\s*off`)
	reMoney        = regexp.MustCompile(`(?i)(₹|\brs\.?|\binr\b|\$|€|£)\s*([0-9][0-9,]*(?:\.[0-9]{1,2})?)`)
	reBareNumber   = regexp.MustCompile(`\b[0-9]{1,3}(?:,[0-9]{2,3})+(?:\.[0-9]{1,2})?\b|\b[0-9]+\.[0-9]{2}\b|\b[0-9]{2,6}\b`)
	reCardSuffix   = regexp.MustCompile(`(?i)(?:ending(?:\s*(?:in|with))?|last\s*(?:4|four)(?:\s*digits)?|[x*•]{2,})[\s:-]*$`)
	reDateLike     = regexp.MustCompile(`\b\d{1,4}[/\-.]\d{1,2}[/\-.]\d{1,4}\b`)
)

type amountToken struct {
	value    float64
	currency bool
}

type amountScanner struct {
	ceiling float64
}

// scan picks the paid amount. The last final-labelled amount wins, then the
// largest generic-labelled one, then the largest currency-prefixed value, then
// the largest plausible bare number. Digit groups of orderID are never amounts.
func (s amountScanner) scan(text, orderID string) (float64, int) {
	lines := strings.Split(text, "\n")
	segments := idSegments(orderID)

	var final []float64
	var generic, currency, bare []float64

	for i, line := range lines {
		if loc := reFinalLabel.FindStringIndex(line); loc != nil {
			toks := s.tokens(line[loc[1]:], segments, true)
			if len(toks) == 0 && i+1 < len(lines) && !reFinalLabel.MatchString(lines[i+1]) && !reNegative.MatchString(lines[i+1]) {
				toks = s.tokens(lines[i+1], segments, true)
			}
			if len(toks) > 0 {
				final = append(final, toks[0].value)
			}
			continue
		}
		negative := reNegative.MatchString(line)
		if loc := reGenericLabel.FindStringIndex(line); loc != nil && !negative {
			toks := s.tokens(line[loc[1]:], segments, true)
			if len(toks) == 0 && i+1 < len(lines) && !reNegative.MatchString(lines[i+1]) {
				toks = s.tokens(lines[i+1], segments, false)
				// only a currency-marked value on the next line counts for a generic label
				toks = currencyOnly(toks)
			}
			for _, t := range toks {
				generic = append(generic, t.value)
			}
			continue
		}
		if negative {
			continue
		}
		for _, t := range s.tokens(line, segments, false) {
			if t.currency {
				currency = append(currency, t.value)
			} else {
				bare = append(bare, t.value)
			}
		}
	}

	switch {
	case len(final) > 0:
		return final[len(final)-1], AmountScoreFinal
	case len(generic) > 0:
		return maxOf(generic), AmountScoreGeneric
	case len(currency) > 0:
		return maxOf(currency), AmountScoreCurrency
	case len(bare) > 0:
		return maxOf(bare), AmountScoreBare
	}
	return 0, 0
}

// tokens lists plausible amounts in seg. When labelled is false, bare numbers
// must look like money (decimals or digit grouping) to count.
func (s amountScanner) tokens(seg string, idSegs map[string]struct{}, labelled bool) []amountToken {
	var out []amountToken
	taken := make([][2]int, 0, 4)
	for _, m := range reMoney.FindAllStringSubmatchIndex(seg, -1) {
		if v, ok := s.parse(seg[m[4]:m[5]], idSegs); ok {
			out = append(out, amountToken{value: v, currency: true})
		}
		taken = append(taken, [2]int{m[0], m[1]})
	}
	dates := reDateLike.FindAllStringIndex(seg, -1)
	for _, m := range reBareNumber.FindAllStringIndex(seg, -1) {
		if overlaps(m, taken) || overlapsAny(m, dates) || joinedToID(seg, m) || reCardSuffix.MatchString(seg[:m[0]]) {
			continue
		}
		raw := seg[m[0]:m[1]]
		moneyLike := strings.ContainsAny(raw, ".,")
		if !labelled && !moneyLike {
			continue
		}
		if !moneyLike && isYear(raw) {
			continue
		}
		if v, ok := s.parse(raw, idSegs); ok {
			out = append(out, amountToken{value: v})
		}
	}
	return out
}

func (s amountScanner) parse(raw string, idSegs map[string]struct{}) (float64, bool) {
	d, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", ""))
	if err != nil || !d.IsPositive() {
		return 0, false
	}
	v := d.Round(2).InexactFloat64()
	if s.ceiling > 0 && v > s.ceiling {
		return 0, false
	}
	if _, hit := idSegs[integerDigits(v)]; hit {
		return 0, false
	}
	return v, true
}

// idSegments are the digit groups of an order id that are long enough to be
// mistaken for an amount.
func idSegments(orderID string) map[string]struct{} {
	out := map[string]struct{}{}
	var cur strings.Builder
	flush := func() {
		if cur.Len() >= 3 {
			out[strings.TrimLeft(cur.String(), "0")] = struct{}{}
		}
		cur.Reset()
	}
	for _, r := range orderID {
		if r >= '0' && r <= '9' {
			cur.WriteRune(r)
			continue
		}
		flush()
	}
	flush()
	return out
}

// integerDigits renders the whole part of v without grouping.
func integerDigits(v float64) string {
	return strconv.FormatFloat(math.Trunc(v), 'f', 0, 64)
}

// joinedToID reports whether the number at m is glued to other digits by a
// dash, underscore or slash, i.e. it is a piece of an identifier.
func joinedToID(seg string, m []int) bool {
	if m[0] >= 2 && strings.ContainsRune("-_/", rune(seg[m[0]-1])) && isASCIIDigit(seg[m[0]-2]) {
		return true
	}
	if m[1]+1 < len(seg) && strings.ContainsRune("-_/", rune(seg[m[1]])) && isASCIIDigit(seg[m[1]+1]) {
		return true
	}
	return false
}

func isASCIIDigit(b byte) bool { return b >= '0' && b <= '9' }

func isYear(raw string) bool {
	if len(raw) != 4 {
		return false
	}
	n, err := strconv.Atoi(raw)
	return err == nil && n >= 1990 && n <= 2100
}

func overlaps(m []int, spans [][2]int) bool {
	for _, sp := range spans {
		if m[0] < sp[1] && sp[0] < m[1] {
			return true
		}
	}
	return false
}

func overlapsAny(m []int, spans [][]int) bool {
	for _, sp := range spans {
		if m[0] < sp[1] && sp[0] < m[1] {
			return true
		}
	}
	return false
}

func currencyOnly(toks []amountToken) []amountToken {
	out := toks[:0]
	for _, t := range toks {
		if t.currency {
			out = append(out, t)
		}
	}
	return out
}

func maxOf(vs []float64) float64 {
	m := vs[0]
	for _, v := range vs[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
