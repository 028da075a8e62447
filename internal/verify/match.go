package verify

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/agext/levenshtein"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
)

// confusions maps letters OCR commonly reads in place of digits.
var confusions = strings.NewReplacer(
	"O", "0",
	"I", "1", "L", "1", "|", "1",
	"S", "5", "B", "8", "Z", "2",
)

// FoldID is the comparison form of an identifier: upper-cased, OCR
// look-alikes mapped to digits, everything but letters and digits removed.
func FoldID(s string) string {
	s = confusions.Replace(strings.ToUpper(s))
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// fuzzyIDLen is the shortest folded id that tolerates one OCR edit.
const fuzzyIDLen = 10

// IDMatch compares two order ids after folding. Long ids may differ by one
// dropped or doubled character. A substituted character never matches, so a
// neighbouring order number is a different order.
func IDMatch(expected, got string) bool {
	e, g := FoldID(expected), FoldID(got)
	if e == "" || g == "" {
		return false
	}
	if e == g {
		return true
	}
	return len(e) >= fuzzyIDLen && oneIndel(e, g)
}

// oneIndel reports whether a and b differ by exactly one inserted or deleted
// character.
func oneIndel(a, b string) bool {
	return abs(len(a)-len(b)) == 1 && levenshtein.Distance(a, b, nil) == 1
}

var reIDRun = regexp.MustCompile(`[A-Za-z0-9](?:[A-Za-z0-9\-/ ]*[A-Za-z0-9])?`)

// IDInTexts reports whether expected appears in any text under the same
// folding and edit tolerance as IDMatch.
func IDInTexts(expected string, texts []string) bool {
	e := FoldID(expected)
	if len(e) < 6 {
		return false
	}
	for _, t := range texts {
		for _, run := range reIDRun.FindAllString(t, -1) {
			f := FoldID(run)
			if strings.Contains(f, e) {
				return true
			}
			if len(e) >= fuzzyIDLen && indelWindow(f, e) {
				return true
			}
		}
	}
	return false
}

// indelWindow reports whether some substring of s is one insertion or
// deletion away from e. A short window that only matches because it stops
// before a substituted character is a truncation and does not count.
func indelWindow(s, e string) bool {
	n := len(e)
	for i := 0; i+n+1 <= len(s); i++ {
		if oneIndel(s[i:i+n+1], e) {
			return true
		}
	}
	for i := 0; i+n-1 <= len(s); i++ {
		if !oneIndel(s[i:i+n-1], e) {
			continue
		}
		if i > 0 && levenshtein.Distance(s[i-1:i+n-1], e, nil) == 1 {
			continue
		}
		if i+n-1 < len(s) && levenshtein.Distance(s[i:i+n], e, nil) == 1 {
			continue
		}
		return true
	}
	return false
}

var (
	half     = decimal.NewFromFloat(0.005)
	smallTol = decimal.NewFromInt(2)
	smallMax = decimal.NewFromInt(1000)
)

// AmountTolerance is ±2 below 1000 and ±0.5% from 1000 up.
func AmountTolerance(expected float64) float64 {
	e := decimal.NewFromFloat(expected)
	if e.LessThan(smallMax) {
		return smallTol.InexactFloat64()
	}
	return e.Mul(half).InexactFloat64()
}

// AmountMatches reports whether got is within tolerance of expected.
func AmountMatches(expected, got float64) bool {
	if expected <= 0 || got <= 0 {
		return false
	}
	diff := decimal.NewFromFloat(expected).Sub(decimal.NewFromFloat(got)).Abs()
	return diff.LessThanOrEqual(decimal.NewFromFloat(AmountTolerance(expected)))
}

var reCurrencyAmount = regexp.MustCompile(`(?i)(?:₹|\brs\.?|\binr\b|\$)\s*([0-9][0-9,]*(?:\.[0-9]{1,2})?)`)

// CurrencyAmountInTexts returns the first currency-marked amount in texts that
// matches expected, if any.
func CurrencyAmountInTexts(expected float64, texts []string) (float64, bool) {
	for _, t := range texts {
		for _, m := range reCurrencyAmount.FindAllStringSubmatch(t, -1) {
			d, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
			if err != nil {
				continue
			}
			v := d.InexactFloat64()
			if AmountMatches(expected, v) {
				return v, true
			}
		}
	}
	return 0, false
}

// tokens splits s into case-folded words.
func tokens(s string) []string {
	return strings.FieldsFunc(cases.Fold().String(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "of": {}, "in": {}, "by": {}, "a": {}, "an": {},
	"pack": {}, "set": {}, "new": {}, "free": {},
}

// tokenPresent reports whether w occurs in vocab, allowing one edit for words
// of five letters or more.
func tokenPresent(w string, vocab map[string]struct{}) bool {
	if _, ok := vocab[w]; ok {
		return true
	}
	if len(w) < 5 {
		return false
	}
	for v := range vocab {
		if abs(len(v)-len(w)) <= 1 && levenshtein.Distance(v, w, nil) <= 1 {
			return true
		}
	}
	return false
}

func vocabulary(texts []string) map[string]struct{} {
	vocab := map[string]struct{}{}
	for _, t := range texts {
		for _, w := range tokens(t) {
			vocab[w] = struct{}{}
		}
	}
	return vocab
}

// NameInTexts reports whether every word of name appears in texts.
func NameInTexts(name string, texts []string) bool {
	words := tokens(name)
	if len(words) == 0 {
		return false
	}
	vocab := vocabulary(texts)
	for _, w := range words {
		if !tokenPresent(w, vocab) {
			return false
		}
	}
	return true
}

// productOverlap is the share of significant product words that must appear.
const productOverlap = 0.6

// ProductInTexts reports whether enough of the significant words of product
// appear in texts.
func ProductInTexts(product string, texts []string) bool {
	var words []string
	for _, w := range tokens(product) {
		if _, stop := stopwords[w]; stop || len([]rune(w)) < 2 {
			continue
		}
		words = append(words, w)
	}
	if len(words) == 0 {
		return false
	}
	vocab := vocabulary(texts)
	hits := 0
	for _, w := range words {
		if tokenPresent(w, vocab) {
			hits++
		}
	}
	return float64(hits)/float64(len(words)) >= productOverlap
}

// NamesMatch compares two short names word by word.
func NamesMatch(expected, got string) bool {
	return got != "" && NameInTexts(expected, []string{got})
}

// ProductsMatch compares two product titles by word overlap.
func ProductsMatch(expected, got string) bool {
	return got != "" && ProductInTexts(expected, []string{got})
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
