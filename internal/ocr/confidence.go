package ocr

import (
	"regexp"
	"strings"
)

var (
	reDate     = regexp.MustCompile(`\b\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4}\b|\b\d{1,2}\s+(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\b`)
	reCurr     = regexp.MustCompile(`₹|\brs\.?|\binr\b|[$£€]`)
	reAmount   = regexp.MustCompile(`\b\d{1,3}(,\d{2,3})*(\.\d{2})\b|\b\d+\.\d{2}\b`)
	reOrderish = regexp.MustCompile(`\border\b|\bod\d{6,}|\b\d{3}-\d{7}-\d{7}\b`)
)

func hasDatePattern(s string) bool     { return reDate.MatchString(s) }
func hasCurrencyPattern(s string) bool { return reCurr.MatchString(s) }
func hasAmountPattern(s string) bool   { return reAmount.MatchString(s) }
func hasOrderPattern(s string) bool    { return reOrderish.MatchString(s) }

// HeuristicConfidence scores recognized text in 0..1 by how much it looks like
// an order page. It is reported per recognition pass and never used to accept
// a field.
func HeuristicConfidence(txt string) float32 {
	txtL := strings.ToLower(txt)
	score := float32(0.1)
	if hasOrderPattern(txtL) {
		score += 0.25
	}
	if hasDatePattern(txtL) {
		score += 0.15
	}
	if hasCurrencyPattern(txtL) {
		score += 0.15
	}
	if hasAmountPattern(txtL) {
		score += 0.15
	}
	if len(txt) > 120 {
		score += 0.1
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}
