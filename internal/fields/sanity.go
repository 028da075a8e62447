package fields

import (
	"fmt"
	"strings"
)

// Sanitizer applies the post-extraction filters to values from any source,
// deterministic or model-suggested.
type Sanitizer struct {
	ceiling  float64
	products productScanner
}

// AmountIsIDFragment reports whether amount's digits are a piece of orderID:
// either a whole digit group of it, or a 4+ digit run inside an id with 10+ digits.
func AmountIsIDFragment(amount float64, orderID string) bool {
	if amount <= 0 || orderID == "" {
		return false
	}
	ad := integerDigits(amount)
	if _, ok := idSegments(orderID)[ad]; ok {
		return true
	}
	od := onlyDigits(orderID)
	return len(ad) >= 4 && len(od) >= 10 && strings.Contains(od, ad)
}

// Apply clears implausible values and returns a note per dropped field.
func (s Sanitizer) Apply(p Partial) (Partial, []string) {
	var notes []string
	if p.HasAmount() && AmountIsIDFragment(p.Amount, p.OrderID) {
		notes = append(notes, fmt.Sprintf("amount %.2f dropped: matches digits of order id", p.Amount))
		p.Amount, p.AmountScore = 0, 0
	}
	if p.HasAmount() && s.ceiling > 0 && p.Amount > s.ceiling {
		notes = append(notes, fmt.Sprintf("amount %.2f dropped: above plausibility ceiling", p.Amount))
		p.Amount, p.AmountScore = 0, 0
	}
	if p.Amount < 0 {
		p.Amount, p.AmountScore = 0, 0
	}
	if p.ProductName != "" && s.products.Rejected(p.ProductName) {
		notes = append(notes, "product name dropped: looks like a link, status, address or page chrome")
		p.ProductName, p.ProductScore = "", 0
	}
	if p.OrderDate != "" && !validDate(p.OrderDate) {
		notes = append(notes, "order date dropped: not a valid date")
		p.OrderDate, p.OrderDateScore = "", 0
	}
	if p.SoldBy != "" && !validSeller(p.SoldBy) {
		notes = append(notes, "seller dropped: not a plausible name")
		p.SoldBy, p.SoldByScore = "", 0
	}
	return p, notes
}
