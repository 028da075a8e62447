package extract

import (
	"fmt"

	"github.com/joseph-ayodele/orderproof/constants"
	"github.com/joseph-ayodele/orderproof/internal/common"
	"github.com/joseph-ayodele/orderproof/internal/fields"
)

// add records a pass and folds its fields into the running partial.
func (r *Recognition) add(p PassResult) {
	r.Passes = append(r.Passes, p)
	if !p.OK {
		switch {
		case common.KindOf(p.err) == common.KindTimeout:
			r.Notes = append(r.Notes, fmt.Sprintf("pass %s: recognition timed out", p.Variant))
		default:
			r.Notes = append(r.Notes, fmt.Sprintf("pass %s: %s", p.Variant, p.Error))
		}
		return
	}
	accumulate(&r.Partial, p.partial)
	if r.best < 0 || yield(p.partial) > yield(r.Passes[r.best].partial) {
		r.best = len(r.Passes) - 1
	}
}

// accumulate fills unset fields from next and replaces set ones only on a
// strictly higher score. Equal-score amounts prefer the typical range.
func accumulate(acc *fields.Partial, next fields.Partial) {
	if next.HasOrderID() && (!acc.HasOrderID() || next.OrderIDScore > acc.OrderIDScore) {
		acc.OrderID, acc.OrderIDScore, acc.OrderPlatform = next.OrderID, next.OrderIDScore, next.OrderPlatform
		acc.Candidates = next.Candidates
	}
	if next.HasAmount() {
		switch {
		case !acc.HasAmount(), next.AmountScore > acc.AmountScore:
			acc.Amount, acc.AmountScore = next.Amount, next.AmountScore
		case next.AmountScore == acc.AmountScore && !typical(acc.Amount) && typical(next.Amount):
			acc.Amount = next.Amount
		}
	}
	if next.OrderDate != "" && (acc.OrderDate == "" || next.OrderDateScore > acc.OrderDateScore) {
		acc.OrderDate, acc.OrderDateScore = next.OrderDate, next.OrderDateScore
	}
	if next.SoldBy != "" && (acc.SoldBy == "" || next.SoldByScore > acc.SoldByScore) {
		acc.SoldBy, acc.SoldByScore = next.SoldBy, next.SoldByScore
	}
	if next.ProductName != "" && (acc.ProductName == "" || next.ProductScore > acc.ProductScore) {
		acc.ProductName, acc.ProductScore = next.ProductName, next.ProductScore
	}
}

func typical(v float64) bool {
	return v >= constants.TypicalAmountMin && v <= constants.TypicalAmountMax
}

func yield(p fields.Partial) int {
	return p.OrderIDScore + p.AmountScore + p.OrderDateScore + p.SoldByScore + p.ProductScore
}

// state is the working set of one Extract call after recognition.
type state struct {
	p       fields.Partial
	sources map[string]constants.Stage
	notes   []string
	texts   []string
	model   string
	anyText bool
}

func newState(rec Recognition) *state {
	st := &state{
		p:       rec.Partial,
		sources: map[string]constants.Stage{},
		notes:   append([]string(nil), rec.Notes...),
		texts:   rec.Texts(),
	}
	st.anyText = len(st.texts) > 0
	for field, set := range st.present() {
		if set {
			st.sources[field] = constants.StageDeterministic
		}
	}
	return st
}

func (st *state) present() map[string]bool {
	return map[string]bool{
		FieldOrderID:     st.p.HasOrderID(),
		FieldAmount:      st.p.HasAmount(),
		FieldOrderDate:   st.p.OrderDate != "",
		FieldSoldBy:      st.p.SoldBy != "",
		FieldProductName: st.p.ProductName != "",
	}
}

func (st *state) note(s string) { st.notes = append(st.notes, s) }

func (st *state) confirm(field string) {
	if st.sources[field] == constants.StageDeterministic {
		st.sources[field] = constants.StageModelConfirm
	}
}

// sanitize runs the final filters and forgets the source of any dropped field.
func (st *state) sanitize(s fields.Sanitizer) {
	p, notes := s.Apply(st.p)
	st.p = p
	st.notes = append(st.notes, notes...)
	for field, set := range st.present() {
		if !set {
			delete(st.sources, field)
		}
	}
}

func (st *state) result() Result {
	res := Result{
		OrderID:     st.p.OrderID,
		Platform:    st.p.OrderPlatform,
		Amount:      st.p.Amount,
		OrderDate:   st.p.OrderDate,
		SoldBy:      st.p.SoldBy,
		ProductName: st.p.ProductName,
		Sources:     st.sources,
		Notes:       st.notes,
		Model:       st.model,
	}
	res.Confidence = Confidence(st.p, st.sources, st.anyText)
	if res.Notes == nil {
		res.Notes = []string{}
	}
	if res.Confidence < 50 {
		res.Notes = append(res.Notes, constants.ManualVerificationNote)
	}
	return res
}

// Confidence scores a result by the stage that resolved each key field.
func Confidence(p fields.Partial, sources map[string]constants.Stage, anyText bool) int {
	recognized := func(s constants.Stage) bool {
		return s == constants.StageDeterministic || s == constants.StageModelConfirm
	}
	id, amt := sources[FieldOrderID], sources[FieldAmount]
	hasID, hasAmt := p.HasOrderID(), p.HasAmount()

	var score int
	switch {
	case hasID && hasAmt && recognized(id) && recognized(amt):
		score = 90
	case hasID && hasAmt && (recognized(id) || recognized(amt)):
		score = 80
	case hasID && hasAmt:
		score = 55
	case hasID && recognized(id) && p.OrderPlatform != "":
		score = 75
	case hasID && recognized(id):
		score = 65
	case hasAmt && recognized(amt):
		score = 45
	case hasID || hasAmt:
		score = 40
	case anyText:
		score = 10
	}
	if score > 0 {
		for _, set := range []bool{p.OrderDate != "", p.SoldBy != "", p.ProductName != ""} {
			if set {
				score += 2
			}
		}
	}
	return clamp(score, 0, 100)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
