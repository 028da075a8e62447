package verify

import (
	"context"
	"time"

	"github.com/joseph-ayodele/orderproof/constants"
	"github.com/joseph-ayodele/orderproof/internal/common"
	"github.com/joseph-ayodele/orderproof/internal/extract"
	"github.com/joseph-ayodele/orderproof/internal/llm"
	"github.com/joseph-ayodele/orderproof/internal/utils"
)

// ReturnWindowResult is the verdict on a return-window proof. SoldByMatch is
// nil when no seller was expected.
type ReturnWindowResult struct {
	OrderIDMatch       bool    `json:"order_id_match"`
	ProductNameMatch   bool    `json:"product_name_match"`
	AmountMatch        bool    `json:"amount_match"`
	SoldByMatch        *bool   `json:"sold_by_match,omitempty"`
	ReturnWindowClosed bool    `json:"return_window_closed"`
	DetectedOrderID    string  `json:"detected_order_id,omitempty"`
	DetectedAmount     float64 `json:"detected_amount,omitempty"`
	Verdict
}

func (r ReturnWindowResult) matched() bool {
	return r.OrderIDMatch && r.ProductNameMatch && r.AmountMatch && r.ReturnWindowClosed &&
		(r.SoldByMatch == nil || *r.SoldByMatch)
}

// ReturnWindow checks that raw shows the expected order and states that its
// return window has closed.
func (e *Engine) ReturnWindow(ctx context.Context, raw []byte, orderID, product string, amount float64, soldBy string) (res ReturnWindowResult) {
	ctx, _ = common.EnsureRequestID(ctx)
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("verify.return_window.panic", "req_id", common.RequestIDFromContext(ctx), "panic", r)
			res = ReturnWindowResult{Verdict: crashed(r)}
		}
	}()

	img, err := e.orch.Admit(raw)
	if err != nil {
		return ReturnWindowResult{Verdict: rejected(err)}
	}

	prompt := llm.ReturnWindowPrompt(orderID, product, amount, soldBy, "")
	m, model, modelOK, note := consult[llm.ReturnWindowCheck](ctx, e, img, prompt, llm.ReturnWindowSchema())
	if modelOK {
		res = ReturnWindowResult{
			OrderIDMatch:       m.OrderIDMatch || IDMatch(orderID, m.DetectedOrderID),
			ProductNameMatch:   m.ProductNameMatch || ProductsMatch(product, m.DetectedProductName),
			AmountMatch:        m.AmountMatch || AmountMatches(amount, m.DetectedAmount),
			ReturnWindowClosed: m.ReturnWindowClosed,
			DetectedOrderID:    m.DetectedOrderID,
			DetectedAmount:     m.DetectedAmount,
			Verdict:            Verdict{Confidence: clamp(m.Confidence), Method: constants.MethodModel, Model: model},
		}
		if soldBy != "" {
			res.SoldByMatch = boolPtr(m.SoldByMatch || NamesMatch(soldBy, m.DetectedSoldBy))
		}
		if m.Note != "" {
			res.Notes = append(res.Notes, "model: "+m.Note)
		}
		if res.matched() && m.Confidence >= e.orch.AcceptConfidence() {
			e.finish(ctx, "return_window", &res.Verdict, start)
			return res
		}
	} else if note != "" {
		res.Notes = append(res.Notes, note)
	}

	r := e.recognizeReturnWindow(ctx, img, orderID, product, amount, soldBy)
	if modelOK {
		agree := res.matched() == r.matched()
		res.OrderIDMatch = res.OrderIDMatch || r.OrderIDMatch
		res.ProductNameMatch = res.ProductNameMatch || r.ProductNameMatch
		res.AmountMatch = res.AmountMatch || r.AmountMatch
		res.ReturnWindowClosed = res.ReturnWindowClosed || r.ReturnWindowClosed
		if res.SoldByMatch != nil {
			res.SoldByMatch = boolPtr(*res.SoldByMatch || *r.SoldByMatch)
		}
		if res.DetectedOrderID == "" {
			res.DetectedOrderID = r.DetectedOrderID
		}
		if res.DetectedAmount == 0 {
			res.DetectedAmount = r.DetectedAmount
		}
		res.Confidence = combine(res.Confidence, r.Confidence, agree)
		res.Method = constants.MethodCombined
		res.Notes = append(res.Notes, r.Notes...)
	} else {
		notes := res.Notes
		res = r
		res.Notes = append(notes, r.Notes...)
		res.Method = constants.MethodRecognizer
	}

	var d discrepancies
	d.add(res.OrderIDMatch, "order id %s not found (detected %q)", orderID, res.DetectedOrderID)
	d.add(res.ProductNameMatch, "product %q not found", product)
	d.add(res.AmountMatch, "amount %.2f not found (detected %.2f)", amount, res.DetectedAmount)
	d.add(res.SoldByMatch == nil || *res.SoldByMatch, "seller %q not found", soldBy)
	d.add(res.ReturnWindowClosed, "return window not shown as closed")
	res.Note = d.String()

	e.finish(ctx, "return_window", &res.Verdict, start)
	return res
}

func (e *Engine) recognizeReturnWindow(ctx context.Context, img utils.ImageInput, orderID, product string, amount float64, soldBy string) ReturnWindowResult {
	check := func(r extract.Recognition) ReturnWindowResult {
		texts := r.Texts()
		res := ReturnWindowResult{
			DetectedOrderID: r.Partial.OrderID,
			DetectedAmount:  r.Partial.Amount,
		}
		res.OrderIDMatch = IDMatch(orderID, r.Partial.OrderID) || IDInTexts(orderID, texts)
		res.ProductNameMatch = ProductsMatch(product, r.Partial.ProductName) || ProductInTexts(product, texts)
		res.AmountMatch = AmountMatches(amount, r.Partial.Amount)
		if !res.AmountMatch {
			if v, ok := CurrencyAmountInTexts(amount, texts); ok {
				res.AmountMatch, res.DetectedAmount = true, v
			}
		}
		if soldBy != "" {
			res.SoldByMatch = boolPtr(NamesMatch(soldBy, r.Partial.SoldBy) || NameInTexts(soldBy, texts))
		}
		res.ReturnWindowClosed, _ = ReturnWindowClosed(texts)
		return res
	}
	rec := e.orch.Recognize(ctx, img, func(r extract.Recognition) bool { return check(r).matched() })
	res := check(rec)
	res.Notes = rec.Notes

	for _, ok := range []bool{res.OrderIDMatch, res.ProductNameMatch, res.AmountMatch} {
		if ok {
			res.Confidence += 20
		}
	}
	if res.ReturnWindowClosed {
		res.Confidence += 25
	}
	if res.SoldByMatch != nil {
		if *res.SoldByMatch {
			res.Confidence += 5
		} else {
			res.Confidence -= 10
		}
	}
	if res.Confidence <= 0 && len(rec.Texts()) > 0 {
		res.Confidence = 10
	}
	res.Confidence = clamp(res.Confidence)
	return res
}
