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

// PurchaseResult is the verdict on a purchase proof.
type PurchaseResult struct {
	OrderIDMatch    bool    `json:"order_id_match"`
	AmountMatch     bool    `json:"amount_match"`
	DetectedOrderID string  `json:"detected_order_id,omitempty"`
	DetectedAmount  float64 `json:"detected_amount,omitempty"`
	Verdict
}

// Purchase checks that raw shows an order with the expected id and amount.
func (e *Engine) Purchase(ctx context.Context, raw []byte, orderID string, amount float64) (res PurchaseResult) {
	ctx, _ = common.EnsureRequestID(ctx)
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("verify.purchase.panic", "req_id", common.RequestIDFromContext(ctx), "panic", r)
			res = PurchaseResult{Verdict: crashed(r)}
		}
	}()

	img, err := e.orch.Admit(raw)
	if err != nil {
		return PurchaseResult{Verdict: rejected(err)}
	}

	m, model, modelOK, note := consult[llm.PurchaseCheck](ctx, e, img, llm.PurchasePrompt(orderID, amount, ""), llm.PurchaseSchema())
	if modelOK {
		res = PurchaseResult{
			OrderIDMatch:    m.OrderIDMatch || IDMatch(orderID, m.DetectedOrderID),
			AmountMatch:     m.AmountMatch || AmountMatches(amount, m.DetectedAmount),
			DetectedOrderID: m.DetectedOrderID,
			DetectedAmount:  m.DetectedAmount,
			Verdict:         Verdict{Confidence: clamp(m.Confidence), Method: constants.MethodModel, Model: model},
		}
		if m.Note != "" {
			res.Notes = append(res.Notes, "model: "+m.Note)
		}
		if res.OrderIDMatch && res.AmountMatch && m.Confidence >= e.orch.AcceptConfidence() {
			e.finish(ctx, "purchase", &res.Verdict, start)
			return res
		}
	} else if note != "" {
		res.Notes = append(res.Notes, note)
	}

	r := e.recognizePurchase(ctx, img, orderID, amount)
	if modelOK {
		res.OrderIDMatch = res.OrderIDMatch || r.OrderIDMatch
		res.AmountMatch = res.AmountMatch || r.AmountMatch
		if res.DetectedOrderID == "" {
			res.DetectedOrderID = r.DetectedOrderID
		}
		if res.DetectedAmount == 0 {
			res.DetectedAmount = r.DetectedAmount
		}
		agree := res.OrderIDMatch == r.OrderIDMatch && res.AmountMatch == r.AmountMatch
		res.Confidence = combine(res.Confidence, r.Confidence, agree)
		res.Method = constants.MethodCombined
	} else {
		res.OrderIDMatch, res.AmountMatch = r.OrderIDMatch, r.AmountMatch
		res.DetectedOrderID, res.DetectedAmount = r.DetectedOrderID, r.DetectedAmount
		res.Confidence = r.Confidence
		res.Method = constants.MethodRecognizer
	}
	res.Notes = append(res.Notes, r.Notes...)

	var d discrepancies
	d.add(res.OrderIDMatch, "order id %s not found (detected %q)", orderID, res.DetectedOrderID)
	d.add(res.AmountMatch, "amount %.2f not found (detected %.2f)", amount, res.DetectedAmount)
	res.Note = d.String()

	e.finish(ctx, "purchase", &res.Verdict, start)
	return res
}

func (e *Engine) recognizePurchase(ctx context.Context, img utils.ImageInput, orderID string, amount float64) PurchaseResult {
	rec := e.orch.Recognize(ctx, img, func(r extract.Recognition) bool {
		return IDMatch(orderID, r.Partial.OrderID) && AmountMatches(amount, r.Partial.Amount)
	})
	texts := rec.Texts()

	res := PurchaseResult{
		DetectedOrderID: rec.Partial.OrderID,
		DetectedAmount:  rec.Partial.Amount,
		Verdict:         Verdict{Notes: rec.Notes},
	}
	res.OrderIDMatch = IDMatch(orderID, rec.Partial.OrderID) || IDInTexts(orderID, texts)
	res.AmountMatch = AmountMatches(amount, rec.Partial.Amount)
	if !res.AmountMatch {
		if v, ok := CurrencyAmountInTexts(amount, texts); ok {
			res.AmountMatch, res.DetectedAmount = true, v
		}
	}

	switch {
	case res.OrderIDMatch && res.AmountMatch:
		res.Confidence = 85
	case res.OrderIDMatch:
		res.Confidence = 55
	case res.AmountMatch:
		res.Confidence = 40
	case len(texts) > 0:
		res.Confidence = 10
	}
	return res
}
