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

// RatingResult is the verdict on a rating or review proof. ReviewerNameMatch
// is nil when no reviewer name was expected.
type RatingResult struct {
	BuyerNameMatch    bool  `json:"buyer_name_match"`
	ProductNameMatch  bool  `json:"product_name_match"`
	ReviewerNameMatch *bool `json:"reviewer_name_match,omitempty"`
	Rating            int   `json:"rating,omitempty"`
	Verdict
}

func (r RatingResult) matched() bool {
	return r.BuyerNameMatch && r.ProductNameMatch && (r.ReviewerNameMatch == nil || *r.ReviewerNameMatch)
}

// Rating checks that raw shows a review by buyer for product, optionally
// signed by reviewer.
func (e *Engine) Rating(ctx context.Context, raw []byte, buyer, product, reviewer string) (res RatingResult) {
	ctx, _ = common.EnsureRequestID(ctx)
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("verify.rating.panic", "req_id", common.RequestIDFromContext(ctx), "panic", r)
			res = RatingResult{Verdict: crashed(r)}
		}
	}()

	img, err := e.orch.Admit(raw)
	if err != nil {
		return RatingResult{Verdict: rejected(err)}
	}

	m, model, modelOK, note := consult[llm.RatingCheck](ctx, e, img, llm.RatingPrompt(buyer, product, reviewer, ""), llm.RatingSchema())
	if modelOK {
		res = RatingResult{
			BuyerNameMatch:   m.BuyerNameMatch || NamesMatch(buyer, m.DetectedBuyerName),
			ProductNameMatch: m.ProductNameMatch || ProductsMatch(product, m.DetectedProductName),
			Rating:           m.Rating,
			Verdict:          Verdict{Confidence: clamp(m.Confidence), Method: constants.MethodModel, Model: model},
		}
		if reviewer != "" {
			res.ReviewerNameMatch = boolPtr(m.ReviewerNameMatch || NamesMatch(reviewer, m.DetectedReviewerName))
		}
		if m.Note != "" {
			res.Notes = append(res.Notes, "model: "+m.Note)
		}
		if res.matched() && m.Confidence >= e.orch.AcceptConfidence() {
			e.finish(ctx, "rating", &res.Verdict, start)
			return res
		}
	} else if note != "" {
		res.Notes = append(res.Notes, note)
	}

	r := e.recognizeRating(ctx, img, buyer, product, reviewer)
	if modelOK {
		agree := res.matched() == r.matched()
		res.BuyerNameMatch = res.BuyerNameMatch || r.BuyerNameMatch
		res.ProductNameMatch = res.ProductNameMatch || r.ProductNameMatch
		if res.ReviewerNameMatch != nil {
			res.ReviewerNameMatch = boolPtr(*res.ReviewerNameMatch || *r.ReviewerNameMatch)
		}
		if res.Rating == 0 {
			res.Rating = r.Rating
		}
		res.Confidence = combine(res.Confidence, r.Confidence, agree)
		res.Method = constants.MethodCombined
	} else {
		res.BuyerNameMatch, res.ProductNameMatch = r.BuyerNameMatch, r.ProductNameMatch
		res.ReviewerNameMatch, res.Rating = r.ReviewerNameMatch, r.Rating
		res.Confidence = r.Confidence
		res.Method = constants.MethodRecognizer
	}
	res.Notes = append(res.Notes, r.Notes...)

	var d discrepancies
	d.add(res.BuyerNameMatch, "buyer %q not found", buyer)
	d.add(res.ProductNameMatch, "product %q not found", product)
	d.add(res.ReviewerNameMatch == nil || *res.ReviewerNameMatch, "reviewer %q not found", reviewer)
	res.Note = d.String()

	e.finish(ctx, "rating", &res.Verdict, start)
	return res
}

func (e *Engine) recognizeRating(ctx context.Context, img utils.ImageInput, buyer, product, reviewer string) RatingResult {
	check := func(texts []string) RatingResult {
		r := RatingResult{
			BuyerNameMatch:   NameInTexts(buyer, texts),
			ProductNameMatch: ProductInTexts(product, texts),
		}
		if reviewer != "" {
			r.ReviewerNameMatch = boolPtr(NameInTexts(reviewer, texts))
		}
		return r
	}
	rec := e.orch.Recognize(ctx, img, func(r extract.Recognition) bool {
		return check(r.Texts()).matched()
	})
	texts := rec.Texts()

	res := check(texts)
	res.Notes = rec.Notes
	res.Rating = DetectRating(texts)

	switch {
	case res.BuyerNameMatch && res.ProductNameMatch:
		res.Confidence = 80
	case res.ProductNameMatch:
		res.Confidence = 50
	case res.BuyerNameMatch:
		res.Confidence = 35
	case len(texts) > 0:
		res.Confidence = 10
	}
	if res.ReviewerNameMatch != nil && !*res.ReviewerNameMatch && res.Confidence > 0 {
		res.Confidence -= 20
	}
	if res.Rating > 0 && res.Confidence > 10 {
		res.Confidence += 5
	}
	res.Confidence = clamp(res.Confidence)
	return res
}
