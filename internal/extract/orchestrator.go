package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/orderproof/constants"
	"github.com/joseph-ayodele/orderproof/internal/common"
	"github.com/joseph-ayodele/orderproof/internal/fields"
	"github.com/joseph-ayodele/orderproof/internal/imageprep"
	"github.com/joseph-ayodele/orderproof/internal/llm"
	"github.com/joseph-ayodele/orderproof/internal/ocr"
	"github.com/joseph-ayodele/orderproof/internal/utils"
)

// Config tunes the orchestrator.
type Config struct {
	MaxImageBytes      int64
	MaxEstimatedTokens int
	ParallelPasses     bool
	AcceptConfidence   int
}

// Orchestrator drives one image through preprocessing, recognition, field
// extraction and the optional model stages.
type Orchestrator struct {
	cfg        Config
	variants   VariantSource
	recognizer Recognizer
	reader     FieldReader
	adapter    *llm.Adapter
	logger     *slog.Logger
}

// New wires an orchestrator. adapter may be nil, which disables every model stage.
func New(cfg Config, variants VariantSource, recognizer Recognizer, reader FieldReader, adapter *llm.Adapter, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.AcceptConfidence <= 0 {
		cfg.AcceptConfidence = constants.DefaultAcceptConfidence
	}
	return &Orchestrator{
		cfg:        cfg,
		variants:   variants,
		recognizer: recognizer,
		reader:     reader,
		adapter:    adapter,
		logger:     logger,
	}
}

// Adapter returns the model adapter, nil when no model is configured.
func (o *Orchestrator) Adapter() *llm.Adapter { return o.adapter }

// AcceptConfidence is the model self-confidence above which unverifiable
// suggestions are still accepted.
func (o *Orchestrator) AcceptConfidence() int { return o.cfg.AcceptConfidence }

// Reader returns the deterministic field reader.
func (o *Orchestrator) Reader() FieldReader { return o.reader }

// promptBudget is the largest text part of any model request we send.
const promptBudget = 4500

// Admit decodes raw and applies the input guards. The returned error is always
// an input rejection.
func (o *Orchestrator) Admit(raw []byte) (utils.ImageInput, error) {
	img, err := utils.DecodeImageInput(raw)
	if err != nil {
		return img, err
	}
	if o.cfg.MaxImageBytes > 0 && img.Size() > o.cfg.MaxImageBytes {
		return img, common.InputError("IMAGE_TOO_LARGE",
			fmt.Sprintf("image is %d bytes, limit is %d", img.Size(), o.cfg.MaxImageBytes))
	}
	if o.cfg.MaxEstimatedTokens > 0 {
		if est := llm.EstimateTokens(promptBudget, img.Width, img.Height); est > o.cfg.MaxEstimatedTokens {
			return img, common.InputError("TOKEN_BUDGET",
				fmt.Sprintf("estimated %d tokens, budget is %d", est, o.cfg.MaxEstimatedTokens))
		}
	}
	return img, nil
}

// Recognize runs recognition passes over the variants of img and merges what
// each pass finds. Sequential runs stop as soon as done reports true.
func (o *Orchestrator) Recognize(ctx context.Context, img utils.ImageInput, done func(Recognition) bool) Recognition {
	rec := Recognition{best: -1}
	variants := o.variants.Variants(ctx, img.Data)

	if o.cfg.ParallelPasses {
		results := make([]PassResult, len(variants))
		g := new(errgroup.Group)
		g.SetLimit(max(1, o.recognizer.Capacity()))
		for i, v := range variants {
			g.Go(func() error {
				results[i] = o.runPass(ctx, v)
				return nil
			})
		}
		_ = g.Wait()
		for _, r := range results {
			rec.add(r)
		}
		return rec
	}

	for _, v := range variants {
		if ctx.Err() != nil {
			rec.Notes = append(rec.Notes, "recognition stopped: "+ctx.Err().Error())
			break
		}
		r := o.runPass(ctx, v)
		rec.add(r)
		if errors.Is(r.err, common.ErrPoolClosed) {
			break
		}
		if done != nil && done(rec) {
			break
		}
	}
	return rec
}

func (o *Orchestrator) runPass(ctx context.Context, v imageprep.Variant) PassResult {
	start := time.Now()
	text, err := o.recognizer.Recognize(ctx, v.Data, modeFor(v))
	r := PassResult{Variant: v.Label, Elapsed: time.Since(start)}
	if err != nil {
		r.err = err
		r.Error = Describe(err)
		o.logger.Debug("extract.pass.failed", "req_id", common.RequestIDFromContext(ctx),
			"variant", v.Label, "kind", common.KindOf(err), "elapsed_ms", r.Elapsed.Milliseconds())
		return r
	}
	r.OK = true
	r.Chars = len(text)
	r.text = text
	r.TextScore = ocr.HeuristicConfidence(text)
	r.partial = o.reader.Extract(text)
	o.logger.Debug("extract.pass.done", "req_id", common.RequestIDFromContext(ctx),
		"variant", v.Label, "chars", r.Chars, "text_score", r.TextScore,
		"order_id", r.partial.OrderID != "", "amount", r.partial.Amount > 0,
		"elapsed_ms", r.Elapsed.Milliseconds())
	return r
}

// modeFor picks the page segmentation that suits each rendition: crops are a
// single block, the aggressive renditions read best as sparse text.
func modeFor(v imageprep.Variant) ocr.PageSegMode {
	switch {
	case v.Region != nil:
		return ocr.PSMSingleBlock
	case v.Label == "high-contrast" || v.Label == "inverted":
		return ocr.PSMSparseText
	default:
		return ocr.PSMAuto
	}
}

// Extract runs the whole pipeline. It never panics and never fails: every
// problem ends up as a note on a lower-confidence result.
func (o *Orchestrator) Extract(ctx context.Context, raw []byte) (res Result) {
	ctx, rid := common.EnsureRequestID(ctx)
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("extract.panic", "req_id", rid, "panic", fmt.Sprint(r))
			res = Result{
				Confidence: 0,
				Notes:      []string{"internal error: " + common.SanitizeMessage(fmt.Errorf("%v", r)), constants.ManualVerificationNote},
			}
		}
	}()

	// Init
	img, err := o.Admit(raw)
	if err != nil {
		o.logger.Warn("extract.rejected", "req_id", rid, "error", Describe(err))
		return Rejected(err)
	}
	o.logger.Info("extract.start", "req_id", rid, "bytes", img.Size(), "mime", img.MIMEType,
		"width", img.Width, "height", img.Height, "model", o.adapter.Enabled())

	// RecognizePasses
	rec := o.Recognize(ctx, img, func(r Recognition) bool { return r.Partial.Complete() })
	st := newState(rec)

	// ModelRefine
	if !st.p.Complete() && o.adapter.Enabled() && rec.BestText() != "" {
		o.refine(ctx, img, rec.BestText(), st)
	}

	// ModelDirect
	if !st.p.HasOrderID() && !st.p.HasAmount() && o.adapter.Enabled() {
		o.direct(ctx, img, st)
	}

	// SanityFilter
	st.sanitize(o.reader.Sanitizer())

	// Done
	res = st.result()
	res.Passes = rec.Passes
	o.logger.Info("extract.done", "req_id", rid,
		"order_id", res.OrderID != "", "amount", res.Amount > 0,
		"confidence", res.Confidence, "passes", len(rec.Passes), "model", res.Model,
		"elapsed_ms", time.Since(start).Milliseconds())
	return res
}

func (o *Orchestrator) refine(ctx context.Context, img utils.ImageInput, text string, st *state) {
	req := llm.Request{
		System: llm.OrderSystemPrompt(),
		Prompt: llm.RefinePrompt(text, llm.Known{
			OrderID:  st.p.OrderID,
			Amount:   st.p.Amount,
			Platform: st.p.OrderPlatform,
		}),
		Image:    img.Data,
		MIMEType: img.MIMEType,
		Schema:   llm.OrderSchema(),
	}
	s, model, err := llm.Invoke[llm.OrderSuggestion](ctx, o.adapter, req)
	if err != nil {
		st.note("model refine: " + Describe(err))
		return
	}
	st.model = model
	o.apply(st, s, constants.StageModelRefine)
}

func (o *Orchestrator) direct(ctx context.Context, img utils.ImageInput, st *state) {
	req := llm.Request{
		System:   llm.OrderSystemPrompt(),
		Prompt:   llm.DirectPrompt(),
		Image:    img.Data,
		MIMEType: img.MIMEType,
		Schema:   llm.OrderSchema(),
	}
	s, model, err := llm.Invoke[llm.OrderSuggestion](ctx, o.adapter, req)
	if err != nil {
		st.note("model direct: " + Describe(err))
		return
	}
	st.model = model
	o.apply(st, s, constants.StageModelDirect)
}

// apply merges a model suggestion. Recognized values are never replaced; an
// agreeing suggestion marks them confirmed. New values must be visible in the
// recognized text or carry a high model confidence.
func (o *Orchestrator) apply(st *state, s llm.OrderSuggestion, stage constants.Stage) {
	trusted := s.Confidence >= o.cfg.AcceptConfidence

	if id := strings.TrimSpace(s.OrderID); id != "" {
		switch {
		case st.p.HasOrderID():
			if fields.OrderIDKey(id) == fields.OrderIDKey(st.p.OrderID) {
				st.confirm(FieldOrderID)
			} else {
				st.note(fmt.Sprintf("model suggested order id %s, kept recognized %s", id, st.p.OrderID))
			}
		case o.reader.OrderIDRejected(id):
			st.note("model order id " + id + " rejected: not an order number")
		case trusted || IDInTexts(id, st.texts):
			st.p.OrderID = strings.ToUpper(id)
			st.p.OrderPlatform = o.reader.PlatformOf(id)
			st.sources[FieldOrderID] = stage
		default:
			st.note(fmt.Sprintf("model order id %s not accepted: not in recognized text, confidence %d", id, s.Confidence))
		}
	}

	if s.Amount > 0 {
		switch {
		case st.p.HasAmount():
			if AmountWithin(st.p.Amount, s.Amount, 0.01) {
				st.confirm(FieldAmount)
			} else {
				st.note(fmt.Sprintf("model suggested amount %.2f, kept recognized %.2f", s.Amount, st.p.Amount))
			}
		case trusted || AmountInTexts(s.Amount, st.texts):
			st.p.Amount = s.Amount
			st.sources[FieldAmount] = stage
		default:
			st.note(fmt.Sprintf("model amount %.2f not accepted: not in recognized text, confidence %d", s.Amount, s.Confidence))
		}
	}

	fill := func(field string, cur *string, v string) {
		v = strings.TrimSpace(v)
		if *cur != "" || v == "" {
			return
		}
		if trusted || TextInTexts(v, st.texts) {
			*cur = v
			st.sources[field] = stage
		}
	}
	if st.p.OrderDate == "" && s.OrderDate != "" && trusted {
		st.p.OrderDate = s.OrderDate
		st.sources[FieldOrderDate] = stage
	}
	fill(FieldSoldBy, &st.p.SoldBy, s.SoldBy)
	fill(FieldProductName, &st.p.ProductName, s.ProductName)
}

// Rejected is the result for an image refused before any recognition work.
func Rejected(err error) Result {
	return Result{
		Confidence: 0,
		Notes:      []string{Describe(err), constants.ManualVerificationNote},
	}
}

// Describe renders err for a result note.
func Describe(err error) string {
	var ae *common.AppError
	if errors.As(err, &ae) && ae.Message != "" {
		if ae.Kind == common.KindExternal && ae.Cause != nil {
			return common.SanitizeMessage(fmt.Errorf("%s: %w", ae.Message, ae.Cause))
		}
		return common.SanitizeMessage(errors.New(ae.Message))
	}
	return common.SanitizeMessage(err)
}
