package extract

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/orderproof/constants"
	"github.com/joseph-ayodele/orderproof/internal/common"
	"github.com/joseph-ayodele/orderproof/internal/extract/extracttest"
	"github.com/joseph-ayodele/orderproof/internal/fields"
	"github.com/joseph-ayodele/orderproof/internal/llm"
	"github.com/joseph-ayodele/orderproof/internal/ocr"
)

const amazonPage = `Your Orders
Order ID: 408-1234567-7654321
Order placed 12 January 2024
Samsung Galaxy M14 5G (Blue, 6GB RAM, 128GB Storage)
Sold by: Appario Retail Private Ltd
Grand Total ₹1,499.00`

var allVariants = []string{"original", "full-enhanced", "high-contrast", "inverted", "crop-top"}

func newOrchestrator(cfg Config, rec *extracttest.Recognizer, adapter *llm.Adapter) *Orchestrator {
	return New(cfg,
		extracttest.Variants{Labels: allVariants},
		rec,
		fields.NewExtractor(fields.Config{}),
		adapter,
		extracttest.QuietLogger(),
	)
}

func TestExtract_AmazonScreenshot(t *testing.T) {
	rec := &extracttest.Recognizer{Script: map[string]extracttest.Pass{"original": {Text: amazonPage}}}
	gen := &extracttest.Generator{}
	o := newOrchestrator(Config{}, rec, extracttest.Adapter(gen))

	res := o.Extract(context.Background(), extracttest.PNG(40, 80))

	assert.Equal(t, "408-1234567-7654321", res.OrderID)
	assert.Equal(t, "amazon", res.Platform)
	assert.Equal(t, 1499.0, res.Amount)
	assert.Equal(t, "2024-01-12", res.OrderDate)
	assert.Equal(t, 96, res.Confidence)
	assert.Equal(t, constants.StageDeterministic, res.Sources[FieldOrderID])
	assert.Equal(t, constants.StageDeterministic, res.Sources[FieldAmount])

	require.Len(t, res.Passes, 1)
	assert.Equal(t, ocr.HeuristicConfidence(amazonPage), res.Passes[0].TextScore)
	assert.Greater(t, res.Passes[0].TextScore, float32(0.8))

	assert.Equal(t, []string{"original"}, rec.Calls(), "stops once order id and amount are found")
	assert.Empty(t, gen.Requests(), "no model call when recognition is complete")
}

func TestExtract_RejectsBeforeAnyWork(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		raw  []byte
		note string
	}{
		{"too large", Config{MaxImageBytes: 16}, extracttest.PNG(40, 80), "limit is 16"},
		{"over token budget", Config{MaxEstimatedTokens: 2000}, extracttest.PNG(1600, 1600), "budget is 2000"},
		{"not an image", Config{}, []byte("definitely not a picture"), "not an image"},
		{"empty", Config{}, nil, "empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &extracttest.Recognizer{}
			gen := &extracttest.Generator{}
			o := newOrchestrator(tt.cfg, rec, extracttest.Adapter(gen))

			res := o.Extract(context.Background(), tt.raw)

			assert.Equal(t, 0, res.Confidence)
			assert.Contains(t, res.Notes, constants.ManualVerificationNote)
			assert.Contains(t, strings.Join(res.Notes, "|"), tt.note)
			assert.Empty(t, rec.Calls())
			assert.Empty(t, gen.Requests())
		})
	}
}

func TestExtract_AccumulatesAcrossPasses(t *testing.T) {
	rec := &extracttest.Recognizer{Script: map[string]extracttest.Pass{
		"original":      {Text: "Order ID: 408-1234567-7654321"},
		"full-enhanced": {Text: "Order Total ₹2,349.00"},
	}}
	o := newOrchestrator(Config{}, rec, nil)

	res := o.Extract(context.Background(), extracttest.PNG(40, 80))

	assert.Equal(t, "408-1234567-7654321", res.OrderID)
	assert.Equal(t, 2349.0, res.Amount)
	assert.GreaterOrEqual(t, res.Confidence, 90)
	assert.Equal(t, []string{"original", "full-enhanced"}, rec.Calls())
}

func TestExtract_TimedOutPassOnlyAddsNote(t *testing.T) {
	rec := &extracttest.Recognizer{Script: map[string]extracttest.Pass{
		"original":      {Err: common.TimeoutError("OCR_TIMEOUT", "recognition timed out after 20s")},
		"full-enhanced": {Text: amazonPage},
	}}
	o := newOrchestrator(Config{}, rec, nil)

	res := o.Extract(context.Background(), extracttest.PNG(40, 80))

	assert.Equal(t, "408-1234567-7654321", res.OrderID)
	assert.Contains(t, res.Notes, "pass original: recognition timed out")
	require.Len(t, res.Passes, 2)
	assert.False(t, res.Passes[0].OK)
	assert.True(t, res.Passes[1].OK)
}

func TestExtract_ModelRefine(t *testing.T) {
	tests := []struct {
		name       string
		reply      string
		amount     float64
		amountFrom constants.Stage
		idFrom     constants.Stage
		minConf    int
		maxConf    int
		note       string
	}{
		{
			name:       "trusted suggestion fills the gap",
			reply:      `{"order_id":"408-1234567-7654321","amount":1499,"confidence":92}`,
			amount:     1499,
			amountFrom: constants.StageModelRefine,
			idFrom:     constants.StageModelConfirm,
			minConf:    80,
			maxConf:    89,
		},
		{
			name:    "unverifiable low-confidence amount is refused",
			reply:   `{"amount":1499,"confidence":40}`,
			idFrom:  constants.StageDeterministic,
			minConf: 75,
			maxConf: 79,
			note:    "not accepted",
		},
		{
			name:    "disagreeing order id keeps the recognized one",
			reply:   `{"order_id":"171-0000000-1111111","confidence":99}`,
			idFrom:  constants.StageDeterministic,
			minConf: 75,
			maxConf: 79,
			note:    "kept recognized 408-1234567-7654321",
		},
		{
			name:    "malformed reply is no suggestion",
			reply:   `I think the total is 1499`,
			idFrom:  constants.StageDeterministic,
			minConf: 75,
			maxConf: 79,
			note:    "model refine",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &extracttest.Recognizer{Script: map[string]extracttest.Pass{
				"original": {Text: "Order ID: 408-1234567-7654321"},
			}}
			gen := &extracttest.Generator{Replies: []string{tt.reply}}
			o := newOrchestrator(Config{}, rec, extracttest.Adapter(gen))

			res := o.Extract(context.Background(), extracttest.PNG(40, 80))

			assert.Equal(t, "408-1234567-7654321", res.OrderID)
			assert.Equal(t, tt.amount, res.Amount)
			assert.Equal(t, tt.idFrom, res.Sources[FieldOrderID])
			if tt.amountFrom != "" {
				assert.Equal(t, tt.amountFrom, res.Sources[FieldAmount])
			}
			assert.GreaterOrEqual(t, res.Confidence, tt.minConf)
			assert.LessOrEqual(t, res.Confidence, tt.maxConf)
			if tt.note != "" {
				assert.Contains(t, strings.Join(res.Notes, "|"), tt.note)
			}

			reqs := gen.Requests()
			require.Len(t, reqs, 1, "refine only; direct is skipped once an id is known")
			assert.Contains(t, reqs[0].Prompt, "Order ID: 408-1234567-7654321")
			assert.NotEmpty(t, reqs[0].Image)
		})
	}
}

func TestExtract_ModelDirectWhenNothingRecognized(t *testing.T) {
	rec := &extracttest.Recognizer{}
	gen := &extracttest.Generator{Replies: []string{
		`{"order_id":"OD432198765012345678","amount":"₹ 899","confidence":88}`,
	}}
	o := newOrchestrator(Config{}, rec, extracttest.Adapter(gen))

	res := o.Extract(context.Background(), extracttest.PNG(40, 80))

	assert.Equal(t, "OD432198765012345678", res.OrderID)
	assert.Equal(t, "flipkart", res.Platform)
	assert.Equal(t, 899.0, res.Amount)
	assert.Equal(t, constants.StageModelDirect, res.Sources[FieldOrderID])
	assert.Equal(t, 55, res.Confidence)
	assert.Len(t, rec.Calls(), len(allVariants))

	reqs := gen.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, llm.DirectPrompt(), reqs[0].Prompt)
}

func TestExtract_ModelAmountThatIsAnIDFragmentIsDropped(t *testing.T) {
	rec := &extracttest.Recognizer{Script: map[string]extracttest.Pass{
		"original": {Text: "Order ID: 408-1234567-7654321"},
	}}
	gen := &extracttest.Generator{Replies: []string{`{"amount":1234567,"confidence":95}`}}
	o := New(Config{}, extracttest.Variants{Labels: allVariants}, rec,
		fields.NewExtractor(fields.Config{MaxPlausibleAmount: 5000000}), extracttest.Adapter(gen), extracttest.QuietLogger())

	res := o.Extract(context.Background(), extracttest.PNG(40, 80))

	assert.Zero(t, res.Amount)
	assert.NotContains(t, res.Sources, FieldAmount)
	assert.Contains(t, strings.Join(res.Notes, "|"), "matches digits of order id")
}

func TestExtract_NoModelNothingFound(t *testing.T) {
	rec := &extracttest.Recognizer{Script: map[string]extracttest.Pass{"original": {Text: "hello there"}}}
	o := newOrchestrator(Config{}, rec, nil)

	res := o.Extract(context.Background(), extracttest.PNG(40, 80))

	assert.Equal(t, 10, res.Confidence)
	assert.Contains(t, res.Notes, constants.ManualVerificationNote)
	assert.Len(t, rec.Calls(), len(allVariants))
}

func TestExtract_RecoversFromPanic(t *testing.T) {
	rec := &extracttest.Recognizer{Script: map[string]extracttest.Pass{"original": {Panic: true}}}
	o := newOrchestrator(Config{}, rec, nil)

	var res Result
	require.NotPanics(t, func() { res = o.Extract(context.Background(), extracttest.PNG(40, 80)) })
	assert.Equal(t, 0, res.Confidence)
	assert.Contains(t, res.Notes[0], "internal error")
	assert.NotContains(t, res.Notes[0], ".go:")
}

func TestExtract_ParallelPassesMergeInVariantOrder(t *testing.T) {
	script := map[string]extracttest.Pass{
		"original":      {Text: "Order ID: 408-1234567-7654321", Delay: 20 * time.Millisecond},
		"full-enhanced": {Text: "Total ₹799"},
		"high-contrast": {Text: "Total ₹999", Delay: 5 * time.Millisecond},
		"inverted":      {Err: errors.New("engine crashed")},
	}
	var results []Result
	for i := 0; i < 3; i++ {
		rec := &extracttest.Recognizer{Script: script, Size: 2}
		o := newOrchestrator(Config{ParallelPasses: true}, rec, nil)
		results = append(results, o.Extract(context.Background(), extracttest.PNG(40, 80)))
		assert.Len(t, rec.Calls(), len(allVariants))
	}
	for _, r := range results[1:] {
		assert.Equal(t, results[0].OrderID, r.OrderID)
		assert.Equal(t, results[0].Amount, r.Amount)
		assert.Equal(t, results[0].Notes, r.Notes)
	}
	assert.Equal(t, "408-1234567-7654321", results[0].OrderID)
	assert.Equal(t, 799.0, results[0].Amount, "first of equal-score amounts in variant order")
}

func TestRecognize_PageSegModes(t *testing.T) {
	rec := &extracttest.Recognizer{}
	o := newOrchestrator(Config{}, rec, nil)
	img, err := o.Admit(extracttest.PNG(40, 80))
	require.NoError(t, err)

	o.Recognize(context.Background(), img, nil)

	assert.Equal(t, ocr.PSMAuto, rec.Mode("original"))
	assert.Equal(t, ocr.PSMSparseText, rec.Mode("inverted"))
}

func TestAccumulate(t *testing.T) {
	tests := []struct {
		name string
		acc  fields.Partial
		next fields.Partial
		want float64
	}{
		{"fills unset", fields.Partial{}, fields.Partial{Amount: 10, AmountScore: 10}, 10},
		{"higher score wins", fields.Partial{Amount: 999, AmountScore: 20}, fields.Partial{Amount: 599, AmountScore: 40}, 599},
		{"lower score loses", fields.Partial{Amount: 599, AmountScore: 40}, fields.Partial{Amount: 999, AmountScore: 20}, 599},
		{"tie keeps typical", fields.Partial{Amount: 599, AmountScore: 20}, fields.Partial{Amount: 899, AmountScore: 20}, 599},
		{"tie prefers typical", fields.Partial{Amount: 75000, AmountScore: 20}, fields.Partial{Amount: 899, AmountScore: 20}, 899},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := tt.acc
			accumulate(&acc, tt.next)
			assert.Equal(t, tt.want, acc.Amount)
		})
	}
}

func TestConfidence(t *testing.T) {
	det, conf := constants.StageDeterministic, constants.StageModelConfirm
	refine, direct := constants.StageModelRefine, constants.StageModelDirect
	both := fields.Partial{OrderID: "OD123456789012345", Amount: 10}

	tests := []struct {
		name    string
		p       fields.Partial
		sources map[string]constants.Stage
		anyText bool
		want    int
	}{
		{"both recognized", both, map[string]constants.Stage{FieldOrderID: det, FieldAmount: det}, true, 90},
		{"both recognized, one confirmed", both, map[string]constants.Stage{FieldOrderID: conf, FieldAmount: det}, true, 90},
		{"recognized plus model", both, map[string]constants.Stage{FieldOrderID: conf, FieldAmount: refine}, true, 80},
		{"platform id only", fields.Partial{OrderID: "x", OrderPlatform: "amazon"}, map[string]constants.Stage{FieldOrderID: det}, true, 75},
		{"generic id only", fields.Partial{OrderID: "x"}, map[string]constants.Stage{FieldOrderID: det}, true, 65},
		{"model both", both, map[string]constants.Stage{FieldOrderID: direct, FieldAmount: direct}, false, 55},
		{"model one", fields.Partial{Amount: 5}, map[string]constants.Stage{FieldAmount: refine}, true, 40},
		{"text but nothing", fields.Partial{}, nil, true, 10},
		{"nothing", fields.Partial{ProductName: "Kettle"}, nil, false, 0},
		{"secondaries add up", fields.Partial{OrderID: "x", Amount: 1, OrderDate: "2024-01-01", SoldBy: "A", ProductName: "B"},
			map[string]constants.Stage{FieldOrderID: det, FieldAmount: det}, true, 96},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Confidence(tt.p, tt.sources, tt.anyText)
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, got, 0)
			assert.LessOrEqual(t, got, 100)
		})
	}
}

func TestMatchHelpers(t *testing.T) {
	texts := []string{"Order # 408 1234567 7654321", "Grand Total ₹1,49,999.50", "Paid 799"}

	assert.True(t, IDInTexts("408-1234567-7654321", texts))
	assert.False(t, IDInTexts("408-1234567-7654322", texts))
	assert.False(t, IDInTexts("4081", texts))

	assert.True(t, AmountInTexts(149999.5, texts))
	assert.True(t, AmountInTexts(799, texts))
	assert.False(t, AmountInTexts(149999, texts))
	assert.False(t, AmountInTexts(79, texts))

	assert.True(t, TextInTexts("GRAND total", texts))
	assert.False(t, TextInTexts("  ", texts))
}
