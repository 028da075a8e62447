package verify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/orderproof/constants"
	"github.com/joseph-ayodele/orderproof/internal/extract"
	"github.com/joseph-ayodele/orderproof/internal/extract/extracttest"
	"github.com/joseph-ayodele/orderproof/internal/fields"
	"github.com/joseph-ayodele/orderproof/internal/llm"
)

const orderPage = `Your Orders
Order ID: 408-1234567-7654321
Order placed 12 January 2024
Samsung Galaxy M14 5G (Blue, 6GB RAM, 128GB Storage)
Sold by: Appario Retail Private Ltd
Grand Total ₹1,499.00`

const reviewPage = `Customer reviews
Rahul Sharma
4.0 out of 5 stars Great value
Samsung Galaxy M14 5G (Blue, 6GB RAM)
Verified Purchase`

var labels = []string{"original", "full-enhanced", "high-contrast", "inverted", "crop-top"}

func newEngine(text string, gen *extracttest.Generator) (*Engine, *extracttest.Recognizer) {
	rec := &extracttest.Recognizer{Script: map[string]extracttest.Pass{"original": {Text: text}}}
	var adapter *llm.Adapter
	if gen != nil {
		adapter = extracttest.Adapter(gen)
	}
	orch := extract.New(extract.Config{},
		extracttest.Variants{Labels: labels},
		rec,
		fields.NewExtractor(fields.Config{}),
		adapter,
		extracttest.QuietLogger(),
	)
	return New(orch, extracttest.QuietLogger()), rec
}

func hasPrefix(notes []string, prefix string) bool {
	for _, n := range notes {
		if strings.HasPrefix(n, prefix) {
			return true
		}
	}
	return false
}

func TestPurchase_RecognizerOnly(t *testing.T) {
	e, rec := newEngine(orderPage, nil)

	res := e.Purchase(context.Background(), extracttest.PNG(40, 80), "4081234567654321", 1499)

	assert.True(t, res.OrderIDMatch)
	assert.True(t, res.AmountMatch)
	assert.GreaterOrEqual(t, res.Confidence, 80)
	assert.Equal(t, constants.MethodRecognizer, res.Method)
	assert.Equal(t, "408-1234567-7654321", res.DetectedOrderID)
	assert.Empty(t, res.Note)
	assert.NotContains(t, res.Notes, constants.ManualVerificationNote)
	assert.Equal(t, []string{"original"}, rec.Calls(), "stops once both values match")
}

func TestPurchase_IsRepeatable(t *testing.T) {
	e, _ := newEngine(orderPage, nil)
	img := extracttest.PNG(40, 80)

	first := e.Purchase(context.Background(), img, "408-1234567-7654321", 1499)
	second := e.Purchase(context.Background(), img, "408-1234567-7654321", 1499)

	assert.Equal(t, first, second)
}

func TestPurchase_Mismatch(t *testing.T) {
	e, _ := newEngine(orderPage, nil)

	res := e.Purchase(context.Background(), extracttest.PNG(40, 80), "171-0000000-1111111", 2999)

	assert.False(t, res.OrderIDMatch)
	assert.False(t, res.AmountMatch)
	assert.Equal(t, 10, res.Confidence)
	assert.Contains(t, res.Note, "order id 171-0000000-1111111 not found")
	assert.Contains(t, res.Note, "amount 2999.00 not found (detected 1499.00)")
	assert.Contains(t, res.Notes, constants.ManualVerificationNote)
}

func TestPurchase_ModelAccepted(t *testing.T) {
	gen := &extracttest.Generator{Replies: []string{
		`{"detected_order_id":"408-1234567-7654321","detected_amount":1499,"order_id_match":true,"amount_match":true,"confidence":92}`,
	}}
	e, rec := newEngine(orderPage, gen)

	res := e.Purchase(context.Background(), extracttest.PNG(40, 80), "408-1234567-7654321", 1499)

	assert.Equal(t, constants.MethodModel, res.Method)
	assert.Equal(t, 92, res.Confidence)
	assert.Equal(t, "fake-1", res.Model)
	assert.Empty(t, rec.Calls(), "a confident model verdict skips recognition")
	require.Len(t, gen.Requests(), 1)
	assert.NotNil(t, gen.Requests()[0].Schema)
}

func TestPurchase_ModelDoubtedIsCombined(t *testing.T) {
	gen := &extracttest.Generator{Replies: []string{
		`{"detected_order_id":"408-1234567-7654321","detected_amount":1399,"order_id_match":true,"amount_match":false,"confidence":60}`,
	}}
	e, rec := newEngine(orderPage, gen)

	res := e.Purchase(context.Background(), extracttest.PNG(40, 80), "408-1234567-7654321", 1499)

	assert.Equal(t, constants.MethodCombined, res.Method)
	assert.True(t, res.OrderIDMatch)
	assert.True(t, res.AmountMatch, "recognized total settles the amount")
	assert.Equal(t, 85, res.Confidence)
	assert.NotEmpty(t, rec.Calls())
}

func TestPurchase_ModelFailureFallsBack(t *testing.T) {
	gen := &extracttest.Generator{Err: errors.New("quota exceeded")}
	e, _ := newEngine(orderPage, gen)

	res := e.Purchase(context.Background(), extracttest.PNG(40, 80), "408-1234567-7654321", 1499)

	assert.Equal(t, constants.MethodRecognizer, res.Method)
	assert.Equal(t, 85, res.Confidence)
	assert.True(t, hasPrefix(res.Notes, "model check:"), "notes: %v", res.Notes)
}

func TestPurchase_RejectedInput(t *testing.T) {
	e, rec := newEngine(orderPage, nil)

	res := e.Purchase(context.Background(), []byte("not an image"), "408-1234567-7654321", 1499)

	assert.Equal(t, 0, res.Confidence)
	assert.Equal(t, constants.MethodNone, res.Method)
	assert.Contains(t, res.Notes, constants.ManualVerificationNote)
	assert.Empty(t, rec.Calls())
}

func TestPurchase_RecoversFromPanic(t *testing.T) {
	rec := &extracttest.Recognizer{Script: map[string]extracttest.Pass{"original": {Panic: true}}}
	orch := extract.New(extract.Config{}, extracttest.Variants{Labels: labels}, rec,
		fields.NewExtractor(fields.Config{}), nil, extracttest.QuietLogger())
	e := New(orch, extracttest.QuietLogger())

	var res PurchaseResult
	require.NotPanics(t, func() {
		res = e.Purchase(context.Background(), extracttest.PNG(40, 80), "408-1234567-7654321", 1499)
	})
	assert.Equal(t, 0, res.Confidence)
	assert.True(t, hasPrefix(res.Notes, "internal error:"))
}

func TestRating_Recognizer(t *testing.T) {
	tests := []struct {
		name         string
		buyer        string
		product      string
		reviewer     string
		wantBuyer    bool
		wantProduct  bool
		wantReviewer *bool
		wantConf     int
	}{
		{"buyer and product", "Rahul Sharma", "Samsung Galaxy M14 5G Blue", "", true, true, nil, 85},
		{"reviewer matches", "Rahul Sharma", "Samsung Galaxy M14 5G", "Rahul Sharma", true, true, boolPtr(true), 85},
		{"reviewer differs", "Rahul Sharma", "Samsung Galaxy M14 5G", "Priya Nair", true, true, boolPtr(false), 65},
		{"product only", "Anita Desai", "Samsung Galaxy M14 5G", "", false, true, nil, 55},
		{"nothing", "Anita Desai", "Apple iPhone 15", "", false, false, nil, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newEngine(reviewPage, nil)

			res := e.Rating(context.Background(), extracttest.PNG(40, 80), tt.buyer, tt.product, tt.reviewer)

			assert.Equal(t, tt.wantBuyer, res.BuyerNameMatch)
			assert.Equal(t, tt.wantProduct, res.ProductNameMatch)
			assert.Equal(t, tt.wantReviewer, res.ReviewerNameMatch)
			assert.Equal(t, tt.wantConf, res.Confidence)
			assert.Equal(t, constants.MethodRecognizer, res.Method)
		})
	}
}

func TestRating_DetectsStars(t *testing.T) {
	e, _ := newEngine(reviewPage, nil)

	res := e.Rating(context.Background(), extracttest.PNG(40, 80), "Rahul Sharma", "Samsung Galaxy M14", "")

	assert.Equal(t, 4, res.Rating)
}

func TestRating_ModelAccepted(t *testing.T) {
	gen := &extracttest.Generator{Replies: []string{
		`{"detected_buyer_name":"Rahul Sharma","buyer_name_match":true,"product_name_match":true,"rating":5,"confidence":90}`,
	}}
	e, rec := newEngine(reviewPage, gen)

	res := e.Rating(context.Background(), extracttest.PNG(40, 80), "Rahul Sharma", "Samsung Galaxy M14", "")

	assert.Equal(t, constants.MethodModel, res.Method)
	assert.Equal(t, 5, res.Rating)
	assert.Equal(t, 90, res.Confidence)
	assert.Empty(t, rec.Calls())
}

func TestRating_ModelReviewerMismatchIsRechecked(t *testing.T) {
	gen := &extracttest.Generator{Replies: []string{
		`{"buyer_name_match":true,"product_name_match":true,"reviewer_name_match":false,"detected_reviewer_name":"R. S.","confidence":88}`,
	}}
	e, rec := newEngine(reviewPage, gen)

	res := e.Rating(context.Background(), extracttest.PNG(40, 80), "Rahul Sharma", "Samsung Galaxy M14", "Rahul Sharma")

	assert.Equal(t, constants.MethodCombined, res.Method)
	require.NotNil(t, res.ReviewerNameMatch)
	assert.True(t, *res.ReviewerNameMatch)
	assert.NotEmpty(t, rec.Calls())
}

const returnPage = `Order ID: 408-1234567-7654321
Samsung Galaxy M14 5G (Blue, 6GB RAM, 128GB Storage)
Sold by: Appario Retail Private Ltd
Grand Total ₹1,499.00
Return window closed on 20 Jan 2024`

func TestReturnWindow_Recognizer(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		soldBy     string
		wantClosed bool
		wantConf   int
	}{
		{"closed with seller", returnPage, "Appario Retail", true, 90},
		{"closed no seller", returnPage, "", true, 85},
		{"closed wrong seller", returnPage, "Cloudtail India", true, 75},
		{"still open", strings.Replace(returnPage, "Return window closed on 20 Jan 2024", "Return items by 27 Jan", 1), "", false, 60},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newEngine(tt.text, nil)

			res := e.ReturnWindow(context.Background(), extracttest.PNG(40, 80),
				"408-1234567-7654321", "Samsung Galaxy M14 5G", 1499, tt.soldBy)

			assert.True(t, res.OrderIDMatch)
			assert.True(t, res.ProductNameMatch)
			assert.True(t, res.AmountMatch)
			assert.Equal(t, tt.wantClosed, res.ReturnWindowClosed)
			assert.Equal(t, tt.wantConf, res.Confidence)
			if !tt.wantClosed {
				assert.Contains(t, res.Note, "return window not shown as closed")
			}
		})
	}
}

func TestReturnWindow_ModelAccepted(t *testing.T) {
	gen := &extracttest.Generator{Replies: []string{
		`{"detected_order_id":"408-1234567-7654321","order_id_match":"yes","product_name_match":true,"amount_match":true,"return_window_closed":true,"confidence":0.9}`,
	}}
	e, rec := newEngine(returnPage, gen)

	res := e.ReturnWindow(context.Background(), extracttest.PNG(40, 80),
		"408-1234567-7654321", "Samsung Galaxy M14 5G", 1499, "")

	assert.Equal(t, constants.MethodModel, res.Method)
	assert.True(t, res.OrderIDMatch)
	assert.True(t, res.ReturnWindowClosed)
	assert.Equal(t, 90, res.Confidence)
	assert.Nil(t, res.SoldByMatch)
	assert.Empty(t, rec.Calls())
}
