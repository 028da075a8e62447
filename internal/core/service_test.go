package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/orderproof/constants"
	"github.com/joseph-ayodele/orderproof/internal/common"
	"github.com/joseph-ayodele/orderproof/internal/extract"
	"github.com/joseph-ayodele/orderproof/internal/extract/extracttest"
	"github.com/joseph-ayodele/orderproof/internal/fields"
)

const orderPage = `Order ID: 408-1234567-7654321
Order placed 12 January 2024
Grand Total ₹1,499.00`

func testService(t *testing.T, closers ...func() error) (*Service, *extracttest.Recognizer) {
	t.Helper()
	rec := &extracttest.Recognizer{Script: map[string]extracttest.Pass{"original": {Text: orderPage}}}
	orch := extract.New(extract.Config{},
		extracttest.Variants{Labels: []string{"original", "full-enhanced"}},
		rec,
		fields.NewExtractor(fields.Config{}),
		nil,
		extracttest.QuietLogger(),
	)
	return newService(orch, extracttest.QuietLogger(), closers...), rec
}

func TestService_ExtractOrderDetails(t *testing.T) {
	svc, _ := testService(t)

	res := svc.ExtractOrderDetails(context.Background(), extracttest.PNG(40, 80))

	assert.Equal(t, "408-1234567-7654321", res.OrderID)
	assert.Equal(t, 1499.0, res.Amount)
}

func TestService_VerifyPurchaseProof(t *testing.T) {
	svc, _ := testService(t)

	res := svc.VerifyPurchaseProof(context.Background(), extracttest.PNG(40, 80), "408-1234567-7654321", 1499)

	assert.True(t, res.OrderIDMatch)
	assert.True(t, res.AmountMatch)
	assert.Equal(t, constants.MethodRecognizer, res.Method)
}

func TestService_RejectsMissingExpectations(t *testing.T) {
	tests := []struct {
		name  string
		run   func(*Service) ([]string, int)
		field string
	}{
		{"purchase without order id", func(s *Service) ([]string, int) {
			r := s.VerifyPurchaseProof(context.Background(), extracttest.PNG(4, 4), " ", 10)
			return r.Notes, r.Confidence
		}, "expected_order_id"},
		{"purchase without amount", func(s *Service) ([]string, int) {
			r := s.VerifyPurchaseProof(context.Background(), extracttest.PNG(4, 4), "123", 0)
			return r.Notes, r.Confidence
		}, "expected_amount"},
		{"rating without product", func(s *Service) ([]string, int) {
			r := s.VerifyRatingProof(context.Background(), extracttest.PNG(4, 4), "Rahul", "", "")
			return r.Notes, r.Confidence
		}, "expected_product_name"},
		{"return window without order id", func(s *Service) ([]string, int) {
			r := s.VerifyReturnWindowProof(context.Background(), extracttest.PNG(4, 4), "", "Phone", 10, "")
			return r.Notes, r.Confidence
		}, "expected_order_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, rec := testService(t)

			notes, conf := tt.run(svc)

			assert.Equal(t, 0, conf)
			assert.Contains(t, notes, constants.ManualVerificationNote)
			require.NotEmpty(t, notes)
			assert.Contains(t, notes[0], tt.field)
			assert.Empty(t, rec.Calls(), "invalid requests never reach recognition")
		})
	}
}

func TestService_CloseIsIdempotent(t *testing.T) {
	calls := 0
	svc, _ := testService(t, func() error { calls++; return errors.New("boom") })

	err := svc.Close()
	assert.EqualError(t, err, "boom")
	assert.NoError(t, svc.Close())
	assert.Equal(t, 1, calls)
}

func TestNewService_WithoutModel(t *testing.T) {
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("OCR_ENGINE", "cli")
	cfg := common.LoadConfig()

	svc, err := NewService(context.Background(), cfg, extracttest.QuietLogger())
	require.NoError(t, err)
	assert.False(t, svc.orch.Adapter().Enabled())
	assert.NoError(t, svc.Close())
	assert.NoError(t, svc.Close())
}

func TestNewService_RejectsBadConfig(t *testing.T) {
	t.Setenv("OCR_ENGINE", "paddle")
	cfg := common.LoadConfig()

	_, err := NewService(context.Background(), cfg, extracttest.QuietLogger())
	require.Error(t, err)
	assert.Equal(t, common.KindInput, common.KindOf(err))
}
