package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/joseph-ayodele/orderproof/constants"
	"github.com/joseph-ayodele/orderproof/internal/common"
	"github.com/joseph-ayodele/orderproof/internal/extract"
	"github.com/joseph-ayodele/orderproof/internal/fields"
	"github.com/joseph-ayodele/orderproof/internal/imageprep"
	"github.com/joseph-ayodele/orderproof/internal/llm"
	"github.com/joseph-ayodele/orderproof/internal/llm/anthropic"
	"github.com/joseph-ayodele/orderproof/internal/llm/gemini"
	"github.com/joseph-ayodele/orderproof/internal/ocr"
	"github.com/joseph-ayodele/orderproof/internal/verify"
)

// Service is the entry point for extraction and proof verification. None of
// its methods return errors: failures surface as low-confidence results with
// notes.
type Service struct {
	logger   *slog.Logger
	orch     *extract.Orchestrator
	verifier *verify.Engine

	closers   []func() error
	closeOnce sync.Once
}

// NewService wires the recognition pool, preprocessing, field extraction and
// the configured model provider. A missing API key disables the model stages.
func NewService(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	factory, err := ocr.NewFactory(ocr.Config{
		Engine:        cfg.OCR.Engine,
		Languages:     cfg.OCR.Languages,
		TesseractPath: cfg.OCR.TesseractPath,
		TessdataDir:   cfg.OCR.TessdataDir,
	}, logger)
	if err != nil {
		return nil, err
	}
	pool := ocr.NewPool(factory, logger,
		ocr.WithPoolSize(cfg.OCR.PoolSize),
		ocr.WithRecognitionTimeout(cfg.OCR.RecognitionTimeout),
	)

	reader, err := fields.NewExtractorFromFile(fields.Config{MaxPlausibleAmount: cfg.Limits.MaxPlausibleAmount}, cfg.Limits.PlatformPatternsFile)
	if err != nil {
		pool.Shutdown()
		return nil, common.NewAppError(common.KindInput, "CONFIG_ERROR", "load platform patterns", err)
	}

	gen, err := newGenerator(ctx, cfg.LLM, logger)
	if err != nil {
		pool.Shutdown()
		return nil, err
	}
	var adapter *llm.Adapter
	if gen != nil {
		adapter = llm.NewAdapter(gen, llm.AdapterConfig{
			Models:          cfg.LLM.Models,
			CallTimeout:     cfg.LLM.CallTimeout,
			MaxOutputTokens: cfg.LLM.MaxOutputTokens,
			Temperature:     cfg.LLM.Temperature,
		}, logger)
	}

	orch := extract.New(extract.Config{
		MaxImageBytes:      cfg.Limits.MaxImageBytes,
		MaxEstimatedTokens: cfg.Limits.MaxEstimatedTokens,
		ParallelPasses:     cfg.OCR.ParallelPasses,
		AcceptConfidence:   cfg.LLM.AcceptConfidence,
	}, imageprep.New(imageprep.Config{
		Timeout:      cfg.Prep.Timeout,
		WorkingWidth: cfg.Prep.WorkingWidth,
	}, logger), pool, reader, adapter, logger)

	closers := []func() error{func() error { pool.Shutdown(); return nil }}
	if gen != nil {
		closers = append(closers, gen.Close)
	}
	logger.Info("service.ready",
		"ocr_engine", cfg.OCR.Engine,
		"pool_size", pool.Capacity(),
		"model_enabled", adapter.Enabled(),
		"provider", cfg.LLM.Provider,
	)
	return newService(orch, logger, closers...), nil
}

func newService(orch *extract.Orchestrator, logger *slog.Logger, closers ...func() error) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		logger:   logger,
		orch:     orch,
		verifier: verify.New(orch, logger),
		closers:  closers,
	}
}

// newGenerator returns nil without error when no key is configured.
func newGenerator(ctx context.Context, cfg common.LLMConfig, logger *slog.Logger) (llm.Generator, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	var (
		gen llm.Generator
		err error
	)
	switch cfg.Provider {
	case "anthropic":
		gen, err = anthropic.NewClient(anthropic.Config{APIKey: cfg.APIKey}, logger)
	case "gemini", "":
		gen, err = gemini.NewClient(ctx, gemini.Config{APIKey: cfg.APIKey}, logger)
	default:
		return nil, common.InputError("CONFIG_ERROR", fmt.Sprintf("unknown model provider %q", cfg.Provider))
	}
	if errors.Is(err, common.ErrNoModel) {
		return nil, nil
	}
	if err != nil {
		return nil, common.ExternalError("MODEL_INIT", "create model client", err)
	}
	return gen, nil
}

// ExtractOrderDetails reads the order facts out of an order screenshot.
func (s *Service) ExtractOrderDetails(ctx context.Context, image []byte) extract.Result {
	return s.orch.Extract(ctx, image)
}

// VerifyPurchaseProof checks a purchase screenshot against the declared order.
func (s *Service) VerifyPurchaseProof(ctx context.Context, image []byte, expectedOrderID string, expectedAmount float64) verify.PurchaseResult {
	v := common.NewValidator().
		Field("expected_order_id", expectedOrderID, common.Required).
		Field("expected_amount", expectedAmount, common.Positive)
	if v.HasErrors() {
		return verify.PurchaseResult{Verdict: s.invalid(ctx, "purchase", v)}
	}
	return s.verifier.Purchase(ctx, image, expectedOrderID, expectedAmount)
}

// VerifyRatingProof checks a review screenshot for the buyer and product. An
// empty reviewer name skips the reviewer check.
func (s *Service) VerifyRatingProof(ctx context.Context, image []byte, expectedBuyerName, expectedProductName, expectedReviewerName string) verify.RatingResult {
	v := common.NewValidator().
		Field("expected_buyer_name", expectedBuyerName, common.Required).
		Field("expected_product_name", expectedProductName, common.Required)
	if v.HasErrors() {
		return verify.RatingResult{Verdict: s.invalid(ctx, "rating", v)}
	}
	return s.verifier.Rating(ctx, image, expectedBuyerName, expectedProductName, expectedReviewerName)
}

// VerifyReturnWindowProof checks an order-detail screenshot for the declared
// order and a closed return window. An empty seller skips the seller check.
func (s *Service) VerifyReturnWindowProof(ctx context.Context, image []byte, expectedOrderID, expectedProductName string, expectedAmount float64, expectedSoldBy string) verify.ReturnWindowResult {
	v := common.NewValidator().
		Field("expected_order_id", expectedOrderID, common.Required).
		Field("expected_product_name", expectedProductName, common.Required).
		Field("expected_amount", expectedAmount, common.Positive)
	if v.HasErrors() {
		return verify.ReturnWindowResult{Verdict: s.invalid(ctx, "return_window", v)}
	}
	return s.verifier.ReturnWindow(ctx, image, expectedOrderID, expectedProductName, expectedAmount, expectedSoldBy)
}

func (s *Service) invalid(ctx context.Context, kind string, v *common.Validator) verify.Verdict {
	s.logger.Warn("service.input.invalid", "req_id", common.RequestIDFromContext(ctx), "check", kind, "error", v.ErrorMessage())
	notes := make([]string, 0, len(v.Errors())+1)
	for _, e := range v.Errors() {
		notes = append(notes, e.Field+" "+e.Message)
	}
	return verify.Verdict{
		Method: constants.MethodNone,
		Notes:  append(notes, constants.ManualVerificationNote),
	}
}

// Close drains the recognition pool and releases model clients. Later calls
// do nothing.
func (s *Service) Close() error {
	var errs []error
	s.closeOnce.Do(func() {
		for _, c := range s.closers {
			if err := c(); err != nil {
				errs = append(errs, err)
			}
		}
		s.logger.Info("service.closed")
	})
	return errors.Join(errs...)
}
