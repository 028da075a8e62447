package llm

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/orderproof/constants"
	"github.com/joseph-ayodele/orderproof/internal/common"
)

// AdapterConfig controls the model fallback chain.
type AdapterConfig struct {
	Models          []string
	CallTimeout     time.Duration
	MaxOutputTokens int32
	Temperature     float32
}

// Adapter calls a Generator over an ordered list of model versions and turns
// the first usable reply into a typed value.
type Adapter struct {
	gen    Generator
	cfg    AdapterConfig
	logger *slog.Logger
}

// Attempt records one failed model call.
type Attempt struct {
	Model string
	Err   error
}

// ChainError is returned when every model in the chain failed.
type ChainError struct {
	Attempts []Attempt
}

func (e *ChainError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, a.Model+": "+a.Err.Error())
	}
	return "all models failed: " + strings.Join(parts, "; ")
}

func (e *ChainError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}
	return errs
}

// kind is timeout only if every attempt timed out, parse only if every attempt
// produced an unusable reply, external otherwise.
func (e *ChainError) kind() common.ErrorKind {
	if len(e.Attempts) == 0 {
		return common.KindExternal
	}
	first := common.KindOf(e.Attempts[0].Err)
	for _, a := range e.Attempts[1:] {
		if common.KindOf(a.Err) != first {
			return common.KindExternal
		}
	}
	if first == common.KindTimeout || first == common.KindParse {
		return first
	}
	return common.KindExternal
}

// NewAdapter returns nil when gen is nil, which callers treat as "no model".
func NewAdapter(gen Generator, cfg AdapterConfig, logger *slog.Logger) *Adapter {
	if gen == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = constants.DefaultModelCallTimeout
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = constants.DefaultMaxOutputTokens
	}
	return &Adapter{gen: gen, cfg: cfg, logger: logger}
}

// Enabled reports whether the adapter can make calls.
func (a *Adapter) Enabled() bool {
	return a != nil && a.gen != nil && len(a.cfg.Models) > 0
}

// Call runs req through the model chain and decodes the first reply that
// validates against req.Schema into out. It returns the model that answered.
func (a *Adapter) Call(ctx context.Context, req Request, out any) (string, error) {
	if !a.Enabled() {
		return "", common.ErrNoModel
	}
	if req.MaxOutputTokens <= 0 {
		req.MaxOutputTokens = a.cfg.MaxOutputTokens
	}
	if req.Temperature == 0 {
		req.Temperature = a.cfg.Temperature
	}
	rid := common.RequestIDFromContext(ctx)

	chain := &ChainError{}
	for _, model := range a.cfg.Models {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		start := time.Now()
		a.logger.Debug("llm.call.start", "req_id", rid, "provider", a.gen.Name(), "model", model,
			"prompt_len", len(req.Prompt), "image_bytes", len(req.Image))

		text, err := a.generate(ctx, model, req)
		if err == nil {
			err = decode(text, req.Schema, out)
		}
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			a.logger.Warn("llm.call.failed", "req_id", rid, "model", model,
				"kind", common.KindOf(err), "error", common.SanitizeMessage(err),
				"elapsed_ms", time.Since(start).Milliseconds())
			chain.Attempts = append(chain.Attempts, Attempt{Model: model, Err: err})
			continue
		}
		a.logger.Info("llm.call.ok", "req_id", rid, "model", model,
			"elapsed_ms", time.Since(start).Milliseconds())
		return model, nil
	}
	return "", common.NewAppError(chain.kind(), "MODEL_CHAIN_EXHAUSTED", "no model produced a usable reply", chain)
}

// generate races one provider call against the per-call timeout.
func (a *Adapter) generate(ctx context.Context, model string, req Request) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.cfg.CallTimeout)
	defer cancel()

	type reply struct {
		text string
		err  error
	}
	done := make(chan reply, 1)
	go func() {
		text, err := a.gen.Generate(callCtx, model, req)
		done <- reply{text: text, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			if errors.Is(r.err, context.DeadlineExceeded) && ctx.Err() == nil {
				return "", common.TimeoutError("MODEL_TIMEOUT", model+" timed out after "+a.cfg.CallTimeout.String())
			}
			var ae *common.AppError
			if errors.As(r.err, &ae) {
				return "", r.err
			}
			return "", common.ExternalError("MODEL_FAILED", model+" call failed", r.err)
		}
		return r.text, nil
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", common.TimeoutError("MODEL_TIMEOUT", model+" timed out after "+a.cfg.CallTimeout.String())
	}
}

// decode recovers, normalizes, validates and unmarshals a model reply.
func decode(text string, schema *Schema, out any) error {
	raw, err := RecoverJSON(text)
	if err != nil {
		return err
	}
	raw, _, err = NormalizeReply(raw)
	if err != nil {
		return common.ParseError("MODEL_BAD_JSON", "normalize reply", err)
	}
	if schema != nil {
		if err := schema.Validate(raw); err != nil {
			return common.ParseError("MODEL_SCHEMA_MISMATCH", "reply does not match schema", err)
		}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return common.ParseError("MODEL_BAD_JSON", "unmarshal reply", err)
	}
	return nil
}

// Invoke is the typed form of Call.
func Invoke[T any](ctx context.Context, a *Adapter, req Request) (T, string, error) {
	var out T
	if a == nil {
		return out, "", common.ErrNoModel
	}
	model, err := a.Call(ctx, req, &out)
	if err != nil {
		var zero T
		return zero, "", err
	}
	return out, model, nil
}

// EstimateTokens approximates the prompt cost of a request: about four
// characters per text token and 258 tokens per 768px image tile.
func EstimateTokens(promptChars, width, height int) int {
	tokens := promptChars / 4
	if width > 0 && height > 0 {
		tiles := ceilDiv(width, 768) * ceilDiv(height, 768)
		tokens += tiles * 258
	}
	return tokens
}

func ceilDiv(a, b int) int { return (a + b - 1) / b }
