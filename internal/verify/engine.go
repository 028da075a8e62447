package verify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/orderproof/constants"
	"github.com/joseph-ayodele/orderproof/internal/common"
	"github.com/joseph-ayodele/orderproof/internal/extract"
	"github.com/joseph-ayodele/orderproof/internal/llm"
	"github.com/joseph-ayodele/orderproof/internal/utils"
)

// Engine checks proof screenshots against the values a buyer declared. It
// shares the recognition and model machinery of the extraction orchestrator.
type Engine struct {
	orch   *extract.Orchestrator
	logger *slog.Logger
}

func New(orch *extract.Orchestrator, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{orch: orch, logger: logger}
}

// Verdict carries the fields every verification result shares.
type Verdict struct {
	Confidence int                          `json:"confidence"`
	Method     constants.VerificationMethod `json:"method"`
	Note       string                       `json:"discrepancy_note,omitempty"`
	Notes      []string                     `json:"notes"`
	Model      string                       `json:"model,omitempty"`
}

func rejected(err error) Verdict {
	return Verdict{
		Method: constants.MethodNone,
		Notes:  []string{extract.Describe(err), constants.ManualVerificationNote},
	}
}

func crashed(r any) Verdict {
	return Verdict{
		Method: constants.MethodNone,
		Notes: []string{
			"internal error: " + common.SanitizeMessage(fmt.Errorf("%v", r)),
			constants.ManualVerificationNote,
		},
	}
}

// consult asks the model for a verdict of type T. ok is false when no model
// is configured or the chain produced nothing usable; note explains why.
func consult[T any](ctx context.Context, e *Engine, img utils.ImageInput, prompt string, schema *llm.Schema) (check T, model string, ok bool, note string) {
	a := e.orch.Adapter()
	if !a.Enabled() {
		return check, "", false, ""
	}
	start := time.Now()
	check, model, err := llm.Invoke[T](ctx, a, llm.Request{
		System:   llm.VerifySystemPrompt(),
		Prompt:   prompt,
		Image:    img.Data,
		MIMEType: img.MIMEType,
		Schema:   schema,
	})
	if err != nil {
		e.logger.Warn("verify.model.failed", "req_id", common.RequestIDFromContext(ctx),
			"kind", common.KindOf(err), "elapsed_ms", time.Since(start).Milliseconds())
		return check, "", false, "model check: " + extract.Describe(err)
	}
	e.logger.Debug("verify.model.ok", "req_id", common.RequestIDFromContext(ctx),
		"model", model, "elapsed_ms", time.Since(start).Milliseconds())
	return check, model, true, ""
}

// combine blends the model and recognizer confidences: agreement keeps the
// stronger one, disagreement averages them.
func combine(modelConf, recConf int, agree bool) int {
	if agree {
		return clamp(max(modelConf, recConf))
	}
	return clamp((modelConf + recConf) / 2)
}

func clamp(v int) int {
	return min(max(v, 0), 100)
}

func boolPtr(b bool) *bool { return &b }

// discrepancies collects the human-readable mismatches of a verdict.
type discrepancies []string

func (d *discrepancies) add(cond bool, format string, args ...any) {
	if !cond {
		*d = append(*d, fmt.Sprintf(format, args...))
	}
}

func (d discrepancies) String() string { return strings.Join(d, "; ") }

func (e *Engine) finish(ctx context.Context, kind string, v *Verdict, start time.Time) {
	if v.Notes == nil {
		v.Notes = []string{}
	}
	if v.Confidence < 50 {
		v.Notes = append(v.Notes, constants.ManualVerificationNote)
	}
	e.logger.Info("verify."+kind+".done", "req_id", common.RequestIDFromContext(ctx),
		"method", v.Method, "confidence", v.Confidence, "elapsed_ms", time.Since(start).Milliseconds())
}
