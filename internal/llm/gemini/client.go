package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/joseph-ayodele/orderproof/internal/common"
	"github.com/joseph-ayodele/orderproof/internal/llm"
)

// Config for the Gemini client.
type Config struct {
	APIKey string
}

// Client implements llm.Generator on top of the Gemini API.
type Client struct {
	client *genai.Client
	logger *slog.Logger
}

var _ llm.Generator = (*Client)(nil)

func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, common.ErrNoModel
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Client{client: cl, logger: logger}, nil
}

func (c *Client) Name() string { return "gemini" }

// Generate sends one request with JSON output constrained by req.Schema.
func (c *Client) Generate(ctx context.Context, model string, req llm.Request) (string, error) {
	start := time.Now()
	m := c.client.GenerativeModel(model)
	temp := req.Temperature
	maxTokens := req.MaxOutputTokens
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      &temp,
		MaxOutputTokens:  &maxTokens,
		ResponseMIMEType: "application/json",
	}
	if req.Schema != nil {
		m.ResponseSchema = toGenai(req.Schema)
	}
	if req.System != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}

	parts := []genai.Part{genai.Text(req.Prompt)}
	if len(req.Image) > 0 {
		parts = append(parts, genai.Blob{MIMEType: req.MIMEType, Data: req.Image})
	}

	resp, err := m.GenerateContent(ctx, parts...)
	if err != nil {
		c.logger.Debug("llm.gemini.error", "model", model, "error", common.SanitizeMessage(err),
			"elapsed_ms", time.Since(start).Milliseconds())
		if errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		return "", common.ExternalError("GEMINI_FAILED", "generate content", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", common.ExternalError("GEMINI_EMPTY", "no candidates in response", nil)
	}
	cand := resp.Candidates[0]
	if cand.FinishReason == genai.FinishReasonMaxTokens {
		return "", common.ParseError("GEMINI_TRUNCATED", "response truncated at max output tokens", nil)
	}

	var b strings.Builder
	for _, part := range cand.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	if b.Len() == 0 {
		return "", common.ExternalError("GEMINI_EMPTY", "empty response text", nil)
	}
	c.logger.Debug("llm.gemini.ok", "model", model, "chars", b.Len(),
		"elapsed_ms", time.Since(start).Milliseconds())
	return b.String(), nil
}

func (c *Client) Close() error { return c.client.Close() }

// toGenai translates the neutral schema; bounds and patterns are enforced by
// local validation only.
func toGenai(s *llm.Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        genaiType(s.Type),
		Description: s.Description,
		Enum:        s.Enum,
		Required:    s.Required,
	}
	if s.Items != nil {
		out.Items = toGenai(s.Items)
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for k, v := range s.Properties {
			out.Properties[k] = toGenai(v)
		}
	}
	return out
}

func genaiType(t llm.Type) genai.Type {
	switch t {
	case llm.TypeObject:
		return genai.TypeObject
	case llm.TypeNumber:
		return genai.TypeNumber
	case llm.TypeInteger:
		return genai.TypeInteger
	case llm.TypeBoolean:
		return genai.TypeBoolean
	case llm.TypeArray:
		return genai.TypeArray
	default:
		return genai.TypeString
	}
}
