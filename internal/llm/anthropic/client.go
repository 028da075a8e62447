package anthropic

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/joseph-ayodele/orderproof/internal/common"
	"github.com/joseph-ayodele/orderproof/internal/llm"
)

// Config for the Anthropic client.
type Config struct {
	APIKey  string
	BaseURL string // optional, for proxies
}

// Client implements llm.Generator on top of the Anthropic Messages API.
type Client struct {
	client anthropic.Client
	logger *slog.Logger
}

var _ llm.Generator = (*Client)(nil)

func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, common.ErrNoModel
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Client{
		client: anthropic.NewClient(opts...),
		logger: logger,
	}, nil
}

func (c *Client) Name() string { return "anthropic" }

// Generate sends one message. The API has no response schema, so the JSON
// Schema is appended to the prompt.
func (c *Client) Generate(ctx context.Context, model string, req llm.Request) (string, error) {
	start := time.Now()

	prompt := req.Prompt
	if req.Schema != nil {
		schema, _ := json.Marshal(req.Schema.JSONSchema())
		prompt += "\n\nJSON Schema:\n" + string(schema)
	}

	var blocks []anthropic.ContentBlockParamUnion
	if len(req.Image) > 0 {
		blocks = append(blocks, anthropic.NewImageBlockBase64(req.MIMEType, base64.StdEncoding.EncodeToString(req.Image)))
	}
	blocks = append(blocks, anthropic.NewTextBlock(prompt))

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   int64(req.MaxOutputTokens),
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)},
		Temperature: anthropic.Float(float64(req.Temperature)),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		c.logger.Debug("llm.anthropic.error", "model", model, "error", common.SanitizeMessage(err),
			"elapsed_ms", time.Since(start).Milliseconds())
		if errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		return "", common.ExternalError("ANTHROPIC_FAILED", "create message", err)
	}
	if msg.StopReason == anthropic.StopReasonMaxTokens {
		return "", common.ParseError("ANTHROPIC_TRUNCATED", "response truncated at max tokens", nil)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", common.ExternalError("ANTHROPIC_EMPTY", "empty response text", nil)
	}
	c.logger.Debug("llm.anthropic.ok", "model", model, "chars", b.Len(),
		"elapsed_ms", time.Since(start).Milliseconds())
	return b.String(), nil
}

func (c *Client) Close() error { return nil }
