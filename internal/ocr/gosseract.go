package ocr

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// GosseractEngine wraps one tesseract client through cgo.
type GosseractEngine struct {
	client *gosseract.Client
}

func NewGosseractEngine(languages []string) (*GosseractEngine, error) {
	client := gosseract.NewClient()
	if err := client.SetLanguage(languages...); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("gosseract set language: %w", err)
	}
	return &GosseractEngine{client: client}, nil
}

func (g *GosseractEngine) SetPageSegMode(mode PageSegMode) error {
	return g.client.SetPageSegMode(gosseract.PageSegMode(mode))
}

// Recognize runs a blocking cgo call; ctx is honoured only before it starts.
func (g *GosseractEngine) Recognize(ctx context.Context, img []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := g.client.SetImageFromBytes(img); err != nil {
		return "", fmt.Errorf("gosseract set image: %w", err)
	}
	text, err := g.client.Text()
	if err != nil {
		return "", fmt.Errorf("gosseract text: %w", err)
	}
	return text, nil
}

func (g *GosseractEngine) Close() error {
	return g.client.Close()
}
