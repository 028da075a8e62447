package ocr

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/orderproof/internal/common"
)

// PageSegMode mirrors tesseract's --psm values.
type PageSegMode int

const (
	PSMAuto        PageSegMode = 3
	PSMSingleBlock PageSegMode = 6
	PSMSparseText  PageSegMode = 11
)

// Engine is one recognition handle. Implementations are not safe for
// concurrent use; the Pool hands each one to a single caller at a time.
type Engine interface {
	SetPageSegMode(mode PageSegMode) error
	Recognize(ctx context.Context, img []byte) (string, error)
	Close() error
}

// Factory creates a fresh Engine.
type Factory func() (Engine, error)

// Config selects and parameterizes the engine implementation.
type Config struct {
	Engine        string // gosseract | cli
	Languages     []string
	TesseractPath string
	TessdataDir   string
}

// NewFactory returns the Factory for cfg.Engine.
func NewFactory(cfg Config, logger *slog.Logger) (Factory, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{"eng"}
	}
	switch cfg.Engine {
	case "", "gosseract":
		return func() (Engine, error) { return NewGosseractEngine(cfg.Languages) }, nil
	case "cli":
		if cfg.TesseractPath == "" {
			cfg.TesseractPath = "tesseract"
		}
		return func() (Engine, error) {
			return NewCLIEngine(cfg, execRunner{logger: logger}), nil
		}, nil
	default:
		return nil, common.InputError("CONFIG_ERROR", fmt.Sprintf("unknown OCR engine %q", cfg.Engine))
	}
}
