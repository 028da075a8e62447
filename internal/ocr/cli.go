package ocr

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// CLIEngine shells out to the tesseract binary, streaming the image through stdin.
type CLIEngine struct {
	cfg    Config
	runner Runner
	psm    PageSegMode
}

func NewCLIEngine(cfg Config, runner Runner) *CLIEngine {
	return &CLIEngine{cfg: cfg, runner: runner, psm: PSMAuto}
}

func (c *CLIEngine) SetPageSegMode(mode PageSegMode) error {
	if mode < 0 || mode > 13 {
		return fmt.Errorf("invalid page segmentation mode %d", mode)
	}
	c.psm = mode
	return nil
}

func (c *CLIEngine) Recognize(ctx context.Context, img []byte) (string, error) {
	// tesseract stdin stdout -l <langs> --psm <n>
	args := []string{"stdin", "stdout", "-l", strings.Join(c.cfg.Languages, "+"), "--psm", strconv.Itoa(int(c.psm))}
	if c.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", c.cfg.TessdataDir)
	}
	out, errb, err := c.runner.Run(ctx, img, c.cfg.TesseractPath, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, truncate(strings.TrimSpace(string(errb)), 512))
	}
	return reBoxNoise.ReplaceAllString(string(out), ""), nil
}

func (c *CLIEngine) Close() error { return nil }
