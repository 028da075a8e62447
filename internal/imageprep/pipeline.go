package imageprep

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"runtime"
	"time"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/orderproof/constants"
)

// Variant is one rendition of the input handed to recognition.
type Variant struct {
	Label string
	Data  []byte
	// Region is set for crop variants.
	Region *Region
}

// Config tunes the pipeline.
type Config struct {
	Timeout      time.Duration
	WorkingWidth int
}

// Pipeline produces recognition variants for an order screenshot.
type Pipeline struct {
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = constants.DefaultPrepTimeout
	}
	if cfg.WorkingWidth <= 0 {
		cfg.WorkingWidth = constants.DefaultWorkingWidth
	}
	return &Pipeline{cfg: cfg, logger: logger}
}

// Variants returns the original image first, then the enhanced renditions and
// the layout crops. Any failure or timeout yields just the original.
func (p *Pipeline) Variants(ctx context.Context, img []byte) []Variant {
	original := []Variant{{Label: "original", Data: img}}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	type result struct {
		variants []Variant
		err      error
	}
	ch := make(chan result, 1)
	start := time.Now()
	go func() {
		v, err := p.build(ctx, img)
		ch <- result{variants: v, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			p.logger.Warn("prep.variants.failed", "error", r.err, "elapsed_ms", time.Since(start).Milliseconds())
			return original
		}
		p.logger.Debug("prep.variants.ok", "count", len(r.variants), "elapsed_ms", time.Since(start).Milliseconds())
		return r.variants
	case <-ctx.Done():
		p.logger.Warn("prep.variants.timeout", "timeout_ms", p.cfg.Timeout.Milliseconds())
		return original
	}
}

type job struct {
	label  string
	region *Region
	render func() image.Image
}

func (p *Pipeline) build(ctx context.Context, img []byte) ([]Variant, error) {
	src, err := imaging.Decode(bytes.NewReader(img), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bounds := src.Bounds()
	layout := Classify(bounds.Dx(), bounds.Dy())

	jobs := []job{
		{label: "full-enhanced", render: func() image.Image { return p.enhance(src) }},
		{label: "high-contrast", render: func() image.Image { return p.highContrast(src) }},
		{label: "inverted", render: func() image.Image { return p.enhance(imaging.Invert(src)) }},
	}
	for _, rg := range RegionsFor(layout) {
		px, ok := rg.Rect.pixelRect(bounds)
		if !ok {
			continue
		}
		jobs = append(jobs, job{
			label:  rg.Name,
			region: &rg,
			render: func() image.Image { return p.enhance(imaging.Crop(src, px)) },
		})
	}

	out := make([]Variant, len(jobs)+1)
	out[0] = Variant{Label: "original", Data: img}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, j := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := encodePNG(j.render())
			if err != nil {
				return fmt.Errorf("%s: %w", j.label, err)
			}
			out[i+1] = Variant{Label: j.label, Data: data, Region: j.region}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// enhance is the grayscale, normalize, sharpen chain, upscaled to the working width.
func (p *Pipeline) enhance(img image.Image) image.Image {
	g := imaging.Grayscale(img)
	g = stretch(g)
	g = imaging.Sharpen(g, 1.0)
	return p.upscale(g)
}

func (p *Pipeline) highContrast(img image.Image) image.Image {
	g := imaging.Grayscale(img)
	g = linear(g, 1.8, -0.8*128)
	g = imaging.Sharpen(g, 2.0)
	return p.upscale(g)
}

func (p *Pipeline) upscale(img *image.NRGBA) image.Image {
	if img.Bounds().Dx() >= p.cfg.WorkingWidth {
		return img
	}
	return imaging.Resize(img, p.cfg.WorkingWidth, 0, imaging.Lanczos)
}

// stretch maps the 1st..99th luminance percentile of a grayscale image onto 0..255.
func stretch(g *image.NRGBA) *image.NRGBA {
	var hist [256]int
	total := 0
	for i := 0; i < len(g.Pix); i += 4 {
		hist[g.Pix[i]]++
		total++
	}
	if total == 0 {
		return g
	}
	cut := total / 100
	lo, hi := 0, 255
	for acc := 0; lo < 255; lo++ {
		if acc += hist[lo]; acc > cut {
			break
		}
	}
	for acc := 0; hi > 0; hi-- {
		if acc += hist[hi]; acc > cut {
			break
		}
	}
	if hi <= lo {
		return g
	}
	scale := 255.0 / float64(hi-lo)
	return linear(g, scale, -float64(lo)*scale)
}

// linear applies v' = a*v + b per channel, clamped.
func linear(g *image.NRGBA, a, b float64) *image.NRGBA {
	return imaging.AdjustFunc(g, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{R: clampByte(a*float64(c.R) + b), G: clampByte(a*float64(c.G) + b), B: clampByte(a*float64(c.B) + b), A: c.A}
	})
}

func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
