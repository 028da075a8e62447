// Package extracttest provides in-memory stand-ins for the recognition and
// model collaborators of the extraction pipeline.
package extracttest

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/orderproof/internal/imageprep"
	"github.com/joseph-ayodele/orderproof/internal/llm"
	"github.com/joseph-ayodele/orderproof/internal/ocr"
)

// PNG returns an encoded w×h grayscale image.
func PNG(w, h int) []byte {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8((x + y) % 256)})
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

// QuietLogger discards everything.
func QuietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Variants yields one variant per label; each variant's data is its label.
type Variants struct {
	Labels []string
}

func (v Variants) Variants(_ context.Context, _ []byte) []imageprep.Variant {
	out := make([]imageprep.Variant, 0, len(v.Labels))
	for _, l := range v.Labels {
		out = append(out, imageprep.Variant{Label: l, Data: []byte(l)})
	}
	return out
}

// Pass scripts the outcome of recognizing one variant.
type Pass struct {
	Text  string
	Err   error
	Delay time.Duration
	Panic bool
}

// Recognizer answers from a script keyed by variant label. Unscripted variants
// recognize as empty text.
type Recognizer struct {
	Script map[string]Pass
	Size   int

	mu    sync.Mutex
	calls []string
	modes map[string]ocr.PageSegMode
}

func (r *Recognizer) Recognize(ctx context.Context, img []byte, mode ocr.PageSegMode) (string, error) {
	label := string(img)
	r.mu.Lock()
	r.calls = append(r.calls, label)
	if r.modes == nil {
		r.modes = map[string]ocr.PageSegMode{}
	}
	r.modes[label] = mode
	p := r.Script[label]
	r.mu.Unlock()

	if p.Panic {
		panic("recognizer exploded")
	}
	if p.Delay > 0 {
		select {
		case <-time.After(p.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return p.Text, p.Err
}

func (r *Recognizer) Capacity() int {
	if r.Size <= 0 {
		return 2
	}
	return r.Size
}

// Calls returns the labels recognized so far, in call order.
func (r *Recognizer) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// Mode returns the page segmentation mode used for label.
func (r *Recognizer) Mode(label string) ocr.PageSegMode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.modes[label]
}

// Generator replies with Replies in order, repeating the last one.
type Generator struct {
	Replies []string
	Err     error

	mu       sync.Mutex
	requests []llm.Request
}

func (g *Generator) Name() string { return "fake" }

func (g *Generator) Generate(_ context.Context, _ string, req llm.Request) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.Err != nil {
		return "", g.Err
	}
	if len(g.Replies) == 0 {
		return "", nil
	}
	i := min(len(g.requests)-1, len(g.Replies)-1)
	return g.Replies[i], nil
}

func (g *Generator) Close() error { return nil }

// Requests returns every request received.
func (g *Generator) Requests() []llm.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]llm.Request(nil), g.requests...)
}

// Adapter wraps g in a single-model adapter.
func Adapter(g *Generator) *llm.Adapter {
	return llm.NewAdapter(g, llm.AdapterConfig{Models: []string{"fake-1"}, CallTimeout: time.Second}, QuietLogger())
}
