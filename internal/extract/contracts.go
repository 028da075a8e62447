package extract

import (
	"context"
	"time"

	"github.com/joseph-ayodele/orderproof/constants"
	"github.com/joseph-ayodele/orderproof/internal/fields"
	"github.com/joseph-ayodele/orderproof/internal/imageprep"
	"github.com/joseph-ayodele/orderproof/internal/ocr"
)

// Recognizer runs one recognition pass over an image. *ocr.Pool implements it.
type Recognizer interface {
	Recognize(ctx context.Context, img []byte, mode ocr.PageSegMode) (string, error)
	Capacity() int
}

// VariantSource renders the images handed to recognition. *imageprep.Pipeline
// implements it.
type VariantSource interface {
	Variants(ctx context.Context, img []byte) []imageprep.Variant
}

// FieldReader reads order fields out of recognized text. *fields.Extractor
// implements it.
type FieldReader interface {
	Extract(text string) fields.Partial
	Sanitizer() fields.Sanitizer
	OrderIDRejected(v string) bool
	PlatformOf(id string) string
}

// Field names used as keys in Result.Sources.
const (
	FieldOrderID     = "order_id"
	FieldAmount      = "amount"
	FieldOrderDate   = "order_date"
	FieldSoldBy      = "sold_by"
	FieldProductName = "product_name"
)

// PassResult describes one recognition pass.
type PassResult struct {
	Variant   string        `json:"variant"`
	Chars     int           `json:"chars"`
	OK        bool          `json:"ok"`
	Elapsed   time.Duration `json:"elapsed"`
	Error     string        `json:"error,omitempty"`
	TextScore float32       `json:"text_score,omitempty"` // how much the text looks like an order page, 0..1

	text    string
	partial fields.Partial
	err     error
}

// Result is the outcome of ExtractOrderDetails. Unset fields are zero values.
type Result struct {
	OrderID     string  `json:"order_id,omitempty"`
	Platform    string  `json:"platform,omitempty"`
	Amount      float64 `json:"amount,omitempty"`
	OrderDate   string  `json:"order_date,omitempty"`
	SoldBy      string  `json:"sold_by,omitempty"`
	ProductName string  `json:"product_name,omitempty"`

	Confidence int                        `json:"confidence"`
	Sources    map[string]constants.Stage `json:"sources,omitempty"`
	Notes      []string                   `json:"notes"`
	Passes     []PassResult               `json:"passes,omitempty"`
	Model      string                     `json:"model,omitempty"`
}

// Recognition is the merged outcome of all recognition passes over one image.
type Recognition struct {
	Partial fields.Partial
	Passes  []PassResult
	Notes   []string

	best int // index into Passes of the most productive pass, -1 when none
}

// Texts returns the recognized text of every successful pass in variant order.
func (r Recognition) Texts() []string {
	out := make([]string, 0, len(r.Passes))
	for _, p := range r.Passes {
		if p.OK && p.text != "" {
			out = append(out, p.text)
		}
	}
	return out
}

// BestText is the text of the pass that yielded the most, or "".
func (r Recognition) BestText() string {
	if r.best < 0 || r.best >= len(r.Passes) {
		return ""
	}
	return r.Passes[r.best].text
}
