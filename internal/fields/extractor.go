package fields

import (
	"os"

	"github.com/joseph-ayodele/orderproof/constants"
)

// Config tunes the extractor.
type Config struct {
	MaxPlausibleAmount float64
	// Platforms replaces the built-in table when non-empty.
	Platforms       []PlatformPattern
	InternalMarkers []string
}

// Extractor reads order fields out of recognized text with deterministic
// rules. It holds no mutable state and is safe for concurrent use.
type Extractor struct {
	orderIDs  orderIDScanner
	amounts   amountScanner
	products  productScanner
	sanitizer Sanitizer
}

func NewExtractor(cfg Config) *Extractor {
	if cfg.MaxPlausibleAmount <= 0 {
		cfg.MaxPlausibleAmount = constants.DefaultMaxPlausibleAmount
	}
	platforms := cfg.Platforms
	if len(platforms) == 0 {
		platforms = DefaultPlatforms()
	}
	markers := cfg.InternalMarkers
	if markers == nil {
		markers = defaultInternalMarkers
	}
	products := newProductScanner(platforms)
	return &Extractor{
		orderIDs:  orderIDScanner{platforms: platforms, markers: markers},
		amounts:   amountScanner{ceiling: cfg.MaxPlausibleAmount},
		products:  products,
		sanitizer: Sanitizer{ceiling: cfg.MaxPlausibleAmount, products: products},
	}
}

// NewExtractorFromFile builds an extractor whose platform table is the
// built-in one overlaid with the patterns in path. An empty path uses the
// built-in table.
func NewExtractorFromFile(cfg Config, path string) (*Extractor, error) {
	if path == "" {
		return NewExtractor(cfg), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	extra, err := LoadPlatforms(f)
	if err != nil {
		return nil, err
	}
	base := cfg.Platforms
	if len(base) == 0 {
		base = DefaultPlatforms()
	}
	cfg.Platforms = MergePlatforms(base, extra)
	return NewExtractor(cfg), nil
}

// Extract runs every field rule over text. It never fails; unreadable text
// simply yields an empty Partial.
func (e *Extractor) Extract(text string) Partial {
	var p Partial
	if text == "" {
		return p
	}

	p.Candidates = e.orderIDs.scan(text)
	if len(p.Candidates) > 0 && p.Candidates[0].Score >= minOrderIDScore {
		best := p.Candidates[0]
		p.OrderID, p.OrderIDScore, p.OrderPlatform = best.Value, best.Score, best.Platform
	}

	p.Amount, p.AmountScore = e.amounts.scan(text, p.OrderID)
	p.OrderDate, p.OrderDateScore = scanDate(text)
	p.SoldBy, p.SoldByScore = scanSeller(text)
	p.ProductName, p.ProductScore = e.products.scan(text)

	p, _ = e.sanitizer.Apply(p)
	return p
}

// Sanitizer exposes the filters for values that did not come from Extract.
func (e *Extractor) Sanitizer() Sanitizer { return e.sanitizer }


// OrderIDRejected reports whether v fails the order-id gate: wrong length,
// too few digits, an internal identifier shape or an internal marker.
func (e *Extractor) OrderIDRejected(v string) bool { return e.orderIDs.rejected(cleanID(v)) }

// PlatformOf returns the platform whose pattern matches id exactly, or "".
// Patterns that need the platform named in the text are skipped.
func (e *Extractor) PlatformOf(id string) string {
	id = cleanID(id)
	for _, p := range e.orderIDs.platforms {
		if p.RequireMention || p.re == nil {
			continue
		}
		if loc := p.re.FindStringIndex(id); loc != nil && loc[0] == 0 && loc[1] == len(id) {
			return p.Name
		}
	}
	return ""
}

// OrderIDKey is the comparison form of an order id: letters and digits only,
// upper-cased.
func OrderIDKey(v string) string { return normalizeKey(v) }
