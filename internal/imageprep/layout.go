package imageprep

import (
	"image"

	"github.com/joseph-ayodele/orderproof/constants"
)

// Rect is a crop window in fractions of the image size.
type Rect struct {
	X0, Y0, X1, Y1 float64
}

// Region is a named crop window.
type Region struct {
	Name string
	Rect Rect
}

// Classify infers the capturing device from the aspect ratio. Landscape wins
// over tablet when both ranges match.
func Classify(width, height int) constants.Layout {
	if width <= 0 || height <= 0 {
		return constants.LayoutPhone
	}
	ratio := float64(width) / float64(height)
	switch {
	case ratio > 1:
		return constants.LayoutLandscape
	case ratio > 0.65 && ratio < 1.55:
		return constants.LayoutTablet
	default:
		return constants.LayoutPhone
	}
}

var regions = map[constants.Layout][]Region{
	// desktop order pages keep details in a centered column or a right-hand summary box
	constants.LayoutLandscape: {
		{Name: "crop-center", Rect: Rect{0.2, 0, 0.8, 1}},
		{Name: "crop-right", Rect: Rect{0.5, 0, 1, 1}},
		{Name: "crop-left", Rect: Rect{0, 0, 0.5, 1}},
		{Name: "crop-top-center", Rect: Rect{0.15, 0, 0.85, 0.5}},
	},
	constants.LayoutTablet: {
		{Name: "crop-wide-center", Rect: Rect{0.1, 0.15, 0.9, 0.6}},
		{Name: "crop-top", Rect: Rect{0, 0, 1, 0.4}},
		{Name: "crop-lower", Rect: Rect{0.1, 0.4, 0.9, 0.9}},
		{Name: "crop-middle", Rect: Rect{0, 0.25, 1, 0.75}},
	},
	constants.LayoutPhone: {
		{Name: "crop-top", Rect: Rect{0, 0, 1, 0.35}},
		{Name: "crop-upper-middle", Rect: Rect{0, 0.2, 1, 0.55}},
		{Name: "crop-middle", Rect: Rect{0, 0.35, 1, 0.7}},
		{Name: "crop-bottom", Rect: Rect{0, 0.6, 1, 1}},
		{Name: "crop-top-half", Rect: Rect{0, 0, 1, 0.5}},
		{Name: "crop-bottom-half", Rect: Rect{0, 0.5, 1, 1}},
	},
}

// RegionsFor returns the crop windows tried for layout.
func RegionsFor(layout constants.Layout) []Region {
	return regions[layout]
}

// pixelRect maps r onto bounds, clamped. ok is false when nothing remains.
func (r Rect) pixelRect(bounds image.Rectangle) (image.Rectangle, bool) {
	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	px := image.Rect(
		bounds.Min.X+int(clamp01(r.X0)*w),
		bounds.Min.Y+int(clamp01(r.Y0)*h),
		bounds.Min.X+int(clamp01(r.X1)*w),
		bounds.Min.Y+int(clamp01(r.Y1)*h),
	).Intersect(bounds)
	return px, !px.Empty()
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
