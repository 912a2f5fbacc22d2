package storage

import (
	"fmt"
	"math"
	"strings"
)

// CropRegion is a rectangle expressed in percentages of the source image.
type CropRegion struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// PixelRect is a crop rectangle in source image pixels.
type PixelRect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

const epsilon = 1e-9

func (r CropRegion) Validate() error {
	for name, v := range map[string]float64{"x": r.X, "y": r.Y, "width": r.Width, "height": r.Height} {
		if math.IsNaN(v) || v < 0 || v > 100 {
			return fmt.Errorf("crop %s must be between 0 and 100", name)
		}
	}
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("crop width and height must be positive")
	}
	if r.X+r.Width > 100+epsilon || r.Y+r.Height > 100+epsilon {
		return fmt.Errorf("crop region exceeds image bounds")
	}
	return nil
}

// IsFull reports whether the region covers the whole image.
func (r CropRegion) IsFull() bool {
	return r.X <= epsilon && r.Y <= epsilon && r.Width >= 100-epsilon && r.Height >= 100-epsilon
}

// PixelRect derives the pixel rectangle for an image of the given size.
// The result always lies inside the image and is at least 1x1.
func (r CropRegion) PixelRect(imgWidth, imgHeight int) PixelRect {
	x, w := toPixels(r.X, r.Width, imgWidth)
	y, h := toPixels(r.Y, r.Height, imgHeight)
	return PixelRect{X: x, Y: y, Width: w, Height: h}
}

func toPixels(offsetPct, sizePct float64, total int) (int, int) {
	if total <= 0 {
		return 0, 0
	}
	offset := int(math.Round(offsetPct / 100 * float64(total)))
	size := int(math.Round(sizePct / 100 * float64(total)))

	offset = clamp(offset, 0, total-1)
	size = clamp(size, 1, total-offset)
	return offset, size
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Supported output encodings.
const (
	FormatPNG  = "png"
	FormatJPG  = "jpg"
	FormatWebP = "webp"
	FormatAVIF = "avif"
)

// ParseFormat normalises an output format, defaulting to webp.
func ParseFormat(s string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(s)); f {
	case "":
		return FormatWebP, nil
	case "jpeg":
		return FormatJPG, nil
	case FormatPNG, FormatJPG, FormatWebP, FormatAVIF:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported image format %q", s)
	}
}

// Transform describes a derived rendition of a stored image.
type Transform struct {
	Crop   *PixelRect
	Format string
}

// String renders the transform as a Cloudinary transformation chain.
func (t Transform) String() string {
	var parts []string
	if t.Crop != nil {
		parts = append(parts, fmt.Sprintf("c_crop,x_%d,y_%d,w_%d,h_%d", t.Crop.X, t.Crop.Y, t.Crop.Width, t.Crop.Height))
	}
	if t.Format != "" {
		parts = append(parts, "f_"+t.Format)
	}
	return strings.Join(parts, "/")
}
