package render

import (
	"fmt"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
)

const (
	// regionAlpha is the opacity of an unfitted region's shading.
	regionAlpha = 0.3

	// spanAlpha is the opacity of a fitted region's FWHM span.
	spanAlpha = 0.15

	// brightnessThreshold separates light backgrounds, which get black text,
	// from dark ones, which get white text.
	brightnessThreshold = 128
)

// ParseColor parses a "#rrggbb" colour.
func ParseColor(hex string) (colorful.Color, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return colorful.Color{}, fmt.Errorf("parsing colour %q: %w", hex, err)
	}
	return c, nil
}

// WithAlpha returns c with the given opacity in [0, 1].
func WithAlpha(c colorful.Color, alpha float64) color.NRGBA {
	r, g, b := c.Clamped().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: uint8(alpha*255 + 0.5)}
}

// Brightness returns the perceived brightness of c in [0, 255].
func Brightness(c colorful.Color) float64 {
	r, g, b := c.Clamped().RGB255()
	return (float64(r)*299 + float64(g)*587 + float64(b)*114) / 1000
}

// TextColor returns black for light backgrounds and white for dark ones.
func TextColor(background colorful.Color) color.Color {
	if Brightness(background) > brightnessThreshold {
		return color.Black
	}
	return color.White
}
