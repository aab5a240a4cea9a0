// Package tissue estimates how much of a slide thumbnail is covered by
// tissue rather than empty glass.
package tissue

import (
	"image"

	"github.com/anthonynsimon/bild/blur"
	"github.com/lucasb-eyer/go-colorful"
)

// Options tune the glass/tissue classification.
type Options struct {
	// BlurRadius smooths scanner noise before classification. Zero disables it.
	BlurRadius float64
	// MinDistance is the CIE76 distance from Background above which a pixel
	// counts as tissue.
	MinDistance float64
	// Background is the color of empty glass.
	Background colorful.Color
}

// DefaultOptions suit brightfield thumbnails on a white background.
func DefaultOptions() Options {
	return Options{
		BlurRadius:  1.5,
		MinDistance: 0.12,
		Background:  colorful.Color{R: 1, G: 1, B: 1},
	}
}

// Result summarizes one thumbnail.
type Result struct {
	Coverage float64 `json:"coverage" yaml:"coverage"`
	Pixels   int     `json:"pixels" yaml:"pixels"`
	Tissue   int     `json:"tissue_pixels" yaml:"tissue_pixels"`
	// Mean is the average tissue color as hex, empty without tissue.
	Mean string `json:"mean_color,omitempty" yaml:"mean_color,omitempty"`
}

// Coverage classifies every pixel of img and returns the tissue fraction.
func Coverage(img image.Image, opts Options) Result {
	res := Result{Pixels: img.Bounds().Dx() * img.Bounds().Dy()}
	if res.Pixels == 0 {
		return res
	}
	if opts.BlurRadius > 0 {
		img = blur.Gaussian(img, opts.BlurRadius)
	}

	b := img.Bounds()

	var sumL, sumA, sumB float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c, ok := colorful.MakeColor(img.At(x, y))
			if !ok {
				// fully transparent
				continue
			}
			if c.DistanceCIE76(opts.Background) <= opts.MinDistance {
				continue
			}
			res.Tissue++
			l, a, bb := c.Lab()
			sumL += l
			sumA += a
			sumB += bb
		}
	}

	res.Coverage = float64(res.Tissue) / float64(res.Pixels)
	if res.Tissue > 0 {
		n := float64(res.Tissue)
		res.Mean = colorful.Lab(sumL/n, sumA/n, sumB/n).Clamped().Hex()
	}
	return res
}
