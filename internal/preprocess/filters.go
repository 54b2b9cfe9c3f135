package preprocess

import (
	"image"

	"github.com/anthonynsimon/bild/effect"
)

// Median3 applies a 3x3 median filter. Edges are replicated.
func Median3(g *image.Gray) *image.Gray {
	return ToGray(effect.Median(g, 1))
}

// Unsharp sharpens g as amount*g + (1-amount)*blur(g), so amount is the
// weight of the original and amount-1 the strength of the mask.
func Unsharp(g *image.Gray, amount, sigma float64) *image.Gray {
	if amount <= 1 {
		return g
	}
	return ToGray(effect.UnsharpMask(g, sigma, amount-1))
}
