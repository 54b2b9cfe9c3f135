package preprocess

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

const (
	skewSampleWidth = 800
	skewMinAngle    = 0.2
)

// EstimateSkew returns the rotation in degrees that levels the text lines of
// g, searching within +-maxAngle. Small angles are reported as 0.
func EstimateSkew(g *image.Gray, maxAngle float64) float64 {
	sample := g
	if w := g.Bounds().Dx(); w > skewSampleWidth {
		h := g.Bounds().Dy() * skewSampleWidth / w
		sample = Resize(g, skewSampleWidth, max(h, 1))
	}
	pts := darkPoints(sample)
	if len(pts) < 50 {
		return 0
	}
	h := sample.Bounds().Dy()
	w := sample.Bounds().Dx()
	bins := make([]float64, h+w+2)

	best, bestScore := 0.0, profileScore(pts, 0, bins, w)
	search := func(lo, hi, step float64) {
		for a := lo; a <= hi+1e-9; a += step {
			if s := profileScore(pts, a, bins, w); s > bestScore {
				best, bestScore = a, s
			}
		}
	}
	search(-maxAngle, maxAngle, 0.5)
	search(best-0.5, best+0.5, 0.1)

	if math.Abs(best) < skewMinAngle {
		return 0
	}
	return best
}

// darkPoints binarizes g with Otsu's threshold and returns the ink pixels.
func darkPoints(g *image.Gray) []image.Point {
	t := otsu(g)
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	var pts []image.Point
	for y := 0; y < h; y++ {
		row := g.Pix[y*g.Stride:]
		for x := 0; x < w; x++ {
			if row[x] < t {
				pts = append(pts, image.Point{X: x, Y: y})
			}
		}
	}
	// a page that is mostly ink is a photo or an inverted scan
	if len(pts) > w*h/2 {
		return nil
	}
	return pts
}

func otsu(g *image.Gray) uint8 {
	var hist [256]int
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	for y := 0; y < h; y++ {
		row := g.Pix[y*g.Stride:]
		for x := 0; x < w; x++ {
			hist[row[x]]++
		}
	}
	total := w * h
	var sum float64
	for i, c := range hist {
		sum += float64(i * c)
	}
	var sumB, wB float64
	var best float64
	var thr uint8
	for i := 0; i < 256; i++ {
		wB += float64(hist[i])
		if wB == 0 {
			continue
		}
		wF := float64(total) - wB
		if wF == 0 {
			break
		}
		sumB += float64(i * hist[i])
		mB := sumB / wB
		mF := (sum - sumB) / wF
		between := wB * wF * (mB - mF) * (mB - mF)
		if between > best {
			best = between
			thr = uint8(i)
		}
	}
	return thr + 1
}

// profileScore projects the ink onto the axis perpendicular to a line tilted
// by angle degrees. Aligned text lines give a peaky histogram.
func profileScore(pts []image.Point, angle float64, bins []float64, width int) float64 {
	for i := range bins {
		bins[i] = 0
	}
	rad := angle * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	off := float64(width) * math.Abs(sin)
	for _, p := range pts {
		y := float64(p.Y)*cos - float64(p.X)*sin + off
		i := int(y)
		if i >= 0 && i < len(bins) {
			bins[i]++
		}
	}
	var s float64
	for _, b := range bins {
		s += b * b
	}
	return s
}

// Rotate turns g by angle degrees about its centre, counter to the measured
// skew, filling uncovered corners with white.
func Rotate(g *image.Gray, angle float64) *image.Gray {
	b := g.Bounds()
	dst := image.NewGray(b)
	draw.Draw(dst, b, image.NewUniform(color.Gray{Y: 255}), image.Point{}, draw.Src)

	rad := angle * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	cx, cy := float64(b.Dx())/2, float64(b.Dy())/2
	// maps source to destination: rotate by -angle around the centre
	m := f64.Aff3{
		cos, sin, cx - cos*cx - sin*cy,
		-sin, cos, cy + sin*cx - cos*cy,
	}
	draw.BiLinear.Transform(dst, m, g, b, draw.Over, nil)
	return dst
}
