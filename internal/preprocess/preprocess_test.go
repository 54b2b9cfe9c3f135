package preprocess

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"
)

func blank(w, h int, v uint8) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for i := range g.Pix {
		g.Pix[i] = v
	}
	return g
}

// skewedLines draws dark horizontal bands tilted by deg degrees.
func skewedLines(w, h int, deg float64) *image.Gray {
	g := blank(w, h, 255)
	slope := math.Tan(deg * math.Pi / 180)
	for y0 := 60; y0 < h-60; y0 += 40 {
		for x := 40; x < w-40; x++ {
			if (x/25)%4 == 3 {
				continue // word gaps
			}
			yc := float64(y0) + float64(x)*slope
			for t := 0; t < 6; t++ {
				y := int(yc) + t
				if y >= 0 && y < h {
					g.SetGray(x, y, color.Gray{Y: 0})
				}
			}
		}
	}
	return g
}

func TestEstimateSkew(t *testing.T) {
	for _, deg := range []float64{3, -2.5} {
		got := EstimateSkew(skewedLines(700, 900, deg), 10)
		if math.Abs(got-deg) > 0.6 {
			t.Errorf("EstimateSkew(%v) = %v", deg, got)
		}
	}
}

func TestEstimateSkewLevelAndBlank(t *testing.T) {
	if got := EstimateSkew(skewedLines(700, 900, 0), 10); got != 0 {
		t.Errorf("level page skew = %v, want 0", got)
	}
	if got := EstimateSkew(blank(300, 300, 255), 10); got != 0 {
		t.Errorf("blank page skew = %v, want 0", got)
	}
}

func TestRotateLevelsText(t *testing.T) {
	g := skewedLines(700, 900, 3)
	r := Rotate(g, EstimateSkew(g, 10))
	if got := EstimateSkew(r, 10); math.Abs(got) > 0.6 {
		t.Errorf("residual skew after rotate = %v", got)
	}
	if r.Bounds() != g.Bounds() {
		t.Errorf("bounds changed: %v -> %v", g.Bounds(), r.Bounds())
	}
}

func TestMedian3RemovesSpeckle(t *testing.T) {
	g := blank(9, 9, 255)
	g.SetGray(4, 4, color.Gray{Y: 0})
	out := Median3(g)
	if v := out.GrayAt(4, 4).Y; v != 255 {
		t.Errorf("speckle survived: %d", v)
	}
}

func TestCLAHEStretchesContrast(t *testing.T) {
	g := blank(64, 64, 120)
	for y := 0; y < 64; y++ {
		for x := 32; x < 64; x++ {
			g.SetGray(x, y, color.Gray{Y: 130})
		}
	}
	out := CLAHE(g, 40, 1)
	lo, hi := out.GrayAt(5, 5).Y, out.GrayAt(60, 5).Y
	if int(hi)-int(lo) <= 20 {
		t.Errorf("contrast not increased: %d vs %d", lo, hi)
	}
}

func TestUnsharpKeepsFlatRegions(t *testing.T) {
	g := blank(20, 20, 100)
	out := Unsharp(g, 1.5, 1.0)
	if v := out.GrayAt(10, 10).Y; v != 100 {
		t.Errorf("flat region changed to %d", v)
	}
}

func TestUnsharpSteepensEdges(t *testing.T) {
	g := blank(20, 20, 50)
	for y := 0; y < 20; y++ {
		for x := 10; x < 20; x++ {
			g.SetGray(x, y, color.Gray{Y: 200})
		}
	}
	out := Unsharp(g, 1.5, 1.0)
	if dark, bright := out.GrayAt(9, 10).Y, out.GrayAt(10, 10).Y; dark >= 50 || bright <= 200 {
		t.Errorf("edge not sharpened: %d | %d", dark, bright)
	}
	if out.Bounds() != g.Bounds() {
		t.Errorf("bounds = %v", out.Bounds())
	}
}

func TestProcessSizes(t *testing.T) {
	p := New(DefaultConfig(), nil)

	small := image.NewRGBA(image.Rect(0, 0, 900, 1000))
	out, err := p.Process(small, false)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if w := out.Bounds().Dx(); w != 1800 {
		t.Errorf("upscaled width = %d, want 1800", w)
	}
	if h := out.Bounds().Dy(); h > 2200 {
		t.Errorf("height %d exceeds max side", h)
	}

	large := image.NewGray(image.Rect(0, 0, 2480, 3508))
	out, err = p.Process(large, true)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if b := out.Bounds(); b.Dx() > 2200 || b.Dy() > 2200 {
		t.Errorf("not capped: %v", b)
	}
}

func TestProcessEmpty(t *testing.T) {
	p := New(DefaultConfig(), nil)
	if _, err := p.Process(nil, false); !errors.Is(err, ErrEmptyImage) {
		t.Errorf("nil image err = %v", err)
	}
	if _, err := p.Process(image.NewGray(image.Rect(0, 0, 0, 0)), false); !errors.Is(err, ErrEmptyImage) {
		t.Errorf("empty image err = %v", err)
	}
}

func TestShouldUseStrong(t *testing.T) {
	p := New(DefaultConfig(), nil)
	if p.ShouldUseStrong(image.NewGray(image.Rect(0, 0, 1000, 1000))) {
		t.Error("small page should not use strong mode")
	}
	if !p.ShouldUseStrong(image.NewGray(image.Rect(0, 0, 2480, 3508))) {
		t.Error("A4 at 300dpi should use strong mode")
	}
}
