// Package preprocess cleans rasterized pages before OCR.
package preprocess

import (
	"errors"
	"image"
	"log/slog"
	"time"

	"golang.org/x/image/draw"
)

// ErrEmptyImage is returned for nil or zero-sized input.
var ErrEmptyImage = errors.New("preprocess: empty image")

// Config holds preprocessing parameters.
type Config struct {
	TargetWidth    int     // upscale narrower images to this width
	MaxSide        int     // downscale so the longest side fits; 0 disables
	CLAHEClip      float64 // contrast limit for CLAHE
	CLAHETiles     int     // tiles per side for CLAHE
	UnsharpAmount  float64 // weight of the original in the unsharp mask
	UnsharpSigma   float64 // gaussian sigma for the unsharp mask
	DeskewMaxAngle float64 // degrees searched either side of horizontal; 0 disables
	StrongPixels   int     // width*height above which strong mode is used automatically
}

// DefaultConfig returns the parameters used for scanned contracts.
func DefaultConfig() Config {
	return Config{
		TargetWidth:    1800,
		MaxSide:        2200,
		CLAHEClip:      2.0,
		CLAHETiles:     8,
		UnsharpAmount:  1.5,
		UnsharpSigma:   1.0,
		DeskewMaxAngle: 10,
		StrongPixels:   1800 * 1800,
	}
}

// Preprocessor is a pure image transform; it is safe for concurrent use.
type Preprocessor struct {
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Preprocessor {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.TargetWidth <= 0 {
		cfg.TargetWidth = def.TargetWidth
	}
	if cfg.CLAHEClip <= 0 {
		cfg.CLAHEClip = def.CLAHEClip
	}
	if cfg.CLAHETiles <= 0 {
		cfg.CLAHETiles = def.CLAHETiles
	}
	if cfg.UnsharpAmount <= 0 {
		cfg.UnsharpAmount = def.UnsharpAmount
	}
	if cfg.UnsharpSigma <= 0 {
		cfg.UnsharpSigma = def.UnsharpSigma
	}
	if cfg.StrongPixels <= 0 {
		cfg.StrongPixels = def.StrongPixels
	}
	return &Preprocessor{cfg: cfg, logger: logger}
}

// ShouldUseStrong reports whether img is large enough to warrant strong mode.
func (p *Preprocessor) ShouldUseStrong(img image.Image) bool {
	if img == nil {
		return false
	}
	b := img.Bounds()
	return b.Dx()*b.Dy() > p.cfg.StrongPixels
}

// Process converts img to grayscale, normalizes its size, corrects skew and
// removes speckle noise. Strong mode adds CLAHE and an unsharp mask.
func (p *Preprocessor) Process(img image.Image, strong bool) (out *image.Gray, err error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	// corrupt decoders can hand us images that panic on access
	defer func() {
		if rec := recover(); rec != nil {
			out, err = nil, errors.New("preprocess: corrupt image")
		}
	}()
	start := time.Now()

	g := ToGray(img)
	if w := g.Bounds().Dx(); w < p.cfg.TargetWidth {
		scale := float64(p.cfg.TargetWidth) / float64(w)
		g = Resize(g, p.cfg.TargetWidth, int(float64(g.Bounds().Dy())*scale+0.5))
	}
	g = FitMaxSide(g, p.cfg.MaxSide)

	var angle float64
	if p.cfg.DeskewMaxAngle > 0 {
		angle = EstimateSkew(g, p.cfg.DeskewMaxAngle)
		if angle != 0 {
			g = Rotate(g, angle)
		}
	}

	g = Median3(g)
	if strong {
		g = CLAHE(g, p.cfg.CLAHEClip, p.cfg.CLAHETiles)
		g = Unsharp(g, p.cfg.UnsharpAmount, p.cfg.UnsharpSigma)
	}

	p.logger.Debug("preprocess.ok",
		"width", g.Bounds().Dx(),
		"height", g.Bounds().Dy(),
		"skew_deg", angle,
		"strong", strong,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return g, nil
}

// ToGray returns a grayscale copy of img anchored at the origin.
func ToGray(img image.Image) *image.Gray {
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(g, g.Bounds(), img, b.Min, draw.Src)
	return g
}

// Resize scales g to w x h with Catmull-Rom interpolation.
func Resize(g *image.Gray, w, h int) *image.Gray {
	if w <= 0 || h <= 0 {
		return g
	}
	dst := image.NewGray(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), g, g.Bounds(), draw.Src, nil)
	return dst
}

// FitMaxSide downsizes g so neither side exceeds max, keeping the aspect ratio.
func FitMaxSide(g *image.Gray, max int) *image.Gray {
	if max <= 0 {
		return g
	}
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	if w <= max && h <= max {
		return g
	}
	scale := float64(max) / float64(w)
	if h > w {
		scale = float64(max) / float64(h)
	}
	return Resize(g, int(float64(w)*scale+0.5), int(float64(h)*scale+0.5))
}
