package ocr

import (
	"math"
	"sort"
	"strings"
)

// LineConfig holds the thresholds used to rebuild lines from fragments.
type LineConfig struct {
	MinTolerance    float64 // pixels; lower bound for the vertical tolerance
	ToleranceFactor float64 // tolerance as a fraction of the median fragment height
	WordGapFactor   float64 // segment gaps up to this fraction of median height are glued
	MinConfidence   float64 // fragments below this are dropped; 0 keeps everything
}

func DefaultLineConfig() LineConfig {
	return LineConfig{
		MinTolerance:    8,
		ToleranceFactor: 0.6,
		WordGapFactor:   0.7,
	}
}

type line struct {
	avgY  float64
	frags []Fragment
}

func midY(f Fragment) float64 {
	return float64(f.Box.Min.Y+f.Box.Max.Y) / 2
}

// GroupLines orders fragments top to bottom and left to right and joins
// them into text lines. Fragments whose vertical centre is within the
// tolerance of a line's running average Y belong to that line.
func GroupLines(frags []Fragment, gran Granularity, cfg LineConfig) []string {
	kept := make([]Fragment, 0, len(frags))
	for _, f := range frags {
		f.Text = strings.TrimSpace(f.Text)
		if f.Text == "" || f.Confidence < cfg.MinConfidence {
			continue
		}
		kept = append(kept, f)
	}
	if len(kept) == 0 {
		return nil
	}

	medH := medianHeight(kept)
	tol := math.Max(cfg.MinTolerance, cfg.ToleranceFactor*medH)

	sort.SliceStable(kept, func(i, j int) bool {
		yi, yj := midY(kept[i]), midY(kept[j])
		if yi != yj {
			return yi < yj
		}
		return kept[i].Box.Min.X < kept[j].Box.Min.X
	})

	var lines []*line
	for _, f := range kept {
		y := midY(f)
		if n := len(lines); n > 0 && math.Abs(y-lines[n-1].avgY) <= tol {
			l := lines[n-1]
			l.frags = append(l.frags, f)
			l.avgY += (y - l.avgY) / float64(len(l.frags))
			continue
		}
		lines = append(lines, &line{avgY: y, frags: []Fragment{f}})
	}

	out := make([]string, 0, len(lines))
	for _, l := range lines {
		sort.SliceStable(l.frags, func(i, j int) bool { return l.frags[i].Box.Min.X < l.frags[j].Box.Min.X })
		if s := joinLine(l.frags, gran, cfg.WordGapFactor*medH); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func joinLine(frags []Fragment, gran Granularity, maxGlue float64) string {
	var b strings.Builder
	for i, f := range frags {
		if i > 0 {
			gap := float64(f.Box.Min.X - frags[i-1].Box.Max.X)
			if gran == Word || gap > maxGlue {
				b.WriteByte(' ')
			}
		}
		b.WriteString(f.Text)
	}
	return strings.TrimSpace(b.String())
}

func medianHeight(frags []Fragment) float64 {
	hs := make([]float64, 0, len(frags))
	for _, f := range frags {
		if h := f.Box.Dy(); h > 0 {
			hs = append(hs, float64(h))
		}
	}
	if len(hs) == 0 {
		return 0
	}
	sort.Float64s(hs)
	n := len(hs)
	if n%2 == 1 {
		return hs[n/2]
	}
	return (hs[n/2-1] + hs[n/2]) / 2
}
