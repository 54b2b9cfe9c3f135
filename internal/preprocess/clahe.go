package preprocess

import "image"

// CLAHE performs contrast limited adaptive histogram equalization on a
// tiles x tiles grid, blending neighbouring tile mappings bilinearly.
func CLAHE(g *image.Gray, clip float64, tiles int) *image.Gray {
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	if tiles < 1 {
		tiles = 1
	}
	if tiles > w {
		tiles = w
	}
	if tiles > h {
		tiles = h
	}
	tw := (w + tiles - 1) / tiles
	th := (h + tiles - 1) / tiles

	luts := make([][256]uint8, tiles*tiles)
	for ty := 0; ty < tiles; ty++ {
		for tx := 0; tx < tiles; tx++ {
			x0, y0 := tx*tw, ty*th
			x1, y1 := min(x0+tw, w), min(y0+th, h)
			luts[ty*tiles+tx] = tileLUT(g, x0, y0, x1, y1, clip)
		}
	}

	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		ty0, ty1, wy := tileCoord((float64(y)+0.5)/float64(th)-0.5, tiles)
		for x := 0; x < w; x++ {
			tx0, tx1, wx := tileCoord((float64(x)+0.5)/float64(tw)-0.5, tiles)
			v := g.Pix[y*g.Stride+x]
			a := float64(luts[ty0*tiles+tx0][v])
			b := float64(luts[ty0*tiles+tx1][v])
			c := float64(luts[ty1*tiles+tx0][v])
			d := float64(luts[ty1*tiles+tx1][v])
			top := a*(1-wx) + b*wx
			bot := c*(1-wx) + d*wx
			out.Pix[y*out.Stride+x] = clampByte(top*(1-wy) + bot*wy)
		}
	}
	return out
}

// tileCoord maps a position in tile-centre units to the two neighbouring
// tiles and the weight of the second one.
func tileCoord(f float64, n int) (int, int, float64) {
	if f <= 0 {
		return 0, 0, 0
	}
	if f >= float64(n-1) {
		return n - 1, n - 1, 0
	}
	i := int(f)
	return i, i + 1, f - float64(i)
}

func tileLUT(g *image.Gray, x0, y0, x1, y1 int, clip float64) [256]uint8 {
	var hist [256]int
	n := 0
	for y := y0; y < y1; y++ {
		row := g.Pix[y*g.Stride:]
		for x := x0; x < x1; x++ {
			hist[row[x]]++
			n++
		}
	}
	var lut [256]uint8
	if n == 0 {
		for i := range lut {
			lut[i] = uint8(i)
		}
		return lut
	}

	limit := int(clip * float64(n) / 256)
	if limit < 1 {
		limit = 1
	}
	excess := 0
	for i, c := range hist {
		if c > limit {
			excess += c - limit
			hist[i] = limit
		}
	}
	bonus, rem := excess/256, excess%256
	for i := range hist {
		hist[i] += bonus
		if i < rem {
			hist[i]++
		}
	}

	cdf := 0
	for i, c := range hist {
		cdf += c
		lut[i] = clampByte(float64(cdf) * 255 / float64(n))
	}
	return lut
}

func clampByte(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
