package video

import (
	"image"
	"image/draw"
)

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(b)
	draw.Draw(gray, b, img, b.Min, draw.Src)
	return gray
}

// meanIntensity is the mean grayscale value over the whole raster.
func meanIntensity(g *image.Gray) float64 {
	b := g.Bounds()
	total := b.Dx() * b.Dy()
	if total == 0 {
		return 0
	}
	var sum uint64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		i := g.PixOffset(b.Min.X, y)
		for _, v := range g.Pix[i : i+b.Dx()] {
			sum += uint64(v)
		}
	}
	return float64(sum) / float64(total)
}

// meanAbsDiff is the mean per-pixel absolute difference between two rasters
// of identical dimensions.
func meanAbsDiff(a, b *image.Gray) float64 {
	ra, rb := a.Bounds(), b.Bounds()
	total := ra.Dx() * ra.Dy()
	if total == 0 {
		return 0
	}
	var sum uint64
	for y := 0; y < ra.Dy(); y++ {
		ai := a.PixOffset(ra.Min.X, ra.Min.Y+y)
		bi := b.PixOffset(rb.Min.X, rb.Min.Y+y)
		for x := 0; x < ra.Dx(); x++ {
			d := int(a.Pix[ai+x]) - int(b.Pix[bi+x])
			if d < 0 {
				d = -d
			}
			sum += uint64(d)
		}
	}
	return float64(sum) / float64(total)
}
