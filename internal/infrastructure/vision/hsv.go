package vision

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// opencvHue считает тон так же, как COLOR_BGR2HSV для 8-битных изображений: 0..180.
func opencvHue(r, g, b uint8) float64 {
	v := maxU8(r, maxU8(g, b))
	mn := minU8(r, minU8(g, b))
	diff := float64(v) - float64(mn)
	if diff == 0 {
		return 0
	}

	var h float64
	switch v {
	case r:
		h = 60 * (float64(g) - float64(b)) / diff
	case g:
		h = 120 + 60*(float64(b)-float64(r))/diff
	default:
		h = 240 + 60*(float64(r)-float64(g))/diff
	}
	if h < 0 {
		h += 360
	}
	return math.Round(h / 2)
}

// hueStdDev возвращает СКО тона по всем пикселям (по генеральной совокупности).
func hueStdDev(img image.Image) float64 {
	n, ok := img.(*image.NRGBA)
	if !ok {
		n = imaging.Clone(img)
	}
	w, h := n.Bounds().Dx(), n.Bounds().Dy()
	count := w * h
	if count == 0 {
		return 0
	}

	var sum, sumSq float64
	for y := 0; y < h; y++ {
		row := n.Pix[y*n.Stride:]
		for x := 0; x < w; x++ {
			p := row[x*4 : x*4+3]
			hue := opencvHue(p[0], p[1], p[2])
			sum += hue
			sumSq += hue * hue
		}
	}

	mean := sum / float64(count)
	variance := sumSq/float64(count) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

func maxU8(a, b uint8) uint8 {
	if a > b {
		return a
	}
	return b
}

func minU8(a, b uint8) uint8 {
	if a < b {
		return a
	}
	return b
}
