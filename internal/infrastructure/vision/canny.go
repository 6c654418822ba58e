package vision

import (
	"image"

	"github.com/disintegration/imaging"
)

const (
	tan22 = 0.4142135623730951 // tg(22.5°)
	tan67 = 2.414213562373095  // tg(67.5°)
)

// luminance переводит изображение в оттенки серого (0.299R + 0.587G + 0.114B).
func luminance(img image.Image) (gray []uint8, w, h int) {
	g := imaging.Grayscale(img)
	w, h = g.Bounds().Dx(), g.Bounds().Dy()
	gray = make([]uint8, w*h)
	for y := 0; y < h; y++ {
		row := g.Pix[y*g.Stride:]
		for x := 0; x < w; x++ {
			gray[y*w+x] = row[x*4]
		}
	}
	return gray, w, h
}

// cannyEdges повторяет cv::Canny с апертурой Собеля 3 и L1-нормой градиента.
// Возвращает карту краёв, где край = 255.
func cannyEdges(gray []uint8, w, h int, low, high float64) []uint8 {
	edges := make([]uint8, w*h)
	if w == 0 || h == 0 {
		return edges
	}

	px := func(x, y int) int {
		x = clampInt(x, 0, w-1)
		y = clampInt(y, 0, h-1)
		return int(gray[y*w+x])
	}

	// Собель 3x3 по 8-битному входу укладывается в ±1020, как CV_16S в OpenCV.
	gx := make([]int16, w*h)
	gy := make([]int16, w*h)
	mag := make([]int32, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx := px(x+1, y-1) + 2*px(x+1, y) + px(x+1, y+1) -
				px(x-1, y-1) - 2*px(x-1, y) - px(x-1, y+1)
			dy := px(x-1, y+1) + 2*px(x, y+1) + px(x+1, y+1) -
				px(x-1, y-1) - 2*px(x, y-1) - px(x+1, y-1)
			i := y*w + x
			gx[i], gy[i] = int16(dx), int16(dy)
			mag[i] = int32(absInt(dx) + absInt(dy))
		}
	}

	// За пределами кадра модуль градиента считается нулевым.
	m := func(x, y int) int32 {
		if x < 0 || y < 0 || x >= w || y >= h {
			return 0
		}
		return mag[y*w+x]
	}

	const (
		none uint8 = iota
		weak
		strong
	)
	class := make([]uint8, w*h)
	stack := make([]int, 0, w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			v := mag[i]
			if float64(v) <= low {
				continue
			}

			ax, ay := float64(absInt(int(gx[i]))), float64(absInt(int(gy[i])))
			var local bool
			switch {
			case ay < ax*tan22:
				local = v > m(x-1, y) && v >= m(x+1, y)
			case ay > ax*tan67:
				local = v > m(x, y-1) && v >= m(x, y+1)
			default:
				s := 1
				if (gx[i] < 0) != (gy[i] < 0) {
					s = -1
				}
				local = v > m(x-s, y-1) && v > m(x+s, y+1)
			}
			if !local {
				continue
			}

			if float64(v) > high {
				class[i] = strong
				edges[i] = 255
				stack = append(stack, i)
			} else {
				class[i] = weak
			}
		}
	}

	// Гистерезис: слабые пиксели остаются, только если связаны с сильными.
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		for ny := y - 1; ny <= y+1; ny++ {
			for nx := x - 1; nx <= x+1; nx++ {
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				j := ny*w + nx
				if class[j] == weak && edges[j] == 0 {
					edges[j] = 255
					stack = append(stack, j)
				}
			}
		}
	}

	return edges
}

func sumEdges(edges []uint8) float64 {
	var total uint64
	for _, v := range edges {
		total += uint64(v)
	}
	return float64(total)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
