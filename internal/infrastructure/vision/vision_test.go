package vision

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/chai2010/webp"
	"github.com/stretchr/testify/require"

	"qc-scanner/internal/domain/entity"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// diagonalStripes рисует диагональные полосы шириной 4 пикселя
func diagonalStripes(w, h int, a, b color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if ((x+y)/4)%2 == 0 {
				img.SetNRGBA(x, y, a)
			} else {
				img.SetNRGBA(x, y, b)
			}
		}
	}
	return img
}

func halves(w, h int, left, right color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < w/2 {
				img.SetNRGBA(x, y, left)
			} else {
				img.SetNRGBA(x, y, right)
			}
		}
	}
	return img
}

func pngDataURI(t *testing.T, img image.Image) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return EncodeDataURI("image/png", buf.Bytes())
}

var (
	gray  = color.NRGBA{R: 128, G: 128, B: 128, A: 255}
	black = color.NRGBA{A: 255}
	white = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	red   = color.NRGBA{R: 255, A: 255}
	cyan  = color.NRGBA{G: 255, B: 255, A: 255}
	// тёмно-красный и синий почти одинаковой яркости
	darkRed = color.NRGBA{R: 100, A: 255}
	blue    = color.NRGBA{B: 255, A: 255}
)

func TestDecoder_PNG(t *testing.T) {
	src := solid(40, 30, color.NRGBA{R: 10, G: 20, B: 30, A: 128})
	grid, err := NewDecoder(0).Decode(pngDataURI(t, src))
	require.NoError(t, err)

	n, ok := grid.(*image.NRGBA)
	require.True(t, ok)
	require.Equal(t, image.Rect(0, 0, 40, 30), n.Bounds())
	require.Equal(t, color.NRGBA{R: 10, G: 20, B: 30, A: 255}, n.NRGBAAt(5, 5))
}

func TestDecoder_JPEG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, solid(16, 16, gray), nil))

	grid, err := NewDecoder(0).Decode(EncodeDataURI("image/jpeg", buf.Bytes()))
	require.NoError(t, err)
	require.Equal(t, 16, grid.Bounds().Dx())
	require.Equal(t, 16, grid.Bounds().Dy())
}

func TestDecoder_Malformed(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(32, 32, gray)))
	truncated := "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()[:buf.Len()/2])

	cases := map[string]string{
		"no prefix":  base64.StdEncoding.EncodeToString(buf.Bytes()),
		"bad base64": "data:image/png;base64,%%%not-base64%%%",
		"empty data": "data:image/png;base64,",
		"not image":  "data:text/plain;base64," + base64.StdEncoding.EncodeToString([]byte("hello, world")),
		"truncated":  truncated,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewDecoder(0).Decode(payload)
			var decErr *entity.DecodeError
			require.True(t, errors.As(err, &decErr), "got %v", err)
		})
	}

	t.Run("oversized header", func(t *testing.T) {
		// крошечный PNG, заголовок которого заявляет 16000x16000
		payload := EncodeDataURI("image/png", pngWithHeaderSize(t, 16000, 16000))
		_, err := NewDecoder(0).Decode(payload)
		var decErr *entity.DecodeError
		require.True(t, errors.As(err, &decErr), "got %v", err)
		require.Contains(t, decErr.Reason, "image too large")
	})

	t.Run("over configured limit", func(t *testing.T) {
		_, err := NewDecoder(32*32 - 1).Decode(pngDataURI(t, solid(32, 32, gray)))
		var decErr *entity.DecodeError
		require.True(t, errors.As(err, &decErr), "got %v", err)
		require.Contains(t, decErr.Reason, "image too large")

		_, err = NewDecoder(32 * 32).Decode(pngDataURI(t, solid(32, 32, gray)))
		require.NoError(t, err)
	})
}

// pngWithHeaderSize кодирует PNG 1x1 и подменяет размеры в IHDR, пересчитывая CRC
func pngWithHeaderSize(t *testing.T, w, h uint32) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(1, 1, gray)))
	data := buf.Bytes()

	// 8 байт сигнатуры, длина чанка, "IHDR", затем ширина и высота
	require.Equal(t, "IHDR", string(data[12:16]))
	binary.BigEndian.PutUint32(data[16:20], w)
	binary.BigEndian.PutUint32(data[20:24], h)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))
	return data
}

func TestCropper_Extract(t *testing.T) {
	frame := halves(100, 50, black, white)
	c := NewCropper()

	roi, err := c.Extract(frame, entity.Box{X1: 40, Y1: 10, X2: 60, Y2: 20})
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 20, 10), roi.Bounds())
	_, _, _, a := roi.At(0, 0).RGBA()
	require.NotZero(t, a)

	// выход за границы обрезается
	roi, err = c.Extract(frame, entity.Box{X1: -10, Y1: -10, X2: 500, Y2: 30})
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 100, 30), roi.Bounds())
}

func TestCropper_EmptyRegion(t *testing.T) {
	frame := solid(10, 10, gray)
	for _, box := range []entity.Box{
		{X1: 5, Y1: 5, X2: 5, Y2: 8},
		{X1: 20, Y1: 0, X2: 30, Y2: 10},
		{X1: 8, Y1: 8, X2: 2, Y2: 9},
	} {
		_, err := NewCropper().Extract(frame, box)
		var empty *entity.EmptyRegionError
		require.True(t, errors.As(err, &empty))
		require.Equal(t, box, empty.Box)
	}
}

func TestCropper_SubImageOrigin(t *testing.T) {
	frame := halves(20, 10, black, white).SubImage(image.Rect(10, 0, 20, 10))
	roi, err := NewCropper().Extract(frame, entity.Box{X1: 0, Y1: 0, X2: 5, Y2: 5})
	require.NoError(t, err)
	r, _, _, _ := roi.At(0, 0).RGBA()
	require.Equal(t, uint32(0xffff), r)
}

func TestOpencvHue(t *testing.T) {
	require.Equal(t, 0.0, opencvHue(255, 0, 0))
	require.Equal(t, 30.0, opencvHue(255, 255, 0))
	require.Equal(t, 60.0, opencvHue(0, 255, 0))
	require.Equal(t, 90.0, opencvHue(0, 255, 255))
	require.Equal(t, 120.0, opencvHue(0, 0, 255))
	require.Equal(t, 0.0, opencvHue(77, 77, 77))
}

func TestHueStdDev(t *testing.T) {
	require.Zero(t, hueStdDev(solid(10, 10, red)))
	require.InDelta(t, 60.0, hueStdDev(halves(10, 10, darkRed, blue)), 1e-9)
}

func TestCanny_UniformHasNoEdges(t *testing.T) {
	g, w, h := luminance(solid(32, 32, gray))
	require.Zero(t, sumEdges(cannyEdges(g, w, h, 100, 200)))
}

func TestCanny_StepEdge(t *testing.T) {
	g, w, h := luminance(halves(20, 10, black, white))
	edges := cannyEdges(g, w, h, 100, 200)

	// вертикальная ступень даёт по одному пикселю края в каждой строке
	for y := 0; y < h; y++ {
		count := 0
		for x := 0; x < w; x++ {
			if edges[y*w+x] == 255 {
				count++
			}
		}
		require.Equal(t, 1, count, "row %d", y)
	}
	require.Equal(t, float64(255*h), sumEdges(edges))
}

func TestCanny_MaxGradientKeepsFullMagnitude(t *testing.T) {
	g, w, h := luminance(halves(20, 10, black, white))

	// ступень 0/255 даёт предельный модуль 4*255 = 1020
	require.Equal(t, float64(255*h), sumEdges(cannyEdges(g, w, h, 1019, 1019)))
	require.Zero(t, sumEdges(cannyEdges(g, w, h, 1020, 1020)))
}

func TestCanny_LowContrastBelowThreshold(t *testing.T) {
	g, w, h := luminance(halves(20, 10, darkRed, blue))
	require.Zero(t, sumEdges(cannyEdges(g, w, h, 100, 200)))
}

func TestCanny_Empty(t *testing.T) {
	require.Empty(t, cannyEdges(nil, 0, 0, 100, 200))
}

func TestDefectAnalyzer_Scenarios(t *testing.T) {
	a := NewDefectAnalyzer(DefaultThresholds())

	cases := []struct {
		name string
		roi  image.Image
		want []entity.DefectFinding
	}{
		{"uniform gray", solid(64, 64, gray), []entity.DefectFinding{}},
		{"scratches only", diagonalStripes(64, 64, black, white), []entity.DefectFinding{entity.DefectScratchedSurface}},
		{"color only", halves(64, 64, darkRed, blue), []entity.DefectFinding{entity.DefectColorInconsistency}},
		{"both", diagonalStripes(64, 64, red, cyan), []entity.DefectFinding{entity.DefectScratchedSurface, entity.DefectColorInconsistency}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			report := a.Analyze(tc.roi)
			require.Equal(t, tc.want, report.Defects)
			require.Equal(t, len(tc.want) > 0, report.HasDefects())
		})
	}
}

func TestDefectAnalyzer_Deterministic(t *testing.T) {
	a := NewDefectAnalyzer(DefaultThresholds())
	roi := diagonalStripes(48, 48, red, cyan)

	first := a.Analyze(roi)
	second := a.Analyze(roi)
	require.Equal(t, first, second)
	require.Greater(t, first.EdgeEnergy, 10000.0)
	require.Greater(t, first.HueStdDev, 30.0)
}

func TestThresholds_StrictComparison(t *testing.T) {
	th := DefaultThresholds()
	require.Empty(t, th.evaluate(10000, 30).Defects)
	require.Equal(t,
		[]entity.DefectFinding{entity.DefectScratchedSurface, entity.DefectColorInconsistency},
		th.evaluate(10000.5, 30.01).Defects)
}

func TestHighlight(t *testing.T) {
	frame := solid(60, 40, gray)
	data, err := Highlight(frame, entity.Box{X1: 10, Y1: 10, X2: 50, Y2: 30}, FormatJPEG)
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 60, 40), img.Bounds())

	// исходный кадр не меняется
	require.Equal(t, gray, frame.NRGBAAt(10, 10))

	_, err = Highlight(frame, entity.Box{}, "bmp")
	require.Error(t, err)
}

func TestHighlight_WebP(t *testing.T) {
	frame := solid(60, 40, gray)
	data, err := Highlight(frame, entity.Box{X1: 10, Y1: 10, X2: 50, Y2: 30}, FormatWebP)
	require.NoError(t, err)

	img, err := webp.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 60, 40), img.Bounds())

	// lossless: рамка зелёная, фон не тронут
	r, g, b, _ := img.At(10, 10).RGBA()
	require.Equal(t, [3]uint32{0, 0xffff, 0}, [3]uint32{r, g, b})
	r, g, b, _ = img.At(30, 20).RGBA()
	require.Equal(t, [3]uint32{128 * 0x101, 128 * 0x101, 128 * 0x101}, [3]uint32{r, g, b})
}
