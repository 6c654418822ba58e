package localizer

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
)

// encodeJPEG готовит кадр к отправке во внешний детектор.
func encodeJPEG(frame image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), nil
}
