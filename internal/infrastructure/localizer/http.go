package localizer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"

	"qc-scanner/internal/domain/entity"
	"qc-scanner/internal/domain/port"
)

// HTTP обращается к сервису детекции (например, YOLO за REST).
//
// Запрос:  POST {"image": "<base64 jpeg>"}
// Ответ:   {"detections": [{"class": 74, "confidence": 0.9, "box": {"x1":..,"y1":..,"x2":..,"y2":..}}]}
type HTTP struct {
	url    string
	client *http.Client
}

type detectRequest struct {
	Image string `json:"image"`
}

type detectResponse struct {
	Detections []entity.Detection `json:"detections"`
}

// NewHTTP создаёт клиента; при nil используется http.DefaultClient
func NewHTTP(url string, client *http.Client) *HTTP {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTP{url: url, client: client}
}

// Localize отправляет кадр и возвращает детекции как есть, без обрезки рамок.
func (l *HTTP) Localize(ctx context.Context, frame image.Image) ([]entity.Detection, error) {
	img, err := encodeJPEG(frame)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(detectRequest{Image: base64.StdEncoding.EncodeToString(img)})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call detector: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("detector returned HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var out detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode detector response: %w", err)
	}
	return out.Detections, nil
}

var _ port.ObjectLocalizer = (*HTTP)(nil)
