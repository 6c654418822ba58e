package localizer

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/ollama/ollama/api"

	"qc-scanner/internal/domain/entity"
	"qc-scanner/internal/domain/port"
)

// UnknownClass класс для меток, не совпавших с целевой
const UnknownClass = -1

const detectPrompt = `You are an object locator for a product inspection line.

Return JSON only:
{"detections":[{"label":"string","confidence":0.0,"box":{"x":0.0,"y":0.0,"w":0.0,"h":0.0}}]}

RULES
- One entry per visible object, most prominent first.
- label: a single lowercase COCO category name, e.g. "mouse", "keyboard", "cell phone".
- box: top-left corner and size, normalized to [0,1] (NOT pixels).
- If nothing is visible return {"detections":[]}.
- JSON only. No markdown, no code fences, no comments.`

// Ollama локализует объекты через мультимодальную модель Ollama.
type Ollama struct {
	client      *api.Client
	model       string
	targetLabel string
	targetClass int
}

type ollamaBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

type ollamaDetection struct {
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
	Box        ollamaBox `json:"box"`
}

type ollamaResult struct {
	Detections []ollamaDetection `json:"detections"`
}

// NewOllama создаёт локализатор. Метка targetLabel отображается в targetClass.
func NewOllama(ollamaURL, model, targetLabel string, targetClass int, httpClient *http.Client) (*Ollama, error) {
	parsed, err := url.Parse(ollamaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid ollama URL %q", ollamaURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	base := &url.URL{Scheme: parsed.Scheme, Host: parsed.Host}

	return &Ollama{
		client:      api.NewClient(base, httpClient),
		model:       model,
		targetLabel: strings.ToLower(strings.TrimSpace(targetLabel)),
		targetClass: targetClass,
	}, nil
}

// Localize спрашивает модель и переводит нормированные рамки в пиксели кадра.
func (l *Ollama) Localize(ctx context.Context, frame image.Image) ([]entity.Detection, error) {
	img, err := encodeJPEG(frame)
	if err != nil {
		return nil, err
	}

	stream := false
	req := &api.ChatRequest{
		Model: l.model,
		Messages: []api.Message{{
			Role:    "user",
			Content: detectPrompt,
			Images:  []api.ImageData{api.ImageData(img)},
		}},
		Stream:  &stream,
		Options: map[string]any{"temperature": 0},
	}

	var content string
	err = l.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		content += resp.Message.Content
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama chat: %w", err)
	}

	b := frame.Bounds()
	return l.parseDetections(content, b.Dx(), b.Dy())
}

// parseDetections разбирает ответ модели; вырожденные рамки отбрасываются.
func (l *Ollama) parseDetections(raw string, width, height int) ([]entity.Detection, error) {
	raw = sanitizeModelJSON(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty response from ollama")
	}

	var res ollamaResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return nil, fmt.Errorf("parse ollama response: %w", err)
	}

	out := make([]entity.Detection, 0, len(res.Detections))
	for _, d := range res.Detections {
		box := entity.Box{
			X1: int(math.Round(clamp01(d.Box.X) * float64(width))),
			Y1: int(math.Round(clamp01(d.Box.Y) * float64(height))),
			X2: int(math.Round(clamp01(d.Box.X+d.Box.W) * float64(width))),
			Y2: int(math.Round(clamp01(d.Box.Y+d.Box.H) * float64(height))),
		}
		if box.Empty() {
			continue
		}
		class := UnknownClass
		if strings.ToLower(strings.TrimSpace(d.Label)) == l.targetLabel {
			class = l.targetClass
		}
		out = append(out, entity.Detection{
			Class:      class,
			Confidence: clamp01(d.Confidence),
			Box:        box,
		})
	}
	return out, nil
}

var (
	reBlockComment  = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLineComment   = regexp.MustCompile(`(?m)//.*$`)
	reTrailingComma = regexp.MustCompile(`,(\s*[}\]])`)
)

// sanitizeModelJSON убирает markdown-ограждения, комментарии и висячие запятые.
func sanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = reBlockComment.ReplaceAllString(raw, "")
	raw = reLineComment.ReplaceAllString(raw, "")
	raw = reTrailingComma.ReplaceAllString(raw, "$1")

	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

var _ port.ObjectLocalizer = (*Ollama)(nil)
