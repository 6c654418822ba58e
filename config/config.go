package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Виды локализатора.
const (
	LocalizerHTTP      = "http"
	LocalizerOllama    = "ollama"
	LocalizerFullFrame = "fullframe"
)

// Форматы превью для бота.
const (
	PreviewJPEG = "jpeg"
	PreviewWebP = "webp"
)

// AnalysisConfig параметры анализа, которые можно переопределить YAML-файлом
type AnalysisConfig struct {
	TargetClass     int     `yaml:"target_class"`
	TargetLabel     string  `yaml:"target_label"`
	ProductModel    string  `yaml:"product_model"`
	SelectionPolicy string  `yaml:"selection_policy"`
	EdgeThreshold   float64 `yaml:"edge_threshold"`
	HueStdThreshold float64 `yaml:"hue_std_threshold"`
	CannyLow        float64 `yaml:"canny_low"`
	CannyHigh       float64 `yaml:"canny_high"`
}

type fileConfig struct {
	Analysis AnalysisConfig `yaml:"analysis"`
}

type Config struct {
	HTTPAddr      string
	TelegramToken string
	DatabaseURL   string

	Localizer        string
	LocalizerURL     string
	LocalizerTimeout time.Duration
	OllamaURL        string
	OllamaModel      string

	Analysis      AnalysisConfig
	HistoryLimit  int
	MaxPixels     int    // предел размера кадра по заголовку
	PreviewFormat string // формат превью с подсветкой: jpeg или webp

	LogLevel  string
	LogFormat string
}

// Load читает .env (если есть), окружение и YAML из QC_CONFIG_FILE.
func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr:      getEnv("HTTP_ADDR", ":5000"),
		TelegramToken: os.Getenv("TELEGRAM_TOKEN"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),

		Localizer:    strings.ToLower(getEnv("LOCALIZER", LocalizerHTTP)),
		LocalizerURL: getEnv("LOCALIZER_URL", "http://localhost:8001/detect"),
		OllamaURL:    getEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:  getEnv("OLLAMA_MODEL", "llava"),

		Analysis: AnalysisConfig{
			TargetLabel:     getEnv("TARGET_LABEL", "mouse"),
			ProductModel:    getEnv("PRODUCT_MODEL", "Gaming Mouse X1"),
			SelectionPolicy: getEnv("SELECTION_POLICY", "first"),
		},

		PreviewFormat: strings.ToLower(getEnv("PREVIEW_FORMAT", PreviewJPEG)),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	var err error
	// 74: "mouse" в нумерации COCO
	if cfg.Analysis.TargetClass, err = getInt("TARGET_CLASS", 74); err != nil {
		return nil, err
	}
	if cfg.HistoryLimit, err = getInt("HISTORY_LIMIT", 50); err != nil {
		return nil, err
	}
	if cfg.MaxPixels, err = getInt("MAX_PIXELS", 40_000_000); err != nil {
		return nil, err
	}
	if cfg.Analysis.EdgeThreshold, err = getFloat("EDGE_THRESHOLD", 10000); err != nil {
		return nil, err
	}
	if cfg.Analysis.HueStdThreshold, err = getFloat("HUE_STD_THRESHOLD", 30); err != nil {
		return nil, err
	}
	if cfg.Analysis.CannyLow, err = getFloat("CANNY_LOW", 100); err != nil {
		return nil, err
	}
	if cfg.Analysis.CannyHigh, err = getFloat("CANNY_HIGH", 200); err != nil {
		return nil, err
	}
	if cfg.LocalizerTimeout, err = getDuration("LOCALIZER_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}

	if path := os.Getenv("QC_CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFile накладывает блок analysis из YAML поверх значений окружения.
// Отсутствующие в файле ключи не меняются.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %q: %w", path, err)
	}

	fc := fileConfig{Analysis: c.Analysis}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	c.Analysis = fc.Analysis
	return nil
}

// Validate проверяет согласованность настроек
func (c *Config) Validate() error {
	switch c.Localizer {
	case LocalizerHTTP:
		if c.LocalizerURL == "" {
			return fmt.Errorf("config error: LOCALIZER_URL is required for the http localizer")
		}
	case LocalizerOllama:
		if c.OllamaURL == "" || c.OllamaModel == "" {
			return fmt.Errorf("config error: OLLAMA_URL and OLLAMA_MODEL are required for the ollama localizer")
		}
	case LocalizerFullFrame:
	default:
		return fmt.Errorf("config error: unknown localizer %q, must be one of: http, ollama, fullframe", c.Localizer)
	}

	switch c.Analysis.SelectionPolicy {
	case "first", "highest_confidence":
	default:
		return fmt.Errorf("config error: invalid selection policy %q, must be one of: first, highest_confidence", c.Analysis.SelectionPolicy)
	}

	a := c.Analysis
	if a.EdgeThreshold <= 0 || a.HueStdThreshold <= 0 {
		return fmt.Errorf("config error: thresholds must be positive (edge=%v, hue_std=%v)", a.EdgeThreshold, a.HueStdThreshold)
	}
	if a.CannyLow <= 0 || a.CannyHigh <= 0 || a.CannyLow > a.CannyHigh {
		return fmt.Errorf("config error: canny bounds must satisfy 0 < low <= high, got %v/%v", a.CannyLow, a.CannyHigh)
	}
	if c.HistoryLimit < 1 {
		return fmt.Errorf("config error: history limit must be at least 1, got %d", c.HistoryLimit)
	}
	if c.MaxPixels < 1 {
		return fmt.Errorf("config error: max pixels must be at least 1, got %d", c.MaxPixels)
	}
	switch c.PreviewFormat {
	case PreviewJPEG, PreviewWebP:
	default:
		return fmt.Errorf("config error: invalid preview format %q, must be one of: jpeg, webp", c.PreviewFormat)
	}
	if c.LocalizerTimeout < 0 {
		return fmt.Errorf("config error: localizer timeout must not be negative")
	}
	return nil
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getInt(k string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config error: %s must be an integer: %w", k, err)
	}
	return n, nil
}

func getFloat(k string, def float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config error: %s must be a number: %w", k, err)
	}
	return f, nil
}

func getDuration(k string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config error: %s must be a duration: %w", k, err)
	}
	return d, nil
}
