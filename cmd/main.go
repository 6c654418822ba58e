package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"qc-scanner/config"
	"qc-scanner/internal/api/httpapi"
	"qc-scanner/internal/api/telegram"
	app "qc-scanner/internal/application"
	"qc-scanner/internal/container"
	"qc-scanner/internal/domain/entity"
	"qc-scanner/internal/domain/port"
	"qc-scanner/internal/infrastructure/localizer"
	"qc-scanner/internal/infrastructure/storage"
	"qc-scanner/internal/infrastructure/vision"
	"qc-scanner/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.LogLevel)
	if cfg.LogFormat == "json" {
		logger.SetJSON()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Хранилище проверок: Postgres, если задан DATABASE_URL, иначе память
	scanRepo, closeStore, err := newScanRepository(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("Failed to open scan storage: %v", err)
	}
	defer closeStore()

	loc, err := newLocalizer(cfg)
	if err != nil {
		logger.Fatalf("Failed to create localizer: %v", err)
	}

	// Собираем сервисы приложения
	a := cfg.Analysis
	appContainer := container.New(
		scanRepo,
		storage.NewMemoryOperatorRepository(),
		container.Pipeline{
			Decoder:   vision.NewDecoder(cfg.MaxPixels),
			Localizer: loc,
			Extractor: vision.NewCropper(),
			Analyzer: vision.NewDefectAnalyzer(vision.Thresholds{
				EdgeSum:   a.EdgeThreshold,
				HueStdDev: a.HueStdThreshold,
				CannyLow:  a.CannyLow,
				CannyHigh: a.CannyHigh,
			}),
		},
		app.ScanSettings{
			TargetClass:      a.TargetClass,
			ProductModel:     a.ProductModel,
			Policy:           entity.SelectionPolicy(a.SelectionPolicy),
			LocalizerTimeout: cfg.LocalizerTimeout,
			HistoryLimit:     cfg.HistoryLimit,
		},
		cfg.PreviewFormat,
	)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.New(appContainer.ScanService).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Infof("HTTP API listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server error: %v", err)
		}
	}()

	// Бот опционален: без токена работает только REST API
	if cfg.TelegramToken != "" {
		bot, err := telegram.NewBot(cfg.TelegramToken, appContainer)
		if err != nil {
			logger.Fatalf("Failed to create bot: %v", err)
		}
		go func() {
			logger.Info("Bot is running...")
			if err := bot.Run(ctx); err != nil {
				logger.Errorf("Bot error: %v", err)
			}
		}()
	} else {
		logger.Warn("TELEGRAM_TOKEN is not set, bot disabled")
	}

	<-ctx.Done()
	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("HTTP shutdown error: %v", err)
	}
}

func newScanRepository(ctx context.Context, dsn string) (port.ScanRepository, func(), error) {
	if dsn == "" {
		logger.Info("DATABASE_URL is not set, using in-memory scan storage")
		return storage.NewMemoryScanRepository(), func() {}, nil
	}

	db, err := storage.OpenPostgres(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}

	repo := storage.NewPostgresScanRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	logger.Info("Using Postgres scan storage")
	return repo, func() { _ = db.Close() }, nil
}

func newLocalizer(cfg *config.Config) (port.ObjectLocalizer, error) {
	// Таймаут задаёт конвейер через контекст
	client := &http.Client{}

	switch cfg.Localizer {
	case config.LocalizerHTTP:
		logger.Infof("Using HTTP localizer at %s", cfg.LocalizerURL)
		return localizer.NewHTTP(cfg.LocalizerURL, client), nil
	case config.LocalizerOllama:
		logger.Infof("Using Ollama localizer %s at %s", cfg.OllamaModel, cfg.OllamaURL)
		return localizer.NewOllama(cfg.OllamaURL, cfg.OllamaModel, cfg.Analysis.TargetLabel, cfg.Analysis.TargetClass, client)
	case config.LocalizerFullFrame:
		logger.Info("Using full-frame localizer")
		return localizer.NewFullFrame(cfg.Analysis.TargetClass), nil
	default:
		return nil, fmt.Errorf("unknown localizer %q", cfg.Localizer)
	}
}
