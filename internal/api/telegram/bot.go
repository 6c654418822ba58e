package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	app "qc-scanner/internal/application"
	"qc-scanner/internal/container"
	"qc-scanner/internal/domain/entity"
	"qc-scanner/internal/infrastructure/vision"
	"qc-scanner/internal/logger"
)

const (
	msgStart = `👋 Привет! Я бот контроля качества игровых мышей.

📸 Отправьте фото изделия, и я проверю его на царапины и неоднородность цвета.

📋 Команды:
/check - начать проверку изделия
/stats - статистика проверок
/help - справка
/cancel - отменить текущую операцию`

	msgHelp = `ℹ️ Как пользоваться ботом:

1️⃣ Отправьте фото изделия
2️⃣ Бот найдёт мышь на снимке и проверит её поверхность
3️⃣ Вы получите вердикт и фото с выделенной областью

💡 Рекомендации:
• Снимайте при хорошем освещении
• Используйте однотонный фон
• Изделие должно целиком попадать в кадр

📋 Команды:
/check - начать проверку
/stats - статистика
/cancel - отменить операцию`

	msgAwaitingPhoto   = "📸 Отправьте фото изделия для проверки."
	msgCancelled       = "❌ Операция отменена. Отправьте /check для новой проверки."
	msgSendPhoto       = "📸 Пожалуйста, отправьте фото изделия для проверки."
	msgUnknownCommand  = "❓ Неизвестная команда. Используйте /help для справки."
	msgProcessing      = "⏳ Обрабатываю изображение..."
	msgBadImage        = "⚠️ Не удалось прочитать изображение. Попробуйте отправить другое фото."
	msgProcessingError = "⚠️ Не удалось обработать изображение. Попробуйте позже."
	msgStatsError      = "⚠️ Не удалось получить статистику."
)

// Bot представляет Telegram-бота
type Bot struct {
	api       *tgbotapi.BotAPI
	operators *app.OperatorService
	scans     *app.ScanService
	client    *http.Client
	preview   string // формат превью: vision.FormatJPEG или vision.FormatWebP
}

// NewBot создаёт нового бота
func NewBot(token string, c *container.Container) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	logger.Infof("Authorized on account %s", api.Self.UserName)

	return &Bot{
		api:       api,
		operators: c.OperatorService,
		scans:     c.ScanService,
		client:    &http.Client{Timeout: 30 * time.Second},
		preview:   c.PreviewFormat,
	}, nil
}

// Run запускает основной цикл обработки сообщений до отмены ctx
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

// handleMessage обрабатывает входящее сообщение
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}

	// Обработка команд
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	// Обработка фото
	if len(msg.Photo) > 0 {
		b.handlePhoto(ctx, msg)
		return
	}

	// Текстовое сообщение (не команда)
	b.sendMessage(msg.Chat.ID, msgSendPhoto)
}

// handleCommand обрабатывает команды бота
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	userID, chatID := msg.From.ID, msg.Chat.ID

	switch msg.Command() {
	case "start":
		b.setState(ctx, userID, chatID, entity.StateIdle)
		b.sendMessage(chatID, msgStart)

	case "help":
		b.sendMessage(chatID, msgHelp)

	case "check":
		if _, err := b.operators.BeginCheck(ctx, userID, chatID); err != nil {
			logger.WithError(err).Error("failed to update operator state")
		}
		b.sendMessage(chatID, msgAwaitingPhoto)

	case "cancel":
		if _, err := b.operators.Cancel(ctx, userID, chatID); err != nil {
			logger.WithError(err).Error("failed to update operator state")
		}
		b.sendMessage(chatID, msgCancelled)

	case "stats":
		stats, err := b.scans.Statistics(ctx)
		if err != nil {
			logger.WithError(err).Error("failed to compute statistics")
			b.sendMessage(chatID, msgStatsError)
			return
		}
		var lastScanID string
		if op, err := b.operators.Get(ctx, userID, chatID); err != nil {
			logger.WithError(err).Warn("failed to load operator")
		} else {
			lastScanID = op.LastScanID
		}
		b.sendMessage(chatID, formatStats(stats, lastScanID))

	default:
		b.sendMessage(chatID, msgUnknownCommand)
	}
}

// handlePhoto обрабатывает входящее фото
func (b *Bot) handlePhoto(ctx context.Context, msg *tgbotapi.Message) {
	userID, chatID := msg.From.ID, msg.Chat.ID

	b.setState(ctx, userID, chatID, entity.StateProcessing)
	b.sendMessage(chatID, msgProcessing)

	// Получаем файл с максимальным разрешением
	photo := msg.Photo[len(msg.Photo)-1]

	imageData, err := b.downloadFile(ctx, photo.FileID)
	if err != nil {
		logger.WithError(err).Error("failed to download photo")
		b.sendMessage(chatID, msgProcessingError)
		b.setState(ctx, userID, chatID, entity.StateIdle)
		return
	}

	// Telegram перекодирует фото в JPEG
	out, err := b.scans.Inspect(ctx, vision.EncodeDataURI("image/jpeg", imageData))
	if err != nil {
		var decodeErr *entity.DecodeError
		if errors.As(err, &decodeErr) {
			b.sendMessage(chatID, msgBadImage)
		} else {
			logger.WithError(err).Error("scan failed")
			b.sendMessage(chatID, msgProcessingError)
		}
		b.setState(ctx, userID, chatID, entity.StateIdle)
		return
	}

	text := formatVerdict(out.Record, out.Report)
	if out.Target == nil {
		b.sendMessage(chatID, text)
	} else {
		b.sendPreview(chatID, out, text)
	}

	if _, err := b.operators.FinishCheck(ctx, userID, chatID, out.Record.ID); err != nil {
		logger.WithError(err).Error("failed to update operator state")
	}
}

// sendPreview отправляет кадр с выделенным изделием; при ошибке только текст
func (b *Bot) sendPreview(chatID int64, out *app.ScanOutput, caption string) {
	format := b.preview
	if format == "" {
		format = vision.FormatJPEG
	}

	preview, err := vision.Highlight(out.Frame, out.Target.Box, format)
	if err != nil {
		logger.WithError(err).Warn("failed to render preview")
		b.sendMessage(chatID, caption)
		return
	}

	if _, err := b.api.Send(previewMessage(chatID, out.Record.ID, format, preview, caption)); err != nil {
		logger.WithError(err).Error("failed to send preview")
		b.sendMessage(chatID, caption)
	}
}

// previewMessage собирает сообщение с превью. WebP Telegram не показывает как фото,
// поэтому он уходит документом.
func previewMessage(chatID int64, scanID, format string, data []byte, caption string) tgbotapi.Chattable {
	if format == vision.FormatWebP {
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: scanID + ".webp", Bytes: data})
		doc.Caption = caption
		return doc
	}

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: scanID + ".jpg", Bytes: data})
	photo.Caption = caption
	return photo
}

func (b *Bot) setState(ctx context.Context, userID, chatID int64, state entity.OperatorState) {
	if _, err := b.operators.SetState(ctx, userID, chatID, state); err != nil {
		logger.WithFields(logrus.Fields{"user_id": userID, "state": state}).WithError(err).Error("failed to update operator state")
	}
}

// downloadFile скачивает файл из Telegram
func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(b.api.Token), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}

// sendMessage отправляет текстовое сообщение
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		logger.WithError(err).Error("failed to send message")
	}
}

// formatVerdict формирует текст ответа по результату проверки
func formatVerdict(rec *entity.ScanRecord, report *entity.AnalysisReport) string {
	var sb strings.Builder

	switch {
	case !rec.TargetPresent:
		sb.WriteString("🔍 Изделие на снимке не найдено.\n")
	case rec.Status == entity.StatusRejected:
		sb.WriteString("❌ Брак: изделие отклонено.\n")
	default:
		sb.WriteString("✅ Дефекты не обнаружены.\n")
	}

	sb.WriteString(fmt.Sprintf("\nМодель: %s\n", rec.ProductModel))
	if rec.TargetPresent {
		sb.WriteString(fmt.Sprintf("Уверенность: %.0f%%\n", rec.Confidence*100))
	}

	if len(rec.Defects) > 0 {
		sb.WriteString("\nДефекты:\n")
		for _, d := range rec.Defects {
			sb.WriteString(fmt.Sprintf("• %s\n", defectTitle(d)))
		}
	}

	if report != nil {
		sb.WriteString(fmt.Sprintf("\nКонтуры: %.0f, разброс тона: %.1f\n", report.EdgeEnergy, report.HueStdDev))
	}

	sb.WriteString(fmt.Sprintf("ID: %s", rec.ID))
	return sb.String()
}

func defectTitle(d entity.DefectFinding) string {
	switch d {
	case entity.DefectScratchedSurface:
		return "Царапины на поверхности"
	case entity.DefectColorInconsistency:
		return "Неоднородный цвет"
	default:
		return string(d)
	}
}

// formatStats формирует ответ на /stats; lastScanID последняя проверка оператора, если была
func formatStats(s *entity.ScanStatistics, lastScanID string) string {
	if s.Total == 0 {
		return "📊 Проверок пока не было."
	}
	text := fmt.Sprintf("📊 Статистика проверок\n\nВсего: %d\n✅ Годных: %d\n❌ Брак: %d\nСредняя уверенность: %.0f%%",
		s.Total, s.Approved, s.Rejected, s.AvgConfidence*100)
	if lastScanID != "" {
		text += "\n\nВаша последняя проверка: " + lastScanID
	}
	return text
}
