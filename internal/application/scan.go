package app

import (
	"context"
	"errors"
	"image"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"qc-scanner/internal/domain/entity"
	"qc-scanner/internal/domain/port"
	"qc-scanner/internal/logger"
)

// ScanSettings параметры политики вердикта
type ScanSettings struct {
	TargetClass      int                    // категория изделия во внешней нумерации детектора
	ProductModel     string                 // модель, которая проставляется в запись
	Policy           entity.SelectionPolicy // какую из подходящих детекций анализировать
	LocalizerTimeout time.Duration          // ограничение на один вызов локализатора, 0 без ограничения
	HistoryLimit     int                    // размер истории по умолчанию
}

// ScanService собирает конвейер: декодер → локализатор → ROI → эвристики → вердикт → хранилище.
// Состояния между запросами нет, сервис можно вызывать конкурентно.
type ScanService struct {
	decoder   port.FrameDecoder
	localizer port.ObjectLocalizer
	extractor port.RegionExtractor
	analyzer  port.DefectAnalyzer
	repo      port.ScanRepository
	settings  ScanSettings

	newID func() string
	now   func() time.Time
}

// ScanOutput запись и служебные данные для фронтендов (превью, метрики)
type ScanOutput struct {
	Record *entity.ScanRecord
	Frame  image.Image       // декодированный кадр
	Target *entity.Detection // выбранная детекция, nil если изделия нет
	Report *entity.AnalysisReport
}

// NewScanService создаёт сервис проверки изделий.
func NewScanService(
	decoder port.FrameDecoder,
	localizer port.ObjectLocalizer,
	extractor port.RegionExtractor,
	analyzer port.DefectAnalyzer,
	repo port.ScanRepository,
	settings ScanSettings,
) *ScanService {
	if settings.Policy == "" {
		settings.Policy = entity.SelectFirst
	}
	if settings.HistoryLimit <= 0 {
		settings.HistoryLimit = 50
	}
	return &ScanService{
		decoder:   decoder,
		localizer: localizer,
		extractor: extractor,
		analyzer:  analyzer,
		repo:      repo,
		settings:  settings,
		newID:     uuid.NewString,
		now:       func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// Scan проверяет изделие на снимке и возвращает сохранённую запись.
func (s *ScanService) Scan(ctx context.Context, payload string) (*entity.ScanRecord, error) {
	out, err := s.Inspect(ctx, payload)
	if err != nil {
		return nil, err
	}
	return out.Record, nil
}

// Inspect выполняет весь конвейер. Ошибки: *entity.DecodeError, *entity.LocalizerFailure,
// *entity.SinkFailure. Вырожденная рамка не ошибка: изделие считается ненайденным.
func (s *ScanService) Inspect(ctx context.Context, payload string) (*ScanOutput, error) {
	if s.decoder == nil || s.localizer == nil || s.extractor == nil || s.analyzer == nil || s.repo == nil {
		return nil, errors.New("scan pipeline is not configured")
	}

	frame, err := s.decoder.Decode(payload)
	if err != nil {
		return nil, err
	}

	detections, err := s.localize(ctx, frame)
	if err != nil {
		return nil, &entity.LocalizerFailure{Err: err}
	}

	out := &ScanOutput{Frame: frame}
	var defects []entity.DefectFinding
	if det, ok := entity.SelectTarget(detections, s.settings.TargetClass, s.settings.Policy); ok {
		roi, err := s.extractor.Extract(frame, det.Box)
		var empty *entity.EmptyRegionError
		switch {
		case errors.As(err, &empty):
			logger.WithFields(logrus.Fields{"box": empty.Box}).Warn("target detection has empty region, treating as absent")
		case err != nil:
			return nil, err
		default:
			report := s.analyzer.Analyze(roi)
			out.Target = &det
			out.Report = &report
			defects = report.Defects
		}
	}

	rec := entity.NewScanRecord(s.newID(), s.now(), s.settings.ProductModel, out.Target, defects, payload)
	out.Record = rec

	fields := logrus.Fields{
		"scan_id":        rec.ID,
		"status":         rec.Status,
		"target_present": rec.TargetPresent,
		"confidence":     rec.Confidence,
		"detections":     len(detections),
	}
	if out.Report != nil {
		fields["edge_energy"] = out.Report.EdgeEnergy
		fields["hue_std"] = out.Report.HueStdDev
	}
	if !rec.TargetPresent {
		// TODO: решить с технологами, должен ли отсутствующий объект давать rejected
		logger.WithFields(fields).Warn("target not found, scan approved with zero confidence")
	} else {
		logger.WithFields(fields).Info("scan completed")
	}

	if err := s.repo.Add(ctx, rec); err != nil {
		return nil, &entity.SinkFailure{ScanID: rec.ID, Err: err}
	}
	return out, nil
}

func (s *ScanService) localize(ctx context.Context, frame image.Image) ([]entity.Detection, error) {
	if s.settings.LocalizerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.settings.LocalizerTimeout)
		defer cancel()
	}
	return s.localizer.Localize(ctx, frame)
}

// History возвращает последние проверки; при limit <= 0 берётся размер по умолчанию
func (s *ScanService) History(ctx context.Context, limit int) ([]*entity.ScanRecord, error) {
	if limit <= 0 {
		limit = s.settings.HistoryLimit
	}
	return s.repo.History(ctx, limit)
}

// Statistics возвращает агрегаты по проверкам
func (s *ScanService) Statistics(ctx context.Context) (*entity.ScanStatistics, error) {
	return s.repo.Statistics(ctx)
}
