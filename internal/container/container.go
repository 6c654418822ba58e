package container

import (
	app "qc-scanner/internal/application"
	"qc-scanner/internal/domain/port"
)

type Container struct {
	OperatorService *app.OperatorService
	ScanService     *app.ScanService
	PreviewFormat   string // формат превью с подсветкой для фронтендов
}

// Pipeline адаптеры конвейера проверки
type Pipeline struct {
	Decoder   port.FrameDecoder
	Localizer port.ObjectLocalizer
	Extractor port.RegionExtractor
	Analyzer  port.DefectAnalyzer
}

func New(scanRepo port.ScanRepository, operatorRepo port.OperatorRepository, p Pipeline, settings app.ScanSettings, previewFormat string) *Container {
	operatorService := app.NewOperatorService(operatorRepo)
	scanService := app.NewScanService(p.Decoder, p.Localizer, p.Extractor, p.Analyzer, scanRepo, settings)

	return &Container{
		OperatorService: operatorService,
		ScanService:     scanService,
		PreviewFormat:   previewFormat,
	}
}
