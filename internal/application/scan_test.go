package app

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"qc-scanner/internal/domain/entity"
	"qc-scanner/internal/infrastructure/storage"
	"qc-scanner/internal/infrastructure/vision"
)

const mouseClass = 74

type fakeLocalizer struct {
	detections []entity.Detection
	err        error
	calls      atomic.Int32
}

func (f *fakeLocalizer) Localize(ctx context.Context, frame image.Image) ([]entity.Detection, error) {
	f.calls.Add(1)
	return f.detections, f.err
}

// blockingLocalizer отвечает только по отмене контекста
type blockingLocalizer struct{}

func (blockingLocalizer) Localize(ctx context.Context, frame image.Image) ([]entity.Detection, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type countingRepo struct {
	*storage.MemoryScanRepository
	adds atomic.Int32
	err  error
}

func (r *countingRepo) Add(ctx context.Context, rec *entity.ScanRecord) error {
	r.adds.Add(1)
	if r.err != nil {
		return r.err
	}
	return r.MemoryScanRepository.Add(ctx, rec)
}

// frameWithRegion серый кадр 120x80; внутри region диагональные чёрно-белые полосы
func frameWithRegion(region image.Rectangle) string {
	img := image.NewNRGBA(image.Rect(0, 0, 120, 80))
	for y := 0; y < 80; y++ {
		for x := 0; x < 120; x++ {
			c := color.NRGBA{R: 128, G: 128, B: 128, A: 255}
			if image.Pt(x, y).In(region) {
				c = color.NRGBA{A: 255}
				if ((x+y)/4)%2 == 0 {
					c = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
				}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return vision.EncodeDataURI("image/png", buf.Bytes())
}

func newTestService(loc *fakeLocalizer, repo *countingRepo, policy entity.SelectionPolicy) *ScanService {
	svc := NewScanService(
		vision.NewDecoder(0),
		loc,
		vision.NewCropper(),
		vision.NewDefectAnalyzer(vision.DefaultThresholds()),
		repo,
		ScanSettings{TargetClass: mouseClass, ProductModel: "Gaming Mouse X1", Policy: policy},
	)
	svc.newID = func() string { return "scan-1" }
	svc.now = func() time.Time { return time.Date(2026, 10, 17, 9, 30, 0, 250000000, time.UTC) }
	return svc
}

func newRepo() *countingRepo {
	return &countingRepo{MemoryScanRepository: storage.NewMemoryScanRepository()}
}

var (
	smoothBox  = entity.Box{X1: 5, Y1: 5, X2: 45, Y2: 75}
	stripedBox = entity.Box{X1: 60, Y1: 5, X2: 115, Y2: 75}
	payload    = frameWithRegion(image.Rect(60, 5, 115, 75))
)

func TestScan_ApprovedUniformSurface(t *testing.T) {
	loc := &fakeLocalizer{detections: []entity.Detection{{Class: mouseClass, Confidence: 0.92, Box: smoothBox}}}
	repo := newRepo()

	rec, err := newTestService(loc, repo, entity.SelectFirst).Scan(context.Background(), payload)
	require.NoError(t, err)
	require.Equal(t, &entity.ScanRecord{
		ID:            "scan-1",
		Timestamp:     time.Date(2026, 10, 17, 9, 30, 0, 250000000, time.UTC),
		Status:        entity.StatusApproved,
		ProductModel:  "Gaming Mouse X1",
		TargetPresent: true,
		Defects:       []entity.DefectFinding{},
		Confidence:    0.92,
		SourceImage:   payload,
	}, rec)
	require.Equal(t, int32(1), repo.adds.Load())
}

func TestScan_RejectedScratches(t *testing.T) {
	loc := &fakeLocalizer{detections: []entity.Detection{{Class: mouseClass, Confidence: 0.92, Box: stripedBox}}}
	repo := newRepo()

	out, err := newTestService(loc, repo, entity.SelectFirst).Inspect(context.Background(), payload)
	require.NoError(t, err)
	require.Equal(t, entity.StatusRejected, out.Record.Status)
	require.Equal(t, []entity.DefectFinding{entity.DefectScratchedSurface}, out.Record.Defects)
	require.NotNil(t, out.Report)
	require.Greater(t, out.Report.EdgeEnergy, 10000.0)
	require.Equal(t, stripedBox, out.Target.Box)
}

func TestScan_NoDetections(t *testing.T) {
	loc := &fakeLocalizer{detections: []entity.Detection{{Class: 41, Confidence: 0.99, Box: stripedBox}}}
	repo := newRepo()

	rec, err := newTestService(loc, repo, entity.SelectFirst).Scan(context.Background(), payload)
	require.NoError(t, err)
	require.Equal(t, entity.StatusApproved, rec.Status)
	require.False(t, rec.TargetPresent)
	require.Zero(t, rec.Confidence)
	require.Empty(t, rec.Defects)
	require.Equal(t, int32(1), repo.adds.Load())
}

func TestScan_MalformedPayload(t *testing.T) {
	loc := &fakeLocalizer{}
	repo := newRepo()

	rec, err := newTestService(loc, repo, entity.SelectFirst).Scan(context.Background(), "data:image/jpeg;base64,bm90IGFuIGltYWdl")
	require.Nil(t, rec)
	var decErr *entity.DecodeError
	require.True(t, errors.As(err, &decErr))
	require.Zero(t, loc.calls.Load())
	require.Zero(t, repo.adds.Load())
}

func TestScan_FirstQualifyingDetectionWins(t *testing.T) {
	loc := &fakeLocalizer{detections: []entity.Detection{
		{Class: 0, Confidence: 0.99, Box: stripedBox},
		{Class: mouseClass, Confidence: 0.55, Box: smoothBox},
		{Class: mouseClass, Confidence: 0.97, Box: stripedBox},
	}}

	rec, err := newTestService(loc, newRepo(), entity.SelectFirst).Scan(context.Background(), payload)
	require.NoError(t, err)
	require.Equal(t, 0.55, rec.Confidence)
	require.Equal(t, entity.StatusApproved, rec.Status)

	rec, err = newTestService(loc, newRepo(), entity.SelectHighestConfidence).Scan(context.Background(), payload)
	require.NoError(t, err)
	require.Equal(t, 0.97, rec.Confidence)
	require.Equal(t, entity.StatusRejected, rec.Status)
}

func TestScan_EmptyRegionTreatedAsAbsent(t *testing.T) {
	loc := &fakeLocalizer{detections: []entity.Detection{{Class: mouseClass, Confidence: 0.8, Box: entity.Box{X1: 500, Y1: 500, X2: 600, Y2: 600}}}}
	repo := newRepo()

	out, err := newTestService(loc, repo, entity.SelectFirst).Inspect(context.Background(), payload)
	require.NoError(t, err)
	require.False(t, out.Record.TargetPresent)
	require.Zero(t, out.Record.Confidence)
	require.Nil(t, out.Target)
	require.Equal(t, int32(1), repo.adds.Load())
}

func TestScan_LocalizerFailure(t *testing.T) {
	loc := &fakeLocalizer{err: errors.New("model crashed")}
	repo := newRepo()

	_, err := newTestService(loc, repo, entity.SelectFirst).Scan(context.Background(), payload)
	var locErr *entity.LocalizerFailure
	require.True(t, errors.As(err, &locErr))
	require.ErrorContains(t, err, "model crashed")
	require.Zero(t, repo.adds.Load())
}

func TestScan_LocalizerTimeout(t *testing.T) {
	repo := newRepo()
	svc := NewScanService(vision.NewDecoder(0), blockingLocalizer{}, vision.NewCropper(),
		vision.NewDefectAnalyzer(vision.DefaultThresholds()), repo,
		ScanSettings{TargetClass: mouseClass, LocalizerTimeout: 20 * time.Millisecond})

	_, err := svc.Scan(context.Background(), payload)
	var locErr *entity.LocalizerFailure
	require.True(t, errors.As(err, &locErr))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestScan_SinkFailure(t *testing.T) {
	loc := &fakeLocalizer{detections: []entity.Detection{{Class: mouseClass, Confidence: 0.9, Box: smoothBox}}}
	repo := newRepo()
	repo.err = errors.New("disk full")

	rec, err := newTestService(loc, repo, entity.SelectFirst).Scan(context.Background(), payload)
	require.Nil(t, rec)
	var sinkErr *entity.SinkFailure
	require.True(t, errors.As(err, &sinkErr))
	require.Equal(t, "scan-1", sinkErr.ScanID)
	require.Equal(t, int32(1), repo.adds.Load())
}

func TestScan_NotConfigured(t *testing.T) {
	svc := NewScanService(nil, nil, nil, nil, nil, ScanSettings{})
	_, err := svc.Scan(context.Background(), payload)
	require.Error(t, err)
}

func TestScan_PersistedRecordRoundTrip(t *testing.T) {
	loc := &fakeLocalizer{detections: []entity.Detection{{Class: mouseClass, Confidence: 0.7, Box: stripedBox}}}
	svc := newTestService(loc, newRepo(), entity.SelectFirst)
	ctx := context.Background()

	rec, err := svc.Scan(ctx, payload)
	require.NoError(t, err)

	history, err := svc.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, rec, history[0])

	stats, err := svc.Statistics(ctx)
	require.NoError(t, err)
	require.Equal(t, &entity.ScanStatistics{Total: 1, Rejected: 1, AvgConfidence: 0.7}, stats)
}

func TestScan_Concurrent(t *testing.T) {
	loc := &fakeLocalizer{detections: []entity.Detection{{Class: mouseClass, Confidence: 0.9, Box: stripedBox}}}
	repo := newRepo()
	svc := NewScanService(vision.NewDecoder(0), loc, vision.NewCropper(),
		vision.NewDefectAnalyzer(vision.DefaultThresholds()), repo,
		ScanSettings{TargetClass: mouseClass, ProductModel: "Gaming Mouse X1"})

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := svc.Scan(context.Background(), payload)
			if err == nil && len(rec.Defects) != 1 {
				err = errors.New("unexpected defects")
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stats, err := svc.Statistics(context.Background())
	require.NoError(t, err)
	require.Equal(t, 16, stats.Total)
}
