package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/burn-severity-service/internal/adapter/earthengine/expr"
	"github.com/couchcryptid/burn-severity-service/internal/domain"
	"github.com/couchcryptid/burn-severity-service/internal/observability"
	"github.com/couchcryptid/burn-severity-service/internal/pipeline"
)

// --- mocks ---

// fakeEngine answers graphs by their root function, the same way the remote
// engine would for the shapes the pipeline builds.
type fakeEngine struct {
	sceneCount    float64
	classAreasM2  map[int]float64
	regionAreaM2  float64
	burnScars     json.RawMessage
	precipitation json.RawMessage
	temperature   json.RawMessage
	computeErr    error
	mapErr        error
	delay         time.Duration

	mu       sync.Mutex
	calls    map[string]int
	inFlight atomic.Int32
	peak     atomic.Int32
}

func newFakeEngine(t *testing.T) *fakeEngine {
	return &fakeEngine{
		sceneCount:    4,
		classAreasM2:  map[int]float64{3: 5e6, 4: 2e6, 7: 1e6},
		regionAreaM2:  10e6,
		burnScars:     loadFixture(t, "burn_scars.json"),
		precipitation: loadFixture(t, "precipitation.json"),
		temperature:   loadFixture(t, "temperature.json"),
		calls:         make(map[string]int),
	}
}

func (f *fakeEngine) enter(name string) func() {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()

	n := f.inFlight.Add(1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return func() { f.inFlight.Add(-1) }
}

func (f *fakeEngine) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeEngine) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func (f *fakeEngine) ComputeValue(_ context.Context, n *expr.Node) (json.RawMessage, error) {
	defer f.enter(n.Function())()

	switch n.Function() {
	case "":
		return json.RawMessage(`"ready"`), f.computeErr
	case "Collection.size":
		return json.RawMessage(fmt.Sprint(f.sceneCount)), nil
	case "Geometry.area":
		return json.RawMessage(fmt.Sprint(f.regionAreaM2)), nil
	case "Geometry.centroid":
		return json.RawMessage(`{"type":"Point","coordinates":[16.25,36.65]}`), nil
	case "Collection.limit":
		return f.burnScars, nil
	case "Image.reduceRegion":
		if f.computeErr != nil {
			return nil, f.computeErr
		}
		if n.Arg("reducer").Function() == "Reducer.sum" {
			class := n.Arg("image").Arg("image1").Arg("image2").Arg("value").Value().(float64)
			return json.Marshal(map[string]float64{"nd": f.classAreasM2[int(class)]})
		}
		if n.Arg("scale").Value() == 30.0 {
			return f.precipitation, nil
		}
		return f.temperature, nil
	}
	return nil, fmt.Errorf("unexpected graph %s", n.Function())
}

func (f *fakeEngine) MapTiles(_ context.Context, n *expr.Node) (string, error) {
	defer f.enter("maps")()
	if f.mapErr != nil {
		return "", f.mapErr
	}
	return "https://tiles.example/" + n.Arg("image").Function() + "/{z}/{x}/{y}", nil
}

type recordingSink struct {
	name     string
	err      error
	mu       sync.Mutex
	reports  []*domain.Report
	warnings [][]string // warnings as they were at delivery
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Deliver(_ context.Context, r *domain.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, r)
	s.warnings = append(s.warnings, slices.Clone(r.Warnings))
	return s.err
}

func loadFixture(t *testing.T, name string) json.RawMessage {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

func newTestPipeline(engine pipeline.Engine, sinks ...pipeline.ReportSink) *pipeline.Pipeline {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return pipeline.New(engine, sinks, logger, observability.NewMetricsForTesting(), pipeline.Options{
		MaxConcurrency:    4,
		MaxVectorFeatures: 500,
	})
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	engine := newFakeEngine(t)
	sink := &recordingSink{name: "memory"}
	p := newTestPipeline(engine, sink)

	report, err := p.Run(context.Background(), domain.DefaultAnalysisRequest())
	require.NoError(t, err)

	assert.NotEmpty(t, report.ID)
	assert.Equal(t, domain.DefaultAnalysisRequest().Fingerprint(), report.Fingerprint)
	assert.InDelta(t, 10.0, report.AreaKm2, 0)
	assert.InDelta(t, 3.0, report.BurnedKm2, 0)
	assert.InDelta(t, 2.0, report.UnclassifiedKm2, 0)
	require.Len(t, report.Classes, 7)
	assert.InDelta(t, 5.0, report.Classes[2].AreaKm2, 0)
	assert.InDelta(t, 1.0, report.Classes[6].AreaKm2, 0)
	assert.Equal(t, "#902cd6", report.Classes[6].Color)

	require.NotNil(t, report.Centroid)
	assert.Equal(t, domain.Coordinate{Lat: 36.65, Lon: 16.25}, *report.Centroid)
	assert.Equal(t, domain.BoundaryViewZoom, report.View.Zoom)

	require.Len(t, report.Layers, 6)
	kinds := make([]domain.LayerKind, len(report.Layers))
	for i, l := range report.Layers {
		kinds[i] = l.Kind
		assert.Contains(t, l.URL, "{z}/{x}/{y}")
	}
	assert.Equal(t, []domain.LayerKind{
		domain.LayerTrueColor, domain.LayerTrueColor, domain.LayerNDWI,
		domain.LayerDNBR, domain.LayerClassified, domain.LayerBurnScar,
	}, kinds)

	assert.Contains(t, string(report.BurnScars), "FeatureCollection")
	assert.Len(t, report.Precipitation, 3)
	assert.Len(t, report.Temperature, 2)
	assert.Empty(t, report.Warnings)

	assert.Equal(t, 2, engine.callCount("Collection.size"))
	assert.Equal(t, 6, engine.callCount("maps"))
	require.Len(t, sink.reports, 1)
	assert.Same(t, report, sink.reports[0])
	require.NoError(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_InvalidRequestMakesNoRemoteCalls(t *testing.T) {
	engine := newFakeEngine(t)
	p := newTestPipeline(engine)

	req := domain.DefaultAnalysisRequest()
	req.PostFire.Start = req.PreFire.End

	_, err := p.Run(context.Background(), req)
	require.ErrorIs(t, err, domain.ErrInvalidRequest)
	assert.Zero(t, engine.totalCalls())
}

func TestPipeline_Run_NoImagery(t *testing.T) {
	engine := newFakeEngine(t)
	engine.sceneCount = 0
	sink := &recordingSink{name: "memory"}
	p := newTestPipeline(engine, sink)

	_, err := p.Run(context.Background(), domain.DefaultAnalysisRequest())
	require.ErrorIs(t, err, domain.ErrNoImagery)
	assert.Contains(t, err.Error(), "cloud cover below 75%")
	assert.Zero(t, engine.callCount("maps"))
	assert.Empty(t, sink.reports)
}

func TestPipeline_Run_RemoteFailure(t *testing.T) {
	engine := newFakeEngine(t)
	engine.mapErr = fmt.Errorf("%w: tile backend unavailable", domain.ErrRemote)
	p := newTestPipeline(engine)

	report, err := p.Run(context.Background(), domain.DefaultAnalysisRequest())
	require.ErrorIs(t, err, domain.ErrRemote)
	assert.Nil(t, report)
}

func TestPipeline_Run_SinkFailureDoesNotFailRun(t *testing.T) {
	engine := newFakeEngine(t)
	broken := &recordingSink{name: "broken", err: errors.New("broker down")}
	healthy := &recordingSink{name: "healthy"}
	p := newTestPipeline(engine, broken, healthy)

	report, err := p.Run(context.Background(), domain.DefaultAnalysisRequest())
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Len(t, broken.reports, 1)
	assert.Len(t, healthy.reports, 1)
}

func TestPipeline_Run_EmptyClimateIsWarning(t *testing.T) {
	engine := newFakeEngine(t)
	engine.precipitation = json.RawMessage(`{}`)
	engine.temperature = json.RawMessage(`{}`)
	p := newTestPipeline(engine)

	report, err := p.Run(context.Background(), domain.DefaultAnalysisRequest())
	require.NoError(t, err)
	assert.Empty(t, report.Precipitation)
	assert.Empty(t, report.Temperature)
	assert.Contains(t, report.Warnings, "no precipitation data between 2023-07-01 and 2023-07-31")
	assert.Contains(t, report.Warnings, "no temperature data between 2023-07-01 and 2023-07-31")
}

func TestPipeline_Run_BurnScarTruncationWarning(t *testing.T) {
	engine := newFakeEngine(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := pipeline.New(engine, nil, logger, observability.NewMetricsForTesting(), pipeline.Options{
		MaxConcurrency:    2,
		MaxVectorFeatures: 2,
	})

	report, err := p.Run(context.Background(), domain.DefaultAnalysisRequest())
	require.NoError(t, err)
	assert.Contains(t, report.Warnings, "burn-scar polygons truncated to the first 2 features")
}

func TestPipeline_Run_VectorsDisabled(t *testing.T) {
	engine := newFakeEngine(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := pipeline.New(engine, nil, logger, observability.NewMetricsForTesting(), pipeline.Options{
		MaxConcurrency: 4,
	})

	report, err := p.Run(context.Background(), domain.DefaultAnalysisRequest())
	require.NoError(t, err)
	assert.Nil(t, report.BurnScars)
	assert.Zero(t, engine.callCount("Collection.limit"))
}

func TestPipeline_Run_LongWindowWarning(t *testing.T) {
	engine := newFakeEngine(t)
	p := newTestPipeline(engine)

	req := domain.DefaultAnalysisRequest()
	req.PreFire.Start = req.PreFire.End.AddDate(0, 0, -45)

	report, err := p.Run(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "longer than 30 days")
}

func TestPipeline_Run_RegionWarningsReachSinks(t *testing.T) {
	engine := newFakeEngine(t)
	sink := &recordingSink{name: "memory"}
	p := newTestPipeline(engine, sink)

	req := domain.DefaultAnalysisRequest()
	req.PreFire.Start = req.PreFire.End.AddDate(0, 0, -45)
	req.RegionWarnings = []string{"file 1 feature 2: invalid aoi feature: missing geometry"}

	report, err := p.Run(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, report.Warnings, 2)
	assert.Equal(t, req.RegionWarnings[0], report.Warnings[0])
	assert.Contains(t, report.Warnings[1], "longer than 30 days")

	require.Len(t, sink.warnings, 1)
	assert.Equal(t, report.Warnings, sink.warnings[0])
}

func TestPipeline_Run_BoundedConcurrency(t *testing.T) {
	engine := newFakeEngine(t)
	engine.delay = 5 * time.Millisecond
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := pipeline.New(engine, nil, logger, observability.NewMetricsForTesting(), pipeline.Options{
		MaxConcurrency:    2,
		MaxVectorFeatures: 500,
	})

	_, err := p.Run(context.Background(), domain.DefaultAnalysisRequest())
	require.NoError(t, err)
	assert.LessOrEqual(t, engine.peak.Load(), int32(2))
}

func TestPipeline_Run_ContextCanceled(t *testing.T) {
	engine := newFakeEngine(t)
	engine.computeErr = context.Canceled
	p := newTestPipeline(engine)

	_, err := p.Run(context.Background(), domain.DefaultAnalysisRequest())
	require.ErrorIs(t, err, context.Canceled)
}

func TestPipeline_CheckReadiness(t *testing.T) {
	engine := newFakeEngine(t)
	engine.computeErr = fmt.Errorf("%w: status 401", domain.ErrUnauthorized)
	p := newTestPipeline(engine)

	err := p.CheckReadiness(context.Background())
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	engine.computeErr = nil
	require.NoError(t, p.CheckReadiness(context.Background()))
	require.NoError(t, p.CheckReadiness(context.Background()))
	assert.Equal(t, 2, engine.callCount(""), "probe stops once the engine has answered")
}
