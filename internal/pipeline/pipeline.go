package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/burn-severity-service/internal/adapter/earthengine/expr"
	"github.com/couchcryptid/burn-severity-service/internal/domain"
	"github.com/couchcryptid/burn-severity-service/internal/observability"
)

// Engine evaluates computation graphs remotely.
type Engine interface {
	ComputeValue(ctx context.Context, n *expr.Node) (json.RawMessage, error)
	MapTiles(ctx context.Context, n *expr.Node) (string, error)
}

// ReportSink receives every finished report.
type ReportSink interface {
	Name() string
	Deliver(ctx context.Context, r *domain.Report) error
}

// Options tunes how much work one run may put on the engine.
type Options struct {
	MaxConcurrency    int
	MaxVectorFeatures int
}

// Pipeline turns an analysis request into a burn-severity report.
type Pipeline struct {
	engine  Engine
	sinks   []ReportSink
	logger  *slog.Logger
	metrics *observability.Metrics
	opts    Options
	ready   atomic.Bool
}

// New creates a Pipeline. Sinks are optional.
func New(engine Engine, sinks []ReportSink, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Pipeline {
	if opts.MaxConcurrency < 1 {
		opts.MaxConcurrency = 1
	}
	return &Pipeline{
		engine:  engine,
		sinks:   sinks,
		logger:  logger,
		metrics: metrics,
		opts:    opts,
	}
}

// CheckReadiness succeeds once the engine has answered at least one call.
// Until then it sends a trivial probe.
func (p *Pipeline) CheckReadiness(ctx context.Context) error {
	if p.ready.Load() {
		return nil
	}
	if _, err := p.engine.ComputeValue(ctx, expr.Constant("ready")); err != nil {
		return fmt.Errorf("earth engine not reachable: %w", err)
	}
	p.ready.Store(true)
	return nil
}

// Run validates req, evaluates it on the engine and delivers the report to
// every sink. Nothing is sent to the engine for an invalid request.
func (p *Pipeline) Run(ctx context.Context, req domain.AnalysisRequest) (*domain.Report, error) {
	start := time.Now()
	p.metrics.AnalysesInFlight.Inc()
	defer p.metrics.AnalysesInFlight.Dec()

	report, err := p.run(ctx, req)
	p.metrics.AnalysesTotal.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		p.logger.Warn("analysis failed", "error", err, "fingerprint", req.Fingerprint())
		return nil, err
	}
	p.metrics.AnalysisDuration.Observe(time.Since(start).Seconds())
	p.ready.Store(true)

	p.logger.Info("analysis complete",
		"report_id", report.ID,
		"fingerprint", report.Fingerprint,
		"area_km2", report.AreaKm2,
		"burned_km2", report.BurnedKm2,
		"duration", time.Since(start),
	)
	p.deliver(ctx, report)
	return report, nil
}

func (p *Pipeline) run(ctx context.Context, req domain.AnalysisRequest) (*domain.Report, error) {
	warnings, err := req.Validate()
	if err != nil {
		return nil, err
	}
	palette, _ := domain.LookupPalette(string(req.Palette))

	graphs := buildBurnGraphs(req)
	if err := p.checkImagery(ctx, req, graphs); err != nil {
		return nil, err
	}

	report := domain.NewReport(req, palette)
	for _, w := range req.RegionWarnings {
		report.AddWarning(w)
	}
	for _, w := range warnings {
		report.AddWarning(w)
	}
	if err := p.evaluate(ctx, req, graphs, report); err != nil {
		return nil, err
	}
	return report, nil
}

// checkImagery halts the run when either window has no usable scenes.
func (p *Pipeline) checkImagery(ctx context.Context, req domain.AnalysisRequest, graphs burnGraphs) error {
	g, gctx := errgroup.WithContext(ctx)
	check := func(name string, w domain.DateWindow, scenes expr.ImageCollection) {
		g.Go(func() error {
			raw, err := p.engine.ComputeValue(gctx, scenes.Size())
			if err != nil {
				return fmt.Errorf("count %s scenes: %w", name, err)
			}
			n, err := decodeNumber(raw)
			if err != nil {
				return err
			}
			p.logger.Debug("scenes found", "window", name, "count", int(n))
			if n == 0 {
				return fmt.Errorf("%w: no %s images between %s and %s with cloud cover below %d%%",
					domain.ErrNoImagery, name, w.StartString(), w.EndString(), req.CloudThreshold)
			}
			return nil
		})
	}
	check("pre-fire", req.PreFire, graphs.preScenes)
	check("post-fire", req.PostFire, graphs.postScenes)
	return g.Wait()
}

// evaluate issues every independent engine call of one run concurrently,
// bounded by MaxConcurrency. The first failure cancels the rest.
func (p *Pipeline) evaluate(ctx context.Context, req domain.AnalysisRequest, graphs burnGraphs, report *domain.Report) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.MaxConcurrency)

	layerGraphs := graphs.layerGraphs(req, report.Palette)
	layers := make([]domain.TileLayer, len(layerGraphs))
	for i, lg := range layerGraphs {
		g.Go(func() error {
			url, err := p.engine.MapTiles(gctx, lg.image.Node)
			if err != nil {
				return fmt.Errorf("render %s layer: %w", lg.kind, err)
			}
			layers[i] = domain.TileLayer{Name: lg.name, Kind: lg.kind, URL: url}
			return nil
		})
	}

	classes := domain.SeverityClasses()
	areas := make([]float64, len(classes))
	for i, c := range classes {
		g.Go(func() error {
			raw, err := p.engine.ComputeValue(gctx, graphs.classAreaGraph(c.Class))
			if err != nil {
				return fmt.Errorf("class %d area: %w", c.Class, err)
			}
			areas[i], err = decodeReduction(raw)
			return err
		})
	}

	var aoiM2 float64
	g.Go(func() error {
		raw, err := p.engine.ComputeValue(gctx, graphs.region.Area(geometryMaxError))
		if err != nil {
			return fmt.Errorf("region area: %w", err)
		}
		aoiM2, err = decodeNumber(raw)
		return err
	})

	var centroid domain.Coordinate
	g.Go(func() error {
		raw, err := p.engine.ComputeValue(gctx, graphs.region.Centroid(geometryMaxError).Node)
		if err != nil {
			return fmt.Errorf("region centroid: %w", err)
		}
		centroid, err = decodeCentroid(raw)
		return err
	})

	var scars json.RawMessage
	var scarCount int
	if p.opts.MaxVectorFeatures > 0 {
		g.Go(func() error {
			raw, err := p.engine.ComputeValue(gctx, graphs.burnScarGraph(p.opts.MaxVectorFeatures))
			if err != nil {
				return fmt.Errorf("burn scars: %w", err)
			}
			scars, scarCount, err = decodeBurnScars(raw)
			return err
		})
	}

	climate := req.ClimateWindow()
	var precipitation, hourly []domain.SeriesPoint
	g.Go(func() error {
		raw, err := p.engine.ComputeValue(gctx,
			climateGraph(graphs.region, precipitationCollection, precipitationBand, precipitationScale, climate))
		if err != nil {
			return fmt.Errorf("precipitation: %w", err)
		}
		precipitation, err = decodeSeries(raw, roundPrecipitation)
		return err
	})
	g.Go(func() error {
		raw, err := p.engine.ComputeValue(gctx,
			climateGraph(graphs.region, temperatureCollection, temperatureBand, temperatureScale, climate))
		if err != nil {
			return fmt.Errorf("temperature: %w", err)
		}
		hourly, err = decodeSeries(raw, domain.KelvinToCelsius)
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}

	report.AreaKm2 = domain.Round(aoiM2/1e6, 4)
	report.SetClassAreas(areas)
	report.SetCentroid(centroid)
	report.Layers = layers
	report.BurnScars = scars
	if p.opts.MaxVectorFeatures > 0 && scarCount == p.opts.MaxVectorFeatures {
		report.AddWarning(fmt.Sprintf("burn-scar polygons truncated to the first %d features", scarCount))
	}

	report.Precipitation = precipitation
	if len(precipitation) == 0 {
		report.AddWarning(fmt.Sprintf("no precipitation data between %s and %s", climate.StartString(), climate.EndString()))
	}
	report.Temperature = domain.DailyMean(hourly)
	if len(hourly) == 0 {
		report.AddWarning(fmt.Sprintf("no temperature data between %s and %s", climate.StartString(), climate.EndString()))
	}
	return nil
}

// deliver hands the report to every sink. Sink failures are logged only.
func (p *Pipeline) deliver(ctx context.Context, report *domain.Report) {
	for _, s := range p.sinks {
		if err := s.Deliver(ctx, report); err != nil {
			p.metrics.SinkDeliveries.WithLabelValues(s.Name(), "error").Inc()
			p.logger.Error("report delivery failed", "sink", s.Name(), "report_id", report.ID, "error", err)
			continue
		}
		p.metrics.SinkDeliveries.WithLabelValues(s.Name(), "success").Inc()
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrInvalidRequest):
		return "invalid"
	case errors.Is(err, domain.ErrNoImagery):
		return "no_imagery"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "remote_error"
	}
}
