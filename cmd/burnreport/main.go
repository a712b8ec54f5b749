// Command burnreport runs one burn-severity analysis against Earth Engine and
// prints the report as JSON. Engine credentials come from the same
// environment variables as the service.
//
// Usage:
//
//	go run ./cmd/burnreport \
//	  -aoi fire.geojson \
//	  -pre-start 2023-07-05 -pre-end 2023-07-12 \
//	  -post-start 2023-07-20 -post-end 2023-07-27 \
//	  -cloud 75 -palette Normal
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/couchcryptid/burn-severity-service/internal/adapter/earthengine"
	"github.com/couchcryptid/burn-severity-service/internal/config"
	"github.com/couchcryptid/burn-severity-service/internal/domain"
	"github.com/couchcryptid/burn-severity-service/internal/observability"
	"github.com/couchcryptid/burn-severity-service/internal/pipeline"
)

// fileList collects repeated or comma-separated -aoi values.
type fileList []string

func (f *fileList) String() string { return strings.Join(*f, ",") }

func (f *fileList) Set(v string) error {
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			*f = append(*f, p)
		}
	}
	return nil
}

type options struct {
	aoi       fileList
	preStart  string
	preEnd    string
	postStart string
	postEnd   string
	cloud     int
	palette   string
	out       string
	timeout   time.Duration
	verbose   bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	def := domain.DefaultAnalysisRequest()
	var o options

	fs := flag.NewFlagSet("burnreport", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Var(&o.aoi, "aoi", "GeoJSON file with the area of interest (repeatable; default: Rhodes point)")
	fs.StringVar(&o.preStart, "pre-start", def.PreFire.StartString(), "pre-fire window start (YYYY-MM-DD)")
	fs.StringVar(&o.preEnd, "pre-end", def.PreFire.EndString(), "pre-fire window end (YYYY-MM-DD)")
	fs.StringVar(&o.postStart, "post-start", def.PostFire.StartString(), "post-fire window start (YYYY-MM-DD)")
	fs.StringVar(&o.postEnd, "post-end", def.PostFire.EndString(), "post-fire window end (YYYY-MM-DD)")
	fs.IntVar(&o.cloud, "cloud", def.CloudThreshold, "maximum cloudy pixel percentage per scene (5-100)")
	fs.StringVar(&o.palette, "palette", string(def.Palette), "colour palette for the classified layer")
	fs.StringVar(&o.out, "out", "", "write the report to this file instead of stdout")
	fs.DurationVar(&o.timeout, "timeout", 5*time.Minute, "overall analysis timeout")
	fs.BoolVar(&o.verbose, "v", false, "debug logging")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	return o, nil
}

// buildRequest reads the AOI files and assembles the analysis request.
// Rejected features end up in RegionWarnings.
func buildRequest(o options) (domain.AnalysisRequest, error) {
	req := domain.DefaultAnalysisRequest()

	var err error
	if req.PreFire, err = domain.NewDateWindow(o.preStart, o.preEnd); err != nil {
		return req, fmt.Errorf("pre-fire window: %w", err)
	}
	if req.PostFire, err = domain.NewDateWindow(o.postStart, o.postEnd); err != nil {
		return req, fmt.Errorf("post-fire window: %w", err)
	}
	req.CloudThreshold = o.cloud
	req.Palette = domain.PaletteName(o.palette)

	if len(o.aoi) == 0 {
		return req, nil
	}
	docs := make([][]byte, 0, len(o.aoi))
	for _, path := range o.aoi {
		data, err := os.ReadFile(path)
		if err != nil {
			return req, fmt.Errorf("read aoi: %w", err)
		}
		docs = append(docs, data)
	}
	req.Region, req.RegionWarnings = domain.ParseAOI(docs...)
	return req, nil
}

func main() {
	o, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if code := run(ctx, o, os.Stdout, os.Stderr); code != 0 {
		stop()
		os.Exit(code)
	}
}

func run(ctx context.Context, o options, stdout, stderr io.Writer) int {
	// Logs go to stderr so stdout carries only the report.
	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file loaded", "error", err)
	}

	req, err := buildRequest(o)
	if err != nil {
		logger.Error("invalid arguments", "error", err)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	metrics := observability.NewMetrics()
	engine, err := earthengine.Connect(ctx, cfg, nil, metrics, logger)
	if err != nil {
		logger.Error("failed to authenticate with earth engine", "error", err)
		return 1
	}

	p := pipeline.New(engine, nil, logger, metrics, pipeline.Options{
		MaxConcurrency:    cfg.EngineMaxConcurrency,
		MaxVectorFeatures: cfg.EngineMaxVectorFeatures,
	})
	report, err := p.Run(ctx, req)
	if err != nil {
		logger.Error("analysis failed", "error", err)
		return 1
	}
	for _, w := range report.Warnings {
		logger.Warn(w)
	}

	if err := writeReport(o.out, stdout, report); err != nil {
		logger.Error("failed to write report", "error", err)
		return 1
	}

	logger.Info("report written",
		"report_id", report.ID,
		"area_km2", report.AreaKm2,
		"burned_km2", report.BurnedKm2,
	)
	return 0
}

// writeReport encodes the report to path, or to stdout when path is empty.
func writeReport(path string, stdout io.Writer, report *domain.Report) error {
	if path == "" {
		return encodeReport(stdout, report)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	if err := encodeReport(f, report); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output file: %w", err)
	}
	return nil
}

func encodeReport(w io.Writer, report *domain.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}
