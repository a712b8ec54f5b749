package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/burn-severity-service/internal/domain"
)

// maxBodyBytes caps uploaded GeoJSON and analysis requests.
const maxBodyBytes = 10 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	sharedobs.WriteJSON(w, status, errorResponse{Error: err.Error()})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNoImagery):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrRemote):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handlePalettes(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"palettes": domain.Palettes()})
}

type legendEntry struct {
	domain.SeverityClass
	Color string `json:"color"`
}

// gradientLegend describes a continuous colour ramp.
type gradientLegend struct {
	Label   string   `json:"label"`
	Palette []string `json:"palette"`
	Min     float64  `json:"min"`
	Max     float64  `json:"max"`
}

func (s *Server) handleClasses(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("palette")
	palette, ok := domain.LookupPalette(name)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown palette %q", name))
		return
	}
	classes := domain.SeverityClasses()
	legend := make([]legendEntry, len(classes))
	for i, c := range classes {
		legend[i] = legendEntry{SeverityClass: c, Color: palette.ClassColor(c.Class)}
	}
	ndwi := gradientLegend{
		Label:   "NDWI",
		Palette: palette.NDWI,
		Min:     domain.NDWIMin,
		Max:     domain.NDWIMax,
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{
		"palette":   palette.Name,
		"classes":   legend,
		"burn_scar": domain.BurnScarColor,
		"ndwi":      ndwi,
	})
}

type aoiResponse struct {
	Region   domain.Region  `json:"region"`
	Default  bool           `json:"default"`
	Polygons int            `json:"polygons"`
	Bounds   [4]float64     `json:"bounds"`
	View     domain.MapView `json:"view"`
	Warnings []string       `json:"warnings"`
}

func (s *Server) handleAOI(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err)
		return
	}
	region, warnings := s.parseAOI(body)

	b := region.Bounds()
	resp := aoiResponse{
		Region:   region,
		Default:  region.Default,
		Polygons: region.NumPolygons(),
		Bounds:   [4]float64{b.Min(0), b.Min(1), b.Max(0), b.Max(1)},
		View:     domain.ViewFor(nil),
		Warnings: warnings,
	}
	if !region.Default {
		center := domain.Coordinate{Lat: (b.Min(1) + b.Max(1)) / 2, Lon: (b.Min(0) + b.Max(0)) / 2}
		resp.View = domain.ViewFor(&center)
	}
	if resp.Warnings == nil {
		resp.Warnings = []string{}
	}
	sharedobs.WriteJSON(w, http.StatusOK, resp)
}

// parseAOI accepts one GeoJSON document or a JSON array of documents, one
// per uploaded file.
func (s *Server) parseAOI(body []byte) (domain.Region, []string) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || string(body) == "null" {
		return domain.DefaultRegion(), nil
	}

	docs := [][]byte{body}
	if body[0] == '[' {
		var raw []json.RawMessage
		if err := json.Unmarshal(body, &raw); err != nil {
			return domain.DefaultRegion(), []string{fmt.Sprintf("decode geojson: %v", err)}
		}
		docs = make([][]byte, len(raw))
		for i, d := range raw {
			docs[i] = d
		}
	}

	region, warnings := domain.ParseAOI(docs...)
	if len(warnings) > 0 {
		s.metrics.AOIFeaturesRejected.Add(float64(len(warnings)))
		s.logger.Info("aoi features skipped", "warnings", warnings)
	}
	return region, warnings
}

type analysisRequestBody struct {
	AOI            json.RawMessage    `json:"aoi"`
	PreFire        *domain.DateWindow `json:"pre_fire"`
	PostFire       *domain.DateWindow `json:"post_fire"`
	CloudThreshold *int               `json:"cloud_threshold"`
	Palette        string             `json:"palette"`
}

// toRequest fills unset fields from the dashboard defaults.
func (b analysisRequestBody) toRequest(region domain.Region) domain.AnalysisRequest {
	req := domain.DefaultAnalysisRequest()
	req.Region = region
	if b.PreFire != nil {
		req.PreFire = *b.PreFire
	}
	if b.PostFire != nil {
		req.PostFire = *b.PostFire
	}
	if b.CloudThreshold != nil {
		req.CloudThreshold = *b.CloudThreshold
	}
	if b.Palette != "" {
		req.Palette = domain.PaletteName(b.Palette)
	}
	return req
}

type analysisResponse struct {
	*domain.Report
	Pie []domain.PieSlice `json:"pie"`
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	var body analysisRequestBody
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		if !errors.Is(err, domain.ErrInvalidRequest) {
			err = fmt.Errorf("%w: decode body: %w", domain.ErrInvalidRequest, err)
		}
		writeError(w, http.StatusBadRequest, err)
		return
	}

	region, aoiWarnings := s.parseAOI(body.AOI)
	req := body.toRequest(region)
	req.RegionWarnings = aoiWarnings

	ctx, cancel := context.WithTimeout(r.Context(), s.analysisTimeout)
	defer cancel()

	report, err := s.analyzer.Run(ctx, req)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, analysisResponse{Report: report, Pie: report.PieSlices()})
}
