package domain

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
)

// LayerKind identifies what a map layer renders.
type LayerKind string

const (
	LayerTrueColor  LayerKind = "true_color"
	LayerNDWI       LayerKind = "ndwi"
	LayerDNBR       LayerKind = "dnbr"
	LayerClassified LayerKind = "classified"
	LayerBurnScar   LayerKind = "burn_scar"
)

// TileLayer is a rendered XYZ tile layer.
type TileLayer struct {
	Name string    `json:"name"`
	Kind LayerKind `json:"kind"`
	URL  string    `json:"url"`
}

// ClassArea is the land area assigned to one severity class.
type ClassArea struct {
	Class   int     `json:"class"`
	Label   string  `json:"label"`
	Color   string  `json:"color"`
	AreaKm2 float64 `json:"area_km2"`
}

// SeriesPoint is one day of a climate series.
type SeriesPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// Report is the result of one burn-severity run.
type Report struct {
	ID              string          `json:"id"`
	Fingerprint     string          `json:"fingerprint"`
	GeneratedAt     time.Time       `json:"generated_at"`
	Region          Region          `json:"region"`
	Centroid        *Coordinate     `json:"centroid,omitempty"`
	View            MapView         `json:"view"`
	AreaKm2         float64         `json:"area_km2"`
	PreFire         DateWindow      `json:"pre_fire"`
	PostFire        DateWindow      `json:"post_fire"`
	CloudThreshold  int             `json:"cloud_threshold"`
	Palette         Palette         `json:"palette"`
	Classes         []ClassArea     `json:"classes"`
	BurnedKm2       float64         `json:"burned_km2"`
	UnclassifiedKm2 float64         `json:"unclassified_km2"`
	Layers          []TileLayer     `json:"layers"`
	BurnScars       json.RawMessage `json:"burn_scars,omitempty"`
	Precipitation   []SeriesPoint   `json:"precipitation"`
	Temperature     []SeriesPoint   `json:"temperature"`
	Warnings        []string        `json:"warnings,omitempty"`
}

// NewReport starts a report for a validated request.
func NewReport(req AnalysisRequest, palette Palette) *Report {
	return &Report{
		ID:             uuid.NewString(),
		Fingerprint:    req.Fingerprint(),
		GeneratedAt:    clock.Now().UTC(),
		Region:         req.Region,
		View:           ViewFor(nil),
		PreFire:        req.PreFire,
		PostFire:       req.PostFire,
		CloudThreshold: req.CloudThreshold,
		Palette:        palette,
		Precipitation:  []SeriesPoint{},
		Temperature:    []SeriesPoint{},
	}
}

// SetCentroid records the region centroid and recentres the map on it.
func (r *Report) SetCentroid(c Coordinate) {
	r.Centroid = &c
	r.View = ViewFor(&c)
}

// SetClassAreas stores per-class areas given in square metres, indexed by
// class number minus one, and derives the burned and unclassified totals.
// AreaKm2 must be set first.
func (r *Report) SetClassAreas(areasM2 []float64) {
	r.Classes = make([]ClassArea, 0, len(severityClasses))
	var total, burned float64
	for i, c := range severityClasses {
		var m2 float64
		if i < len(areasM2) {
			m2 = areasM2[i]
		}
		km2 := m2 / 1e6
		total += km2
		if c.Burned() {
			burned += km2
		}
		r.Classes = append(r.Classes, ClassArea{
			Class:   c.Class,
			Label:   c.Label,
			Color:   r.Palette.ClassColor(c.Class),
			AreaKm2: Round(km2, 4),
		})
	}
	r.BurnedKm2 = Round(burned, 4)
	// Pixel-area sums can exceed the geodesic AOI area by rounding at the edges.
	r.UnclassifiedKm2 = Round(max(r.AreaKm2-total, 0), 4)
}

// AddWarning appends a user-facing warning.
func (r *Report) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// PieSlice is one segment of the class-area chart.
type PieSlice struct {
	ID    string  `json:"id"`
	Label string  `json:"label"`
	Value float64 `json:"value"`
	Color string  `json:"color"`
}

// PieSlices returns one slice per class in class order.
func (r *Report) PieSlices() []PieSlice {
	out := make([]PieSlice, len(r.Classes))
	for i, c := range r.Classes {
		out[i] = PieSlice{ID: c.Label, Label: c.Label, Value: c.AreaKm2, Color: c.Color}
	}
	return out
}

// DailyMean groups hourly samples by their YYYY-MM-DD prefix and averages
// each day. The result is sorted by date and rounded to two decimals.
func DailyMean(samples []SeriesPoint) []SeriesPoint {
	type acc struct {
		sum float64
		n   int
	}
	days := make(map[string]*acc)
	for _, s := range samples {
		day := s.Date
		if len(day) > len(DateLayout) {
			day = day[:len(DateLayout)]
		}
		a, ok := days[day]
		if !ok {
			a = &acc{}
			days[day] = a
		}
		a.sum += s.Value
		a.n++
	}
	out := make([]SeriesPoint, 0, len(days))
	for day, a := range days {
		out = append(out, SeriesPoint{Date: day, Value: Round(a.sum/float64(a.n), 2)})
	}
	SortSeries(out)
	return out
}

// SortSeries orders points by date ascending.
func SortSeries(points []SeriesPoint) {
	sort.Slice(points, func(i, j int) bool { return points[i].Date < points[j].Date })
}
