package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/couchcryptid/burn-severity-service/internal/domain"
)

const bandDateLayout = "20060102"

func decodeNumber(raw json.RawMessage) (float64, error) {
	var v *float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("%w: expected number: %w", domain.ErrRemote, err)
	}
	if v == nil {
		return 0, nil
	}
	return *v, nil
}

// decodeReduction returns the single value of a reduceRegion dictionary. A
// fully masked region reduces to null, reported as zero.
func decodeReduction(raw json.RawMessage) (float64, error) {
	var dict map[string]*float64
	if err := json.Unmarshal(raw, &dict); err != nil {
		return 0, fmt.Errorf("%w: expected dictionary: %w", domain.ErrRemote, err)
	}
	for _, v := range dict {
		if v != nil {
			return *v, nil
		}
	}
	return 0, nil
}

func decodeCentroid(raw json.RawMessage) (domain.Coordinate, error) {
	var g geom.T
	if err := geojson.Unmarshal(raw, &g); err != nil {
		return domain.Coordinate{}, fmt.Errorf("%w: decode centroid: %w", domain.ErrRemote, err)
	}
	p, ok := g.(*geom.Point)
	if !ok {
		return domain.Coordinate{}, fmt.Errorf("%w: centroid is %T, want point", domain.ErrRemote, g)
	}
	return domain.Coordinate{Lat: p.Y(), Lon: p.X()}, nil
}

// decodeBurnScars normalises the engine's feature collection to plain
// GeoJSON and returns the feature count.
func decodeBurnScars(raw json.RawMessage) (json.RawMessage, int, error) {
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(raw, &fc); err != nil {
		return nil, 0, fmt.Errorf("%w: decode burn scars: %w", domain.ErrRemote, err)
	}
	out, err := json.Marshal(&fc)
	if err != nil {
		return nil, 0, fmt.Errorf("encode burn scars: %w", err)
	}
	return out, len(fc.Features), nil
}

// decodeSeries turns a toBands reduction keyed by "<yyyymmdd...>_<band>"
// into date-stamped points. Null values are dropped. transform is applied
// to each value.
func decodeSeries(raw json.RawMessage, transform func(float64) float64) ([]domain.SeriesPoint, error) {
	var dict map[string]*float64
	if err := json.Unmarshal(raw, &dict); err != nil {
		return nil, fmt.Errorf("%w: expected dictionary: %w", domain.ErrRemote, err)
	}
	points := make([]domain.SeriesPoint, 0, len(dict))
	for band, v := range dict {
		if v == nil {
			continue
		}
		day, err := bandDate(band)
		if err != nil {
			return nil, err
		}
		points = append(points, domain.SeriesPoint{Date: day, Value: transform(*v)})
	}
	domain.SortSeries(points)
	return points, nil
}

func bandDate(band string) (string, error) {
	prefix, _, _ := strings.Cut(band, "_")
	if len(prefix) < len(bandDateLayout) {
		return "", fmt.Errorf("%w: unexpected band name %q", domain.ErrRemote, band)
	}
	t, err := time.Parse(bandDateLayout, prefix[:len(bandDateLayout)])
	if err != nil {
		return "", fmt.Errorf("%w: unexpected band name %q", domain.ErrRemote, band)
	}
	return t.Format(domain.DateLayout), nil
}

func roundPrecipitation(v float64) float64 { return domain.Round(v, 2) }
