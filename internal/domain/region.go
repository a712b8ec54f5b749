package domain

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkt"
)

// Default map view used when no boundary has been supplied.
const (
	DefaultViewLat      = 36.60
	DefaultViewLon      = 16.00
	DefaultViewZoom     = 5
	BoundaryViewZoom    = 11
	defaultRegionLon    = 16.25
	defaultRegionLat    = 36.65
	minLinearRingPoints = 4
)

// Region is the analysis boundary: a multipolygon built from uploaded
// features, or the default point when nothing usable was supplied.
type Region struct {
	Geometry geom.T
	Default  bool
}

// DefaultRegion returns the fallback point region.
func DefaultRegion() Region {
	p := geom.NewPoint(geom.XY).MustSetCoords(geom.Coord{defaultRegionLon, defaultRegionLat})
	return Region{Geometry: p, Default: true}
}

// Bounds returns the bounding box of the region.
func (r Region) Bounds() *geom.Bounds {
	if r.Geometry == nil {
		return geom.NewBounds(geom.XY)
	}
	return r.Geometry.Bounds()
}

// NumPolygons returns the number of polygons, 0 for the default point.
func (r Region) NumPolygons() int {
	if mp, ok := r.Geometry.(*geom.MultiPolygon); ok {
		return mp.NumPolygons()
	}
	return 0
}

// WKT renders the region as well-known text, or "" when empty.
func (r Region) WKT() string {
	if r.Geometry == nil {
		return ""
	}
	s, err := wkt.Marshal(r.Geometry)
	if err != nil {
		return ""
	}
	return s
}

// MarshalJSON encodes the region geometry as GeoJSON.
func (r Region) MarshalJSON() ([]byte, error) {
	return geojson.Marshal(r.Geometry)
}

// Coordinate is a WGS-84 position.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// MapView is the initial map position for a region.
type MapView struct {
	Center Coordinate `json:"center"`
	Zoom   int        `json:"zoom"`
}

// ViewFor centres the map on a boundary centroid when one exists.
func ViewFor(centroid *Coordinate) MapView {
	if centroid == nil {
		return MapView{Center: Coordinate{Lat: DefaultViewLat, Lon: DefaultViewLon}, Zoom: DefaultViewZoom}
	}
	return MapView{Center: *centroid, Zoom: BoundaryViewZoom}
}

// aoiDocument accepts FeatureCollections, single Features and
// GeometryCollections.
type aoiDocument struct {
	Type       string            `json:"type"`
	Features   []json.RawMessage `json:"features"`
	Geometries []json.RawMessage `json:"geometries"`
	Geometry   json.RawMessage   `json:"geometry"`
}

type aoiFeature struct {
	Geometry json.RawMessage `json:"geometry"`
}

// ParseAOI merges the polygons of one or more GeoJSON documents into a
// single multipolygon region. Unusable documents and features are skipped
// and reported as warnings. When nothing usable remains the default point
// region is returned.
func ParseAOI(docs ...[]byte) (Region, []string) {
	var warnings []string
	merged := geom.NewMultiPolygon(geom.XY)

	for i, doc := range docs {
		geometries, err := documentGeometries(doc)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("file %d: %v", i+1, err))
			continue
		}
		for j, raw := range geometries {
			polys, err := parsePolygons(raw)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("file %d feature %d: %v", i+1, j+1, err))
				continue
			}
			for _, p := range polys {
				if err := merged.Push(p); err != nil {
					warnings = append(warnings, fmt.Sprintf("file %d feature %d: %v", i+1, j+1, err))
				}
			}
		}
	}

	if merged.NumPolygons() == 0 {
		if len(docs) > 0 {
			warnings = append(warnings, "no valid geometries found; using the default location")
		}
		return DefaultRegion(), warnings
	}
	return Region{Geometry: merged}, warnings
}

func documentGeometries(doc []byte) ([]json.RawMessage, error) {
	var d aoiDocument
	if err := json.Unmarshal(doc, &d); err != nil {
		return nil, fmt.Errorf("decode geojson: %w", err)
	}
	switch {
	case d.Features != nil:
		out := make([]json.RawMessage, 0, len(d.Features))
		for _, f := range d.Features {
			var feat aoiFeature
			if err := json.Unmarshal(f, &feat); err != nil {
				// Keep the slot so feature numbering in warnings stays aligned.
				out = append(out, nil)
				continue
			}
			out = append(out, feat.Geometry)
		}
		return out, nil
	case d.Geometries != nil:
		return d.Geometries, nil
	case d.Type == "Feature":
		return []json.RawMessage{d.Geometry}, nil
	default:
		return nil, errors.New("invalid GeoJSON format: expected 'features' or 'geometries'")
	}
}

// parsePolygons decodes one geometry into XY polygons.
func parsePolygons(raw json.RawMessage) ([]*geom.Polygon, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("%w: missing geometry", ErrInvalidFeature)
	}
	var g geom.T
	if err := geojson.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFeature, err)
	}

	switch v := g.(type) {
	case *geom.Polygon:
		p, err := toXYPolygon(v.Coords())
		if err != nil {
			return nil, err
		}
		return []*geom.Polygon{p}, nil
	case *geom.MultiPolygon:
		if v.NumPolygons() == 0 {
			return nil, fmt.Errorf("%w: empty multipolygon", ErrInvalidFeature)
		}
		out := make([]*geom.Polygon, 0, v.NumPolygons())
		for _, rings := range v.Coords() {
			p, err := toXYPolygon(rings)
			if err != nil {
				return nil, err
			}
			out = append(out, p)
		}
		return out, nil
	case nil:
		return nil, fmt.Errorf("%w: missing geometry", ErrInvalidFeature)
	default:
		return nil, fmt.Errorf("%w: unsupported geometry type %T", ErrInvalidFeature, g)
	}
}

// toXYPolygon drops Z and M ordinates so every polygon shares one layout.
func toXYPolygon(rings [][]geom.Coord) (*geom.Polygon, error) {
	if len(rings) == 0 {
		return nil, fmt.Errorf("%w: polygon has no rings", ErrInvalidFeature)
	}
	xy := make([][]geom.Coord, len(rings))
	for i, ring := range rings {
		if len(ring) < minLinearRingPoints {
			return nil, fmt.Errorf("%w: ring %d has %d positions, need at least %d", ErrInvalidFeature, i, len(ring), minLinearRingPoints)
		}
		xy[i] = make([]geom.Coord, len(ring))
		for j, c := range ring {
			xy[i][j] = geom.Coord{c[0], c[1]}
		}
	}
	p, err := geom.NewPolygon(geom.XY).SetCoords(xy)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFeature, err)
	}
	return p, nil
}

// PolygonCoordinates returns the region as nested [lon, lat] arrays in
// GeoJSON MultiPolygon order, or nil for a point region.
func (r Region) PolygonCoordinates() [][][][]float64 {
	mp, ok := r.Geometry.(*geom.MultiPolygon)
	if !ok {
		return nil
	}
	coords := mp.Coords()
	out := make([][][][]float64, len(coords))
	for i, poly := range coords {
		out[i] = make([][][]float64, len(poly))
		for j, ring := range poly {
			out[i][j] = make([][]float64, len(ring))
			for k, c := range ring {
				out[i][j][k] = []float64{c[0], c[1]}
			}
		}
	}
	return out
}

// PointCoordinates returns [lon, lat] for a point region, or nil.
func (r Region) PointCoordinates() []float64 {
	p, ok := r.Geometry.(*geom.Point)
	if !ok {
		return nil
	}
	return []float64{p.X(), p.Y()}
}
