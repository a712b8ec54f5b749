package expr

// LoadImageCollection references a catalogue collection by asset ID.
func LoadImageCollection(id string) ImageCollection {
	return ImageCollection{Invoke("ImageCollection.load", Args{"id": Constant(id)})}
}

// Filter keeps the images that match f.
func (c ImageCollection) Filter(f Filter) ImageCollection {
	return ImageCollection{Invoke("Collection.filter", Args{"collection": c.Node, "filter": f.Node})}
}

// FilterDate keeps images whose start time lies in [start, end).
func (c ImageCollection) FilterDate(start, end string) ImageCollection {
	return c.Filter(DateRangeFilter(start, end))
}

// FilterBounds keeps images that intersect g.
func (c ImageCollection) FilterBounds(g Geometry) ImageCollection {
	return c.Filter(IntersectsFilter(g))
}

// Select keeps the named bands in every image.
func (c ImageCollection) Select(bands ...string) ImageCollection {
	return ImageCollection{Invoke("ImageCollection.select", Args{
		"input":     c.Node,
		"selectors": Constant(bands),
	})}
}

// Size counts the images.
func (c ImageCollection) Size() *Node {
	return Invoke("Collection.size", Args{"collection": c.Node})
}

// Median composites the collection per pixel, keeping band names.
func (c ImageCollection) Median() Image {
	return Image{Invoke("reduce.median", Args{"collection": c.Node})}
}

// ToBands flattens the collection into one image whose band names are
// prefixed with each image's system:index.
func (c ImageCollection) ToBands() Image {
	return Image{Invoke("ImageCollection.toBands", Args{"collection": c.Node})}
}

// Limit keeps the first n features.
func (fc FeatureCollection) Limit(n int) FeatureCollection {
	return FeatureCollection{Invoke("Collection.limit", Args{"collection": fc.Node, "limit": Constant(n)})}
}

// LessThanFilter matches items whose property is below v.
func LessThanFilter(property string, v float64) Filter {
	return Filter{Invoke("Filter.lessThan", Args{
		"leftField":  Constant(property),
		"rightValue": Constant(v),
	})}
}

// DateRangeFilter matches items whose system:time_start lies in [start, end).
func DateRangeFilter(start, end string) Filter {
	dateRange := Invoke("DateRange", Args{
		"start": Invoke("Date", Args{"value": Constant(start)}),
		"end":   Invoke("Date", Args{"value": Constant(end)}),
	})
	return Filter{Invoke("Filter.dateRangeContains", Args{
		"leftValue":  dateRange,
		"rightField": Constant("system:time_start"),
	})}
}

// IntersectsFilter matches items whose footprint intersects g.
func IntersectsFilter(g Geometry) Filter {
	return Filter{Invoke("Filter.intersects", Args{
		"leftField":  Constant(".all"),
		"rightValue": g.Node,
	})}
}

// SumReducer adds values.
func SumReducer() Reducer { return Reducer{Invoke("Reducer.sum", nil)} }

// MeanReducer averages values.
func MeanReducer() Reducer { return Reducer{Invoke("Reducer.mean", nil)} }

// MultiPolygonGeometry builds a geometry from GeoJSON-ordered coordinates.
func MultiPolygonGeometry(coords [][][][]float64) Geometry {
	return Geometry{Invoke("GeometryConstructors.MultiPolygon", Args{"coordinates": Constant(coords)})}
}

// PointGeometry builds a point from [lon, lat].
func PointGeometry(lonLat []float64) Geometry {
	return Geometry{Invoke("GeometryConstructors.Point", Args{"coordinates": Constant(lonLat)})}
}

// Centroid returns the centre of the geometry.
func (g Geometry) Centroid(maxError float64) Geometry {
	return Geometry{Invoke("Geometry.centroid", Args{"geometry": g.Node, "maxError": errorMargin(maxError)})}
}

// Area returns the geodesic area in m².
func (g Geometry) Area(maxError float64) *Node {
	return Invoke("Geometry.area", Args{"geometry": g.Node, "maxError": errorMargin(maxError)})
}

func errorMargin(v float64) *Node {
	return Invoke("ErrorMargin", Args{"value": Constant(v)})
}
