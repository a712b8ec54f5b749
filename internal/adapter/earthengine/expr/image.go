package expr

// Image is a server-side raster.
type Image struct{ Node *Node }

// ImageCollection is a server-side stack of rasters.
type ImageCollection struct{ Node *Node }

// FeatureCollection is a server-side set of vector features.
type FeatureCollection struct{ Node *Node }

// Geometry is a server-side geometry.
type Geometry struct{ Node *Node }

// Reducer is a server-side aggregation.
type Reducer struct{ Node *Node }

// Filter is a server-side collection predicate.
type Filter struct{ Node *Node }

// ConstantImage returns an image with the same value everywhere.
func ConstantImage(v float64) Image {
	return Image{Invoke("Image.constant", Args{"value": Constant(v)})}
}

// PixelArea returns an image whose pixels hold their own area in m².
func PixelArea() Image {
	return Image{Invoke("Image.pixelArea", nil)}
}

func (i Image) binary(op string, other Image) Image {
	return Image{Invoke(op, Args{"image1": i.Node, "image2": other.Node})}
}

// Subtract returns i - other.
func (i Image) Subtract(other Image) Image { return i.binary("Image.subtract", other) }

// Multiply returns i * other.
func (i Image) Multiply(other Image) Image { return i.binary("Image.multiply", other) }

// Divide returns i / other.
func (i Image) Divide(other Image) Image { return i.binary("Image.divide", other) }

// And is the pixelwise logical conjunction.
func (i Image) And(other Image) Image { return i.binary("Image.and", other) }

// Gte compares pixels with a constant.
func (i Image) Gte(v float64) Image { return i.binary("Image.gte", ConstantImage(v)) }

// Gt compares pixels with a constant.
func (i Image) Gt(v float64) Image { return i.binary("Image.gt", ConstantImage(v)) }

// Lt compares pixels with a constant.
func (i Image) Lt(v float64) Image { return i.binary("Image.lt", ConstantImage(v)) }

// Lte compares pixels with a constant.
func (i Image) Lte(v float64) Image { return i.binary("Image.lte", ConstantImage(v)) }

// Eq compares pixels with a constant.
func (i Image) Eq(v float64) Image { return i.binary("Image.eq", ConstantImage(v)) }

// Neq compares pixels with a constant.
func (i Image) Neq(v float64) Image { return i.binary("Image.neq", ConstantImage(v)) }

// NormalizedDifference computes (a - b) / (a + b) for two band names.
func (i Image) NormalizedDifference(a, b string) Image {
	return Image{Invoke("Image.normalizedDifference", Args{
		"input":     i.Node,
		"bandNames": Constant([]string{a, b}),
	})}
}

// Where replaces pixels for which test is non-zero with v.
func (i Image) Where(test Image, v float64) Image {
	return Image{Invoke("Image.where", Args{
		"input": i.Node,
		"test":  test.Node,
		"value": ConstantImage(v).Node,
	})}
}

// UpdateMask masks pixels where mask is zero.
func (i Image) UpdateMask(mask Image) Image {
	return Image{Invoke("Image.updateMask", Args{"image": i.Node, "mask": mask.Node})}
}

// SelfMask masks pixels whose own value is zero.
func (i Image) SelfMask() Image {
	return Image{Invoke("Image.selfMask", Args{"image": i.Node})}
}

// Clip masks pixels outside the geometry.
func (i Image) Clip(g Geometry) Image {
	return Image{Invoke("Image.clip", Args{"input": i.Node, "geometry": g.Node})}
}

// Select keeps the named bands.
func (i Image) Select(bands ...string) Image {
	return Image{Invoke("Image.select", Args{"input": i.Node, "bandSelectors": Constant(bands)})}
}

// Rename renames every band.
func (i Image) Rename(names ...string) Image {
	return Image{Invoke("Image.rename", Args{"input": i.Node, "names": Constant(names)})}
}

// RegionReduction configures Image.reduceRegion.
type RegionReduction struct {
	Reducer    Reducer
	Geometry   Geometry
	Scale      float64
	MaxPixels  float64
	BestEffort bool
}

// ReduceRegion aggregates the image over a geometry into a dictionary keyed
// by band name.
func (i Image) ReduceRegion(r RegionReduction) *Node {
	args := Args{
		"image":    i.Node,
		"reducer":  r.Reducer.Node,
		"geometry": r.Geometry.Node,
		"scale":    Constant(r.Scale),
	}
	if r.MaxPixels > 0 {
		args["maxPixels"] = Constant(r.MaxPixels)
	}
	if r.BestEffort {
		args["bestEffort"] = Constant(true)
	}
	return Invoke("Image.reduceRegion", args)
}

// VectorReduction configures Image.reduceToVectors.
type VectorReduction struct {
	Reducer        Reducer
	Geometry       Geometry
	Scale          float64
	GeometryType   string
	EightConnected bool
	LabelProperty  string
	BestEffort     bool
}

// ReduceToVectors converts homogeneous regions of the image into polygons.
func (i Image) ReduceToVectors(r VectorReduction) FeatureCollection {
	return FeatureCollection{Invoke("Image.reduceToVectors", Args{
		"image":          i.Node,
		"reducer":        r.Reducer.Node,
		"geometry":       r.Geometry.Node,
		"scale":          Constant(r.Scale),
		"geometryType":   Constant(r.GeometryType),
		"eightConnected": Constant(r.EightConnected),
		"labelProperty":  Constant(r.LabelProperty),
		"bestEffort":     Constant(r.BestEffort),
	})}
}

// AddBands appends the bands of other.
func (i Image) AddBands(other Image) Image {
	return Image{Invoke("Image.addBands", Args{"dstImg": i.Node, "srcImg": other.Node})}
}

// Paint draws the features of fc onto the image.
func (i Image) Paint(fc FeatureCollection, color float64, width float64) Image {
	return Image{Invoke("Image.paint", Args{
		"image":             i.Node,
		"featureCollection": fc.Node,
		"color":             Constant(color),
		"width":             Constant(width),
	})}
}

// Visualization holds display parameters. Zero-valued fields are omitted.
type Visualization struct {
	Bands   []string
	Min     *float64
	Max     *float64
	Gamma   *float64
	Palette []string
}

// Visualize renders the image to 8-bit RGB for tiling.
func (i Image) Visualize(v Visualization) Image {
	args := Args{"image": i.Node}
	if len(v.Bands) > 0 {
		args["bands"] = Constant(v.Bands)
	}
	if v.Min != nil {
		args["min"] = Constant(*v.Min)
	}
	if v.Max != nil {
		args["max"] = Constant(*v.Max)
	}
	if v.Gamma != nil {
		args["gamma"] = Constant(*v.Gamma)
	}
	if len(v.Palette) > 0 {
		args["palette"] = Constant(v.Palette)
	}
	return Image{Invoke("Image.visualize", args)}
}

// Float returns a pointer to v, for Visualization fields.
func Float(v float64) *float64 { return &v }
