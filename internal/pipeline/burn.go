package pipeline

import (
	"fmt"

	"github.com/couchcryptid/burn-severity-service/internal/adapter/earthengine/expr"
	"github.com/couchcryptid/burn-severity-service/internal/domain"
)

// Catalogue assets and reduction parameters.
const (
	sentinelCollection      = "COPERNICUS/S2_SR"
	precipitationCollection = "UCSB-CHG/CHIRPS/DAILY"
	temperatureCollection   = "ECMWF/ERA5_LAND/HOURLY"
	cloudProperty           = "CLOUDY_PIXEL_PERCENTAGE"
	precipitationBand       = "precipitation"
	temperatureBand         = "temperature_2m"

	analysisScale      = 10
	precipitationScale = 30
	temperatureScale   = 1000
	maxPixels          = 1e10
	geometryMaxError   = 1

	waterThreshold       = -0.1
	ndwiDisplayThreshold = -0.12
	burnScarWidth        = 2
)

var (
	trueColorBands = []string{"B12", "B11", "B4"}
	nbrBands       = [2]string{"B8", "B12"}
	ndwiBands      = [2]string{"B3", "B11"}
)

// burnGraphs holds every remote computation needed for one report. Nodes
// are shared between graphs so identical sub-expressions hash identically.
type burnGraphs struct {
	region     expr.Geometry
	preScenes  expr.ImageCollection
	postScenes expr.ImageCollection
	preImage   expr.Image
	postImage  expr.Image
	ndwi       expr.Image
	dnbr       expr.Image
	classified expr.Image
	burnScars  expr.FeatureCollection
}

func buildBurnGraphs(req domain.AnalysisRequest) burnGraphs {
	g := burnGraphs{region: regionGeometry(req.Region)}

	g.preScenes = sceneCollection(g.region, req.PreFire, req.CloudThreshold)
	g.postScenes = sceneCollection(g.region, req.PostFire, req.CloudThreshold)
	g.preImage = composite(g.preScenes, g.region)
	g.postImage = composite(g.postScenes, g.region)

	g.ndwi = g.preImage.NormalizedDifference(ndwiBands[0], ndwiBands[1])
	preNBR := g.preImage.NormalizedDifference(nbrBands[0], nbrBands[1])
	postNBR := g.postImage.NormalizedDifference(nbrBands[0], nbrBands[1])
	g.dnbr = preNBR.Subtract(postNBR)

	waterMask := g.ndwi.Lt(waterThreshold).SelfMask()
	g.classified = classify(g.dnbr).UpdateMask(waterMask)
	g.burnScars = burnScarVectors(g.classified, g.region)
	return g
}

func regionGeometry(r domain.Region) expr.Geometry {
	if coords := r.PolygonCoordinates(); coords != nil {
		return expr.MultiPolygonGeometry(coords)
	}
	return expr.PointGeometry(r.PointCoordinates())
}

func sceneCollection(region expr.Geometry, w domain.DateWindow, cloud int) expr.ImageCollection {
	return expr.LoadImageCollection(sentinelCollection).
		Filter(expr.LessThanFilter(cloudProperty, float64(cloud))).
		FilterDate(w.StartString(), w.ExclusiveEnd().Format(domain.DateLayout)).
		FilterBounds(region)
}

// composite is the per-pixel median, clipped and scaled to reflectance.
func composite(scenes expr.ImageCollection, region expr.Geometry) expr.Image {
	return scenes.Median().
		Clip(region).
		Divide(expr.ConstantImage(domain.ReflectanceScale))
}

// classify assigns a class number to each pixel whose dNBR falls inside a
// severity band. Pixels outside every band keep their dNBR value.
func classify(dnbr expr.Image) expr.Image {
	out := dnbr
	for _, c := range domain.SeverityClasses() {
		upper := dnbr.Lt(c.Upper)
		if c.UpperInclusive {
			upper = dnbr.Lte(c.Upper)
		}
		out = out.Where(dnbr.Gte(c.Lower).And(upper), float64(c.Class))
	}
	return out
}

func burnScarVectors(classified expr.Image, region expr.Geometry) expr.FeatureCollection {
	burned := classified.Gte(domain.BurnedClassThreshold)
	burned = burned.UpdateMask(burned.Neq(0))
	return burned.AddBands(burned).ReduceToVectors(expr.VectorReduction{
		Reducer:        expr.MeanReducer(),
		Geometry:       region,
		Scale:          analysisScale,
		GeometryType:   "polygon",
		EightConnected: false,
		LabelProperty:  "zone",
		BestEffort:     true,
	})
}

// classAreaGraph sums the pixel area, in square metres, of one class.
func (g burnGraphs) classAreaGraph(class int) *expr.Node {
	return g.classified.Eq(float64(class)).
		Multiply(expr.PixelArea()).
		ReduceRegion(expr.RegionReduction{
			Reducer:   expr.SumReducer(),
			Geometry:  g.region,
			Scale:     analysisScale,
			MaxPixels: maxPixels,
		})
}

func (g burnGraphs) burnScarGraph(limit int) *expr.Node {
	return g.burnScars.Limit(limit).Node
}

type layerGraph struct {
	name  string
	kind  domain.LayerKind
	image expr.Image
}

// layerGraphs returns the map layers in draw order.
func (g burnGraphs) layerGraphs(req domain.AnalysisRequest, p domain.Palette) []layerGraph {
	trueColor := expr.Visualization{
		Bands: trueColorBands,
		Min:   expr.Float(0),
		Max:   expr.Float(1),
		Gamma: expr.Float(1.1),
	}

	layers := []layerGraph{
		{
			name:  fmt.Sprintf("Pre-Fire Satellite Imagery: %s to %s", req.PreFire.StartString(), req.PreFire.EndString()),
			kind:  domain.LayerTrueColor,
			image: g.preImage.Visualize(trueColor),
		},
		{
			name:  fmt.Sprintf("Post-Fire Satellite Imagery: %s to %s", req.PostFire.StartString(), req.PostFire.EndString()),
			kind:  domain.LayerTrueColor,
			image: g.postImage.Visualize(trueColor),
		},
	}

	classes := domain.SeverityClasses()
	burnScar := expr.ConstantImage(0).
		UpdateMask(expr.ConstantImage(0)).
		Paint(g.burnScars, 0, burnScarWidth)

	return append(layers,
		layerGraph{
			name: "NDWI: " + req.PreFire.StartString(),
			kind: domain.LayerNDWI,
			image: g.ndwi.UpdateMask(g.ndwi.Gt(ndwiDisplayThreshold)).Visualize(expr.Visualization{
				Min:     expr.Float(domain.NDWIMin),
				Max:     expr.Float(domain.NDWIMax),
				Palette: p.NDWI,
			}),
		},
		layerGraph{
			name: "dNBR",
			kind: domain.LayerDNBR,
			image: g.dnbr.Visualize(expr.Visualization{
				Min:     expr.Float(classes[0].Lower),
				Max:     expr.Float(classes[len(classes)-1].Upper),
				Palette: p.DNBR,
			}),
		},
		layerGraph{
			name: "Reclassified dNBR",
			kind: domain.LayerClassified,
			image: g.classified.Visualize(expr.Visualization{
				Min:     expr.Float(float64(classes[0].Class)),
				Max:     expr.Float(float64(classes[len(classes)-1].Class)),
				Palette: p.Classified,
			}),
		},
		layerGraph{
			name: "Burn Scar",
			kind: domain.LayerBurnScar,
			image: burnScar.Visualize(expr.Visualization{
				Palette: []string{domain.BurnScarColor},
			}),
		},
	)
}

// climateGraph flattens a daily or hourly collection over window into one
// image and averages every band over the region.
func climateGraph(region expr.Geometry, collection, band string, scale float64, w domain.DateWindow) *expr.Node {
	return expr.LoadImageCollection(collection).
		FilterDate(w.StartString(), w.ExclusiveEnd().Format(domain.DateLayout)).
		FilterBounds(region).
		Select(band).
		ToBands().
		ReduceRegion(expr.RegionReduction{
			Reducer:    expr.MeanReducer(),
			Geometry:   region,
			Scale:      scale,
			MaxPixels:  maxPixels,
			BestEffort: true,
		})
}
