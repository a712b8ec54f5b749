// Package domain models wildfire burn-severity analysis over Sentinel-2
// surface reflectance imagery.
//
// # Imagery
//
// Scenes come from the Copernicus Sentinel-2 Level-2A collection
// (COPERNICUS/S2_SR). Reflectance is stored as integers scaled by 10000;
// composites are divided by 10000 before any index is computed. Bands used:
//
//	B3   green        (NDWI)
//	B4   red          (true-colour display)
//	B8   near-infrared (NBR)
//	B11  short-wave infrared 1 (NDWI, display)
//	B12  short-wave infrared 2 (NBR, display)
//
// Sentinel-2 data starts on 2015-06-23; windows before that date are rejected.
//
// # Indices
//
//	NBR  = (B8 - B12) / (B8 + B12)
//	NDWI = (B3 - B11) / (B3 + B11)
//	dNBR = NBR(pre-fire) - NBR(post-fire)
//
// Pixels with NDWI < -0.1 on the pre-fire composite are treated as land; all
// other pixels are masked as water before classification results are summed.
//
// # Severity classification
//
// dNBR values are binned into seven classes following the USGS FIREMON
// ranges. Bounds are half-open except for classes 3 and 7, whose upper bound
// is inclusive:
//
//	1  [-0.500, -0.251)  Enhanced Regrowth (High)
//	2  [-0.250, -0.101)  Enhanced Regrowth (Low)
//	3  [-0.100,  0.099]  Unburned
//	4  [ 0.100,  0.269)  Low Severity Burns
//	5  [ 0.270,  0.439)  Moderate-Low Severity Burns
//	6  [ 0.440,  0.659)  Moderate-High Severity Burns
//	7  [ 0.660,  1.300]  High Severity Burns
//
// Values outside the table, including the narrow gaps between bands, have
// no class. Classes 4 and above count as burned. See [Classify].
//
// # Climate context
//
// Daily precipitation (CHIRPS, mm/day) and daily mean 2 m air temperature
// (ERA5-Land hourly, Kelvin converted to Celsius) are reported for every day
// of the calendar months spanned by the analysis. See [MonthSpan].
package domain
