package domain

import "strings"

// PaletteName identifies a colour scheme.
type PaletteName string

// Supported palettes. The colour-blind variants only change the dNBR and
// classified ramps; NDWI is shared.
const (
	PaletteNormal        PaletteName = "Normal"
	PaletteDeuteranopia  PaletteName = "Deuteranopia"
	PaletteProtanopia    PaletteName = "Protanopia"
	PaletteTritanopia    PaletteName = "Tritanopia"
	PaletteAchromatopsia PaletteName = "Achromatopsia"
)

// BurnScarColor is the outline colour of vectorised burn scars.
const BurnScarColor = "#87043b"

// Palette holds the colour ramps for every rendered layer.
type Palette struct {
	Name       PaletteName `json:"name"`
	DNBR       []string    `json:"dnbr"`
	Classified []string    `json:"classified"`
	NDWI       []string    `json:"ndwi"`
}

var ndwiRamp = []string{"#caf0f8", "#00b4d8", "#023e8a"}

// NDWI display stretch. The ramp runs from NDWIMin to NDWIMax.
const (
	NDWIMin = -1.0
	NDWIMax = 0.0
)

var redGreenClassified = []string{"#95a600", "#92ed3e", "#affac5", "#78ffb0", "#69d6c6", "#22459c", "#000e69"}

var palettes = []Palette{
	{
		Name:       PaletteNormal,
		DNBR:       []string{"#ffffe5", "#f7fcb9", "#78c679", "#41ab5d", "#238443", "#005a32"},
		Classified: []string{"#1c742c", "#2aae29", "#a1d574", "#f8ebb0", "#f7a769", "#e86c4e", "#902cd6"},
	},
	{
		Name:       PaletteDeuteranopia,
		DNBR:       []string{"#fffaa1", "#f4ef8e", "#9a5d67", "#573f73", "#372851", "#191135"},
		Classified: redGreenClassified,
	},
	{
		Name:       PaletteProtanopia,
		DNBR:       []string{"#a6f697", "#7def75", "#2dcebb", "#1597ab", "#0c677e", "#002c47"},
		Classified: redGreenClassified,
	},
	{
		Name:       PaletteTritanopia,
		DNBR:       []string{"#cdffd7", "#a1fbb6", "#6cb5c6", "#3a77a5", "#205080", "#001752"},
		Classified: []string{"#ed4700", "#ed8a00", "#e1fabe", "#99ff94", "#87bede", "#2e40cf", "#0600bc"},
	},
	{
		Name:       PaletteAchromatopsia,
		DNBR:       []string{"#407de0", "#2763da", "#394388", "#272c66", "#16194f", "#010034"},
		Classified: []string{"#004f3d", "#338796", "#66a4f5", "#3683ff", "#3d50ca", "#421c7f", "#290058"},
	},
}

// Palettes returns every supported palette in display order.
func Palettes() []Palette {
	out := make([]Palette, len(palettes))
	for i, p := range palettes {
		out[i] = p.clone()
	}
	return out
}

// LookupPalette finds a palette by name, case-insensitively. An empty name
// selects Normal.
func LookupPalette(name string) (Palette, bool) {
	if strings.TrimSpace(name) == "" {
		return palettes[0].clone(), true
	}
	for _, p := range palettes {
		if strings.EqualFold(string(p.Name), strings.TrimSpace(name)) {
			return p.clone(), true
		}
	}
	return Palette{}, false
}

// ClassColor returns the classified-ramp colour for a class number.
func (p Palette) ClassColor(class int) string {
	if class < 1 || class > len(p.Classified) {
		return ""
	}
	return p.Classified[class-1]
}

func (p Palette) clone() Palette {
	return Palette{
		Name:       p.Name,
		DNBR:       append([]string(nil), p.DNBR...),
		Classified: append([]string(nil), p.Classified...),
		NDWI:       append([]string(nil), ndwiRamp...),
	}
}
