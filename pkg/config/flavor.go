package config

import "strings"

// Flavor selects the firmware dialect the output targets.
type Flavor int

const (
	FlavorRepRap Flavor = iota
	FlavorTeacup
	FlavorMakerWare
	FlavorSailfish
	FlavorMach3
	FlavorNoExtrusion
)

// FlavorTraits collects every flavor-dependent decision the emitter makes.
type FlavorTraits struct {
	Name string
	// G0Allowed lets callers' G0 requests through without the g0 option.
	G0Allowed bool
	// Progress enables M73 P<pct> on layer change.
	Progress bool
	// ExtruderOffAfterRetract appends M103 after every retraction.
	ExtruderOffAfterRetract bool
	// ManagesExtrusionDistance suppresses G92 resets.
	ManagesExtrusionDistance bool
	// ToolSelect prefixes the extruder id on tool change.
	ToolSelect string
	// FanOn/FanOff are fixed fan commands; empty FanOn means M106 with a PWM value.
	FanOn  string
	FanOff string
	// FanPWMWord is the M106 parameter carrying the PWM value.
	FanPWMWord string
	// ExtrusionAxis is the default E axis letter; empty means no extrusion.
	ExtrusionAxis string
}

var flavorTraits = map[Flavor]FlavorTraits{
	FlavorRepRap: {
		Name: "reprap", ToolSelect: "T", FanOff: "M107", FanPWMWord: "S", ExtrusionAxis: "E",
	},
	FlavorTeacup: {
		Name: "teacup", ToolSelect: "T", FanOff: "M106 S0", FanPWMWord: "S", ExtrusionAxis: "E",
	},
	FlavorMakerWare: {
		Name: "makerware", G0Allowed: true, Progress: true, ExtruderOffAfterRetract: true,
		ManagesExtrusionDistance: true, ToolSelect: "M135 T", FanOn: "M126", FanOff: "M127", ExtrusionAxis: "E",
	},
	FlavorSailfish: {
		Name: "sailfish", G0Allowed: true, Progress: true,
		ManagesExtrusionDistance: true, ToolSelect: "M108 T", FanOn: "M126", FanOff: "M127", ExtrusionAxis: "E",
	},
	FlavorMach3: {
		Name: "mach3", G0Allowed: true, ManagesExtrusionDistance: true,
		ToolSelect: "T", FanOff: "M107", FanPWMWord: "P", ExtrusionAxis: "A",
	},
	FlavorNoExtrusion: {
		Name: "no-extrusion", ToolSelect: "T", FanOff: "M107", FanPWMWord: "S",
	},
}

// Traits returns the behavior flags of f. Unknown values behave like RepRap.
func (f Flavor) Traits() FlavorTraits {
	if t, ok := flavorTraits[f]; ok {
		return t
	}
	return flavorTraits[FlavorRepRap]
}

func (f Flavor) String() string { return f.Traits().Name }

// FlavorNames lists the accepted gcode_flavor values.
func FlavorNames() []string {
	names := make([]string, 0, len(flavorTraits))
	for f := FlavorRepRap; f <= FlavorNoExtrusion; f++ {
		names = append(names, f.Traits().Name)
	}
	return names
}

// ParseFlavor maps a gcode_flavor value onto a Flavor.
func ParseFlavor(name string) (Flavor, bool) {
	for f := FlavorRepRap; f <= FlavorNoExtrusion; f++ {
		if strings.EqualFold(strings.TrimSpace(name), f.Traits().Name) {
			return f, true
		}
	}
	return FlavorRepRap, false
}
