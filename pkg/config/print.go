package config

import (
	"fmt"

	"gcodegen/pkg/errors"
	"gcodegen/pkg/geom"
	"gcodegen/pkg/log"
)

// PrintConfig is the read-only option set the emitter consults. Per-extruder
// options are slices indexed by extruder id.
type PrintConfig struct {
	GCodeFlavor           Flavor
	G0                    bool
	GCodeComments         bool
	ExtrusionAxis         string
	UseRelativeEDistances bool
	UseFirmwareRetraction bool
	ZOffset               float64
	// TravelSpeed is in mm/s.
	TravelSpeed             float64
	FirstLayerAcceleration  float64
	DefaultAcceleration     float64
	AvoidCrossingPerimeters bool

	ExtruderOffset                []geom.Pointf
	NozzleDiameter                []float64
	FilamentDiameter              []float64
	ExtrusionMultiplier           []float64
	Temperature                   []int
	FirstLayerTemperature         []int
	RetractLength                 []float64
	RetractLift                   []float64
	RetractSpeed                  []int
	RetractRestartExtra           []float64
	RetractBeforeTravel           []float64
	RetractLayerChange            []bool
	RetractLengthToolchange       []float64
	RetractRestartExtraToolchange []float64
	Wipe                          []bool
}

// DefaultPrintConfig returns the stock single-extruder option set.
func DefaultPrintConfig() *PrintConfig {
	return &PrintConfig{
		GCodeFlavor:                   FlavorRepRap,
		ExtrusionAxis:                 "E",
		TravelSpeed:                   130,
		ExtruderOffset:                []geom.Pointf{{}},
		NozzleDiameter:                []float64{0.5},
		FilamentDiameter:              []float64{3},
		ExtrusionMultiplier:           []float64{1},
		Temperature:                   []int{200},
		FirstLayerTemperature:         []int{200},
		RetractLength:                 []float64{1},
		RetractLift:                   []float64{0},
		RetractSpeed:                  []int{30},
		RetractRestartExtra:           []float64{0},
		RetractBeforeTravel:           []float64{2},
		RetractLayerChange:            []bool{true},
		RetractLengthToolchange:       []float64{10},
		RetractRestartExtraToolchange: []float64{0},
		Wipe:                          []bool{false},
	}
}

// at returns values[id], falling back to the first value when the list is
// shorter than the extruder count.
func at[T any](values []T, id int) T {
	if id >= 0 && id < len(values) {
		return values[id]
	}
	var zero T
	if len(values) > 0 {
		return values[0]
	}
	return zero
}

// ExtruderCount is the number of configured nozzles.
func (c *PrintConfig) ExtruderCount() int { return len(c.NozzleDiameter) }

func (c *PrintConfig) ExtruderOffsetAt(id int) geom.Pointf      { return at(c.ExtruderOffset, id) }
func (c *PrintConfig) NozzleDiameterAt(id int) float64          { return at(c.NozzleDiameter, id) }
func (c *PrintConfig) FilamentDiameterAt(id int) float64        { return at(c.FilamentDiameter, id) }
func (c *PrintConfig) ExtrusionMultiplierAt(id int) float64     { return at(c.ExtrusionMultiplier, id) }
func (c *PrintConfig) TemperatureAt(id int) int                 { return at(c.Temperature, id) }
func (c *PrintConfig) FirstLayerTemperatureAt(id int) int       { return at(c.FirstLayerTemperature, id) }
func (c *PrintConfig) RetractLengthAt(id int) float64           { return at(c.RetractLength, id) }
func (c *PrintConfig) RetractLiftAt(id int) float64             { return at(c.RetractLift, id) }
func (c *PrintConfig) RetractSpeedAt(id int) int                { return at(c.RetractSpeed, id) }
func (c *PrintConfig) RetractRestartExtraAt(id int) float64     { return at(c.RetractRestartExtra, id) }
func (c *PrintConfig) RetractBeforeTravelAt(id int) float64     { return at(c.RetractBeforeTravel, id) }
func (c *PrintConfig) RetractLayerChangeAt(id int) bool         { return at(c.RetractLayerChange, id) }
func (c *PrintConfig) RetractLengthToolchangeAt(id int) float64 { return at(c.RetractLengthToolchange, id) }
func (c *PrintConfig) RetractRestartExtraToolchangeAt(id int) float64 {
	return at(c.RetractRestartExtraToolchange, id)
}
func (c *PrintConfig) WipeAt(id int) bool { return at(c.Wipe, id) }

// Validate checks the options that are not tied to one extruder.
func (c *PrintConfig) Validate() error {
	if c.ExtrusionAxis == "" && !c.UseRelativeEDistances && c.GCodeFlavor.Traits().ExtrusionAxis != "" {
		return errors.ExtrusionAxisError(c.GCodeFlavor.String())
	}
	if c.TravelSpeed <= 0 {
		return errors.ConfigValidationError(DefaultSection, "travel_speed", "must be above 0")
	}
	return nil
}

// ValidateExtruder checks that id is configured and its retraction
// parameters are usable.
func (c *PrintConfig) ValidateExtruder(id int) error {
	if id < 0 || id >= c.ExtruderCount() {
		return errors.UnknownExtruderError(id, c.ExtruderCount())
	}
	if v := c.RetractLengthAt(id); v < 0 {
		return errors.ConfigValidationError(DefaultSection, "retract_length",
			fmt.Sprintf("extruder %d: %v must not be negative", id, v))
	}
	if v := c.RetractLengthToolchangeAt(id); v < 0 {
		return errors.ConfigValidationError(DefaultSection, "retract_length_toolchange",
			fmt.Sprintf("extruder %d: %v must not be negative", id, v))
	}
	if v := c.RetractSpeedAt(id); v <= 0 {
		return errors.ConfigValidationError(DefaultSection, "retract_speed",
			fmt.Sprintf("extruder %d: %d must be above 0", id, v))
	}
	return nil
}

// LoadPrintConfig maps the [print] section of cfg onto a PrintConfig. Options
// that are absent keep their DefaultPrintConfig value; options nothing reads
// are reported at WARN.
func LoadPrintConfig(cfg *Config) (*PrintConfig, error) {
	pc := DefaultPrintConfig()
	sec := cfg.GetSectionOptional(DefaultSection)
	if sec == nil {
		return pc, nil
	}

	flavorName, err := sec.GetChoice("gcode_flavor", FlavorNames(), pc.GCodeFlavor.String())
	if err != nil {
		return nil, errors.ConfigOptionError(DefaultSection, "gcode_flavor", err)
	}
	pc.GCodeFlavor, _ = ParseFlavor(flavorName)
	pc.ExtrusionAxis = pc.GCodeFlavor.Traits().ExtrusionAxis

	loader := printLoader{sec: sec}
	loader.str("extrusion_axis", &pc.ExtrusionAxis)
	loader.boolean("g0", &pc.G0)
	loader.boolean("gcode_comments", &pc.GCodeComments)
	loader.boolean("use_relative_e_distances", &pc.UseRelativeEDistances)
	loader.boolean("use_firmware_retraction", &pc.UseFirmwareRetraction)
	loader.boolean("avoid_crossing_perimeters", &pc.AvoidCrossingPerimeters)
	loader.float("z_offset", &pc.ZOffset)
	loader.floatAbove("travel_speed", 0, &pc.TravelSpeed)
	loader.float("first_layer_acceleration", &pc.FirstLayerAcceleration)
	loader.float("default_acceleration", &pc.DefaultAcceleration)

	loader.points("extruder_offset", &pc.ExtruderOffset)
	loader.floats("nozzle_diameter", &pc.NozzleDiameter)
	loader.floats("filament_diameter", &pc.FilamentDiameter)
	loader.floats("extrusion_multiplier", &pc.ExtrusionMultiplier)
	loader.ints("temperature", &pc.Temperature)
	loader.ints("first_layer_temperature", &pc.FirstLayerTemperature)
	loader.floats("retract_length", &pc.RetractLength)
	loader.floats("retract_lift", &pc.RetractLift)
	loader.ints("retract_speed", &pc.RetractSpeed)
	loader.floats("retract_restart_extra", &pc.RetractRestartExtra)
	loader.floats("retract_before_travel", &pc.RetractBeforeTravel)
	loader.bools("retract_layer_change", &pc.RetractLayerChange)
	loader.floats("retract_length_toolchange", &pc.RetractLengthToolchange)
	loader.floats("retract_restart_extra_toolchange", &pc.RetractRestartExtraToolchange)
	loader.bools("wipe", &pc.Wipe)
	if loader.err != nil {
		return nil, loader.err
	}

	if err := pc.Validate(); err != nil {
		return nil, err
	}
	if unused := sec.GetUnusedOptions(); len(unused) > 0 {
		log.GetLogger("config").WithField("options", unused).Warn("ignoring unknown print options")
	}
	return pc, nil
}

// printLoader keeps the first error and turns later reads into no-ops, so
// LoadPrintConfig can read options in a flat list.
type printLoader struct {
	sec *Section
	err error
}

func (l *printLoader) fail(option string, err error) {
	if l.err == nil && err != nil {
		l.err = errors.ConfigOptionError(DefaultSection, option, err)
	}
}

func (l *printLoader) str(option string, dst *string) {
	if l.err != nil {
		return
	}
	v, err := l.sec.Get(option, *dst)
	l.fail(option, err)
	*dst = v
}

func (l *printLoader) boolean(option string, dst *bool) {
	if l.err != nil {
		return
	}
	v, err := l.sec.GetBool(option, *dst)
	l.fail(option, err)
	*dst = v
}

func (l *printLoader) float(option string, dst *float64) {
	if l.err != nil {
		return
	}
	v, err := l.sec.GetFloat(option, *dst)
	l.fail(option, err)
	*dst = v
}

func (l *printLoader) floatAbove(option string, above float64, dst *float64) {
	if l.err != nil {
		return
	}
	v, err := l.sec.GetFloatWithBounds(option, FloatBounds{Above: &above}, *dst)
	l.fail(option, err)
	*dst = v
}

func (l *printLoader) floats(option string, dst *[]float64) {
	if l.err != nil {
		return
	}
	v, err := l.sec.GetFloatList(option, *dst)
	l.fail(option, err)
	if err == nil && len(v) > 0 {
		*dst = v
	}
}

func (l *printLoader) ints(option string, dst *[]int) {
	if l.err != nil {
		return
	}
	v, err := l.sec.GetIntList(option, *dst)
	l.fail(option, err)
	if err == nil && len(v) > 0 {
		*dst = v
	}
}

func (l *printLoader) bools(option string, dst *[]bool) {
	if l.err != nil {
		return
	}
	v, err := l.sec.GetBoolList(option, *dst)
	l.fail(option, err)
	if err == nil && len(v) > 0 {
		*dst = v
	}
}

func (l *printLoader) points(option string, dst *[]geom.Pointf) {
	if l.err != nil {
		return
	}
	v, err := l.sec.GetPointfList(option, *dst)
	l.fail(option, err)
	if err == nil && len(v) > 0 {
		*dst = v
	}
}
