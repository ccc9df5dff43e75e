// Package scenario replays recorded emitter call sequences.
//
// A scenario is a YAML file naming a print configuration and an ordered
// list of emitter operations. Its expected output lives next to it in a
// .gcode golden file with the same base name:
//
//	name: retract-basic
//	layer_count: 3
//	extruders: [0]
//	config:
//	  gcode_comments: 1
//	  retract_length: 2
//	steps:
//	  - op: change_layer
//	    layer: {id: 0, z: 0.3}
//	  - op: retract
package scenario

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"gcodegen/pkg/config"
	"gcodegen/pkg/errors"
)

// GoldenExt is the extension of expected output files.
const GoldenExt = ".gcode"

// Scenario is one replayable call sequence.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	LayerCount  int    `yaml:"layer_count"`
	Extruders   []int  `yaml:"extruders"`

	// Config holds print options by their INI names. ConfigFile, relative to
	// the scenario, is used instead when set.
	Config     map[string]string `yaml:"config"`
	ConfigFile string            `yaml:"config_file"`

	// Planner selects the motion planner used with
	// avoid_crossing_perimeters: "" for none, "direct" for straight routes.
	Planner string `yaml:"planner"`

	// Normalize lists the normalize presets applied before comparison.
	Normalize []string `yaml:"normalize"`

	Steps []Step `yaml:"steps"`

	path string
}

// LayerSpec describes the layer passed to change_layer.
type LayerSpec struct {
	ID int     `yaml:"id"`
	Z  float64 `yaml:"z"`
}

// Step is one emitter call. Only the fields the operation reads are used.
type Step struct {
	Op         string       `yaml:"op"`
	Layer      *LayerSpec   `yaml:"layer,omitempty"`
	X          float64      `yaml:"x,omitempty"`
	Y          float64      `yaml:"y,omitempty"`
	Z          float64      `yaml:"z,omitempty"`
	E          float64      `yaml:"e,omitempty"`
	Feed       float64      `yaml:"feed,omitempty"`
	MoveZ      float64      `yaml:"move_z,omitempty"`
	Toolchange bool         `yaml:"toolchange,omitempty"`
	Value      float64      `yaml:"value,omitempty"`
	Extruder   int          `yaml:"extruder,omitempty"`
	Speed      int          `yaml:"speed,omitempty"`
	Points     [][2]float64 `yaml:"points,omitempty"`
	Comment    string       `yaml:"comment,omitempty"`
}

// Parse decodes a scenario from YAML. name is used when the document
// does not set one.
func Parse(data []byte, name string) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(err, errors.ErrScenario, fmt.Sprintf("failed to parse %s", name))
	}
	if s.Name == "" {
		s.Name = name
	}
	if len(s.Extruders) == 0 {
		s.Extruders = []int{0}
	}
	if s.LayerCount == 0 {
		s.LayerCount = countLayers(s.Steps)
	}
	if s.ConfigFile != "" && len(s.Config) > 0 {
		return nil, errors.New(errors.ErrScenario, "config and config_file are mutually exclusive").
			SetContext("scenario", s.Name)
	}
	return &s, nil
}

func countLayers(steps []Step) int {
	n := 0
	for _, st := range steps {
		if st.Op == OpChangeLayer {
			n++
		}
	}
	return n
}

// Load reads a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrScenario, "failed to read scenario")
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	s, err := Parse(data, name)
	if err != nil {
		return nil, err
	}
	s.path = path
	return s, nil
}

// LoadDir loads every .yaml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := Load(p)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// Path returns the file the scenario was loaded from, if any.
func (s *Scenario) Path() string { return s.path }

// GoldenPath returns the expected output file of a loaded scenario.
func (s *Scenario) GoldenPath() string {
	if s.path == "" {
		return ""
	}
	return strings.TrimSuffix(s.path, filepath.Ext(s.path)) + GoldenExt
}

// PrintConfig materialises the scenario's print configuration.
func (s *Scenario) PrintConfig() (*config.PrintConfig, error) {
	if s.ConfigFile != "" {
		path := s.ConfigFile
		if !filepath.IsAbs(path) && s.path != "" {
			path = filepath.Join(filepath.Dir(s.path), path)
		}
		cfg, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		return config.LoadPrintConfig(cfg)
	}
	return config.LoadPrintConfig(config.FromMap(config.DefaultSection, s.Config))
}
