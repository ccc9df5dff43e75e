package config

import (
	"strconv"
	"strings"
	"sync"

	"gcodegen/pkg/geom"
)

// Section provides access to a config section with access tracking.
type Section struct {
	name    string
	options map[string]string

	mu       sync.RWMutex
	accessed map[string]struct{}
}

func newSection(name string, options map[string]string) *Section {
	opts := make(map[string]string, len(options))
	for k, v := range options {
		opts[strings.ToLower(k)] = v
	}
	return &Section{
		name:     name,
		options:  opts,
		accessed: make(map[string]struct{}),
	}
}

// GetName returns the section name.
func (s *Section) GetName() string {
	return s.name
}

// lookup returns the raw value and marks the option as read. A missing
// option still counts as read when the caller supplied a fallback.
func (s *Section) lookup(option string, hasFallback bool) (string, bool) {
	key := strings.ToLower(option)
	v, ok := s.options[key]
	if ok || hasFallback {
		s.mu.Lock()
		s.accessed[key] = struct{}{}
		s.mu.Unlock()
	}
	return v, ok
}

// GetUnusedOptions returns options that were never read.
func (s *Section) GetUnusedOptions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []string
	for opt := range s.options {
		if _, ok := s.accessed[opt]; !ok {
			result = append(result, opt)
		}
	}
	return result
}

// Get returns a string option value, the fallback, or ErrMissingOption.
func (s *Section) Get(option string, fallback ...string) (string, error) {
	if v, ok := s.lookup(option, len(fallback) > 0); ok {
		return v, nil
	}
	if len(fallback) > 0 {
		return fallback[0], nil
	}
	return "", ErrMissingOption(s.name, option)
}

// GetInt returns an integer option value.
func (s *Section) GetInt(option string, fallback ...int) (int, error) {
	v, ok := s.lookup(option, len(fallback) > 0)
	if !ok {
		if len(fallback) > 0 {
			return fallback[0], nil
		}
		return 0, ErrMissingOption(s.name, option)
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, ErrInvalidValue(s.name, option, v, "integer")
	}
	return i, nil
}

// GetFloat returns a float64 option value.
func (s *Section) GetFloat(option string, fallback ...float64) (float64, error) {
	v, ok := s.lookup(option, len(fallback) > 0)
	if !ok {
		if len(fallback) > 0 {
			return fallback[0], nil
		}
		return 0, ErrMissingOption(s.name, option)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, ErrInvalidValue(s.name, option, v, "float")
	}
	return f, nil
}

// FloatBounds specifies bounds for GetFloatWithBounds.
type FloatBounds struct {
	MinVal *float64 // minimum value (>=)
	Above  *float64 // must be above this value (>)
}

// GetFloatWithBounds returns a float64 option value with bounds checking.
func (s *Section) GetFloatWithBounds(option string, bounds FloatBounds, fallback ...float64) (float64, error) {
	v, err := s.GetFloat(option, fallback...)
	if err != nil {
		return 0, err
	}
	if bounds.MinVal != nil && v < *bounds.MinVal {
		return 0, ErrOutOfRange(s.name, option, v, "must have minimum of "+strconv.FormatFloat(*bounds.MinVal, 'f', -1, 64))
	}
	if bounds.Above != nil && v <= *bounds.Above {
		return 0, ErrOutOfRange(s.name, option, v, "must be above "+strconv.FormatFloat(*bounds.Above, 'f', -1, 64))
	}
	return v, nil
}

func parseBool(v string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
}

// GetBool returns a boolean option value.
// Accepts: 1, true, yes, on (true) and 0, false, no, off (false).
func (s *Section) GetBool(option string, fallback ...bool) (bool, error) {
	v, ok := s.lookup(option, len(fallback) > 0)
	if !ok {
		if len(fallback) > 0 {
			return fallback[0], nil
		}
		return false, ErrMissingOption(s.name, option)
	}
	b, valid := parseBool(v)
	if !valid {
		return false, ErrInvalidValue(s.name, option, v, "boolean (true/false/yes/no/on/off/1/0)")
	}
	return b, nil
}

// GetChoice returns a string option that must be one of the valid choices.
func (s *Section) GetChoice(option string, choices []string, fallback ...string) (string, error) {
	v, err := s.Get(option, fallback...)
	if err != nil {
		return "", err
	}
	for _, c := range choices {
		if strings.EqualFold(strings.TrimSpace(v), c) {
			return c, nil
		}
	}
	return "", ErrInvalidChoice(s.name, option, v, choices)
}

// getList splits a comma separated option and converts each item. Empty
// items are skipped.
func getList[T any](s *Section, option, expected string, conv func(string) (T, bool), fallback [][]T) ([]T, error) {
	v, ok := s.lookup(option, len(fallback) > 0)
	if !ok {
		if len(fallback) > 0 {
			return fallback[0], nil
		}
		return nil, ErrMissingOption(s.name, option)
	}
	var out []T
	for _, p := range strings.Split(v, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		item, valid := conv(p)
		if !valid {
			return nil, ErrInvalidValue(s.name, option, p, expected)
		}
		out = append(out, item)
	}
	return out, nil
}

// GetFloatList returns a comma separated list of floats.
func (s *Section) GetFloatList(option string, fallback ...[]float64) ([]float64, error) {
	return getList(s, option, "float", func(p string) (float64, bool) {
		f, err := strconv.ParseFloat(p, 64)
		return f, err == nil
	}, fallback)
}

// GetIntList returns a comma separated list of integers.
func (s *Section) GetIntList(option string, fallback ...[]int) ([]int, error) {
	return getList(s, option, "integer", func(p string) (int, bool) {
		i, err := strconv.Atoi(p)
		return i, err == nil
	}, fallback)
}

// GetBoolList returns a comma separated list of booleans.
func (s *Section) GetBoolList(option string, fallback ...[]bool) ([]bool, error) {
	return getList(s, option, "boolean", parseBool, fallback)
}

// GetPointfList returns a comma separated list of "XxY" pairs, the format
// Slic3r uses for extruder_offset.
func (s *Section) GetPointfList(option string, fallback ...[]geom.Pointf) ([]geom.Pointf, error) {
	return getList(s, option, "point (XxY)", func(p string) (geom.Pointf, bool) {
		xs, ys, found := strings.Cut(strings.ToLower(p), "x")
		if !found {
			return geom.Pointf{}, false
		}
		x, errX := strconv.ParseFloat(strings.TrimSpace(xs), 64)
		y, errY := strconv.ParseFloat(strings.TrimSpace(ys), 64)
		return geom.Pointf{X: x, Y: y}, errX == nil && errY == nil
	}, fallback)
}
