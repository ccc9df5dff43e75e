package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
)

// DefaultSection receives options that appear before any [section] header.
// Slic3r-style .ini exports are flat key = value files, so a bare file maps
// entirely onto this section.
const DefaultSection = "print"

// Config provides access to a configuration file with access tracking.
type Config struct {
	mu       sync.RWMutex
	sections map[string]*Section
	order    []string
}

// New creates a new empty Config.
func New() *Config {
	return &Config{sections: make(map[string]*Section)}
}

// Load reads a configuration file and returns a Config.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: unable to open %s: %w", path, err)
	}
	defer f.Close()
	return parse(f, path)
}

// LoadString parses a configuration from a string.
func LoadString(data string) (*Config, error) {
	return parse(strings.NewReader(data), "<string>")
}

// FromMap builds a single-section Config from already split options.
func FromMap(section string, options map[string]string) *Config {
	c := New()
	c.addSection(section, options)
	return c
}

// parse accepts "key = value" and "key: value" lines, whichever separator
// comes first. Lines starting with '#' or ';' are comments; inline text is
// kept verbatim because ';' is also the G-code comment marker.
func parse(r io.Reader, name string) (*Config, error) {
	c := New()
	current := DefaultSection
	options := make(map[string]string)

	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' || line[0] == ';' {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			c.addSection(current, options)
			current = strings.TrimSpace(line[1 : len(line)-1])
			if current == "" {
				return nil, fmt.Errorf("config: empty section header at line %d in %s", lineNum, name)
			}
			options = make(map[string]string)
			continue
		}

		idx := strings.IndexAny(line, "=:")
		if idx <= 0 {
			return nil, fmt.Errorf("config: malformed line %d in %s: %q", lineNum, name, line)
		}
		key := strings.TrimSpace(line[:idx])
		if key == "" {
			return nil, fmt.Errorf("config: empty option name at line %d in %s", lineNum, name)
		}
		options[key] = strings.TrimSpace(line[idx+1:])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: error reading %s: %w", name, err)
	}
	c.addSection(current, options)
	return c, nil
}

// addSection merges options into the named section, creating it if needed.
// Empty implicit sections are skipped.
func (c *Config) addSection(name string, options map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.sections[name]; ok {
		for k, v := range options {
			existing.options[strings.ToLower(k)] = v
		}
		return
	}
	if name == DefaultSection && len(options) == 0 {
		return
	}
	c.sections[name] = newSection(name, options)
	c.order = append(c.order, name)
}

// GetSection returns a Section by name, or error if not found.
func (c *Config) GetSection(name string) (*Section, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sec, ok := c.sections[name]
	if !ok {
		return nil, ErrMissingSection(name)
	}
	return sec, nil
}

// GetSectionOptional returns a Section if it exists, or nil if not.
func (c *Config) GetSectionOptional(name string) *Section {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sections[name]
}

// GetSectionNames returns all section names in file order.
func (c *Config) GetSectionNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.order...)
}

// UnusedOptions lists "section.option" entries no getter has read yet.
func (c *Config) UnusedOptions() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []string
	for _, name := range c.order {
		for _, opt := range c.sections[name].GetUnusedOptions() {
			out = append(out, name+"."+opt)
		}
	}
	sort.Strings(out)
	return out
}
