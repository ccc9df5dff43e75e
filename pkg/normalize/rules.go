// Predefined normalization presets for golden scenarios.
//
// A scenario file names the presets it needs; each preset registers a
// small set of rules. Scenarios that pin the exact text name none.
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package normalize

import (
	"fmt"
	"sort"

	"gcodegen/pkg/errors"
)

// RegisterCommentRules drops every comment.
func RegisterCommentRules(n *Normalizer) {
	n.Register(Rule{
		Type:        StripCommentRuleType,
		Description: "Compare commands only, ignoring gcode_comments",
	})
}

// RegisterProgressRules drops M73 progress lines, which depend on the
// declared layer count rather than on the moves.
func RegisterProgressRules(n *Normalizer) {
	n.Register(Rule{
		Type:        RemoveRuleType,
		Pattern:     []string{"M73 "},
		Description: "Ignore progress reporting",
	})
}

// RegisterResetRules drops extrusion distance resets.
func RegisterResetRules(n *Normalizer) {
	n.Register(Rule{
		Type:        RemoveRuleType,
		Pattern:     []string{"G92 "},
		Description: "Ignore G92 extrusion resets",
	})
}

// RegisterFanRules collapses the flavor-specific fan commands to bare
// M106/M107 so one golden file serves every flavor. Fan speeds are not
// compared.
func RegisterFanRules(n *Normalizer) {
	for _, r := range []struct{ from, to, desc string }{
		{"M106 S0", "M107", "Teacup turns the fan off with M106 S0"},
		{"M106 ", "M106", "Ignore the PWM value"},
		{"M126", "M106", "Treat M126 as M106"},
		{"M127", "M107", "Treat M127 as M107"},
	} {
		n.Register(Rule{
			Type:        ReplaceRuleType,
			Pattern:     []string{r.from},
			Replace:     []string{r.to},
			Description: r.desc,
		})
	}
}

var presets = map[string]func(*Normalizer){
	"comments": RegisterCommentRules,
	"progress": RegisterProgressRules,
	"reset":    RegisterResetRules,
	"fan":      RegisterFanRules,
}

// PresetNames lists the known presets in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ForScenario builds the normalizer for a scenario from its preset names.
// Presets are applied in the order given.
func ForScenario(name string, presetNames []string) (*Normalizer, error) {
	n := New(name)
	for _, p := range presetNames {
		register, ok := presets[p]
		if !ok {
			return nil, errors.New(errors.ErrScenario,
				fmt.Sprintf("unknown normalize preset %q (known: %v)", p, PresetNames())).
				SetContext("scenario", name)
		}
		register(n)
	}
	return n, nil
}
