// Normalization of emitted G-code for golden output comparison.
//
// Golden files pin the exact text an emitter produces for a scenario. Some
// differences are not interesting to a given scenario (comments, progress
// lines, the order of independent setup commands), so each comparison runs
// both sides through a Normalizer built from declarative rules.
//
// Usage:
//
//	n := normalize.New("wipe")
//	n.Register(normalize.Rule{Type: normalize.StripCommentRuleType})
//	n.Register(normalize.Rule{
//		Type:    normalize.RemoveRuleType,
//		Pattern: []string{"M73 "},
//	})
//	lines := n.Apply(normalize.Lines(output))
//
// Pattern entries match by prefix, so "G1 Z" matches every Z move.
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package normalize

import (
	"strings"
)

// RuleType defines the type of normalization rule.
type RuleType int

const (
	// ReorderRuleType reorders a matched block according to an index map.
	ReorderRuleType RuleType = iota

	// RemoveRuleType removes a matched block.
	RemoveRuleType

	// InsertRuleType inserts lines in front of a matched block.
	InsertRuleType

	// ReplaceRuleType replaces a matched block with new content.
	ReplaceRuleType

	// StripCommentRuleType removes trailing " ; comment" text from every
	// line and drops lines that held only a comment.
	StripCommentRuleType
)

// Rule represents a single normalization rule.
type Rule struct {
	Type RuleType

	// Pattern is a block of consecutive line prefixes.
	Pattern []string

	// Reorder lists, for ReorderRuleType, the pattern index placed at each
	// output position.
	Reorder []int

	// Insert holds the lines added by InsertRuleType.
	Insert []string

	// Replace holds the lines substituted by ReplaceRuleType.
	Replace []string

	Description string
}

// Normalizer manages normalization rules for one scenario.
type Normalizer struct {
	name  string
	rules []Rule
}

// New creates a new Normalizer for the given scenario name.
func New(name string) *Normalizer {
	return &Normalizer{
		name:  name,
		rules: make([]Rule, 0),
	}
}

// Name returns the scenario name the normalizer was built for.
func (n *Normalizer) Name() string { return n.name }

// Len returns the number of registered rules.
func (n *Normalizer) Len() int { return len(n.rules) }

// Register adds a normalization rule to this normalizer.
func (n *Normalizer) Register(rule Rule) {
	rule.Description = strings.TrimSpace(rule.Description)
	n.rules = append(n.rules, rule)
}

// Apply applies all registered rules in registration order and returns the
// normalized lines. The input is not modified.
func (n *Normalizer) Apply(lines []string) []string {
	result := make([]string, len(lines))
	copy(result, lines)

	for _, rule := range n.rules {
		if rule.Type == StripCommentRuleType {
			result = stripComments(result)
			continue
		}
		if len(rule.Pattern) == 0 {
			continue
		}
		result = applyBlock(result, rule)
	}

	return result
}

// Text normalizes a whole G-code text.
func (n *Normalizer) Text(text string) []string {
	return n.Apply(Lines(text))
}

// Lines splits G-code text into lines, trimming trailing whitespace and
// the final newline.
func Lines(text string) []string {
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t\r")
	}
	return lines
}

// matchAt reports whether the block starting at lines[i] matches pattern.
func matchAt(lines []string, i int, pattern []string) bool {
	if i+len(pattern) > len(lines) {
		return false
	}
	for j, prefix := range pattern {
		if !strings.HasPrefix(lines[i+j], prefix) {
			return false
		}
	}
	return true
}

// applyBlock rewrites every non-overlapping match of rule.Pattern.
func applyBlock(lines []string, rule Rule) []string {
	out := make([]string, 0, len(lines)+len(rule.Insert))
	for i := 0; i < len(lines); i++ {
		if !matchAt(lines, i, rule.Pattern) {
			out = append(out, lines[i])
			continue
		}

		block := lines[i : i+len(rule.Pattern)]
		switch rule.Type {
		case ReorderRuleType:
			for _, idx := range rule.Reorder {
				if idx >= 0 && idx < len(block) {
					out = append(out, block[idx])
				}
			}
		case RemoveRuleType:
		case InsertRuleType:
			out = append(out, rule.Insert...)
			out = append(out, block...)
		case ReplaceRuleType:
			out = append(out, rule.Replace...)
		default:
			out = append(out, block...)
		}
		i += len(block) - 1
	}
	return out
}

func stripComments(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if i := strings.IndexByte(line, ';'); i >= 0 {
			line = strings.TrimRight(line[:i], " \t")
			if line == "" {
				continue
			}
		}
		out = append(out, line)
	}
	return out
}

// Mismatch is one differing line of a golden comparison. Line is 1-based;
// an empty Want or Got means that side ran out of lines.
type Mismatch struct {
	Line int
	Want string
	Got  string
}

// Diff compares two normalized outputs line by line.
func Diff(want, got []string) []Mismatch {
	var out []Mismatch
	for i := 0; i < max(len(want), len(got)); i++ {
		var w, g string
		if i < len(want) {
			w = want[i]
		}
		if i < len(got) {
			g = got[i]
		}
		if w != g {
			out = append(out, Mismatch{Line: i + 1, Want: w, Got: g})
		}
	}
	return out
}
