// Package display carries the theme and responsive breakpoint facts that every
// panel reads while rendering.
package display

import (
	"fmt"
	"sort"
	"strings"
)

// Breakpoint names a viewport-width tier. A breakpoint applies to every width
// at or above MinWidth until the next breakpoint's MinWidth.
type Breakpoint struct {
	Name     string `yaml:"name" json:"name"`
	MinWidth int    `yaml:"min_width" json:"min_width"`
}

// Breakpoints is an ordered set of tiers. The order defines the rank used by
// MinBreakpoint and MaxBreakpoint.
type Breakpoints []Breakpoint

// DefaultBreakpoints mirror the column thresholds used for terminal layouts.
var DefaultBreakpoints = Breakpoints{
	{Name: "xs", MinWidth: 0},
	{Name: "sm", MinWidth: 60},
	{Name: "md", MinWidth: 80},
	{Name: "lg", MinWidth: 120},
	{Name: "xl", MinWidth: 160},
	{Name: "2xl", MinWidth: 200},
}

// NewBreakpoints validates and sorts tiers by MinWidth. Names must be unique
// and non-empty.
func NewBreakpoints(tiers []Breakpoint) (Breakpoints, error) {
	if len(tiers) == 0 {
		return nil, fmt.Errorf("at least one breakpoint is required")
	}
	out := make(Breakpoints, len(tiers))
	copy(out, tiers)
	seen := make(map[string]struct{}, len(out))
	for i, bp := range out {
		name := strings.TrimSpace(bp.Name)
		out[i].Name = name
		if name == "" {
			return nil, fmt.Errorf("breakpoint with min_width %d has no name", bp.MinWidth)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate breakpoint %q", name)
		}
		if bp.MinWidth < 0 {
			return nil, fmt.Errorf("breakpoint %q has negative min_width", name)
		}
		seen[name] = struct{}{}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].MinWidth < out[j].MinWidth })
	return out, nil
}

// For maps a width to the widest tier whose MinWidth it reaches. Widths below
// the first tier fall into the first tier.
func (b Breakpoints) For(width int) string {
	if len(b) == 0 {
		return ""
	}
	name := b[0].Name
	for _, bp := range b {
		if width < bp.MinWidth {
			break
		}
		name = bp.Name
	}
	return name
}

// Rank returns the position of name in the tier order.
func (b Breakpoints) Rank(name string) (int, bool) {
	for i, bp := range b {
		if bp.Name == name {
			return i, true
		}
	}
	return -1, false
}

// Names lists tier names in rank order.
func (b Breakpoints) Names() []string {
	names := make([]string, len(b))
	for i, bp := range b {
		names[i] = bp.Name
	}
	return names
}
