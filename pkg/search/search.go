// Package search filters and groups the catalog of navigable dashboards.
// It never looks at panel content.
package search

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/oakwood-commons/dashx/internal/cel"
	"github.com/oakwood-commons/dashx/pkg/document"
)

// ErrInvalidGroupBy is returned for an unknown mode or a tag grouping with no
// tag name.
var ErrInvalidGroupBy = errors.New("invalid group by")

// Mode selects how dashboards are partitioned.
type Mode string

const (
	ModeMod Mode = "mod"
	ModeTag Mode = "tag"
)

// UngroupedLabel labels the bucket for dashboards missing the grouping tag.
// That bucket has an empty key.
const UngroupedLabel = "Ungrouped"

// GroupBy is a grouping mode plus, for tag grouping, the tag key.
type GroupBy struct {
	Mode Mode   `json:"value" yaml:"value"`
	Tag  string `json:"tag,omitempty" yaml:"tag,omitempty"`
}

// NewGroupBy validates a grouping. Tag grouping needs a tag; mod grouping
// drops whatever tag it was given.
func NewGroupBy(mode Mode, tag string) (GroupBy, error) {
	switch mode {
	case ModeMod:
		return GroupBy{Mode: ModeMod}, nil
	case ModeTag:
		tag = strings.TrimSpace(tag)
		if tag == "" {
			return GroupBy{}, fmt.Errorf("%w: tag grouping requires a tag name", ErrInvalidGroupBy)
		}
		return GroupBy{Mode: ModeTag, Tag: tag}, nil
	default:
		return GroupBy{}, fmt.Errorf("%w: unknown mode %q", ErrInvalidGroupBy, mode)
	}
}

// State is the free-text filter and grouping.
type State struct {
	Value   string  `json:"value" yaml:"value"`
	GroupBy GroupBy `json:"group_by" yaml:"group_by"`
}

// DefaultState matches everything and groups by mod.
func DefaultState() State {
	return State{GroupBy: GroupBy{Mode: ModeMod}}
}

// Matches reports whether the dashboard's title or any tag value contains
// value, ignoring case. An empty value matches everything.
func Matches(d document.Dashboard, value string) bool {
	needle := strings.ToLower(strings.TrimSpace(value))
	if needle == "" {
		return true
	}
	if strings.Contains(strings.ToLower(d.Title), needle) {
		return true
	}
	for _, v := range d.Tags {
		if strings.Contains(strings.ToLower(v), needle) {
			return true
		}
	}
	return false
}

// Options adds filters on top of the search state.
type Options struct {
	// Where is a CEL predicate over the dashboard's metadata bound to "_",
	// e.g. `_.is_top_level && _.tags.service == "aws"`.
	Where string
}

// Filter returns the dashboards matching the state and options, in input
// order.
func Filter(dashboards []document.Dashboard, state State, opts Options) ([]document.Dashboard, error) {
	var pred *cel.Predicate
	if strings.TrimSpace(opts.Where) != "" {
		eval, err := cel.Shared()
		if err != nil {
			return nil, err
		}
		pred, err = eval.Compile(opts.Where)
		if err != nil {
			return nil, fmt.Errorf("where %q: %w", opts.Where, err)
		}
	}

	out := make([]document.Dashboard, 0, len(dashboards))
	for _, d := range dashboards {
		if !Matches(d, state.Value) {
			continue
		}
		if pred != nil {
			ok, err := pred.Match(d.Map())
			if err != nil {
				return nil, fmt.Errorf("where %q on %s: %w", opts.Where, d.FullName, err)
			}
			if !ok {
				continue
			}
		}
		out = append(out, d)
	}
	return out, nil
}

// Group is one bucket of matching dashboards.
type Group struct {
	Key        string               `json:"key" yaml:"key"`
	Label      string               `json:"label" yaml:"label"`
	Dashboards []document.Dashboard `json:"dashboards" yaml:"dashboards"`
}

// Ungrouped reports whether this is the bucket for dashboards without the
// grouping tag.
func (g Group) Ungrouped() bool {
	return g.Key == ""
}

// GroupDashboards filters dashboards and partitions them. Groups are ordered
// by key with the ungrouped bucket last; dashboards within a group are
// ordered by title, then full name. mods supplies group labels for mod
// grouping and may be nil.
func GroupDashboards(dashboards []document.Dashboard, mods []document.Mod, state State, opts Options) ([]Group, error) {
	matched, err := Filter(dashboards, state, opts)
	if err != nil {
		return nil, err
	}

	labels := make(map[string]string, len(mods))
	for _, m := range mods {
		labels[m.FullName] = m.DisplayName()
	}

	buckets := make(map[string]*Group)
	for _, d := range matched {
		key, label := groupKey(d, state.GroupBy, labels)
		g, ok := buckets[key]
		if !ok {
			g = &Group{Key: key, Label: label}
			buckets[key] = g
		}
		g.Dashboards = append(g.Dashboards, d)
	}

	groups := make([]Group, 0, len(buckets))
	for _, g := range buckets {
		slices.SortStableFunc(g.Dashboards, func(a, b document.Dashboard) int {
			return cmp.Or(
				cmp.Compare(strings.ToLower(a.DisplayTitle()), strings.ToLower(b.DisplayTitle())),
				cmp.Compare(a.FullName, b.FullName),
			)
		})
		groups = append(groups, *g)
	}
	slices.SortFunc(groups, func(a, b Group) int {
		switch {
		case a.Ungrouped() && !b.Ungrouped():
			return 1
		case b.Ungrouped() && !a.Ungrouped():
			return -1
		}
		return cmp.Compare(a.Key, b.Key)
	})
	return groups, nil
}

func groupKey(d document.Dashboard, by GroupBy, modLabels map[string]string) (string, string) {
	switch by.Mode {
	case ModeTag:
		v, ok := d.Tags[by.Tag]
		if !ok || v == "" {
			return "", UngroupedLabel
		}
		return v, v
	case ModeMod:
		if d.ModFullName == "" {
			return "", UngroupedLabel
		}
		if label, ok := modLabels[d.ModFullName]; ok {
			return d.ModFullName, label
		}
		return d.ModFullName, d.ModFullName
	default:
		return "", UngroupedLabel
	}
}

// TagKeys returns the sorted union of tag keys across dashboards.
func TagKeys(dashboards []document.Dashboard) []string {
	var keys []string
	for _, d := range dashboards {
		keys = append(keys, d.TagKeys()...)
	}
	slices.Sort(keys)
	return slices.Compact(keys)
}
