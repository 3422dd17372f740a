package document

import (
	"maps"
	"slices"
)

// Mod identifies the installed package that provides dashboards.
type Mod struct {
	FullName  string `yaml:"full_name" json:"full_name"`
	ShortName string `yaml:"short_name" json:"short_name"`
	Title     string `yaml:"title,omitempty" json:"title,omitempty"`
}

// DisplayName is the title when set, otherwise the short name.
func (m Mod) DisplayName() string {
	if m.Title != "" {
		return m.Title
	}
	if m.ShortName != "" {
		return m.ShortName
	}
	return m.FullName
}

// Dashboard is the metadata of a navigable dashboard.
type Dashboard struct {
	Name        string            `yaml:"name" json:"name"`
	Title       string            `yaml:"title,omitempty" json:"title,omitempty"`
	FullName    string            `yaml:"full_name" json:"full_name"`
	ShortName   string            `yaml:"short_name,omitempty" json:"short_name,omitempty"`
	ModFullName string            `yaml:"mod_full_name" json:"mod_full_name"`
	IsTopLevel  bool              `yaml:"is_top_level" json:"is_top_level"`
	Tags        map[string]string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// FullNameFor builds the canonical "<mod>.dashboard.<name>" identifier.
func FullNameFor(modShortName, name string) string {
	return modShortName + ".dashboard." + name
}

// DisplayTitle is the title when set, otherwise the short or full name.
func (d Dashboard) DisplayTitle() string {
	switch {
	case d.Title != "":
		return d.Title
	case d.ShortName != "":
		return d.ShortName
	default:
		return d.FullName
	}
}

// TagKeys returns the dashboard's tag keys in sorted order.
func (d Dashboard) TagKeys() []string {
	return slices.Sorted(maps.Keys(d.Tags))
}

// Map returns the dashboard metadata as a JSON-like map for expression
// evaluation.
func (d Dashboard) Map() map[string]any {
	tags := make(map[string]any, len(d.Tags))
	for k, v := range d.Tags {
		tags[k] = v
	}
	return map[string]any{
		"name":          d.Name,
		"title":         d.Title,
		"full_name":     d.FullName,
		"short_name":    d.ShortName,
		"mod_full_name": d.ModFullName,
		"is_top_level":  d.IsTopLevel,
		"tags":          tags,
	}
}
