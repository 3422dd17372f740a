package display

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownTheme is returned when a theme name is not in the catalog.
var ErrUnknownTheme = errors.New("unknown theme")

// Palette holds the colors a rendering layer needs. Values are color strings
// understood by lipgloss (ANSI numbers or hex).
type Palette struct {
	Primary   string `yaml:"primary" json:"primary"`
	Muted     string `yaml:"muted" json:"muted"`
	Border    string `yaml:"border" json:"border"`
	Highlight string `yaml:"highlight" json:"highlight"`
	Error     string `yaml:"error" json:"error"`
	Success   string `yaml:"success" json:"success"`
}

// Theme is the active theme descriptor.
type Theme struct {
	Name    string  `yaml:"name" json:"name"`
	Label   string  `yaml:"label" json:"label"`
	Palette Palette `yaml:"palette" json:"palette"`
}

// DefaultThemeName is used when no theme has been configured.
const DefaultThemeName = "steampipe-default"

// DefaultThemes is the built-in catalog.
var DefaultThemes = Themes{
	DefaultThemeName: {
		Name:  DefaultThemeName,
		Label: "Steampipe Default",
		Palette: Palette{
			Primary: "81", Muted: "246", Border: "238",
			Highlight: "24", Error: "203", Success: "114",
		},
	},
	"steampipe-dark": {
		Name:  "steampipe-dark",
		Label: "Steampipe Dark",
		Palette: Palette{
			Primary: "#89b4fa", Muted: "#a6adc8", Border: "#45475a",
			Highlight: "#313244", Error: "#f38ba8", Success: "#a6e3a1",
		},
	},
	"light": {
		Name:  "light",
		Label: "Light",
		Palette: Palette{
			Primary: "25", Muted: "240", Border: "250",
			Highlight: "153", Error: "160", Success: "28",
		},
	},
}

// Themes is a catalog of themes keyed by name.
type Themes map[string]Theme

// Lookup returns the named theme or ErrUnknownTheme.
func (t Themes) Lookup(name string) (Theme, error) {
	th, ok := t[name]
	if !ok {
		return Theme{}, fmt.Errorf("%w: %q", ErrUnknownTheme, name)
	}
	if th.Name == "" {
		th.Name = name
	}
	return th, nil
}

// Names returns the sorted theme names.
func (t Themes) Names() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
