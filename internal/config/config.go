// Package config loads dashx configuration: the embedded defaults merged
// with an optional user file.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oakwood-commons/dashx/pkg/display"
	"github.com/oakwood-commons/dashx/pkg/search"
	"github.com/oakwood-commons/dashx/pkg/settings"
)

//go:embed default_config.yaml
var embeddedDefaultConfig []byte

// App describes the application for `dashx config` output.
type App struct {
	Name        string `yaml:"name,omitempty" json:"name,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// ThemeSelection picks the theme used at startup.
type ThemeSelection struct {
	Default string `yaml:"default,omitempty" json:"default,omitempty"`
}

// Theme is one configured theme. Palette fields left empty inherit from the
// built-in theme of the same name when merged.
type Theme struct {
	Label   string          `yaml:"label,omitempty" json:"label,omitempty"`
	Palette display.Palette `yaml:"palette,omitempty" json:"palette,omitempty"`
}

// Search holds navigation search defaults.
type Search struct {
	DebounceMS *int   `yaml:"debounce_ms,omitempty" json:"debounce_ms,omitempty"`
	GroupBy    string `yaml:"group_by,omitempty" json:"group_by,omitempty"`
	Tag        string `yaml:"tag,omitempty" json:"tag,omitempty"`
}

// Data locates dashboards, snapshots and live update files.
type Data struct {
	ModDir          string `yaml:"mod_dir,omitempty" json:"mod_dir,omitempty"`
	SnapshotDir     string `yaml:"snapshot_dir,omitempty" json:"snapshot_dir,omitempty"`
	WatchDir        string `yaml:"watch_dir,omitempty" json:"watch_dir,omitempty"`
	WatchDebounceMS *int   `yaml:"watch_debounce_ms,omitempty" json:"watch_debounce_ms,omitempty"`
}

// Config is the merged configuration.
type Config struct {
	App         App                  `yaml:"app,omitempty" json:"app,omitempty"`
	Theme       ThemeSelection       `yaml:"theme,omitempty" json:"theme,omitempty"`
	Themes      map[string]Theme     `yaml:"themes,omitempty" json:"themes,omitempty"`
	Breakpoints []display.Breakpoint `yaml:"breakpoints,omitempty" json:"breakpoints,omitempty"`
	Search      Search               `yaml:"search,omitempty" json:"search,omitempty"`
	Data        Data                 `yaml:"data,omitempty" json:"data,omitempty"`
}

var (
	defaultOnce sync.Once
	defaultCfg  Config
	defaultErr  error
)

// DefaultYAML returns a copy of the embedded default config.
func DefaultYAML() []byte {
	return append([]byte(nil), embeddedDefaultConfig...)
}

// Default parses the embedded defaults once.
func Default() (Config, error) {
	defaultOnce.Do(func() {
		if len(embeddedDefaultConfig) == 0 {
			defaultErr = errors.New("embedded default config is empty")
			return
		}
		if err := yaml.Unmarshal(embeddedDefaultConfig, &defaultCfg); err != nil {
			defaultErr = fmt.Errorf("decode embedded default config: %w", err)
			return
		}
		if defaultCfg.Theme.Default == "" || len(defaultCfg.Themes) == 0 {
			defaultErr = errors.New("default config is missing required theme defaults")
		}
	})
	return defaultCfg.clone(), defaultErr
}

// Load merges the user file at path over the defaults. An empty path yields
// the defaults.
func Load(path string) (Config, error) {
	cfg, err := Default()
	if err != nil {
		return cfg, fmt.Errorf("load default config: %w", err)
	}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	var user Config
	if err := yaml.Unmarshal(data, &user); err != nil {
		return cfg, fmt.Errorf("decode config %s: %w", path, err)
	}
	merged := merge(cfg, user)
	if _, err := merged.DisplayBreakpoints(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	if _, err := merged.DisplayThemes().Lookup(merged.Theme.Default); err != nil {
		return cfg, fmt.Errorf("config %s: theme.default: %w", path, err)
	}
	return merged, nil
}

// ResolvePath returns explicit when set, otherwise the first existing file of
// $XDG_CONFIG_HOME/dashx/config.yaml and ~/.config/dashx/config.yaml. It
// returns "" when there is no user config.
func ResolvePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	candidate := ""
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		candidate = filepath.Join(xdg, settings.CliBinaryName, "config.yaml")
	} else if home, err := os.UserHomeDir(); err == nil {
		candidate = filepath.Join(home, ".config", settings.CliBinaryName, "config.yaml")
	}
	if candidate != "" {
		if st, err := os.Stat(candidate); err == nil && !st.IsDir() {
			return candidate
		}
	}
	return ""
}

func merge(base, override Config) Config {
	out := base.clone()
	str := func(src string, dst *string) {
		if src != "" {
			*dst = src
		}
	}
	num := func(src *int, dst **int) {
		if src != nil {
			v := *src
			*dst = &v
		}
	}
	str(override.App.Name, &out.App.Name)
	str(override.App.Description, &out.App.Description)
	str(override.Theme.Default, &out.Theme.Default)
	for name, th := range override.Themes {
		cur := out.Themes[name]
		str(th.Label, &cur.Label)
		str(th.Palette.Primary, &cur.Palette.Primary)
		str(th.Palette.Muted, &cur.Palette.Muted)
		str(th.Palette.Border, &cur.Palette.Border)
		str(th.Palette.Highlight, &cur.Palette.Highlight)
		str(th.Palette.Error, &cur.Palette.Error)
		str(th.Palette.Success, &cur.Palette.Success)
		out.Themes[name] = cur
	}
	if len(override.Breakpoints) > 0 {
		out.Breakpoints = append([]display.Breakpoint(nil), override.Breakpoints...)
	}
	num(override.Search.DebounceMS, &out.Search.DebounceMS)
	str(override.Search.GroupBy, &out.Search.GroupBy)
	str(override.Search.Tag, &out.Search.Tag)
	str(override.Data.ModDir, &out.Data.ModDir)
	str(override.Data.SnapshotDir, &out.Data.SnapshotDir)
	str(override.Data.WatchDir, &out.Data.WatchDir)
	num(override.Data.WatchDebounceMS, &out.Data.WatchDebounceMS)
	return out
}

func (c Config) clone() Config {
	out := c
	out.Themes = make(map[string]Theme, len(c.Themes))
	for k, v := range c.Themes {
		out.Themes[k] = v
	}
	out.Breakpoints = append([]display.Breakpoint(nil), c.Breakpoints...)
	return out
}

// DisplayThemes converts the configured themes into a display catalog.
func (c Config) DisplayThemes() display.Themes {
	out := make(display.Themes, len(c.Themes))
	for name, th := range c.Themes {
		label := th.Label
		if label == "" {
			label = name
		}
		out[name] = display.Theme{Name: name, Label: label, Palette: th.Palette}
	}
	return out
}

// DisplayBreakpoints validates and orders the configured breakpoints,
// falling back to the built-in tiers when none are configured.
func (c Config) DisplayBreakpoints() (display.Breakpoints, error) {
	if len(c.Breakpoints) == 0 {
		return display.DefaultBreakpoints, nil
	}
	return display.NewBreakpoints(c.Breakpoints)
}

// GroupBy returns the configured initial grouping.
func (c Config) GroupBy() (search.GroupBy, error) {
	mode := search.Mode(c.Search.GroupBy)
	if mode == "" {
		mode = search.ModeMod
	}
	return search.NewGroupBy(mode, c.Search.Tag)
}

// SearchDebounce is the quiet period before a typed search is applied.
func (c Config) SearchDebounce() time.Duration {
	return millis(c.Search.DebounceMS, 250)
}

// WatchDebounce is the quiet period before a changed live file is read.
func (c Config) WatchDebounce() time.Duration {
	return millis(c.Data.WatchDebounceMS, 200)
}

func millis(v *int, def int) time.Duration {
	if v == nil || *v < 0 {
		return time.Duration(def) * time.Millisecond
	}
	return time.Duration(*v) * time.Millisecond
}
