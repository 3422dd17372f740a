package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/oakwood-commons/dashx/pkg/binding"
	"github.com/oakwood-commons/dashx/pkg/document"
	"github.com/oakwood-commons/dashx/pkg/panel"
	"github.com/oakwood-commons/dashx/pkg/session"
)

const (
	modFileName   = "mod.yaml"
	dashboardsDir = "dashboards"
	modsDir       = "mods"
)

var dashboardExts = []string{".yaml", ".yml", ".json", ".toml"}

// modFile is the on-disk mod.yaml.
type modFile struct {
	Name  string `yaml:"name"`
	Title string `yaml:"title"`
}

// dashboardFile is one file under a mod's dashboards directory.
type dashboardFile struct {
	Name     string              `yaml:"name" json:"name"`
	Title    string              `yaml:"title" json:"title"`
	Tags     map[string]string   `yaml:"tags" json:"tags"`
	TopLevel *bool               `yaml:"top_level" json:"top_level"`
	Children []*panel.Node       `yaml:"children" json:"children"`
	Data     map[string]any      `yaml:"data" json:"data"`
	Depends  map[string][]string `yaml:"depends" json:"depends"`
}

// FileLoader reads dashboards from a mod directory:
//
//	<dir>/mod.yaml
//	<dir>/dashboards/<name>.yaml|yml|json|toml
//	<dir>/mods/<dep>/mod.yaml
//	<dir>/mods/<dep>/dashboards/...
//
// The directory is scanned on every call.
type FileLoader struct {
	Dir string
}

// NewFileLoader returns a loader rooted at dir.
func NewFileLoader(dir string) *FileLoader {
	return &FileLoader{Dir: dir}
}

var _ session.Loader = (*FileLoader)(nil)

type entry struct {
	dashboard document.Dashboard
	path      string
}

// Dashboards returns the mods and dashboards found under the directory.
func (l *FileLoader) Dashboards(ctx context.Context) (document.Catalog, error) {
	cat, _, err := l.scan(ctx)
	return cat, err
}

// Load parses the dashboard named fullName. An unknown name wraps
// document.ErrNotFound.
func (l *FileLoader) Load(ctx context.Context, fullName string) (session.Loaded, error) {
	_, entries, err := l.scan(ctx)
	if err != nil {
		return session.Loaded{}, err
	}
	i := slices.IndexFunc(entries, func(e entry) bool { return e.dashboard.FullName == fullName })
	if i < 0 {
		return session.Loaded{}, fmt.Errorf("dashboard %s: %w", fullName, document.ErrNotFound)
	}
	e := entries[i]
	file, err := readDashboardFile(e.path)
	if err != nil {
		return session.Loaded{}, err
	}
	doc, err := document.New(e.dashboard, file.Children)
	if err != nil {
		return session.Loaded{}, fmt.Errorf("%s: %w", e.path, err)
	}
	return session.Loaded{
		Document:     doc,
		Data:         binding.Contents(file.Data),
		Dependencies: binding.Dependencies(file.Depends),
	}, nil
}

func (l *FileLoader) scan(ctx context.Context) (document.Catalog, []entry, error) {
	dir := l.Dir
	if dir == "" {
		dir = "."
	}
	modDirs := []string{dir}
	deps, err := os.ReadDir(filepath.Join(dir, modsDir))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return document.Catalog{}, nil, err
	}
	for _, d := range deps {
		if d.IsDir() {
			modDirs = append(modDirs, filepath.Join(dir, modsDir, d.Name()))
		}
	}

	var (
		cat     document.Catalog
		entries []entry
		seen    = map[string]string{}
	)
	for i, md := range modDirs {
		if err := ctx.Err(); err != nil {
			return document.Catalog{}, nil, err
		}
		mod, err := readMod(md, i == 0)
		if err != nil {
			return document.Catalog{}, nil, err
		}
		cat.Mods = append(cat.Mods, mod)

		found, err := modDashboards(md, mod)
		if err != nil {
			return document.Catalog{}, nil, err
		}
		for _, e := range found {
			if prev, dup := seen[e.dashboard.FullName]; dup {
				return document.Catalog{}, nil, fmt.Errorf("dashboard %s defined twice: %s and %s", e.dashboard.FullName, prev, e.path)
			}
			seen[e.dashboard.FullName] = e.path
			cat.Dashboards = append(cat.Dashboards, e.dashboard)
			entries = append(entries, e)
		}
	}
	return cat, entries, nil
}

// readMod reads mod.yaml. The workspace mod may omit it and is then named
// after its directory.
func readMod(dir string, workspace bool) (document.Mod, error) {
	var mf modFile
	raw, err := os.ReadFile(filepath.Join(dir, modFileName))
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, &mf); err != nil {
			return document.Mod{}, fmt.Errorf("%s: %w", filepath.Join(dir, modFileName), err)
		}
	case errors.Is(err, fs.ErrNotExist) && workspace:
	default:
		return document.Mod{}, err
	}
	if mf.Name == "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return document.Mod{}, err
		}
		mf.Name = filepath.Base(abs)
	}
	return document.Mod{FullName: "mod." + mf.Name, ShortName: mf.Name, Title: mf.Title}, nil
}

func modDashboards(dir string, mod document.Mod) ([]entry, error) {
	files, err := os.ReadDir(filepath.Join(dir, dashboardsDir))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []entry
	for _, f := range files {
		ext := strings.ToLower(filepath.Ext(f.Name()))
		if f.IsDir() || !slices.Contains(dashboardExts, ext) {
			continue
		}
		path := filepath.Join(dir, dashboardsDir, f.Name())
		file, err := readDashboardFile(path)
		if err != nil {
			return nil, err
		}
		name := file.Name
		if name == "" {
			name = strings.TrimSuffix(f.Name(), filepath.Ext(f.Name()))
		}
		top := true
		if file.TopLevel != nil {
			top = *file.TopLevel
		}
		out = append(out, entry{
			path: path,
			dashboard: document.Dashboard{
				Name:        name,
				Title:       file.Title,
				FullName:    document.FullNameFor(mod.ShortName, name),
				ShortName:   name,
				ModFullName: mod.FullName,
				IsTopLevel:  top,
				Tags:        file.Tags,
			},
		})
	}
	return out, nil
}

func readDashboardFile(path string) (dashboardFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return dashboardFile{}, err
	}
	var file dashboardFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(raw, &file)
	case ".toml":
		err = decodeTOMLDashboard(raw, &file)
	default:
		err = yaml.Unmarshal(raw, &file)
	}
	if err != nil {
		return dashboardFile{}, fmt.Errorf("%s: %w", path, err)
	}
	if err := normalizeTypes(file.Children); err != nil {
		return dashboardFile{}, fmt.Errorf("%s: %w", path, err)
	}
	return file, nil
}

// decodeTOMLDashboard goes through YAML so the snake_case field names shared
// with the other formats apply.
func decodeTOMLDashboard(raw []byte, file *dashboardFile) error {
	var generic map[string]any
	if err := toml.Unmarshal(raw, &generic); err != nil {
		return err
	}
	bridged, err := yaml.Marshal(generic)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(bridged, file)
}

func normalizeTypes(nodes []*panel.Node) error {
	for _, n := range nodes {
		if n == nil {
			continue
		}
		t, err := panel.ParseNodeType(string(n.Type))
		if err != nil {
			return fmt.Errorf("node %q: %w", n.Name, err)
		}
		n.Type = t
		if err := normalizeTypes(n.Children); err != nil {
			return err
		}
	}
	return nil
}
