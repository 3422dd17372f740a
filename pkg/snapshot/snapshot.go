// Package snapshot stores frozen dashboard data on disk.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oakwood-commons/dashx/pkg/binding"
	"github.com/oakwood-commons/dashx/pkg/document"
	"github.com/oakwood-commons/dashx/pkg/panel"
)

// ErrNotFound is returned when no snapshot has the requested id.
var ErrNotFound = errors.New("snapshot not found")

var validID = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Snapshot is a dashboard document and its data captured at one point.
type Snapshot struct {
	ID         string             `yaml:"id" json:"id"`
	Dashboard  document.Dashboard `yaml:"dashboard" json:"dashboard"`
	Children   []*panel.Node      `yaml:"children,omitempty" json:"children,omitempty"`
	Data       binding.Contents   `yaml:"data" json:"data"`
	Inputs     map[string]string  `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	CapturedAt time.Time          `yaml:"captured_at" json:"captured_at"`
}

// Capture builds a snapshot of doc with a copy of data.
func Capture(id string, doc *document.Document, data binding.Contents, inputs map[string]string, at time.Time) Snapshot {
	c := doc.Clone()
	var in map[string]string
	if len(inputs) > 0 {
		in = make(map[string]string, len(inputs))
		for k, v := range inputs {
			in[k] = v
		}
	}
	return Snapshot{
		ID:         id,
		Dashboard:  c.Dashboard,
		Children:   c.Root().Children,
		Data:       binding.NewFrozen(data).Contents(),
		Inputs:     in,
		CapturedAt: at.UTC(),
	}
}

// Document rebuilds the captured document.
func (s Snapshot) Document() (*document.Document, error) {
	return document.New(s.Dashboard, s.Children)
}

// Frozen returns the captured data as a read-only table.
func (s Snapshot) Frozen() binding.Frozen {
	return binding.NewFrozen(s.Data)
}

// FileStore keeps one file per snapshot in Dir, named <id>.yaml or
// <id>.json. Save always writes YAML.
type FileStore struct {
	Dir string
}

// NewFileStore returns a store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

// ValidateID rejects ids that are empty or would escape the store directory.
func ValidateID(id string) error {
	if !validID.MatchString(id) {
		return fmt.Errorf("invalid snapshot id %q", id)
	}
	return nil
}

// Get reads the snapshot with the given id.
func (s *FileStore) Get(ctx context.Context, id string) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	if err := ValidateID(id); err != nil {
		return Snapshot{}, err
	}
	for _, ext := range []string{".yaml", ".yml", ".json"} {
		path := filepath.Join(s.Dir, id+ext)
		raw, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return Snapshot{}, err
		}
		var snap Snapshot
		if ext == ".json" {
			err = json.Unmarshal(raw, &snap)
		} else {
			err = yaml.Unmarshal(raw, &snap)
		}
		if err != nil {
			return Snapshot{}, fmt.Errorf("%s: %w", path, err)
		}
		if snap.ID == "" {
			snap.ID = id
		}
		return snap, nil
	}
	return Snapshot{}, fmt.Errorf("%s: %w", id, ErrNotFound)
}

// Save writes snap to <Dir>/<id>.yaml, creating Dir when missing. The file
// is written to a temporary name and renamed into place.
func (s *FileStore) Save(ctx context.Context, snap Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateID(snap.ID); err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return err
	}
	out, err := yaml.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", snap.ID, err)
	}
	tmp, err := os.CreateTemp(s.Dir, "."+snap.ID+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(s.Dir, snap.ID+".yaml"))
}

// List returns the stored snapshot ids, sorted.
func (s *FileStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.Dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		ext := filepath.Ext(name)
		switch ext {
		case ".yaml", ".yml", ".json":
			id := strings.TrimSuffix(name, ext)
			if !slices.Contains(ids, id) {
				ids = append(ids, id)
			}
		}
	}
	slices.Sort(ids)
	return ids, nil
}
