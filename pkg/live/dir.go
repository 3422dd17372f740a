package live

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/fsnotify/fsnotify"
	"github.com/go-logr/logr"

	"github.com/oakwood-commons/dashx/pkg/binding"
	"github.com/oakwood-commons/dashx/pkg/loader"
	"github.com/oakwood-commons/dashx/pkg/logger"
)

var payloadExts = []string{".json", ".yaml", ".yml", ".toml", ".ndjson", ".jsonl"}

// DirSource watches <Dir>/<dashboard full name>/ and turns every payload
// file in it into an update whose key is the file name without extension.
// Changes are read once no event has arrived for the debounce period.
type DirSource struct {
	dir      string
	debounce time.Duration
	clock    clock.Clock
	log      logr.Logger
	initial  bool
}

// Option configures a DirSource.
type Option func(*DirSource)

// WithDebounce sets the quiet period. Non-positive values use DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(s *DirSource) { s.debounce = d }
}

// WithClock replaces the wall clock, for tests.
func WithClock(c clock.Clock) Option {
	return func(s *DirSource) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the logger used for decode and watch errors.
func WithLogger(lgr logr.Logger) Option {
	return func(s *DirSource) { s.log = lgr }
}

// WithInitialScan controls whether existing files are delivered when a
// subscription starts. It is on by default.
func WithInitialScan(enabled bool) Option {
	return func(s *DirSource) { s.initial = enabled }
}

// NewDirSource returns a source rooted at dir.
func NewDirSource(dir string, opts ...Option) *DirSource {
	s := &DirSource{
		dir:      dir,
		debounce: DefaultDebounce,
		clock:    clock.New(),
		log:      logr.Discard(),
		initial:  true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe starts watching the directory for fullName. The channel closes
// after ctx is done.
func (s *DirSource) Subscribe(ctx context.Context, fullName string) (<-chan binding.Update, error) {
	dir := filepath.Join(s.dir, fullName)
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	out := make(chan binding.Update)
	r := &run{
		src:     s,
		dir:     dir,
		watcher: w,
		out:     out,
		fire:    make(chan struct{}, 1),
		pending: make(map[string]string),
		log:     s.log.WithValues(logger.DashboardKey, fullName),
	}
	r.debounce = newDebouncer(s.clock, s.debounce)
	go r.loop(ctx)
	return out, nil
}

type run struct {
	src      *DirSource
	dir      string
	watcher  *fsnotify.Watcher
	out      chan binding.Update
	fire     chan struct{}
	debounce *debouncer
	pending  map[string]string
	log      logr.Logger
}

func (r *run) loop(ctx context.Context) {
	defer close(r.out)
	defer r.watcher.Close()
	defer r.debounce.Cancel()

	if r.src.initial {
		entries, err := os.ReadDir(r.dir)
		if err != nil {
			r.log.Error(err, "initial scan failed")
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			path := filepath.Join(r.dir, e.Name())
			if key, ok := queryKey(path); ok {
				r.pending[key] = path
			}
		}
		if !r.flush(ctx) {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Write) {
				continue
			}
			key, ok := queryKey(ev.Name)
			if !ok {
				continue
			}
			r.pending[key] = ev.Name
			r.debounce.Trigger(func() {
				select {
				case r.fire <- struct{}{}:
				default:
				}
			})
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.log.Error(err, "watch error")
		case <-r.fire:
			if !r.flush(ctx) {
				return
			}
		}
	}
}

// flush reads every pending file in key order and sends the payloads. It
// reports false once ctx is done.
func (r *run) flush(ctx context.Context) bool {
	keys := make([]string, 0, len(r.pending))
	for k := range r.pending {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, key := range keys {
		path := r.pending[key]
		delete(r.pending, key)
		payload, err := loader.LoadFile(path)
		if err != nil {
			r.log.V(1).Info("skipping unreadable payload", logger.QueryKey, key, logger.ReasonKey, err.Error())
			continue
		}
		select {
		case r.out <- binding.Update{Key: key, Payload: payload}:
		case <-ctx.Done():
			return false
		}
	}
	return true
}

// queryKey maps a payload file to its binding key. Hidden and temporary
// files are ignored.
func queryKey(path string) (string, bool) {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return "", false
	}
	ext := strings.ToLower(filepath.Ext(base))
	if !slices.Contains(payloadExts, ext) {
		return "", false
	}
	key := strings.TrimSuffix(base, filepath.Ext(base))
	return key, key != ""
}
