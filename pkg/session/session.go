// Package session owns the state of one dashboard viewing session. Every
// change goes through Dispatch, which applies actions one at a time in
// submission order and then notifies the subscriber.
package session

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/oakwood-commons/dashx/pkg/binding"
	"github.com/oakwood-commons/dashx/pkg/display"
	"github.com/oakwood-commons/dashx/pkg/document"
	"github.com/oakwood-commons/dashx/pkg/logger"
	"github.com/oakwood-commons/dashx/pkg/mode"
	"github.com/oakwood-commons/dashx/pkg/panel"
	"github.com/oakwood-commons/dashx/pkg/search"
	"github.com/oakwood-commons/dashx/pkg/selection"
	"github.com/oakwood-commons/dashx/pkg/snapshot"
)

var (
	ErrNoLoader        = errors.New("no loader configured")
	ErrNoSnapshotStore = errors.New("no snapshot store configured")
	ErrNoDashboard     = errors.New("no dashboard loaded")
)

// Status is the run status of the selected dashboard.
type Status string

const (
	// StatusReady means no dashboard is selected.
	StatusReady    Status = "ready"
	// StatusBlocked means the dashboard or snapshot is loading.
	StatusBlocked  Status = "blocked"
	StatusComplete Status = "complete"
	StatusError    Status = "error"
)

// State is a copy of the session state handed to readers and the
// subscriber.
type State struct {
	Selection  selection.State `json:"selection" yaml:"selection"`
	Search     search.State    `json:"search" yaml:"search"`
	Mode       mode.DataMode   `json:"data_mode" yaml:"data_mode"`
	SnapshotID string          `json:"snapshot_id,omitempty" yaml:"snapshot_id,omitempty"`
	Theme      string          `json:"theme" yaml:"theme"`
	Width      int             `json:"width" yaml:"width"`
	Breakpoint string          `json:"breakpoint" yaml:"breakpoint"`
	Status     Status          `json:"status" yaml:"status"`
	LoadError  *LoadError      `json:"-" yaml:"-"`
	Generation uint64          `json:"generation" yaml:"generation"`
	// PendingSnapshot is the id of a stored snapshot being fetched. The
	// current view stays in place until it arrives.
	PendingSnapshot string `json:"pending_snapshot,omitempty" yaml:"pending_snapshot,omitempty"`
}

// Option configures a Session.
type Option func(*Session)

func WithLoader(l Loader) Option { return func(s *Session) { s.loader = l } }

func WithLiveSource(src LiveSource) Option { return func(s *Session) { s.live = src } }

func WithSnapshotStore(store SnapshotStore) Option { return func(s *Session) { s.snapshots = store } }

func WithLogger(lgr logr.Logger) Option { return func(s *Session) { s.log = lgr } }

// WithMetrics sets the collectors. Without it the session uses unregistered
// ones.
func WithMetrics(m *Metrics) Option { return func(s *Session) { s.metrics = m } }

// WithDisplay sets the initial theme, width and breakpoints.
func WithDisplay(dctx display.Context) Option { return func(s *Session) { s.display = dctx } }

// WithThemes sets the catalog SetTheme chooses from.
func WithThemes(themes display.Themes) Option { return func(s *Session) { s.themes = themes } }

// WithGroupBy sets the initial grouping.
func WithGroupBy(gb search.GroupBy) Option { return func(s *Session) { s.search.GroupBy = gb } }

// WithSearchOptions sets options applied when listing dashboards.
func WithSearchOptions(opts search.Options) Option { return func(s *Session) { s.searchOpts = opts } }

// Session is the single owner of selection, search, mode, binding and
// display state.
type Session struct {
	loader    Loader
	live      LiveSource
	snapshots SnapshotStore
	log       logr.Logger
	metrics   *Metrics
	themes    display.Themes

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// dispatchMu serializes Dispatch, including subscriber notification.
	dispatchMu sync.Mutex
	closed     bool

	mu         sync.RWMutex
	catalog    document.Catalog
	doc        *document.Document
	deps       binding.Dependencies
	table      *binding.Table
	mode       mode.Controller
	selection  selection.State
	search     search.State
	searchOpts search.Options
	display    display.Context
	status     Status
	loadErr    *LoadError
	generation uint64
	liveCancel context.CancelFunc
	changed    chan struct{}

	// snapshotSeq numbers LoadSnapshot requests; only the latest is applied.
	snapshotSeq     uint64
	pendingSnapshot string

	subscriber   func(State)
	subscriberID uint64
}

// New returns an idle session with no dashboard selected.
func New(opts ...Option) *Session {
	s := &Session{
		log:     logr.Discard(),
		themes:  display.DefaultThemes,
		table:   binding.NewTable(nil),
		search:  search.DefaultState(),
		display: display.NewContext(display.DefaultThemes[display.DefaultThemeName], 0, display.DefaultBreakpoints),
		status:  StatusReady,
		changed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}
	s.ctx, s.cancel = context.WithCancel(logger.WithLogger(context.Background(), &s.log))
	return s
}

// Subscribe registers fn to receive the state after every applied action,
// replacing any previous subscriber. fn runs inside Dispatch and must not
// call Dispatch. The returned function unsubscribes.
func (s *Session) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscriberID++
	id := s.subscriberID
	s.subscriber = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.subscriberID == id {
			s.subscriber = nil
		}
	}
}

// Dispatch applies a synchronously. Rejected actions are logged and counted
// and leave state unchanged. Dispatch after Close does nothing.
func (s *Session) Dispatch(a Action) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()
	if s.closed {
		return
	}
	s.metrics.actions.WithLabelValues(a.actionName()).Inc()

	s.mu.Lock()
	changed := s.apply(a)
	var (
		st State
		fn func(State)
	)
	if changed {
		st = s.stateLocked()
		fn = s.subscriber
		close(s.changed)
		s.changed = make(chan struct{})
	}
	s.mu.Unlock()

	if fn != nil {
		fn(st)
	}
}

func (s *Session) apply(a Action) bool {
	switch a := a.(type) {
	case SelectDashboard:
		return s.selectDashboard(a)
	case SelectPanel:
		return s.selectPanel(a)
	case ClosePanelDetail:
		s.selection.ClosePanelDetail()
		return true
	case SetInput:
		return s.setInput(a)
	case SetSearchValue:
		s.search.Value = a.Value
		return true
	case SetGroupBy:
		gb, err := search.NewGroupBy(a.Mode, a.Tag)
		if err != nil {
			return s.reject(a, "invalid_group_by", err)
		}
		s.search.GroupBy = gb
		return true
	case SwitchToSnapshot:
		return s.switchToSnapshot(a)
	case SwitchToLive:
		return s.switchToLive(a)
	case SetTheme:
		theme, err := s.themes.Lookup(a.Name)
		if err != nil {
			return s.reject(a, "unknown_theme", err)
		}
		s.display = s.display.WithTheme(theme)
		return true
	case SetViewportWidth:
		if a.Width < 0 {
			return s.reject(a, "invalid_width", fmt.Errorf("width %d", a.Width))
		}
		s.display = s.display.WithWidth(a.Width)
		return true
	case LoadSnapshot:
		return s.loadSnapshot(a)
	case catalogLoaded:
		s.catalog = a.catalog
		return true
	case dashboardLoaded:
		return s.dashboardLoaded(a)
	case snapshotLoaded:
		return s.snapshotLoaded(a)
	case bindingUpdate:
		return s.bindingUpdate(a)
	default:
		return s.reject(a, "unknown_action", nil)
	}
}

func (s *Session) reject(a Action, reason string, err error) bool {
	s.metrics.rejected.WithLabelValues(a.actionName(), reason).Inc()
	kv := []any{logger.ActionKey, a.actionName(), logger.ReasonKey, reason}
	if err != nil {
		kv = append(kv, "error", err.Error())
	}
	s.log.V(1).Info("action rejected", kv...)
	return false
}

func (s *Session) selectDashboard(a SelectDashboard) bool {
	if a.FullName == "" {
		return s.reject(a, "empty_name", nil)
	}
	s.generation++
	s.stopLive()
	if s.mode.Mode() == mode.Snapshot {
		_ = s.mode.ExitSnapshot()
	}
	s.selection.SelectDashboard(a.FullName)
	s.doc = nil
	s.deps = nil
	s.table = binding.NewTable(nil)
	s.loadErr = nil
	s.startLoad(a.FullName)
	return true
}

func (s *Session) selectPanel(a SelectPanel) bool {
	if s.doc == nil {
		return s.reject(a, "no_dashboard", ErrNoDashboard)
	}
	if _, err := s.doc.Resolve(a.Path); err != nil {
		return s.reject(a, "not_found", err)
	}
	s.selection.SelectPanel(a.Path)
	return true
}

func (s *Session) setInput(a SetInput) bool {
	switch {
	case s.doc == nil:
		return s.reject(a, "no_dashboard", ErrNoDashboard)
	case !s.mode.Writable():
		return s.reject(a, "snapshot_mode", mode.ErrInvalidTransition)
	case a.Name == "":
		return s.reject(a, "empty_name", nil)
	}
	s.selection.SetInput(a.Name, a.Value)
	for _, key := range s.deps.KeysFor(a.Name) {
		s.table.Invalidate(key)
	}
	return true
}

func (s *Session) switchToSnapshot(a SwitchToSnapshot) bool {
	if s.doc == nil || s.status != StatusComplete {
		return s.reject(a, "no_dashboard", ErrNoDashboard)
	}
	if err := s.mode.EnterSnapshot(a.ID, s.table.Freeze()); err != nil {
		return s.reject(a, "invalid_transition", err)
	}
	s.generation++
	s.stopLive()
	return true
}

func (s *Session) switchToLive(a SwitchToLive) bool {
	if err := s.mode.ExitSnapshot(); err != nil {
		return s.reject(a, "invalid_transition", err)
	}
	s.generation++
	if s.selection.HasDashboard() {
		s.startLoad(s.selection.Dashboard)
	}
	return true
}

func (s *Session) loadSnapshot(a LoadSnapshot) bool {
	if s.snapshots == nil {
		return s.reject(a, "no_snapshot_store", ErrNoSnapshotStore)
	}
	if err := snapshot.ValidateID(a.ID); err != nil {
		return s.reject(a, "invalid_snapshot_id", err)
	}
	// Live delivery keeps running until the snapshot is in hand.
	s.snapshotSeq++
	s.pendingSnapshot = a.ID
	gen, seq, id, store := s.generation, s.snapshotSeq, a.ID, s.snapshots
	s.background(func(ctx context.Context) {
		snap, err := store.Get(ctx, id)
		s.Dispatch(snapshotLoaded{generation: gen, seq: seq, id: id, snap: snap, err: err})
	})
	return true
}

// startLoad fetches fullName in the background under the current generation.
func (s *Session) startLoad(fullName string) {
	if s.loader == nil {
		s.fail(loadKindDashboard, fullName, ErrNoLoader)
		return
	}
	s.status = StatusBlocked
	gen, ld := s.generation, s.loader
	s.background(func(ctx context.Context) {
		loaded, err := ld.Load(ctx, fullName)
		s.Dispatch(dashboardLoaded{generation: gen, fullName: fullName, loaded: loaded, err: err})
	})
}

func (s *Session) background(fn func(context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn(s.ctx)
	}()
}

func (s *Session) fail(kind, name string, err error) {
	s.status = StatusError
	s.loadErr = &LoadError{FullName: name, Err: err}
	s.metrics.loads.WithLabelValues(kind, outcomeError).Inc()
	s.log.Error(err, "load failed", logger.DashboardKey, name)
}

func (s *Session) stale(kind string, gen uint64) bool {
	if gen == s.generation {
		return false
	}
	s.metrics.loads.WithLabelValues(kind, outcomeStale).Inc()
	s.log.V(2).Info("discarding stale load", logger.GenerationKey, gen, "current", s.generation)
	return true
}

func (s *Session) dashboardLoaded(a dashboardLoaded) bool {
	if s.stale(loadKindDashboard, a.generation) {
		return false
	}
	if a.err == nil && a.loaded.Document == nil {
		a.err = fmt.Errorf("loader returned no document: %w", document.ErrNotFound)
	}
	if a.err != nil {
		s.fail(loadKindDashboard, a.fullName, a.err)
		return true
	}
	s.doc = a.loaded.Document
	s.deps = a.loaded.Dependencies
	s.table.Replace(a.loaded.Data)
	s.status = StatusComplete
	s.loadErr = nil
	s.metrics.loads.WithLabelValues(loadKindDashboard, outcomeSuccess).Inc()
	s.startLive()
	return true
}

func (s *Session) snapshotLoaded(a snapshotLoaded) bool {
	if a.seq != s.snapshotSeq {
		s.metrics.loads.WithLabelValues(loadKindSnapshot, outcomeStale).Inc()
		return false
	}
	s.pendingSnapshot = ""
	if s.stale(loadKindSnapshot, a.generation) {
		return true
	}
	if a.err != nil {
		s.snapshotFailed(a.id, a.err)
		return true
	}
	doc, err := a.snap.Document()
	if err != nil {
		s.snapshotFailed(a.id, err)
		return true
	}
	if s.mode.Mode() == mode.Snapshot {
		_ = s.mode.ExitSnapshot()
	}
	if err := s.mode.EnterSnapshot(a.id, a.snap.Frozen()); err != nil {
		s.fail(loadKindSnapshot, a.id, err)
		return true
	}
	s.generation++
	s.stopLive()
	s.selection.SelectDashboard(doc.Dashboard.FullName)
	s.selection.Inputs = maps.Clone(a.snap.Inputs)
	s.doc = doc
	s.deps = nil
	s.table = binding.NewTable(nil)
	s.status = StatusComplete
	s.loadErr = nil
	s.metrics.loads.WithLabelValues(loadKindSnapshot, outcomeSuccess).Inc()
	return true
}

// snapshotFailed records err against id. A dashboard already on screen,
// live or frozen, stays as it was; only an empty session turns to error.
func (s *Session) snapshotFailed(id string, err error) {
	status := s.status
	s.fail(loadKindSnapshot, id, err)
	if status == StatusComplete || status == StatusBlocked {
		s.status = status
	}
}

func (s *Session) bindingUpdate(a bindingUpdate) bool {
	if a.generation != s.generation || !s.mode.Writable() {
		s.metrics.discardedUpdates.Inc()
		s.log.V(2).Info("discarding live update", logger.QueryKey, a.update.Key, logger.GenerationKey, a.generation)
		return false
	}
	s.table.Set(a.update.Key, a.update.Payload)
	s.metrics.appliedUpdates.Inc()
	return true
}

// startLive subscribes to the live source for the loaded dashboard.
func (s *Session) startLive() {
	if s.live == nil || s.doc == nil || !s.mode.Writable() {
		return
	}
	ctx, cancel := context.WithCancel(s.ctx)
	s.liveCancel = cancel
	gen, fullName, src := s.generation, s.selection.Dashboard, s.live
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ch, err := src.Subscribe(ctx, fullName)
		if err != nil {
			if ctx.Err() == nil {
				s.log.Error(err, "live subscription failed", logger.DashboardKey, fullName)
			}
			return
		}
		for u := range ch {
			s.Dispatch(bindingUpdate{generation: gen, update: u})
		}
	}()
}

func (s *Session) stopLive() {
	if s.liveCancel != nil {
		s.liveCancel()
		s.liveCancel = nil
	}
}

// LoadCatalog fetches the dashboard list and dispatches it.
func (s *Session) LoadCatalog(ctx context.Context) error {
	if s.loader == nil {
		return ErrNoLoader
	}
	cat, err := s.loader.Dashboards(ctx)
	if err != nil {
		s.metrics.loads.WithLabelValues(loadKindCatalog, outcomeError).Inc()
		return fmt.Errorf("load catalog: %w", err)
	}
	s.metrics.loads.WithLabelValues(loadKindCatalog, outcomeSuccess).Inc()
	s.Dispatch(catalogLoaded{catalog: cat})
	return nil
}

// Close stops live delivery and background loads and waits for them.
func (s *Session) Close() {
	s.dispatchMu.Lock()
	s.closed = true
	s.cancel()
	s.mu.Lock()
	s.stopLive()
	s.mu.Unlock()
	s.dispatchMu.Unlock()
	s.wg.Wait()
}

func (s *Session) stateLocked() State {
	return State{
		Selection:  s.selection.Clone(),
		Search:     s.search,
		Mode:       s.mode.Mode(),
		SnapshotID: s.mode.SnapshotID(),
		Theme:      s.display.Theme().Name,
		Width:      s.display.Width(),
		Breakpoint: s.display.CurrentBreakpoint(),
		Status:     s.status,
		LoadError:  s.loadErr,
		Generation: s.generation,

		PendingSnapshot: s.pendingSnapshot,
	}
}

// State returns a copy of the current state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stateLocked()
}

// Wait blocks until the selected dashboard is not loading and no stored
// snapshot is being fetched, or ctx is done.
func (s *Session) Wait(ctx context.Context) (State, error) {
	for {
		s.mu.RLock()
		st, ch := s.stateLocked(), s.changed
		s.mu.RUnlock()
		if st.Status != StatusBlocked && st.PendingSnapshot == "" {
			return st, nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return st, ctx.Err()
		}
	}
}

// Display returns the current display context.
func (s *Session) Display() display.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.display
}

// Themes returns the theme catalog.
func (s *Session) Themes() display.Themes { return s.themes }

// Document returns the loaded document, or nil. It must not be modified.
func (s *Session) Document() *document.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc
}

// Catalog returns the loaded catalog.
func (s *Session) Catalog() document.Catalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.catalog
}

// Render resolves the node at path against the active data and display
// context.
func (s *Session) Render(path string, overrides map[string]any) (panel.View, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.doc == nil {
		return panel.View{}, ErrNoDashboard
	}
	n, err := s.doc.Resolve(path)
	if err != nil {
		return panel.View{}, err
	}
	v := panel.Render(n, s.mode.Reader(s.table), s.display, overrides)
	v.Path = path
	return v, nil
}

// RenderAll renders every node of the loaded document in pre-order, root
// first.
func (s *Session) RenderAll() []panel.View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.doc == nil {
		return nil
	}
	reader := s.mode.Reader(s.table)
	var views []panel.View
	for path, n := range s.doc.Walk() {
		v := panel.Render(n, reader, s.display, nil)
		v.Path = path
		views = append(views, v)
	}
	return views
}

// Dashboards filters and groups the top level dashboards of the catalog
// using the current search state.
func (s *Session) Dashboards() ([]search.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return search.GroupDashboards(s.catalog.TopLevel(), s.catalog.Mods, s.search, s.searchOpts)
}

// TagKeys returns the sorted union of tag keys across the catalog.
func (s *Session) TagKeys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return search.TagKeys(s.catalog.Dashboards)
}

// Inputs returns the inputs of the loaded dashboard that feed at least one
// query, sorted.
func (s *Session) Inputs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deps.Inputs()
}

// Capture snapshots the loaded dashboard with the data currently visible.
func (s *Session) Capture(id string, at time.Time) (snapshot.Snapshot, error) {
	if err := snapshot.ValidateID(id); err != nil {
		return snapshot.Snapshot{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.doc == nil || s.status != StatusComplete {
		return snapshot.Snapshot{}, ErrNoDashboard
	}
	data, ok := s.mode.Frozen()
	if !ok {
		data = s.table.Freeze()
	}
	return snapshot.Capture(id, s.doc, data.Contents(), s.selection.Inputs, at), nil
}
