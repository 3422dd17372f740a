package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/oakwood-commons/dashx/pkg/binding"
	"github.com/oakwood-commons/dashx/pkg/document"
	"github.com/oakwood-commons/dashx/pkg/mode"
	"github.com/oakwood-commons/dashx/pkg/panel"
	"github.com/oakwood-commons/dashx/pkg/search"
	"github.com/oakwood-commons/dashx/pkg/snapshot"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeLoader struct {
	mu      sync.Mutex
	catalog document.Catalog
	data    map[string]binding.Contents
	deps    map[string]binding.Dependencies
	errs    map[string]error
	gates   map[string]chan struct{}
	calls   map[string]int
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{
		data:  map[string]binding.Contents{},
		deps:  map[string]binding.Dependencies{},
		errs:  map[string]error{},
		gates: map[string]chan struct{}{},
		calls: map[string]int{},
	}
}

func (l *fakeLoader) Dashboards(context.Context) (document.Catalog, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.catalog, nil
}

func (l *fakeLoader) Load(ctx context.Context, fullName string) (Loaded, error) {
	l.mu.Lock()
	l.calls[fullName]++
	gate := l.gates[fullName]
	err := l.errs[fullName]
	data := l.data[fullName]
	deps := l.deps[fullName]
	l.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return Loaded{}, ctx.Err()
		}
	}
	if err != nil {
		return Loaded{}, err
	}
	doc, derr := document.New(
		document.Dashboard{Name: fullName, FullName: fullName},
		[]*panel.Node{
			{Name: "p1", Type: panel.TypeChart, SQL: "q1"},
			{Name: "box", Type: panel.TypeContainer, Children: []*panel.Node{
				{Name: "c1", Type: panel.TypeCard, SQL: "q2"},
			}},
		},
	)
	if derr != nil {
		return Loaded{}, derr
	}
	return Loaded{Document: doc, Data: binding.NewFrozen(data).Contents(), Dependencies: deps}, nil
}

func (l *fakeLoader) Calls(name string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[name]
}

type liveSub struct {
	ctx context.Context
	ch  chan binding.Update
}

// fakeLive hands out one subscription per Subscribe call and lets tests push
// to the latest one for a dashboard.
type fakeLive struct {
	mu   sync.Mutex
	subs map[string]*liveSub
}

func newFakeLive() *fakeLive { return &fakeLive{subs: map[string]*liveSub{}} }

func (f *fakeLive) Subscribe(ctx context.Context, fullName string) (<-chan binding.Update, error) {
	sub := &liveSub{ctx: ctx, ch: make(chan binding.Update)}
	f.mu.Lock()
	f.subs[fullName] = sub
	f.mu.Unlock()
	go func() {
		<-ctx.Done()
		f.mu.Lock()
		defer f.mu.Unlock()
		close(sub.ch)
		if f.subs[fullName] == sub {
			delete(f.subs, fullName)
		}
	}()
	return sub.ch, nil
}

func (f *fakeLive) Active(fullName string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.subs[fullName]
	return ok
}

func (f *fakeLive) Send(fullName string, u binding.Update) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.subs[fullName]
	if !ok {
		return false
	}
	select {
	case sub.ch <- u:
		return true
	case <-sub.ctx.Done():
		return false
	}
}

type fakeStore struct {
	snaps map[string]snapshot.Snapshot
}

func (f fakeStore) Get(_ context.Context, id string) (snapshot.Snapshot, error) {
	s, ok := f.snaps[id]
	if !ok {
		return snapshot.Snapshot{}, fmt.Errorf("%s: %w", id, snapshot.ErrNotFound)
	}
	return s, nil
}

func newSession(t *testing.T, opts ...Option) *Session {
	t.Helper()
	s := New(opts...)
	t.Cleanup(s.Close)
	return s
}

func selectAndWait(t *testing.T, s *Session, fullName string) State {
	t.Helper()
	s.Dispatch(SelectDashboard{FullName: fullName})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	st, err := s.Wait(ctx)
	require.NoError(t, err)
	return st
}

func rejected(s *Session, action, reason string) float64 {
	return testutil.ToFloat64(s.metrics.rejected.WithLabelValues(action, reason))
}

func TestRenderResolvesBoundData(t *testing.T) {
	l := newFakeLoader()
	l.data["d1"] = binding.Contents{"q1": []any{map[string]any{"x": 1, "y": 2}}}
	s := newSession(t, WithLoader(l))

	st := selectAndWait(t, s, "d1")
	assert.Equal(t, StatusComplete, st.Status)

	v, err := s.Render("p1", nil)
	require.NoError(t, err)
	assert.Equal(t, panel.TypeChart, v.Type)
	assert.Equal(t, panel.StatusReady, v.Status)
	assert.Equal(t, []any{map[string]any{"x": 1, "y": 2}}, v.Data)

	pending, err := s.Render("box.c1", nil)
	require.NoError(t, err)
	assert.Equal(t, panel.StatusPending, pending.Status)
	assert.Nil(t, pending.Data)

	_, err = s.Render("missing", nil)
	require.ErrorIs(t, err, document.ErrNotFound)

	views := s.RenderAll()
	paths := make([]string, 0, len(views))
	for _, v := range views {
		paths = append(paths, v.Path)
	}
	assert.Equal(t, []string{"", "p1", "box", "box.c1"}, paths)
}

func TestRenderWithoutDashboard(t *testing.T) {
	s := newSession(t)
	_, err := s.Render("p1", nil)
	require.ErrorIs(t, err, ErrNoDashboard)
	assert.Nil(t, s.RenderAll())
	assert.Equal(t, StatusReady, s.State().Status)
}

func TestSelectDashboardResetsSelection(t *testing.T) {
	l := newFakeLoader()
	s := newSession(t, WithLoader(l))

	selectAndWait(t, s, "a")
	s.Dispatch(SelectPanel{Path: "box.c1"})
	s.Dispatch(SetInput{Name: "region", Value: "us-east"})
	st := s.State()
	require.Equal(t, "box.c1", st.Selection.Panel)
	require.Equal(t, "region", st.Selection.LastChangedInput)

	st = selectAndWait(t, s, "b")
	assert.Equal(t, "b", st.Selection.Dashboard)
	assert.Empty(t, st.Selection.Panel)
	assert.Empty(t, st.Selection.Inputs)
	assert.Empty(t, st.Selection.LastChangedInput)
}

func TestSelectPanelUnknownPathIsNoop(t *testing.T) {
	s := newSession(t, WithLoader(newFakeLoader()))

	s.Dispatch(SelectPanel{Path: "p1"})
	assert.Equal(t, 1.0, rejected(s, "select_panel", "no_dashboard"))

	selectAndWait(t, s, "a")
	s.Dispatch(SelectPanel{Path: "p1"})
	s.Dispatch(SelectPanel{Path: "nope"})
	assert.Equal(t, "p1", s.State().Selection.Panel)
	assert.Equal(t, 1.0, rejected(s, "select_panel", "not_found"))

	s.Dispatch(ClosePanelDetail{})
	assert.Empty(t, s.State().Selection.Panel)
}

func TestSetInputInvalidatesDependents(t *testing.T) {
	l := newFakeLoader()
	l.data["d"] = binding.Contents{"q1": 1, "q2": 2}
	l.deps["d"] = binding.Dependencies{"region": {"q1"}, "unused": nil}
	s := newSession(t, WithLoader(l))
	assert.Empty(t, s.Inputs())
	selectAndWait(t, s, "d")
	assert.Equal(t, []string{"region"}, s.Inputs())

	s.Dispatch(SetInput{Name: "region", Value: "us-east"})
	s.Dispatch(SetInput{Name: "region", Value: "us-west"})

	st := s.State()
	assert.Equal(t, "region", st.Selection.LastChangedInput)
	assert.Equal(t, "us-west", st.Selection.Inputs["region"])

	v, err := s.Render("p1", nil)
	require.NoError(t, err)
	assert.Equal(t, panel.StatusPending, v.Status)

	v, err = s.Render("box.c1", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, v.Data)
}

func TestSetInputRejected(t *testing.T) {
	s := newSession(t, WithLoader(newFakeLoader()))

	s.Dispatch(SetInput{Name: "region", Value: "x"})
	assert.Equal(t, 1.0, rejected(s, "set_input", "no_dashboard"))

	selectAndWait(t, s, "d")
	s.Dispatch(SwitchToSnapshot{ID: "s1"})
	s.Dispatch(SetInput{Name: "region", Value: "x"})
	assert.Equal(t, 1.0, rejected(s, "set_input", "snapshot_mode"))
	assert.Empty(t, s.State().Selection.Inputs)
}

func TestLiveUpdatesApplied(t *testing.T) {
	l := newFakeLoader()
	feed := newFakeLive()
	s := newSession(t, WithLoader(l), WithLiveSource(feed))
	selectAndWait(t, s, "d")

	require.Eventually(t, func() bool { return feed.Active("d") }, 5*time.Second, 5*time.Millisecond)
	require.True(t, feed.Send("d", binding.Update{Key: "q2", Payload: 42}))

	require.Eventually(t, func() bool {
		v, err := s.Render("box.c1", nil)
		return err == nil && v.Data == 42
	}, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.appliedUpdates))
}

func TestSnapshotRoundTripRefetches(t *testing.T) {
	l := newFakeLoader()
	l.data["d"] = binding.Contents{"q1": "loaded"}
	feed := newFakeLive()
	s := newSession(t, WithLoader(l), WithLiveSource(feed))
	selectAndWait(t, s, "d")
	require.Eventually(t, func() bool { return feed.Active("d") }, 5*time.Second, 5*time.Millisecond)

	require.True(t, feed.Send("d", binding.Update{Key: "q1", Payload: "pushed"}))
	require.Eventually(t, func() bool {
		v, _ := s.Render("p1", nil)
		return v.Data == "pushed"
	}, 5*time.Second, 5*time.Millisecond)

	s.Dispatch(SwitchToSnapshot{ID: "s1"})
	st := s.State()
	assert.Equal(t, mode.Snapshot, st.Mode)
	assert.Equal(t, "s1", st.SnapshotID)
	require.Eventually(t, func() bool { return !feed.Active("d") }, 5*time.Second, 5*time.Millisecond)

	// A push that raced the transition carries the old generation.
	s.Dispatch(bindingUpdate{generation: st.Generation - 1, update: binding.Update{Key: "q1", Payload: "late"}})
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.discardedUpdates))

	v, err := s.Render("p1", nil)
	require.NoError(t, err)
	assert.Equal(t, "pushed", v.Data)

	s.Dispatch(SwitchToLive{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	st, err = s.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, mode.Live, st.Mode)
	assert.Empty(t, st.SnapshotID)
	assert.Equal(t, 2, l.Calls("d"))

	v, err = s.Render("p1", nil)
	require.NoError(t, err)
	assert.Equal(t, "loaded", v.Data)
	require.Eventually(t, func() bool { return feed.Active("d") }, 5*time.Second, 5*time.Millisecond)
}

func TestModeTransitionsRejected(t *testing.T) {
	s := newSession(t, WithLoader(newFakeLoader()))

	s.Dispatch(SwitchToSnapshot{ID: "s1"})
	assert.Equal(t, 1.0, rejected(s, "switch_to_snapshot", "no_dashboard"))
	s.Dispatch(SwitchToLive{})
	assert.Equal(t, 1.0, rejected(s, "switch_to_live", "invalid_transition"))

	selectAndWait(t, s, "d")
	s.Dispatch(SwitchToSnapshot{ID: ""})
	assert.Equal(t, 1.0, rejected(s, "switch_to_snapshot", "invalid_transition"))
	s.Dispatch(SwitchToSnapshot{ID: "a"})
	s.Dispatch(SwitchToSnapshot{ID: "b"})
	assert.Equal(t, 2.0, rejected(s, "switch_to_snapshot", "invalid_transition"))
	assert.Equal(t, "a", s.State().SnapshotID)
}

func TestStaleLoadDiscarded(t *testing.T) {
	l := newFakeLoader()
	gate := make(chan struct{})
	l.gates["slow"] = gate
	s := newSession(t, WithLoader(l))

	s.Dispatch(SelectDashboard{FullName: "slow"})
	require.Eventually(t, func() bool { return l.Calls("slow") == 1 }, 5*time.Second, 5*time.Millisecond)
	st := selectAndWait(t, s, "fast")
	assert.Equal(t, StatusComplete, st.Status)

	close(gate)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(s.metrics.loads.WithLabelValues(loadKindDashboard, outcomeStale)) == 1
	}, 5*time.Second, 5*time.Millisecond)

	assert.Equal(t, "fast", s.State().Selection.Dashboard)
	assert.Equal(t, "fast", s.Document().Dashboard.FullName)
}

func TestLoadFailureKeepsEngineUsable(t *testing.T) {
	l := newFakeLoader()
	boom := errors.New("backend down")
	l.errs["bad"] = boom
	l.catalog = document.Catalog{Dashboards: []document.Dashboard{{Name: "x", FullName: "m.dashboard.x", Title: "X", IsTopLevel: true}}}
	s := newSession(t, WithLoader(l))
	require.NoError(t, s.LoadCatalog(context.Background()))

	st := selectAndWait(t, s, "bad")
	assert.Equal(t, StatusError, st.Status)
	require.NotNil(t, st.LoadError)
	assert.Equal(t, "bad", st.LoadError.FullName)
	assert.ErrorIs(t, st.LoadError, boom)

	s.Dispatch(SetSearchValue{Value: "x"})
	groups, err := s.Dashboards()
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0].Dashboards, 1)
}

func TestNoLoader(t *testing.T) {
	s := newSession(t)
	s.Dispatch(SelectDashboard{FullName: "d"})
	st := s.State()
	assert.Equal(t, StatusError, st.Status)
	assert.ErrorIs(t, st.LoadError, ErrNoLoader)
	assert.ErrorIs(t, s.LoadCatalog(context.Background()), ErrNoLoader)
}

func TestSearchActions(t *testing.T) {
	l := newFakeLoader()
	l.catalog = document.Catalog{
		Mods: []document.Mod{{FullName: "mod.m", ShortName: "m", Title: "M"}},
		Dashboards: []document.Dashboard{
			{Name: "a", FullName: "m.dashboard.a", Title: "Alpha", ModFullName: "mod.m", IsTopLevel: true, Tags: map[string]string{"env": "prod"}},
			{Name: "b", FullName: "m.dashboard.b", Title: "Beta", ModFullName: "mod.m", IsTopLevel: true},
			{Name: "c", FullName: "m.dashboard.c", Title: "Child", ModFullName: "mod.m", Tags: map[string]string{"team": "x"}},
		},
	}
	s := newSession(t, WithLoader(l))
	require.NoError(t, s.LoadCatalog(context.Background()))
	assert.Equal(t, []string{"env", "team"}, s.TagKeys())

	s.Dispatch(SetGroupBy{Mode: search.ModeTag})
	assert.Equal(t, 1.0, rejected(s, "set_group_by", "invalid_group_by"))
	assert.Equal(t, search.ModeMod, s.State().Search.GroupBy.Mode)

	s.Dispatch(SetGroupBy{Mode: search.ModeTag, Tag: "env"})
	first, err := s.Dashboards()
	require.NoError(t, err)
	second, err := s.Dashboards()
	require.NoError(t, err)
	assert.Equal(t, first, second)

	require.Len(t, first, 2)
	assert.Equal(t, "prod", first[0].Key)
	assert.True(t, first[1].Ungrouped())
	assert.Equal(t, "Beta", first[1].Dashboards[0].Title)
}

func TestDisplayActions(t *testing.T) {
	s := newSession(t)

	s.Dispatch(SetTheme{Name: "no-such-theme"})
	assert.Equal(t, 1.0, rejected(s, "set_theme", "unknown_theme"))
	s.Dispatch(SetTheme{Name: "steampipe-dark"})
	s.Dispatch(SetViewportWidth{Width: 130})
	s.Dispatch(SetViewportWidth{Width: -1})

	st := s.State()
	assert.Equal(t, "steampipe-dark", st.Theme)
	assert.Equal(t, 130, st.Width)
	assert.Equal(t, "lg", st.Breakpoint)
	assert.True(t, s.Display().MinBreakpoint("md"))
	assert.Equal(t, 1.0, rejected(s, "set_viewport_width", "invalid_width"))
}

func TestSubscriberSeesActionsInOrder(t *testing.T) {
	s := newSession(t)
	var seen []string
	unsubscribe := s.Subscribe(func(st State) { seen = append(seen, st.Search.Value) })

	for _, v := range []string{"a", "ab", "abc"} {
		s.Dispatch(SetSearchValue{Value: v})
	}
	s.Dispatch(SetTheme{Name: "unknown"})
	unsubscribe()
	s.Dispatch(SetSearchValue{Value: "ignored"})

	assert.Equal(t, []string{"a", "ab", "abc"}, seen)
}

func TestLoadSnapshot(t *testing.T) {
	doc, err := document.New(
		document.Dashboard{Name: "d", FullName: "m.dashboard.d"},
		[]*panel.Node{{Name: "p1", Type: panel.TypeTable, SQL: "q1"}},
	)
	require.NoError(t, err)
	store := fakeStore{snaps: map[string]snapshot.Snapshot{
		"weekly": snapshot.Capture("weekly", doc, binding.Contents{"q1": []any{1}}, map[string]string{"region": "eu"}, time.Now()),
	}}
	reg := prometheus.NewRegistry()
	s := newSession(t, WithSnapshotStore(store), WithMetrics(NewMetrics(reg)))

	s.Dispatch(LoadSnapshot{ID: "weekly"})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	st, err := s.Wait(ctx)
	require.NoError(t, err)

	assert.Equal(t, StatusComplete, st.Status)
	assert.Equal(t, mode.Snapshot, st.Mode)
	assert.Equal(t, "weekly", st.SnapshotID)
	assert.Equal(t, "m.dashboard.d", st.Selection.Dashboard)
	assert.Equal(t, "eu", st.Selection.Inputs["region"])

	v, err := s.Render("p1", nil)
	require.NoError(t, err)
	assert.Equal(t, []any{1}, v.Data)

	s.Dispatch(LoadSnapshot{ID: "missing"})
	st, err = s.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, st.Status, "the frozen dashboard stays on screen")
	assert.Equal(t, "weekly", st.SnapshotID)
	assert.Empty(t, st.PendingSnapshot)
	assert.ErrorIs(t, st.LoadError, snapshot.ErrNotFound)

	s.Dispatch(LoadSnapshot{ID: "../x"})
	assert.Equal(t, 1.0, rejected(s, "load_snapshot", "invalid_snapshot_id"))

	count, err := testutil.GatherAndCount(reg, "dashx_session_loads_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestLoadSnapshotFromEmptySessionFails(t *testing.T) {
	s := newSession(t, WithSnapshotStore(fakeStore{}))

	s.Dispatch(LoadSnapshot{ID: "missing"})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	st, err := s.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusError, st.Status)
	assert.Equal(t, mode.Live, st.Mode)
	assert.ErrorIs(t, st.LoadError, snapshot.ErrNotFound)
}

func TestLoadSnapshotFailureKeepsLiveDashboard(t *testing.T) {
	l := newFakeLoader()
	l.data["d"] = binding.Contents{"q1": "loaded"}
	feed := newFakeLive()
	s := newSession(t, WithLoader(l), WithLiveSource(feed), WithSnapshotStore(fakeStore{}))
	before := selectAndWait(t, s, "d")
	require.Eventually(t, func() bool { return feed.Active("d") }, 5*time.Second, 5*time.Millisecond)

	s.Dispatch(LoadSnapshot{ID: "missing"})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	st, err := s.Wait(ctx)
	require.NoError(t, err)

	assert.Equal(t, StatusComplete, st.Status)
	assert.Equal(t, mode.Live, st.Mode)
	assert.Equal(t, "d", st.Selection.Dashboard)
	assert.Equal(t, before.Generation, st.Generation)
	assert.ErrorIs(t, st.LoadError, snapshot.ErrNotFound)
	assert.True(t, feed.Active("d"), "live subscription survives a failed snapshot fetch")

	require.True(t, feed.Send("d", binding.Update{Key: "q1", Payload: "pushed"}))
	require.Eventually(t, func() bool {
		v, _ := s.Render("p1", nil)
		return v.Data == "pushed"
	}, 5*time.Second, 5*time.Millisecond)

	s.Dispatch(SwitchToSnapshot{ID: "s1"})
	assert.Equal(t, mode.Snapshot, s.State().Mode)
	s.Dispatch(SwitchToLive{})
	assert.Equal(t, 0.0, rejected(s, "switch_to_live", "invalid_transition"))
	st, err = s.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, st.Status)
	assert.Equal(t, 2, l.Calls("d"))
}

func TestCapture(t *testing.T) {
	l := newFakeLoader()
	l.data["d"] = binding.Contents{"q1": 7}
	s := newSession(t, WithLoader(l))

	_, err := s.Capture("s1", time.Now())
	require.ErrorIs(t, err, ErrNoDashboard)

	selectAndWait(t, s, "d")
	s.Dispatch(SetInput{Name: "region", Value: "us"})
	snap, err := s.Capture("s1", time.Unix(10, 0))
	require.NoError(t, err)
	assert.Equal(t, "s1", snap.ID)
	assert.Equal(t, 7, snap.Data["q1"])
	assert.Equal(t, "us", snap.Inputs["region"])

	_, err = s.Capture("bad/id", time.Now())
	require.Error(t, err)
}

func TestCloseStopsDispatch(t *testing.T) {
	l := newFakeLoader()
	l.gates["d"] = make(chan struct{})
	s := New(WithLoader(l), WithLiveSource(newFakeLive()))

	s.Dispatch(SelectDashboard{FullName: "d"})
	s.Close()
	s.Dispatch(SetSearchValue{Value: "after"})
	assert.Empty(t, s.State().Search.Value)
	s.Close()
}
