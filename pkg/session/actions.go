package session

import (
	"github.com/oakwood-commons/dashx/pkg/binding"
	"github.com/oakwood-commons/dashx/pkg/document"
	"github.com/oakwood-commons/dashx/pkg/search"
	"github.com/oakwood-commons/dashx/pkg/snapshot"
)

// Action is a state change request accepted by Dispatch. The set is closed.
type Action interface {
	actionName() string
}

// SelectDashboard switches to a dashboard, resets selection and starts
// loading it.
type SelectDashboard struct{ FullName string }

// SelectPanel selects a node of the current dashboard by path.
type SelectPanel struct{ Path string }

// ClosePanelDetail clears the selected panel.
type ClosePanelDetail struct{}

// SetInput changes one dashboard input and invalidates the bindings that
// depend on it.
type SetInput struct{ Name, Value string }

// SetSearchValue sets the dashboard search text.
type SetSearchValue struct{ Value string }

// SetGroupBy changes dashboard grouping. Tag is required when Mode is tag.
type SetGroupBy struct {
	Mode search.Mode
	Tag  string
}

// SwitchToSnapshot freezes the current data under ID.
type SwitchToSnapshot struct{ ID string }

// SwitchToLive drops the frozen data and refetches the dashboard.
type SwitchToLive struct{}

// SetTheme activates a configured theme by name.
type SetTheme struct{ Name string }

// SetViewportWidth records a new viewport width and recomputes the
// breakpoint.
type SetViewportWidth struct{ Width int }

// LoadSnapshot reads a stored snapshot and shows it in snapshot mode.
type LoadSnapshot struct{ ID string }

func (SelectDashboard) actionName() string  { return "select_dashboard" }
func (SelectPanel) actionName() string      { return "select_panel" }
func (ClosePanelDetail) actionName() string { return "close_panel_detail" }
func (SetInput) actionName() string         { return "set_input" }
func (SetSearchValue) actionName() string   { return "set_search_value" }
func (SetGroupBy) actionName() string       { return "set_group_by" }
func (SwitchToSnapshot) actionName() string { return "switch_to_snapshot" }
func (SwitchToLive) actionName() string     { return "switch_to_live" }
func (SetTheme) actionName() string         { return "set_theme" }
func (SetViewportWidth) actionName() string { return "set_viewport_width" }
func (LoadSnapshot) actionName() string     { return "load_snapshot" }

// Completions of background work. Each carries the generation current when
// the work started.

type catalogLoaded struct {
	catalog document.Catalog
}

type dashboardLoaded struct {
	generation uint64
	fullName   string
	loaded     Loaded
	err        error
}

type snapshotLoaded struct {
	generation uint64
	seq        uint64
	id         string
	snap       snapshot.Snapshot
	err        error
}

type bindingUpdate struct {
	generation uint64
	update     binding.Update
}

func (catalogLoaded) actionName() string   { return "catalog_loaded" }
func (dashboardLoaded) actionName() string { return "dashboard_loaded" }
func (snapshotLoaded) actionName() string  { return "snapshot_loaded" }
func (bindingUpdate) actionName() string   { return "binding_update" }
