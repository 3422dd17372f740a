package cmd

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/oakwood-commons/dashx/internal/formatter"
	"github.com/oakwood-commons/dashx/internal/ui"
	"github.com/oakwood-commons/dashx/pkg/display"
	"github.com/oakwood-commons/dashx/pkg/document"
	"github.com/oakwood-commons/dashx/pkg/loader"
	"github.com/oakwood-commons/dashx/pkg/search"
	"github.com/oakwood-commons/dashx/pkg/session"
	"github.com/oakwood-commons/dashx/pkg/settings"
	"github.com/oakwood-commons/dashx/pkg/snapshot"
)

// loadTimeout bounds how long a non-interactive command waits for a
// dashboard or snapshot.
const loadTimeout = 30 * time.Second

type themeSelectionError struct {
	Selected     string
	Available    []string
	DefaultTheme string
}

func (e themeSelectionError) Error() string {
	return fmt.Sprintf("unknown theme %q\navailable themes: %v\ndefault theme: %s", e.Selected, e.Available, e.DefaultTheme)
}

// newSession wires a session to the mod directory, the snapshot store and
// the configured display settings.
func (o *rootOptions) newSession(ctx context.Context, extra ...session.Option) (*session.Session, error) {
	run := settings.Current(ctx)
	themes := o.cfg.DisplayThemes()
	theme, err := themes.Lookup(run.Theme)
	if err != nil {
		return nil, themeSelectionError{Selected: run.Theme, Available: themes.Names(), DefaultTheme: o.cfg.Theme.Default}
	}
	if !run.NoColor {
		ui.ApplyTableTheme(theme)
	}
	breakpoints, err := o.cfg.DisplayBreakpoints()
	if err != nil {
		return nil, err
	}
	groupBy, err := o.cfg.GroupBy()
	if err != nil {
		return nil, fmt.Errorf("config search.group_by: %w", err)
	}

	opts := []session.Option{
		session.WithLoader(loader.NewFileLoader(run.ModDir)),
		session.WithSnapshotStore(o.snapshotStore()),
		session.WithLogger(o.log),
		session.WithMetrics(session.NewMetrics(o.registry)),
		session.WithDisplay(display.NewContext(theme, o.viewportWidth(), breakpoints)),
		session.WithThemes(themes),
		session.WithGroupBy(groupBy),
	}
	sess := session.New(append(opts, extra...)...)
	if err := sess.LoadCatalog(ctx); err != nil {
		sess.Close()
		return nil, err
	}
	return sess, nil
}

func (o *rootOptions) snapshotStore() *snapshot.FileStore {
	return snapshot.NewFileStore(o.snapshotDirPath())
}

// viewportWidth is --width when given, else the terminal width.
func (o *rootOptions) viewportWidth() int {
	if o.run.Width > 0 {
		return o.run.Width
	}
	return formatter.TerminalWidth(120)
}

// resolveDashboard accepts a full name, or a short name that is unique in
// the catalog.
func resolveDashboard(cat document.Catalog, name string) (string, error) {
	if _, ok := cat.Lookup(name); ok {
		return name, nil
	}
	var matches []string
	for _, d := range cat.Dashboards {
		if d.Name == name || d.ShortName == name {
			matches = append(matches, d.FullName)
		}
	}
	sort.Strings(matches)
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("dashboard %q: %w", name, document.ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("dashboard %q is ambiguous: %s", name, strings.Join(matches, ", "))
	}
}

// openDashboard selects a dashboard, waits for it and applies inputs.
func openDashboard(ctx context.Context, sess *session.Session, name string, inputs map[string]string) (session.State, error) {
	fullName, err := resolveDashboard(sess.Catalog(), name)
	if err != nil {
		return session.State{}, err
	}
	sess.Dispatch(session.SelectDashboard{FullName: fullName})
	st, err := waitLoaded(ctx, sess)
	if err != nil {
		return st, err
	}
	for _, k := range sortedKeys(inputs) {
		sess.Dispatch(session.SetInput{Name: k, Value: inputs[k]})
	}
	return sess.State(), nil
}

// openSnapshot loads a stored snapshot into the session.
func openSnapshot(ctx context.Context, sess *session.Session, id string) (session.State, error) {
	if err := snapshot.ValidateID(id); err != nil {
		return session.State{}, err
	}
	sess.Dispatch(session.LoadSnapshot{ID: id})
	return waitLoaded(ctx, sess)
}

func waitLoaded(ctx context.Context, sess *session.Session) (session.State, error) {
	ctx, cancel := context.WithTimeout(ctx, loadTimeout)
	defer cancel()
	st, err := sess.Wait(ctx)
	if err != nil {
		return st, fmt.Errorf("waiting for dashboard: %w", err)
	}
	if st.Status == session.StatusError && st.LoadError != nil {
		return st, st.LoadError
	}
	if st.Status != session.StatusComplete {
		return st, errors.New("no dashboard loaded")
	}
	return st, nil
}

// parseInputs turns repeated name=value flags into a map.
func parseInputs(raw []string) (map[string]string, error) {
	out := make(map[string]string, len(raw))
	for _, kv := range raw {
		name, value, ok := strings.Cut(kv, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --input %q: want name=value", kv)
		}
		out[name] = value
	}
	return out, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// validateGroupBy checks a --group-by/--tag pair before it reaches the
// session, which would silently ignore an invalid one.
func validateGroupBy(mode, tag string) (search.GroupBy, error) {
	return search.NewGroupBy(search.Mode(strings.ToLower(strings.TrimSpace(mode))), tag)
}
