package ui

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/table"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/x/ansi"
	"github.com/go-logr/logr"

	"github.com/oakwood-commons/dashx/internal/formatter"
	"github.com/oakwood-commons/dashx/pkg/display"
	"github.com/oakwood-commons/dashx/pkg/mode"
	"github.com/oakwood-commons/dashx/pkg/panel"
	"github.com/oakwood-commons/dashx/pkg/search"
	"github.com/oakwood-commons/dashx/pkg/session"
	"github.com/oakwood-commons/dashx/pkg/snapshot"
)

type screen int

const (
	screenList screen = iota
	screenDashboard
	screenDetail
)

// DefaultSearchDebounce is used when Options.SearchDebounce is zero.
const DefaultSearchDebounce = 150 * time.Millisecond

// Options configure the browser.
type Options struct {
	NoColor        bool
	SearchDebounce time.Duration
	// Snapshots receives captures taken with the snapshot key. Without it
	// the key only freezes the view.
	Snapshots *snapshot.FileStore
	Now       func() time.Time
	Logger    logr.Logger
}

type (
	// stateChangedMsg tells the model the session applied an action.
	stateChangedMsg struct{}

	searchDebounceMsg struct {
		seq   int
		value string
	}

	snapshotSavedMsg struct {
		id  string
		err error
	}
)

// Model is the bubbletea model for browsing a session.
type Model struct {
	sess *session.Session
	opts Options

	styles Styles
	screen screen
	state  session.State

	list      table.Model
	listNames []string
	listErr   error

	panels []panel.View
	cursor int
	detail panel.View

	search    textinput.Model
	searching bool
	searchSeq int

	input     textinput.Model
	inputting bool
	// reloadInputs are set again once reloadFor is complete.
	reloadInputs map[string]string
	reloadFor    string

	spinner spinner.Model

	width, height int
	help          bool
	notice        string

	changes     chan struct{}
	done        chan struct{}
	unsubscribe func()
}

// NewModel builds a browser over sess and subscribes to its changes. Call
// Close when the program exits.
func NewModel(sess *session.Session, opts Options) *Model {
	if opts.SearchDebounce <= 0 {
		opts.SearchDebounce = DefaultSearchDebounce
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger.GetSink() == nil {
		opts.Logger = logr.Discard()
	}

	si := textinput.New()
	si.Prompt = "/ "
	si.Placeholder = "filter by title or tag"
	si.CharLimit = 200

	ii := textinput.New()
	ii.Prompt = "input> "
	ii.Placeholder = "name=value"
	ii.CharLimit = 500

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	list := table.New(
		table.WithColumns(listColumns(80)),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	m := &Model{
		sess:    sess,
		opts:    opts,
		list:    list,
		search:  si,
		input:   ii,
		spinner: sp,
		changes: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	m.unsubscribe = sess.Subscribe(func(session.State) {
		select {
		case m.changes <- struct{}{}:
		default:
		}
	})
	m.refresh()
	if m.state.Selection.Dashboard != "" || m.state.Status == session.StatusBlocked {
		m.screen = screenDashboard
	}
	return m
}

// Close detaches the model from the session.
func (m *Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
		close(m.done)
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.waitForChange(), m.spinner.Tick)
}

// waitForChange blocks until the session signals a change.
func (m *Model) waitForChange() tea.Cmd {
	changes, done := m.changes, m.done
	return func() tea.Msg {
		select {
		case <-changes:
			return stateChangedMsg{}
		case <-done:
			return nil
		}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.sess.Dispatch(session.SetViewportWidth{Width: msg.Width})
		m.layout()
		return m, nil

	case stateChangedMsg:
		m.refresh()
		return m, m.waitForChange()

	case searchDebounceMsg:
		if msg.seq == m.searchSeq {
			m.sess.Dispatch(session.SetSearchValue{Value: msg.value})
		}
		return m, nil

	case snapshotSavedMsg:
		if msg.err != nil {
			m.notice = m.styles.Error.Render("snapshot failed: " + msg.err.Error())
		} else {
			m.notice = m.styles.Success.Render("saved snapshot " + msg.id)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyPressMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	if actionFor(msg) == ActionForceQuit {
		return m, tea.Quit
	}
	if m.searching {
		return m.handleSearchKey(msg)
	}
	if m.inputting {
		return m.handleInputKey(msg)
	}
	if m.help {
		m.help = false
		return m, nil
	}
	m.notice = ""

	switch actionFor(msg) {
	case ActionQuit:
		return m, tea.Quit
	case ActionHelp:
		m.help = true
	case ActionUp:
		m.move(-1)
	case ActionDown:
		m.move(1)
	case ActionTop:
		m.move(-len(m.panels) - len(m.listNames))
	case ActionBottom:
		m.move(len(m.panels) + len(m.listNames))
	case ActionOpen:
		m.open()
	case ActionBack:
		m.back()
	case ActionSearch:
		if m.screen == screenList {
			m.searching = true
			m.search.SetValue(m.state.Search.Value)
			m.search.CursorEnd()
			return m, m.search.Focus()
		}
	case ActionGroupBy:
		m.cycleGroupBy()
	case ActionTheme:
		m.cycleTheme()
	case ActionInput:
		if m.screen != screenList && m.state.Mode == mode.Live {
			m.inputting = true
			m.input.SetValue("")
			m.input.Placeholder = inputPlaceholder(m.sess.Inputs())
			return m, m.input.Focus()
		}
	case ActionSnapshot:
		return m, m.takeSnapshot()
	case ActionLive:
		if m.state.Mode == mode.Snapshot {
			m.sess.Dispatch(session.SwitchToLive{})
		}
	case ActionReload:
		if m.state.Selection.Dashboard != "" && m.state.Mode == mode.Live {
			inputs := maps.Clone(m.state.Selection.Inputs)
			m.sess.Dispatch(session.SelectDashboard{FullName: m.state.Selection.Dashboard})
			m.reloadInputs, m.reloadFor = inputs, m.state.Selection.Dashboard
			m.screen = screenDashboard
		}
	}
	return m, nil
}

func (m *Model) handleSearchKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		m.searching = false
		m.search.Blur()
		m.searchSeq++
		m.sess.Dispatch(session.SetSearchValue{Value: m.search.Value()})
		return m, nil
	}
	before := m.search.Value()
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	value := m.search.Value()
	if value == before {
		return m, cmd
	}
	m.searchSeq++
	seq := m.searchSeq
	debounce := tea.Tick(m.opts.SearchDebounce, func(time.Time) tea.Msg {
		return searchDebounceMsg{seq: seq, value: value}
	})
	return m, tea.Batch(cmd, debounce)
}

func (m *Model) handleInputKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.inputting = false
		m.input.Blur()
		return m, nil
	case "enter":
		m.inputting = false
		m.input.Blur()
		name, value, ok := strings.Cut(m.input.Value(), "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			m.notice = m.styles.Error.Render("input must look like name=value")
			return m, nil
		}
		m.sess.Dispatch(session.SetInput{Name: name, Value: strings.TrimSpace(value)})
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) move(delta int) {
	switch m.screen {
	case screenList:
		if delta < 0 {
			m.list.MoveUp(-delta)
		} else {
			m.list.MoveDown(delta)
		}
	case screenDashboard:
		m.cursor = max(0, min(len(m.panels)-1, m.cursor+delta))
	case screenDetail:
	}
}

func (m *Model) open() {
	switch m.screen {
	case screenList:
		i := m.list.Cursor()
		if i < 0 || i >= len(m.listNames) {
			return
		}
		m.sess.Dispatch(session.SelectDashboard{FullName: m.listNames[i]})
		m.cursor = 0
		m.screen = screenDashboard
	case screenDashboard:
		if m.cursor < len(m.panels) {
			m.sess.Dispatch(session.SelectPanel{Path: m.panels[m.cursor].Path})
		}
	case screenDetail:
	}
}

func (m *Model) back() {
	switch m.screen {
	case screenDetail:
		m.sess.Dispatch(session.ClosePanelDetail{})
		m.screen = screenDashboard
	case screenDashboard:
		m.screen = screenList
	case screenList:
		if m.state.Search.Value != "" {
			m.sess.Dispatch(session.SetSearchValue{Value: ""})
		}
	}
}

// cycleGroupBy steps through mod grouping and then each known tag.
func (m *Model) cycleGroupBy() {
	if m.screen != screenList {
		return
	}
	tags := m.sess.TagKeys()
	gb := m.state.Search.GroupBy
	next := session.SetGroupBy{Mode: search.ModeMod}
	switch gb.Mode {
	case search.ModeMod:
		if len(tags) > 0 {
			next = session.SetGroupBy{Mode: search.ModeTag, Tag: tags[0]}
		}
	case search.ModeTag:
		if i := slices.Index(tags, gb.Tag); i >= 0 && i+1 < len(tags) {
			next = session.SetGroupBy{Mode: search.ModeTag, Tag: tags[i+1]}
		}
	}
	m.sess.Dispatch(next)
}

func (m *Model) cycleTheme() {
	names := m.sess.Themes().Names()
	if len(names) == 0 {
		return
	}
	i := slices.Index(names, m.state.Theme)
	m.sess.Dispatch(session.SetTheme{Name: names[(i+1)%len(names)]})
}

// takeSnapshot freezes the current dashboard and, with a store configured,
// writes the capture in the background.
func (m *Model) takeSnapshot() tea.Cmd {
	if m.screen == screenList || m.state.Mode == mode.Snapshot || m.state.Status != session.StatusComplete {
		return nil
	}
	now := m.opts.Now()
	id := "snap-" + now.UTC().Format("20060102-150405")
	m.sess.Dispatch(session.SwitchToSnapshot{ID: id})
	if st := m.sess.State(); st.Mode != mode.Snapshot || st.SnapshotID != id {
		m.notice = m.styles.Error.Render("snapshot failed: dashboard is not ready")
		return nil
	}
	// Capture reads the frozen copy, so the stored file matches the view.
	snap, err := m.sess.Capture(id, now)
	if err != nil {
		m.notice = m.styles.Error.Render("snapshot failed: " + err.Error())
		return nil
	}
	store := m.opts.Snapshots
	if store == nil {
		m.notice = m.styles.Success.Render("frozen as " + id)
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return snapshotSavedMsg{id: id, err: store.Save(ctx, snap)}
	}
}

// refresh pulls state and derived views from the session.
func (m *Model) refresh() {
	m.state = m.sess.State()
	if m.reloadInputs != nil && m.state.Status != session.StatusBlocked {
		m.restoreInputs()
	}
	th, err := m.sess.Themes().Lookup(m.state.Theme)
	if err != nil {
		th = m.sess.Display().Theme()
	}
	m.styles = NewStyles(th, m.opts.NoColor)
	if !m.opts.NoColor {
		ApplyTableTheme(th)
	}
	m.applyListStyles(th)

	m.refreshList()

	m.panels = m.sess.RenderAll()
	if m.cursor >= len(m.panels) {
		m.cursor = max(0, len(m.panels)-1)
	}
	if p := m.state.Selection.Panel; p != "" {
		if v, err := m.sess.Render(p, nil); err == nil {
			m.detail = v
			m.screen = screenDetail
		}
	} else if m.screen == screenDetail {
		m.screen = screenDashboard
	}
}

func (m *Model) refreshList() {
	groups, err := m.sess.Dashboards()
	m.listErr = err
	if err != nil {
		m.opts.Logger.V(1).Info("listing dashboards failed", "error", err.Error())
		return
	}
	var (
		rows  []table.Row
		names []string
	)
	for _, g := range groups {
		for _, d := range g.Dashboards {
			rows = append(rows, table.Row{g.Label, d.DisplayTitle(), formatTags(d.Tags)})
			names = append(names, d.FullName)
		}
	}
	m.list.SetRows(rows)
	m.listNames = names
	if m.list.Cursor() >= len(rows) {
		m.list.SetCursor(max(0, len(rows)-1))
	}
}

func (m *Model) applyListStyles(th display.Theme) {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderTop(false).
		BorderLeft(false).
		BorderRight(false).
		Bold(true).
		PaddingLeft(0)
	s.Cell = lipgloss.NewStyle().PaddingRight(1)
	if m.opts.NoColor {
		s.Selected = lipgloss.NewStyle().Reverse(true)
	} else {
		s.Header = s.Header.BorderForeground(lipgloss.Color(th.Palette.Border)).
			Foreground(lipgloss.Color(th.Palette.Primary))
		s.Selected = s.Selected.Foreground(lipgloss.Color(th.Palette.Highlight))
	}
	m.list.SetStyles(s)
}

func (m *Model) layout() {
	w := m.width
	if w <= 0 {
		w = 80
	}
	m.list.SetColumns(listColumns(w))
	m.list.SetWidth(w)
	m.list.SetHeight(max(3, m.height-4))
	m.search.SetWidth(max(10, w-4))
	m.input.SetWidth(max(10, w-10))
}

func listColumns(width int) []table.Column {
	group := max(10, width/5)
	tags := max(10, width/3)
	title := max(10, width-group-tags-4)
	return []table.Column{
		{Title: "GROUP", Width: group},
		{Title: "DASHBOARD", Width: title},
		{Title: "TAGS", Width: tags},
	}
}

// restoreInputs sets the inputs that were active before a reload. They are
// dropped if the reload failed or another dashboard was selected meanwhile.
func (m *Model) restoreInputs() {
	inputs := m.reloadInputs
	m.reloadInputs = nil
	if m.state.Status != session.StatusComplete || m.state.Mode != mode.Live ||
		m.state.Selection.Dashboard != m.reloadFor || len(inputs) == 0 {
		return
	}
	for _, name := range slices.Sorted(maps.Keys(inputs)) {
		m.sess.Dispatch(session.SetInput{Name: name, Value: inputs[name]})
	}
	m.state = m.sess.State()
}

func inputPlaceholder(names []string) string {
	if len(names) == 0 {
		return "name=value"
	}
	return "name=value (" + strings.Join(names, ", ") + ")"
}

func formatTags(tags map[string]string) string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + tags[k]
	}
	return strings.Join(parts, " ")
}

func (m *Model) View() tea.View {
	var body string
	switch {
	case m.help:
		body = m.helpView()
	case m.screen == screenList:
		body = m.listView()
	case m.screen == screenDetail:
		body = m.detailView()
	default:
		body = m.dashboardView()
	}
	out := lipgloss.JoinVertical(lipgloss.Left, body, m.statusLine())
	v := tea.NewView(out)
	v.AltScreen = true
	return v
}

func (m *Model) listView() string {
	var b strings.Builder
	gb := string(m.state.Search.GroupBy.Mode)
	if m.state.Search.GroupBy.Tag != "" {
		gb += ":" + m.state.Search.GroupBy.Tag
	}
	b.WriteString(m.styles.Title.Render("Dashboards") + " " + m.styles.Muted.Render("grouped by "+gb))
	b.WriteString("\n")
	switch {
	case m.searching:
		b.WriteString(m.search.View())
	case m.state.Search.Value != "":
		b.WriteString(m.styles.Muted.Render("filter: " + m.state.Search.Value))
	}
	b.WriteString("\n")
	switch {
	case m.listErr != nil:
		b.WriteString(m.styles.Error.Render(m.listErr.Error()))
	case len(m.listNames) == 0:
		b.WriteString(m.styles.Muted.Render("no dashboards match"))
	default:
		b.WriteString(m.list.View())
	}
	return b.String()
}

func (m *Model) dashboardView() string {
	if m.state.Status == session.StatusError && m.state.LoadError != nil {
		return m.styles.Error.Render(m.state.LoadError.Error())
	}
	if len(m.panels) == 0 {
		if m.state.Status == session.StatusBlocked {
			return m.spinner.View() + " loading " + m.state.Selection.Dashboard
		}
		return m.styles.Muted.Render("nothing to show")
	}

	opts := RenderOptions{Width: m.width, NoColor: m.opts.NoColor, Styles: m.styles}
	var (
		lines    []string
		selStart int
		selEnd   int
	)
	for i, v := range m.panels {
		block := RenderView(v, opts)
		if i == m.cursor {
			first, rest, _ := strings.Cut(block, "\n")
			block = m.styles.Selected.Render("▸ "+ansi.Strip(first)) + joinRest(rest)
		} else {
			block = "  " + block
		}
		block = indent(block, 2*depth(v.Path))
		if i == m.cursor {
			selStart = len(lines)
		}
		lines = append(lines, strings.Split(block, "\n")...)
		if i == m.cursor {
			selEnd = len(lines)
		}
		lines = append(lines, "")
	}
	return strings.Join(window(lines, selStart, selEnd, m.bodyHeight()), "\n")
}

func joinRest(rest string) string {
	if rest == "" {
		return ""
	}
	return "\n" + indent(rest, 2)
}

// window returns at most height lines, keeping [start, end) visible.
func window(lines []string, start, end, height int) []string {
	if height <= 0 || len(lines) <= height {
		return lines
	}
	top := 0
	if end > height {
		top = end - height
	}
	if start < top {
		top = start
	}
	return lines[top:min(len(lines), top+height)]
}

func (m *Model) bodyHeight() int {
	if m.height <= 0 {
		return 0
	}
	return max(1, m.height-2)
}

func (m *Model) detailView() string {
	v := m.detail
	opts := RenderOptions{Width: m.width, NoColor: m.opts.NoColor, Styles: m.styles}
	var b strings.Builder
	b.WriteString(m.styles.Muted.Render(v.Path))
	b.WriteString("\n")
	b.WriteString(RenderView(v, opts))
	if len(v.Properties) > 0 {
		if props, err := formatter.FormatYAML(v.Properties, 2); err == nil {
			b.WriteString("\n\n")
			b.WriteString(m.styles.Header.Render("properties"))
			b.WriteString("\n")
			b.WriteString(strings.TrimRight(props, "\n"))
		}
	}
	lines := strings.Split(b.String(), "\n")
	return strings.Join(window(lines, 0, 1, m.bodyHeight()), "\n")
}

func (m *Model) helpView() string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render("Keys"))
	b.WriteString("\n")
	for _, l := range helpLines {
		b.WriteString(fmt.Sprintf("  %-12s %s\n", l[0], m.styles.Muted.Render(l[1])))
	}
	b.WriteString(m.styles.Muted.Render("press any key to close"))
	return b.String()
}

func (m *Model) statusLine() string {
	if m.inputting {
		return m.input.View()
	}
	parts := []string{string(m.state.Mode)}
	if m.state.SnapshotID != "" {
		parts[0] += ":" + m.state.SnapshotID
	}
	if d := m.state.Selection.Dashboard; d != "" && m.screen != screenList {
		parts = append(parts, d)
	}
	switch m.state.Status {
	case session.StatusBlocked:
		parts = append(parts, m.spinner.View()+"loading")
	case session.StatusError:
		parts = append(parts, "error")
	case session.StatusReady, session.StatusComplete:
		if m.state.LoadError != nil {
			parts = append(parts, m.styles.Error.Render(m.state.LoadError.Error()))
		}
	}
	if id := m.state.PendingSnapshot; id != "" {
		parts = append(parts, m.spinner.View()+"fetching "+id)
	}
	if len(m.state.Selection.Inputs) > 0 {
		parts = append(parts, formatTags(m.state.Selection.Inputs))
	}
	parts = append(parts, m.state.Theme, m.state.Breakpoint, "? help")
	line := m.styles.Footer.Render(strings.Join(parts, " │ "))
	if m.notice != "" {
		line = m.notice + "  " + line
	}
	return line
}
