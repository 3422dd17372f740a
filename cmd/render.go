package cmd

import (
	"errors"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/oakwood-commons/dashx/internal/formatter"
	"github.com/oakwood-commons/dashx/internal/limiter"
	"github.com/oakwood-commons/dashx/internal/navigator"
	"github.com/oakwood-commons/dashx/internal/ui"
	"github.com/oakwood-commons/dashx/pkg/display"
	"github.com/oakwood-commons/dashx/pkg/panel"
	"github.com/oakwood-commons/dashx/pkg/session"
)

type renderOptions struct {
	inputs   []string
	snapshot string
	output   string
	html     bool
	selector string
	query    string
	rows     limiter.Rows
}

// renderResult is the structured output of render.
type renderResult struct {
	Dashboard  string            `json:"dashboard"`
	Mode       string            `json:"data_mode"`
	SnapshotID string            `json:"snapshot_id,omitempty"`
	Theme      string            `json:"theme"`
	Breakpoint string            `json:"breakpoint"`
	Inputs     map[string]string `json:"inputs,omitempty"`
	Panels     []panel.View      `json:"panels"`
}

func newRenderCommand(o *rootOptions) *cobra.Command {
	ro := renderOptions{}
	c := &cobra.Command{
		Use:   "render <dashboard> [panel-path]",
		Short: "Render a dashboard, or one panel subtree, with its data",
		Long: `Render a dashboard from the mod directory. The dashboard may be given by full
name (aws.dashboard.overview) or by a unique short name. With --snapshot the
dashboard comes from the snapshot store and the only argument is the optional
panel path.`,
		Example: "  dashx render overview\n  dashx render aws.dashboard.overview summary.count -o json\n  dashx render overview --input region=eu-west-1\n  dashx render --snapshot snap-1 -o yaml\n  dashx render overview --select '_.node_type == \"chart\"'",
		Args:    cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, o, ro, args)
		},
	}
	f := c.Flags()
	f.StringArrayVar(&ro.inputs, "input", nil, "set a dashboard input as name=value (repeatable)")
	f.StringVar(&ro.snapshot, "snapshot", "", "render a stored snapshot instead of live data")
	f.StringVarP(&ro.output, "output", "o", "table", "output format: table|tree|json|yaml|toml")
	f.BoolVar(&ro.html, "html", false, "write an HTML fragment; markdown text panels are converted to HTML")
	f.StringVar(&ro.selector, "select", "", "CEL predicate over panel nodes bound to '_'; only matching panels are rendered")
	addDataFlags(f, &ro)
	return c
}

// addDataFlags registers the flags that reshape panel data before output.
func addDataFlags(f *pflag.FlagSet, ro *renderOptions) {
	f.StringVarP(&ro.query, "query", "q", "", "path or CEL expression applied to each panel's data, e.g. '[0].region' or '_.filter(r, r.total > 5)'")
	rows := &ro.rows
	f.IntVar(&rows.Limit, "limit", 0, "show at most N rows of each table and chart panel (0 = all)")
	f.IntVar(&rows.Offset, "offset", 0, "skip the first N rows of each table and chart panel")
	f.IntVar(&rows.Tail, "tail", 0, "show only the last N rows of each table and chart panel")
}

func runRender(cmd *cobra.Command, o *rootOptions, ro renderOptions, args []string) error {
	var dashboard, path string
	switch {
	case ro.snapshot != "":
		if len(args) > 1 {
			return errors.New("with --snapshot only a panel path may be given")
		}
		if len(args) == 1 {
			path = args[0]
		}
		if len(ro.inputs) > 0 {
			return errors.New("--input cannot be combined with --snapshot")
		}
	case len(args) == 0:
		return errors.New("a dashboard name is required")
	default:
		dashboard = args[0]
		if len(args) == 2 {
			path = args[1]
		}
	}
	if err := ro.rows.Validate(); err != nil {
		return err
	}
	inputs, err := parseInputs(ro.inputs)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	sess, err := o.newSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	if ro.snapshot != "" {
		_, err = openSnapshot(ctx, sess, ro.snapshot)
	} else {
		_, err = openDashboard(ctx, sess, dashboard, inputs)
	}
	if err != nil {
		return err
	}
	return writeRender(cmd.OutOrStdout(), o, ro, sess, path)
}

// writeRender renders the loaded dashboard of sess in the requested format.
func writeRender(w io.Writer, o *rootOptions, ro renderOptions, sess *session.Session, path string) error {
	views, err := selectViews(sess, path, ro.selector)
	if err != nil {
		return err
	}
	if views, err = queryViews(views, ro.query); err != nil {
		return err
	}
	views = ro.rows.ApplyViews(views)
	st := sess.State()

	if ro.html {
		return writeHTML(w, views, o)
	}
	switch format := strings.ToLower(ro.output); format {
	case "table":
		dctx := sess.Display()
		out := ui.RenderViews(views, ui.RenderOptions{
			Width:   dctx.Width(),
			NoColor: o.run.NoColor,
			Styles:  ui.NewStyles(dctx.Theme(), o.run.NoColor),
			Indent:  path == "" && ro.selector == "",
		})
		_, err := fmt.Fprintln(w, out)
		return err
	case "tree":
		root, err := sess.Document().Resolve(path)
		if err != nil {
			return err
		}
		status := make(map[string]panel.Status, len(views))
		for _, v := range views {
			status[v.Path] = v.Status
		}
		paths := make(map[*panel.Node]string)
		for p, n := range sess.Document().Walk() {
			paths[n] = p
		}
		_, err = io.WriteString(w, formatter.FormatNodeTree(root, func(n *panel.Node, _ string) string {
			label := fmt.Sprintf("%s (%s)", n.Name, n.Type)
			if n.Title != "" {
				label = fmt.Sprintf("%s %q (%s)", n.Name, n.Title, n.Type)
			}
			if s, ok := status[paths[n]]; ok && s != panel.StatusStatic {
				label += " [" + string(s) + "]"
			}
			return label
		}))
		return err
	case "json", "yaml", "toml":
		res := renderResult{
			Dashboard:  st.Selection.Dashboard,
			Mode:       string(st.Mode),
			SnapshotID: st.SnapshotID,
			Theme:      st.Theme,
			Breakpoint: st.Breakpoint,
			Inputs:     st.Selection.Inputs,
			Panels:     views,
		}
		if doc := sess.Document(); res.Dashboard == "" && doc != nil {
			res.Dashboard = doc.Name()
		}
		return writeEncoded(w, res, formatter.Encoding(format))
	default:
		return fmt.Errorf("unsupported output %q: want table, tree, json, yaml or toml", ro.output)
	}
}

// selectViews renders the subtree at path, narrowed to nodes matching
// selector when one is given.
func selectViews(sess *session.Session, path, selector string) ([]panel.View, error) {
	doc := sess.Document()
	if doc == nil {
		return nil, session.ErrNoDashboard
	}
	if _, err := doc.Resolve(path); err != nil {
		return nil, err
	}
	var keep map[string]bool
	if strings.TrimSpace(selector) != "" {
		matches, err := doc.Select(selector)
		if err != nil {
			return nil, err
		}
		keep = make(map[string]bool, len(matches))
		for _, m := range matches {
			keep[m.Path] = true
		}
	}

	var views []panel.View
	for _, v := range sess.RenderAll() {
		if !withinPath(path, v.Path) {
			continue
		}
		if keep != nil && !keep[v.Path] {
			continue
		}
		views = append(views, v)
	}
	return views, nil
}

func writeHTML(w io.Writer, views []panel.View, o *rootOptions) error {
	var b strings.Builder
	b.WriteString("<div class=\"dashboard\">\n")
	for _, v := range views {
		title := v.Title
		if title == "" {
			title = v.Name
		}
		fmt.Fprintf(&b, "<section data-path=\"%s\" data-type=\"%s\">\n", html.EscapeString(v.Path), v.Type)
		fmt.Fprintf(&b, "<h2>%s</h2>\n", html.EscapeString(title))
		switch v.Type {
		case panel.TypeText:
			if s, ok := v.Properties["value"].(string); ok {
				b.WriteString(formatter.MarkdownToHTML(s))
			}
		case panel.TypeContainer, panel.TypeDashboard:
		case panel.TypeCard, panel.TypeChart, panel.TypeTable:
			body := ui.RenderView(v, ui.RenderOptions{Width: o.viewportWidth(), NoColor: true, Styles: ui.NewStyles(display.Theme{}, true)})
			fmt.Fprintf(&b, "<pre>%s</pre>\n", html.EscapeString(body))
		}
		b.WriteString("</section>\n")
	}
	b.WriteString("</div>\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// queryViews replaces the data of every view that has data with the result
// of query.
func queryViews(views []panel.View, query string) ([]panel.View, error) {
	if strings.TrimSpace(query) == "" {
		return views, nil
	}
	out := make([]panel.View, len(views))
	for i, v := range views {
		if v.Data != nil {
			data, err := navigator.NodeAtPath(v.Data, query)
			if err != nil {
				return nil, fmt.Errorf("query %q on panel %q: %w", query, v.Path, err)
			}
			v.Data = data
		}
		out[i] = v
	}
	return out, nil
}

// withinPath reports whether p is base or a descendant of it.
func withinPath(base, p string) bool {
	if base == "" || p == base {
		return true
	}
	return strings.HasPrefix(p, base+".") || strings.HasPrefix(p, base+"[")
}
