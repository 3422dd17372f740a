package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oakwood-commons/dashx/internal/formatter"
	"github.com/oakwood-commons/dashx/pkg/search"
	"github.com/oakwood-commons/dashx/pkg/session"
)

type listOptions struct {
	search  string
	groupBy string
	tag     string
	where   string
	output  string
}

func newListCommand(o *rootOptions) *cobra.Command {
	lo := listOptions{}
	c := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List top level dashboards, grouped by mod or tag",
		Example: "  dashx list --search cost\n  dashx list --group-by tag --tag service\n  dashx list --where '_.tags.service == \"aws/ec2\"' -o json",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd, o, lo)
		},
	}
	f := c.Flags()
	f.StringVar(&lo.search, "search", "", "case-insensitive match against title and tag values")
	f.StringVar(&lo.groupBy, "group-by", "", "group dashboards by mod or tag (default from config)")
	f.StringVar(&lo.tag, "tag", "", "tag key used with --group-by tag")
	f.StringVar(&lo.where, "where", "", "CEL predicate over dashboard metadata bound to '_'")
	f.StringVarP(&lo.output, "output", "o", "table", "output format: table|json|yaml")
	return c
}

func runList(cmd *cobra.Command, o *rootOptions, lo listOptions) error {
	format := strings.ToLower(lo.output)
	switch format {
	case "table", "json", "yaml":
	default:
		return fmt.Errorf("unsupported output %q: want table, json or yaml", lo.output)
	}

	var groupBy *search.GroupBy
	if lo.groupBy != "" || lo.tag != "" {
		mode := lo.groupBy
		if mode == "" {
			mode = string(search.ModeTag)
		}
		gb, err := validateGroupBy(mode, lo.tag)
		if err != nil {
			return err
		}
		groupBy = &gb
	}

	sess, err := o.newSession(cmd.Context(), session.WithSearchOptions(search.Options{Where: lo.where}))
	if err != nil {
		return err
	}
	defer sess.Close()

	if lo.search != "" {
		sess.Dispatch(session.SetSearchValue{Value: lo.search})
	}
	if groupBy != nil {
		sess.Dispatch(session.SetGroupBy{Mode: groupBy.Mode, Tag: groupBy.Tag})
	}
	groups, err := sess.Dashboards()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if format != "table" {
		return writeEncoded(out, groups, formatter.Encoding(format))
	}
	return writeGroups(out, groups, o)
}

func writeGroups(w io.Writer, groups []search.Group, o *rootOptions) error {
	if len(groups) == 0 {
		_, err := fmt.Fprintln(w, "no dashboards found")
		return err
	}
	width := o.viewportWidth()
	for i, g := range groups {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		rows := make([][]string, 0, len(g.Dashboards))
		for _, d := range g.Dashboards {
			rows = append(rows, []string{d.FullName, d.DisplayTitle(), formatTags(d.Tags)})
		}
		table := formatter.RenderColumnarTable([]string{"NAME", "TITLE", "TAGS"}, rows, formatter.ColumnarOptions{
			NoColor:    o.run.NoColor,
			TotalWidth: width,
		})
		if _, err := fmt.Fprintf(w, "%s (%d)\n%s", g.Label, len(g.Dashboards), table); err != nil {
			return err
		}
	}
	return nil
}

func formatTags(tags map[string]string) string {
	parts := make([]string, 0, len(tags))
	for _, k := range sortedKeys(tags) {
		parts = append(parts, k+"="+tags[k])
	}
	return strings.Join(parts, " ")
}
