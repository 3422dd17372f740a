package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/oakwood-commons/dashx/pkg/logger"
)

func newSnapshotCommand(o *rootOptions) *cobra.Command {
	c := &cobra.Command{
		Use:   "snapshot",
		Short: "Save, list and show stored dashboard snapshots",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	var inputs []string
	save := &cobra.Command{
		Use:     "save <dashboard> <id>",
		Short:   "Capture a dashboard and its current data into the snapshot store",
		Example: "  dashx snapshot save overview before-migration --input region=eu-west-1",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshotSave(cmd, o, args[0], args[1], inputs)
		},
	}
	save.Flags().StringArrayVar(&inputs, "input", nil, "set a dashboard input as name=value (repeatable)")

	ro := renderOptions{}
	show := &cobra.Command{
		Use:   "show <id> [panel-path]",
		Short: "Render a stored snapshot",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := ro
			opts.snapshot = args[0]
			return runRender(cmd, o, opts, args[1:])
		},
	}
	show.Flags().StringVarP(&ro.output, "output", "o", "table", "output format: table|tree|json|yaml|toml")
	show.Flags().BoolVar(&ro.html, "html", false, "write an HTML fragment")
	show.Flags().StringVar(&ro.selector, "select", "", "CEL predicate over panel nodes bound to '_'")
	addDataFlags(show.Flags(), &ro)

	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stored snapshot ids",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ids, err := o.snapshotStore().List(cmd.Context())
			if err != nil {
				return err
			}
			for _, id := range ids {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), id); err != nil {
					return err
				}
			}
			return nil
		},
	}

	c.AddCommand(save, show, list)
	return c
}

func runSnapshotSave(cmd *cobra.Command, o *rootOptions, dashboard, id string, rawInputs []string) error {
	inputs, err := parseInputs(rawInputs)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	sess, err := o.newSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	if _, err := openDashboard(ctx, sess, dashboard, inputs); err != nil {
		return err
	}
	snap, err := sess.Capture(id, time.Now())
	if err != nil {
		return err
	}
	store := o.snapshotStore()
	if err := store.Save(ctx, snap); err != nil {
		return err
	}
	logger.FromContext(ctx).V(1).Info("snapshot saved", logger.SnapshotKey, id, logger.DashboardKey, snap.Dashboard.FullName)
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "saved snapshot %s of %s to %s\n", id, snap.Dashboard.FullName, store.Dir)
	return err
}
