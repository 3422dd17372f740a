package cmd

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/oakwood-commons/dashx/internal/ui"
	"github.com/oakwood-commons/dashx/pkg/live"
	"github.com/oakwood-commons/dashx/pkg/session"
)

type browseOptions struct {
	dashboard string
	watch     string
	snapshot  string
}

func newBrowseCommand(o *rootOptions) *cobra.Command {
	bo := browseOptions{}
	c := &cobra.Command{
		Use:   "browse [dashboard]",
		Short: "Browse dashboards interactively",
		Long: `Browse dashboards interactively. With --watch, data files written under
<dir>/<dashboard full name>/<query key>.<json|yaml|toml> are applied to the
open dashboard as live updates.`,
		Example: "  dashx browse\n  dashx browse overview --watch ./live",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				bo.dashboard = args[0]
			}
			return runBrowse(cmd, o, bo)
		},
	}
	c.Flags().StringVar(&bo.watch, "watch", "", "directory of live data files (default from config data.watch_dir)")
	c.Flags().StringVar(&bo.snapshot, "snapshot", "", "open a stored snapshot")
	return c
}

func runBrowse(cmd *cobra.Command, o *rootOptions, bo browseOptions) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("browse needs an interactive terminal")
	}
	ctx := cmd.Context()

	var extra []session.Option
	if dir := firstNonEmpty(bo.watch, o.cfg.Data.WatchDir); dir != "" {
		extra = append(extra, session.WithLiveSource(live.NewDirSource(dir,
			live.WithDebounce(o.cfg.WatchDebounce()),
			live.WithLogger(o.log),
		)))
	}
	sess, err := o.newSession(ctx, extra...)
	if err != nil {
		return err
	}

	switch {
	case bo.snapshot != "":
		sess.Dispatch(session.LoadSnapshot{ID: bo.snapshot})
	case bo.dashboard != "":
		fullName, err := resolveDashboard(sess.Catalog(), bo.dashboard)
		if err != nil {
			sess.Close()
			return err
		}
		sess.Dispatch(session.SelectDashboard{FullName: fullName})
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return ui.Run(gctx, sess, ui.Options{
			NoColor:        o.run.NoColor,
			SearchDebounce: o.cfg.SearchDebounce(),
			Snapshots:      o.snapshotStore(),
			Logger:         o.log,
		})
	})
	g.Go(func() error {
		<-gctx.Done()
		sess.Close()
		return nil
	})
	return g.Wait()
}
