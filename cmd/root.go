// Package cmd implements the dashx command line.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/oakwood-commons/dashx/internal/config"
	"github.com/oakwood-commons/dashx/pkg/logger"
	"github.com/oakwood-commons/dashx/pkg/settings"
)

// rootOptions are the persistent flags plus the environment built from them
// before any subcommand runs.
type rootOptions struct {
	configFile  string
	modDir      string
	snapshotDir string
	debug       bool
	noColor     bool
	theme       string
	width       int
	interactive bool

	cfg      config.Config
	run      *settings.Run
	log      logr.Logger
	registry *prometheus.Registry
}

// Execute runs the CLI with a context cancelled on SIGINT and SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCommand().ExecuteContext(ctx)
}

// NewRootCommand builds the dashx command tree.
func NewRootCommand() *cobra.Command {
	o := &rootOptions{}
	root := &cobra.Command{
		Use:   settings.CliBinaryName,
		Short: "Browse and render dashboards from a mod directory",
		Long: settings.CliBinaryName + ` loads dashboards from a mod directory, binds them to their data and
renders them as text, structured output or an interactive browser.`,
		Example:       "  dashx list --group-by tag --tag service\n  dashx render aws.dashboard.overview -o yaml\n  dashx -i",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return o.setup(cmd)
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			o.logMetrics()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if o.interactive {
				return runBrowse(cmd, o, browseOptions{})
			}
			return runList(cmd, o, listOptions{output: "table"})
		},
	}
	root.Version = cliVersionString()
	root.SetVersionTemplate("{{.Version}}\n")

	pf := root.PersistentFlags()
	pf.StringVar(&o.configFile, "config-file", "", "path to a YAML config file (themes, breakpoints, search, data)")
	pf.StringVar(&o.modDir, "mod-dir", "", "mod directory to load dashboards from (default from config)")
	pf.StringVar(&o.snapshotDir, "snapshot-dir", "", "snapshot directory; relative paths are resolved against the mod directory")
	pf.BoolVar(&o.debug, "debug", false, "enable debug logging")
	pf.BoolVar(&o.noColor, "no-color", false, "disable color output")
	pf.StringVar(&o.theme, "theme", "", "theme name (default from config; see 'dashx themes')")
	pf.IntVar(&o.width, "width", 0, "viewport width in columns (default: terminal width)")
	root.Flags().BoolVarP(&o.interactive, "interactive", "i", false, "start the interactive browser")

	root.AddCommand(
		newListCommand(o),
		newRenderCommand(o),
		newSnapshotCommand(o),
		newBrowseCommand(o),
		newConfigCommand(o),
		newThemesCommand(o),
		newVersionCommand(),
	)
	return root
}

// setup builds the logger, config and run settings and stores them in the
// command context.
func (o *rootOptions) setup(cmd *cobra.Command) error {
	var level int8
	if o.debug {
		level = -1
	}
	lgr := logger.Get(level)
	lgr = logger.WithValues(lgr, logger.RootCommandKey, settings.CliBinaryName, logger.SubCommandKey, cmd.Name())
	o.log = *lgr

	cfg, err := config.Load(config.ResolvePath(o.configFile))
	if err != nil {
		return err
	}
	o.cfg = cfg

	run := settings.NewCliParams()
	run.MinLogLevel = level
	run.NoColor = o.noColor || os.Getenv("NO_COLOR") != ""
	run.ConfigFile = o.configFile
	run.ModDir = firstNonEmpty(o.modDir, cfg.Data.ModDir, ".")
	run.Theme = firstNonEmpty(o.theme, cfg.Theme.Default)
	run.Width = o.width
	o.run = run
	o.registry = prometheus.NewRegistry()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logger.WithLogger(ctx, lgr)
	ctx = settings.IntoContext(ctx, run)
	cmd.SetContext(ctx)
	return nil
}

// snapshotDirPath resolves where snapshots are stored.
func (o *rootOptions) snapshotDirPath() string {
	dir := firstNonEmpty(o.snapshotDir, o.cfg.Data.SnapshotDir, filepath.Join(".dashx", "snapshots"))
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(o.run.ModDir, dir)
}

// logMetrics writes the session counters of this run at V(1).
func (o *rootOptions) logMetrics() {
	if o.registry == nil || !o.log.V(1).Enabled() {
		return
	}
	families, err := o.registry.Gather()
	if err != nil {
		o.log.Error(err, "gathering metrics")
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			o.log.V(1).Info("metric", "name", mf.GetName(), "labels", strings.Join(labels, ","), "value", m.GetCounter().GetValue())
		}
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print dashx version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), cliVersionString())
			return err
		},
	}
}

func cliVersionString() string {
	v := settings.VersionInformation
	return fmt.Sprintf("%s %s (commit %s, built %s)", settings.CliBinaryName, v.BuildVersion, v.Commit, v.BuildTime)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
