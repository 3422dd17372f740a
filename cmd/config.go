package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oakwood-commons/dashx/internal/config"
	"github.com/oakwood-commons/dashx/internal/formatter"
)

func newConfigCommand(o *rootOptions) *cobra.Command {
	var output string
	c := &cobra.Command{
		Use:   "config",
		Short: "Show the merged configuration",
		Long: `Show the configuration in effect: the built-in defaults merged with the
file given by --config-file, $XDG_CONFIG_HOME/dashx/config.yaml or
~/.config/dashx/config.yaml.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch strings.ToLower(output) {
			case "yaml":
				s, err := formatter.FormatYAML(o.cfg, 2)
				if err != nil {
					return err
				}
				_, err = fmt.Fprint(cmd.OutOrStdout(), s)
				return err
			case "json":
				return writeEncoded(cmd.OutOrStdout(), o.cfg, formatter.EncodingJSON)
			case "default":
				_, err := cmd.OutOrStdout().Write(config.DefaultYAML())
				return err
			default:
				return fmt.Errorf("unsupported output %q: want yaml, json or default", output)
			}
		},
	}
	c.Flags().StringVarP(&output, "output", "o", "yaml", "output format: yaml|json|default (the embedded defaults, verbatim)")
	return c
}

func newThemesCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "themes",
		Short: "List available themes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			themes := o.cfg.DisplayThemes()
			def := o.cfg.Theme.Default
			rows := make([][]string, 0, len(themes))
			for _, name := range themes.Names() {
				marker := ""
				if name == def {
					marker = "*"
				}
				rows = append(rows, []string{marker, name, themes[name].Label})
			}
			_, err := fmt.Fprint(cmd.OutOrStdout(), formatter.RenderColumnarTable(
				[]string{"", "NAME", "LABEL"}, rows,
				formatter.ColumnarOptions{NoColor: o.run.NoColor, TotalWidth: o.viewportWidth()},
			))
			return err
		},
	}
}
