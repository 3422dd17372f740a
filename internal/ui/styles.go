package ui

import (
	"charm.land/lipgloss/v2"

	"github.com/oakwood-commons/dashx/internal/formatter"
	"github.com/oakwood-commons/dashx/pkg/display"
)

// Styles are the lipgloss styles derived from the active theme.
type Styles struct {
	Title    lipgloss.Style
	Header   lipgloss.Style
	Selected lipgloss.Style
	Muted    lipgloss.Style
	Box      lipgloss.Style
	Error    lipgloss.Style
	Success  lipgloss.Style
	Footer   lipgloss.Style
}

// NewStyles builds styles from th. With noColor every style is plain apart
// from reverse video on the selection, so output carries no other escapes.
func NewStyles(th display.Theme, noColor bool) Styles {
	if noColor {
		plain := lipgloss.NewStyle()
		return Styles{
			Title:    plain,
			Header:   plain,
			Selected: plain.Reverse(true),
			Muted:    plain,
			Box:      plain.Border(lipgloss.NormalBorder()).Padding(0, 1),
			Error:    plain,
			Success:  plain,
			Footer:   plain,
		}
	}
	p := th.Palette
	return Styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(p.Primary)),
		Header:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(p.Primary)),
		Selected: lipgloss.NewStyle().Reverse(true).Foreground(lipgloss.Color(p.Primary)),
		Muted:    lipgloss.NewStyle().Foreground(lipgloss.Color(p.Muted)),
		Box:      lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color(p.Border)).Padding(0, 1),
		Error:    lipgloss.NewStyle().Foreground(lipgloss.Color(p.Error)),
		Success:  lipgloss.NewStyle().Foreground(lipgloss.Color(p.Success)),
		Footer:   lipgloss.NewStyle().Foreground(lipgloss.Color(p.Muted)),
	}
}

// ApplyTableTheme points the shared formatter tables at the theme colors.
func ApplyTableTheme(th display.Theme) {
	p := th.Palette
	formatter.SetTableTheme(formatter.TableColors{
		HeaderFG:       lipgloss.Color(p.Primary),
		KeyColor:       lipgloss.Color(p.Primary),
		ValueColor:     lipgloss.Color(p.Muted),
		SeparatorColor: lipgloss.Color(p.Border),
	})
}
