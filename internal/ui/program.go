package ui

import (
	"context"
	"errors"

	tea "charm.land/bubbletea/v2"

	"github.com/oakwood-commons/dashx/pkg/session"
)

// Run starts the browser over sess and blocks until the user quits or ctx
// is cancelled. Extra ProgramOptions (custom IO, fixed size) are passed to
// tea.NewProgram.
func Run(ctx context.Context, sess *session.Session, opts Options, progOpts ...tea.ProgramOption) error {
	m := NewModel(sess, opts)
	defer m.Close()

	progOpts = append([]tea.ProgramOption{tea.WithContext(ctx)}, progOpts...)
	prog := tea.NewProgram(m, progOpts...)
	_, err := prog.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
