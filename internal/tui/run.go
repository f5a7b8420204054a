package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the interface and blocks until the user quits or ctx is done.
func Run(ctx context.Context, ctl Controller, pageSize int) error {
	m := New(ctx, ctl, pageSize, DefaultStyles())
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithReportFocus(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("terminal UI: %w", err)
	}
	return nil
}
