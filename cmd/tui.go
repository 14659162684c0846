package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/halcyonfm/trackline/internal/shared"
	"github.com/halcyonfm/trackline/internal/ui"
	"github.com/urfave/cli/v3"
)

// tuiCommand launches the interactive browser
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "tui",
		Usage:  "Browse lineups and drive the playback queue interactively",
		Action: r.TUI,
	}
}

// TUI launches the interactive terminal UI over the mounted lineups.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	if r.store == nil || r.provider == nil {
		return fmt.Errorf("%w: store or provider not initialized", shared.ErrServiceUnavailable)
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/trackline-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.logger = fileLogger

	// Each TUI session gets its own lineup instances; quitting and relaunching
	// never contends with the static CLI lineups over subscriptions.
	prefixes, err := r.mountLineups(prefixFeed, prefixTrending)
	if err != nil {
		return err
	}
	model := ui.NewModel(ctx, r.store, prefixes, r.pageSize())
	p := tea.NewProgram(model)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
