// Package tui is the full-screen terminal interface.
package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/o365connect/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/o365connect/internal/adapters/driving/tui/views/connect"
	"github.com/custodia-labs/o365connect/internal/core/async"
	"github.com/custodia-labs/o365connect/internal/core/ports/driving"
)

// NewModel builds the connect view over a flow whose results are queued for
// the bubbletea goroutine.
func NewModel(
	ctx context.Context,
	newFlow func(async.Dispatcher) driving.ConnectFlow,
	compose connect.Composer,
) (*connect.View, error) {
	if newFlow == nil {
		return nil, errors.New("connect flow not configured")
	}
	if compose == nil {
		return nil, errors.New("mail composer not configured")
	}
	queue := async.NewQueue()
	return connect.NewView(ctx, styles.DefaultStyles(), newFlow(queue), queue, compose), nil
}

// Run starts the TUI and blocks until the user quits.
func Run(
	ctx context.Context,
	newFlow func(async.Dispatcher) driving.ConnectFlow,
	compose connect.Composer,
) error {
	model, err := NewModel(ctx, newFlow, compose)
	if err != nil {
		return err
	}
	if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
