// Package messages defines the bubbletea messages passed between the TUI
// program and its views.
package messages

// DispatchReady signals that operation results are queued for the UI
// goroutine.
type DispatchReady struct{}
