package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bassamadnan/mailsort/app"
)

// waitForEventCmd blocks on the event channel and delivers the next event.
// Update re-queues it after every stateMsg.
func waitForEventCmd(events <-chan app.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return stateMsg(ev)
	}
}

// refreshCmd runs a refresh off the update loop. State changes arrive
// through the event channel; only the final error comes back here.
func refreshCmd(ctx context.Context, src Source) tea.Cmd {
	return func() tea.Msg {
		return refreshDoneMsg{Err: src.Refresh(ctx)}
	}
}

// statusTickCmd creates a ticker for updating the status bar periodically.
func statusTickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return StatusTickMsg{Time: t}
	})
}
