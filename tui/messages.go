package tui

import (
	"time"

	"github.com/bassamadnan/mailsort/app"
)

// stateMsg carries an orchestrator event into the update loop.
type stateMsg app.Event

// eventsClosedMsg signals that the orchestrator shut down.
type eventsClosedMsg struct{}

// refreshDoneMsg reports the end of a refresh started from the keyboard.
type refreshDoneMsg struct{ Err error }

// A message for timed status updates.
type StatusTickMsg struct{ Time time.Time }

// Message to clear a temporary status message after a timeout.
type clearTempStatusMsg struct{}
