package inbox

import (
	"fmt"
	"time"
)

// RelativeTime renders t relative to now the way the inbox list shows it.
func RelativeTime(t, now time.Time) string {
	if t.IsZero() {
		return "???"
	}
	diff := now.Sub(t)
	switch {
	case diff < time.Minute:
		return "Just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff/time.Minute))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff/time.Hour))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff/(24*time.Hour)))
	}
	return t.Local().Format("Jan 2")
}
