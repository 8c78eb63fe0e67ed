package tui

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/bassamadnan/mailsort/inbox"
)

// truncate shortens s to maxLen runes, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen < 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// padRight pads s with spaces to the given display width.
func padRight(s string, width int) string {
	if w := lipgloss.Width(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}

// formatEmailListItem renders one record as a four-line box.
// contentWidth is the text width inside the vertical bars.
func formatEmailListItem(r inbox.EmailRecord, isSelected bool, contentWidth int, now time.Time) string {
	boxCharStyle, subjectStyle, secondaryTextStyle := NormalBoxCharStyle, NormalSubjectStyle, NormalSecondaryTextStyle
	itemBlockStyle := EmailListItemStyle
	if isSelected {
		boxCharStyle, subjectStyle, secondaryTextStyle = SelectedBoxCharStyle, SelectedSubjectStyle, SelectedSecondaryTextStyle
		itemBlockStyle = SelectedEmailListItemStyle
	}

	marker := "  "
	if r.Unread {
		marker = UnreadMarkerStyle.Render("●") + " "
	}
	subject := padRight(truncate(r.Subject, contentWidth-2), contentWidth-2)

	// "sender · 5m ago" on the left, category icon on the right
	when := inbox.RelativeTime(r.Date, now)
	icon := r.Category.Style().Icon
	maxSender := contentWidth - len([]rune(when)) - 3 - lipgloss.Width(icon) - 1
	secondary := when
	if maxSender > 0 {
		secondary = truncate(r.SenderName(), maxSender) + " · " + when
	}
	secondary = padRight(truncate(secondary, contentWidth-lipgloss.Width(icon)-1), contentWidth-lipgloss.Width(icon)-1) + " " + icon

	horizontalBar := strings.Repeat(BoxHorizontal, contentWidth+2)
	lines := []string{
		boxCharStyle.Render(BoxTopLeft + horizontalBar + BoxTopRight),
		boxCharStyle.Render(BoxVertical) + " " + marker + subjectStyle.Render(subject) + " " + boxCharStyle.Render(BoxVertical),
		boxCharStyle.Render(BoxVertical) + " " + secondaryTextStyle.Render(secondary) + " " + boxCharStyle.Render(BoxVertical),
		boxCharStyle.Render(BoxBottomLeft + horizontalBar + BoxBottomRight),
	}
	return itemBlockStyle.Render(strings.Join(lines, "\n"))
}

// formatDate renders the full timestamp for the preview pane.
func formatDate(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	return t.Local().Format(time.RFC1123)
}
