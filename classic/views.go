package classic

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/bassamadnan/mailsort/app"
	"github.com/bassamadnan/mailsort/inbox"
)

const (
	PageDashboard    = "dashboard"
	PageFocusedEmail = "focusedEmail"
)

type EmailListView struct {
	*tview.List
	app     *App
	visible []inbox.EmailRecord
}

func NewEmailListView(a *App) *EmailListView {
	list := tview.NewList().
		ShowSecondaryText(true).
		SetSecondaryTextColor(tcell.ColorDimGray)

	list.SetBackgroundColor(tcell.ColorDefault)
	list.SetSelectedStyle(tcell.StyleDefault.
		Foreground(tcell.ColorWhite).
		Background(tcell.ColorSteelBlue).
		Attributes(tcell.AttrBold))
	list.SetBorder(true).SetTitle("Emails")

	elv := &EmailListView{List: list, app: a}

	list.SetChangedFunc(func(index int, _, _ string, _ rune) {
		if index >= 0 && index < len(elv.visible) {
			elv.app.UpdatePreviewPane(elv.visible[index])
		}
	})
	list.SetSelectedFunc(func(index int, _, _ string, _ rune) {
		if index >= 0 && index < len(elv.visible) {
			elv.app.ShowFocusedEmailView(elv.visible[index])
		}
	})
	return elv
}

// SetRecords replaces the list contents, keeping the cursor on the same
// message when it is still present.
func (elv *EmailListView) SetRecords(records []inbox.EmailRecord, s app.State) {
	selectedID := ""
	if cur := elv.List.GetCurrentItem(); cur >= 0 && cur < len(elv.visible) {
		selectedID = elv.visible[cur].ID
	}

	elv.visible = records
	title := "All mail"
	if s.Selected != nil {
		title = s.Selected.String()
	}
	elv.List.SetTitle(fmt.Sprintf("%s (%d)", title, len(records)))

	elv.List.Clear()
	now := elv.app.now()
	target := 0
	for i, r := range records {
		if r.ID == selectedID {
			target = i
		}
		elv.List.AddItem(listMainText(r), listSecondaryText(r, now), 0, nil)
	}

	if len(records) == 0 {
		elv.app.ShowWelcomeMessageInPreview()
		return
	}
	elv.List.SetCurrentItem(target)
	elv.app.UpdatePreviewPane(records[target])
}

func listMainText(r inbox.EmailRecord) string {
	marker := "  "
	if r.Unread {
		marker = "[dodgerblue]●[-] "
	}
	return fmt.Sprintf("%s[white]%s", marker, tview.Escape(truncate(r.Subject, 40)))
}

func listSecondaryText(r inbox.EmailRecord, now time.Time) string {
	st := r.Category.Style()
	return fmt.Sprintf("[::d]%s · %s [-:-:-][%s]%s %s[-]",
		tview.Escape(truncate(r.SenderName(), 20)), inbox.RelativeTime(r.Date, now), colorTag(st.Color), st.Icon, r.Category)
}

// colorTag turns a 256-color code into a tview color tag name.
func colorTag(code string) string {
	var n int
	if _, err := fmt.Sscanf(code, "%d", &n); err != nil {
		return "white"
	}
	hex := tcell.PaletteColor(n).Hex()
	if hex < 0 {
		return "white"
	}
	return fmt.Sprintf("#%06x", hex)
}

// renderCategoryBar renders "All" followed by the non-empty categories,
// highlighting the selection.
func renderCategoryBar(records []inbox.EmailRecord, selected *inbox.Category) string {
	counts := inbox.CountsByCategory(records)
	var parts []string
	for _, c := range inbox.Choices(records, selected) {
		label := fmt.Sprintf("All %d", len(records))
		color := "white"
		if c != nil {
			label = fmt.Sprintf("%s %s %d", c.Style().Icon, c.String(), counts[*c])
			color = colorTag(c.Style().Color)
		}
		if inbox.SameSelection(c, selected) {
			parts = append(parts, fmt.Sprintf("[black:%s:b] %s [-:-:-]", color, label))
		} else {
			parts = append(parts, fmt.Sprintf("[%s] %s [-]", color, label))
		}
	}
	return " " + strings.Join(parts, " ")
}

type PreviewPane struct {
	*tview.TextView
	isWelcome bool
}

func NewPreviewPane() *PreviewPane {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(true)
	tv.SetBackgroundColor(tcell.ColorDefault)
	tv.SetBorder(true).SetTitle("Preview")
	return &PreviewPane{TextView: tv, isWelcome: true}
}

func headerText(r inbox.EmailRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[::b]From:[::-] %s\n", tview.Escape(r.From))
	dateStr := "N/A"
	if !r.Date.IsZero() {
		dateStr = r.Date.Local().Format(time.RFC1123)
	}
	fmt.Fprintf(&b, "[::b]Date:[::-] %s\n", dateStr)
	fmt.Fprintf(&b, "[::b]Subject:[::-] %s\n", tview.Escape(r.Subject))
	st := r.Category.Style()
	fmt.Fprintf(&b, "[::b]Category:[::-] [%s]%s %s[-]\n", colorTag(st.Color), st.Icon, r.Category)
	if len(r.Labels) > 0 {
		fmt.Fprintf(&b, "[::b]Labels:[::-] %s\n", tview.Escape(strings.Join(r.Labels, ", ")))
	}
	return b.String()
}

func (pp *PreviewPane) SetEmailContent(r inbox.EmailRecord) {
	pp.isWelcome = false
	text := headerText(r) + "\n" + strings.Repeat("─", 60) + "\n\n" + tview.Escape(r.Snippet)
	pp.SetText(text).ScrollToBeginning()
	pp.SetTitle("Preview: " + truncate(r.Subject, 40))
}

// SetWelcomeMessage fills the pane when no record is selected, explaining
// why: still loading, failed, or simply empty.
func (pp *PreviewPane) SetWelcomeMessage(s app.State) {
	pp.isWelcome = true
	var status string
	switch {
	case s.Loading:
		status = "[yellow]Loading emails...[-]"
	case s.Err != nil:
		status = "[red::b]Could not load your inbox[-::-]\n" + tview.Escape(s.Err.Error()) + "\n\n[::d]Press R to retry.[::-]"
	default:
		status = "No emails here."
	}
	pp.SetText("\n[lightblue::b]mailsort[-::-]\n\n" + status +
		"\n\n[::d]Navigate emails with ↑ ↓ keys.\nTab switches category, Enter opens full view.\nPress Q or Ctrl+C to quit.[::-]").
		ScrollToBeginning()
	pp.SetTitle("Home")
}

func (pp *PreviewPane) IsShowingWelcome() bool {
	return pp.isWelcome
}

type FocusedEmailView struct {
	*tview.Frame
	textView *tview.TextView
}

func NewFocusedEmailView() *FocusedEmailView {
	textView := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(true)
	textView.SetBackgroundColor(tcell.ColorDefault)

	frame := tview.NewFrame(textView).
		AddText("", true, tview.AlignCenter, tcell.ColorYellow).
		AddText("Press Esc to go back", false, tview.AlignCenter, tcell.ColorDimGray)
	frame.SetBorder(true).SetBackgroundColor(tcell.ColorDefault)

	return &FocusedEmailView{Frame: frame, textView: textView}
}

func (fev *FocusedEmailView) SetEmailContent(r inbox.EmailRecord) {
	var b strings.Builder
	b.WriteString(headerText(r))
	fmt.Fprintf(&b, "[::b]Thread:[::-] [::d]%s[::-]\n", r.ThreadID)
	fmt.Fprintf(&b, "[::b]Message:[::-] [::d]%s[::-]\n\n", r.ID)
	b.WriteString(strings.Repeat("─", 70) + "\n\n")
	b.WriteString(tview.Escape(r.Snippet))
	fev.textView.SetText(b.String()).ScrollToBeginning()
	fev.Frame.Clear().
		AddText("Subject: "+truncate(r.Subject, 60), true, tview.AlignCenter, tcell.ColorYellow).
		AddText("Press Esc to go back", false, tview.AlignCenter, tcell.ColorDimGray)
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen < 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
