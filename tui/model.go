// Package tui is the Bubble Tea dashboard: category pills over a list of
// classified messages with a preview pane.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bassamadnan/mailsort/app"
	"github.com/bassamadnan/mailsort/inbox"
)

// Source is the orchestrator surface the dashboard drives.
type Source interface {
	State() app.State
	Refresh(ctx context.Context) error
	SelectCategory(c *inbox.Category)
	Subscribe() <-chan app.Event
}

type viewState int

const (
	viewDashboard viewState = iota
	viewFocusedEmail
)

const (
	emailListItemHeight = 4
	minListPaneWidth    = 30
	minPreviewPaneWidth = 40
)

type Model struct {
	ctx          context.Context
	source       Source
	events       <-chan app.Event
	keys         KeyMap
	now          func() time.Time
	pollInterval time.Duration

	state           app.State
	visible         []inbox.EmailRecord
	selectedIdx     int
	viewportTopLine int
	currentView     viewState

	spinner  spinner.Model
	progress progress.Model

	width, height int
	statusBarText string
	statusIsError bool
	statusIsTemp  bool
	eventsClosed  bool
}

type Option func(*Model)

// WithClock overrides the time source used for relative dates.
func WithClock(now func() time.Time) Option {
	return func(m *Model) { m.now = now }
}

// WithPollInterval shows the background refresh interval in the status bar.
func WithPollInterval(d time.Duration) Option {
	return func(m *Model) { m.pollInterval = d }
}

// NewModel subscribes to src and seeds the view from its current state.
// Subscribe happens here so no event published after construction is lost.
func NewModel(ctx context.Context, src Source, opts ...Option) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))

	m := Model{
		ctx:      ctx,
		source:   src,
		events:   src.Subscribe(),
		keys:     DefaultKeyMap(),
		now:      time.Now,
		spinner:  sp,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.applyState(src.State())
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		waitForEventCmd(m.events),
		m.spinner.Tick,
		statusTickCmd(1*time.Second),
	)
}

// chromeHeight is the number of rows above and below the panes.
func (m Model) chromeHeight() int {
	h := 2 // pills and status bar
	if m.state.Loading {
		h++
	}
	return h
}

func (m Model) getNumItemsThatFitInList() int {
	h := m.height - m.chromeHeight() - lipgloss.Height(EmailListTitleStyle.Render(" "))
	if h < 0 {
		return 0
	}
	return h / emailListItemHeight
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = msg.Width / 3
		m.ensureSelectedVisible()

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.updateStatusBar("Quitting...")
			return m, tea.Quit
		}
		switch m.currentView {
		case viewDashboard:
			cmds = append(cmds, m.handleDashboardKey(msg)...)
		case viewFocusedEmail:
			if key.Matches(msg, m.keys.Back) {
				m.currentView = viewDashboard
				m.setStandardStatus()
			}
		}

	case stateMsg:
		m.applyState(msg.State)
		cmds = append(cmds, waitForEventCmd(m.events))

	case eventsClosedMsg:
		m.eventsClosed = true
		m.setStandardStatus()

	case refreshDoneMsg:
		if msg.Err != nil && !errors.Is(msg.Err, app.ErrSuperseded) && !errors.Is(msg.Err, context.Canceled) {
			m.updateStatusError(fmt.Sprintf("Refresh failed: %v", msg.Err))
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case StatusTickMsg:
		if !m.statusIsTemp && !m.statusIsError {
			m.setStandardStatus()
		}
		cmds = append(cmds, statusTickCmd(1*time.Second))

	case clearTempStatusMsg:
		if m.statusIsTemp {
			m.statusIsTemp = false
			m.setStandardStatus()
		}
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handleDashboardKey(msg tea.KeyMsg) []tea.Cmd {
	var cmds []tea.Cmd
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.selectedIdx > 0 {
			m.selectedIdx--
			m.ensureSelectedVisible()
		}
	case key.Matches(msg, m.keys.Down):
		if m.selectedIdx < len(m.visible)-1 {
			m.selectedIdx++
			m.ensureSelectedVisible()
		}
	case key.Matches(msg, m.keys.Open):
		if m.current() != nil {
			m.currentView = viewFocusedEmail
			m.setStandardStatus()
		}
	case key.Matches(msg, m.keys.NextCategory):
		m.cycleCategory(1)
	case key.Matches(msg, m.keys.PrevCategory):
		m.cycleCategory(-1)
	case key.Matches(msg, m.keys.AllMail):
		m.selectCategory(nil)
	case key.Matches(msg, m.keys.Refresh):
		if m.state.Loading {
			m.showTemporaryStatus("Refresh already running", 2*time.Second, &cmds)
			break
		}
		m.showTemporaryStatus("Refreshing...", 2*time.Second, &cmds)
		cmds = append(cmds, refreshCmd(m.ctx, m.source))
	}
	return cmds
}

// applyState swaps in a new snapshot, keeping the cursor on the same
// message when it is still visible.
func (m *Model) applyState(s app.State) {
	selectedID := ""
	if r := m.current(); r != nil {
		selectedID = r.ID
	}

	m.state = s
	m.visible = inbox.Filter(s.Records, s.Selected)

	m.selectedIdx = 0
	for i, r := range m.visible {
		if r.ID == selectedID {
			m.selectedIdx = i
			break
		}
	}
	if m.currentView == viewFocusedEmail && m.current() == nil {
		m.currentView = viewDashboard
	}
	m.ensureSelectedVisible()
	if !m.statusIsTemp {
		m.setStandardStatus()
	}
}

func (m Model) current() *inbox.EmailRecord {
	if m.selectedIdx < 0 || m.selectedIdx >= len(m.visible) {
		return nil
	}
	return &m.visible[m.selectedIdx]
}

func (m Model) pills() []*inbox.Category {
	return inbox.Choices(m.state.Records, m.state.Selected)
}

func (m *Model) cycleCategory(dir int) {
	m.selectCategory(inbox.Cycle(m.pills(), m.state.Selected, dir))
}

func (m *Model) selectCategory(c *inbox.Category) {
	if inbox.SameSelection(c, m.state.Selected) {
		return
	}
	m.source.SelectCategory(c)
	// The orchestrator echoes the change as an event; apply it now so the
	// keypress shows without waiting for the round trip.
	s := m.state
	s.Selected = c
	m.applyState(s)
}

func (m *Model) showTemporaryStatus(text string, duration time.Duration, cmds *[]tea.Cmd) {
	m.statusBarText = text
	m.statusIsError = false
	m.statusIsTemp = true
	*cmds = append(*cmds, tea.Tick(duration, func(time.Time) tea.Msg {
		return clearTempStatusMsg{}
	}))
}

func (m *Model) updateStatusBar(text string) {
	m.statusBarText = text
	m.statusIsError = false
	m.statusIsTemp = false
}

func (m *Model) updateStatusError(text string) {
	m.statusBarText = text
	m.statusIsError = true
	m.statusIsTemp = false
}

func (m *Model) setStandardStatus() {
	if m.statusIsTemp {
		return
	}
	if m.state.Phase == app.Failed && m.state.Err != nil {
		m.updateStatusError(fmt.Sprintf("Error: %v | [r]:retry [q]:quit", m.state.Err))
		return
	}

	phase := m.state.Phase.String()
	switch {
	case m.eventsClosed:
		phase = "stopped"
	case m.state.Phase == app.Classifying:
		phase = fmt.Sprintf("classifying %d/%d", m.state.Done, m.state.Total)
	}
	updated := "never"
	if !m.state.LastRefresh.IsZero() {
		updated = m.state.LastRefresh.Local().Format("15:04:05")
	}
	statusMsg := fmt.Sprintf(" %s | updated %s | %d/%d emails ", phase, updated, len(m.visible), len(m.state.Records))
	if m.pollInterval > 0 {
		statusMsg += fmt.Sprintf("| poll %v ", m.pollInterval)
	}

	var keyHints string
	switch m.currentView {
	case viewDashboard:
		keyHints = m.keys.hints(m.keys.Quit, m.keys.Down, m.keys.Open, m.keys.NextCategory, m.keys.Refresh)
	case viewFocusedEmail:
		keyHints = m.keys.hints(m.keys.Quit, m.keys.Back)
	}
	m.updateStatusBar(statusMsg + "| " + keyHints)
}

func (m *Model) ensureSelectedVisible() {
	if len(m.visible) == 0 {
		m.viewportTopLine = 0
		return
	}

	itemsThatFit := m.getNumItemsThatFitInList()
	if itemsThatFit <= 0 {
		m.viewportTopLine = m.selectedIdx
		return
	}

	if m.selectedIdx < m.viewportTopLine {
		m.viewportTopLine = m.selectedIdx
	} else if m.selectedIdx >= m.viewportTopLine+itemsThatFit {
		m.viewportTopLine = m.selectedIdx - itemsThatFit + 1
	}

	maxTop := len(m.visible) - itemsThatFit
	if maxTop < 0 {
		maxTop = 0
	}
	if m.viewportTopLine > maxTop {
		m.viewportTopLine = maxTop
	}
	if m.viewportTopLine < 0 {
		m.viewportTopLine = 0
	}
}

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing terminal size..."
	}

	contentHeight := m.height - m.chromeHeight()
	if contentHeight < 0 {
		contentHeight = 0
	}

	rows := []string{m.renderPills()}
	if m.state.Loading {
		rows = append(rows, m.renderLoadingLine())
	}

	switch {
	case len(m.state.Records) == 0 && m.state.Loading:
		rows = append(rows, lipgloss.Place(m.width, contentHeight, lipgloss.Center, lipgloss.Center,
			m.spinner.View()+" Loading emails..."))
	case len(m.state.Records) == 0 && m.state.Err != nil:
		msg := ErrorTextStyle.Render("Could not load your inbox") + "\n\n" +
			truncate(m.state.Err.Error(), m.width-4) + "\n\n" + DimStyle.Render("Press r to retry")
		rows = append(rows, lipgloss.Place(m.width, contentHeight, lipgloss.Center, lipgloss.Center, msg))
	case m.currentView == viewFocusedEmail:
		rows = append(rows, m.renderFocusedEmailView(m.width, contentHeight))
	default:
		listW, previewW := m.paneWidths()
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top,
			m.renderEmailList(listW, contentHeight),
			m.renderPreviewPane(previewW, contentHeight),
		))
	}

	rows = append(rows, m.renderStatusBar())
	return AppStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m Model) paneWidths() (int, int) {
	listW := int(float64(m.width) * 0.35)
	if listW < minListPaneWidth {
		listW = minListPaneWidth
	}
	if listW > m.width-minPreviewPaneWidth && m.width > minPreviewPaneWidth {
		listW = m.width - minPreviewPaneWidth
	}
	if m.width < minListPaneWidth+minPreviewPaneWidth {
		if m.width < minListPaneWidth {
			return m.width, 0
		}
		return minListPaneWidth, m.width - minListPaneWidth
	}
	return listW, m.width - listW
}

func (m Model) renderPills() string {
	pills := m.pills()
	parts := make([]string, 0, len(pills))
	counts := inbox.CountsByCategory(m.state.Records)
	for _, p := range pills {
		label := fmt.Sprintf("All %d", len(m.state.Records))
		if p != nil {
			label = fmt.Sprintf("%s %s %d", p.Style().Icon, p.String(), counts[*p])
		}
		parts = append(parts, pillStyle(p, inbox.SameSelection(p, m.state.Selected)).Render(label))
	}
	return PillBarStyle.MaxWidth(m.width).Render(strings.Join(parts, " "))
}

func (m Model) renderLoadingLine() string {
	text := " Fetching emails..."
	pct := 0.0
	if m.state.Phase == app.Classifying {
		text = fmt.Sprintf(" Classifying %d/%d ", m.state.Done, m.state.Total)
		if m.state.Total > 0 {
			pct = float64(m.state.Done) / float64(m.state.Total)
		}
		text += m.progress.ViewAs(pct)
	}
	return m.spinner.View() + text
}

func (m Model) renderEmailList(paneWidth, paneHeight int) string {
	titleText := "All mail"
	if m.state.Selected != nil {
		titleText = m.state.Selected.String()
	}
	title := EmailListTitleStyle.Render(fmt.Sprintf("%s (%d)", titleText, len(m.visible)))

	contentWidth := paneWidth - EmailListItemStyle.GetPaddingLeft() - EmailListItemStyle.GetPaddingRight() - 2 - 2
	if contentWidth < 10 {
		contentWidth = 10
	}

	var body string
	if len(m.visible) == 0 {
		body = DimStyle.Render(" No emails here.\n\n Press tab for another category\n or r to refresh.")
	} else {
		start := m.viewportTopLine
		end := start + m.getNumItemsThatFitInList()
		if start > len(m.visible) {
			start = len(m.visible)
		}
		if end > len(m.visible) {
			end = len(m.visible)
		}
		now := m.now()
		items := make([]string, 0, end-start)
		for i := start; i < end; i++ {
			items = append(items, formatEmailListItem(m.visible[i], i == m.selectedIdx, contentWidth, now))
		}
		body = strings.Join(items, "\n")
	}

	return EmailListStyle.Width(paneWidth).Height(paneHeight).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, body))
}

func (m Model) renderHeaders(r inbox.EmailRecord, width int) string {
	var b strings.Builder
	row := func(k, v string) {
		fmt.Fprintf(&b, "%s %s\n", HeaderKeyStyle.Render(k), HeaderValStyle.Render(truncate(v, width-len(k)-1)))
	}
	row("From:", r.From)
	row("Date:", formatDate(r.Date))
	row("Subject:", r.Subject)
	fmt.Fprintf(&b, "%s %s\n", HeaderKeyStyle.Render("Category:"), categoryBadge(r.Category))
	if len(r.Labels) > 0 {
		row("Labels:", strings.Join(r.Labels, ", "))
	}
	return b.String()
}

func (m Model) renderPreviewPane(paneWidth, paneHeight int) string {
	if paneWidth <= 0 || paneHeight <= 0 {
		return ""
	}
	innerWidth := paneWidth - ContentBoxStyle.GetHorizontalPadding() - 2
	maxContentHeight := paneHeight - lipgloss.Height(TitleStyle.Render(" ")) - ContentBoxStyle.GetVerticalPadding() - 2
	if maxContentHeight < 0 {
		maxContentHeight = 0
	}

	var titleText, content string
	r := m.current()
	if r == nil {
		titleText = "Home"
		content = "\n[mailsort]\n\nNo email selected or list is empty."
	} else {
		titleText = "Preview: " + truncate(r.Subject, paneWidth-(TitleStyle.GetHorizontalPadding()+14))
		content = lipgloss.JoinVertical(lipgloss.Left,
			m.renderHeaders(*r, innerWidth)+strings.Repeat(BoxHorizontal, paneWidth/2),
			BodyStyle.Render(r.Snippet),
		)
	}
	content = lipgloss.NewStyle().Width(innerWidth).MaxHeight(maxContentHeight).Render(content)
	return ContentBoxStyle.Width(paneWidth - 2).Height(paneHeight - 2).Render(
		lipgloss.JoinVertical(lipgloss.Top, TitleStyle.Render(titleText), content))
}

func (m Model) renderFocusedEmailView(paneWidth, paneHeight int) string {
	r := m.current()
	if r == nil || paneWidth <= 0 || paneHeight <= 0 {
		return ""
	}
	innerWidth := paneWidth - ContentBoxStyle.GetHorizontalPadding() - 2

	var b strings.Builder
	b.WriteString(m.renderHeaders(*r, innerWidth))
	fmt.Fprintf(&b, "%s %s\n", HeaderKeyStyle.Render("Thread:"), DimStyle.Render(r.ThreadID))
	fmt.Fprintf(&b, "%s %s\n\n", HeaderKeyStyle.Render("Message:"), DimStyle.Render(r.ID))
	b.WriteString(strings.Repeat(BoxHorizontal, paneWidth/2) + "\n\n")
	b.WriteString(r.Snippet)

	maxContentHeight := paneHeight - lipgloss.Height(TitleStyle.Render(" ")) - ContentBoxStyle.GetVerticalPadding() - 2
	if maxContentHeight < 0 {
		maxContentHeight = 0
	}
	content := lipgloss.NewStyle().Width(innerWidth).MaxHeight(maxContentHeight).Render(b.String())
	title := TitleStyle.Render("Full View: " + truncate(r.Subject, paneWidth-(TitleStyle.GetHorizontalPadding()+15)))
	return ContentBoxStyle.Width(paneWidth - 2).Height(paneHeight - 2).Render(
		lipgloss.JoinVertical(lipgloss.Top, title, content))
}

func (m Model) renderStatusBar() string {
	styleToUse := StatusBarNormalStyle
	if m.statusIsError {
		styleToUse = StatusBarErrorStyle
	} else if m.statusIsTemp {
		styleToUse = StatusBarSuccessStyle
	}
	return styleToUse.Width(m.width).Render(truncate(m.statusBarText, m.width-2))
}
