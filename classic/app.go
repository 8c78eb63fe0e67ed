// Package classic is the tview front-end. It shows the same inbox as the
// Bubble Tea dashboard with a category bar, message list and preview.
package classic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/bassamadnan/mailsort/app"
	"github.com/bassamadnan/mailsort/inbox"
)

// Source is the orchestrator surface the classic UI drives.
type Source interface {
	State() app.State
	Refresh(ctx context.Context) error
	SelectCategory(c *inbox.Category)
	Subscribe() <-chan app.Event
}

type App struct {
	*tview.Application
	rootPages        *tview.Pages
	dashboardFlex    *tview.Flex
	categoryBar      *tview.TextView
	emailListView    *EmailListView
	previewPane      *PreviewPane
	focusedEmailView *FocusedEmailView
	statusBar        *tview.TextView

	ctx          context.Context
	source       Source
	events       <-chan app.Event
	logger       *log.Logger
	now          func() time.Time
	pollInterval time.Duration
	stopped      chan struct{}

	state app.State
}

type Option func(*App)

func WithLogger(l *log.Logger) Option {
	return func(a *App) { a.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

func WithPollInterval(d time.Duration) Option {
	return func(a *App) { a.pollInterval = d }
}

// NewApp builds the widget tree and subscribes to src.
func NewApp(ctx context.Context, src Source, opts ...Option) *App {
	tuiApp := &App{
		Application: tview.NewApplication(),
		ctx:         ctx,
		source:      src,
		events:      src.Subscribe(),
		logger:      log.Default(),
		now:         time.Now,
		stopped:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(tuiApp)
	}

	tuiApp.emailListView = NewEmailListView(tuiApp)
	tuiApp.previewPane = NewPreviewPane()
	tuiApp.focusedEmailView = NewFocusedEmailView()

	tuiApp.categoryBar = tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false)
	tuiApp.categoryBar.SetBackgroundColor(tcell.ColorDefault)

	tuiApp.dashboardFlex = tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(tuiApp.emailListView.List, 0, 1, true).
		AddItem(tuiApp.previewPane, 0, 2, false)
	tuiApp.dashboardFlex.SetBackgroundColor(tcell.ColorDefault)

	tuiApp.statusBar = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	tuiApp.statusBar.SetBackgroundColor(tcell.ColorDefault)

	mainLayoutWithStatus := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(tuiApp.categoryBar, 1, 0, false).
		AddItem(tuiApp.dashboardFlex, 0, 1, true).
		AddItem(tuiApp.statusBar, 1, 0, false)
	mainLayoutWithStatus.SetBackgroundColor(tcell.ColorDefault)

	tuiApp.rootPages = tview.NewPages().
		AddPage(PageDashboard, mainLayoutWithStatus, true, true).
		AddPage(PageFocusedEmail, tuiApp.focusedEmailView, true, false)

	tuiApp.Application.SetRoot(tuiApp.rootPages, true).EnableMouse(true)
	tuiApp.setGlobalKeybindings()

	tuiApp.applyState(src.State())
	return tuiApp
}

func (a *App) Run() error {
	go a.processEvents()
	go a.updateStatusTimer()
	a.Application.SetFocus(a.emailListView.List)
	defer close(a.stopped)
	return a.Application.Run()
}

func (a *App) setGlobalKeybindings() {
	a.Application.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if a.handleKey(event) {
			return nil
		}
		return event
	})
}

// handleKey reports whether the event was consumed.
func (a *App) handleKey(event *tcell.EventKey) bool {
	currentPage, _ := a.rootPages.GetFrontPage()
	switch event.Key() {
	case tcell.KeyCtrlC:
		a.Stop()
		return true
	case tcell.KeyEscape:
		if currentPage == PageFocusedEmail {
			a.ShowDashboardView()
			return true
		}
	case tcell.KeyTab:
		a.cycleCategory(1)
		return true
	case tcell.KeyBacktab:
		a.cycleCategory(-1)
		return true
	case tcell.KeyRune:
		switch event.Rune() {
		case 'q', 'Q':
			a.Stop()
			return true
		case 'r':
			a.startRefresh()
			return true
		case 'a':
			a.selectCategory(nil)
			return true
		}
	}
	return false
}

func (a *App) startRefresh() {
	if a.state.Loading {
		a.statusBar.SetText(" [yellow]Refresh already running[-]")
		return
	}
	go func() {
		err := a.source.Refresh(a.ctx)
		if err != nil && !errors.Is(err, app.ErrSuperseded) && !errors.Is(err, context.Canceled) {
			a.logger.Warn("refresh failed", "err", err)
		}
	}()
}

func (a *App) cycleCategory(dir int) {
	a.selectCategory(inbox.Cycle(inbox.Choices(a.state.Records, a.state.Selected), a.state.Selected, dir))
}

func (a *App) selectCategory(c *inbox.Category) {
	if inbox.SameSelection(c, a.state.Selected) {
		return
	}
	a.source.SelectCategory(c)
	s := a.state
	s.Selected = c
	a.applyState(s)
}

func (a *App) processEvents() {
	for {
		select {
		case <-a.stopped:
			return
		case ev, ok := <-a.events:
			if !ok {
				a.logger.Debug("event channel closed")
				return
			}
			a.QueueUpdateDraw(func() { a.applyState(ev.State) })
		}
	}
}

func (a *App) updateStatusTimer() {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-a.stopped:
			return
		case <-ticker.C:
			a.QueueUpdateDraw(a.setStandardStatusMessage)
		}
	}
}

// applyState redraws every widget from s. Must run on the UI goroutine
// once the application is running.
func (a *App) applyState(s app.State) {
	a.state = s
	a.categoryBar.SetText(renderCategoryBar(s.Records, s.Selected))
	a.emailListView.SetRecords(inbox.Filter(s.Records, s.Selected), s)
	a.setStandardStatusMessage()
}

func (a *App) setStandardStatusMessage() {
	s := a.state
	var status string
	switch {
	case s.Phase == app.Failed && s.Err != nil:
		status = fmt.Sprintf("[red::b]Error:[-::-] %s", tview.Escape(s.Err.Error()))
	case s.Phase == app.Fetching:
		status = "[yellow]Fetching emails...[-]"
	case s.Phase == app.Classifying:
		status = fmt.Sprintf("[yellow]Classifying %d/%d[-]", s.Done, s.Total)
	default:
		updated := "never"
		if !s.LastRefresh.IsZero() {
			updated = s.LastRefresh.Local().Format("15:04:05")
		}
		status = fmt.Sprintf("[::d]%s | updated %s", s.Phase, updated)
	}
	if a.pollInterval > 0 {
		status += fmt.Sprintf(" | poll %v", a.pollInterval)
	}
	status += fmt.Sprintf(" | %d emails | [::b]Q[::-]:Quit [::b]Tab[::-]:Category [::b]R[::-]:Refresh [::b]Ent[::-]:Full [::b]Esc[::-]:Back",
		a.emailListView.GetItemCount())
	a.statusBar.SetText(" " + status)
}

func (a *App) UpdatePreviewPane(r inbox.EmailRecord) {
	a.previewPane.SetEmailContent(r)
}

func (a *App) ShowWelcomeMessageInPreview() {
	a.previewPane.SetWelcomeMessage(a.state)
}

func (a *App) ShowFocusedEmailView(r inbox.EmailRecord) {
	a.focusedEmailView.SetEmailContent(r)
	a.rootPages.SwitchToPage(PageFocusedEmail)
	a.Application.SetFocus(a.focusedEmailView.textView)
}

func (a *App) ShowDashboardView() {
	a.rootPages.SwitchToPage(PageDashboard)
	a.Application.SetFocus(a.emailListView.List)
}
