package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/bassamadnan/mailsort/app"
	"github.com/bassamadnan/mailsort/auth"
	"github.com/bassamadnan/mailsort/classic"
	"github.com/bassamadnan/mailsort/completion"
	"github.com/bassamadnan/mailsort/config"
	"github.com/bassamadnan/mailsort/gmail"
	"github.com/bassamadnan/mailsort/inbox"
	"github.com/bassamadnan/mailsort/tui"
)

func newCLI() *cli.App {
	return &cli.App{
		Name:  "mailsort",
		Usage: "sort your Gmail inbox into categories with an LLM",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Value: config.DefaultPath(), Usage: "path to config.yaml"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
			&cli.IntFlag{Name: "max", Aliases: []string{"n"}, Usage: "number of emails to fetch (1-500)"},
			&cli.StringFlag{Name: "provider", Usage: "classifier provider: gemini or openai"},
			&cli.StringFlag{Name: "frontend", Usage: "bubbletea or tview"},
		},
		Action: runAction,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "open the inbox dashboard (default)",
				Action: runAction,
			},
			{
				Name:  "list",
				Usage: "fetch, classify and print the inbox grouped by category",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "category", Usage: "only print this category"},
					&cli.BoolFlag{Name: "cache", Value: true, Usage: "reuse recent classifications"},
				},
				Action: listAction,
			},
			{
				Name:   "login",
				Usage:  "authorize read-only Gmail access",
				Action: loginAction,
			},
			{
				Name:  "logout",
				Usage: "forget the stored Gmail token",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "keys", Usage: "also remove stored API keys"},
				},
				Action: logoutAction,
			},
			{
				Name:   "setup",
				Usage:  "choose a classifier, store its API key and set defaults",
				Action: setupAction,
			},
			{
				Name:  "mute",
				Usage: "hide senders or subject keywords from the inbox",
				Subcommands: []*cli.Command{
					{
						Name:      "sender",
						ArgsUsage: "<address or name>",
						Flags:     []cli.Flag{&cli.BoolFlag{Name: "remove", Usage: "unmute instead"}},
						Action:    muteAction(muteSender),
					},
					{
						Name:      "keyword",
						ArgsUsage: "<subject keyword>",
						Flags:     []cli.Flag{&cli.BoolFlag{Name: "remove", Usage: "unmute instead"}},
						Action:    muteAction(muteKeyword),
					},
					{
						Name:   "show",
						Usage:  "print the current mute lists",
						Action: showMutesAction,
					},
				},
			},
		},
	}
}

func runAction(c *cli.Context) error {
	e, err := loadEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	e.logger.Info("Application starting...", "frontend", e.settings.UI.Frontend, "max", e.settings.Gmail.MaxResults)
	orch, err := e.buildOrchestrator(ctx, true)
	if err != nil {
		return err
	}
	defer orch.Close()
	if err := orch.Restore(ctx); err != nil {
		e.logger.Warn("could not restore last inbox", "err", err)
	}

	poll := e.settings.Gmail.PollInterval
	switch e.settings.UI.Frontend {
	case config.FrontendTview:
		ui := classic.NewApp(ctx, orch, classic.WithLogger(e.logs.For("ui")), classic.WithPollInterval(poll))
		go func() {
			<-ctx.Done()
			ui.Stop()
		}()
		go startPipeline(ctx, orch, poll, e.logger)
		err = ui.Run()
	default:
		model := tui.NewModel(ctx, orch, tui.WithPollInterval(poll))
		p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
		go startPipeline(ctx, orch, poll, e.logger)
		_, err = p.Run()
		if errors.Is(err, tea.ErrProgramKilled) {
			err = nil
		}
	}
	if err != nil {
		return errors.Wrap(err, "running UI")
	}
	e.logger.Info("UI stopped. Exiting.")
	return nil
}

// startPipeline runs the first refresh and then keeps polling.
func startPipeline(ctx context.Context, orch *app.Orchestrator, poll time.Duration, logger *log.Logger) {
	if err := orch.Refresh(ctx); err != nil && !errors.Is(err, app.ErrSuperseded) && !errors.Is(err, context.Canceled) {
		logger.Error("initial refresh failed", "err", err)
	}
	orch.Poll(ctx, poll)
}

func listAction(c *cli.Context) error {
	var selected *inbox.Category
	if name := c.String("category"); name != "" {
		cat, ok := inbox.ParseCategory(name)
		if !ok || !cat.Valid() {
			return cli.Exit(fmt.Sprintf("unknown category %q", name), 2)
		}
		selected = &cat
	}

	e, err := loadEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	orch, err := e.buildOrchestrator(c.Context, c.Bool("cache"))
	if err != nil {
		return err
	}
	events := orch.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		reportProgress(os.Stderr, events)
	}()

	err = orch.Refresh(c.Context)
	orch.Close()
	<-done
	if err != nil {
		if errors.Is(err, gmail.ErrUnauthenticated) {
			return cli.Exit("not signed in to Gmail; run `mailsort login` first", 1)
		}
		return err
	}

	printGroups(os.Stdout, orch.State().Records, selected, time.Now())
	return nil
}

// reportProgress writes a single updating progress line until events closes.
func reportProgress(w io.Writer, events <-chan app.Event) {
	wrote := false
	for ev := range events {
		switch ev.State.Phase {
		case app.Fetching:
			fmt.Fprint(w, "\rFetching emails...")
			wrote = true
		case app.Classifying:
			if ev.Kind == app.Progress {
				fmt.Fprintf(w, "\rClassifying %d/%d   ", ev.State.Done, ev.State.Total)
				wrote = true
			}
		}
	}
	if wrote {
		fmt.Fprintln(w)
	}
}

// printGroups prints non-empty categories in declaration order, each with
// its records in inbox order.
func printGroups(w io.Writer, records []inbox.EmailRecord, selected *inbox.Category, now time.Time) {
	groups := inbox.GroupByCategory(records)
	printed := 0
	for _, cc := range inbox.NonEmpty(inbox.OrderedCounts(records)) {
		if selected != nil && cc.Category != *selected {
			continue
		}
		st := cc.Category.Style()
		header := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(st.Color)).
			Render(fmt.Sprintf("%s %s (%d)", st.Icon, cc.Category, cc.Count))
		fmt.Fprintln(w, header)
		for _, r := range groups[cc.Category] {
			marker := " "
			if r.Unread {
				marker = "●"
			}
			fmt.Fprintf(w, "  %s %s · %s · %s\n", marker, r.Subject, r.SenderName(), inbox.RelativeTime(r.Date, now))
		}
		fmt.Fprintln(w)
		printed++
	}

	unclassified := 0
	for _, r := range records {
		if !r.Classified() {
			unclassified++
		}
	}
	if unclassified > 0 {
		fmt.Fprintf(w, "%d emails were not classified\n", unclassified)
	}
	if printed == 0 && unclassified == 0 {
		fmt.Fprintln(w, "No emails.")
	}
}

func loginAction(c *cli.Context) error {
	e, err := loadEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	p, err := e.oauthProvider()
	if err != nil {
		return errors.Wrapf(err, "gmail credentials (download an OAuth client JSON to %s)", e.settings.Gmail.CredentialsFile)
	}
	if err := p.Login(c.Context, promptForCode); err != nil {
		return err
	}
	fmt.Println("Signed in to Gmail.")
	return nil
}

func promptForCode(authURL string) (string, error) {
	fmt.Printf("Open this URL in your browser and authorize mailsort:\n\n%s\n\n", authURL)
	var code string
	err := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Authorization code").
			Value(&code).
			Validate(validateRequired("Authorization code")),
	)).Run()
	return strings.TrimSpace(code), err
}

func logoutAction(c *cli.Context) error {
	e, err := loadEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	p, err := e.oauthProvider()
	if err != nil {
		return err
	}
	if err := p.Logout(); err != nil {
		return err
	}
	if c.Bool("keys") {
		for _, k := range []string{auth.GeminiKey, auth.OpenAIKey} {
			if err := e.secrets.Delete(k); err != nil {
				return errors.Wrapf(err, "removing %s", k)
			}
		}
	}
	fmt.Println("Signed out.")
	return nil
}

// setupAnswers holds what the setup form collects.
type setupAnswers struct {
	Provider  string
	APIKey    string
	MaxEmails string
	Frontend  string
}

func setupAction(c *cli.Context) error {
	e, err := loadEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	s := e.settings
	answers := setupAnswers{
		Provider:  s.Classifier.Provider,
		MaxEmails: strconv.Itoa(s.Gmail.MaxResults),
		Frontend:  s.UI.Frontend,
	}
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Classifier").
				Options(
					huh.NewOption("Google Gemini", config.ProviderGemini),
					huh.NewOption("OpenAI", config.ProviderOpenAI),
				).
				Value(&answers.Provider),
			huh.NewInput().
				Title("API key").
				Description("Leave empty to keep the stored key").
				EchoMode(huh.EchoModePassword).
				Value(&answers.APIKey),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Emails per refresh").
				Description("Between 1 and 500").
				Value(&answers.MaxEmails).
				Validate(validateMaxEmails),
			huh.NewSelect[string]().
				Title("Interface").
				Options(
					huh.NewOption("Dashboard (Bubble Tea)", config.FrontendBubbleTea),
					huh.NewOption("Classic (tview)", config.FrontendTview),
				).
				Value(&answers.Frontend),
		),
	)
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil
		}
		return err
	}
	if err := applySetup(e.configPath, s, e.secrets, answers); err != nil {
		return err
	}
	fmt.Printf("Saved settings to %s\n", e.configPath)
	return nil
}

// applySetup stores the API key and persists the settings.
func applySetup(path string, s *config.Settings, secrets auth.SecretStore, a setupAnswers) error {
	n, err := strconv.Atoi(strings.TrimSpace(a.MaxEmails))
	if err != nil {
		return errors.Wrap(err, "emails per refresh")
	}

	if a.Provider != s.Classifier.Provider {
		switch a.Provider {
		case config.ProviderOpenAI:
			s.Classifier.Model = completion.DefaultOpenAIModel
		case config.ProviderGemini:
			s.Classifier.Model = completion.DefaultGeminiModel
		}
	}
	s.Classifier.Provider = a.Provider
	s.Gmail.MaxResults = n
	s.UI.Frontend = a.Frontend
	if err := s.Validate(); err != nil {
		return err
	}

	if key := strings.TrimSpace(a.APIKey); key != "" {
		name := auth.GeminiKey
		if a.Provider == config.ProviderOpenAI {
			name = auth.OpenAIKey
		}
		if err := secrets.Set(name, key); err != nil {
			return errors.Wrap(err, "storing API key")
		}
	}
	return config.Save(path, s)
}

func validateRequired(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func validateMaxEmails(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 || n > gmail.MaxFetch {
		return fmt.Errorf("enter a number between 1 and %d", gmail.MaxFetch)
	}
	return nil
}

type muteKind int

const (
	muteSender muteKind = iota
	muteKeyword
)

func muteAction(kind muteKind) cli.ActionFunc {
	return func(c *cli.Context) error {
		value := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
		if value == "" {
			return cli.Exit("nothing to mute", 2)
		}
		m, err := filtersManager(c)
		if err != nil {
			return err
		}
		remove := c.Bool("remove")
		switch {
		case kind == muteSender && remove:
			err = m.RemoveIgnoreSender(value)
		case kind == muteSender:
			err = m.AddIgnoreSender(value)
		case remove:
			err = m.RemoveIgnoreKeywordInSubject(value)
		default:
			err = m.AddIgnoreKeywordInSubject(value)
		}
		return err
	}
}

func showMutesAction(c *cli.Context) error {
	m, err := filtersManager(c)
	if err != nil {
		return err
	}
	f := m.GetFilters()
	fmt.Println("Muted senders:")
	for _, s := range f.IgnoreSenders {
		fmt.Println("  " + s)
	}
	fmt.Println("Muted subject keywords:")
	for _, k := range f.IgnoreKeywordsInSubject {
		fmt.Println("  " + k)
	}
	return nil
}

func filtersManager(c *cli.Context) (*config.Manager, error) {
	s, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	return config.NewManager(s.FiltersFile)
}
