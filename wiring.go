package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/bassamadnan/mailsort/app"
	"github.com/bassamadnan/mailsort/auth"
	"github.com/bassamadnan/mailsort/classify"
	"github.com/bassamadnan/mailsort/completion"
	"github.com/bassamadnan/mailsort/config"
	"github.com/bassamadnan/mailsort/gmail"
	"github.com/bassamadnan/mailsort/logging"
	"github.com/bassamadnan/mailsort/store"
)

// env is what every command needs: settings, loggers and the secret store.
type env struct {
	configPath string
	settings   *config.Settings
	logs       *logging.Factory
	logger     *log.Logger
	secrets    auth.SecretStore
	closers    []io.Closer
}

func loadEnv(c *cli.Context) (*env, error) {
	path := c.String("config")
	settings, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	applyFlagOverrides(c, settings)
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	base, logFile, err := logging.Open(settings.Log.File, settings.Log.Level)
	if err != nil {
		return nil, err
	}
	logs := logging.NewFactory(base, settings.Log.Components)
	e := &env{
		configPath: path,
		settings:   settings,
		logs:       logs,
		logger:     logs.For("main"),
		closers:    []io.Closer{logFile},
	}
	e.secrets = e.openSecrets()
	return e, nil
}

func applyFlagOverrides(c *cli.Context, s *config.Settings) {
	if c.IsSet("max") {
		s.Gmail.MaxResults = c.Int("max")
	}
	if c.IsSet("frontend") {
		s.UI.Frontend = c.String("frontend")
	}
	if c.IsSet("provider") {
		s.Classifier.Provider = c.String("provider")
	}
	if c.IsSet("log-level") {
		s.Log.Level = c.String("log-level")
	}
}

// openSecrets prefers the system keyring and falls back to plain files
// under secrets_dir when no keyring backend is usable.
func (e *env) openSecrets() auth.SecretStore {
	if err := os.MkdirAll(e.settings.SecretsDir, 0o700); err != nil {
		e.logger.Warn("could not create secrets dir", "dir", e.settings.SecretsDir, "err", err)
	}
	ring, err := auth.OpenKeyring(e.settings.SecretsDir)
	if err != nil {
		e.logger.Warn("keyring unavailable, storing secrets in files", "dir", e.settings.SecretsDir, "err", err)
		return auth.FileStore{Dir: e.settings.SecretsDir}
	}
	return ring
}

func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i].Close()
	}
}

func (e *env) oauthProvider() (*auth.OAuthProvider, error) {
	cfg, err := auth.LoadConfig(e.settings.Gmail.CredentialsFile)
	if err != nil {
		return nil, err
	}
	return auth.NewOAuthProvider(cfg, e.secrets, e.logs.For("auth")), nil
}

// tokenProvider never fails: without credentials the fetcher reports
// ErrUnauthenticated and the UI shows it.
func (e *env) tokenProvider() gmail.TokenProvider {
	if tok := e.settings.Gmail.AccessToken; tok != "" {
		return auth.StaticToken(tok)
	}
	p, err := e.oauthProvider()
	if err != nil {
		e.logger.Warn("gmail credentials unavailable", "err", err)
		return auth.StaticToken("")
	}
	return p
}

// completionService returns the configured model behind a circuit breaker,
// or nil when no API key is available.
func (e *env) completionService(ctx context.Context) (completion.Service, error) {
	cs := e.settings.Classifier
	logger := e.logs.For("completion")
	timeout := e.settings.HTTP.Timeout

	var svc completion.Service
	switch cs.Provider {
	case config.ProviderOpenAI:
		key := auth.LookupAPIKey(e.secrets, auth.OpenAIKey)
		if key == "" {
			logger.Warn("no OpenAI API key; messages will be left Uncategorized", "env", auth.EnvVar(auth.OpenAIKey))
			return nil, nil
		}
		o, err := completion.NewOpenAI(key, cs.BaseURL, resolveModel(cs.Provider, cs.Model), timeout, logger)
		if err != nil {
			return nil, err
		}
		svc = o
	default:
		key := auth.LookupAPIKey(e.secrets, auth.GeminiKey)
		if key == "" {
			logger.Warn("no Gemini API key; messages will be left Uncategorized", "env", auth.EnvVar(auth.GeminiKey))
			return nil, nil
		}
		g, err := completion.NewGemini(ctx, key, cs.BaseURL, resolveModel(cs.Provider, cs.Model), timeout, logger)
		if err != nil {
			return nil, err
		}
		svc = g
	}
	return completion.NewBreaker(cs.Provider, svc, logger), nil
}

// resolveModel swaps in the provider default when the configured model
// belongs to the other provider or has been retired.
func resolveModel(provider, model string) string {
	if provider == config.ProviderOpenAI {
		if model == completion.DefaultGeminiModel || model == completion.RetiredGeminiModel {
			return completion.DefaultOpenAIModel
		}
		return model
	}
	switch model {
	case completion.DefaultOpenAIModel, completion.RetiredGeminiModel:
		return completion.DefaultGeminiModel
	}
	return model
}

// buildOrchestrator wires fetcher, classifier, filters and cache.
func (e *env) buildOrchestrator(ctx context.Context, withCache bool) (*app.Orchestrator, error) {
	s := e.settings

	client := gmail.NewClient(
		gmail.WithQuery(s.Gmail.Query),
		gmail.WithTimeout(s.HTTP.Timeout),
		gmail.WithClientLogger(e.logs.For("gmail")),
	)
	fetcher := gmail.NewFetcher(e.tokenProvider(), client, gmail.WithLogger(e.logs.For("fetcher")))

	svc, err := e.completionService(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "creating completion client")
	}
	classifier := classify.New(svc,
		classify.WithSampling(completion.Sampling{
			Temperature:     s.Classifier.Temperature,
			MaxOutputTokens: s.Classifier.MaxOutputTokens,
		}),
		classify.WithLogger(e.logs.For("classify")),
	)
	batch := classify.NewBatch(classifier, s.Classifier.Delay, e.logs.For("classify"))

	filters, err := config.NewManager(s.FiltersFile)
	if err != nil {
		return nil, errors.Wrap(err, "loading filters")
	}

	opts := []app.Option{
		app.WithFilter(filters),
		app.WithLogger(e.logs.For("app")),
		app.WithMaxResults(s.Gmail.MaxResults),
	}
	if withCache && s.Cache.Enabled {
		if db := e.openCache(ctx); db != nil {
			opts = append(opts, app.WithCache(db, s.Cache.TTL))
		}
	}
	return app.New(fetcher, batch, opts...), nil
}

// openCache opens the SQLite cache and drops expired classifications. A
// broken cache only costs extra model calls, so errors are logged.
func (e *env) openCache(ctx context.Context) *store.SQLiteStore {
	path := e.settings.Cache.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		e.logger.Warn("cache disabled", "err", err)
		return nil
	}
	db, err := store.NewSQLiteStore(path)
	if err != nil {
		e.logger.Warn("cache disabled", "path", path, "err", err)
		return nil
	}
	e.closers = append(e.closers, db)
	if n, err := db.Prune(ctx, time.Now().Add(-e.settings.Cache.TTL)); err != nil {
		e.logger.Warn("pruning cache", "err", err)
	} else if n > 0 {
		e.logger.Debug("pruned cached classifications", "count", n)
	}
	return db
}
