package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	FrontendBubbleTea = "bubbletea"
	FrontendTview     = "tview"

	envPrefix = "MAILSORT"
)

type GmailSettings struct {
	MaxResults      int    `mapstructure:"max_results" yaml:"max_results"`
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file"`
	Query           string `mapstructure:"query" yaml:"query"`
	// PollInterval refreshes in the background while the UI is open; 0 disables it.
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	// AccessToken bypasses the OAuth flow; set it through MAILSORT_GMAIL_ACCESS_TOKEN.
	AccessToken string `mapstructure:"access_token" yaml:"-"`
}

type ClassifierSettings struct {
	Provider        string        `mapstructure:"provider" yaml:"provider"`
	Model           string        `mapstructure:"model" yaml:"model"`
	BaseURL         string        `mapstructure:"base_url" yaml:"base_url"`
	Delay           time.Duration `mapstructure:"delay" yaml:"delay"`
	Temperature     float64       `mapstructure:"temperature" yaml:"temperature"`
	MaxOutputTokens int64         `mapstructure:"max_output_tokens" yaml:"max_output_tokens"`
}

type HTTPSettings struct {
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type UISettings struct {
	Frontend string `mapstructure:"frontend" yaml:"frontend"`
}

type CacheSettings struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	Path    string        `mapstructure:"path" yaml:"path"`
	TTL     time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

type LogSettings struct {
	File       string            `mapstructure:"file" yaml:"file"`
	Level      string            `mapstructure:"level" yaml:"level"`
	Components map[string]string `mapstructure:"components" yaml:"components"`
}

// Settings is the application configuration.
type Settings struct {
	Gmail       GmailSettings      `mapstructure:"gmail" yaml:"gmail"`
	Classifier  ClassifierSettings `mapstructure:"classifier" yaml:"classifier"`
	HTTP        HTTPSettings       `mapstructure:"http" yaml:"http"`
	UI          UISettings         `mapstructure:"ui" yaml:"ui"`
	Cache       CacheSettings      `mapstructure:"cache" yaml:"cache"`
	Log         LogSettings        `mapstructure:"log" yaml:"log"`
	FiltersFile string             `mapstructure:"filters_file" yaml:"filters_file"`
	SecretsDir  string             `mapstructure:"secrets_dir" yaml:"secrets_dir"`
}

// DefaultDir returns ~/.config/mailsort.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "mailsort")
}

// DefaultPath returns the default location of config.yaml.
func DefaultPath() string {
	return filepath.Join(DefaultDir(), "config.yaml")
}

func setDefaults(v *viper.Viper) {
	dir := DefaultDir()
	v.SetDefault("gmail.max_results", 50)
	v.SetDefault("gmail.credentials_file", "credentials.json")
	v.SetDefault("gmail.query", "in:inbox -in:draft")
	v.SetDefault("gmail.poll_interval", time.Duration(0))
	v.SetDefault("gmail.access_token", "")
	v.SetDefault("classifier.provider", ProviderGemini)
	v.SetDefault("classifier.model", "gemini-2.5-flash-lite")
	v.SetDefault("classifier.base_url", "")
	v.SetDefault("classifier.delay", 200*time.Millisecond)
	v.SetDefault("classifier.temperature", 0.0)
	v.SetDefault("classifier.max_output_tokens", 50)
	v.SetDefault("http.timeout", 30*time.Second)
	v.SetDefault("ui.frontend", FrontendBubbleTea)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.path", filepath.Join(dir, "cache.db"))
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("log.file", "mailsort.log")
	v.SetDefault("log.level", "info")
	v.SetDefault("filters_file", filepath.Join(dir, "filters.json"))
	v.SetDefault("secrets_dir", filepath.Join(dir, "secrets"))
}

// Load reads path (a missing file is fine), applies defaults, then lets
// .env and MAILSORT_* environment variables override, e.g.
// MAILSORT_GMAIL_MAX_RESULTS=100.
func Load(path string) (*Settings, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			_, isPathErr := err.(*os.PathError)
			_, isNotFound := err.(viper.ConfigFileNotFoundError)
			if !isPathErr && !isNotFound {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	s := &Settings{}
	if err := v.Unmarshal(s); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks ranges and enumerations.
func (s *Settings) Validate() error {
	if s.Gmail.MaxResults < 1 || s.Gmail.MaxResults > 500 {
		return fmt.Errorf("gmail.max_results must be between 1 and 500, got %d", s.Gmail.MaxResults)
	}
	switch s.Classifier.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("classifier.provider must be %q or %q, got %q", ProviderGemini, ProviderOpenAI, s.Classifier.Provider)
	}
	switch s.UI.Frontend {
	case FrontendBubbleTea, FrontendTview:
	default:
		return fmt.Errorf("ui.frontend must be %q or %q, got %q", FrontendBubbleTea, FrontendTview, s.UI.Frontend)
	}
	if s.Gmail.PollInterval < 0 {
		return fmt.Errorf("gmail.poll_interval must not be negative")
	}
	if s.Classifier.Delay < 0 {
		return fmt.Errorf("classifier.delay must not be negative")
	}
	if s.Classifier.MaxOutputTokens <= 0 {
		return fmt.Errorf("classifier.max_output_tokens must be positive")
	}
	return nil
}

// Save writes the user-editable parts of s to path as YAML.
func Save(path string, s *Settings) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.Set("gmail.max_results", s.Gmail.MaxResults)
	v.Set("gmail.credentials_file", s.Gmail.CredentialsFile)
	v.Set("gmail.query", s.Gmail.Query)
	v.Set("gmail.poll_interval", s.Gmail.PollInterval.String())
	v.Set("classifier.provider", s.Classifier.Provider)
	v.Set("classifier.model", s.Classifier.Model)
	v.Set("classifier.base_url", s.Classifier.BaseURL)
	v.Set("classifier.delay", s.Classifier.Delay.String())
	v.Set("ui.frontend", s.UI.Frontend)
	v.Set("cache.enabled", s.Cache.Enabled)
	v.Set("cache.ttl", s.Cache.TTL.String())

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}
