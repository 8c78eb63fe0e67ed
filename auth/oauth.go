package auth

import (
	"context"
	"encoding/json"
	"os"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
)

const (
	tokenKey   = "gmail-token"
	stateToken = "state-token"
)

// LoadConfig reads an OAuth client secret downloaded from the Google console.
func LoadConfig(credentialsFile string) (*oauth2.Config, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read client secret file")
	}
	cfg, err := google.ConfigFromJSON(b, gmail.GmailReadonlyScope)
	if err != nil {
		return nil, errors.Wrap(err, "unable to parse client secret file to config")
	}
	return cfg, nil
}

// OAuthProvider hands out access tokens from a stored OAuth token,
// refreshing and re-saving it when it expires.
type OAuthProvider struct {
	cfg    *oauth2.Config
	store  SecretStore
	logger *log.Logger
}

func NewOAuthProvider(cfg *oauth2.Config, store SecretStore, logger *log.Logger) *OAuthProvider {
	if logger == nil {
		logger = log.Default()
	}
	return &OAuthProvider{cfg: cfg, store: store, logger: logger}
}

// CurrentToken returns a valid access token, or "" when the user never
// signed in.
func (p *OAuthProvider) CurrentToken(ctx context.Context) (string, error) {
	tok, err := p.load()
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	fresh, err := p.cfg.TokenSource(ctx, tok).Token()
	if err != nil {
		return "", errors.Wrap(err, "refreshing token")
	}
	if fresh.AccessToken != tok.AccessToken {
		p.logger.Info("access token refreshed", "expiry", fresh.Expiry)
		if err := p.save(fresh); err != nil {
			p.logger.Warn("could not persist refreshed token", "err", err)
		}
	}
	return fresh.AccessToken, nil
}

// AuthURL is the consent page the user must visit.
func (p *OAuthProvider) AuthURL() string {
	return p.cfg.AuthCodeURL(stateToken, oauth2.AccessTypeOffline)
}

// Login runs the consent flow: prompt shows the URL and returns the code
// the user pasted back.
func (p *OAuthProvider) Login(ctx context.Context, prompt func(authURL string) (string, error)) error {
	code, err := prompt(p.AuthURL())
	if err != nil {
		return errors.Wrap(err, "unable to read authorization code")
	}
	tok, err := p.cfg.Exchange(ctx, code)
	if err != nil {
		return errors.Wrap(err, "unable to retrieve token from web")
	}
	return p.save(tok)
}

// Logout forgets the stored token.
func (p *OAuthProvider) Logout() error {
	return p.store.Delete(tokenKey)
}

func (p *OAuthProvider) load() (*oauth2.Token, error) {
	raw, err := p.store.Get(tokenKey)
	if err != nil {
		return nil, err
	}
	tok := &oauth2.Token{}
	if err := json.Unmarshal([]byte(raw), tok); err != nil {
		return nil, errors.Wrap(err, "decoding stored token")
	}
	return tok, nil
}

func (p *OAuthProvider) save(tok *oauth2.Token) error {
	b, err := json.Marshal(tok)
	if err != nil {
		return errors.Wrap(err, "encoding token")
	}
	return p.store.Set(tokenKey, string(b))
}

// StaticToken is a TokenProvider for a token obtained elsewhere, e.g.
// MAILSORT_ACCESS_TOKEN.
type StaticToken string

func (s StaticToken) CurrentToken(context.Context) (string, error) {
	return string(s), nil
}
