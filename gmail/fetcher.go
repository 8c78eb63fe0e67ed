package gmail

import (
	"context"
	"net/http"
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/bassamadnan/mailsort/inbox"
)

const (
	// MaxFetch is the largest listing the provider serves in one page.
	MaxFetch           = maxListResults
	defaultConcurrency = 10
)

// ErrInvalidLimit is returned for a non-positive fetch size.
var ErrInvalidLimit = errors.New("maxResults must be positive")

// Fetcher lists the inbox and normalizes each message into an EmailRecord.
type Fetcher struct {
	tokens      TokenProvider
	transport   Transport
	logger      *log.Logger
	now         func() time.Time
	concurrency int
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

func WithLogger(l *log.Logger) FetcherOption {
	return func(f *Fetcher) { f.logger = l }
}

// WithClock overrides the time source used for missing Date headers.
func WithClock(now func() time.Time) FetcherOption {
	return func(f *Fetcher) { f.now = now }
}

// WithConcurrency caps the number of detail requests in flight.
func WithConcurrency(n int) FetcherOption {
	return func(f *Fetcher) {
		if n > 0 {
			f.concurrency = n
		}
	}
}

func NewFetcher(tokens TokenProvider, transport Transport, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		tokens:      tokens,
		transport:   transport,
		logger:      log.Default(),
		now:         time.Now,
		concurrency: defaultConcurrency,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Fetch returns up to maxResults inbox messages sorted newest first.
// Records come back with Category unset. Any failed detail request fails
// the whole fetch and cancels the requests still in flight.
func (f *Fetcher) Fetch(ctx context.Context, maxResults int) ([]inbox.EmailRecord, error) {
	if maxResults <= 0 {
		return nil, ErrInvalidLimit
	}
	if maxResults > MaxFetch {
		maxResults = MaxFetch
	}

	token, err := f.tokens.CurrentToken(ctx)
	if err != nil {
		return nil, tokenError(err)
	}
	if token == "" {
		return nil, ErrUnauthenticated
	}

	ids, err := f.transport.ListMessageIDs(ctx, token, int64(maxResults))
	if err != nil {
		return nil, &TransportError{Op: "list", Err: err}
	}
	if len(ids) > maxResults {
		ids = ids[:maxResults]
	}
	if len(ids) == 0 {
		return []inbox.EmailRecord{}, nil
	}
	f.logger.Info("fetching message details", "count", len(ids))

	fetchedAt := f.now()
	records := make([]inbox.EmailRecord, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			raw, err := f.transport.GetMessage(gctx, token, id)
			if err != nil {
				return &TransportError{Op: "get", ID: id, Err: err}
			}
			if raw == nil {
				return &TransportError{Op: "get", ID: id, Err: errors.New("empty response")}
			}
			records[i] = f.normalize(raw, id, fetchedAt)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		f.logger.Error("fetch aborted", "err", err)
		return nil, err
	}

	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		return a.ID < b.ID
	})
	return records, nil
}

func (f *Fetcher) normalize(raw *RawMessage, id string, fetchedAt time.Time) inbox.EmailRecord {
	r := inbox.EmailRecord{
		ID:       raw.ID,
		ThreadID: raw.ThreadID,
		Subject:  inbox.NoSubject,
		From:     inbox.UnknownSender,
		Snippet:  raw.Snippet,
		Date:     fetchedAt,
		Labels:   append([]string(nil), raw.LabelIDs...),
	}
	if r.ID == "" {
		r.ID = id
	}
	for _, h := range raw.Headers {
		value := strings.TrimSpace(h.Value)
		if value == "" {
			continue
		}
		switch strings.ToLower(h.Name) {
		case "subject":
			r.Subject = value
		case "from":
			r.From = value
		case "date":
			if t, ok := parseDate(value); ok {
				r.Date = t
			} else {
				f.logger.Warn("could not parse date", "id", r.ID, "value", value)
			}
		}
	}
	r.Unread = r.HasLabel(inbox.UnreadLabel)
	return r
}

// Layouts seen in the wild that net/mail rejects.
var dateLayouts = []string{
	time.RFC1123Z,
	"Mon, 2 Jan 2006 15:04:05 -0700 (MST)",
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 -0700",
	time.RFC1123,
	time.RFC822,
}

// tokenError separates a rejected grant, which needs a new login, from a
// token refresh that could not reach the provider.
func tokenError(err error) error {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) && rerr.Response != nil && rerr.Response.StatusCode < http.StatusInternalServerError {
		return errors.Wrapf(ErrUnauthenticated, "token: %v", err)
	}
	return &TransportError{Op: "token", Err: err}
}

func parseDate(value string) (time.Time, bool) {
	if t, err := mail.ParseDate(value); err == nil {
		return t, true
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	// Drop a trailing "(UTC)" style comment and retry.
	if open := strings.LastIndex(value, " ("); open != -1 {
		if end := strings.LastIndex(value, ")"); end > open {
			trimmed := strings.TrimSpace(value[:open] + value[end+1:])
			for _, layout := range dateLayouts {
				if t, err := time.Parse(layout, trimmed); err == nil {
					return t, true
				}
			}
		}
	}
	return time.Time{}, false
}
