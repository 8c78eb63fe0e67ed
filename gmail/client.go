package gmail

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	user           = "me"
	inboxLabel     = "INBOX"
	maxListResults = 500 // Gmail's page size cap
	defaultTimeout = 30 * time.Second
)

// Only these headers are requested; the body is never read.
var metadataHeaders = []string{"Subject", "From", "Date"}

// Client talks to the Gmail REST API with a caller-supplied bearer token.
type Client struct {
	query   string
	timeout time.Duration
	opts    []option.ClientOption
	logger  *log.Logger

	mu       sync.Mutex
	srv      *gmail.Service
	srvToken string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithQuery sets the Gmail search query applied to the inbox listing.
func WithQuery(q string) ClientOption {
	return func(c *Client) { c.query = q }
}

// WithTimeout bounds every HTTP request made by the client.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithServiceOptions passes extra options to gmail.NewService (endpoint overrides in tests).
func WithServiceOptions(opts ...option.ClientOption) ClientOption {
	return func(c *Client) { c.opts = append(c.opts, opts...) }
}

// WithClientLogger sets the logger.
func WithClientLogger(l *log.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{timeout: defaultTimeout, logger: log.Default()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// service returns a Gmail service bound to token, reusing the last one while
// the token is unchanged.
func (c *Client) service(token string) (*gmail.Service, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.srv != nil && c.srvToken == token {
		return c.srv, nil
	}

	base := &http.Client{Timeout: c.timeout}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))
	httpClient.Timeout = c.timeout

	opts := append([]option.ClientOption{option.WithHTTPClient(httpClient)}, c.opts...)
	srv, err := gmail.NewService(context.Background(), opts...)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create Gmail service")
	}
	c.srv, c.srvToken = srv, token
	return srv, nil
}

// ListMessageIDs returns up to maxResults inbox message ids, newest first as
// the provider orders them.
func (c *Client) ListMessageIDs(ctx context.Context, token string, maxResults int64) ([]string, error) {
	srv, err := c.service(token)
	if err != nil {
		return nil, err
	}
	if maxResults > maxListResults {
		maxResults = maxListResults
	}

	call := srv.Users.Messages.List(user).LabelIds(inboxLabel).MaxResults(maxResults)
	if c.query != "" {
		call = call.Q(c.query)
	}
	resp, err := call.Context(ctx).Do()
	if err != nil {
		return nil, authError(err)
	}

	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		if m == nil || m.Id == "" {
			continue
		}
		ids = append(ids, m.Id)
	}
	c.logger.Debug("listed messages", "count", len(ids), "query", c.query)
	return ids, nil
}

// GetMessage fetches the metadata of one message.
func (c *Client) GetMessage(ctx context.Context, token, id string) (*RawMessage, error) {
	srv, err := c.service(token)
	if err != nil {
		return nil, err
	}
	msg, err := srv.Users.Messages.Get(user, id).
		Format("metadata").
		MetadataHeaders(metadataHeaders...).
		Context(ctx).
		Do()
	if err != nil {
		return nil, authError(err)
	}
	return toRawMessage(msg)
}

func toRawMessage(msg *gmail.Message) (*RawMessage, error) {
	if msg == nil || msg.Id == "" {
		return nil, errors.New("malformed message: missing id")
	}
	if msg.Payload == nil {
		return nil, fmt.Errorf("malformed message %s: missing payload", msg.Id)
	}
	raw := &RawMessage{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Snippet:  msg.Snippet,
		LabelIDs: append([]string(nil), msg.LabelIds...),
		Headers:  make([]Header, 0, len(msg.Payload.Headers)),
	}
	for _, h := range msg.Payload.Headers {
		if h == nil {
			continue
		}
		raw.Headers = append(raw.Headers, Header{Name: h.Name, Value: h.Value})
	}
	return raw, nil
}

// authError marks HTTP 401 responses as ErrUnauthenticated.
func authError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusUnauthorized {
		return fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	return err
}
