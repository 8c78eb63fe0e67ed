package gmail

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnauthenticated is returned when no usable access token is available.
var ErrUnauthenticated = errors.New("not authenticated")

// TransportError wraps a failed or malformed exchange with the mail provider.
type TransportError struct {
	Op  string // "token", "list" or "get"
	ID  string // message id for "get"
	Err error
}

func (e *TransportError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("gmail %s %s: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("gmail %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Header is one name/value pair from a message's header block.
type Header struct {
	Name  string
	Value string
}

// RawMessage is the provider payload for a single message, reduced to the
// fields the fetcher normalizes.
type RawMessage struct {
	ID       string
	ThreadID string
	Snippet  string
	LabelIDs []string
	Headers  []Header
}

// TokenProvider supplies the current bearer token. An empty token with a
// nil error means the user has not signed in.
type TokenProvider interface {
	CurrentToken(ctx context.Context) (string, error)
}

// Transport is the listing and detail surface of the mail provider.
type Transport interface {
	ListMessageIDs(ctx context.Context, token string, maxResults int64) ([]string, error)
	GetMessage(ctx context.Context, token, id string) (*RawMessage, error)
}
