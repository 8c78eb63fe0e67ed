package gmail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/bassamadnan/mailsort/inbox"
)

type staticToken string

func (s staticToken) CurrentToken(context.Context) (string, error) { return string(s), nil }

type failingToken struct{}

func (failingToken) CurrentToken(context.Context) (string, error) {
	return "", errors.New("keyring locked")
}

type fakeTransport struct {
	ids      []string
	listErr  error
	messages map[string]*RawMessage
	fail     map[string]error

	mu        sync.Mutex
	listCalls int
	getCalls  []string
	cancelled atomic.Int32
}

func (f *fakeTransport) ListMessageIDs(_ context.Context, _ string, maxResults int64) ([]string, error) {
	f.mu.Lock()
	f.listCalls++
	f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	ids := f.ids
	if int64(len(ids)) > maxResults {
		ids = ids[:maxResults]
	}
	return ids, nil
}

func (f *fakeTransport) GetMessage(ctx context.Context, _ string, id string) (*RawMessage, error) {
	f.mu.Lock()
	f.getCalls = append(f.getCalls, id)
	f.mu.Unlock()
	if err, ok := f.fail[id]; ok {
		return nil, err
	}
	if id == "slow" {
		select {
		case <-ctx.Done():
			f.cancelled.Add(1)
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
	return f.messages[id], nil
}

func msg(id, subject, from, date string, labels ...string) *RawMessage {
	var headers []Header
	if subject != "" {
		headers = append(headers, Header{Name: "Subject", Value: subject})
	}
	if from != "" {
		headers = append(headers, Header{Name: "From", Value: from})
	}
	if date != "" {
		headers = append(headers, Header{Name: "Date", Value: date})
	}
	return &RawMessage{ID: id, ThreadID: "t-" + id, Snippet: "snippet " + id, LabelIDs: labels, Headers: headers}
}

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func TestFetchSortsNewestFirst(t *testing.T) {
	tr := &fakeTransport{
		ids: []string{"m1", "m2", "m3"},
		messages: map[string]*RawMessage{
			"m1": msg("m1", "Old", "a@example.com", "Mon, 05 May 2025 09:00:00 +0000"),
			"m2": msg("m2", "New", "b@example.com", "Fri, 09 May 2025 09:00:00 +0000", "INBOX", "UNREAD"),
			"m3": msg("m3", "Mid", "c@example.com", "Wed, 07 May 2025 09:00:00 +0000"),
		},
	}
	f := NewFetcher(staticToken("tok"), tr, WithLogger(quietLogger()))

	records, err := f.Fetch(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"m2", "m3", "m1"}, []string{records[0].ID, records[1].ID, records[2].ID})
	assert.True(t, records[0].Unread)
	assert.False(t, records[1].Unread)
	for _, r := range records {
		assert.Equal(t, inbox.Unclassified, r.Category)
	}
}

func TestFetchTiesBreakOnID(t *testing.T) {
	date := "Fri, 09 May 2025 09:00:00 +0000"
	tr := &fakeTransport{
		ids: []string{"b", "a"},
		messages: map[string]*RawMessage{
			"a": msg("a", "A", "a@example.com", date),
			"b": msg("b", "B", "b@example.com", date),
		},
	}
	records, err := NewFetcher(staticToken("tok"), tr, WithLogger(quietLogger())).Fetch(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, "a", records[0].ID)
	assert.Equal(t, "b", records[1].ID)
}

func TestFetchFallbacks(t *testing.T) {
	fetchedAt := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)
	tr := &fakeTransport{
		ids: []string{"m1"},
		messages: map[string]*RawMessage{
			"m1": {ID: "m1", Headers: []Header{{Name: "subject", Value: "  "}, {Name: "DATE", Value: "not a date"}}},
		},
	}
	f := NewFetcher(staticToken("tok"), tr, WithLogger(quietLogger()), WithClock(func() time.Time { return fetchedAt }))

	records, err := f.Fetch(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, inbox.NoSubject, records[0].Subject)
	assert.Equal(t, inbox.UnknownSender, records[0].From)
	assert.Equal(t, fetchedAt, records[0].Date)
}

func TestFetchEmptyTokenMakesNoCalls(t *testing.T) {
	tr := &fakeTransport{ids: []string{"m1"}}
	_, err := NewFetcher(staticToken(""), tr, WithLogger(quietLogger())).Fetch(context.Background(), 10)
	require.ErrorIs(t, err, ErrUnauthenticated)
	assert.Zero(t, tr.listCalls)
	assert.Empty(t, tr.getCalls)
}

func TestFetchTokenProviderError(t *testing.T) {
	tr := &fakeTransport{}
	_, err := NewFetcher(failingToken{}, tr, WithLogger(quietLogger())).Fetch(context.Background(), 10)

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "token", terr.Op)
	assert.NotErrorIs(t, err, ErrUnauthenticated)
	assert.Contains(t, err.Error(), "keyring locked")
	assert.Zero(t, tr.listCalls)
}

type tokenErr struct{ err error }

func (t tokenErr) CurrentToken(context.Context) (string, error) { return "", t.err }

func TestFetchTokenRefreshErrors(t *testing.T) {
	rejected := &oauth2.RetrieveError{
		Response:  &http.Response{StatusCode: http.StatusBadRequest},
		ErrorCode: "invalid_grant",
	}
	_, err := NewFetcher(tokenErr{fmt.Errorf("refreshing token: %w", rejected)}, &fakeTransport{}, WithLogger(quietLogger())).
		Fetch(context.Background(), 10)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	offline := &url.Error{Op: "Post", URL: "https://oauth2.googleapis.com/token", Err: errors.New("no such host")}
	_, err = NewFetcher(tokenErr{fmt.Errorf("refreshing token: %w", offline)}, &fakeTransport{}, WithLogger(quietLogger())).
		Fetch(context.Background(), 10)
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "token", terr.Op)
	assert.NotErrorIs(t, err, ErrUnauthenticated)

	unavailable := &oauth2.RetrieveError{Response: &http.Response{StatusCode: http.StatusServiceUnavailable}}
	_, err = NewFetcher(tokenErr{unavailable}, &fakeTransport{}, WithLogger(quietLogger())).Fetch(context.Background(), 10)
	assert.NotErrorIs(t, err, ErrUnauthenticated)
}

func TestFetchEmptyListing(t *testing.T) {
	tr := &fakeTransport{}
	records, err := NewFetcher(staticToken("tok"), tr, WithLogger(quietLogger())).Fetch(context.Background(), 10)
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
	assert.Empty(t, tr.getCalls)
}

func TestFetchInvalidLimit(t *testing.T) {
	_, err := NewFetcher(staticToken("tok"), &fakeTransport{}).Fetch(context.Background(), 0)
	assert.ErrorIs(t, err, ErrInvalidLimit)
}

func TestFetchListFailure(t *testing.T) {
	tr := &fakeTransport{listErr: errors.New("502 bad gateway")}
	_, err := NewFetcher(staticToken("tok"), tr, WithLogger(quietLogger())).Fetch(context.Background(), 10)

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "list", terr.Op)
}

func TestFetchDetailFailureAbortsAll(t *testing.T) {
	tr := &fakeTransport{
		ids: []string{"m1", "m2", "slow"},
		messages: map[string]*RawMessage{
			"m1": msg("m1", "One", "a@example.com", "Fri, 09 May 2025 09:00:00 +0000"),
		},
		fail: map[string]error{"m2": errors.New("500 internal")},
	}
	f := NewFetcher(staticToken("tok"), tr, WithLogger(quietLogger()))

	start := time.Now()
	records, err := f.Fetch(context.Background(), 10)
	assert.Nil(t, records)

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "get", terr.Op)
	assert.Equal(t, "m2", terr.ID)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, int32(1), tr.cancelled.Load())
}

func TestFetchUnauthorizedDetail(t *testing.T) {
	tr := &fakeTransport{
		ids:  []string{"m1"},
		fail: map[string]error{"m1": ErrUnauthenticated},
	}
	_, err := NewFetcher(staticToken("tok"), tr, WithLogger(quietLogger())).Fetch(context.Background(), 10)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestParseDate(t *testing.T) {
	want := time.Date(2025, 5, 9, 9, 0, 0, 0, time.UTC)
	for _, in := range []string{
		"Fri, 09 May 2025 09:00:00 +0000",
		"Fri, 9 May 2025 09:00:00 +0000 (UTC)",
		"9 May 2025 09:00:00 +0000",
	} {
		got, ok := parseDate(in)
		require.True(t, ok, in)
		assert.True(t, want.Equal(got), in)
	}
	_, ok := parseDate("yesterday")
	assert.False(t, ok)
}
