package completion

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampling = Sampling{Temperature: 0, MaxOutputTokens: 50}

func quiet() *log.Logger { return log.New(io.Discard) }

func TestGeminiComplete(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/"+DefaultGeminiModel+":generateContent", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-goog-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"OTP"}]}}]}`))
	}))
	defer srv.Close()

	g, err := NewGemini(context.Background(), "secret", srv.URL+"/", "", time.Second, quiet())
	require.NoError(t, err)

	text, err := g.Complete(context.Background(), "classify me", sampling)
	require.NoError(t, err)
	assert.Equal(t, "OTP", text)

	cfg, ok := body["generationConfig"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 0, cfg["temperature"])
	assert.EqualValues(t, 50, cfg["maxOutputTokens"])
}

func TestGeminiNoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	g, err := NewGemini(context.Background(), "secret", srv.URL+"/", "gemini-2.5-flash", time.Second, quiet())
	require.NoError(t, err)
	_, err = g.Complete(context.Background(), "p", sampling)
	assert.ErrorIs(t, err, ErrNoText)
}

func TestGeminiHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"API key not valid","status":"PERMISSION_DENIED"}}`))
	}))
	defer srv.Close()

	g, err := NewGemini(context.Background(), "bad", srv.URL+"/", "", time.Second, quiet())
	require.NoError(t, err)
	_, err = g.Complete(context.Background(), "p", sampling)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoText)
}

func TestMissingAPIKey(t *testing.T) {
	_, err := NewGemini(context.Background(), " ", "", "", 0, nil)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
	_, err = NewOpenAI("", "", "", 0, nil)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestOpenAIComplete(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"m",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"Promotions"}}]}`))
	}))
	defer srv.Close()

	o, err := NewOpenAI("sk-test", srv.URL, "m", time.Second, quiet())
	require.NoError(t, err)
	text, err := o.Complete(context.Background(), "classify me", sampling)
	require.NoError(t, err)
	assert.Equal(t, "Promotions", text)
	assert.Equal(t, "m", body["model"])
	assert.EqualValues(t, 0, body["temperature"])
	assert.EqualValues(t, 50, body["max_tokens"])
}

func TestOpenAIEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"m","choices":[]}`))
	}))
	defer srv.Close()

	o, err := NewOpenAI("sk-test", srv.URL, "m", time.Second, quiet())
	require.NoError(t, err)
	_, err = o.Complete(context.Background(), "p", sampling)
	assert.ErrorIs(t, err, ErrNoText)
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	calls := 0
	failing := Func(func(context.Context, string, Sampling) (string, error) {
		calls++
		return "", errors.New("503")
	})
	b := NewBreaker("test", failing, quiet())

	for i := 0; i < 3; i++ {
		_, err := b.Complete(context.Background(), "p", sampling)
		require.Error(t, err)
	}
	assert.Equal(t, "open", b.State())

	_, err := b.Complete(context.Background(), "p", sampling)
	require.Error(t, err)
	assert.Equal(t, 3, calls, "open breaker must not reach the provider")
}

func TestBreakerIgnoresEmptyAnswers(t *testing.T) {
	empty := Func(func(context.Context, string, Sampling) (string, error) {
		return "", ErrNoText
	})
	b := NewBreaker("test", empty, quiet())
	for i := 0; i < 5; i++ {
		_, err := b.Complete(context.Background(), "p", sampling)
		assert.ErrorIs(t, err, ErrNoText)
	}
	assert.Equal(t, "closed", b.State())
}

func TestBreakerPassesText(t *testing.T) {
	ok := Func(func(_ context.Context, prompt string, s Sampling) (string, error) {
		return prompt + "!", nil
	})
	text, err := NewBreaker("test", ok, quiet()).Complete(context.Background(), "hi", sampling)
	require.NoError(t, err)
	assert.Equal(t, "hi!", text)
}
