package main

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bassamadnan/mailsort/app"
	"github.com/bassamadnan/mailsort/auth"
	"github.com/bassamadnan/mailsort/config"
	"github.com/bassamadnan/mailsort/inbox"
)

var now = time.Date(2025, 5, 9, 12, 0, 0, 0, time.UTC)

func sample() []inbox.EmailRecord {
	return []inbox.EmailRecord{
		{ID: "a", Subject: "Your OTP code", From: "Bank <noreply@bank.example>", Date: now.Add(-2 * time.Hour), Unread: true, Category: inbox.OTP},
		{ID: "b", Subject: "50% off sale", From: "Shop <deals@shop.example>", Date: now.Add(-3 * time.Hour), Category: inbox.Promotions},
		{ID: "c", Subject: "Pending", From: "x@y.example", Date: now},
	}
}

func TestPrintGroups(t *testing.T) {
	var buf bytes.Buffer
	printGroups(&buf, sample(), nil, now)
	out := buf.String()

	assert.Contains(t, out, "OTP (1)")
	assert.Contains(t, out, "● Your OTP code · Bank · 2h ago")
	assert.Contains(t, out, "Promotions (1)")
	assert.Contains(t, out, "50% off sale · Shop · 3h ago")
	assert.Contains(t, out, "1 emails were not classified")
	assert.NotContains(t, out, "Casinos")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("OTP (1)")), bytes.Index(buf.Bytes(), []byte("Promotions (1)")))
}

func TestPrintGroupsSelected(t *testing.T) {
	var buf bytes.Buffer
	promo := inbox.Promotions
	printGroups(&buf, sample()[:2], &promo, now)
	assert.NotContains(t, buf.String(), "OTP")
	assert.Contains(t, buf.String(), "Promotions (1)")

	buf.Reset()
	printGroups(&buf, nil, nil, now)
	assert.Equal(t, "No emails.\n", buf.String())
}

func TestReportProgress(t *testing.T) {
	events := make(chan app.Event, 4)
	events <- app.Event{Kind: app.StateChanged, State: app.State{Phase: app.Fetching}}
	events <- app.Event{Kind: app.StateChanged, State: app.State{Phase: app.Classifying, Total: 2}}
	events <- app.Event{Kind: app.Progress, State: app.State{Phase: app.Classifying, Done: 1, Total: 2}}
	close(events)

	var buf bytes.Buffer
	reportProgress(&buf, events)
	assert.Contains(t, buf.String(), "Fetching emails...")
	assert.Contains(t, buf.String(), "Classifying 1/2")
	assert.NotContains(t, buf.String(), "Classifying 0/2")
}

func TestValidateMaxEmails(t *testing.T) {
	assert.NoError(t, validateMaxEmails("50"))
	assert.NoError(t, validateMaxEmails(" 500 "))
	assert.Error(t, validateMaxEmails("0"))
	assert.Error(t, validateMaxEmails("501"))
	assert.Error(t, validateMaxEmails("many"))
}

func TestApplySetup(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	secrets := auth.FileStore{Dir: filepath.Join(dir, "secrets")}

	s, err := config.Load("")
	require.NoError(t, err)

	err = applySetup(path, s, secrets, setupAnswers{
		Provider:  config.ProviderOpenAI,
		APIKey:    " sk-test ",
		MaxEmails: "120",
		Frontend:  config.FrontendTview,
	})
	require.NoError(t, err)

	key, err := secrets.Get(auth.OpenAIKey)
	require.NoError(t, err)
	assert.Equal(t, "sk-test", key)

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.ProviderOpenAI, loaded.Classifier.Provider)
	assert.Equal(t, "gpt-4o-mini", loaded.Classifier.Model)
	assert.Equal(t, 120, loaded.Gmail.MaxResults)
	assert.Equal(t, config.FrontendTview, loaded.UI.Frontend)
}

func TestApplySetupKeepsKeyWhenBlank(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := t.TempDir()
	secrets := auth.FileStore{Dir: dir}
	require.NoError(t, secrets.Set(auth.GeminiKey, "old"))

	s, err := config.Load("")
	require.NoError(t, err)
	err = applySetup(filepath.Join(dir, "config.yaml"), s, secrets, setupAnswers{
		Provider: config.ProviderGemini, MaxEmails: "10", Frontend: config.FrontendBubbleTea,
	})
	require.NoError(t, err)

	key, err := secrets.Get(auth.GeminiKey)
	require.NoError(t, err)
	assert.Equal(t, "old", key)
}

func TestApplySetupRejectsBadCount(t *testing.T) {
	t.Chdir(t.TempDir())
	s, err := config.Load("")
	require.NoError(t, err)
	err = applySetup(filepath.Join(t.TempDir(), "c.yaml"), s, auth.FileStore{Dir: t.TempDir()}, setupAnswers{
		Provider: config.ProviderGemini, MaxEmails: "9000", Frontend: config.FrontendBubbleTea,
	})
	assert.ErrorContains(t, err, "max_results")
}

func TestResolveModel(t *testing.T) {
	assert.Equal(t, "gemini-2.5-flash-lite", resolveModel(config.ProviderGemini, "gemini-pro"))
	assert.Equal(t, "gemini-2.5-flash-lite", resolveModel(config.ProviderGemini, "gpt-4o-mini"))
	assert.Equal(t, "gemini-2.5-flash", resolveModel(config.ProviderGemini, "gemini-2.5-flash"))
	assert.Equal(t, "gpt-4o-mini", resolveModel(config.ProviderOpenAI, "gemini-2.5-flash-lite"))
	assert.Equal(t, "gpt-4o-mini", resolveModel(config.ProviderOpenAI, "gemini-pro"))
	assert.Equal(t, "llama3", resolveModel(config.ProviderOpenAI, "llama3"))
}
