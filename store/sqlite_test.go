package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bassamadnan/mailsort/inbox"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sample() []inbox.EmailRecord {
	base := time.Date(2025, 5, 9, 9, 0, 0, 0, time.UTC)
	return []inbox.EmailRecord{
		{ID: "a", ThreadID: "t1", Subject: "Your OTP code", From: "Bank <noreply@bank.com>", Snippet: "123456",
			Date: base, Unread: true, Labels: []string{"INBOX", "UNREAD"}, Category: inbox.OTP},
		{ID: "b", ThreadID: "t2", Subject: "50% off sale", From: "shop@example.com",
			Date: base.Add(-time.Hour), Labels: []string{"INBOX"}, Category: inbox.Promotions},
		{ID: "c", ThreadID: "t2", Subject: "pending", From: "x@example.com", Date: base.Add(-2 * time.Hour)},
	}
}

func TestLoadSnapshotEmpty(t *testing.T) {
	_, err := newTestStore(t).LoadSnapshot(context.Background())
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveSnapshot(ctx, "run-1", sample(), at))
	snap, err := s.LoadSnapshot(ctx)
	require.NoError(t, err)

	assert.Equal(t, "run-1", snap.RunID)
	assert.True(t, at.Equal(snap.SavedAt))
	require.Len(t, snap.Records, 3)
	for i, want := range sample() {
		got := snap.Records[i]
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, want.Subject, got.Subject)
		assert.Equal(t, want.From, got.From)
		assert.Equal(t, want.Unread, got.Unread)
		assert.Equal(t, want.Labels, got.Labels)
		assert.Equal(t, want.Category, got.Category)
		assert.True(t, want.Date.Equal(got.Date))
	}
	assert.Equal(t, inbox.Unclassified, snap.Records[2].Category)

	// a second save replaces the first wholesale
	require.NoError(t, s.SaveSnapshot(ctx, "run-2", sample()[:1], at))
	snap, err = s.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-2", snap.RunID)
	assert.Len(t, snap.Records, 1)
}

func TestCachedCategories(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveSnapshot(ctx, "run-1", sample(), at))

	got, err := s.CachedCategories(ctx, []string{"a", "b", "c", "zzz"}, at.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, map[string]inbox.Category{"a": inbox.OTP, "b": inbox.Promotions}, got)

	stale, err := s.CachedCategories(ctx, []string{"a", "b"}, at.Add(time.Minute))
	require.NoError(t, err)
	assert.Empty(t, stale)

	none, err := s.CachedCategories(ctx, nil, at)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestResaveKeepsCacheTimestamp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	first := time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC)
	later := first.Add(time.Hour)

	require.NoError(t, s.SaveSnapshot(ctx, "run-1", sample(), first))
	require.NoError(t, s.SaveSnapshot(ctx, "run-2", sample(), later))

	got, err := s.CachedCategories(ctx, []string{"a"}, first.Add(time.Minute))
	require.NoError(t, err)
	assert.Empty(t, got, "unchanged category must keep its first timestamp")

	changed := sample()
	changed[0].Category = inbox.Finance
	require.NoError(t, s.SaveSnapshot(ctx, "run-3", changed, later))
	got, err = s.CachedCategories(ctx, []string{"a"}, first.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, inbox.Finance, got["a"])
}

func TestPrune(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveSnapshot(ctx, "run-1", sample(), at))

	n, err := s.Prune(ctx, at.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveSnapshot(context.Background(), "run-1", sample(), time.Now()))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()
	snap, err := s.LoadSnapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Records, 3)
}

func TestDegradedNotCached(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC)

	records := sample()
	records[0] = records[0].WithFallback(inbox.Uncategorized)
	records[1] = records[1].WithCategory(inbox.Uncategorized)
	require.NoError(t, s.SaveSnapshot(ctx, "run-1", records, at))

	got, err := s.CachedCategories(ctx, []string{"a", "b"}, at.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, map[string]inbox.Category{"b": inbox.Uncategorized}, got, "only real answers are cached")

	snap, err := s.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, inbox.Uncategorized, snap.Records[0].Category)
	assert.True(t, snap.Records[0].Degraded)
	assert.False(t, snap.Records[1].Degraded)
}
