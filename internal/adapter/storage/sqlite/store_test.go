package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/scenefetch/internal/domain"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, dir
}

func failedSession(id string, ended time.Time) *domain.Session {
	return &domain.Session{
		ID:         id,
		SourceRef:  "https://example.com/" + id,
		Status:     domain.SessionStatusError,
		RetryCount: 2,
		Error: &domain.ErrorInfo{
			Kind:        domain.ErrorKindNetwork,
			RawMessage:  "connection reset",
			UserMessage: "A network problem interrupted the download.",
			IsRetryable: true,
		},
		CreatedAt: ended.Add(-time.Minute),
		EndedAt:   ended,
	}
}

func TestStore_RecordAndGet(t *testing.T) {
	ctx := context.Background()
	store, dir := newTestStore(t)

	now := time.Now().Truncate(time.Millisecond)
	require.NoError(t, store.Record(ctx, failedSession("a", now)))

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusError, got.Status)
	assert.Equal(t, 2, got.RetryCount)
	require.NotNil(t, got.Error)
	assert.Equal(t, domain.ErrorKindNetwork, got.Error.Kind)
	assert.True(t, got.EndedAt.Equal(now))

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, store.Close())
	reopened, err := NewStore(dir)
	require.NoError(t, err)
	defer reopened.Close()
	_, err = reopened.Get(ctx, "a")
	assert.NoError(t, err)
}

func TestStore_RecordUpserts(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	sess := failedSession("a", time.Now())
	require.NoError(t, store.Record(ctx, sess))

	sess.Status = domain.SessionStatusCancelled
	sess.Error = nil
	require.NoError(t, store.Record(ctx, sess))

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusCancelled, got.Status)
	assert.Nil(t, got.Error)
}

func TestStore_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	now := time.Now()
	require.NoError(t, store.Record(ctx, failedSession("old", now.Add(-72*time.Hour))))
	require.NoError(t, store.Record(ctx, failedSession("mid", now.Add(-time.Hour))))
	require.NoError(t, store.Record(ctx, failedSession("new", now)))

	all, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "new", all[0].ID)
	assert.Equal(t, "old", all[2].ID)

	top, err := store.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "new", top[0].ID)

	n, err := store.DeleteOlderThan(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	all, err = store.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
