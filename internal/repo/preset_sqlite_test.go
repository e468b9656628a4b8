package repo

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	errx "github.com/ragkb-chat/core/internal/core/error"
)

func newTestSQLiteStore(t *testing.T) *SQLiteSystemContextStore {
	t.Helper()
	s, err := NewSQLiteSystemContextStore(filepath.Join(t.TempDir(), "presets.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return s
}

func TestSQLiteSystemContextStore_CreateAndListNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Empty(t, list)

	a, err := s.Create(ctx, "terse", "answer in one line")
	require.NoError(t, err)
	require.NotEmpty(t, a.ID)
	b, err := s.Create(ctx, "pirate", "talk like a pirate")
	require.NoError(t, err)
	require.NotEqual(t, a.ID, b.ID)

	list, err = s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, b.ID, list[0].ID)
	require.Equal(t, "talk like a pirate", list[0].Content)
	require.Equal(t, a.ID, list[1].ID)
	require.True(t, list[0].CreatedAt.After(list[1].CreatedAt))
}

func TestSQLiteSystemContextStore_UpdateTitle(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	a, err := s.Create(ctx, "old", "content")
	require.NoError(t, err)

	got, err := s.UpdateTitle(ctx, a.ID, "new")
	require.NoError(t, err)
	require.Equal(t, "new", got.Title)
	require.Equal(t, "content", got.Content)
	require.True(t, a.CreatedAt.Equal(got.CreatedAt))

	_, err = s.UpdateTitle(ctx, "missing", "x")
	require.True(t, errx.IsNotFound(err))
}

func TestSQLiteSystemContextStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	a, err := s.Create(ctx, "a", "x")
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, a.ID))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Empty(t, list)

	require.True(t, errx.IsNotFound(s.Delete(ctx, a.ID)))
}

func TestSQLiteSystemContextStore_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "presets.db")

	s, err := NewSQLiteSystemContextStore(path)
	require.NoError(t, err)
	_, err = s.Create(ctx, "kept", "content")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = NewSQLiteSystemContextStore(path)
	require.NoError(t, err)
	defer s.Close()
	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "kept", list[0].Title)
}
