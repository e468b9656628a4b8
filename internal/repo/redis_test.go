package repo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	errx "github.com/ragkb-chat/core/internal/core/error"
	pkgredis "github.com/ragkb-chat/core/pkg/redis"
)

func newTestRedis(t *testing.T) *goredis.Client {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	cfg := pkgredis.Config{URL: url, ReadTimeout: 3, WriteTimeout: 3, DialTimeout: 5}
	rdb, err := cfg.New(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestRedisConversationRepository(t *testing.T) {
	ctx := context.Background()
	rdb := newTestRedis(t)
	r := NewRedisConversationRepository(rdb, time.Minute)
	sid := uuid.NewString()
	t.Cleanup(func() { _ = r.ClearHistory(ctx, sid) })

	require.NoError(t, r.AddMessage(ctx, sid, schema.UserMessage("hi")))
	require.NoError(t, r.AddMessage(ctx, sid, schema.AssistantMessage("hello", nil)))

	h, err := r.LoadHistory(ctx, sid)
	require.NoError(t, err)
	require.Len(t, h.Messages, 2)
	require.Equal(t, "hello", h.Messages[1].Content)

	ttl, err := rdb.TTL(ctx, r.sessionKey(sid)).Result()
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0))

	require.NoError(t, r.ClearHistory(ctx, sid))
	n, err := r.GetMessageCount(ctx, sid)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestRedisSystemContextStore(t *testing.T) {
	ctx := context.Background()
	rdb := newTestRedis(t)
	s := newRedisSystemContextStore(rdb, "test:"+uuid.NewString()+":")
	t.Cleanup(func() { _ = rdb.Del(ctx, s.hashKey, s.orderKey).Err() })

	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	a, err := s.Create(ctx, "a", "first")
	require.NoError(t, err)
	b, err := s.Create(ctx, "b", "second")
	require.NoError(t, err)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, b.ID, list[0].ID)
	require.Equal(t, a.ID, list[1].ID)

	renamed, err := s.UpdateTitle(ctx, a.ID, "renamed")
	require.NoError(t, err)
	require.Equal(t, "renamed", renamed.Title)

	require.NoError(t, s.Delete(ctx, b.ID))
	require.True(t, errx.IsNotFound(s.Delete(ctx, b.ID)))
	_, err = s.UpdateTitle(ctx, b.ID, "x")
	require.True(t, errx.IsNotFound(err))

	list, err = s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "renamed", list[0].Title)
}
