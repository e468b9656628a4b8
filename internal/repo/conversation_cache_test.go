package repo

import (
	"context"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/require"
)

func TestCacheConversationRepository_AppendLoadClear(t *testing.T) {
	ctx := context.Background()
	r := NewCacheConversationRepository(time.Minute)

	h, err := r.LoadHistory(ctx, "s1")
	require.NoError(t, err)
	require.Empty(t, h.Messages)

	require.NoError(t, r.AddMessage(ctx, "s1", schema.UserMessage("hi")))
	require.NoError(t, r.AddMessage(ctx, "s1", schema.AssistantMessage("hello", nil)))
	require.NoError(t, r.AddMessage(ctx, "s2", schema.UserMessage("other")))

	h, err = r.LoadHistory(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "s1", h.SessionID)
	require.Len(t, h.Messages, 2)
	require.Equal(t, schema.User, h.Messages[0].Role)
	require.Equal(t, "hello", h.Messages[1].Content)

	n, err := r.GetMessageCount(ctx, "s2")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	require.NoError(t, r.ClearHistory(ctx, "s1"))
	n, err = r.GetMessageCount(ctx, "s1")
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestCacheConversationRepository_LoadedHistoryIsACopy(t *testing.T) {
	ctx := context.Background()
	r := NewCacheConversationRepository(0)
	require.NoError(t, r.AddMessage(ctx, "s1", schema.UserMessage("hi")))

	h, err := r.LoadHistory(ctx, "s1")
	require.NoError(t, err)
	h.Messages = append(h.Messages[:0], schema.UserMessage("tampered"))

	h, err = r.LoadHistory(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "hi", h.Messages[0].Content)
}

func TestCacheConversationRepository_Expires(t *testing.T) {
	ctx := context.Background()
	r := NewCacheConversationRepository(20 * time.Millisecond)
	require.NoError(t, r.AddMessage(ctx, "s1", schema.UserMessage("hi")))

	time.Sleep(50 * time.Millisecond)
	n, err := r.GetMessageCount(ctx, "s1")
	require.NoError(t, err)
	require.Zero(t, n)
}
