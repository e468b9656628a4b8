package chat

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ragkb-chat/core/internal/model"
)

type fakeBackend struct {
	mu       sync.Mutex
	requests []*model.PredictRequest
	reply    func(ctx context.Context, req *model.PredictRequest, onChunk model.ChunkFunc) (*model.PredictResult, error)
	stops    int
}

func (f *fakeBackend) Predict(ctx context.Context, req *model.PredictRequest, onChunk model.ChunkFunc) (*model.PredictResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.reply != nil {
		return f.reply(ctx, req, onChunk)
	}
	return &model.PredictResult{Content: "answer to " + req.LastUserContent(), SessionID: "s1"}, nil
}

func (f *fakeBackend) ForceStop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return nil
}

func post(c *Conversation, ctx context.Context, content string, opts PostOptions) (*model.PredictResult, error) {
	p, err := c.StartPost(ctx, content, opts)
	if err != nil {
		return nil, err
	}
	return p.Wait()
}

func retry(c *Conversation, ctx context.Context, opts PostOptions) (*model.PredictResult, error) {
	p, err := c.StartRetry(ctx, opts)
	if err != nil {
		return nil, err
	}
	return p.Wait()
}

func edit(c *Conversation, ctx context.Context, index int, content string, opts PostOptions) (*model.PredictResult, error) {
	p, err := c.StartEdit(ctx, index, content, opts)
	if err != nil {
		return nil, err
	}
	return p.Wait()
}

func (f *fakeBackend) last() *model.PredictRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func TestConversation_PostAppendsTurns(t *testing.T) {
	be := &fakeBackend{}
	conv := New(be, "m1", "be helpful")

	var got string
	res, err := post(conv, context.Background(), "hello", PostOptions{UseCaseID: "kb", OnSessionID: func(id string) { got = id }})
	require.NoError(t, err)
	require.Equal(t, "answer to hello", res.Content)
	require.Equal(t, "s1", got)

	require.Equal(t, []model.Message{
		{Role: model.RoleUser, Content: "hello"},
		{Role: model.RoleAssistant, Content: "answer to hello"},
	}, conv.Messages())

	req := be.last()
	require.Equal(t, "m1", req.ModelID)
	require.Equal(t, "kb", req.UseCaseID)
	require.Equal(t, []model.Message{
		{Role: model.RoleSystem, Content: "be helpful"},
		{Role: model.RoleUser, Content: "hello"},
	}, req.Messages)
	require.False(t, conv.State().Loading)
}

func TestConversation_RawAndDisplayViews(t *testing.T) {
	conv := New(&fakeBackend{}, "m1", "sys")
	_, err := post(conv, context.Background(), "q", PostOptions{})
	require.NoError(t, err)

	raw := conv.RawMessages()
	require.Len(t, raw, 3)
	require.Equal(t, model.RoleSystem, raw[0].Role)
	require.Len(t, conv.Messages(), 2)

	raw[1].Content = "mutated"
	require.Equal(t, "q", conv.Messages()[0].Content)
}

func TestConversation_RetryReplacesLastAnswer(t *testing.T) {
	n := 0
	be := &fakeBackend{}
	be.reply = func(_ context.Context, req *model.PredictRequest, _ model.ChunkFunc) (*model.PredictResult, error) {
		n++
		if n == 1 {
			return &model.PredictResult{Content: "first", SessionID: "s1"}, nil
		}
		return &model.PredictResult{Content: "second", SessionID: "s1"}, nil
	}
	conv := New(be, "m1", "")

	_, err := post(conv, context.Background(), "q", PostOptions{})
	require.NoError(t, err)
	_, err = retry(conv, context.Background(), PostOptions{SessionID: "s1"})
	require.NoError(t, err)

	msgs := conv.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "second", msgs[1].Content)
	require.Equal(t, "s1", be.last().SessionID)
	require.Equal(t, "q", be.last().LastUserContent())
	require.Len(t, be.last().Messages, 2)
}

func TestConversation_RetryRequiresAnswer(t *testing.T) {
	be := &fakeBackend{}
	conv := New(be, "m1", "")

	_, err := retry(conv, context.Background(), PostOptions{})
	require.ErrorIs(t, err, ErrNotRetryable)
	require.Empty(t, be.requests)
}

func TestConversation_EditSecondToLast(t *testing.T) {
	be := &fakeBackend{}
	conv := New(be, "m1", "")
	ctx := context.Background()

	_, err := post(conv, ctx, "one", PostOptions{})
	require.NoError(t, err)
	_, err = post(conv, ctx, "two", PostOptions{})
	require.NoError(t, err)

	_, err = edit(conv, ctx, 2, "two edited", PostOptions{})
	require.NoError(t, err)

	msgs := conv.Messages()
	require.Len(t, msgs, 4)
	require.Equal(t, "two edited", msgs[2].Content)
	require.Equal(t, "answer to two edited", msgs[3].Content)
}

func TestConversation_EditOtherIndexIsRejected(t *testing.T) {
	be := &fakeBackend{}
	conv := New(be, "m1", "")
	ctx := context.Background()

	_, err := post(conv, ctx, "one", PostOptions{})
	require.NoError(t, err)
	_, err = post(conv, ctx, "two", PostOptions{})
	require.NoError(t, err)
	before := conv.Messages()
	calls := len(be.requests)

	for _, idx := range []int{0, 1, 3, -1, 10} {
		_, err = edit(conv, ctx, idx, "x", PostOptions{})
		require.ErrorIs(t, err, ErrNotEditable)
	}
	require.Equal(t, before, conv.Messages())
	require.Len(t, be.requests, calls)
}

func TestConversation_StopDiscardsLateResponse(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	be := &fakeBackend{}
	be.reply = func(ctx context.Context, req *model.PredictRequest, _ model.ChunkFunc) (*model.PredictResult, error) {
		close(started)
		<-release
		return &model.PredictResult{Content: "late", SessionID: "late-session"}, nil
	}
	conv := New(be, "m1", "")

	sessionSet := false
	done := make(chan error, 1)
	go func() {
		_, err := post(conv, context.Background(), "q", PostOptions{OnSessionID: func(string) { sessionSet = true }})
		done <- err
	}()

	<-started
	require.True(t, conv.State().Loading)
	conv.Stop(context.Background())
	require.False(t, conv.State().Loading)
	close(release)

	require.ErrorIs(t, <-done, ErrStopped)
	require.False(t, sessionSet)
	msgs := conv.Messages()
	require.Len(t, msgs, 2)
	require.Empty(t, msgs[1].Content)
	require.Equal(t, 1, be.stops)
}

func TestConversation_StopCancelsContext(t *testing.T) {
	started := make(chan struct{})
	be := &fakeBackend{}
	be.reply = func(ctx context.Context, _ *model.PredictRequest, _ model.ChunkFunc) (*model.PredictResult, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	conv := New(be, "m1", "")

	done := make(chan error, 1)
	go func() {
		_, err := post(conv, context.Background(), "q", PostOptions{})
		done <- err
	}()
	<-started
	conv.Stop(context.Background())
	require.ErrorIs(t, <-done, ErrStopped)
}

func TestConversation_BusyRejectsConcurrentPost(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	be := &fakeBackend{}
	be.reply = func(context.Context, *model.PredictRequest, model.ChunkFunc) (*model.PredictResult, error) {
		close(started)
		<-release
		return &model.PredictResult{Content: "ok"}, nil
	}
	conv := New(be, "m1", "")

	done := make(chan error, 1)
	go func() {
		_, err := post(conv, context.Background(), "q", PostOptions{})
		done <- err
	}()
	<-started

	_, err := post(conv, context.Background(), "again", PostOptions{})
	require.ErrorIs(t, err, ErrBusy)
	_, err = retry(conv, context.Background(), PostOptions{})
	require.ErrorIs(t, err, ErrBusy)

	close(release)
	require.NoError(t, <-done)
	require.Len(t, conv.Messages(), 2)
}

func TestConversation_StreamingUpdatesLastTurn(t *testing.T) {
	be := &fakeBackend{}
	var seen []string
	be.reply = func(_ context.Context, req *model.PredictRequest, onChunk model.ChunkFunc) (*model.PredictResult, error) {
		require.True(t, req.Stream)
		onChunk("par")
		onChunk("partial")
		return &model.PredictResult{Content: "partial answer"}, nil
	}
	conv := New(be, "m1", "")
	cancel := conv.Subscribe(func(s State) {
		if s.Writing {
			seen = append(seen, s.Messages[len(s.Messages)-1].Content)
		}
	})
	defer cancel()

	_, err := post(conv, context.Background(), "q", PostOptions{Stream: true})
	require.NoError(t, err)
	require.Equal(t, []string{"par", "partial"}, seen)
	require.Equal(t, "partial answer", conv.Messages()[1].Content)
	require.False(t, conv.State().Writing)
}

func TestConversation_BackendErrorLeavesErrorTurn(t *testing.T) {
	be := &fakeBackend{}
	be.reply = func(context.Context, *model.PredictRequest, model.ChunkFunc) (*model.PredictResult, error) {
		return nil, errors.New("boom")
	}
	conv := New(be, "m1", "")

	_, err := post(conv, context.Background(), "q", PostOptions{})
	require.Error(t, err)
	require.False(t, conv.State().Loading)
	require.Equal(t, ErrorContent, conv.Messages()[1].Content)

	// the failed answer can be retried
	be.reply = nil
	_, err = retry(conv, context.Background(), PostOptions{})
	require.NoError(t, err)
	require.Equal(t, "answer to q", conv.Messages()[1].Content)
}

func TestConversation_ClearKeepsSystemContext(t *testing.T) {
	conv := New(&fakeBackend{}, "m1", "sys")
	_, err := post(conv, context.Background(), "q", PostOptions{})
	require.NoError(t, err)

	conv.Clear()
	require.True(t, conv.State().IsEmpty())
	require.Equal(t, "sys", conv.CurrentSystemContext())
}

func TestConversation_UpdateSystemContextByModel(t *testing.T) {
	conv := New(&fakeBackend{}, "m1", "default A")

	require.True(t, conv.UpdateSystemContextByModel("default B"))
	require.Equal(t, "default B", conv.CurrentSystemContext())

	conv.UpdateSystemContext("custom")
	require.False(t, conv.UpdateSystemContextByModel("default C"))
	require.Equal(t, "custom", conv.CurrentSystemContext())
}

func TestConversation_ModelOverride(t *testing.T) {
	be := &fakeBackend{}
	conv := New(be, "m1", "")

	_, err := post(conv, context.Background(), "q", PostOptions{ModelOverride: "m2"})
	require.NoError(t, err)
	require.Equal(t, "m2", be.last().ModelID)
}

func TestConversation_GenerationAdvancesPerRequest(t *testing.T) {
	be := &fakeBackend{}
	conv := New(be, "m1", "")
	require.Zero(t, conv.State().Generation)

	_, err := post(conv, context.Background(), "q1", PostOptions{})
	require.NoError(t, err)
	first := conv.State().Generation
	require.NotZero(t, first)

	conv.Stop(context.Background())
	_, err = retry(conv, context.Background(), PostOptions{})
	require.NoError(t, err)
	require.Greater(t, conv.State().Generation, first)
}

func TestConversation_StartMarksLoadingBeforeWait(t *testing.T) {
	be := &fakeBackend{}
	conv := New(be, "m1", "")

	p, err := conv.StartPost(context.Background(), "first", PostOptions{})
	require.NoError(t, err)
	require.True(t, conv.State().Loading)
	require.Equal(t, conv.State().Generation, p.Generation())

	_, err = conv.StartPost(context.Background(), "second", PostOptions{})
	require.ErrorIs(t, err, ErrBusy)
	require.Empty(t, be.requests)

	res, err := p.Wait()
	require.NoError(t, err)
	require.Equal(t, "answer to first", res.Content)
	require.False(t, conv.State().Loading)
	require.Len(t, be.requests, 1)
}

func TestConversation_StopBeforeWaitSkipsBackend(t *testing.T) {
	be := &fakeBackend{}
	conv := New(be, "m1", "")

	p, err := conv.StartPost(context.Background(), "q", PostOptions{})
	require.NoError(t, err)
	conv.Stop(context.Background())

	_, err = p.Wait()
	require.ErrorIs(t, err, ErrStopped)
	require.Empty(t, be.requests)
	require.Equal(t, 1, be.stops)
}
