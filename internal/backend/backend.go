// Package backend answers chat requests locally: it retrieves documents from
// the knowledge base, asks the chat model and keeps the history per session.
package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	einomodel "github.com/cloudwego/eino/components/model"
	einoretriever "github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/ragkb-chat/core/internal/backend/graph"
	"github.com/ragkb-chat/core/internal/filter"
	"github.com/ragkb-chat/core/internal/model"
	logx "github.com/ragkb-chat/core/pkg/logger"
)

var ErrEmptyQuery = errors.New("backend: request has no user turn")

// Config wires a Backend.
type Config struct {
	Repo      model.ConversationRepository
	Retriever einoretriever.Retriever
	ChatModel graph.ChatModelFactory
	// DefaultModelID serves requests that name no model.
	DefaultModelID string
	TopK           int
	MaxTurns       int
}

// Backend implements model.ChatBackend and model.ForceStopper.
type Backend struct {
	cfg Config

	mu       sync.Mutex
	runners  map[string]*graph.Runner
	inflight map[uint64]context.CancelFunc
	seq      uint64
}

func New(cfg Config) (*Backend, error) {
	if cfg.Repo == nil {
		return nil, fmt.Errorf("conversation repo is nil")
	}
	if cfg.Retriever == nil {
		return nil, fmt.Errorf("retriever is nil")
	}
	if cfg.ChatModel == nil {
		return nil, fmt.Errorf("chat model factory is nil")
	}
	return &Backend{
		cfg:      cfg,
		runners:  map[string]*graph.Runner{},
		inflight: map[uint64]context.CancelFunc{},
	}, nil
}

// runner builds the graph for modelID once and reuses it.
func (b *Backend) runner(ctx context.Context, modelID string) (*graph.Runner, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if r, ok := b.runners[modelID]; ok {
		return r, nil
	}

	cm, err := b.cfg.ChatModel(ctx, modelID)
	if err != nil {
		return nil, err
	}
	r, err := graph.Build(ctx, graph.Config{
		ChatModel: cm,
		Retriever: b.cfg.Retriever,
		TopK:      b.cfg.TopK,
		MaxTurns:  b.cfg.MaxTurns,
	})
	if err != nil {
		return nil, err
	}
	b.runners[modelID] = r
	return r, nil
}

func (b *Backend) track(cancel context.CancelFunc) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	id := b.seq
	b.inflight[id] = cancel
	return func() {
		b.mu.Lock()
		delete(b.inflight, id)
		b.mu.Unlock()
		cancel()
	}
}

// ForceStop cancels every in-flight request.
func (b *Backend) ForceStop(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, cancel := range b.inflight {
		cancel()
		delete(b.inflight, id)
	}
	return nil
}

// Predict answers the last user turn of req. The model sees the stored
// history of req.SessionID, not the earlier turns the client sends; a request
// without a session id opens a new, empty session. When req.Stream is set and onChunk is not nil, onChunk
// receives the accumulated content after every delta.
func (b *Backend) Predict(ctx context.Context, req *model.PredictRequest, onChunk model.ChunkFunc) (*model.PredictResult, error) {
	in, prior, err := b.input(req)
	if err != nil {
		return nil, err
	}
	var superseded bool
	if req.SessionID != "" {
		in.History, superseded, err = b.history(ctx, req.SessionID, prior)
		if err != nil {
			return nil, err
		}
	}

	modelID := req.ModelID
	if modelID == "" {
		modelID = b.cfg.DefaultModelID
	}
	r, err := b.runner(ctx, modelID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	done := b.track(cancel)
	defer done()

	logx.Debug().
		Str("session_id", in.SessionID).
		Str("model", modelID).
		Str("use_case", req.UseCaseID).
		Int("history", len(in.History)).
		Int("filters", len(in.Filters)).
		Bool("stream", req.Stream).
		Msg("predict")

	var content string
	if req.Stream && onChunk != nil {
		content, err = b.stream(ctx, r, in, onChunk)
	} else {
		var out *schema.Message
		out, err = r.Invoke(ctx, in)
		if out != nil {
			content = out.Content
		}
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logx.Error().Err(err).Str("session_id", in.SessionID).Msg("graph run failed")
		return nil, err
	}

	b.persist(context.WithoutCancel(ctx), in.SessionID, in.History, superseded, in.Query, content)
	return &model.PredictResult{Content: content, SessionID: in.SessionID}, nil
}

func (b *Backend) stream(ctx context.Context, r *graph.Runner, in graph.Input, onChunk model.ChunkFunc) (string, error) {
	sr, err := r.Stream(ctx, in)
	if err != nil {
		return "", err
	}
	defer sr.Close()

	var sb strings.Builder
	for {
		msg, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			return sb.String(), nil
		}
		if err != nil {
			return "", err
		}
		if msg == nil || msg.Content == "" {
			continue
		}
		sb.WriteString(msg.Content)
		onChunk(sb.String())
	}
}

// input takes the system context and the query from the client's
// conversation and decodes the filters. It also reports how many exchanges
// the client holds before the query. The history itself is the session's.
func (b *Backend) input(req *model.PredictRequest) (graph.Input, int, error) {
	if req == nil {
		return graph.Input{}, 0, fmt.Errorf("request is nil")
	}
	msgs := req.Messages
	last := -1
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == model.RoleUser {
			last = i
			break
		}
	}
	if last < 0 || strings.TrimSpace(msgs[last].Content) == "" {
		return graph.Input{}, 0, ErrEmptyQuery
	}

	in := graph.Input{
		SessionID: req.SessionID,
		Query:     msgs[last].Content,
		Filters:   filter.FiltersFromExtraData(req.ExtraData),
	}
	if in.SessionID == "" {
		in.SessionID = uuid.NewString()
	}
	prior := 0
	for _, m := range msgs[:last] {
		switch m.Role {
		case model.RoleSystem:
			in.SystemContext = m.Content
		case model.RoleUser:
			prior++
		}
	}
	if req.PromptOverride != "" {
		in.SystemContext = req.PromptOverride
	}
	return in, prior, nil
}

// history loads the stored exchanges of a session. Stored exchanges beyond
// the client's prior ones were replaced by a retry or an edit; they are cut
// off and superseded is set.
func (b *Backend) history(ctx context.Context, sessionID string, prior int) ([]*schema.Message, bool, error) {
	n, err := b.cfg.Repo.GetMessageCount(ctx, sessionID)
	if err != nil {
		return nil, false, fmt.Errorf("count session history: %w", err)
	}
	if n == 0 {
		logx.Debug().Str("session_id", sessionID).Msg("session has no stored history")
		return nil, false, nil
	}
	h, err := b.cfg.Repo.LoadHistory(ctx, sessionID)
	if err != nil {
		return nil, false, fmt.Errorf("load session history: %w", err)
	}
	msgs := h.Messages
	if keep := 2 * prior; len(msgs) > keep {
		return msgs[:keep], true, nil
	}
	return msgs, false, nil
}

// persist appends the exchange to the session transcript. A superseded
// transcript is rewritten to kept first. Failures are logged; the answer is
// still returned.
func (b *Backend) persist(ctx context.Context, sessionID string, kept []*schema.Message, superseded bool, query, answer string) {
	repo := b.cfg.Repo
	if superseded {
		if err := repo.ClearHistory(ctx, sessionID); err != nil {
			logx.Warn().Err(err).Str("session_id", sessionID).Msg("failed to drop superseded turns")
			return
		}
		for _, m := range kept {
			if err := repo.AddMessage(ctx, sessionID, m); err != nil {
				logx.Warn().Err(err).Str("session_id", sessionID).Msg("failed to restore session history")
				return
			}
		}
	}
	if err := repo.AddMessage(ctx, sessionID, schema.UserMessage(query)); err != nil {
		logx.Warn().Err(err).Str("session_id", sessionID).Msg("failed to save user turn")
		return
	}
	if err := repo.AddMessage(ctx, sessionID, schema.AssistantMessage(answer, nil)); err != nil {
		logx.Warn().Err(err).Str("session_id", sessionID).Msg("failed to save assistant turn")
	}
}

// StaticChatModel serves every model id with the same chat model.
func StaticChatModel(cm einomodel.BaseChatModel) graph.ChatModelFactory {
	return func(context.Context, string) (einomodel.BaseChatModel, error) {
		return cm, nil
	}
}

var (
	_ model.ChatBackend  = (*Backend)(nil)
	_ model.ForceStopper = (*Backend)(nil)
)
