// Package chat keeps the message list of one conversation and drives
// generation requests against a chat backend.
package chat

import (
	"context"
	"errors"
	"sync"

	errx "github.com/ragkb-chat/core/internal/core/error"
	"github.com/ragkb-chat/core/internal/model"
	"github.com/ragkb-chat/core/internal/state"
	logx "github.com/ragkb-chat/core/pkg/logger"
)

var (
	ErrBusy         = errors.New("chat: generation in progress")
	ErrEmptyContent = errors.New("chat: empty content")
	ErrNotRetryable = errors.New("chat: last turn cannot be retried")
	ErrNotEditable  = errors.New("chat: only the last user turn can be edited")
	// ErrStopped is returned when the request was stopped; its result was discarded.
	ErrStopped = errors.New("chat: generation stopped")
)

// ErrorContent replaces an empty assistant turn when generation fails.
const ErrorContent = "An error occurred while generating the answer."

// PostOptions mirrors the parameters every mutating call forwards to the backend.
type PostOptions struct {
	Stream         bool
	ModelOverride  string
	PromptOverride string
	SessionID      string
	ExtraData      []model.ExtraData
	UseCaseID      string
	// OnSessionID is called with the session id of a successful, non-stopped
	// response before the call returns.
	OnSessionID func(id string)
}

// Conversation is safe for concurrent use. Requests are started by
// StartPost, StartRetry and StartEdit and answered by Pending.Wait; Stop may
// be called from another goroutine.
type Conversation struct {
	backend model.ChatBackend
	store   *state.Store[State]

	mu     sync.Mutex
	epoch  uint64
	cancel context.CancelFunc
	// modelDefault is the default system context last applied for the model.
	modelDefault string
}

// New creates an empty conversation.
func New(backend model.ChatBackend, modelID, systemContext string) *Conversation {
	return &Conversation{
		backend:      backend,
		store:        state.New(State{ModelID: modelID, SystemContext: systemContext}),
		modelDefault: systemContext,
	}
}

// State returns the current snapshot.
func (c *Conversation) State() State {
	return c.store.Get()
}

// Subscribe registers fn for state changes.
func (c *Conversation) Subscribe(fn func(State)) func() {
	return c.store.Subscribe(fn)
}

// Messages returns the display view.
func (c *Conversation) Messages() []model.Message {
	return c.State().Project(ViewDisplay)
}

// RawMessages returns the raw view, system turn included.
func (c *Conversation) RawMessages() []model.Message {
	return c.State().Project(ViewRaw)
}

// CurrentSystemContext returns the system turn content.
func (c *Conversation) CurrentSystemContext() string {
	return c.State().SystemContext
}

// ModelID returns the model in use.
func (c *Conversation) ModelID() string {
	return c.State().ModelID
}

// SetModelID changes the model used for subsequent requests.
func (c *Conversation) SetModelID(id string) {
	c.store.Update(func(s *State) { s.ModelID = id })
}

// UpdateSystemContext replaces the system turn content.
func (c *Conversation) UpdateSystemContext(content string) {
	c.store.Update(func(s *State) { s.SystemContext = content })
}

// UpdateSystemContextByModel records def as the model's default system
// context. The system turn follows the new default only when the user has
// not diverged from the previous one and no turn has been exchanged.
func (c *Conversation) UpdateSystemContextByModel(def string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.modelDefault
	c.modelDefault = def

	replaced := false
	c.store.Update(func(s *State) {
		if s.IsEmpty() && (s.SystemContext == prev || s.SystemContext == "") {
			s.SystemContext = def
			replaced = true
		}
	})
	return replaced
}

// Pending is a request whose local turns are in place and whose answer is
// still to be generated.
type Pending struct {
	c    *Conversation
	ctx  context.Context
	ep   uint64
	opts PostOptions
}

// Generation identifies the request; it matches State.Generation while the
// request is the current one.
func (p *Pending) Generation() uint64 { return p.ep }

// Wait asks the backend and blocks until the answer arrives, the request is
// stopped or the backend fails.
func (p *Pending) Wait() (*model.PredictResult, error) {
	return p.c.generate(p.ctx, p.ep, p.opts)
}

func (c *Conversation) pending(ctx context.Context, opts PostOptions, mutate func(*State) error) (*Pending, error) {
	ep, reqCtx, err := c.begin(ctx, mutate)
	if err != nil {
		return nil, err
	}
	return &Pending{c: c, ctx: reqCtx, ep: ep, opts: opts}, nil
}

// StartPost appends a user turn and marks the conversation loading. The
// answer is generated by Wait.
func (c *Conversation) StartPost(ctx context.Context, content string, opts PostOptions) (*Pending, error) {
	if content == "" {
		return nil, ErrEmptyContent
	}
	return c.pending(ctx, opts, func(s *State) error {
		msgs := append([]model.Message(nil), s.Messages...)
		s.Messages = append(msgs,
			model.Message{Role: model.RoleUser, Content: content},
			model.Message{Role: model.RoleAssistant},
		)
		return nil
	})
}

// StartRetry drops the last answer so it can be regenerated for the same user turn.
func (c *Conversation) StartRetry(ctx context.Context, opts PostOptions) (*Pending, error) {
	return c.pending(ctx, opts, func(s *State) error {
		if !s.Retryable() {
			return ErrNotRetryable
		}
		s.Messages = withLast(s.Messages, "")
		return nil
	})
}

// StartEdit replaces the user turn at index, which must be the second-to-last
// display message, and drops the answer after it.
func (c *Conversation) StartEdit(ctx context.Context, index int, content string, opts PostOptions) (*Pending, error) {
	if content == "" {
		return nil, ErrEmptyContent
	}
	return c.pending(ctx, opts, func(s *State) error {
		if !s.Editable(index) {
			return ErrNotEditable
		}
		msgs := append([]model.Message(nil), s.Messages[:index]...)
		s.Messages = append(msgs,
			model.Message{Role: model.RoleUser, Content: content},
			model.Message{Role: model.RoleAssistant},
		)
		return nil
	})
}

// Stop abandons the in-flight request. Its response, if it still arrives,
// is discarded. The partial answer stays in place.
func (c *Conversation) Stop(ctx context.Context) {
	c.mu.Lock()
	wasLoading := c.abortLocked()
	c.store.Update(func(s *State) {
		s.Loading = false
		s.Writing = false
	})
	c.mu.Unlock()

	if !wasLoading {
		return
	}
	if fs, ok := c.backend.(model.ForceStopper); ok {
		if err := fs.ForceStop(ctx); err != nil {
			logx.Warn().Err(err).Msg("backend force stop failed")
		}
	}
}

// Clear removes every turn and abandons any in-flight request. The system
// turn is kept.
func (c *Conversation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.abortLocked()
	c.store.Update(func(s *State) {
		s.Messages = nil
		s.Loading = false
		s.Writing = false
	})
}

func (c *Conversation) abortLocked() bool {
	c.epoch++
	if c.cancel == nil {
		return false
	}
	c.cancel()
	c.cancel = nil
	return true
}

// begin validates and applies the local mutation of a request atomically.
func (c *Conversation) begin(ctx context.Context, mutate func(*State) error) (uint64, context.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.store.Get().Loading {
		return 0, nil, ErrBusy
	}
	var err error
	c.store.Update(func(s *State) {
		next := *s
		if err = mutate(&next); err != nil {
			return
		}
		next.Loading = true
		next.Writing = false
		next.Generation = c.epoch + 1
		*s = next
	})
	if err != nil {
		return 0, nil, err
	}

	c.epoch++
	reqCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	return c.epoch, reqCtx, nil
}

func (c *Conversation) generate(ctx context.Context, ep uint64, opts PostOptions) (*model.PredictResult, error) {
	c.mu.Lock()
	if ep != c.epoch {
		c.mu.Unlock()
		return nil, ErrStopped
	}
	snap := c.State()
	c.mu.Unlock()

	req := &model.PredictRequest{
		ModelID: snap.ModelID,
		// the trailing assistant placeholder is not sent
		Messages:       snap.Project(ViewRaw)[:len(snap.Messages)],
		Stream:         opts.Stream,
		PromptOverride: opts.PromptOverride,
		SessionID:      opts.SessionID,
		ExtraData:      opts.ExtraData,
		UseCaseID:      opts.UseCaseID,
	}
	if opts.ModelOverride != "" {
		req.ModelID = opts.ModelOverride
	}

	var onChunk model.ChunkFunc
	if opts.Stream {
		onChunk = func(content string) {
			c.mu.Lock()
			defer c.mu.Unlock()
			if ep != c.epoch {
				return
			}
			c.store.Update(func(s *State) {
				s.Messages = withLast(s.Messages, content)
				s.Writing = true
			})
		}
	}

	res, err := c.backend.Predict(ctx, req, onChunk)

	c.mu.Lock()
	defer c.mu.Unlock()

	if ep != c.epoch {
		logx.Debug().Uint64("epoch", ep).Msg("discarding response of stopped request")
		return nil, ErrStopped
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}

	if err != nil {
		logx.Error().Err(err).Str("use_case", opts.UseCaseID).Str("session_id", opts.SessionID).Msg("chat generation failed")
		c.store.Update(func(s *State) {
			if n := len(s.Messages); n > 0 && s.Messages[n-1].Content == "" {
				s.Messages = withLast(s.Messages, ErrorContent)
			}
			s.Loading = false
			s.Writing = false
		})
		return nil, errx.WrapBackend(err)
	}

	c.store.Update(func(s *State) {
		s.Messages = withLast(s.Messages, res.Content)
		s.Loading = false
		s.Writing = false
	})
	if res.SessionID != "" && opts.OnSessionID != nil {
		opts.OnSessionID(res.SessionID)
	}
	return res, nil
}
