// Package rag orchestrates a knowledge-base conversation: session identity,
// pending input, explicit filters, model selection and the system-context
// presets around a chat conversation.
package rag

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ragkb-chat/core/internal/catalog"
	"github.com/ragkb-chat/core/internal/chat"
	"github.com/ragkb-chat/core/internal/filter"
	"github.com/ragkb-chat/core/internal/model"
	"github.com/ragkb-chat/core/internal/prompts"
	"github.com/ragkb-chat/core/internal/state"
	"github.com/ragkb-chat/core/internal/syscontext"
	logx "github.com/ragkb-chat/core/pkg/logger"
)

// UseCaseID routes requests of this conversation mode on the backend.
const UseCaseID = "bedrockKb"

var ErrUnknownModel = errors.New("rag: model is not available")

// State is the orchestrator-owned part of the session.
type State struct {
	// SessionID is issued by the backend; empty until the first answer.
	SessionID string `json:"sessionId,omitempty"`
	// Content is the pending input.
	Content           string            `json:"content"`
	Filters           filter.Selections `json:"filters"`
	ShowSystemContext bool              `json:"showSystemContext"`
}

// Snapshot combines every observable part of the session.
type Snapshot struct {
	Session       State            `json:"session"`
	Chat          chat.State       `json:"chat"`
	SystemContext syscontext.State `json:"systemContext"`
}

// EntryParams are the optional parameters a session may be opened with, and
// the payload of a sample prompt.
type EntryParams struct {
	Content       string
	ModelID       string
	SystemContext string
}

// DefaultSystemContextFunc derives the default system context of a model.
type DefaultSystemContextFunc func(ctx context.Context, modelID string) (string, error)

// Config wires an Orchestrator.
type Config struct {
	Backend model.ChatBackend
	Presets model.SystemContextStore
	Filters []filter.Configuration
	Catalog *catalog.Catalog
	Stream  bool
	// DefaultSystemContext defaults to prompts.DefaultSystemContext.
	DefaultSystemContext DefaultSystemContextFunc
}

// Orchestrator is safe for concurrent use; Stop may interrupt a blocked
// Send, Retry or Edit from another goroutine.
type Orchestrator struct {
	conv     *chat.Conversation
	presets  *syscontext.Manager
	filters  []filter.Configuration
	catalog  *catalog.Catalog
	stream   bool
	defaults DefaultSystemContextFunc
	st       *state.Store[State]

	// reqMu orders request starts against Stop and Reset so a request never
	// carries a session id that was dropped before it began.
	reqMu sync.Mutex
}

// New builds an orchestrator on the first available model.
func New(ctx context.Context, cfg Config) (*Orchestrator, error) {
	if cfg.Backend == nil {
		return nil, fmt.Errorf("chat backend is nil")
	}
	if cfg.Presets == nil {
		return nil, fmt.Errorf("system context store is nil")
	}
	if cfg.Catalog == nil {
		cfg.Catalog = catalog.New()
	}
	if cfg.DefaultSystemContext == nil {
		cfg.DefaultSystemContext = prompts.DefaultSystemContext
	}

	modelID := cfg.Catalog.Default()
	def, err := cfg.DefaultSystemContext(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("default system context: %w", err)
	}

	conv := chat.New(cfg.Backend, modelID, def)
	return &Orchestrator{
		conv:     conv,
		presets:  syscontext.NewManager(cfg.Presets, conv),
		filters:  append([]filter.Configuration(nil), cfg.Filters...),
		catalog:  cfg.Catalog,
		stream:   cfg.Stream,
		defaults: cfg.DefaultSystemContext,
		st:       state.New(State{Filters: filter.Selections{}}),
	}, nil
}

// Conversation exposes the underlying message store.
func (o *Orchestrator) Conversation() *chat.Conversation { return o.conv }

// Presets exposes the system-context manager.
func (o *Orchestrator) Presets() *syscontext.Manager { return o.presets }

// Catalog exposes the available models.
func (o *Orchestrator) Catalog() *catalog.Catalog { return o.catalog }

// FilterConfigurations returns the configured explicit filters.
func (o *Orchestrator) FilterConfigurations() []filter.Configuration {
	return append([]filter.Configuration(nil), o.filters...)
}

// State returns the orchestrator-owned state.
func (o *Orchestrator) State() State { return o.st.Get() }

// Snapshot returns the full session snapshot.
func (o *Orchestrator) Snapshot() Snapshot {
	return Snapshot{
		Session:       o.st.Get(),
		Chat:          o.conv.State(),
		SystemContext: o.presets.State(),
	}
}

// Subscribe calls fn with a fresh snapshot after any part of the session changes.
func (o *Orchestrator) Subscribe(fn func(Snapshot)) func() {
	cancels := []func(){
		o.st.Subscribe(func(State) { fn(o.Snapshot()) }),
		o.conv.Subscribe(func(chat.State) { fn(o.Snapshot()) }),
		o.presets.Subscribe(func(syscontext.State) { fn(o.Snapshot()) }),
	}
	return func() {
		for _, c := range cancels {
			c()
		}
	}
}

// SessionID returns the backend session id, "" when none is held.
func (o *Orchestrator) SessionID() string { return o.st.Get().SessionID }

func (o *Orchestrator) setSessionID(id string) {
	o.st.Update(func(s *State) { s.SessionID = id })
}

// adoptSessionID keeps the first id the backend issues for the session.
func (o *Orchestrator) adoptSessionID(id string) {
	o.st.Update(func(s *State) {
		if s.SessionID == "" {
			s.SessionID = id
			return
		}
		if s.SessionID != id {
			logx.Warn().Str("held", s.SessionID).Str("issued", id).Msg("backend issued a different session id")
		}
	})
}

// SetContent sets the pending input.
func (o *Orchestrator) SetContent(content string) {
	o.st.Update(func(s *State) { s.Content = content })
}

// SetFilter sets the selection of the filter configured under key; a nil
// selection unsets it.
func (o *Orchestrator) SetFilter(key string, sel *filter.Selection) error {
	if _, ok := filter.Find(o.filters, key); !ok {
		return fmt.Errorf("rag: unknown filter %q", key)
	}
	o.st.Update(func(s *State) {
		next := s.Filters.Clone()
		if sel == nil {
			delete(next, key)
		} else {
			next[key] = sel
		}
		s.Filters = next
	})
	return nil
}

// Filters returns the selections aligned with the filter configurations.
func (o *Orchestrator) Filters() []*filter.Selection {
	return o.st.Get().Filters.Positional(o.filters)
}

// ExtraData builds the filter payload from the current selections.
func (o *Orchestrator) ExtraData() []model.ExtraData {
	return filter.BuildExtraData(o.st.Get().Filters, o.filters)
}

// SetShowSystemContext toggles between the raw and display views.
func (o *Orchestrator) SetShowSystemContext(show bool) {
	o.st.Update(func(s *State) { s.ShowSystemContext = show })
}

// ShowingMessages returns the view selected by ShowSystemContext.
func (o *Orchestrator) ShowingMessages() []model.Message {
	v := chat.ViewDisplay
	if o.st.Get().ShowSystemContext {
		v = chat.ViewRaw
	}
	return o.conv.State().Project(v)
}

func (o *Orchestrator) postOptions() chat.PostOptions {
	return chat.PostOptions{
		Stream:      o.stream,
		SessionID:   o.SessionID(),
		ExtraData:   o.ExtraData(),
		UseCaseID:   UseCaseID,
		OnSessionID: o.adoptSessionID,
	}
}

// StartSend posts the pending input and clears it. The conversation is
// loading when StartSend returns; the answer is generated by Wait.
func (o *Orchestrator) StartSend(ctx context.Context) (*chat.Pending, error) {
	o.reqMu.Lock()
	defer o.reqMu.Unlock()

	content := o.st.Get().Content
	if content == "" {
		return nil, chat.ErrEmptyContent
	}
	cs := o.conv.State()
	if cs.Loading {
		return nil, chat.ErrBusy
	}
	if cs.IsEmpty() {
		if active := o.presets.Active(); active != "" && active != cs.SystemContext {
			o.conv.UpdateSystemContext(active)
		}
	}

	p, err := o.conv.StartPost(ctx, content, o.postOptions())
	if err != nil {
		return nil, err
	}
	o.SetContent("")
	return p, nil
}

// Send posts the pending input and waits for the answer.
func (o *Orchestrator) Send(ctx context.Context) (*model.PredictResult, error) {
	return wait(o.StartSend(ctx))
}

// StartRetry begins regenerating the last answer with freshly built filters.
func (o *Orchestrator) StartRetry(ctx context.Context) (*chat.Pending, error) {
	o.reqMu.Lock()
	defer o.reqMu.Unlock()
	return o.conv.StartRetry(ctx, o.postOptions())
}

// Retry regenerates the last answer.
func (o *Orchestrator) Retry(ctx context.Context) (*model.PredictResult, error) {
	return wait(o.StartRetry(ctx))
}

// StartEdit begins replacing the second-to-last display message.
func (o *Orchestrator) StartEdit(ctx context.Context, index int, content string) (*chat.Pending, error) {
	o.reqMu.Lock()
	defer o.reqMu.Unlock()
	return o.conv.StartEdit(ctx, index, content, o.postOptions())
}

// Edit replaces the second-to-last display message and regenerates.
func (o *Orchestrator) Edit(ctx context.Context, index int, content string) (*model.PredictResult, error) {
	return wait(o.StartEdit(ctx, index, content))
}

func wait(p *chat.Pending, err error) (*model.PredictResult, error) {
	if err != nil {
		return nil, err
	}
	return p.Wait()
}

// Stop abandons the in-flight generation and drops the session id so the
// next Send opens a new backend session.
func (o *Orchestrator) Stop(ctx context.Context) {
	o.reqMu.Lock()
	defer o.reqMu.Unlock()
	o.conv.Stop(ctx)
	o.setSessionID("")
}

// Reset starts a new conversation: no turns, no input, no filters, no session.
func (o *Orchestrator) Reset() {
	o.reqMu.Lock()
	defer o.reqMu.Unlock()
	o.conv.Clear()
	o.st.Update(func(s *State) {
		s.Content = ""
		s.Filters = filter.Selections{}
		s.SessionID = ""
	})
}

// ModelID returns the model in use.
func (o *Orchestrator) ModelID() string { return o.conv.ModelID() }

// SetModel switches to an available model and re-derives the default system
// context; an untouched default follows the new model.
func (o *Orchestrator) SetModel(ctx context.Context, id string) error {
	if !o.catalog.Contains(id) {
		return fmt.Errorf("%w: %q", ErrUnknownModel, id)
	}
	o.conv.SetModelID(id)

	def, err := o.defaults(ctx, id)
	if err != nil {
		return fmt.Errorf("default system context: %w", err)
	}
	if o.conv.UpdateSystemContextByModel(def) {
		o.presets.SyncFromConversation()
	}
	return nil
}

// ApplyEntryParams applies the parameters a session was opened with. An
// unknown model falls back to the current model, then to the first available.
func (o *Orchestrator) ApplyEntryParams(ctx context.Context, p EntryParams) error {
	if p.Content != "" {
		o.SetContent(p.Content)
	}
	id := o.catalog.Resolve(p.ModelID, o.ModelID())
	if id == "" {
		return nil
	}
	if p.ModelID != "" && id != p.ModelID {
		logx.Warn().Str("requested", p.ModelID).Str("using", id).Msg("requested model is not available")
	}
	if err := o.SetModel(ctx, id); err != nil {
		return err
	}
	if p.SystemContext != "" {
		o.presets.Select(model.SystemContext{Content: p.SystemContext})
	}
	return nil
}

// ApplySample fills the input from a sample prompt and applies its system
// context, if any.
func (o *Orchestrator) ApplySample(p EntryParams) {
	o.SetContent(p.Content)
	if p.SystemContext != "" {
		o.presets.Select(model.SystemContext{Content: p.SystemContext})
	}
}

// UsePreset activates a saved preset.
func (o *Orchestrator) UsePreset(id string) error {
	p, ok := o.presets.Find(id)
	if !ok {
		return fmt.Errorf("rag: unknown system context %q", id)
	}
	o.presets.Select(p)
	return nil
}
