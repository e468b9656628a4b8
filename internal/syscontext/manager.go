// Package syscontext manages the active system context and the mirror of
// saved system-context presets.
package syscontext

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/ragkb-chat/core/internal/model"
	"github.com/ragkb-chat/core/internal/state"
	logx "github.com/ragkb-chat/core/pkg/logger"
)

// Conversation is the part of a chat conversation the manager drives.
type Conversation interface {
	CurrentSystemContext() string
	UpdateSystemContext(content string)
	Clear()
}

// State is a snapshot of the manager.
type State struct {
	// Active is the system context being edited; it is applied to the
	// conversation explicitly.
	Active  string                `json:"active"`
	Presets []model.SystemContext `json:"presets"`

	// Save dialog fields.
	DialogOpen  bool   `json:"dialogOpen"`
	SaveTitle   string `json:"saveTitle,omitempty"`
	SaveContent string `json:"saveContent,omitempty"`
}

// Manager mirrors the preset store locally. Local mutations are applied
// before the remote call and reconciled by a refetch afterwards; remote
// failures are logged and never returned.
type Manager struct {
	store model.SystemContextStore
	conv  Conversation
	st    *state.Store[State]
	group singleflight.Group
}

// NewManager creates a manager whose active context starts as the
// conversation's current system context.
func NewManager(store model.SystemContextStore, conv Conversation) *Manager {
	return &Manager{
		store: store,
		conv:  conv,
		st:    state.New(State{Active: conv.CurrentSystemContext()}),
	}
}

// State returns the current snapshot.
func (m *Manager) State() State {
	return m.st.Get()
}

// Subscribe registers fn for state changes.
func (m *Manager) Subscribe(fn func(State)) func() {
	return m.st.Subscribe(fn)
}

// Presets returns the local mirror.
func (m *Manager) Presets() []model.SystemContext {
	return m.st.Get().Presets
}

// Active returns the active system context.
func (m *Manager) Active() string {
	return m.st.Get().Active
}

// SetActive replaces the active system context without touching the conversation.
func (m *Manager) SetActive(content string) {
	m.st.Update(func(s *State) { s.Active = content })
}

// Apply makes the active system context the conversation's system turn.
func (m *Manager) Apply() {
	m.conv.UpdateSystemContext(m.Active())
}

// SyncFromConversation copies the conversation's system turn into Active.
func (m *Manager) SyncFromConversation() {
	m.SetActive(m.conv.CurrentSystemContext())
}

// Initialize clears the conversation and resets Active to its system turn.
func (m *Manager) Initialize() {
	m.conv.Clear()
	m.SyncFromConversation()
}

// Select activates a preset or sample. Content it carries becomes the
// conversation's system turn immediately.
func (m *Manager) Select(p model.SystemContext) {
	m.SetActive(p.Content)
	if p.Content != "" {
		m.conv.UpdateSystemContext(p.Content)
	}
}

// Find returns the mirrored preset with the given id.
func (m *Manager) Find(id string) (model.SystemContext, bool) {
	for _, p := range m.Presets() {
		if p.ID == id {
			return p, true
		}
	}
	return model.SystemContext{}, false
}

// OpenSaveDialog prepares the dialog to save the active context.
func (m *Manager) OpenSaveDialog() {
	m.SaveFromMessage(m.Active())
}

// SaveFromMessage prepares the dialog to save content, e.g. a chat turn.
func (m *Manager) SaveFromMessage(content string) {
	m.st.Update(func(s *State) {
		s.SaveContent = content
		s.DialogOpen = true
	})
}

// SetSaveTitle sets the pending preset title.
func (m *Manager) SetSaveTitle(title string) {
	m.st.Update(func(s *State) { s.SaveTitle = title })
}

// SetSaveContent sets the pending preset content.
func (m *Manager) SetSaveContent(content string) {
	m.st.Update(func(s *State) { s.SaveContent = content })
}

// CloseDialog dismisses the save dialog.
func (m *Manager) CloseDialog() {
	m.st.Update(func(s *State) { s.DialogOpen = false })
}

// SaveDialog creates a preset from the dialog fields.
func (m *Manager) SaveDialog(ctx context.Context) {
	s := m.State()
	m.Create(ctx, s.SaveTitle, s.SaveContent)
}

// Create persists a preset. Whatever the outcome, the dialog closes, content
// becomes the active context, the pending title is cleared and the mirror
// is refetched.
func (m *Manager) Create(ctx context.Context, title, content string) {
	if _, err := m.store.Create(ctx, title, content); err != nil {
		logx.Error().Err(err).Str("title", title).Msg("failed to create system context")
	}

	m.st.Update(func(s *State) {
		s.DialogOpen = false
		s.Active = content
		s.SaveTitle = ""
	})
	m.refetchLogged(ctx)
}

// Delete removes the preset from the mirror, then from the store, then
// refetches. A failed remote delete is not rolled back locally.
func (m *Manager) Delete(ctx context.Context, id string) {
	m.st.Update(func(s *State) {
		out := make([]model.SystemContext, 0, len(s.Presets))
		for _, p := range s.Presets {
			if p.ID != id {
				out = append(out, p)
			}
		}
		s.Presets = out
	})

	if err := m.store.Delete(ctx, id); err != nil {
		logx.Error().Err(err).Str("system_context_id", id).Msg("failed to delete system context")
	}
	m.refetchLogged(ctx)
}

// Rename retitles the preset in the mirror, then in the store, then refetches.
func (m *Manager) Rename(ctx context.Context, id, title string) {
	m.st.Update(func(s *State) {
		out := make([]model.SystemContext, len(s.Presets))
		for i, p := range s.Presets {
			if p.ID == id {
				p.Title = title
			}
			out[i] = p
		}
		s.Presets = out
	})

	if _, err := m.store.UpdateTitle(ctx, id, title); err != nil {
		logx.Error().Err(err).Str("system_context_id", id).Msg("failed to rename system context")
	}
	m.refetchLogged(ctx)
}

// Refetch reloads the mirror from the store. Concurrent calls share one
// store request.
func (m *Manager) Refetch(ctx context.Context) error {
	v, err, _ := m.group.Do("list", func() (any, error) {
		return m.store.List(ctx)
	})
	if err != nil {
		return err
	}
	list := v.([]model.SystemContext)
	m.st.Update(func(s *State) {
		s.Presets = append([]model.SystemContext(nil), list...)
	})
	return nil
}

func (m *Manager) refetchLogged(ctx context.Context) {
	if err := m.Refetch(ctx); err != nil {
		logx.Error().Err(err).Msg("failed to refetch system contexts")
	}
}
