package chat

import "github.com/ragkb-chat/core/internal/model"

// View selects a projection of the conversation.
type View int

const (
	// ViewDisplay hides the system turn.
	ViewDisplay View = iota
	// ViewRaw includes the system turn first.
	ViewRaw
)

// State is an immutable snapshot of a conversation. Messages never contains
// the system turn; it is kept in SystemContext.
type State struct {
	ModelID       string          `json:"modelId"`
	SystemContext string          `json:"systemContext"`
	Messages      []model.Message `json:"messages"`
	Loading       bool            `json:"loading"`
	Writing       bool            `json:"writing"`
	// Generation identifies the request that produced the last turn.
	Generation uint64 `json:"generation"`
}

// IsEmpty reports whether no user or assistant turn exists yet.
func (s State) IsEmpty() bool {
	return len(s.Messages) == 0
}

// Project returns the requested view. It never aliases s.Messages.
func (s State) Project(v View) []model.Message {
	if v == ViewRaw {
		out := make([]model.Message, 0, len(s.Messages)+1)
		out = append(out, model.Message{Role: model.RoleSystem, Content: s.SystemContext})
		return append(out, s.Messages...)
	}
	return append([]model.Message(nil), s.Messages...)
}

// Editable reports whether the display-view message at index may be edited.
func (s State) Editable(index int) bool {
	n := len(s.Messages)
	return !s.Loading &&
		n >= 2 &&
		index == n-2 &&
		s.Messages[index].Role == model.RoleUser &&
		s.Messages[n-1].Role == model.RoleAssistant
}

// Retryable reports whether the last turn can be regenerated.
func (s State) Retryable() bool {
	n := len(s.Messages)
	return !s.Loading &&
		n >= 2 &&
		s.Messages[n-1].Role == model.RoleAssistant &&
		s.Messages[n-2].Role == model.RoleUser
}

func withLast(msgs []model.Message, content string) []model.Message {
	out := append([]model.Message(nil), msgs...)
	if len(out) > 0 {
		out[len(out)-1].Content = content
	}
	return out
}
