package model

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// ConversationRepository stores the backend-side history of a retrieval session.
type ConversationRepository interface {
	// AddMessage adds a message to the history of the given session
	AddMessage(ctx context.Context, sessionID string, message *schema.Message) error

	// LoadHistory retrieves the history of a session
	LoadHistory(ctx context.Context, sessionID string) (*ConversationHistory, error)

	// ClearHistory removes all history for a session
	ClearHistory(ctx context.Context, sessionID string) error

	// GetMessageCount returns the number of messages stored for the session
	GetMessageCount(ctx context.Context, sessionID string) (int, error)
}

// ConversationHistory represents loaded session data with metadata.
type ConversationHistory struct {
	SessionID string
	Messages  []*schema.Message
}
