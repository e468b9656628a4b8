package graph

import (
	"github.com/cloudwego/eino/schema"

	"github.com/ragkb-chat/core/internal/filter"
)

// Input is one retrieval-augmented question.
type Input struct {
	SessionID     string
	SystemContext string
	// History holds the prior user and assistant turns, oldest first.
	History []*schema.Message
	Query   string
	Filters []filter.RetrievalFilter
}

// AppState stores per-invocation state of the graph. It is registered as
// graph local state and only touched through compose.ProcessState.
type AppState struct {
	SessionID     string
	SystemContext string
	History       []*schema.Message
	Query         string
	Filtered      bool
	Documents     []*schema.Document
}
