package model

import "context"

// PredictRequest is one generation request sent to the chat backend.
type PredictRequest struct {
	ModelID string `json:"modelId,omitempty"`
	// Messages holds the full conversation to answer, system turn first.
	Messages       []Message   `json:"messages"`
	Stream         bool        `json:"stream"`
	PromptOverride string      `json:"promptOverride,omitempty"`
	SessionID      string      `json:"sessionId,omitempty"`
	ExtraData      []ExtraData `json:"extraData,omitempty"`
	UseCaseID      string      `json:"useCaseId"`
}

// LastUserContent returns the content of the most recent user turn.
func (r *PredictRequest) LastUserContent() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == RoleUser {
			return r.Messages[i].Content
		}
	}
	return ""
}

// PredictResult is the backend's answer. SessionID is the server-issued
// session token and is empty when the backend does not track sessions.
type PredictResult struct {
	Content   string `json:"content"`
	SessionID string `json:"sessionId,omitempty"`
}

// ChunkFunc receives the accumulated assistant content while streaming.
type ChunkFunc func(content string)

// ChatBackend generates assistant turns grounded in the knowledge base.
type ChatBackend interface {
	// Predict answers req. When req.Stream is set and onChunk is non-nil the
	// backend reports partial content as it arrives.
	Predict(ctx context.Context, req *PredictRequest, onChunk ChunkFunc) (*PredictResult, error)
}

// ForceStopper is implemented by backends that can abort in-flight generation.
type ForceStopper interface {
	ForceStop(ctx context.Context) error
}
