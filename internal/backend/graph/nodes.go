package graph

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/ragkb-chat/core/internal/prompts"
	"github.com/ragkb-chat/core/internal/retriever"
	logx "github.com/ragkb-chat/core/pkg/logger"
)

const (
	NodeInputConverter  = "input_converter"
	NodeRetriever       = "retriever"
	NodePromptAssembler = "prompt_assembler"
	NodeChatModel       = "chat_model"
)

// NewInputConverterNode records the request in state and emits the retrieval query.
func NewInputConverterNode(maxTurns int) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in Input) (string, error) {
		if in.Query == "" {
			return "", fmt.Errorf("query is empty")
		}
		err := compose.ProcessState(ctx, func(_ context.Context, s *AppState) error {
			s.SessionID = in.SessionID
			s.SystemContext = in.SystemContext
			s.History = trimTail(in.History, maxTurns)
			s.Query = in.Query
			s.Filtered = len(in.Filters) > 0
			return nil
		})
		if err != nil {
			return "", fmt.Errorf("failed to access state: %w", err)
		}
		return in.Query, nil
	})
}

// NewPromptAssemblerNode builds the model input: the system turn with the
// retrieved documents, then the history, then the query.
func NewPromptAssemblerNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, docs []*schema.Document) ([]*schema.Message, error) {
		var s AppState
		err := compose.ProcessState(ctx, func(_ context.Context, state *AppState) error {
			state.Documents = docs
			s = *state
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		passages := make([]prompts.Document, 0, len(docs))
		for _, d := range docs {
			if d == nil {
				continue
			}
			passages = append(passages, prompts.Document{ID: d.ID, Title: retriever.TitleOf(d), Content: d.Content})
		}
		logx.Debug().
			Str("session_id", s.SessionID).
			Str("node", NodePromptAssembler).
			Int("documents", len(passages)).
			Bool("filtered", s.Filtered).
			Msg("assembling prompt")

		system, err := prompts.RenderAnswerSystem(ctx, s.SystemContext, passages, s.Filtered)
		if err != nil {
			return nil, fmt.Errorf("render answer prompt: %w", err)
		}

		messages := make([]*schema.Message, 0, len(s.History)+2)
		messages = append(messages, schema.SystemMessage(system))
		messages = append(messages, s.History...)
		messages = append(messages, schema.UserMessage(s.Query))
		return messages, nil
	})
}

// trimTail keeps the last maxTurns messages; maxTurns <= 0 keeps all.
func trimTail(messages []*schema.Message, maxTurns int) []*schema.Message {
	source := messages
	if maxTurns > 0 && len(messages) > maxTurns {
		source = messages[len(messages)-maxTurns:]
	}
	result := make([]*schema.Message, len(source))
	copy(result, source)
	return result
}
