// Package graph composes the retrieval-augmented answer graph:
// input_converter -> retriever -> prompt_assembler -> chat_model.
package graph

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	einoretriever "github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/ragkb-chat/core/internal/backend/observers"
	"github.com/ragkb-chat/core/internal/retriever"
	logx "github.com/ragkb-chat/core/pkg/logger"
)

// Config holds everything needed to build the graph for one chat model.
type Config struct {
	ChatModel model.BaseChatModel
	Retriever einoretriever.Retriever
	TopK      int
	MaxTurns  int
}

// Runner executes the compiled graph.
type Runner struct {
	runnable compose.Runnable[Input, *schema.Message]
	topK     int
}

func (r *Runner) options(in Input) []compose.Option {
	return []compose.Option{
		compose.WithCallbacks(observers.NewAllCallbacks()),
		compose.WithRetrieverOption(
			einoretriever.WithTopK(r.topK),
			retriever.WithFilters(in.Filters...),
		),
	}
}

// Invoke returns the complete answer.
func (r *Runner) Invoke(ctx context.Context, in Input) (*schema.Message, error) {
	return r.runnable.Invoke(ctx, in, r.options(in)...)
}

// Stream returns the answer as a stream of deltas. The caller closes it.
func (r *Runner) Stream(ctx context.Context, in Input) (*schema.StreamReader[*schema.Message], error) {
	return r.runnable.Stream(ctx, in, r.options(in)...)
}

// Build composes and compiles the graph.
func Build(ctx context.Context, cfg Config) (*Runner, error) {
	if cfg.ChatModel == nil {
		return nil, fmt.Errorf("chat model is nil")
	}
	if cfg.Retriever == nil {
		return nil, fmt.Errorf("retriever is nil")
	}
	if cfg.TopK <= 0 {
		cfg.TopK = retriever.DefaultTopK
	}

	g := compose.NewGraph[Input, *schema.Message](
		compose.WithGenLocalState(func(ctx context.Context) *AppState {
			return &AppState{}
		}),
	)

	if err := g.AddLambdaNode(NodeInputConverter, NewInputConverterNode(cfg.MaxTurns)); err != nil {
		return nil, fmt.Errorf("add %s: %w", NodeInputConverter, err)
	}
	if err := g.AddRetrieverNode(NodeRetriever, cfg.Retriever); err != nil {
		return nil, fmt.Errorf("add %s: %w", NodeRetriever, err)
	}
	if err := g.AddLambdaNode(NodePromptAssembler, NewPromptAssemblerNode()); err != nil {
		return nil, fmt.Errorf("add %s: %w", NodePromptAssembler, err)
	}
	if err := g.AddChatModelNode(NodeChatModel, cfg.ChatModel); err != nil {
		return nil, fmt.Errorf("add %s: %w", NodeChatModel, err)
	}

	edges := [][2]string{
		{compose.START, NodeInputConverter},
		{NodeInputConverter, NodeRetriever},
		{NodeRetriever, NodePromptAssembler},
		{NodePromptAssembler, NodeChatModel},
		{NodeChatModel, compose.END},
	}
	for _, e := range edges {
		if err := g.AddEdge(e[0], e[1]); err != nil {
			return nil, fmt.Errorf("add edge %s -> %s: %w", e[0], e[1], err)
		}
	}

	runnable, err := g.Compile(ctx, compose.WithMaxRunSteps(10))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Graph compiled successfully")
	return &Runner{runnable: runnable, topK: cfg.TopK}, nil
}
