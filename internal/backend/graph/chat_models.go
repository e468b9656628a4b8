package graph

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"

	logx "github.com/ragkb-chat/core/pkg/logger"
)

// ChatModelFactory returns the chat model serving modelID.
type ChatModelFactory func(ctx context.Context, modelID string) (model.BaseChatModel, error)

// GeminiConfig holds what is needed to reach the Gemini API.
type GeminiConfig struct {
	APIKey      string
	BaseURL     string
	MaxTokens   int
	Temperature float32
}

// NewGeminiFactory shares one genai client across every model id.
func NewGeminiFactory(ctx context.Context, cfg GeminiConfig) (ChatModelFactory, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is empty")
	}
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	return func(ctx context.Context, modelID string) (model.BaseChatModel, error) {
		cm, err := gemini.NewChatModel(ctx, &gemini.Config{
			Client:      client,
			Model:       modelID,
			Temperature: &cfg.Temperature,
			MaxTokens:   &cfg.MaxTokens,
		})
		if err != nil {
			logx.Error().Err(err).Str("model", modelID).Msg("Error creating chat model")
			return nil, fmt.Errorf("error creating chat model %s: %w", modelID, err)
		}
		return cm, nil
	}, nil
}
