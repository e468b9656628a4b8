package cli

import (
	"context"
	"fmt"
	"io"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ragkb-chat/core/internal/backend"
	"github.com/ragkb-chat/core/internal/backend/graph"
	"github.com/ragkb-chat/core/internal/catalog"
	"github.com/ragkb-chat/core/internal/filter"
	"github.com/ragkb-chat/core/internal/model"
	"github.com/ragkb-chat/core/internal/rag"
	"github.com/ragkb-chat/core/internal/repo"
	"github.com/ragkb-chat/core/internal/retriever"
	logx "github.com/ragkb-chat/core/pkg/logger"
)

// App holds the wired components of one process.
type App struct {
	Config  *AppConfig
	Filters []filter.Configuration
	Presets model.SystemContextStore
	Backend *backend.Backend
	Session *rag.Orchestrator

	closers []io.Closer
}

// Close releases every opened resource, last opened first.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (a *App) redis(ctx context.Context) (*goredis.Client, error) {
	for _, c := range a.closers {
		if rdb, ok := c.(*goredis.Client); ok {
			return rdb, nil
		}
	}
	rdb, err := a.Config.Redis.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise Redis client: %w", err)
	}
	logx.Debug().Msg("Connected to Redis successfully")
	a.closers = append(a.closers, rdb)
	return rdb, nil
}

// NewPresetApp wires only what preset and filter commands need.
func NewPresetApp(ctx context.Context, cfg *AppConfig) (*App, error) {
	a := &App{Config: cfg}
	if err := a.openPresets(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) openPresets(ctx context.Context) error {
	switch a.Config.Presets.Backend {
	case "redis":
		if !a.Config.Redis.Enabled() {
			return fmt.Errorf("PRESET_STORE=redis requires REDIS_URL")
		}
		rdb, err := a.redis(ctx)
		if err != nil {
			return err
		}
		a.Presets = repo.NewRedisSystemContextStore(rdb)
	case "sqlite", "":
		s, err := repo.NewSQLiteSystemContextStore(a.Config.Presets.SQLitePath)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, s)
		a.Presets = s
	default:
		return fmt.Errorf("unknown PRESET_STORE %q", a.Config.Presets.Backend)
	}
	return nil
}

func (a *App) openFilters() error {
	configs, err := filter.LoadConfigurations(a.Config.Filters.Path)
	if err != nil {
		return err
	}
	a.Filters = configs
	return nil
}

// NewApp wires the full chat stack.
func NewApp(ctx context.Context, cfg *AppConfig) (*App, error) {
	a, err := NewPresetApp(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := a.wireChat(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wireChat(ctx context.Context) error {
	cfg := a.Config
	if err := a.openFilters(); err != nil {
		return err
	}

	ttl, err := cfg.ConversationTTL()
	if err != nil {
		return err
	}
	var history model.ConversationRepository
	if cfg.Redis.Enabled() {
		rdb, err := a.redis(ctx)
		if err != nil {
			return err
		}
		history = repo.NewRedisConversationRepository(rdb, ttl)
	} else {
		history = repo.NewCacheConversationRepository(ttl)
	}

	docs, err := retriever.LoadDocuments(cfg.Retriever.DocumentsPath)
	if err != nil {
		return err
	}
	index := retriever.NewMemoryIndex(docs)
	logx.Debug().Int("documents", index.Len()).Str("path", cfg.Retriever.DocumentsPath).Msg("knowledge base loaded")

	models, err := graph.NewGeminiFactory(ctx, graph.GeminiConfig{
		APIKey:      cfg.Generation.APIKey,
		BaseURL:     cfg.Generation.BaseURL,
		MaxTokens:   cfg.Generation.MaxTokens,
		Temperature: cfg.Generation.Temperature,
	})
	if err != nil {
		return err
	}

	cat := newCatalog(cfg.Catalog)
	a.Backend, err = backend.New(backend.Config{
		Repo:           history,
		Retriever:      index,
		ChatModel:      models,
		DefaultModelID: cat.Default(),
		TopK:           cfg.Retriever.TopK,
		MaxTurns:       cfg.Conversation.MaxTurns,
	})
	if err != nil {
		return err
	}

	a.Session, err = rag.New(ctx, rag.Config{
		Backend: a.Backend,
		Presets: a.Presets,
		Filters: a.Filters,
		Catalog: cat,
		Stream:  cfg.Conversation.Stream,
	})
	return err
}

func newCatalog(cfg model.CatalogConfig) *catalog.Catalog {
	cat := catalog.New(cfg.ModelIDs...)
	for id, name := range cfg.DisplayNames {
		cat.WithDisplayName(id, name)
	}
	return cat
}
