package repo

import (
	"context"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/patrickmn/go-cache"

	"github.com/ragkb-chat/core/internal/model"
)

// CacheConversationRepository keeps session histories in process memory.
// Entries expire ttl after their last append.
type CacheConversationRepository struct {
	mu    sync.Mutex
	cache *cache.Cache
	ttl   time.Duration
}

func NewCacheConversationRepository(ttl time.Duration) *CacheConversationRepository {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return &CacheConversationRepository{
		cache: cache.New(ttl, 10*time.Minute),
		ttl:   ttl,
	}
}

func (r *CacheConversationRepository) load(sessionID string) []*schema.Message {
	if x, found := r.cache.Get(sessionID); found {
		return x.([]*schema.Message)
	}
	return nil
}

func (r *CacheConversationRepository) AddMessage(_ context.Context, sessionID string, message *schema.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.load(sessionID)
	next := make([]*schema.Message, len(prev), len(prev)+1)
	copy(next, prev)
	next = append(next, message)
	r.cache.Set(sessionID, next, r.ttl)
	return nil
}

func (r *CacheConversationRepository) LoadHistory(_ context.Context, sessionID string) (*model.ConversationHistory, error) {
	r.mu.Lock()
	msgs := r.load(sessionID)
	r.mu.Unlock()

	return &model.ConversationHistory{
		SessionID: sessionID,
		Messages:  append([]*schema.Message{}, msgs...),
	}, nil
}

func (r *CacheConversationRepository) ClearHistory(_ context.Context, sessionID string) error {
	r.cache.Delete(sessionID)
	return nil
}

func (r *CacheConversationRepository) GetMessageCount(_ context.Context, sessionID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.load(sessionID)), nil
}

var _ model.ConversationRepository = (*CacheConversationRepository)(nil)
