package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	errx "github.com/ragkb-chat/core/internal/core/error"
	"github.com/ragkb-chat/core/internal/model"
	logx "github.com/ragkb-chat/core/pkg/logger"
)

const (
	systemContextsKey      = "system_contexts"
	systemContextsOrderKey = "system_contexts:created"
)

// RedisSystemContextStore keeps presets as JSON in a hash, with a sorted set
// recording creation order.
type RedisSystemContextStore struct {
	rdb      redis.Cmdable
	now      func() time.Time
	hashKey  string
	orderKey string
}

func NewRedisSystemContextStore(rdb redis.Cmdable) *RedisSystemContextStore {
	return newRedisSystemContextStore(rdb, "")
}

func newRedisSystemContextStore(rdb redis.Cmdable, prefix string) *RedisSystemContextStore {
	return &RedisSystemContextStore{
		rdb:      rdb,
		now:      time.Now,
		hashKey:  prefix + systemContextsKey,
		orderKey: prefix + systemContextsOrderKey,
	}
}

func (s *RedisSystemContextStore) List(ctx context.Context) ([]model.SystemContext, error) {
	ids, err := s.rdb.ZRevRange(ctx, s.orderKey, 0, -1).Result()
	if err != nil && err != redis.Nil {
		logx.Error().Err(err).Msg("failed to list system context ids")
		return nil, errx.WrapRedis(err)
	}
	out := []model.SystemContext{}
	if len(ids) == 0 {
		return out, nil
	}

	vals, err := s.rdb.HMGet(ctx, s.hashKey, ids...).Result()
	if err != nil {
		logx.Error().Err(err).Msg("failed to load system contexts")
		return nil, errx.WrapRedis(err)
	}
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			// order entry without a body; a concurrent delete
			continue
		}
		var sc model.SystemContext
		if err := json.Unmarshal([]byte(raw), &sc); err != nil {
			logx.Error().Err(err).Str("system_context_id", ids[i]).Msg("failed to unmarshal system context")
			return nil, fmt.Errorf("unmarshal system context %s: %w", ids[i], err)
		}
		out = append(out, sc)
	}
	return out, nil
}

func (s *RedisSystemContextStore) Create(ctx context.Context, title, content string) (*model.SystemContext, error) {
	sc := &model.SystemContext{
		ID:        uuid.NewString(),
		Title:     title,
		Content:   content,
		CreatedAt: s.now().UTC(),
	}
	b, err := json.Marshal(sc)
	if err != nil {
		return nil, fmt.Errorf("marshal system context: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, s.hashKey, sc.ID, b)
	pipe.ZAdd(ctx, s.orderKey, redis.Z{Score: float64(sc.CreatedAt.UnixMilli()), Member: sc.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		logx.Error().Err(err).Str("title", title).Msg("failed to store system context")
		return nil, errx.WrapRedis(err)
	}
	return sc, nil
}

func (s *RedisSystemContextStore) Delete(ctx context.Context, id string) error {
	pipe := s.rdb.TxPipeline()
	del := pipe.HDel(ctx, s.hashKey, id)
	pipe.ZRem(ctx, s.orderKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		logx.Error().Err(err).Str("system_context_id", id).Msg("failed to delete system context")
		return errx.WrapRedis(err)
	}
	if del.Val() == 0 {
		return errx.NotFound("system context " + id)
	}
	return nil
}

// UpdateTitle is last-writer-wins against concurrent renames of the same id.
func (s *RedisSystemContextStore) UpdateTitle(ctx context.Context, id, title string) (*model.SystemContext, error) {
	raw, err := s.rdb.HGet(ctx, s.hashKey, id).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, errx.NotFound("system context " + id)
		}
		logx.Error().Err(err).Str("system_context_id", id).Msg("failed to load system context")
		return nil, errx.WrapRedis(err)
	}

	var sc model.SystemContext
	if err := json.Unmarshal([]byte(raw), &sc); err != nil {
		return nil, fmt.Errorf("unmarshal system context %s: %w", id, err)
	}
	sc.Title = title
	b, err := json.Marshal(sc)
	if err != nil {
		return nil, fmt.Errorf("marshal system context: %w", err)
	}
	if err := s.rdb.HSet(ctx, s.hashKey, id, b).Err(); err != nil {
		logx.Error().Err(err).Str("system_context_id", id).Msg("failed to rename system context")
		return nil, errx.WrapRedis(err)
	}
	return &sc, nil
}

var _ model.SystemContextStore = (*RedisSystemContextStore)(nil)
