package store

import (
	"context"
	"errors"
	"fmt"

	"dexanalytics/internal/domain"
	rdb "dexanalytics/internal/stores/redis"

	goredis "github.com/redis/go-redis/v9"
	"gitlab.com/nevasik7/alerting/logger"
)

// RedisStore keeps every entity under "<prefix><kind>:<id>" with no expiry
type RedisStore struct {
	log    logger.Logger
	rdb    *rdb.Client
	prefix string
}

// prefix example "clmm:"
func NewRedisStore(log logger.Logger, client *rdb.Client, prefix string) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client is required to the redis store")
	}
	if prefix == "" {
		prefix = "clmm:"
	}

	return &RedisStore{
		log:    log,
		rdb:    client,
		prefix: prefix,
	}, nil
}

func (s *RedisStore) key(kind domain.Kind, id string) string {
	return s.prefix + entityKey(kind, id)
}

func (s *RedisStore) Get(ctx context.Context, kind domain.Kind, id string) ([]byte, error) {
	data, err := s.rdb.Get(ctx, s.key(kind, id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		s.log.Errorf("Redis GET %s error=%v", s.key(kind, id), err)
		return nil, fmt.Errorf("redis get %s: %w", s.key(kind, id), err)
	}
	return data, nil
}

func (s *RedisStore) Put(ctx context.Context, kind domain.Kind, id string, data []byte) error {
	if err := s.rdb.Set(ctx, s.key(kind, id), data, 0).Err(); err != nil {
		s.log.Errorf("Redis SET %s error=%v", s.key(kind, id), err)
		return fmt.Errorf("redis set %s: %w", s.key(kind, id), err)
	}
	return nil
}

func (s *RedisStore) Health(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
