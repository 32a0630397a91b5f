package receipts

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func newRedisStore(dsn string, ttl time.Duration) *redisStore {
	opts, err := redis.ParseURL(dsn)
	if err != nil {
		opts = &redis.Options{Addr: dsn}
	}
	return &redisStore{
		client: redis.NewClient(opts),
		ttl:    ttl,
	}
}

func (s *redisStore) key(eventID string) string {
	return "commerce:webhook:" + eventID
}

func (s *redisStore) Check(ctx context.Context, eventID, eventType string) (bool, error) {
	set, err := s.client.SetNX(ctx, s.key(eventID), eventType, s.ttl).Result()
	if err != nil {
		return false, err
	}
	// SetNX returns true if the key was SET (i.e. NOT a duplicate).
	return !set, nil
}

func (s *redisStore) MarkProcessed(ctx context.Context, eventID string) error {
	return s.client.Set(ctx, s.key(eventID)+":processed", time.Now().UTC().Format(time.RFC3339), s.ttl).Err()
}
