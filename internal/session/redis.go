package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisNonceStore keeps nonces in Redis so multiple API replicas share the
// same challenge state. Expiry is delegated to the key TTL.
type RedisNonceStore struct {
	client *redis.Client
	prefix string
}

func NewRedisNonceStore(client *redis.Client) *RedisNonceStore {
	return &RedisNonceStore{client: client, prefix: "dojo:nonce:"}
}

var _ NonceStore = (*RedisNonceStore)(nil)

func (s *RedisNonceStore) SaveNonce(ctx context.Context, wallet, nonce string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultNonceTTL
	}
	if err := s.client.Set(ctx, s.prefix+wallet, nonce, ttl).Err(); err != nil {
		return fmt.Errorf("save nonce: %w", err)
	}
	return nil
}

func (s *RedisNonceStore) TakeNonce(ctx context.Context, wallet string) (string, error) {
	nonce, err := s.client.GetDel(ctx, s.prefix+wallet).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNonceNotFound
	}
	if err != nil {
		return "", fmt.Errorf("take nonce: %w", err)
	}
	return nonce, nil
}
