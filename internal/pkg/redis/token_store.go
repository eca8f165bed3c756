package redis

import (
	"ChatApp/internal/pkg/consts"
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenStore 记录已注销令牌，键在令牌自然过期后失效
type TokenStore struct {
	rdb redis.Cmdable
}

func NewTokenStore(rdb redis.Cmdable) *TokenStore {
	return &TokenStore{rdb: rdb}
}

// Revoke 注销令牌签名，ttl <= 0 时不写入
func (s *TokenStore) Revoke(ctx context.Context, signature string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return s.rdb.Set(ctx, consts.RevokedTokenKey+signature, 1, ttl).Err()
}

// IsRevoked 判断令牌签名是否已注销
func (s *TokenStore) IsRevoked(ctx context.Context, signature string) (bool, error) {
	n, err := s.rdb.Exists(ctx, consts.RevokedTokenKey+signature).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
