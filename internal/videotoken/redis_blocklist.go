// redis_blocklist.go - go-redis v9 Blocklist. Keys expire with the token, so
// the set never grows beyond the tokens revoked within one TTL.
package videotoken

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const blocklistPrefix = "videotoken:revoked:"

// RedisBlocklist stores revoked token ids in Redis.
type RedisBlocklist struct {
	c   goredis.Cmdable
	now func() time.Time
}

// NewRedisBlocklist wraps a go-redis client (or cluster/ring).
func NewRedisBlocklist(c goredis.Cmdable) *RedisBlocklist {
	return &RedisBlocklist{c: c, now: time.Now}
}

func (b *RedisBlocklist) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := until.Sub(b.now())
	if ttl <= 0 {
		return nil
	}
	return b.c.Set(ctx, blocklistPrefix+tokenID, "1", ttl).Err()
}

func (b *RedisBlocklist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := b.c.Exists(ctx, blocklistPrefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
