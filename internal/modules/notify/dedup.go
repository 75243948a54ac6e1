// README: Best-effort de-duplication of advisory notices.
package notify

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper reports whether key is seen for the first time within ttl.
type Deduper interface {
	FirstSeen(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type RedisDeduper struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisDeduper(client redis.UniversalClient, prefix string) *RedisDeduper {
	return &RedisDeduper{client: client, prefix: prefix}
}

func (d *RedisDeduper) FirstSeen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return d.client.SetNX(ctx, d.prefix+":dedup:"+key, "1", ttl).Result()
}
