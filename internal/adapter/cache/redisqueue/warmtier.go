// Package redisqueue implements the Code Inventory's warm tier as an
// ordered list per game in Redis, addressed as "keys:<game>".
package redisqueue

import (
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/promo-harvester/internal/domain"
)

func listKey(game string) string {
	return "keys:" + game
}

// WarmTier implements domain.WarmTier over a go-redis client.
type WarmTier struct {
	client *redis.Client
}

// New constructs a WarmTier over client.
func New(client *redis.Client) *WarmTier {
	return &WarmTier{client: client}
}

// Push implements domain.WarmTier.
func (w *WarmTier) Push(ctx domain.Context, game string, codes ...string) error {
	if len(codes) == 0 {
		return nil
	}
	args := make([]any, len(codes))
	for i, c := range codes {
		args[i] = c
	}
	if err := w.client.RPush(ctx, listKey(game), args...).Err(); err != nil {
		return fmt.Errorf("op=redisqueue.push: %w", err)
	}
	return nil
}

// PopOldest implements domain.WarmTier using LPOPCOUNT, which removes and
// returns the n oldest elements atomically: no two concurrent PopOldest
// calls can observe the same element, unlike an LRANGE-then-LREM pattern.
func (w *WarmTier) PopOldest(ctx domain.Context, game string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	out, err := w.client.LPopCount(ctx, listKey(game), n).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("op=redisqueue.pop_oldest: %w", err)
	}
	return out, nil
}

// PushFront implements domain.WarmTier. LPUSH with multiple arguments
// inserts each one at the head in turn, which reverses their relative
// order; codes is pushed in reverse so the final list order matches the
// order codes was passed in (i.e. codes[0] ends up at the head again).
func (w *WarmTier) PushFront(ctx domain.Context, game string, codes ...string) error {
	if len(codes) == 0 {
		return nil
	}
	args := make([]any, len(codes))
	for i, c := range codes {
		args[len(codes)-1-i] = c
	}
	if err := w.client.LPush(ctx, listKey(game), args...).Err(); err != nil {
		return fmt.Errorf("op=redisqueue.push_front: %w", err)
	}
	return nil
}

// Len implements domain.WarmTier.
func (w *WarmTier) Len(ctx domain.Context, game string) (int64, error) {
	n, err := w.client.LLen(ctx, listKey(game)).Result()
	if err != nil {
		return 0, fmt.Errorf("op=redisqueue.len: %w", err)
	}
	return n, nil
}

// Expire implements domain.WarmTier.
func (w *WarmTier) Expire(ctx domain.Context, game string, ttl time.Duration) error {
	if err := w.client.Expire(ctx, listKey(game), ttl).Err(); err != nil {
		return fmt.Errorf("op=redisqueue.expire: %w", err)
	}
	return nil
}
