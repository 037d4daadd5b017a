package entitlement

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const journalKeyPrefix = "memberd:events:"

// RedisJournal implements EventJournal on Redis. Entries expire after the
// configured TTL; the provider stops redelivering long before that, so an
// expired entry only means a duplicate would be reprocessed idempotently.
type RedisJournal struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisJournal creates a journal with the given retention.
func NewRedisJournal(client *redis.Client, ttl time.Duration) *RedisJournal {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &RedisJournal{client: client, ttl: ttl}
}

func (j *RedisJournal) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := j.client.Exists(ctx, journalKeyPrefix+eventID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (j *RedisJournal) Record(ctx context.Context, eventID string) error {
	return j.client.Set(ctx, journalKeyPrefix+eventID, 1, j.ttl).Err()
}
