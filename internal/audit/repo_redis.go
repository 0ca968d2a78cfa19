package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStreamRepo appends events to a capped Redis stream. Each entry carries the event type
// and the JSON-encoded event.
type RedisStreamRepo struct {
	rdb    redis.UniversalClient
	stream string
	maxLen int64
}

func NewRedisStreamRepo(rdb redis.UniversalClient, stream string, maxLen int64) *RedisStreamRepo {
	if maxLen <= 0 {
		maxLen = 100_000
	}
	return &RedisStreamRepo{rdb: rdb, stream: stream, maxLen: maxLen}
}

func (r *RedisStreamRepo) Append(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("audit: encode event: %w", err)
	}
	err = r.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		MaxLen: r.maxLen,
		Approx: true,
		Values: map[string]any{"type": string(e.Type), "event": body},
	}).Err()
	if err != nil {
		return fmt.Errorf("audit: xadd %s: %w", r.stream, err)
	}
	return nil
}

// Recent returns up to n of the newest events, newest first.
func (r *RedisStreamRepo) Recent(ctx context.Context, n int64) ([]Event, error) {
	msgs, err := r.rdb.XRevRangeN(ctx, r.stream, "+", "-", n).Result()
	if err != nil {
		return nil, fmt.Errorf("audit: xrevrange %s: %w", r.stream, err)
	}
	out := make([]Event, 0, len(msgs))
	for _, m := range msgs {
		raw, ok := m.Values["event"].(string)
		if !ok {
			continue
		}
		var e Event
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("audit: decode %s: %w", m.ID, err)
		}
		out = append(out, e)
	}
	return out, nil
}
