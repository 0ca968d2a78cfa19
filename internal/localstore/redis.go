package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Redis keeps one origin's keys in Redis and fans changes out over a pub/sub channel.
// Key layout: <namespace>:<origin>:<key>; channel: <namespace>:<origin>:changes.
type Redis struct {
	rdb    redis.UniversalClient
	prefix string
	log    *slog.Logger
}

func NewRedis(rdb redis.UniversalClient, namespace, origin string, log *slog.Logger) *Redis {
	if log == nil {
		log = slog.Default()
	}
	return &Redis{rdb: rdb, prefix: namespace + ":" + origin, log: log}
}

// Tab returns the store view for tabID.
func (r *Redis) Tab(tabID string) Store { return &redisTab{r: r, tab: tabID} }

func (r *Redis) key(k string) string { return r.prefix + ":" + k }

func (r *Redis) channel() string { return r.prefix + ":changes" }

type redisTab struct {
	r   *Redis
	tab string
}

func (t *redisTab) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := t.r.rdb.Get(ctx, t.r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("localstore get %s: %w", key, err)
	}
	return v, true, nil
}

// Set writes the key and publishes the change in one MULTI/EXEC.
func (t *redisTab) Set(ctx context.Context, key, value string) error {
	if value == "" {
		return t.Delete(ctx, key)
	}
	payload, err := json.Marshal(Change{Key: key, Value: value, Source: t.tab})
	if err != nil {
		return err
	}
	_, err = t.r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, t.r.key(key), value, 0)
		pipe.Publish(ctx, t.r.channel(), payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("localstore set %s: %w", key, err)
	}
	return nil
}

func (t *redisTab) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	payloads := make([][]byte, 0, len(keys))
	for _, k := range keys {
		full = append(full, t.r.key(k))
		p, err := json.Marshal(Change{Key: k, Source: t.tab})
		if err != nil {
			return err
		}
		payloads = append(payloads, p)
	}
	_, err := t.r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, full...)
		for _, p := range payloads {
			pipe.Publish(ctx, t.r.channel(), p)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("localstore delete: %w", err)
	}
	return nil
}

// Watch subscribes before returning so no change published afterwards is missed.
func (t *redisTab) Watch(ctx context.Context) (<-chan Change, error) {
	sub := t.r.rdb.Subscribe(ctx, t.r.channel())
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("localstore watch: %w", err)
	}

	out := make(chan Change, watchBuffer)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var c Change
				if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
					t.r.log.Warn("localstore: undecodable change", "err", err)
					continue
				}
				if c.Source == t.tab {
					continue
				}
				select {
				case out <- c:
				default:
					t.r.log.Warn("localstore: watcher full, change dropped", "key", c.Key)
				}
			}
		}
	}()
	return out, nil
}
