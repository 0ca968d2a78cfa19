package localstore

import (
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

const (
	defaultMaxOrigins = 4096
	defaultOriginIdle = 24 * time.Hour
)

// MemoryOrigins keeps one Memory per origin, bounded by count and idle time.
func MemoryOrigins() Origins {
	return MemoryOriginsWithLimit(defaultMaxOrigins, defaultOriginIdle)
}

// MemoryOriginsWithLimit keeps at most size origins. An origin untouched for idle is
// dropped along with its keys; a later request starts it empty.
func MemoryOriginsWithLimit(size int, idle time.Duration) Origins {
	if size <= 0 {
		size = defaultMaxOrigins
	}
	var mu sync.Mutex
	origins := expirable.NewLRU[string, *Memory](size, nil, idle)
	return func(origin string) Origin {
		mu.Lock()
		defer mu.Unlock()
		m, ok := origins.Get(origin)
		if !ok {
			m = NewMemory()
		}
		// Re-adding restarts the idle clock.
		origins.Add(origin, m)
		return m
	}
}

// RedisOrigins maps every origin onto its own key prefix and change channel.
func RedisOrigins(rdb redis.UniversalClient, namespace string, log *slog.Logger) Origins {
	return func(origin string) Origin {
		return NewRedis(rdb, namespace, origin, log)
	}
}
