package cache

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/CourseFox/internal/pkg/env"
)

var (
	client *redis.Client
	mu     sync.RWMutex
)

// SetupCache initializes the Redis connection used for counters and rate limits.
func SetupCache() {
	c := redis.NewClient(&redis.Options{
		Addr:     Addr(),
		Password: env.GetEnv("CACHE_PASSWORD", ""),
		DB:       env.GetEnvInt("CACHE_DB", 0),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	pong, err := c.Ping(ctx).Result()
	if err != nil {
		log.Printf("Warning: Could not connect to Redis cache: %v", err)
	} else {
		log.Printf("Successfully connected to Redis cache: %s", pong)
	}

	SetClient(c)
}

// Addr is the configured host:port.
func Addr() string {
	return fmt.Sprintf("%s:%s", env.GetEnv("CACHE_HOST", "localhost"), env.GetEnv("CACHE_PORT", "6379"))
}

// Port is CACHE_PORT as an int, for clients that take it separately.
func Port() int {
	p, err := strconv.Atoi(env.GetEnv("CACHE_PORT", "6379"))
	if err != nil {
		return 6379
	}
	return p
}

// GetClient returns the Redis client, or nil when SetupCache has not run.
func GetClient() *redis.Client {
	mu.RLock()
	defer mu.RUnlock()
	return client
}

// SetClient swaps the shared client (tests use an isolated DB).
func SetClient(c *redis.Client) {
	mu.Lock()
	defer mu.Unlock()
	client = c
}
