package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"unilink-backend/pkg/logger"
)

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
	Timeout  time.Duration
}

// RedisClient wraps the Redis client with degraded mode support.
// Pub/sub delivery of call notifications is best-effort; when Redis is
// degraded the poll fallback still drains the store.
type RedisClient struct {
	Client *redis.Client

	degradedMode   bool
	degradedModeMu sync.RWMutex
}

// NewRedisDB creates a new Redis client from config
func NewRedisDB(cfg *RedisConfig) (*RedisClient, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
		DialTimeout:  cfg.Timeout,
	})

	return &RedisClient{Client: client}, nil
}

// Close closes the Redis client connection
func (r *RedisClient) Close() {
	if r != nil && r.Client != nil {
		r.Client.Close()
	}
}

// IsDegraded reports whether the last health check failed
func (r *RedisClient) IsDegraded() bool {
	r.degradedModeMu.RLock()
	defer r.degradedModeMu.RUnlock()
	return r.degradedMode
}

// HealthCheck pings Redis and updates degraded mode state
func (r *RedisClient) HealthCheck(ctx context.Context) {
	err := r.Client.Ping(ctx).Err()

	r.degradedModeMu.Lock()
	defer r.degradedModeMu.Unlock()

	if err != nil && !r.degradedMode {
		r.degradedMode = true
		logger.Warn("Redis entered degraded mode", zap.Error(err))
	} else if err == nil && r.degradedMode {
		r.degradedMode = false
		logger.Info("Redis recovered from degraded mode")
	}
}

// StartHealthCheck starts a background goroutine that periodically checks Redis health
func (r *RedisClient) StartHealthCheck(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.HealthCheck(context.Background())
			}
		}
	}()
}
