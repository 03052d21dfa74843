package config

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/yeremiapane/restaurant-ordering/utils"
)

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Prefix   string
	// CartTTL bounds how long an abandoned cart stays in Redis.
	CartTTL time.Duration
}

// Enabled reports whether a Redis host was configured. Without one the
// cart store stays in process.
func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pong, err := rdb.Ping(ctx).Result()
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	utils.InfoLogger.Infof("Redis connected: %s", pong)
	return rdb, nil
}
