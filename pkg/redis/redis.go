package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options параметры подключения к Redis
type Options struct {
	Addr     string
	Password string
	DB       int
}

const (
	poolSize    = 10
	dialTimeout = 3 * time.Second
)

// NewClient создает клиент Redis и проверяет соединение.
// Клиент используется одновременно как кэш, очередь уведомлений и pub/sub лента изменений,
// поэтому ReadTimeout отключен для блокирующих BRPOP и Subscribe.
func NewClient(ctx context.Context, opts Options) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		PoolSize:    poolSize,
		DialTimeout: dialTimeout,
		ReadTimeout: -1,
	})

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", opts.Addr, err)
	}

	return rdb, nil
}
