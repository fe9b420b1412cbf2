package database

import (
	"context"
	"fmt"
	"time"

	"github.com/aihub/support-portal/internal/config"
	"github.com/redis/go-redis/v9"
)

// OpenRedis 创建Redis客户端并测试连接
func OpenRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		DB:       cfg.DB,
		Password: cfg.Password,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

// RedisPinger 将Redis客户端适配为健康检查组件
type RedisPinger struct {
	Client *redis.Client
}

func (p RedisPinger) PingContext(ctx context.Context) error {
	return p.Client.Ping(ctx).Err()
}
