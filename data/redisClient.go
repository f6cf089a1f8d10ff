package data

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/KotFed0t/portfolio_tracker/config"
	"github.com/redis/go-redis/v9"
)

func NewRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	pong, err := rdb.Ping(pingCtx).Result()
	if err != nil {
		slog.Error("Error while connecting Redis", slog.String("error", err.Error()))
		_ = rdb.Close()
		return nil, err
	}
	slog.Info("Redis connected", slog.String("pong", pong))

	return rdb, nil
}
