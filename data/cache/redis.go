package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/KotFed0t/portfolio_tracker/utils"
	"github.com/redis/go-redis/v9"
)

const quoteKeyPrefix = "quote:"

type RedisCache struct {
	redis      *redis.Client
	expiration time.Duration
}

func NewRedisCache(redisClient *redis.Client, expiration time.Duration) *RedisCache {
	return &RedisCache{redis: redisClient, expiration: expiration}
}

func quoteKey(symbol string) string {
	return quoteKeyPrefix + strings.ToUpper(symbol)
}

func (r *RedisCache) SetQuotes(ctx context.Context, quotes []model.Quote) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "RedisCache.SetQuotes"
	slog.Debug("SetQuotes start", slog.String("rqID", rqID), slog.String("op", op))

	if len(quotes) == 0 {
		return nil
	}

	pipe := r.redis.Pipeline()
	for _, quote := range quotes {
		quoteJson, err := json.Marshal(quote)
		if err != nil {
			slog.Error(
				"can't marshal quote",
				slog.String("rqID", rqID),
				slog.String("op", op),
				slog.String("err", err.Error()),
				slog.Any("quote", quote),
			)
			return errors.New("can't marshal quote")
		}

		pipe.Set(ctx, quoteKey(quote.Symbol), quoteJson, r.expiration)
	}

	_, err := pipe.Exec(ctx)
	if err != nil {
		slog.Error("failed on pipe.Exec", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	slog.Debug("SetQuotes finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int("count", len(quotes)))

	return nil
}

// GetQuotes returns the cached quotes and the symbols that missed, in input
// order. Undecodable entries count as misses.
func (r *RedisCache) GetQuotes(ctx context.Context, symbols []string) (map[string]model.Quote, []string, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "RedisCache.GetQuotes"
	slog.Debug("GetQuotes start", slog.String("rqID", rqID), slog.String("op", op))

	if len(symbols) == 0 {
		return map[string]model.Quote{}, nil, nil
	}

	keys := make([]string, len(symbols))
	for i, symbol := range symbols {
		keys[i] = quoteKey(symbol)
	}

	values, err := r.redis.MGet(ctx, keys...).Result()
	if err != nil {
		slog.Error("failed on redis.MGet", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, nil, err
	}

	found := make(map[string]model.Quote, len(symbols))
	var missed []string

	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			missed = append(missed, symbols[i])
			continue
		}

		quote := model.Quote{}
		if err = json.Unmarshal([]byte(s), &quote); err != nil {
			slog.Warn("can't unmarshal cached quote", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbols[i]))
			missed = append(missed, symbols[i])
			continue
		}

		found[symbols[i]] = quote
	}

	slog.Debug("GetQuotes finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int("hits", len(found)), slog.Int("misses", len(missed)))

	return found, missed, nil
}

// FlushQuotes drops the cached quotes of symbols.
func (r *RedisCache) FlushQuotes(ctx context.Context, symbols []string) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "RedisCache.FlushQuotes"

	if len(symbols) == 0 {
		return nil
	}

	keys := make([]string, len(symbols))
	for i, symbol := range symbols {
		keys[i] = quoteKey(symbol)
	}

	if err := r.redis.Del(ctx, keys...).Err(); err != nil {
		slog.Error("failed on redis.Del", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	slog.Debug("quotes flushed", slog.String("rqID", rqID), slog.String("op", op), slog.Any("symbols", symbols))

	return nil
}
