package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

func ConnectRedis(addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}

	return rdb, nil
}

// PoolCache guarda agregados de pool por mercado com TTL curto
// Uso exclusivo de preview; nunca alimenta decisão de saldo
type PoolCache struct {
	R   *redis.Client
	TTL time.Duration
}

func NewPoolCache(r *redis.Client, ttl time.Duration) *PoolCache {
	return &PoolCache{R: r, TTL: ttl}
}

func keyPool(matchID string, marketIndex int) string {
	return "pool:match:" + matchID + ":" + strconv.Itoa(marketIndex)
}

func (c *PoolCache) Get(ctx context.Context, matchID string, marketIndex int, dst any) (bool, error) {
	b, err := c.R.Get(ctx, keyPool(matchID, marketIndex)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(b, dst)
}

func (c *PoolCache) Set(ctx context.Context, matchID string, marketIndex int, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.R.Set(ctx, keyPool(matchID, marketIndex), b, c.TTL).Err()
}

// Invalidate derruba o agregado cacheado após nova aposta ou liquidação
func (c *PoolCache) Invalidate(ctx context.Context, matchID string, marketIndex int) error {
	return c.R.Del(ctx, keyPool(matchID, marketIndex)).Err()
}
