package cache

import (
	"context"

	redisStore "github.com/eko/gocache/store/redis/v4"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"github.com/eko/gocache/lib/v4/store"
)

var (
	R *redis.Client
	S store.StoreInterface
)

func NewRedis() error {
	R = redis.NewClient(&redis.Options{
		Addr:     viper.GetString("cache.addr"),
		Password: viper.GetString("cache.password"),
	})
	return R.Ping(context.Background()).Err()
}

// NewCache sets up the shared cache store, it is a no-op when caching is disabled.
func NewCache() error {
	if !viper.GetBool("cache.enabled") {
		return nil
	}
	if R == nil {
		if err := NewRedis(); err != nil {
			return err
		}
	}
	S = redisStore.NewRedis(R)
	return nil
}
