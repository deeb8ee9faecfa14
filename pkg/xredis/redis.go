package xredis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"quantfeed.com/pkg/xerr"
)

type Config struct {
	Addr         string `yaml:"addr" mapstructure:"addr"`
	Password     string `yaml:"password" mapstructure:"password"`
	DB           int    `yaml:"db" mapstructure:"db"`
	PoolSize     int    `yaml:"pool_size" mapstructure:"pool_size"`
	MinIdleConns int    `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
}

func options(c *Config) *redis.Options {
	opt := &redis.Options{
		Addr:         c.Addr,
		Password:     c.Password,
		DB:           c.DB,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
	}
	if opt.PoolSize <= 0 {
		opt.PoolSize = 10
	}
	return opt
}

// NewRedis connects and pings once; the client is closed again if the ping fails.
func NewRedis(ctx context.Context, c *Config) (*redis.Client, error) {
	rdb := redis.NewClient(options(c))

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, xerr.Wrap(err, xerr.Config, "connect redis "+c.Addr)
	}
	return rdb, nil
}
