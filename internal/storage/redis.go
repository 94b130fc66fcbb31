package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"taxigrid/internal/geom"
)

const defaultRedisKey = "taxigrid:positions"

// Redis keeps the fleet as a list of "x y" entries under one key.
type Redis struct {
	client *redis.Client
	key    string
}

func NewRedis(client *redis.Client, key string) *Redis {
	if key == "" {
		key = defaultRedisKey
	}
	return &Redis{client: client, key: key}
}

func (r *Redis) Ping(ctx context.Context) error { return r.client.Ping(ctx).Err() }

func (r *Redis) Load(ctx context.Context) ([]geom.Point, error) {
	vals, err := r.client.LRange(ctx, r.key, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	pts, err := readPoints(strings.NewReader(strings.Join(vals, "\n")))
	if err != nil {
		return nil, fmt.Errorf("redis %s: %w", r.key, err)
	}
	return pts, nil
}

// Save replaces the list atomically.
func (r *Redis) Save(ctx context.Context, pts []geom.Point) error {
	vals := make([]any, len(pts))
	for i, p := range pts {
		vals[i] = fmt.Sprintf("%d %d", p.X, p.Y)
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key)
		if len(vals) > 0 {
			pipe.RPush(ctx, r.key, vals...)
		}
		return nil
	})
	return err
}
