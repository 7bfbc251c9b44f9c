// Package redis stores claim tokens with a TTL.
package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"example.com/campusevents/internal/storage"
)

type Claims struct {
	redisClient *redis.Client
	keyPrefix   string
}

var _ storage.ClaimStore = (*Claims)(nil)

func NewClaims(client *redis.Client) *Claims {
	return &Claims{
		redisClient: client,
		keyPrefix:   "claims:",
	}
}

// Connect opens a client and checks it answers.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "ping redis at %s", addr)
	}
	return client, nil
}

func (c *Claims) PutClaim(ctx context.Context, token string, cl storage.Claim, ttl time.Duration) error {
	jsonVal, err := json.Marshal(cl)
	if err != nil {
		return err
	}
	return c.redisClient.Set(ctx, c.keyPrefix+token, string(jsonVal), ttl).Err()
}

func (c *Claims) GetClaim(ctx context.Context, token string) (storage.Claim, error) {
	val, err := c.redisClient.Get(ctx, c.keyPrefix+token).Result()
	if err == redis.Nil {
		return storage.Claim{}, storage.ErrNotFound
	} else if err != nil {
		return storage.Claim{}, errors.Wrap(err, "get claim")
	}

	var cl storage.Claim
	if err := json.Unmarshal([]byte(val), &cl); err != nil {
		return storage.Claim{}, errors.Wrap(err, "decode claim")
	}
	return cl, nil
}

func (c *Claims) DeleteClaim(ctx context.Context, token string) error {
	return c.redisClient.Del(ctx, c.keyPrefix+token).Err()
}
