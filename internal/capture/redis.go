package capture

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisSink appends JSON-encoded responses to a list per strategy.
type RedisSink struct {
	client redis.Cmdable
	prefix string
}

func NewRedisSink(client redis.Cmdable, prefix string) *RedisSink {
	if prefix == "" {
		prefix = "responses"
	}
	return &RedisSink{client: client, prefix: prefix}
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) key(strategy string) string {
	return fmt.Sprintf("%s:%s", s.prefix, strategy)
}

func (s *RedisSink) Save(ctx context.Context, resp *CapturedResponse) (string, error) {
	payload, err := json.Marshal(resp)
	if err != nil {
		return "", fmt.Errorf("encode response: %w", err)
	}

	key := s.key(resp.TemplateID)
	n, err := s.client.RPush(ctx, key, string(payload)).Result()
	if err != nil {
		return "", fmt.Errorf("rpush %s: %w", key, err)
	}

	return fmt.Sprintf("redis://%s/%d", key, n-1), nil
}
