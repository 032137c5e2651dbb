package redis

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

const ChannelPrefixPresence = "channel:presence:"

type Publisher struct {
	client *redis.Client
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.client.Publish(ctx, channel, payload).Err()
}

func (p *Publisher) PublishJSON(ctx context.Context, channel string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.Publish(ctx, channel, data)
}
