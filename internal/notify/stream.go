package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

const payloadField = "payload"

// RedisStream appends payloads to a Redis stream.
type RedisStream struct {
	client *redis.Client
	stream string
}

func NewRedisStream(client *redis.Client, stream string) *RedisStream {
	return &RedisStream{client: client, stream: stream}
}

func (s *RedisStream) Dispatch(ctx context.Context, payload Payload) error {
	if err := payload.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal mention payload: %w", err)
	}
	err = s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{payloadField: string(data)},
	}).Err()
	if err != nil {
		return fmt.Errorf("enqueue mention notification: %w", err)
	}
	return nil
}

// ensureGroup creates the consumer group, and the stream with it, if needed.
func ensureGroup(ctx context.Context, client *redis.Client, stream, group string) error {
	err := client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group: %w", err)
	}
	return nil
}

func decodeMessage(msg redis.XMessage) (Payload, error) {
	raw, ok := msg.Values[payloadField].(string)
	if !ok {
		return Payload{}, errors.New("message has no payload field")
	}
	var p Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Payload{}, fmt.Errorf("decode payload: %w", err)
	}
	return p, nil
}
