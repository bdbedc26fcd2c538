package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/saviobatista/rid-tracker/internal/remoteid"
)

const (
	// BroadcastersKey is the set of broadcaster ids currently mirrored.
	BroadcastersKey = "rid:broadcasters"

	broadcasterTTL = time.Hour
)

// RedisClientInterface defines the Redis operations used by our client
type RedisClientInterface interface {
	Ping(ctx context.Context) *redis.StatusCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

// Client mirrors the broadcaster catalog into Redis so other processes can
// read it.
type Client struct {
	client RedisClientInterface
}

// New creates a new Redis client
func New(addr string) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{client: client}, nil
}

// NewWithClient creates a new Redis client with a custom RedisClientInterface (useful for testing)
func NewWithClient(client RedisClientInterface) *Client {
	return &Client{client: client}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.client.Close()
}

// BroadcasterKey is the hash holding one broadcaster's messages, keyed by
// kind code.
func BroadcasterKey(id string) string {
	return "rid:broadcaster:" + id
}

// StoreMessages writes msgs into the broadcaster's hash. A message replaces
// the stored message of the same kind; nil messages are skipped.
func (c *Client) StoreMessages(ctx context.Context, id string, msgs []remoteid.Message) error {
	msgs = remoteid.Present(msgs)
	if len(msgs) == 0 {
		return nil
	}

	values := make([]interface{}, 0, 2*len(msgs))
	for _, msg := range msgs {
		data, err := remoteid.Marshal(msg)
		if err != nil {
			return err
		}
		values = append(values, strconv.Itoa(int(msg.Kind())), data)
	}

	key := BroadcasterKey(id)
	if err := c.client.HSet(ctx, key, values...).Err(); err != nil {
		return fmt.Errorf("failed to store messages for %s: %w", id, err)
	}
	if err := c.client.Expire(ctx, key, broadcasterTTL).Err(); err != nil {
		return fmt.Errorf("failed to set expiry for %s: %w", id, err)
	}
	if err := c.client.SAdd(ctx, BroadcastersKey, id).Err(); err != nil {
		return fmt.Errorf("failed to register broadcaster %s: %w", id, err)
	}
	return nil
}

// GetBroadcaster reads back every stored message of a broadcaster. An unknown
// broadcaster yields an empty map.
func (c *Client) GetBroadcaster(ctx context.Context, id string) (map[remoteid.MessageKind]remoteid.Message, error) {
	fields, err := c.client.HGetAll(ctx, BroadcasterKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get broadcaster %s: %w", id, err)
	}

	out := make(map[remoteid.MessageKind]remoteid.Message, len(fields))
	for field, data := range fields {
		code, err := strconv.ParseUint(field, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid kind field %q for %s: %w", field, id, err)
		}
		msg, err := remoteid.Unmarshal([]byte(data))
		if err != nil {
			return nil, err
		}
		out[remoteid.MessageKind(code)] = msg
	}
	return out, nil
}

// Broadcasters lists the mirrored broadcaster ids.
func (c *Client) Broadcasters(ctx context.Context) ([]string, error) {
	ids, err := c.client.SMembers(ctx, BroadcastersKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list broadcasters: %w", err)
	}
	return ids, nil
}

// Clear removes every mirrored broadcaster.
func (c *Client) Clear(ctx context.Context) error {
	ids, err := c.Broadcasters(ctx)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, BroadcasterKey(id))
	}
	keys = append(keys, BroadcastersKey)

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to clear broadcasters: %w", err)
	}
	return nil
}
