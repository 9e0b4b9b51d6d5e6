// Package realtime fans domain events out to real-time observers.
package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event is the envelope published on a room channel.
type Event struct {
	Room    string      `json:"room"`
	Name    string      `json:"event"`
	Payload interface{} `json:"payload"`
	At      time.Time   `json:"at"`
}

// RedisPublisher publishes events with PUBLISH on "<prefix><room>". A
// websocket gateway subscribes to the same channels.
type RedisPublisher struct {
	client *redis.Client
	prefix string
}

// NewRedisPublisher creates a publisher. Prefix may be empty.
func NewRedisPublisher(client *redis.Client, prefix string) *RedisPublisher {
	if prefix == "" {
		prefix = "events:"
	}
	return &RedisPublisher{client: client, prefix: prefix}
}

// Channel returns the Redis channel of room.
func (p *RedisPublisher) Channel(room string) string { return p.prefix + room }

func (p *RedisPublisher) Publish(ctx context.Context, room, event string, payload interface{}) error {
	b, err := json.Marshal(Event{Room: room, Name: event, Payload: payload, At: time.Now().UTC()})
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.Channel(room), b).Err()
}

// Noop drops every event. Used when no transport is configured.
type Noop struct{}

func (Noop) Publish(ctx context.Context, room, event string, payload interface{}) error { return nil }

// GroupRoom is the room every member of a group listens on.
func GroupRoom(groupID string) string { return "group:" + groupID }

// PackageRoom is the room of a package owner's signing session.
func PackageRoom(packageID string) string { return "package:" + packageID }
