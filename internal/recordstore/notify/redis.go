package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/drivesync/internal/logging"
	"github.com/redis/go-redis/v9"
)

// ChannelPrefix namespaces the Pub/Sub channels, one per collection.
const ChannelPrefix = "drivesync:changes:"

func ChannelName(collection string) string { return ChannelPrefix + collection }

// Redis publishes change signals over Redis Pub/Sub so every server replica
// re-runs its live queries.
type Redis struct {
	client *redis.Client
	log    logging.Logger
}

var _ Notifier = (*Redis)(nil)

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, opts *redis.Options, log logging.Logger) (*Redis, error) {
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	return &Redis{client: client, log: logging.OrNop(log).With("module", "notify.redis")}, nil
}

func (r *Redis) Publish(ctx context.Context, collection string) error {
	if err := r.client.Publish(ctx, ChannelName(collection), "changed").Err(); err != nil {
		return fmt.Errorf("failed to publish change: %w", err)
	}
	return nil
}

// Subscribe waits for Redis to confirm the subscription before returning,
// so no change published afterwards is missed.
func (r *Redis) Subscribe(ctx context.Context, collection string) (<-chan struct{}, func(), error) {
	ps := r.client.Subscribe(ctx, ChannelName(collection))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	out := make(chan struct{}, 1)
	msgs := ps.Channel()
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-done:
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				signal(out)
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			if err := ps.Close(); err != nil {
				r.log.Warn(context.Background(), "pubsub close failed", "collection", collection, "error", err)
			}
		})
	}
	return out, cancel, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
