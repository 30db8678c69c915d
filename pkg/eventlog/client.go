// Package eventlog wraps a Redis Streams backend as a typed,
// append-only event log: optimistic-concurrency publishing over
// WATCH/MULTI/EXEC, range reads for rehydration, and consumer-group
// delivery with acknowledgement and pending-entry reclaim.
package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/plaenen/accountledger/pkg/domain"
	"github.com/plaenen/accountledger/pkg/runner"
)

// eventField is the single stream-entry field holding the serialized
// event payload.
const eventField = "event"

// Config configures the log client.
type Config struct {
	// Addr is the Redis host:port.
	Addr string

	// ReadInterval is the consumer-group poll cadence for
	// subscriptions. Default 30s.
	ReadInterval time.Duration

	// Logger receives subscription poll errors. Default discards.
	Logger runner.Logger
}

// Client is a typed Redis Streams log client. One Client may serve
// both the write side (AddID, Publish, Events) and the read side
// (Subscribe, Ack, Pending); subscriptions are memoized per stream.
type Client struct {
	rdb          *redis.Client
	readInterval time.Duration
	logger       runner.Logger

	mu   sync.Mutex
	subs map[string]struct{}

	quit chan struct{}
	wg   sync.WaitGroup
}

// New connects to Redis and verifies the connection.
func New(cfg Config) (*Client, error) {
	if cfg.ReadInterval <= 0 {
		cfg.ReadInterval = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = runner.NewNoopLogger()
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &Client{
		rdb:          rdb,
		readInterval: cfg.ReadInterval,
		logger:       cfg.Logger,
		subs:         make(map[string]struct{}),
		quit:         make(chan struct{}),
	}, nil
}

// AddID inserts id into the registry set named by namespace and
// reports whether it was newly added. Used for create-time uniqueness.
func (c *Client) AddID(ctx context.Context, namespace, id string) (bool, error) {
	added, err := c.rdb.SAdd(ctx, namespace, id).Result()
	if err != nil {
		return false, fmt.Errorf("sadd %s: %w", namespace, err)
	}
	return added > 0, nil
}

// Events reads all entries of stream strictly after sinceTimestamp,
// decodes them and keeps those belonging to id. The log-assigned entry
// ID is attached to each event as its timestamp. An empty
// sinceTimestamp reads from the beginning of the stream.
func (c *Client) Events(ctx context.Context, stream, id, sinceTimestamp string) ([]domain.Event, error) {
	start := "-"
	if sinceTimestamp != "" {
		start = "(" + sinceTimestamp
	}

	msgs, err := c.rdb.XRange(ctx, stream, start, "+").Result()
	if err != nil {
		return nil, fmt.Errorf("xrange %s from %s: %w", stream, start, err)
	}

	var events []domain.Event
	for _, msg := range msgs {
		evt, err := decodeMessage(msg)
		if err != nil {
			return nil, err
		}
		if evt.ID != id {
			continue
		}
		events = append(events, evt)
	}
	return events, nil
}

// Close stops all subscription pollers and disconnects.
func (c *Client) Close() error {
	c.mu.Lock()
	select {
	case <-c.quit:
	default:
		close(c.quit)
	}
	c.mu.Unlock()

	c.wg.Wait()
	return c.rdb.Close()
}

// groupName derives the consumer-group name for a stream.
func groupName(stream string) string {
	return stream + "Group"
}

func encodeEvent(evt domain.Event) (string, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}
	return string(payload), nil
}

func decodeMessage(msg redis.XMessage) (domain.Event, error) {
	raw, ok := msg.Values[eventField].(string)
	if !ok {
		return domain.Event{}, fmt.Errorf("entry %s: missing %q field", msg.ID, eventField)
	}
	var evt domain.Event
	if err := json.Unmarshal([]byte(raw), &evt); err != nil {
		return domain.Event{}, fmt.Errorf("entry %s: decode event: %w", msg.ID, err)
	}
	evt.Timestamp = msg.ID
	return evt, nil
}
