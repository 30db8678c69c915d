package eventlog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/plaenen/accountledger/pkg/domain"
)

// BatchHandler receives each non-empty batch of newly delivered
// events. Acknowledgement is the handler's responsibility.
type BatchHandler func(ctx context.Context, events []domain.Event)

// Subscribe lazily creates the stream's consumer group and polls it
// every ReadInterval with a new-entries-only read on behalf of
// consumer, handing non-empty batches to handler. A second Subscribe
// for the same stream is a no-op: there is one memoized subscription
// per (stream, group) pair. Poll errors are logged and the poller
// keeps going.
func (c *Client) Subscribe(ctx context.Context, stream, consumer string, handler BatchHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.subs[stream]; ok {
		return nil
	}

	group := groupName(stream)
	err := c.rdb.XGroupCreateMkStream(ctx, stream, group, "$").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("xgroup create %s/%s: %w", stream, group, err)
	}

	c.subs[stream] = struct{}{}
	c.wg.Add(1)
	go c.pollLoop(ctx, stream, group, consumer, handler)
	return nil
}

// pollLoop drives one subscription until the client closes or the
// context is cancelled.
func (c *Client) pollLoop(ctx context.Context, stream, group, consumer string, handler BatchHandler) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.readInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.quit:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			events, err := c.readGroup(ctx, stream, group, consumer)
			if err != nil {
				c.logger.Error("consumer group read failed", "stream", stream, "error", err)
				continue
			}
			if len(events) > 0 {
				handler(ctx, events)
			}
		}
	}
}

// readGroup performs one non-blocking XREADGROUP for entries never
// delivered to any consumer of the group.
func (c *Client) readGroup(ctx context.Context, stream, group, consumer string) ([]domain.Event, error) {
	streams, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, ">"},
		Block:    -1,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xreadgroup %s: %w", stream, err)
	}

	var events []domain.Event
	for _, s := range streams {
		for _, msg := range s.Messages {
			evt, err := decodeMessage(msg)
			if err != nil {
				// A malformed entry would wedge the pending list
				// forever; drop it with an ack and keep going.
				c.logger.Error("dropping undecodable entry", "stream", stream, "entry", msg.ID, "error", err)
				c.rdb.XAck(ctx, stream, group, msg.ID)
				continue
			}
			events = append(events, evt)
		}
	}
	return events, nil
}
