package eventlog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/plaenen/accountledger/pkg/domain"
)

// pendingBatch is the page size for walking the pending range.
const pendingBatch = 128

// Ack acknowledges one entry in the stream's consumer group and
// returns the number acknowledged (1 for the caller's own entries).
func (c *Client) Ack(ctx context.Context, stream, timestamp string) (int64, error) {
	n, err := c.rdb.XAck(ctx, stream, groupName(stream), timestamp).Result()
	if err != nil {
		return 0, fmt.Errorf("xack %s %s: %w", stream, timestamp, err)
	}
	return n, nil
}

// Pending walks the group's full delivered-but-unacknowledged range in
// pages, claims the entries idle for at least maxElapsed on behalf of
// consumer, and returns the claimed events. A missing group (cold
// start, nothing ever subscribed) yields an empty result.
func (c *Client) Pending(ctx context.Context, stream, consumer string, maxElapsed time.Duration) ([]domain.Event, error) {
	group := groupName(stream)

	var stale []string
	start := "-"
	for {
		pending, err := c.rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
			Stream: stream,
			Group:  group,
			Start:  start,
			End:    "+",
			Count:  pendingBatch,
		}).Result()
		if err != nil {
			if strings.Contains(err.Error(), "NOGROUP") {
				return nil, nil
			}
			return nil, fmt.Errorf("xpending %s: %w", stream, err)
		}

		stale = append(stale, staleIDs(pending, maxElapsed)...)
		if len(pending) < pendingBatch {
			break
		}
		start = "(" + pending[len(pending)-1].ID
	}
	if len(stale) == 0 {
		return nil, nil
	}

	claimed, err := c.rdb.XClaim(ctx, &redis.XClaimArgs{
		Stream:   stream,
		Group:    group,
		Consumer: consumer,
		MinIdle:  maxElapsed,
		Messages: stale,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("xclaim %s: %w", stream, err)
	}

	var events []domain.Event
	for _, msg := range claimed {
		evt, err := decodeMessage(msg)
		if err != nil {
			c.logger.Error("dropping undecodable pending entry", "stream", stream, "entry", msg.ID, "error", err)
			c.rdb.XAck(ctx, stream, group, msg.ID)
			continue
		}
		events = append(events, evt)
	}
	return events, nil
}

// staleIDs filters one pending page down to the entries idle for at
// least maxElapsed.
func staleIDs(pending []redis.XPendingExt, maxElapsed time.Duration) []string {
	var ids []string
	for _, p := range pending {
		if p.Idle >= maxElapsed {
			ids = append(ids, p.ID)
		}
	}
	return ids
}
