package eventlog

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/plaenen/accountledger/pkg/domain"
)

// Publish appends an event to the stream under optimistic concurrency.
//
// The aggregate's version key (its id in the key-value namespace the
// stream shares a connection with) is watched, read and compared to
// the event's version, then incremented in the same MULTI/EXEC that
// performs the XADD. The whole protocol runs inside one connection
// checkout. On success it returns the new version and the
// server-assigned entry ID.
//
// A missing key is accepted only for version-0 (create) events; the
// key is written without expiry, so absence for anything else means a
// stale publisher. Both that case, a version mismatch, and a watched
// key touched by another writer before EXEC yield
// ErrConcurrencyConflict.
func (c *Client) Publish(ctx context.Context, stream string, evt domain.Event) (int64, string, error) {
	versionKey := evt.ID
	newVersion := evt.Version + 1

	evt.Version = newVersion
	payload, err := encodeEvent(evt)
	if err != nil {
		return 0, "", err
	}

	var timestamp string
	txFn := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, versionKey).Result()
		exists := true
		if errors.Is(err, redis.Nil) {
			exists = false
			current = ""
		} else if err != nil {
			return fmt.Errorf("get version key %s: %w", versionKey, err)
		}
		if err := checkVersion(versionKey, current, exists, newVersion); err != nil {
			return err
		}

		var xadd *redis.StringCmd
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Incr(ctx, versionKey)
			xadd = pipe.XAdd(ctx, &redis.XAddArgs{
				Stream: stream,
				Values: map[string]interface{}{eventField: payload},
			})
			return nil
		})
		if err != nil {
			return err
		}
		timestamp = xadd.Val()
		return nil
	}

	err = c.rdb.Watch(ctx, txFn, versionKey)
	if errors.Is(err, redis.TxFailedErr) {
		return 0, "", ErrConcurrencyConflict
	}
	if err != nil {
		return 0, "", err
	}
	return newVersion, timestamp, nil
}

// checkVersion decides whether a publish advancing the aggregate to
// newVersion is admissible given the version key's observed state. A
// missing key is accepted only for the very first version; otherwise
// the key must hold exactly newVersion-1. A key holding something that
// is not an integer is a hard error, not a conflict.
func checkVersion(key, current string, exists bool, newVersion int64) error {
	if !exists {
		if newVersion != 1 {
			return ErrConcurrencyConflict
		}
		return nil
	}
	v, err := strconv.ParseInt(current, 10, 64)
	if err != nil {
		return fmt.Errorf("version key %s holds %q: %w", key, current, err)
	}
	if v != newVersion-1 {
		return ErrConcurrencyConflict
	}
	return nil
}
