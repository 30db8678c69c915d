package eventlog

import "errors"

// ErrConcurrencyConflict is returned by Publish when another writer
// advanced the aggregate's version key first. It is a benign outcome:
// the caller rolls back its in-memory state and surfaces a conflict,
// it does not retry inside the client.
var ErrConcurrencyConflict = errors.New("concurrency conflict: aggregate version mismatch")
