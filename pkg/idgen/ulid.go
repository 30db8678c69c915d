// Package idgen generates lexicographically sortable identifiers.
package idgen

import "github.com/oklog/ulid/v2"

// NewSortableID returns a new ULID string. IDs generated within the
// same millisecond still sort by creation order.
func NewSortableID() string {
	return ulid.Make().String()
}
