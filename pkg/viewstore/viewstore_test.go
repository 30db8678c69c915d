package viewstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
)

func TestApplyFilter(t *testing.T) {
	filter := applyFilter("acc-1", "1000-0")

	assert.Equal(t, "acc-1", filter["_id"])
	// The timestamp guard is what makes re-delivery a no-op: a record
	// that already contains the timestamp matches nothing.
	assert.Equal(t, bson.M{"$ne": "1000-0"}, filter["timestamps"])
}

func TestApplyUpdate(t *testing.T) {
	update := applyUpdate("1000-0", -30)

	assert.Equal(t, bson.M{"funds": int64(-30)}, update["$inc"])
	assert.Equal(t, bson.M{"timestamps": "1000-0"}, update["$addToSet"])
}
