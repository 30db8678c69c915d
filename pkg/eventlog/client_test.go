package eventlog

import (
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plaenen/accountledger/pkg/domain"
)

func TestEncodeEvent(t *testing.T) {
	payload, err := encodeEvent(domain.Event{
		ID:      "acc-1",
		Version: 2,
		Type:    domain.EventDeposit,
		Amount:  100,
		// The log assigns timestamps; they never travel in the payload.
		Timestamp: "1000-0",
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"acc-1","version":2,"type":"deposit","amount":100}`, payload)
}

func TestEncodeEvent_CreateOmitsAmount(t *testing.T) {
	payload, err := encodeEvent(domain.Event{
		ID:      "acc-1",
		Version: 1,
		Type:    domain.EventCreate,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"acc-1","version":1,"type":"create"}`, payload)
}

func TestDecodeMessage(t *testing.T) {
	evt, err := decodeMessage(redis.XMessage{
		ID: "1700000000000-0",
		Values: map[string]interface{}{
			"event": `{"id":"acc-1","version":3,"type":"withdraw","amount":25}`,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.Event{
		ID:        "acc-1",
		Version:   3,
		Type:      domain.EventWithdraw,
		Amount:    25,
		Timestamp: "1700000000000-0",
	}, evt)
}

func TestDecodeMessage_Errors(t *testing.T) {
	_, err := decodeMessage(redis.XMessage{
		ID:     "1-0",
		Values: map[string]interface{}{"other": "x"},
	})
	assert.Error(t, err, "missing event field")

	_, err = decodeMessage(redis.XMessage{
		ID:     "1-0",
		Values: map[string]interface{}{"event": "{not json"},
	})
	assert.Error(t, err, "malformed payload")
}

func TestDecodeMessage_RoundTrip(t *testing.T) {
	in := domain.Event{ID: "acc-9", Version: 7, Type: domain.EventDeposit, Amount: 12}
	payload, err := encodeEvent(in)
	require.NoError(t, err)

	out, err := decodeMessage(redis.XMessage{
		ID:     "42-0",
		Values: map[string]interface{}{"event": payload},
	})
	require.NoError(t, err)
	in.Timestamp = "42-0"
	assert.Equal(t, in, out)
}

func TestGroupName(t *testing.T) {
	assert.Equal(t, "accountStreamGroup", groupName("accountStream"))
}

func TestCheckVersion(t *testing.T) {
	tests := []struct {
		name       string
		current    string
		exists     bool
		newVersion int64
		want       error
	}{
		{"missing key accepts the first version", "", false, 1, nil},
		{"missing key rejects anything later", "", false, 3, ErrConcurrencyConflict},
		{"key at the expected predecessor", "2", true, 3, nil},
		{"key behind the publisher", "1", true, 3, ErrConcurrencyConflict},
		{"key ahead of the publisher", "5", true, 3, ErrConcurrencyConflict},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := checkVersion("JohnDoe", tc.current, tc.exists, tc.newVersion)
			if tc.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.want)
			}
		})
	}
}

func TestCheckVersion_CorruptKeyIsNotAConflict(t *testing.T) {
	err := checkVersion("JohnDoe", "garbage", true, 2)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrConcurrencyConflict)
	assert.Contains(t, err.Error(), "JohnDoe")
}

func TestStaleIDs(t *testing.T) {
	pending := []redis.XPendingExt{
		{ID: "1-0", Idle: 10 * time.Second},
		{ID: "2-0", Idle: time.Second},
		{ID: "3-0", Idle: 5 * time.Second},
	}

	assert.Equal(t, []string{"1-0", "3-0"}, staleIDs(pending, 5*time.Second))
	assert.Empty(t, staleIDs(pending, time.Minute))
	assert.Empty(t, staleIDs(nil, time.Second))
}
