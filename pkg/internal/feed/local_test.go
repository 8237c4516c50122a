package feed

import (
	"context"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestFilterMatch(t *testing.T) {
	change := Change{Table: TableMessages, Action: ActionInsert, ID: 3, Columns: map[string]any{"channel_id": uint(7)}}

	assert.True(t, Filter{}.Match(change))
	assert.True(t, Filter{Table: TableMessages}.Match(change))
	assert.False(t, Filter{Table: TableChannels}.Match(change))
	assert.True(t, Filter{Table: TableMessages, Column: "channel_id", Value: 7}.Match(change))
	assert.False(t, Filter{Table: TableMessages, Column: "channel_id", Value: 8}.Match(change))
	assert.False(t, Filter{Table: TableMessages, Column: "sender_id", Value: 7}.Match(change))

	// Column values come back as float64 after a JSON round trip
	raw, err := jsoniter.Marshal(change)
	require.NoError(t, err)
	var decoded Change
	require.NoError(t, jsoniter.Unmarshal(raw, &decoded))
	assert.True(t, Filter{Table: TableMessages, Column: "channel_id", Value: uint(7)}.Match(decoded))
}

func TestLocalBusDelivers(t *testing.T) {
	bus := NewLocalBus()
	defer bus.Close()

	sub := bus.Subscribe(Filter{Table: TableMessages, Column: "channel_id", Value: 1})
	other := bus.Subscribe(Filter{Table: TableMessages, Column: "channel_id", Value: 2})
	defer sub.Close()
	defer other.Close()

	require.NoError(t, bus.Publish(context.Background(), Change{
		Table:   TableMessages,
		Action:  ActionInsert,
		ID:      9,
		Columns: map[string]any{"channel_id": 1},
	}))

	select {
	case change := <-sub.C:
		assert.EqualValues(t, 9, change.ID)
	case <-time.After(time.Second):
		t.Fatal("change was not delivered")
	}

	select {
	case change := <-other.C:
		t.Fatalf("change leaked into another channel: %+v", change)
	default:
	}
}

func TestLocalBusDropsWhenFull(t *testing.T) {
	bus := NewLocalBus()
	defer bus.Close()
	sub := bus.Subscribe()
	defer sub.Close()

	for i := 0; i < subscriptionBuffer+10; i++ {
		require.NoError(t, bus.Publish(context.Background(), Change{Table: TableMessages, ID: uint(i)}))
	}
	assert.Len(t, sub.C, subscriptionBuffer)
}

func TestSubscriptionClose(t *testing.T) {
	bus := NewLocalBus()
	sub := bus.Subscribe()
	sub.Close()
	sub.Close()

	_, ok := <-sub.C
	assert.False(t, ok)
	require.NoError(t, bus.Publish(context.Background(), Change{Table: TableMessages}))

	late := bus.Subscribe()
	require.NoError(t, bus.Close())
	_, ok = <-late.C
	assert.False(t, ok)
	late.Close()

	closed := bus.Subscribe()
	_, ok = <-closed.C
	assert.False(t, ok)
}
