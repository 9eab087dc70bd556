package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers to all subscribers", func(t *testing.T) {
		b := NewBroadcaster()
		ch1, cancel1 := b.Subscribe()
		defer cancel1()
		ch2, cancel2 := b.Subscribe()
		defer cancel2()

		ev := Event{Type: TypeBatchCreated, ID: "batch_1", At: time.Now()}
		require.NoError(t, b.Publish(ctx, ev))

		assert.Equal(t, ev, <-ch1)
		assert.Equal(t, ev, <-ch2)
	})

	t.Run("cancel closes the channel and unsubscribes", func(t *testing.T) {
		b := NewBroadcaster()
		ch, cancel := b.Subscribe()
		cancel()

		_, open := <-ch
		assert.False(t, open)
		assert.Equal(t, 0, b.Subscribers())

		// Double cancel is safe.
		cancel()
	})

	t.Run("slow subscriber drops instead of blocking", func(t *testing.T) {
		b := NewBroadcaster()
		_, cancel := b.Subscribe()
		defer cancel()

		done := make(chan struct{})
		go func() {
			defer close(done)
			for i := 0; i < subscriberBuffer*3; i++ {
				_ = b.Publish(ctx, Event{Type: TypeDonationConfirmed, ID: "d"})
			}
		}()

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("publish blocked on a slow subscriber")
		}
	})
}

func TestFanout(t *testing.T) {
	ctx := context.Background()
	b1 := NewBroadcaster()
	b2 := NewBroadcaster()
	ch1, cancel1 := b1.Subscribe()
	defer cancel1()
	ch2, cancel2 := b2.Subscribe()
	defer cancel2()

	fan := Fanout{b1, b2}
	ev := Event{Type: TypeDisasterTriggered, ID: "disaster_9"}
	require.NoError(t, fan.Publish(ctx, ev))

	assert.Equal(t, ev, <-ch1)
	assert.Equal(t, ev, <-ch2)
}
