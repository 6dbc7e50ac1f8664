package channels_test

import (
	"context"
	"testing"
	"time"

	"github.com/alkime/voicebank/pkg/channels"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster_SubscribeErrors(t *testing.T) {
	t.Parallel()

	b := channels.NewBroadcaster[int]()
	require.ErrorContains(t, b.Subscribe(nil), "cannot be nil")
	require.ErrorContains(t, b.SubscribeWithTimeout(nil, time.Second), "cannot be nil")
	require.ErrorContains(t, b.SubscribeWithTimeout(make(chan int), 0), "must be positive")

	_, err := b.Run(t.Context())
	require.ErrorContains(t, err, "no subscribers")
}

func TestBroadcaster_RunTwice(t *testing.T) {
	t.Parallel()

	b := channels.NewBroadcaster[int]()
	require.NoError(t, b.Subscribe(make(chan int, 1)))

	_, err := b.Run(t.Context())
	require.NoError(t, err)
	_, err = b.Run(t.Context())
	require.ErrorContains(t, err, "already started")
}

func TestBroadcaster_DeliversToAll(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())

	b := channels.NewBroadcaster[string]()
	fast := make(chan string, 10)
	patient := make(chan string, 10)
	require.NoError(t, b.Subscribe(fast))
	require.NoError(t, b.SubscribeWithTimeout(patient, 100*time.Millisecond))

	input, err := b.Run(ctx)
	require.NoError(t, err)

	input <- "a"
	input <- "b"
	cancel()
	b.Wait()

	for _, ch := range []chan string{fast, patient} {
		require.Len(t, ch, 2)
		assert.Equal(t, "a", <-ch)
		assert.Equal(t, "b", <-ch)
	}
	assert.Equal(t, []channels.SubscriberStats{{}, {}}, b.Stats())
}

func TestBroadcaster_DropsForFullAndClosedSubscribers(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())

	b := channels.NewBroadcaster[int]()
	full := make(chan int, 1)
	closed := make(chan int, 1)
	close(closed)
	require.NoError(t, b.Subscribe(full))
	require.NoError(t, b.Subscribe(closed))

	input, err := b.Run(ctx)
	require.NoError(t, err)

	input <- 1
	input <- 2
	cancel()
	b.Wait()

	assert.Equal(t, 1, <-full)

	stats := b.Stats()
	require.Len(t, stats, 2)
	assert.Equal(t, channels.SubscriberStats{Dropped: 1}, stats[0])
	assert.Equal(t, channels.SubscriberStats{Dropped: 2, Inactive: true}, stats[1])
}
