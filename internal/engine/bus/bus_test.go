package bus_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.pactly.app/datakit/internal/core/domain"
	"go.pactly.app/datakit/internal/engine/bus"
)

func TestBus_PublishSubscribe(t *testing.T) {
	b := bus.New()
	ch, cancel := b.Subscribe(4)
	defer cancel()

	b.Publish(domain.RefreshStarted{Key: domain.KeyFriends})
	b.Publish(domain.RefreshSucceeded{Key: domain.KeyFriends})

	ev := <-ch
	started, ok := ev.(domain.RefreshStarted)
	require.True(t, ok)
	require.Equal(t, domain.KeyFriends, started.Key)

	ev = <-ch
	_, ok = ev.(domain.RefreshSucceeded)
	require.True(t, ok)
}

func TestBus_FanOut(t *testing.T) {
	b := bus.New()
	ch1, cancel1 := b.Subscribe(1)
	defer cancel1()
	ch2, cancel2 := b.Subscribe(1)
	defer cancel2()

	b.Publish(domain.CacheCleared{})

	require.IsType(t, domain.CacheCleared{}, <-ch1)
	require.IsType(t, domain.CacheCleared{}, <-ch2)
}

func TestBus_FullBufferDropsInsteadOfBlocking(t *testing.T) {
	b := bus.New()
	ch, cancel := b.Subscribe(1)
	defer cancel()

	b.Publish(domain.RefreshStarted{Key: "a"})
	// Buffer is full; this must not block and the event is dropped.
	b.Publish(domain.RefreshStarted{Key: "b"})

	ev := <-ch
	require.Equal(t, "a", ev.(domain.RefreshStarted).Key)
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %T", ev)
	default:
	}
}

func TestBus_CancelIdempotent(t *testing.T) {
	b := bus.New()
	ch, cancel := b.Subscribe(1)

	cancel()
	cancel()

	// Channel is closed after cancel.
	_, open := <-ch
	require.False(t, open)

	// Publishing after cancel must not panic on the closed channel.
	b.Publish(domain.RefreshStarted{Key: domain.KeyFriends})
}

func TestBus_CancelledSubscriberStopsReceiving(t *testing.T) {
	b := bus.New()
	_, cancel1 := b.Subscribe(1)
	ch2, cancel2 := b.Subscribe(1)
	defer cancel2()

	cancel1()
	b.Publish(domain.SessionInvalid{Key: domain.KeyFriends})

	require.IsType(t, domain.SessionInvalid{}, <-ch2)
}
