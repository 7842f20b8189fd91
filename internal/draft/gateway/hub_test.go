package gateway

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manadraft/league/internal/draft/events"
)

func TestHub_DeliversToSessionSubscribers(t *testing.T) {
	hub := NewHub()
	sessionID := uuid.New()

	ch, cancel := hub.Subscribe(sessionID)
	defer cancel()

	event := events.SessionEvent{
		ID:        uuid.New(),
		SessionID: sessionID,
		Type:      events.EventTypePickMade,
		Timestamp: time.Now(),
	}
	hub.Publish(event)

	select {
	case got := <-ch:
		assert.Equal(t, event.ID, got.ID)
		assert.Equal(t, events.EventTypePickMade, got.Type)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestHub_ScopesDeliveryBySession(t *testing.T) {
	hub := NewHub()
	target := uuid.New()
	other := uuid.New()

	targetCh, cancelTarget := hub.Subscribe(target)
	defer cancelTarget()
	otherCh, cancelOther := hub.Subscribe(other)
	defer cancelOther()

	hub.Publish(events.SessionEvent{ID: uuid.New(), SessionID: target, Type: events.EventTypePickStarted})

	select {
	case <-targetCh:
	case <-time.After(time.Second):
		t.Fatal("event not delivered to session subscriber")
	}

	select {
	case got := <-otherCh:
		t.Fatalf("unexpected event for other session: %v", got.Type)
	default:
	}
}

func TestHub_PublishNeverBlocks(t *testing.T) {
	hub := NewHub()
	sessionID := uuid.New()

	ch, cancel := hub.Subscribe(sessionID)
	defer cancel()

	// Fill the buffer without draining, then keep publishing. The slow
	// subscriber loses events; Publish must return every time.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < hub.bufferSize*2; i++ {
			hub.Publish(events.SessionEvent{ID: uuid.New(), SessionID: sessionID, Type: events.EventTypePickMade})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber buffer")
	}

	// The buffer still holds the first events.
	require.Len(t, ch, hub.bufferSize)
}

func TestHub_CancelClosesChannelAndReleases(t *testing.T) {
	hub := NewHub()
	sessionID := uuid.New()

	ch, cancel := hub.Subscribe(sessionID)
	require.Equal(t, 1, hub.SubscriberCount(sessionID))

	cancel()
	assert.Equal(t, 0, hub.SubscriberCount(sessionID))

	_, open := <-ch
	assert.False(t, open)

	// Second cancel is a no-op.
	cancel()

	// Publishing to a session with no subscribers is fine.
	hub.Publish(events.SessionEvent{ID: uuid.New(), SessionID: sessionID, Type: events.EventTypePickMade})
}

func TestHub_ConcurrentPublishAndCancel(t *testing.T) {
	hub := NewHub()
	sessionID := uuid.New()

	// Publish from several goroutines while subscriptions churn. A cancel
	// that closes its channel mid-fanout must never receive a send; run
	// under the race detector to catch a send racing the close.
	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					hub.Publish(events.SessionEvent{ID: uuid.New(), SessionID: sessionID, Type: events.EventTypePickMade})
				}
			}
		}()
	}

	for i := 0; i < 200; i++ {
		ch, cancel := hub.Subscribe(sessionID)
		drained := make(chan struct{})
		go func() {
			for range ch {
			}
			close(drained)
		}()
		cancel()
		<-drained
	}

	close(stop)
	wg.Wait()
	assert.Equal(t, 0, hub.SubscriberCount(sessionID))
}

func TestHub_MultipleSubscribersEachReceive(t *testing.T) {
	hub := NewHub()
	sessionID := uuid.New()

	first, cancelFirst := hub.Subscribe(sessionID)
	defer cancelFirst()
	second, cancelSecond := hub.Subscribe(sessionID)
	defer cancelSecond()

	hub.Publish(events.SessionEvent{ID: uuid.New(), SessionID: sessionID, Type: events.EventTypeDraftStarted})

	for _, ch := range []<-chan events.SessionEvent{first, second} {
		select {
		case got := <-ch:
			assert.Equal(t, events.EventTypeDraftStarted, got.Type)
		case <-time.After(time.Second):
			t.Fatal("subscriber missed event")
		}
	}
}
