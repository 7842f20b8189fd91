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

func testConnection(cm *ConnectionManager, sessionID uuid.UUID) *Connection {
	return &Connection{
		ID:          uuid.New().String(),
		SessionID:   sessionID,
		Send:        make(chan []byte, 256),
		Manager:     cm,
		ConnectedAt: time.Now(),
	}
}

func TestConnectionManager_BroadcastDeliversToSessionConnections(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	sessionID := uuid.New()

	conn := testConnection(cm, sessionID)
	cm.registerConnection(conn)
	other := testConnection(cm, uuid.New())
	cm.registerConnection(other)

	cm.handleBroadcast(BroadcastMessage{
		SessionID: sessionID,
		Event:     &events.SessionEvent{ID: uuid.New(), SessionID: sessionID, Type: events.EventTypePickMade},
	})

	require.Len(t, conn.Send, 1)
	assert.Len(t, other.Send, 0)
}

func TestConnectionManager_BroadcastFiltersByUser(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	sessionID := uuid.New()

	target := testConnection(cm, sessionID)
	target.UserID = "alice"
	cm.registerConnection(target)
	bystander := testConnection(cm, sessionID)
	bystander.UserID = "bob"
	cm.registerConnection(bystander)

	cm.handleBroadcast(BroadcastMessage{
		SessionID: sessionID,
		UserID:    "alice",
		Event:     &events.SessionEvent{ID: uuid.New(), SessionID: sessionID, Type: events.EventTypePickStarted},
	})

	assert.Len(t, target.Send, 1)
	assert.Len(t, bystander.Send, 0)
}

func TestConnectionManager_BroadcastDuringUnregister(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	sessionID := uuid.New()

	// Broadcast continuously while connections register and unregister.
	// Unregister closes the Send channel; a fanout send must never land
	// on it. Run under the race detector.
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				cm.handleBroadcast(BroadcastMessage{
					SessionID: sessionID,
					Event:     &events.SessionEvent{ID: uuid.New(), SessionID: sessionID, Type: events.EventTypePickMade},
				})
			}
		}
	}()

	for i := 0; i < 200; i++ {
		conn := testConnection(cm, sessionID)
		cm.registerConnection(conn)
		drained := make(chan struct{})
		go func() {
			for range conn.Send {
			}
			close(drained)
		}()
		cm.unregisterConnection(conn)
		<-drained
	}

	close(stop)
	wg.Wait()

	cm.mu.RLock()
	defer cm.mu.RUnlock()
	assert.Empty(t, cm.sessionConnections[sessionID])
}
