package registry

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pairly/messaging-service/internal/domain/event"
)

func TestConnector_Send_And_Recv(t *testing.T) {
	req := require.New(t)
	conn := NewConnector(context.Background(), uuid.New(), ConnectMetadata{}, 4)
	defer conn.Close()

	req.True(conn.Send(event.NewErrorEvent("hello"), 50*time.Millisecond))

	ev := <-conn.Recv()
	req.Equal(event.Error, ev.GetKind())
}

func TestConnector_Backpressure_Sheds_Low_Priority(t *testing.T) {
	req := require.New(t)
	conn := NewConnector(context.Background(), uuid.New(), ConnectMetadata{}, 1)
	defer conn.Close()

	// Given a saturated buffer
	req.True(conn.Send(event.NewErrorEvent("occupies the slot"), 10*time.Millisecond))

	// When a droppable signal arrives, it is shed rather than queued
	typing := event.NewTypingEvent(uuid.New(), uuid.New(), true)
	req.False(conn.Send(typing, 10*time.Millisecond))
}

func TestConnector_Backpressure_High_Priority_Evicts_Low(t *testing.T) {
	req := require.New(t)
	conn := NewConnector(context.Background(), uuid.New(), ConnectMetadata{}, 1)
	defer conn.Close()

	// Given the single slot holds a low-priority presence signal
	req.True(conn.Send(event.NewPresenceEvent(uuid.New(), true), 10*time.Millisecond))

	// When a high-priority event arrives, the signal is displaced
	errEv := event.NewErrorEvent("urgent")
	req.True(conn.Send(errEv, 10*time.Millisecond))

	ev := <-conn.Recv()
	req.Equal(event.Error, ev.GetKind())
}

func TestConnector_Send_After_Close_Fails(t *testing.T) {
	req := require.New(t)
	conn := NewConnector(context.Background(), uuid.New(), ConnectMetadata{}, 4)
	conn.Close()

	req.False(conn.Send(event.NewErrorEvent("late"), 10*time.Millisecond))
}

func TestConnector_Close_Is_Idempotent(t *testing.T) {
	conn := NewConnector(context.Background(), uuid.New(), ConnectMetadata{}, 4)

	// Hub shutdown, cell eviction and the transport defer may all race here.
	conn.Close()
	conn.Close()
}

func TestConnector_Close_Releases_Blocked_Sender(t *testing.T) {
	req := require.New(t)
	conn := NewConnector(context.Background(), uuid.New(), ConnectMetadata{}, 1)

	// Given a saturated buffer and a sender parked on it
	req.True(conn.Send(event.NewErrorEvent("occupies the slot"), 10*time.Millisecond))

	result := make(chan bool, 1)
	go func() {
		result <- conn.Send(event.NewErrorEvent("parked"), 5*time.Second)
	}()
	time.Sleep(20 * time.Millisecond)

	// When teardown runs while the send is still waiting for buffer space
	conn.Close()

	// Then the sender is released well before its own timeout, without a
	// send-on-closed-channel panic.
	select {
	case delivered := <-result:
		req.False(delivered)
	case <-time.After(time.Second):
		t.Fatal("close left the sender parked until its timeout")
	}
}

func TestConnector_Done_Fires_On_Close_And_Keeps_Buffer_Readable(t *testing.T) {
	req := require.New(t)
	conn := NewConnector(context.Background(), uuid.New(), ConnectMetadata{}, 4)

	select {
	case <-conn.Done():
		t.Fatal("done must not fire while the session is live")
	default:
	}

	req.True(conn.Send(event.NewErrorEvent("buffered before teardown"), 10*time.Millisecond))
	conn.Close()

	// Done signals the pump; what was queued beforehand stays readable so
	// the pump can flush it.
	select {
	case <-conn.Done():
	case <-time.After(time.Second):
		t.Fatal("done did not fire after close")
	}
	ev := <-conn.Recv()
	req.Equal(event.Error, ev.GetKind())
}
