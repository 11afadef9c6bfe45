package pubsub

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pairly/messaging-service/internal/domain/event"
	"github.com/pairly/messaging-service/internal/domain/model"
)

func newGoChannelDispatcher(t *testing.T) (EventDispatcher, *gochannel.GoChannel) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ch := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { _ = ch.Close() })
	return NewEventDispatcher(ch, "node-a", logger), ch
}

func TestDispatcher_Publishes_With_Routing_Metadata(t *testing.T) {
	req := require.New(t)
	dispatcher, ch := newGoChannelDispatcher(t)

	target := uuid.New()
	ev := event.NewNotificationEvent(target, uuid.New(), &model.Message{
		ID:      uuid.New(),
		Content: "exported",
	})

	msgs, err := ch.Subscribe(context.Background(), ev.GetRoutingKey())
	req.NoError(err)

	req.NoError(dispatcher.Publish(context.Background(), ev))

	select {
	case msg := <-msgs:
		req.Equal("node-a", msg.Metadata.Get(MetadataOriginNode))
		req.Equal(ev.GetRoutingKey(), msg.Metadata.Get(MetadataRoutingKey))

		decoded := &event.NotificationEvent{}
		req.NoError(json.Unmarshal(msg.Payload, decoded))
		req.Equal(target, decoded.TargetID)
		req.Equal("exported", decoded.Payload.Message.Content)
		msg.Ack()
	case <-time.After(time.Second):
		t.Fatal("nothing arrived on the bus")
	}
}

func TestDispatcher_Ignores_Local_Only_Events(t *testing.T) {
	req := require.New(t)
	dispatcher, _ := newGoChannelDispatcher(t)

	// Typing has no routing key: it must never leave the node.
	req.NoError(dispatcher.Publish(context.Background(), event.NewTypingEvent(uuid.New(), uuid.New(), true)))
}

func TestDispatcher_Notify_Is_The_Bus_Export(t *testing.T) {
	req := require.New(t)
	dispatcher, ch := newGoChannelDispatcher(t)

	target := uuid.New()
	ev := event.NewNotificationEvent(target, uuid.New(), &model.Message{ID: uuid.New(), Content: "hi"})

	msgs, err := ch.Subscribe(context.Background(), ev.GetRoutingKey())
	req.NoError(err)

	req.NoError(dispatcher.Notify(context.Background(), ev))

	select {
	case msg := <-msgs:
		msg.Ack()
	case <-time.After(time.Second):
		t.Fatal("notify did not export the event")
	}
}

func TestDispatcher_Rejects_Nil_Event(t *testing.T) {
	dispatcher, _ := newGoChannelDispatcher(t)
	require.Error(t, dispatcher.Publish(context.Background(), nil))
}
