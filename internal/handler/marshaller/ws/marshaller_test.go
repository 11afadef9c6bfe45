package wsmarshaller

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pairly/messaging-service/internal/domain/event"
	"github.com/pairly/messaging-service/internal/domain/model"
)

func TestMarshall_Envelope_Shape(t *testing.T) {
	req := require.New(t)
	msg := &model.Message{ID: uuid.New(), Content: "wire me"}
	ev := event.NewMessageNewEvent(msg)

	data, err := MarshallDeliveryEvent(ev)
	req.NoError(err)

	envelope := &WSEvent{}
	req.NoError(json.Unmarshal(data, envelope))
	req.Equal("message:new", envelope.Event)
	req.Equal(ev.GetID(), envelope.ID)
	req.NotZero(envelope.SentAt)
}

func TestMarshall_Caches_Encoded_Bytes(t *testing.T) {
	req := require.New(t)
	ev := event.NewPresenceEvent(uuid.New(), true)

	first, err := MarshallDeliveryEvent(ev)
	req.NoError(err)

	// An event multiplexed to many sessions serializes exactly once; the
	// second call returns the identical backing slice.
	second, err := MarshallDeliveryEvent(ev)
	req.NoError(err)
	req.Same(&first[0], &second[0])
}

func TestMarshallEvents_Batches_For_LongPoll(t *testing.T) {
	req := require.New(t)
	evs := []event.Eventer{
		event.NewPresenceEvent(uuid.New(), true),
		event.NewErrorEvent("batched"),
	}

	data, err := MarshallEvents(evs)
	req.NoError(err)

	var batch []json.RawMessage
	req.NoError(json.Unmarshal(data, &batch))
	req.Len(batch, 2)
}
