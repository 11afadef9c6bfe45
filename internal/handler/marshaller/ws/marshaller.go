package wsmarshaller

import (
	"encoding/json"

	"github.com/pairly/messaging-service/internal/domain/event"
)

// WSEvent is the generic JSON envelope for everything the server pushes
// over a real-time transport (WebSocket frames, long-poll batches).
type WSEvent struct {
	Event   string `json:"event"` // e.g. "message:new", "user:online"
	ID      string `json:"id"`
	SentAt  int64  `json:"sent_at"`
	Payload any    `json:"payload"`
}

// MarshallDeliveryEvent prepares an event for wire transmission.
// The encoded bytes are cached on the event so an event multiplexed to
// many sessions is serialized exactly once.
func MarshallDeliveryEvent(ev event.Eventer) ([]byte, error) {
	if cached := ev.GetCached(); cached != nil {
		if data, ok := cached.([]byte); ok {
			return data, nil
		}
	}

	data, err := json.Marshal(&WSEvent{
		Event:   ev.GetKind().WireName(),
		ID:      ev.GetID(),
		SentAt:  ev.GetOccurredAt(),
		Payload: ev.GetPayload(),
	})
	if err != nil {
		return nil, err
	}

	ev.SetCached(data)
	return data, nil
}

// MarshallEvents batches events for the long-poll response body.
func MarshallEvents(evs []event.Eventer) ([]byte, error) {
	out := make([]json.RawMessage, 0, len(evs))
	for _, ev := range evs {
		data, err := MarshallDeliveryEvent(ev)
		if err != nil {
			return nil, err
		}
		out = append(out, data)
	}
	return json.Marshal(out)
}
