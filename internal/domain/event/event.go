package event

type Kind int16

const (
	Connected    Kind = iota + 1 // [SYSTEM]
	Disconnected                 // [SYSTEM]
	MessageNew                   // [BUSINESS]
	MessageRead
	Typing
	UserOnline
	UserOffline
	Notification
	Error
)

// WireName maps a kind to the event name clients see on the socket.
func (k Kind) WireName() string {
	switch k {
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	case MessageNew:
		return "message:new"
	case MessageRead:
		return "message:read"
	case Typing:
		return "message:typing"
	case UserOnline:
		return "user:online"
	case UserOffline:
		return "user:offline"
	case Notification:
		return "notification:message"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

type Priority int32

const (
	PriorityLow    Priority = 10
	PriorityNormal Priority = 20
	PriorityHigh   Priority = 30
)

// Eventer defines the contract for all data packets flowing through the Hub.
type Eventer interface {
	GetID() string
	GetKind() Kind
	GetPriority() Priority
	GetOccurredAt() int64
	GetPayload() any
	GetCached() any
	SetCached(any)
}

// Exportable marks an event that must also be re-published to the message
// bus (cross-node delivery, push gateways). An empty routing key tells the
// dispatcher to skip it.
type Exportable interface {
	GetRoutingKey() string
}
