package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pairly/messaging-service/internal/domain/event"
)

// Interface guard
var _ Connector = (*connect)(nil)

// [CONNECTOR] THE INTERFACE FOR EXTERNAL LAYERS (REGISTRY/HUB)
// This allows mocking and decoupling from the concrete implementation.
type Connector interface {
	GetID() uuid.UUID
	GetUserID() uuid.UUID
	Send(ev event.Eventer, timeout time.Duration) bool // Thread-safe send with backpressure handling
	Recv() <-chan event.Eventer
	Done() <-chan struct{} // Closed when the session is being torn down
	Close()                // Terminate connection and release resources
}

// [METADATA] EXPORTED FOR TRANSPORT AND ANALYTICS LAYERS
type ConnectMetadata struct {
	Platform  string
	Version   string
	RemoteIP  string
	UserAgent string
}

// [CONNECT] CONCRETE IMPLEMENTATION (UNEXPORTED TO FORCE INTERFACE USAGE)
type connect struct {
	id             uuid.UUID
	userID         uuid.UUID
	metadata       ConnectMetadata
	createdAt      time.Time
	ctx            context.Context
	cancelFn       context.CancelFunc
	sendCh         chan event.Eventer
	closeOnce      sync.Once // [PROTECTION]
	inflight       int32     // [ATOMIC_FIELD] sends currently executing
	lastActivityAt int64     // [ATOMIC_FIELD]
	droppedCount   uint64    // [ATOMIC_FIELD]
}

// [POOL] SYNC.POOL FOR OBJECT REUSE (REDUCES GC PRESSURE)
var connectPool = sync.Pool{
	New: func() any {
		return &connect{}
	},
}

// NewConnector acquires a pooled session object bound to userID.
func NewConnector(ctx context.Context, userID uuid.UUID, meta ConnectMetadata, bufferSize int) Connector {
	c := connectPool.Get().(*connect)
	c.reset(ctx, userID, meta, bufferSize)
	return c
}

// reset re-initializes the connector's internal state using a struct literal.
// Reassigning the whole value wipes stale data from pooled objects and
// resets the sync.Once guard.
func (c *connect) reset(ctx context.Context, userID uuid.UUID, meta ConnectMetadata, bufferSize int) {
	childCtx, cancel := context.WithCancel(ctx)

	*c = connect{
		id:             uuid.New(),
		userID:         userID,
		metadata:       meta,
		createdAt:      time.Now(),
		ctx:            childCtx,
		cancelFn:       cancel,
		sendCh:         make(chan event.Eventer, bufferSize),
		lastActivityAt: time.Now().UnixNano(),
	}
}

// --- IMPLEMENTATION OF CONNECTOR INTERFACE ---

func (c *connect) GetID() uuid.UUID     { return c.id }
func (c *connect) GetUserID() uuid.UUID { return c.userID }

// Send attempts to push an event into the session buffer within timeout.
// If the buffer stays saturated, lower-priority events are shed first.
func (c *connect) Send(ev event.Eventer, timeout time.Duration) bool {
	// [INFLIGHT_ACCOUNTING] Close consults this before recycling.
	atomic.AddInt32(&c.inflight, 1)
	defer atomic.AddInt32(&c.inflight, -1)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	select {
	// [LIFECYCLE_GATE] Abort if the underlying transport is already dead.
	case <-c.ctx.Done():
		return false

	// [PRIMARY_DELIVERY] Waits up to 'timeout' for buffer space, which
	// smooths out transient network jitter on the consumer side.
	case c.sendCh <- ev:
		atomic.StoreInt64(&c.lastActivityAt, time.Now().UnixNano())
		return true

	// [BACKPRESSURE_THRESHOLD] Persistent slow consumer.
	case <-ctx.Done():
		return c.handleBackpressure(ev)
	}
}

// handleBackpressure manages full buffers by dropping low-priority events.
func (c *connect) handleBackpressure(ev event.Eventer) bool {
	// Low-priority signals (typing, presence) are droppable by contract.
	if ev.GetPriority() <= event.PriorityLow {
		atomic.AddUint64(&c.droppedCount, 1)
		return false
	}

	// Evict one queued event if it is lower priority than the incoming one.
	select {
	case oldEv := <-c.sendCh:
		if oldEv.GetPriority() < ev.GetPriority() {
			select {
			case c.sendCh <- ev:
				return true
			default:
			}
		} else {
			// Best effort: put the displaced event back.
			select {
			case c.sendCh <- oldEv:
			default:
			}
		}
	default:
	}

	atomic.AddUint64(&c.droppedCount, 1)
	return false
}

func (c *connect) Recv() <-chan event.Eventer { return c.sendCh }

// Done reports teardown to the transport pump. Events buffered before the
// signal stay readable on Recv so the pump can flush them.
func (c *connect) Done() <-chan struct{} { return c.ctx.Done() }

// Close terminates the session, triggers cleanup, and recycles the object.
func (c *connect) Close() {
	// [IDEMPOTENCY_SHIELD]
	// Teardown runs exactly once even when invoked concurrently by the Hub
	// (shutdown), the Cell (eviction) and the transport handler (defer).
	c.closeOnce.Do(func() {
		// Cancelling the context wakes senders parked on a full buffer
		// ([LIFECYCLE_GATE]) and fires Done for the transport pump. The
		// send channel is never closed: a racing Send must land in the
		// abandoned buffer, not panic, so there is no close/send ordering
		// to get wrong.
		c.cancelFn()

		c.metadata = ConnectMetadata{}

		// [QUIESCENT_RECYCLE] Recycle only when no Send is mid-flight;
		// otherwise leave the object to the GC. Recycling under an active
		// sender would let reset rebind it to another user's session while
		// the old delivery is still running.
		if atomic.LoadInt32(&c.inflight) == 0 {
			connectPool.Put(c)
		}
	})
}
