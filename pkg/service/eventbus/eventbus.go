package eventbus

import (
	"context"
	"sync"

	"github.com/memori-lab/memoriai/pkg/domain/interfaces"
	"github.com/memori-lab/memoriai/pkg/domain/model"
	"github.com/memori-lab/memoriai/pkg/utils/logging"
)

// DefaultBufferSize is the per-subscriber channel capacity
const DefaultBufferSize = 256

// Bus is the internal append-only audit/metrics stream. Publish never
// blocks the producing workflow: when a subscriber's buffer is full the
// event is dropped for that subscriber and counted, so a stalled dashboard
// consumer cannot back up the scheduler or the recall pipeline.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]chan model.AuditEvent
	dropped     map[string]uint64
	bufferSize  int
	closed      bool
}

var _ interfaces.EventBus = &Bus{}

// Option is a functional option for Bus configuration
type Option func(*Bus)

// WithBufferSize sets the per-subscriber channel capacity
func WithBufferSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.bufferSize = n
		}
	}
}

// New creates an event bus
func New(opts ...Option) *Bus {
	b := &Bus{
		subscribers: make(map[string]chan model.AuditEvent),
		dropped:     make(map[string]uint64),
		bufferSize:  DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish fans the event out to all subscribers without blocking
func (b *Bus) Publish(ctx context.Context, event model.AuditEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	for name, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			b.dropped[name]++
			logging.From(ctx).Warn("audit event dropped for slow subscriber",
				"subscriber", name,
				"type", event.Type,
				"dropped_total", b.dropped[name])
		}
	}
}

// Subscribe registers a consumer and returns its event channel. The channel
// is closed when the bus shuts down.
func (b *Bus) Subscribe(name string) <-chan model.AuditEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, exists := b.subscribers[name]; exists {
		return ch
	}

	ch := make(chan model.AuditEvent, b.bufferSize)
	if b.closed {
		close(ch)
		return ch
	}

	b.subscribers[name] = ch
	return ch
}

// Close stops the bus and closes all subscriber channels
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for _, ch := range b.subscribers {
		close(ch)
	}
}

// Dropped returns how many events were dropped for the named subscriber
func (b *Bus) Dropped(name string) uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dropped[name]
}
