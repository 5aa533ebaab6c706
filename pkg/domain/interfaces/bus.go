package interfaces

import (
	"context"

	"github.com/memori-lab/memoriai/pkg/domain/model"
)

// EventBus connects recall and scheduler outcomes to the audit/metrics
// stream consumed by the external dashboard. Publish never blocks the
// producing workflow.
type EventBus interface {
	Publish(ctx context.Context, event model.AuditEvent)

	// Subscribe registers a consumer and returns its event channel. The
	// channel is closed when the bus shuts down.
	Subscribe(name string) <-chan model.AuditEvent

	// Close stops the bus and closes all subscriber channels
	Close()
}
