package async

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/memori-lab/memoriai/pkg/utils/logging"
)

// Dispatch runs fn in its own goroutine, detached from the caller's
// cancellation but keeping its logger. Panics and returned errors are
// logged, not propagated.
func Dispatch(ctx context.Context, fn func(ctx context.Context) error) {
	detached := context.Background()
	if logger := logging.From(ctx); logger != nil {
		detached = logging.With(detached, logger)
	}

	go func() {
		logger := logging.From(detached)
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic in dispatched handler", "recover", r)
			}
		}()

		if err := fn(detached); err != nil {
			logger.Error("dispatched handler failed", "error", goerr.Unwrap(err))
		}
	}()
}
