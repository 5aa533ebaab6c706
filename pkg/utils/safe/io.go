package safe

import (
	"context"
	"io"
	"log/slog"

	"github.com/memori-lab/memoriai/pkg/utils/logging"
)

// Close closes an io.Closer and logs instead of returning the error.
// A nil closer is a no-op.
func Close(ctx context.Context, closer io.Closer) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.From(ctx).Error("Failed to close", slog.Any("error", err))
	}
}
