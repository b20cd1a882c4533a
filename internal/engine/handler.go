package engine

import (
	"context"
	"log/slog"

	"mango_go/internal/domain"
)

// LogHandler writes every event to a structured logger.
type LogHandler struct {
	Logger *slog.Logger
}

func (h LogHandler) HandleEvent(ctx context.Context, source string, ev domain.Event) error {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}

	attrs := []any{
		slog.String("market", source),
		slog.Uint64("seq", ev.Seq),
		slog.String("side", string(ev.Side)),
		slog.String("order_id", ev.OrderID.String()),
		slog.String("owner", ev.Owner.String()),
		slog.Uint64("client_id", ev.ClientOrderID),
		slog.Uint64("released", ev.NativeQuantityReleased),
		slog.Uint64("paid", ev.NativeQuantityPaid),
	}

	switch ev.Kind {
	case domain.EventKindFill:
		attrs = append(attrs,
			slog.Bool("maker", ev.Flags.IsMaker()),
			slog.Uint64("fee_or_rebate", ev.NativeFeeOrRebate),
		)
		logger.InfoContext(ctx, "FILL", attrs...)
	case domain.EventKindOut:
		logger.InfoContext(ctx, "OUT", attrs...)
	default:
		logger.WarnContext(ctx, "Unknown event kind", append(attrs, slog.Int("flags", int(ev.Flags)))...)
	}
	return nil
}
