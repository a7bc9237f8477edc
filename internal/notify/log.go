package notify

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// LogNotifier renders messages through a Localizer and writes them to a
// structured logger. It has no delivery channel and never fails.
type LogNotifier struct {
	logger    *slog.Logger
	localizer Localizer
}

func NewLogNotifier(logger *slog.Logger, localizer Localizer) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	if localizer == nil {
		localizer = NewCatalog()
	}
	return &LogNotifier{logger: logger, localizer: localizer}
}

func (n *LogNotifier) Notify(ctx context.Context, userID string, msg Message) (string, error) {
	ref := uuid.NewString()
	labels := make([]string, 0, len(msg.Buttons))
	for _, b := range msg.Buttons {
		labels = append(labels, n.localizer.Text(msg.Locale, b.Label))
	}
	n.logger.InfoContext(ctx, "notify",
		"user", userID,
		"ref", ref,
		"kind", string(msg.Kind),
		"text", n.localizer.Text(msg.Locale, msg.Kind, msg.Args...),
		"image_bytes", len(msg.Image),
		"buttons", labels,
		"protected", msg.Protected,
	)
	return ref, nil
}

func (n *LogNotifier) Delete(ctx context.Context, userID, ref string) error {
	n.logger.InfoContext(ctx, "notify delete", "user", userID, "ref", ref)
	return nil
}
