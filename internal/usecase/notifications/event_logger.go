package notifications

import (
	"context"

	"go.uber.org/zap"

	"slMirror/internal/domain"
)

// EventLogger es el sink informativo por defecto: registra cada entrada
// clasificada en el log de info.
type EventLogger struct {
	logger *zap.Logger
}

func NewEventLogger(logger *zap.Logger) *EventLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventLogger{logger: logger.Named("events")}
}

func (l *EventLogger) HandleClassified(_ context.Context, msg domain.ClassifiedMessage) error {
	message := string(msg.Entry.Raw)
	if message == "" {
		message = "null"
	}
	l.logger.Info(message,
		zap.String("event_id", msg.EventID),
		zap.String("for", msg.RecipientDomain),
		zap.String("type", msg.Type),
		zap.String("classification", string(msg.Classification)),
	)
	return nil
}

var _ domain.ClassifiedEventSink = (*EventLogger)(nil)
