package events

import (
	"context"
	"encoding/json"
	"time"

	"slMirror/internal/domain"
)

// ClassifiedEventDTO describe el payload que se publica en TopicClassified.
type ClassifiedEventDTO struct {
	EventID        string          `json:"event_id"`
	For            string          `json:"for"`
	Type           string          `json:"type"`
	Classification string          `json:"classification"`
	Message        json.RawMessage `json:"message"`
	Timestamp      string          `json:"timestamp"`
}

func NewClassifiedEventDTO(msg domain.ClassifiedMessage) ClassifiedEventDTO {
	message := msg.Entry.Raw
	if len(message) == 0 {
		message = json.RawMessage("null")
	}
	return ClassifiedEventDTO{
		EventID:        msg.EventID,
		For:            msg.RecipientDomain,
		Type:           msg.Type,
		Classification: string(msg.Classification),
		Message:        message,
		Timestamp:      time.Now().UTC().Format(time.RFC3339Nano),
	}
}

// ClassifiedPublisher publica cada entrada clasificada como DTO en el bus.
type ClassifiedPublisher struct {
	pub domain.MirrorPublisher
}

func NewClassifiedPublisher(pub domain.MirrorPublisher) *ClassifiedPublisher {
	return &ClassifiedPublisher{pub: pub}
}

func (p *ClassifiedPublisher) HandleClassified(ctx context.Context, msg domain.ClassifiedMessage) error {
	data, err := json.Marshal(NewClassifiedEventDTO(msg))
	if err != nil {
		return err
	}
	return p.pub.Publish(ctx, TopicClassified, data)
}

// SettingsPayload serializa la configuración para TopicSettingsUpdated, sin secretos.
func SettingsPayload(s domain.Settings) ([]byte, error) {
	return json.Marshal(s.Redacted())
}

var _ domain.ClassifiedEventSink = (*ClassifiedPublisher)(nil)
var _ domain.MirrorPublisher = (*Bus)(nil)
