package domain

import "time"

// Notification es el registro persistido de una entrada clasificada.
type Notification struct {
	ID              int64
	EventID         string
	RecipientDomain string
	Type            string
	Classification  Classification
	Payload         string
	CreatedAt       time.Time
}

// NewNotification construye el registro a partir de un mensaje clasificado.
func NewNotification(msg ClassifiedMessage) *Notification {
	return &Notification{
		EventID:         msg.EventID,
		RecipientDomain: msg.RecipientDomain,
		Type:            msg.Type,
		Classification:  msg.Classification,
		Payload:         string(msg.Entry.Raw),
	}
}
