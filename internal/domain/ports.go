package domain

import (
	"context"
	"errors"
)

// ErrUserNotFound lo devuelve TwitchUserService cuando el login no existe.
var ErrUserNotFound = errors.New("twitch user not found")

// MirrorPublisher es la primitiva de broadcast hacia el bus local.
type MirrorPublisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// ClassifiedEventSink recibe cada entrada clasificada (logs, journal, bus...).
type ClassifiedEventSink interface {
	HandleClassified(ctx context.Context, msg ClassifiedMessage) error
}

// SettingsProvider expone siempre la última instantánea de configuración.
type SettingsProvider interface {
	Snapshot() Settings
}

// NotificationRepository persiste las entradas clasificadas.
type NotificationRepository interface {
	SaveNotification(ctx context.Context, n *Notification) (*Notification, error)
	ListNotifications(ctx context.Context, limit int) ([]*Notification, error)
}

// TwitchUserService resuelve el ID numérico de un login de Twitch vía Helix.
type TwitchUserService interface {
	UserID(ctx context.Context, login string) (string, error)
}
