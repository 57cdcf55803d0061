// Package userid resuelve IDs de usuario de Twitch con un cache acotado.
package userid

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"slMirror/internal/domain"
)

var ErrEmptyUsername = errors.New("userid: empty username")

type Resolver struct {
	logger   *zap.Logger
	settings domain.SettingsProvider
	users    domain.TwitchUserService
	cache    *Cache
}

func NewResolver(users domain.TwitchUserService, settings domain.SettingsProvider, cache *Cache, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cache == nil {
		cache = NewCache(DefaultCacheSize)
	}
	return &Resolver{
		logger:   logger.Named("userid"),
		settings: settings,
		users:    users,
		cache:    cache,
	}
}

// Resolve devuelve el ID de Twitch de username. Si username está vacío se usa
// StreamerName de la configuración.
func (r *Resolver) Resolve(ctx context.Context, username string) (string, error) {
	login := strings.ToLower(strings.TrimSpace(username))
	if login == "" && r.settings != nil {
		login = strings.ToLower(strings.TrimSpace(r.settings.Snapshot().StreamerName))
	}
	if login == "" {
		return "", ErrEmptyUsername
	}

	if id, ok := r.cache.Get(login); ok {
		return id, nil
	}

	id, err := r.users.UserID(ctx, login)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			r.logger.Warn("Response unknown", zap.String("login", login), zap.Error(err))
		} else {
			r.logger.Error("user id lookup failed", zap.String("login", login), zap.Error(err))
		}
		return "", err
	}

	r.logger.Debug("resolved user id", zap.String("login", login), zap.String("id", id))
	r.cache.Put(login, id)
	return id, nil
}
