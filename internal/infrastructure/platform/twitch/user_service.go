package twitchinfra

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/nicklaw5/helix/v2"

	"slMirror/internal/domain"
)

var ErrNotConfigured = errors.New("helix: client id not configured")

type Options struct {
	ClientID        string
	UserAccessToken string

	// APIBaseURL permite apuntar a otro host (tests). Vacío usa el de Twitch.
	APIBaseURL string
}

// UserService resuelve logins de Twitch a IDs numéricos vía Helix.
type UserService struct {
	mu         sync.RWMutex
	client     *helix.Client
	clientID   string
	apiBaseURL string
}

func NewUserService(opts Options) (*UserService, error) {
	s := &UserService{apiBaseURL: opts.APIBaseURL}
	if err := s.UpdateCredentials(opts.ClientID, opts.UserAccessToken); err != nil {
		return nil, err
	}
	return s, nil
}

// UpdateCredentials aplica credenciales nuevas tras una recarga de settings.
// Un client id vacío deja el servicio sin configurar.
func (s *UserService) UpdateCredentials(clientID, token string) error {
	clientID = strings.TrimSpace(clientID)
	token = strings.TrimSpace(token)

	s.mu.Lock()
	defer s.mu.Unlock()

	if clientID == "" {
		s.client = nil
		s.clientID = ""
		return nil
	}

	if s.client != nil && s.clientID == clientID {
		s.client.SetUserAccessToken(token)
		return nil
	}

	client, err := helix.NewClient(&helix.Options{
		ClientID:        clientID,
		UserAccessToken: token,
		APIBaseURL:      s.apiBaseURL,
	})
	if err != nil {
		return fmt.Errorf("helix: NewClient: %w", err)
	}
	s.client = client
	s.clientID = clientID
	return nil
}

func (s *UserService) UserID(ctx context.Context, login string) (string, error) {
	client := s.getClient()
	if client == nil {
		return "", ErrNotConfigured
	}

	resp, err := client.GetUsers(&helix.UsersParams{
		Logins: []string{strings.ToLower(login)},
	})
	if err != nil {
		return "", fmt.Errorf("helix: GetUsers: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("helix: GetUsers failed (%d: %s) %s",
			resp.StatusCode, resp.Error, resp.ErrorMessage)
	}

	if len(resp.Data.Users) == 0 {
		return "", fmt.Errorf("%w: %s", domain.ErrUserNotFound, login)
	}

	return resp.Data.Users[0].ID, nil
}

func (s *UserService) getClient() *helix.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}

var _ domain.TwitchUserService = (*UserService)(nil)
