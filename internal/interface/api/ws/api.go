package ws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"slMirror/internal/domain"
	"slMirror/internal/usecase/userid"
)

const maxSettingsBody = 1 << 20

type Config struct {
	Addr          string
	Logger        *zap.Logger
	Settings      SettingsManager
	Users         UserResolver
	Notifications domain.NotificationRepository
	Metrics       http.Handler
}

func (c Config) addr() string {
	if strings.TrimSpace(c.Addr) == "" {
		return ":8080"
	}
	return c.Addr
}

type SettingsManager interface {
	Snapshot() domain.Settings
	Reload(data []byte) error
}

type UserResolver interface {
	Resolve(ctx context.Context, username string) (string, error)
}

type apiHandlers struct {
	logger        *zap.Logger
	settings      SettingsManager
	users         UserResolver
	notifications domain.NotificationRepository
	metrics       http.Handler
	started       time.Time
}

func newAPIHandlers(cfg Config, logger *zap.Logger) *apiHandlers {
	return &apiHandlers{
		logger:        logger,
		settings:      cfg.Settings,
		users:         cfg.Users,
		notifications: cfg.Notifications,
		metrics:       cfg.Metrics,
		started:       time.Now(),
	}
}

func (h *apiHandlers) routes(wsHandler http.HandlerFunc) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/ws/events", wsHandler)
	r.Get("/healthz", h.handleHealth)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type"},
			MaxAge:         300,
		}))
		r.Get("/settings", h.handleGetSettings)
		r.Post("/settings", h.handlePostSettings)
		r.Get("/users/{login}/id", h.handleUserID)
		r.Get("/notifications", h.handleNotifications)
	})

	return r
}

func (h *apiHandlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"uptime": time.Since(h.started).Truncate(time.Second).String(),
	})
}

func (h *apiHandlers) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	if h.settings == nil {
		writeError(w, http.StatusServiceUnavailable, "settings not available")
		return
	}
	writeJSON(w, http.StatusOK, h.settings.Snapshot().Redacted())
}

func (h *apiHandlers) handlePostSettings(w http.ResponseWriter, r *http.Request) {
	if h.settings == nil {
		writeError(w, http.StatusServiceUnavailable, "settings not available")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxSettingsBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot read body")
		return
	}
	body = restoreRedacted(body, h.settings.Snapshot())
	if err := h.settings.Reload(body); err != nil {
		h.logger.Warn("settings reload rejected", zap.Error(err))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, h.settings.Snapshot().Redacted())
}

// restoreRedacted reemplaza los secretos enmascarados ("***") por los valores
// vigentes, para que un GET seguido de POST no pise los tokens.
func restoreRedacted(body []byte, current domain.Settings) []byte {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil || doc == nil {
		return body
	}
	secrets := map[string]string{
		"SLSocketToken": current.SocketToken,
		"JTVToken":      current.TwitchToken,
	}
	changed := false
	for key, value := range secrets {
		var posted string
		if raw, ok := doc[key]; ok && json.Unmarshal(raw, &posted) == nil && posted == domain.RedactedMask {
			doc[key], _ = json.Marshal(value)
			changed = true
		}
	}
	if !changed {
		return body
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return body
	}
	return out
}

func (h *apiHandlers) handleUserID(w http.ResponseWriter, r *http.Request) {
	if h.users == nil {
		writeError(w, http.StatusServiceUnavailable, "user lookup not available")
		return
	}

	login := chi.URLParam(r, "login")
	id, err := h.users.Resolve(r.Context(), login)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"login": strings.ToLower(login), "id": id})
	case errors.Is(err, userid.ErrEmptyUsername):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUserNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

type notificationResponse struct {
	ID             int64           `json:"id"`
	EventID        string          `json:"event_id"`
	For            string          `json:"for"`
	Type           string          `json:"type"`
	Classification string          `json:"classification"`
	Message        json.RawMessage `json:"message,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

func (h *apiHandlers) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if h.notifications == nil {
		writeError(w, http.StatusServiceUnavailable, "journal not available")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	list, err := h.notifications.ListNotifications(r.Context(), limit)
	if err != nil {
		h.logger.Error("list notifications", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "cannot list notifications")
		return
	}

	out := make([]notificationResponse, 0, len(list))
	for _, n := range list {
		resp := notificationResponse{
			ID:             n.ID,
			EventID:        n.EventID,
			For:            n.RecipientDomain,
			Type:           n.Type,
			Classification: string(n.Classification),
			CreatedAt:      n.CreatedAt,
		}
		if json.Valid([]byte(n.Payload)) {
			resp.Message = json.RawMessage(n.Payload)
		}
		out = append(out, resp)
	}

	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
