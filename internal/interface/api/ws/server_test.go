package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slMirror/internal/app/events"
	"slMirror/internal/domain"
	"slMirror/internal/usecase/userid"
)

type fakeSettings struct {
	mu  sync.Mutex
	cur domain.Settings
}

func (f *fakeSettings) Snapshot() domain.Settings {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cur
}

func (f *fakeSettings) Reload(data []byte) error {
	var next domain.Settings
	if err := json.Unmarshal(data, &next); err != nil {
		return fmt.Errorf("settings: decode: %w", err)
	}
	f.mu.Lock()
	f.cur = next
	f.mu.Unlock()
	return nil
}

type fakeResolver map[string]string

func (f fakeResolver) Resolve(_ context.Context, username string) (string, error) {
	switch username {
	case "":
		return "", userid.ErrEmptyUsername
	case "broken":
		return "", errors.New("helix: GetUsers failed (500: Internal Server Error) boom")
	}
	if id, ok := f[strings.ToLower(username)]; ok {
		return id, nil
	}
	return "", domain.ErrUserNotFound
}

type fakeRepo struct {
	list      []*domain.Notification
	lastLimit int
}

func (f *fakeRepo) SaveNotification(_ context.Context, n *domain.Notification) (*domain.Notification, error) {
	f.list = append(f.list, n)
	return n, nil
}

func (f *fakeRepo) ListNotifications(_ context.Context, limit int) ([]*domain.Notification, error) {
	f.lastLimit = limit
	return f.list, nil
}

func newTestServer(t *testing.T, cfg Config) (*Server, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	s := NewServer(cfg)
	ts := httptest.NewServer(s.Handler(ctx))
	t.Cleanup(ts.Close)
	return s, ts
}

func doRequest(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestHealthz(t *testing.T) {
	_, ts := newTestServer(t, Config{})
	resp, body := doRequest(t, http.MethodGet, ts.URL+"/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestSettingsEndpoints(t *testing.T) {
	settings := &fakeSettings{cur: domain.Settings{SocketToken: "secret", StreamerName: "Streamer"}}
	_, ts := newTestServer(t, Config{Settings: settings})

	resp, body := doRequest(t, http.MethodGet, ts.URL+"/api/settings", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "***", body["SLSocketToken"])
	assert.Equal(t, "Streamer", body["StreamerName"])

	resp, _ = doRequest(t, http.MethodPost, ts.URL+"/api/settings", `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "secret", settings.Snapshot().SocketToken)

	resp, body = doRequest(t, http.MethodPost, ts.URL+"/api/settings", `{"MirrorAll":true,"SLSocketToken":"***","StreamerName":"other"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["MirrorAll"])

	got := settings.Snapshot()
	assert.True(t, got.MirrorAll)
	assert.Equal(t, "secret", got.SocketToken)
	assert.Equal(t, "other", got.StreamerName)
}

func TestSettingsEndpoints_NotConfigured(t *testing.T) {
	_, ts := newTestServer(t, Config{})
	resp, _ := doRequest(t, http.MethodGet, ts.URL+"/api/settings", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	_, ts := newTestServer(t, Config{Settings: &fakeSettings{}})

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/settings", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestUserIDEndpoint(t *testing.T) {
	_, ts := newTestServer(t, Config{Users: fakeResolver{"streamer": "1234"}})

	resp, body := doRequest(t, http.MethodGet, ts.URL+"/api/users/Streamer/id", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1234", body["id"])
	assert.Equal(t, "streamer", body["login"])

	resp, _ = doRequest(t, http.MethodGet, ts.URL+"/api/users/ghost/id", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doRequest(t, http.MethodGet, ts.URL+"/api/users/broken/id", "")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestNotificationsEndpoint(t *testing.T) {
	repo := &fakeRepo{list: []*domain.Notification{{
		ID:              7,
		EventID:         "ev",
		RecipientDomain: domain.DomainStreamlabs,
		Type:            "donation",
		Classification:  domain.ClassificationDonation,
		Payload:         `{"amount":5}`,
		CreatedAt:       time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}}}
	_, ts := newTestServer(t, Config{Notifications: repo})

	resp, err := http.Get(ts.URL + "/api/notifications?limit=5")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list []notificationResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, int64(7), list[0].ID)
	assert.Equal(t, "donation", list[0].Classification)
	assert.JSONEq(t, `{"amount":5}`, string(list[0].Message))
	assert.Equal(t, 5, repo.lastLimit)

	bad, _ := doRequest(t, http.MethodGet, ts.URL+"/api/notifications?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("slmirror_events_received_total 1\n"))
	})
	_, ts := newTestServer(t, Config{Metrics: metrics})

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func dialEvents(t *testing.T, s *Server, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return s.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func TestBroadcast(t *testing.T) {
	s, ts := newTestServer(t, Config{})
	conn := dialEvents(t, s, ts)

	require.NoError(t, s.Broadcast(context.Background(), events.TopicStreamlabs, []byte(`{"type":"donation"}`)))

	env := readEnvelope(t, conn)
	assert.Equal(t, events.TopicStreamlabs, env.Event)
	assert.JSONEq(t, `{"type":"donation"}`, env.Data)
}

func TestBroadcast_ClientGoneIsRemoved(t *testing.T) {
	s, ts := newTestServer(t, Config{})
	conn := dialEvents(t, s, ts)
	conn.Close()

	require.Eventually(t, func() bool {
		_ = s.Broadcast(context.Background(), "T", []byte(`{}`))
		return s.ClientCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestForward(t *testing.T) {
	s, ts := newTestServer(t, Config{})
	conn := dialEvents(t, s, ts)

	bus := events.NewBus(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Forward(ctx, bus, events.TopicStreamlabs, events.TopicSettingsUpdated)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return bus.SubscriberCount(events.TopicSettingsUpdated) == 1
	}, time.Second, 10*time.Millisecond)
	require.NoError(t, bus.Publish(context.Background(), events.TopicSettingsUpdated, []byte(`{"MirrorAll":true}`)))

	env := readEnvelope(t, conn)
	assert.Equal(t, events.TopicSettingsUpdated, env.Event)
	assert.JSONEq(t, `{"MirrorAll":true}`, env.Data)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Forward did not stop")
	}
}
