package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"slMirror/internal/app/events"
)

const writeTimeout = 5 * time.Second

// Server expone /ws/events y retransmite cada mensaje del bus a los clientes
// conectados como {"event": tópico, "data": payload}.
type Server struct {
	addr     string
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*wsClient]struct{}

	httpSrv *http.Server
	api     *apiHandlers
}

// Envelope es el formato de cada mensaje enviado a los clientes. Data es el
// payload JSON como string.
type Envelope struct {
	Event string `json:"event"`
	Data  string `json:"data"`
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteJSON(v)
}

// NewServer crea un servidor escuchando en cfg.Addr (ej. ":8080").
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("ws")

	server := &Server{
		addr:   cfg.addr(),
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: make(map[*wsClient]struct{}),
		api:     newAPIHandlers(cfg, logger),
	}

	return server
}

// Handler devuelve el router completo (websocket + API).
func (s *Server) Handler(ctx context.Context) http.Handler {
	return s.api.routes(func(w http.ResponseWriter, r *http.Request) {
		s.handleWS(ctx, w, r)
	})
}

// Start levanta el HTTP server y se bloquea hasta que el contexto se cancela.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.httpSrv = srv
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("shutdown error", zap.Error(err))
		}
		s.closeClients()
	}()

	s.logger.Info("listening", zap.String("addr", s.addr))
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}

func (s *Server) handleWS(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade error", zap.Error(err))
		return
	}

	client := &wsClient{conn: conn}

	s.mu.Lock()
	s.clients[client] = struct{}{}
	clientCount := len(s.clients)
	s.mu.Unlock()

	s.logger.Debug("client connected", zap.String("remote", r.RemoteAddr), zap.Int("clients", clientCount))

	go s.handleClient(ctx, client)
}

// handleClient solo lee para detectar el cierre; lo que envíe el cliente se
// ignora.
func (s *Server) handleClient(ctx context.Context, client *wsClient) {
	defer s.removeClient(client)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if _, _, err := client.conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("read error", zap.Error(err))
			}
			return
		}
	}
}

func (s *Server) removeClient(client *wsClient) {
	s.mu.Lock()
	_, ok := s.clients[client]
	delete(s.clients, client)
	clientCount := len(s.clients)
	s.mu.Unlock()

	client.conn.Close()
	if ok {
		s.logger.Debug("client disconnected", zap.Int("clients", clientCount))
	}
}

func (s *Server) closeClients() {
	s.mu.Lock()
	clients := s.clients
	s.clients = make(map[*wsClient]struct{})
	s.mu.Unlock()

	for c := range clients {
		c.conn.Close()
	}
}

// ClientCount devuelve cuántos clientes websocket están conectados.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Broadcast envía el payload a cada cliente. Los clientes que fallan se
// desconectan.
func (s *Server) Broadcast(ctx context.Context, topic string, payload []byte) error {
	envelope := Envelope{Event: topic, Data: string(payload)}
	data, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	s.mu.RLock()
	clients := make([]*wsClient, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()

	for _, c := range clients {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := c.writeJSON(json.RawMessage(data)); err != nil {
			s.logger.Debug("removing client due to write error", zap.Error(err))
			s.removeClient(c)
		}
	}

	return nil
}

// Subscriber es la parte del bus que necesita Forward.
type Subscriber interface {
	Subscribe(topic string) (<-chan events.Message, func())
}

// Forward retransmite a los clientes todo lo que llegue al bus en los
// tópicos dados hasta que ctx se cancela o el bus se cierra.
func (s *Server) Forward(ctx context.Context, bus Subscriber, topics ...string) {
	var wg sync.WaitGroup
	for _, topic := range topics {
		ch, unsubscribe := bus.Subscribe(topic)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer unsubscribe()
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-ch:
					if !ok {
						return
					}
					if err := s.Broadcast(ctx, msg.Topic, msg.Payload); err != nil && ctx.Err() == nil {
						s.logger.Warn("broadcast failed", zap.String("topic", msg.Topic), zap.Error(err))
					}
				}
			}
		}()
	}
	wg.Wait()
}
