// Package streamlabs es el cliente del socket de eventos de Streamlabs
// (socket.io sobre websocket).
package streamlabs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	DefaultURL = "https://sockets.streamlabs.com"

	defaultPingInterval = 25 * time.Second
	defaultPingTimeout  = 5 * time.Second
	defaultMinBackoff   = time.Second
	defaultMaxBackoff   = time.Minute
	writeTimeout        = 10 * time.Second
)

var ErrNoToken = errors.New("streamlabs: socket token not configured")

// EventHandler recibe el payload de cada evento "event". Se invoca de forma
// síncrona desde el loop de lectura, así que los eventos llegan en orden.
type EventHandler func(ctx context.Context, payload []byte)

type Config struct {
	URL   string
	Token func() string

	Dialer     *websocket.Dialer
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

type Client struct {
	cfg     Config
	handler EventHandler
	logger  *zap.Logger
}

func NewClient(cfg Config, handler EventHandler, logger *zap.Logger) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = defaultMinBackoff
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = max(defaultMaxBackoff, cfg.MinBackoff)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:     cfg,
		handler: handler,
		logger:  logger.Named("streamlabs"),
	}
}

func (c *Client) token() string {
	if c.cfg.Token == nil {
		return ""
	}
	return c.cfg.Token()
}

// Run conecta y reconecta con backoff exponencial hasta que ctx se cancela.
// Sin token devuelve ErrNoToken sin intentar conectar.
func (c *Client) Run(ctx context.Context) error {
	backoff := c.cfg.MinBackoff
	for {
		token := c.token()
		if token == "" {
			c.logger.Warn("Streamlabs socket token not configured")
			return ErrNoToken
		}

		connected, err := c.session(ctx, token)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			c.logger.Error("socket error", zap.Error(err))
		}
		if connected {
			backoff = c.cfg.MinBackoff
		}

		c.logger.Debug("reconnecting", zap.Duration("backoff", backoff))
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		backoff = min(backoff*2, c.cfg.MaxBackoff)
	}
}

// session mantiene una conexión hasta que se cierra. connected indica si el
// servidor llegó a aceptar la conexión socket.io.
func (c *Client) session(ctx context.Context, token string) (connected bool, err error) {
	target, err := socketURL(c.cfg.URL, token)
	if err != nil {
		return false, err
	}

	conn, _, err := c.cfg.Dialer.DialContext(ctx, target, nil)
	if err != nil {
		return false, fmt.Errorf("streamlabs: dial: %w", err)
	}
	defer conn.Close()

	ws := &wsConn{conn: conn}
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	readTimeout := defaultPingInterval + defaultPingTimeout
	pinging := false

	for {
		if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return connected, fmt.Errorf("streamlabs: set deadline: %w", err)
		}
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return connected, nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("Disconnected", zap.Error(err))
				return connected, nil
			}
			return connected, fmt.Errorf("streamlabs: read: %w", err)
		}
		if msgType != websocket.TextMessage || len(data) == 0 {
			continue
		}

		switch data[0] {
		case engineOpen:
			var open openPacket
			if err := json.Unmarshal(data[1:], &open); err != nil {
				return connected, fmt.Errorf("streamlabs: open packet: %w", err)
			}
			readTimeout = open.interval() + open.timeout()
			if !pinging {
				pinging = true
				go c.ping(ws, open.interval(), stop)
			}
		case enginePing:
			if err := ws.writeText([]byte{enginePong}); err != nil {
				return connected, fmt.Errorf("streamlabs: pong: %w", err)
			}
		case enginePong:
		case engineClose:
			c.logger.Debug("Disconnected", zap.String("reason", "engine close"))
			return connected, nil
		case engineMessage:
			if len(data) < 2 {
				continue
			}
			switch data[1] {
			case socketConnect:
				connected = true
				c.logger.Debug("Connected")
			case socketDisconnect:
				c.logger.Debug("Disconnected", zap.String("reason", "server disconnect"))
				return connected, nil
			case socketEvent:
				c.handleEvent(ctx, data[2:])
			case socketError:
				return connected, fmt.Errorf("streamlabs: server error: %s", data[2:])
			}
		}
	}
}

func (c *Client) handleEvent(ctx context.Context, body []byte) {
	name, payload, err := decodeEvent(body)
	if err != nil {
		c.logger.Warn("undecodable event packet", zap.Error(err), zap.ByteString("packet", body))
		return
	}
	if name != "event" {
		c.logger.Info("Message", zap.String("name", name), zap.ByteString("payload", payload))
		return
	}
	if c.handler != nil {
		c.handler(ctx, payload)
	}
}

func (c *Client) ping(ws *wsConn, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := ws.writeText([]byte{enginePing}); err != nil {
				c.logger.Debug("ping failed", zap.Error(err))
				return
			}
		}
	}
}

// wsConn serializa las escrituras: gorilla admite un solo escritor a la vez.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (w *wsConn) writeText(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return w.conn.WriteMessage(websocket.TextMessage, data)
}
