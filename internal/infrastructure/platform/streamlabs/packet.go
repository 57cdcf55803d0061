package streamlabs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// engine.io v3 packet types.
const (
	engineOpen    = '0'
	engineClose   = '1'
	enginePing    = '2'
	enginePong    = '3'
	engineMessage = '4'
)

// socket.io packet types (dentro de un engineMessage).
const (
	socketConnect    = '0'
	socketDisconnect = '1'
	socketEvent      = '2'
	socketError      = '4'
)

var errBadPacket = errors.New("streamlabs: bad packet")

type openPacket struct {
	SID          string `json:"sid"`
	PingInterval int    `json:"pingInterval"`
	PingTimeout  int    `json:"pingTimeout"`
}

func (o openPacket) interval() time.Duration {
	if o.PingInterval <= 0 {
		return defaultPingInterval
	}
	return time.Duration(o.PingInterval) * time.Millisecond
}

func (o openPacket) timeout() time.Duration {
	if o.PingTimeout <= 0 {
		return defaultPingTimeout
	}
	return time.Duration(o.PingTimeout) * time.Millisecond
}

// decodeEvent parsea el cuerpo de un paquete de evento: namespace y ack id
// opcionales seguidos de un array JSON ["nombre", payload, ...].
func decodeEvent(data []byte) (string, json.RawMessage, error) {
	if len(data) > 0 && data[0] == '/' {
		i := bytes.IndexByte(data, ',')
		if i < 0 {
			return "", nil, fmt.Errorf("%w: namespace without body", errBadPacket)
		}
		data = data[i+1:]
	}
	for len(data) > 0 && data[0] >= '0' && data[0] <= '9' {
		data = data[1:]
	}

	var args []json.RawMessage
	if err := json.Unmarshal(data, &args); err != nil {
		return "", nil, fmt.Errorf("%w: %v", errBadPacket, err)
	}
	if len(args) == 0 {
		return "", nil, fmt.Errorf("%w: empty event", errBadPacket)
	}

	var name string
	if err := json.Unmarshal(args[0], &name); err != nil {
		return "", nil, fmt.Errorf("%w: event name: %v", errBadPacket, err)
	}
	if len(args) < 2 {
		return name, json.RawMessage("null"), nil
	}
	return name, args[1], nil
}

// socketURL arma la URL del transporte websocket a partir de la URL base
// (https://sockets.streamlabs.com).
func socketURL(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("streamlabs: parse url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("streamlabs: unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/socket.io/"

	q := u.Query()
	q.Set("token", token)
	q.Set("EIO", "3")
	q.Set("transport", "websocket")
	u.RawQuery = q.Encode()

	return u.String(), nil
}
