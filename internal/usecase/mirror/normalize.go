// Package mirror contiene el pipeline que normaliza, filtra, clasifica y
// despacha los eventos del socket de Streamlabs.
package mirror

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"slMirror/internal/domain"
)

// ErrMalformedEvent se devuelve cuando el payload no trae "message".
var ErrMalformedEvent = errors.New("mirror: malformed event")

// Normalize convierte el payload crudo en un CanonicalEvent. Es una función
// pura: el mismo input siempre produce el mismo resultado.
func Normalize(raw []byte) (domain.CanonicalEvent, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return domain.CanonicalEvent{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if fields == nil {
		return domain.CanonicalEvent{}, fmt.Errorf("%w: payload is not an object", ErrMalformedEvent)
	}

	message, ok := fields["message"]
	if !ok {
		return domain.CanonicalEvent{}, fmt.Errorf("%w: no message", ErrMalformedEvent)
	}

	messages, err := normalizeMessages(message)
	if err != nil {
		return domain.CanonicalEvent{}, err
	}

	event := domain.CanonicalEvent{
		Type:     scalarString(fields["type"]),
		Messages: messages,
		Raw:      append(json.RawMessage(nil), raw...),
	}

	if recipient, ok := fields["for"]; ok {
		event.RecipientDomain = scalarString(recipient)
	} else {
		event.RecipientDomain = domain.DomainStreamlabs
		event.DomainDefaulted = true
	}

	return event, nil
}

// normalizeMessages envuelve un objeto suelto en una secuencia de un elemento.
func normalizeMessages(message json.RawMessage) ([]domain.MessageEntry, error) {
	trimmed := bytes.TrimSpace(message)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty message", ErrMalformedEvent)
	}

	switch trimmed[0] {
	case '{':
		entry, err := newEntry(trimmed)
		if err != nil {
			return nil, err
		}
		return []domain.MessageEntry{entry}, nil
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		entries := make([]domain.MessageEntry, 0, len(items))
		for _, item := range items {
			entry, err := newEntry(item)
			if err != nil {
				return nil, err
			}
			entries = append(entries, entry)
		}
		return entries, nil
	default:
		return nil, fmt.Errorf("%w: message is neither object nor list", ErrMalformedEvent)
	}
}

func newEntry(raw json.RawMessage) (domain.MessageEntry, error) {
	entry := domain.MessageEntry{
		Raw: append(json.RawMessage(nil), raw...),
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		// Entradas que no son objetos se conservan sin marcadores.
		return entry, nil
	}

	if err := json.Unmarshal(trimmed, &entry.Fields); err != nil {
		return domain.MessageEntry{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	_, entry.IsTest = entry.Fields["isTest"]
	_, entry.Repeat = entry.Fields["repeat"]

	return entry, nil
}

// scalarString devuelve el string JSON decodificado, o el texto crudo si el
// valor no es un string (null, números...). Ausente devuelve "".
func scalarString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}
