package domain

import "encoding/json"

// MessageEntry es una entrada individual de un evento de Streamlabs.
// IsTest y Repeat reflejan la presencia de las claves "isTest" y "repeat",
// no su valor.
type MessageEntry struct {
	IsTest bool
	Repeat bool

	// Fields contiene las claves del objeto tal como llegaron. Es nil si la
	// entrada no era un objeto JSON.
	Fields map[string]json.RawMessage
	Raw    json.RawMessage
}

// Field devuelve el valor crudo de una clave y si estaba presente.
func (m MessageEntry) Field(key string) (json.RawMessage, bool) {
	v, ok := m.Fields[key]
	return v, ok
}

// StringField decodifica una clave como string. Devuelve "" si no existe o no es string.
func (m MessageEntry) StringField(key string) string {
	raw, ok := m.Fields[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
