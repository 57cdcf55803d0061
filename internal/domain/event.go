package domain

import "encoding/json"

const (
	DomainStreamlabs    = "streamlabs"
	DomainTwitchAccount = "twitch_account"
)

// CanonicalEvent es la forma normalizada de un evento del socket de Streamlabs.
// Messages siempre es una secuencia, aunque el payload trajera un solo objeto.
type CanonicalEvent struct {
	ID              string
	RecipientDomain string
	Type            string
	Messages        []MessageEntry

	// DomainDefaulted indica que el payload no traía "for".
	DomainDefaulted bool

	// Raw es el payload original sin modificar, usado para el espejo.
	Raw json.RawMessage
}
