package mirror

import (
	"iter"

	"slMirror/internal/domain"
)

// Expand recorre las entradas del evento en su orden original. La secuencia
// se puede volver a recorrer y no filtra nada.
func Expand(event domain.CanonicalEvent) iter.Seq[domain.MessageEntry] {
	return func(yield func(domain.MessageEntry) bool) {
		for _, entry := range event.Messages {
			if !yield(entry) {
				return
			}
		}
	}
}
