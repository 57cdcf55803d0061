package mirror

import "slMirror/internal/domain"

// Suppression es el motivo por el que se descarta una entrada.
type Suppression string

const (
	SuppressNone   Suppression = ""
	SuppressTest   Suppression = "test"
	SuppressRepeat Suppression = "repeat"
)

// SuppressionReason evalúa primero el marcador de test y después el de repetición,
// así una entrada con ambos se descarta una sola vez.
func SuppressionReason(entry domain.MessageEntry, s domain.Settings) Suppression {
	if entry.IsTest && !s.TestMode {
		return SuppressTest
	}
	if entry.Repeat && !s.RepeatMode {
		return SuppressRepeat
	}
	return SuppressNone
}

// ShouldSuppress indica si la entrada debe descartarse según la configuración.
func ShouldSuppress(entry domain.MessageEntry, s domain.Settings) bool {
	return SuppressionReason(entry, s) != SuppressNone
}
