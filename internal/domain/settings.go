package domain

// Settings es la instantánea de la configuración del operador. Las claves JSON
// coinciden con el archivo de settings del chatbot.
type Settings struct {
	MirrorAll  bool `json:"MirrorAll"`
	TestMode   bool `json:"SLTestMode"`
	RepeatMode bool `json:"SLRepeat"`
	DebugMode  bool `json:"DebugMode"`

	SocketToken    string `json:"SLSocketToken"`
	StreamerName   string `json:"StreamerName"`
	TwitchClientID string `json:"JTVClientID"`
	TwitchToken    string `json:"JTVToken"`
}

// RedactedMask reemplaza los secretos en Redacted.
const RedactedMask = "***"

// Redacted devuelve una copia sin secretos, apta para logs y para el bus local.
func (s Settings) Redacted() Settings {
	if s.SocketToken != "" {
		s.SocketToken = RedactedMask
	}
	if s.TwitchToken != "" {
		s.TwitchToken = RedactedMask
	}
	return s
}
