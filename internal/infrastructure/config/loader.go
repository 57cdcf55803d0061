package config

import (
	"fmt"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config es la configuración del proceso. Los toggles del operador viven en
// SettingsStore, no aquí.
type Config struct {
	SettingsPath string `env:"SLMIRROR_SETTINGS_FILE" env-default:"Settings.json"`
	UIConfigPath string `env:"SLMIRROR_UI_CONFIG_FILE" env-default:"UI_Config.json"`
	DatabasePath string `env:"SLMIRROR_DB_PATH" env-default:"data/slmirror.db"`
	HTTPAddr     string `env:"SLMIRROR_HTTP_ADDR" env-default:":8080"`
	SocketURL    string `env:"STREAMLABS_SOCKET_URL" env-default:"https://sockets.streamlabs.com"`

	Log   LogConfig
	Redis RedisConfig
	Kafka KafkaConfig
}

type LogConfig struct {
	Dir   string `env:"SLMIRROR_LOG_DIR" env-default:"logs"`
	Level string `env:"SLMIRROR_LOG_LEVEL" env-default:"info"`
}

type RedisConfig struct {
	Addr          string `env:"REDIS_ADDR"`
	Password      string `env:"REDIS_PASSWORD"`
	DB            int    `env:"REDIS_DB" env-default:"0"`
	ChannelPrefix string `env:"REDIS_CHANNEL_PREFIX" env-default:"slmirror:"`
}

type KafkaConfig struct {
	Brokers string `env:"KAFKA_BROKERS"`
	Topic   string `env:"KAFKA_TOPIC" env-default:"streamlabs-events"`
}

// BrokerList separa KAFKA_BROKERS por comas, ignorando entradas vacías.
func (k KafkaConfig) BrokerList() []string {
	var out []string
	for _, b := range strings.Split(k.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}
