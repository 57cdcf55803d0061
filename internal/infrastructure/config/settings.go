package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"slMirror/internal/domain"
)

var utf8BOM = []byte("\xef\xbb\xbf")

// SettingsHook se invoca después de cada recarga con la nueva instantánea.
type SettingsHook func(s domain.Settings)

// SettingsStore guarda la instantánea vigente. Las recargas reemplazan el
// puntero completo; nunca se muta una instantánea publicada.
type SettingsStore struct {
	logger   *zap.Logger
	defaults domain.Settings
	current  atomic.Pointer[domain.Settings]

	hooksMu sync.RWMutex
	hooks   []SettingsHook
}

// LoadSettings lee los defaults desde uiConfigPath y los combina con el archivo
// de settings. Si el archivo de settings falta o está roto se usan los defaults.
func LoadSettings(settingsPath, uiConfigPath string, logger *zap.Logger) (*SettingsStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("settings")

	defaults, err := loadDefaults(uiConfigPath, logger)
	if err != nil {
		return nil, err
	}

	store := &SettingsStore{
		logger:   logger,
		defaults: defaults,
	}

	initial := defaults
	if data, err := os.ReadFile(settingsPath); err != nil {
		logger.Debug("settings file not readable, using defaults", zap.String("path", settingsPath), zap.Error(err))
	} else if merged, err := merge(defaults, data); err != nil {
		logger.Warn("settings file invalid, using defaults", zap.String("path", settingsPath), zap.Error(err))
	} else {
		initial = merged
	}
	store.current.Store(&initial)

	return store, nil
}

// NewSettingsStore crea un store en memoria con los defaults dados.
func NewSettingsStore(defaults domain.Settings, logger *zap.Logger) *SettingsStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	store := &SettingsStore{logger: logger.Named("settings"), defaults: defaults}
	initial := defaults
	store.current.Store(&initial)
	return store
}

// Snapshot devuelve una copia de la instantánea vigente.
func (s *SettingsStore) Snapshot() domain.Settings {
	return *s.current.Load()
}

// Reload reemplaza la instantánea con el documento JSON combinado contra los
// defaults (no contra la instantánea anterior). Un JSON inválido no cambia nada.
func (s *SettingsStore) Reload(data []byte) error {
	next, err := merge(s.defaults, data)
	if err != nil {
		return err
	}
	s.current.Store(&next)
	s.logger.Debug("Settings reloaded", zap.Any("settings", next.Redacted()))

	s.hooksMu.RLock()
	hooks := append([]SettingsHook(nil), s.hooks...)
	s.hooksMu.RUnlock()
	for _, h := range hooks {
		h(next)
	}
	return nil
}

func (s *SettingsStore) RegisterHook(h SettingsHook) {
	if h == nil {
		return
	}
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	s.hooks = append(s.hooks, h)
}

func merge(base domain.Settings, data []byte) (domain.Settings, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if len(bytes.TrimSpace(data)) == 0 {
		return base, nil
	}
	out := base
	if err := json.Unmarshal(data, &out); err != nil {
		return domain.Settings{}, fmt.Errorf("settings: decode: %w", err)
	}
	return out, nil
}

type uiField struct {
	Value json.RawMessage `json:"value"`
}

// loadDefaults lee el esquema de UI ({"Clave": {"value": ...}}) y lo aplica
// sobre los defaults compilados. Si el archivo no existe se usan los compilados.
func loadDefaults(path string, logger *zap.Logger) (domain.Settings, error) {
	defaults := domain.Settings{}
	if path == "" {
		return defaults, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaults, nil
		}
		return defaults, fmt.Errorf("settings: read ui config: %w", err)
	}

	var schema map[string]json.RawMessage
	if err := json.Unmarshal(bytes.TrimPrefix(data, utf8BOM), &schema); err != nil {
		return defaults, fmt.Errorf("settings: decode ui config: %w", err)
	}

	values := make(map[string]json.RawMessage, len(schema))
	for key, raw := range schema {
		var field uiField
		if err := json.Unmarshal(raw, &field); err != nil || field.Value == nil {
			if key != "output_file" {
				logger.Debug("could not find value for key in ui config", zap.String("key", key))
			}
			continue
		}
		values[key] = field.Value
	}

	encoded, err := json.Marshal(values)
	if err != nil {
		return defaults, fmt.Errorf("settings: encode defaults: %w", err)
	}
	if err := json.Unmarshal(encoded, &defaults); err != nil {
		return defaults, fmt.Errorf("settings: apply defaults: %w", err)
	}
	return defaults, nil
}
