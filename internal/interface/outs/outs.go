package outs

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"slMirror/internal/domain"
)

// MultiPublisher reparte el evento espejado a todos los publishers registrados
// (bus local, Redis, Kafka...). Un fallo en uno no impide que los demás reciban
// el evento.
type MultiPublisher struct {
	mu         sync.RWMutex
	names      []string
	publishers map[string]domain.MirrorPublisher
}

// NewMultiPublisher crea un MultiPublisher vacío.
func NewMultiPublisher() *MultiPublisher {
	return &MultiPublisher{
		publishers: make(map[string]domain.MirrorPublisher),
	}
}

// Register asocia un nombre con un publisher. Registrar de nuevo el mismo
// nombre reemplaza el anterior.
func (m *MultiPublisher) Register(name string, pub domain.MirrorPublisher) {
	if m == nil || pub == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.publishers[name]; !ok {
		m.names = append(m.names, name)
	}
	m.publishers[name] = pub
}

func (m *MultiPublisher) Unregister(name string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.publishers, name)
	m.names = slices.DeleteFunc(m.names, func(n string) bool { return n == name })
}

func (m *MultiPublisher) Names() []string {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.names)
}

// Publish cumple con domain.MirrorPublisher.
func (m *MultiPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	if m == nil {
		return fmt.Errorf("no hay multi publisher configurado")
	}
	m.mu.RLock()
	names := slices.Clone(m.names)
	pubs := make([]domain.MirrorPublisher, len(names))
	for i, n := range names {
		pubs[i] = m.publishers[n]
	}
	m.mu.RUnlock()

	var errs []error
	for i, pub := range pubs {
		if err := pub.Publish(ctx, topic, payload); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", names[i], err))
		}
	}
	return errors.Join(errs...)
}

// MultiSink hace lo mismo para los sinks de entradas clasificadas.
type MultiSink struct {
	mu    sync.RWMutex
	names []string
	sinks map[string]domain.ClassifiedEventSink
}

func NewMultiSink() *MultiSink {
	return &MultiSink{
		sinks: make(map[string]domain.ClassifiedEventSink),
	}
}

func (m *MultiSink) Register(name string, sink domain.ClassifiedEventSink) {
	if m == nil || sink == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sinks[name]; !ok {
		m.names = append(m.names, name)
	}
	m.sinks[name] = sink
}

func (m *MultiSink) HandleClassified(ctx context.Context, msg domain.ClassifiedMessage) error {
	if m == nil {
		return fmt.Errorf("no hay multi sink configurado")
	}
	m.mu.RLock()
	names := slices.Clone(m.names)
	sinks := make([]domain.ClassifiedEventSink, len(names))
	for i, n := range names {
		sinks[i] = m.sinks[n]
	}
	m.mu.RUnlock()

	var errs []error
	for i, sink := range sinks {
		if err := sink.HandleClassified(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", names[i], err))
		}
	}
	return errors.Join(errs...)
}
