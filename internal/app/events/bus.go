package events

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

const (
	TopicStreamlabs      = "STREAMLABS"
	TopicClassified      = "STREAMLABS_CLASSIFIED"
	TopicSettingsUpdated = "STREAMLABSSOCKETMIRROR_UPDATE_SETTINGS"

	defaultBufferSize = 128
)

var ErrBusClosed = errors.New("events: bus closed")

// Message es lo que recibe cada suscriptor.
type Message struct {
	Topic   string
	Payload []byte
}

// Bus es el bus local en proceso. Publish nunca bloquea: si el buffer de un
// suscriptor está lleno el mensaje se descarta para ese suscriptor.
type Bus struct {
	logger *zap.Logger

	mu        sync.RWMutex
	subs      map[string]map[int]chan Message
	nextSubID int
	closed    bool

	dropMu     sync.Mutex
	dropCounts map[string]uint64
}

func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		logger:     logger.Named("bus"),
		subs:       make(map[string]map[int]chan Message),
		dropCounts: make(map[string]uint64),
	}
}

// Publish cumple con domain.MirrorPublisher.
func (b *Bus) Publish(_ context.Context, topic string, payload []byte) error {
	if topic == "" {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}

	// Los envíos no bloquean, así que se hacen bajo el lock de lectura para que
	// Close/unsubscribe no cierren un canal en medio de un envío.
	msg := Message{Topic: topic, Payload: payload}
	for _, ch := range b.subs[topic] {
		select {
		case ch <- msg:
		default:
			b.recordDrop(topic)
		}
	}
	return nil
}

func (b *Bus) Subscribe(topic string) (<-chan Message, func()) {
	ch := make(chan Message, defaultBufferSize)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]chan Message)
	}
	id := b.nextSubID
	b.nextSubID++
	b.subs[topic][id] = ch
	b.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			subs, ok := b.subs[topic]
			if !ok {
				return
			}
			if _, ok := subs[id]; !ok {
				return
			}
			delete(subs, id)
			if len(subs) == 0 {
				delete(b.subs, topic)
			}
			close(ch)
		})
	}

	return ch, unsubscribe
}

// Close cierra todas las suscripciones. Publicar después devuelve ErrBusClosed.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for topic, subs := range b.subs {
		for _, ch := range subs {
			close(ch)
		}
		delete(b.subs, topic)
	}
}

func (b *Bus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

func (b *Bus) Drops(topic string) uint64 {
	b.dropMu.Lock()
	defer b.dropMu.Unlock()
	return b.dropCounts[topic]
}

func (b *Bus) recordDrop(topic string) {
	b.dropMu.Lock()
	defer b.dropMu.Unlock()
	b.dropCounts[topic]++
	if b.dropCounts[topic]%100 == 1 {
		b.logger.Warn("dropping messages", zap.String("topic", topic), zap.Uint64("total_drops", b.dropCounts[topic]))
	}
}
