package mirror

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"slMirror/internal/domain"
)

// TopicStreamlabs es el tópico del bus local donde se reenvía el evento original.
const TopicStreamlabs = "STREAMLABS"

// Recorder recibe los resultados del pipeline para métricas.
type Recorder interface {
	EventReceived()
	EventMalformed()
	EventMirrored()
	EntrySuppressed(reason string)
	EntryClassified(recipientDomain string, classification domain.Classification)
	SinkError(sink string)
}

type Options struct {
	Logger   *zap.Logger
	Settings domain.SettingsProvider
	Mirror   domain.MirrorPublisher
	Sink     domain.ClassifiedEventSink
	Recorder Recorder
}

// Pipeline procesa un evento a la vez, de forma síncrona, en el orden en que
// el transporte los entrega.
type Pipeline struct {
	logger   *zap.Logger
	settings domain.SettingsProvider
	mirror   domain.MirrorPublisher
	sink     domain.ClassifiedEventSink
	recorder Recorder
	newID    func() string
}

func NewPipeline(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Pipeline{
		logger:   logger.Named("pipeline"),
		settings: opts.Settings,
		mirror:   opts.Mirror,
		sink:     opts.Sink,
		recorder: recorder,
		newID:    uuid.NewString,
	}
}

// HandleEvent es el callback del transporte. Nunca devuelve error: los fallos
// se registran y el evento se descarta.
func (p *Pipeline) HandleEvent(ctx context.Context, raw []byte) {
	p.recorder.EventReceived()

	event, err := Normalize(raw)
	if err != nil {
		p.recorder.EventMalformed()
		p.logger.Debug("No message in event", zap.Error(err), zap.ByteString("event", raw))
		return
	}
	event.ID = p.newID()

	if event.DomainDefaulted {
		p.logger.Debug("No for in event", zap.String("event_id", event.ID), zap.ByteString("event", event.Raw))
	}

	var settings domain.Settings
	if p.settings != nil {
		settings = p.settings.Snapshot()
	}

	p.Dispatch(ctx, event, settings)
}

// Dispatch espeja el evento (si MirrorAll) exactamente una vez y luego emite
// cada entrada no suprimida y reconocida al sink informativo.
func (p *Pipeline) Dispatch(ctx context.Context, event domain.CanonicalEvent, settings domain.Settings) {
	logger := p.logger.With(zap.String("event_id", event.ID))

	if settings.MirrorAll {
		p.publishMirror(ctx, logger, event)
	}

	for entry := range Expand(event) {
		if reason := SuppressionReason(entry, settings); reason != SuppressNone {
			p.recorder.EntrySuppressed(string(reason))
			switch reason {
			case SuppressTest:
				logger.Warn("Received test event, resend disabled in configuration")
			case SuppressRepeat:
				logger.Warn("Received repeated event, resend disabled in configuration")
			}
			logger.Debug("suppressed event", zap.ByteString("event", event.Raw))
			continue
		}

		classification := Classify(event.RecipientDomain, event.Type)
		p.recorder.EntryClassified(event.RecipientDomain, classification)
		if classification == domain.ClassificationUnrecognized {
			logger.Warn("Unrecognised event",
				zap.String("for", event.RecipientDomain),
				zap.String("type", event.Type),
				zap.ByteString("event", event.Raw),
			)
			continue
		}

		if p.sink == nil {
			continue
		}
		msg := domain.ClassifiedMessage{
			EventID:         event.ID,
			RecipientDomain: event.RecipientDomain,
			Type:            event.Type,
			Classification:  classification,
			Entry:           entry,
		}
		if err := p.sink.HandleClassified(ctx, msg); err != nil {
			p.recorder.SinkError("classified")
			logger.Warn("classified sink error", zap.String("classification", string(classification)), zap.Error(err))
		}
	}
}

func (p *Pipeline) publishMirror(ctx context.Context, logger *zap.Logger, event domain.CanonicalEvent) {
	if p.mirror == nil {
		return
	}
	logger.Debug("Send original event to Local Socket")
	if err := p.mirror.Publish(ctx, TopicStreamlabs, event.Raw); err != nil {
		p.recorder.SinkError("mirror")
		logger.Warn("mirror publish error", zap.Error(err))
		return
	}
	p.recorder.EventMirrored()
}

type nopRecorder struct{}

func (nopRecorder) EventReceived()                                {}
func (nopRecorder) EventMalformed()                               {}
func (nopRecorder) EventMirrored()                                {}
func (nopRecorder) EntrySuppressed(string)                        {}
func (nopRecorder) EntryClassified(string, domain.Classification) {}
func (nopRecorder) SinkError(string)                              {}
