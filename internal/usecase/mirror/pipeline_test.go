package mirror

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"slMirror/internal/domain"
)

// --- fakes ---

type staticSettings struct {
	s domain.Settings
}

func (f staticSettings) Snapshot() domain.Settings { return f.s }

type publishCall struct {
	topic   string
	payload string
}

type fakePublisher struct {
	mu    sync.Mutex
	calls []publishCall
	err   error
}

func (f *fakePublisher) Publish(_ context.Context, topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, publishCall{topic: topic, payload: string(payload)})
	return f.err
}

type fakeSink struct {
	got    []domain.ClassifiedMessage
	failOn domain.Classification
}

func (f *fakeSink) HandleClassified(_ context.Context, msg domain.ClassifiedMessage) error {
	f.got = append(f.got, msg)
	if msg.Classification == f.failOn {
		return errors.New("sink down")
	}
	return nil
}

type countingRecorder struct {
	received, malformed, mirrored int
	suppressed                    map[string]int
	classified                    map[domain.Classification]int
	sinkErrors                    map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{
		suppressed: map[string]int{},
		classified: map[domain.Classification]int{},
		sinkErrors: map[string]int{},
	}
}

func (r *countingRecorder) EventReceived()                { r.received++ }
func (r *countingRecorder) EventMalformed()               { r.malformed++ }
func (r *countingRecorder) EventMirrored()                { r.mirrored++ }
func (r *countingRecorder) EntrySuppressed(reason string) { r.suppressed[reason]++ }
func (r *countingRecorder) EntryClassified(_ string, c domain.Classification) {
	r.classified[c]++
}
func (r *countingRecorder) SinkError(sink string) { r.sinkErrors[sink]++ }

type harness struct {
	pipeline *Pipeline
	pub      *fakePublisher
	sink     *fakeSink
	rec      *countingRecorder
	logs     *observer.ObservedLogs
}

func newHarness(settings domain.Settings) *harness {
	core, logs := observer.New(zapcore.DebugLevel)
	h := &harness{
		pub:  &fakePublisher{},
		sink: &fakeSink{},
		rec:  newCountingRecorder(),
		logs: logs,
	}
	h.pipeline = NewPipeline(Options{
		Logger:   zap.New(core),
		Settings: staticSettings{s: settings},
		Mirror:   h.pub,
		Sink:     h.sink,
		Recorder: h.rec,
	})
	h.pipeline.newID = func() string { return "evt-1" }
	return h
}

func (h *harness) warnings() []observer.LoggedEntry {
	return h.logs.FilterLevelExact(zapcore.WarnLevel).All()
}

// --- tests ---

func TestPipeline_MalformedEventInvokesNoSink(t *testing.T) {
	h := newHarness(domain.Settings{MirrorAll: true})

	h.pipeline.HandleEvent(context.Background(), []byte(`{"for":"streamlabs","type":"donation"}`))

	assert.Empty(t, h.pub.calls)
	assert.Empty(t, h.sink.got)
	assert.Equal(t, 1, h.rec.malformed)
	assert.Equal(t, 1, h.logs.FilterMessage("No message in event").Len())
	assert.Equal(t, zapcore.DebugLevel, h.logs.FilterMessage("No message in event").All()[0].Level)
}

func TestPipeline_DonationWithoutMirror(t *testing.T) {
	h := newHarness(domain.Settings{MirrorAll: false})

	h.pipeline.HandleEvent(context.Background(), []byte(`{"for":"streamlabs","type":"donation","message":{"amount":5}}`))

	assert.Empty(t, h.pub.calls)
	require.Len(t, h.sink.got, 1)
	got := h.sink.got[0]
	assert.Equal(t, domain.ClassificationDonation, got.Classification)
	assert.Equal(t, "evt-1", got.EventID)
	assert.Equal(t, "streamlabs", got.RecipientDomain)
	assert.JSONEq(t, `{"amount":5}`, string(got.Entry.Raw))
	assert.Empty(t, h.warnings())
}

func TestPipeline_DefaultDomainMakesBitsUnrecognized(t *testing.T) {
	h := newHarness(domain.Settings{})

	h.pipeline.HandleEvent(context.Background(), []byte(`{"type":"bits","message":[{"amount":100}]}`))

	assert.Empty(t, h.sink.got)
	assert.Equal(t, 1, h.rec.classified[domain.ClassificationUnrecognized])

	warns := h.logs.FilterMessage("Unrecognised event").All()
	require.Len(t, warns, 1)
	assert.Equal(t, zapcore.WarnLevel, warns[0].Level)
	fields := warns[0].ContextMap()
	assert.Equal(t, "streamlabs", fields["for"])
	assert.Equal(t, `{"type":"bits","message":[{"amount":100}]}`, fields["event"])
	assert.Equal(t, 1, h.logs.FilterMessage("No for in event").Len())
}

func TestPipeline_TestEntrySuppressed(t *testing.T) {
	h := newHarness(domain.Settings{TestMode: false})

	h.pipeline.HandleEvent(context.Background(), []byte(`{"for":"twitch_account","type":"follow","message":[{"isTest":true},{"name":"x"}]}`))

	require.Len(t, h.sink.got, 1)
	assert.Equal(t, domain.ClassificationFollow, h.sink.got[0].Classification)
	assert.Equal(t, "x", h.sink.got[0].Entry.StringField("name"))
	assert.Equal(t, 1, h.rec.suppressed["test"])
	assert.Equal(t, 1, h.logs.FilterMessage("Received test event, resend disabled in configuration").Len())
}

func TestPipeline_TestModeEnabledEmitsTestEntry(t *testing.T) {
	h := newHarness(domain.Settings{TestMode: true})

	h.pipeline.HandleEvent(context.Background(), []byte(`{"for":"twitch_account","type":"follow","message":[{"isTest":true},{"name":"x"}]}`))

	assert.Len(t, h.sink.got, 2)
	assert.Empty(t, h.warnings())
}

func TestPipeline_RepeatSuppressedOnlyOnceWithBothMarkers(t *testing.T) {
	h := newHarness(domain.Settings{})

	h.pipeline.HandleEvent(context.Background(), []byte(`{"for":"streamlabs","type":"donation","message":[{"isTest":true,"repeat":true},{"repeat":false}]}`))

	assert.Empty(t, h.sink.got)
	assert.Equal(t, 1, h.rec.suppressed["test"])
	assert.Equal(t, 1, h.rec.suppressed["repeat"])
	assert.Len(t, h.warnings(), 2)
	assert.Equal(t, 1, h.logs.FilterMessage("Received repeated event, resend disabled in configuration").Len())
}

func TestPipeline_MirrorExactlyOncePerEvent(t *testing.T) {
	payloads := []string{
		`{"for":"streamlabs","type":"donation","message":{"amount":5}}`,
		`{"for":"streamlabs","type":"donation","message":[{"a":1},{"a":2},{"a":3}]}`,
		`{"for":"streamlabs","type":"donation","message":[{"isTest":true},{"repeat":1}]}`,
		`{"for":"somewhere","type":"other","message":[]}`,
	}

	for _, p := range payloads {
		h := newHarness(domain.Settings{MirrorAll: true})
		h.pipeline.HandleEvent(context.Background(), []byte(p))

		require.Len(t, h.pub.calls, 1, p)
		assert.Equal(t, TopicStreamlabs, h.pub.calls[0].topic)
		assert.Equal(t, p, h.pub.calls[0].payload)
		assert.Equal(t, 1, h.rec.mirrored)
	}

	for _, p := range payloads {
		h := newHarness(domain.Settings{MirrorAll: false})
		h.pipeline.HandleEvent(context.Background(), []byte(p))
		assert.Empty(t, h.pub.calls, p)
	}
}

func TestPipeline_MirrorFailureDoesNotStopEntries(t *testing.T) {
	h := newHarness(domain.Settings{MirrorAll: true})
	h.pub.err = errors.New("bus closed")

	h.pipeline.HandleEvent(context.Background(), []byte(`{"for":"streamlabs","type":"merch","message":[{"a":1},{"a":2}]}`))

	assert.Len(t, h.sink.got, 2)
	assert.Equal(t, 1, h.rec.sinkErrors["mirror"])
	assert.Equal(t, 0, h.rec.mirrored)
}

func TestPipeline_SinkFailureDoesNotStopRemainingEntries(t *testing.T) {
	h := newHarness(domain.Settings{})
	h.sink.failOn = domain.ClassificationRaid

	h.pipeline.HandleEvent(context.Background(), []byte(`{"for":"twitch_account","type":"raid","message":[{"a":1},{"a":2},{"a":3}]}`))

	assert.Len(t, h.sink.got, 3)
	assert.Equal(t, 3, h.rec.sinkErrors["classified"])
}

func TestPipeline_UsesOneSnapshotPerEvent(t *testing.T) {
	settings := &swappingSettings{values: []domain.Settings{{TestMode: false}, {TestMode: true}}}
	pub := &fakePublisher{}
	sink := &fakeSink{}
	p := NewPipeline(Options{Settings: settings, Mirror: pub, Sink: sink})

	p.HandleEvent(context.Background(), []byte(`{"for":"twitch_account","type":"host","message":[{"isTest":1},{"isTest":1}]}`))
	assert.Empty(t, sink.got)
	assert.Equal(t, 1, settings.calls)

	p.HandleEvent(context.Background(), []byte(`{"for":"twitch_account","type":"host","message":[{"isTest":1},{"isTest":1}]}`))
	assert.Len(t, sink.got, 2)
	assert.Equal(t, 2, settings.calls)
}

func TestPipeline_NilCollaborators(t *testing.T) {
	p := NewPipeline(Options{})
	assert.NotPanics(t, func() {
		p.HandleEvent(context.Background(), []byte(`{"type":"donation","message":{"amount":1}}`))
		p.HandleEvent(context.Background(), []byte(`garbage`))
	})
}

type swappingSettings struct {
	values []domain.Settings
	calls  int
}

func (s *swappingSettings) Snapshot() domain.Settings {
	v := s.values[s.calls%len(s.values)]
	s.calls++
	return v
}
