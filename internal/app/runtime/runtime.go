package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"slMirror/internal/app/events"
	"slMirror/internal/domain"
	kafkabroker "slMirror/internal/infrastructure/broker/kafka"
	redisbroker "slMirror/internal/infrastructure/broker/redis"
	"slMirror/internal/infrastructure/config"
	"slMirror/internal/infrastructure/logging"
	"slMirror/internal/infrastructure/metrics"
	sqlitestorage "slMirror/internal/infrastructure/persistence/sqlite"
	"slMirror/internal/infrastructure/platform/streamlabs"
	twitchinfra "slMirror/internal/infrastructure/platform/twitch"
	ws "slMirror/internal/interface/api/ws"
	"slMirror/internal/interface/outs"
	"slMirror/internal/usecase/mirror"
	"slMirror/internal/usecase/notifications"
	"slMirror/internal/usecase/userid"
)

type Options struct {
	// Console recibe la salida de consola del logger. Nil usa stderr.
	Console io.Writer
}

type Runtime struct {
	ctx      context.Context
	cancel   context.CancelFunc
	cfg      *config.Config
	logger   *zap.Logger
	closeLog func() error
	debugOn  atomic.Bool

	settings  *config.SettingsStore
	journal   *sqlitestorage.Journal
	bus       *events.Bus
	mirrorOut *outs.MultiPublisher
	sinks     *outs.MultiSink
	closers   []io.Closer
	pipeline  *mirror.Pipeline
	users     *twitchinfra.UserService
	resolver  *userid.Resolver
	wsServer  *ws.Server
	wg        sync.WaitGroup
	started   bool

	slSync   sync.Mutex
	slMu     sync.Mutex
	slCancel context.CancelFunc
	slDone   chan struct{}
	slToken  string
}

func Start(ctx context.Context, opts Options) (*Runtime, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	run := &Runtime{cfg: cfg}

	logger, closeLog, err := logging.New(logging.Options{
		Dir:         cfg.Log.Dir,
		Level:       logging.ParseLevel(cfg.Log.Level),
		DebugToggle: &run.debugOn,
		Console:     opts.Console,
	})
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	run.logger = logger
	run.closeLog = closeLog

	settings, err := config.LoadSettings(cfg.SettingsPath, cfg.UIConfigPath, logger)
	if err != nil {
		_ = closeLog()
		return nil, fmt.Errorf("settings: %w", err)
	}
	run.settings = settings
	snapshot := settings.Snapshot()
	run.debugOn.Store(snapshot.DebugMode)

	journal, err := sqlitestorage.NewJournal(cfg.DatabasePath)
	if err != nil {
		_ = closeLog()
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	run.journal = journal

	runtimeCtx, cancel := context.WithCancel(ctx)
	run.ctx = runtimeCtx
	run.cancel = cancel

	run.bus = events.NewBus(logger)
	run.mirrorOut, run.closers = newMirrorOutputs(runtimeCtx, cfg, run.bus, logger)

	run.sinks = outs.NewMultiSink()
	run.sinks.Register("log", notifications.NewEventLogger(logger))
	run.sinks.Register("journal", journal)
	run.sinks.Register("bus", events.NewClassifiedPublisher(run.bus))

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	run.pipeline = mirror.NewPipeline(mirror.Options{
		Logger:   logger,
		Settings: settings,
		Mirror:   run.mirrorOut,
		Sink:     run.sinks,
		Recorder: metrics.New(registry),
	})

	users, err := twitchinfra.NewUserService(twitchinfra.Options{
		ClientID:        snapshot.TwitchClientID,
		UserAccessToken: snapshot.TwitchToken,
	})
	if err != nil {
		logger.Warn("twitch: user service disabled", zap.Error(err))
		users, _ = twitchinfra.NewUserService(twitchinfra.Options{})
	}
	run.users = users
	run.resolver = userid.NewResolver(users, settings, userid.NewCache(userid.DefaultCacheSize), logger)

	run.wsServer = ws.NewServer(ws.Config{
		Addr:          cfg.HTTPAddr,
		Logger:        logger,
		Settings:      settings,
		Users:         run.resolver,
		Notifications: journal,
		Metrics:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})

	run.wg.Add(2)
	go func() {
		defer run.wg.Done()
		if err := run.wsServer.Start(runtimeCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("ws server error", zap.Error(err))
		}
	}()
	go func() {
		defer run.wg.Done()
		run.wsServer.Forward(runtimeCtx, run.bus,
			events.TopicStreamlabs,
			events.TopicClassified,
			events.TopicSettingsUpdated,
		)
	}()

	settings.RegisterHook(run.handleSettingsUpdate)
	run.publishSettings(snapshot)
	run.syncStreamlabsClient()

	run.started = true
	logger.Info("Streamlabs socket mirror started", zap.String("addr", cfg.HTTPAddr))
	return run, nil
}

// newMirrorOutputs arma el fan-out del evento espejado: siempre el bus local,
// y Redis/Kafka cuando están configurados. Un broker que no responde se
// omite con un warning.
func newMirrorOutputs(ctx context.Context, cfg *config.Config, bus *events.Bus, logger *zap.Logger) (*outs.MultiPublisher, []io.Closer) {
	out := outs.NewMultiPublisher()
	out.Register("bus", bus)

	var closers []io.Closer

	if cfg.Redis.Addr != "" {
		client, err := redisbroker.NewClient(ctx, redisbroker.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			logger.Warn("redis mirror disabled", zap.Error(err))
		} else {
			pub := redisbroker.NewPublisher(client, cfg.Redis.ChannelPrefix)
			out.Register("redis", pub)
			closers = append(closers, pub)
		}
	}

	if brokers := cfg.Kafka.BrokerList(); len(brokers) > 0 {
		pub, err := kafkabroker.NewPublisher(kafkabroker.Config{Brokers: brokers, Topic: cfg.Kafka.Topic})
		if err != nil {
			logger.Warn("kafka mirror disabled", zap.Error(err))
		} else {
			out.Register("kafka", pub)
			closers = append(closers, pub)
		}
	}

	logger.Debug("mirror outputs", zap.Strings("outputs", out.Names()))
	return out, closers
}

func (r *Runtime) Stop() error {
	if r == nil || !r.started {
		return nil
	}
	r.cancel()
	r.stopStreamlabsClient()
	r.wg.Wait()
	r.bus.Close()

	var errs []error
	for _, c := range r.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := r.journal.Close(); err != nil {
		errs = append(errs, err)
	}
	r.logger.Info("Streamlabs socket mirror stopped")
	if err := r.closeLog(); err != nil {
		errs = append(errs, err)
	}
	r.started = false
	return errors.Join(errs...)
}

func (r *Runtime) Bus() *events.Bus {
	if r == nil {
		return nil
	}
	return r.bus
}

func (r *Runtime) Settings() *config.SettingsStore {
	if r == nil {
		return nil
	}
	return r.settings
}

func (r *Runtime) Config() *config.Config {
	if r == nil {
		return nil
	}
	return r.cfg
}

func (r *Runtime) NotificationRepo() domain.NotificationRepository {
	if r == nil {
		return nil
	}
	return r.journal
}

// HandleEvent entrega un payload crudo al pipeline, igual que lo haría el
// socket de Streamlabs.
func (r *Runtime) HandleEvent(ctx context.Context, payload []byte) {
	if r == nil || r.pipeline == nil {
		return
	}
	r.pipeline.HandleEvent(ctx, payload)
}

func (r *Runtime) handleSettingsUpdate(s domain.Settings) {
	r.debugOn.Store(s.DebugMode)
	if err := r.users.UpdateCredentials(s.TwitchClientID, s.TwitchToken); err != nil {
		r.logger.Warn("twitch: credentials not applied", zap.Error(err))
	}
	r.publishSettings(s)
	r.syncStreamlabsClient()
}

func (r *Runtime) publishSettings(s domain.Settings) {
	payload, err := events.SettingsPayload(s)
	if err != nil {
		r.logger.Error("settings payload", zap.Error(err))
		return
	}
	if err := r.mirrorOut.Publish(r.ctx, events.TopicSettingsUpdated, payload); err != nil {
		r.logger.Warn("settings broadcast failed", zap.Error(err))
	}
}

// syncStreamlabsClient reinicia el cliente del socket cuando cambia el token.
func (r *Runtime) syncStreamlabsClient() {
	r.slSync.Lock()
	defer r.slSync.Unlock()

	token := r.settings.Snapshot().SocketToken

	r.slMu.Lock()
	running := r.slCancel != nil
	same := token == r.slToken
	r.slMu.Unlock()

	if running && same {
		return
	}
	if running {
		r.stopStreamlabsClient()
	}
	if token == "" {
		r.logger.Warn("Streamlabs socket token not configured")
		return
	}
	r.startStreamlabsClient(token)
}

func (r *Runtime) startStreamlabsClient(token string) {
	client := streamlabs.NewClient(streamlabs.Config{
		URL:   r.cfg.SocketURL,
		Token: func() string { return token },
	}, r.pipeline.HandleEvent, r.logger)

	ctx, cancel := context.WithCancel(r.ctx)
	done := make(chan struct{})

	r.slMu.Lock()
	r.slCancel = cancel
	r.slDone = done
	r.slToken = token
	r.slMu.Unlock()

	r.logger.Debug("streamlabs: starting socket client")
	go func() {
		defer close(done)
		if err := client.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error("streamlabs: client stopped", zap.Error(err))
		}
	}()
}

func (r *Runtime) stopStreamlabsClient() {
	r.slMu.Lock()
	cancel := r.slCancel
	done := r.slDone
	r.slCancel = nil
	r.slDone = nil
	r.slToken = ""
	r.slMu.Unlock()

	if cancel != nil {
		r.logger.Debug("streamlabs: stopping socket client")
		cancel()
	}
	if done != nil {
		<-done
	}
}
