package loginguard

import (
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"loginguard/internal/bus"
	"loginguard/internal/privacy"
	"loginguard/internal/sealer"
	"loginguard/internal/store"
)

// Builder assembles an [Engine]. A Builder is single-use: Build consumes it.
type Builder struct {
	config   Config
	redis    redis.UniversalClient
	provider AuthProvider
	sink     EventSink
	logger   *zap.Logger
	clock    Clock

	built bool
}

// New returns a Builder seeded with defaults.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the durable, cross-context storage tier. Without it the
// engine runs with the session/memory tiers only and change notification
// stays in-process.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithProvider supplies the external authentication provider used by
// [Engine.Login].
func (b *Builder) WithProvider(provider AuthProvider) *Builder {
	b.provider = provider
	return b
}

// WithEventSink supplies the destination for the security event trail.
func (b *Builder) WithEventSink(sink EventSink) *Builder {
	b.sink = sink
	return b
}

// WithLogger supplies the diagnostic logger. Defaults to a no-op logger.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock injects the time source. Defaults to the system clock.
func (b *Builder) WithClock(clock Clock) *Builder {
	b.clock = clock
	return b
}

// WithFileTier enables the session-scoped file tier under dir.
func (b *Builder) WithFileTier(dir string) *Builder {
	b.config.Store.FileTierDir = dir
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithAuditEnabled toggles the security event dispatcher.
func (b *Builder) WithAuditEnabled(enabled bool) *Builder {
	b.config.Audit.Enabled = enabled
	return b
}

// Build validates the configuration and assembles the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	b.built = true

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := b.clock
	if clock == nil {
		clock = systemClock{}
	}

	var boxer store.Boxer
	if len(cfg.Crypto.SealKey) == 32 {
		sl, err := sealer.New(cfg.Crypto.SealKey)
		if err != nil {
			return nil, err
		}
		boxer = sl
	}

	engine := &Engine{
		policy:     cfg.RateLimit,
		cfg:        cfg,
		classifier: NewClassifier(),
		events:     newEventDispatcher(cfg.Audit, b.sink),
		metrics:    NewMetrics(cfg.Metrics),
		provider:   b.provider,
		clock:      clock,
		log:        logger,
		hasher:     privacy.NewHasher(cfg.Crypto.HashKey),
		inflight:   make(map[string]struct{}),
	}

	var changeBus bus.Bus
	if b.redis != nil {
		changeBus = bus.NewRedisBus(b.redis, cfg.Store.KeyPrefix+":changes")
	} else {
		changeBus = bus.NewLocalBus()
	}
	engine.changeBus = changeBus

	var durable store.Tier
	if b.redis != nil {
		durable = store.NewRedisTier(b.redis, cfg.Store.KeyPrefix, 2*cfg.Store.StalenessHorizon)
	}

	var session store.Tier
	if cfg.Store.FileTierDir != "" {
		fileTier, err := store.NewFileTier(cfg.Store.FileTierDir)
		if err != nil {
			// A broken session tier must not block the security function.
			logger.Warn("file tier unavailable, continuing without it", zap.Error(err))
		} else {
			session = fileTier
		}
	}

	engine.store = store.New(store.Options{
		Durable:          durable,
		Session:          session,
		KeyPrefix:        cfg.Store.KeyPrefix,
		StalenessHorizon: cfg.Store.StalenessHorizon,
		Sealer:           boxer,
		Bus:              changeBus,
		Logger:           logger,
		Now:              clock.Now,
		Hooks: store.Hooks{
			OnFallback: func(tier string) {
				engine.metricInc(MetricStorageFallbacks)
				engine.logStorageFallback(tier)
			},
			OnCorrupt: func(tier string) {
				engine.metricInc(MetricCorruptRecords)
			},
			OnSealFailure: func() {
				engine.metricInc(MetricSealFailures)
				engine.logEncryptionFailure()
			},
			OnCleanupRemoved: func(n int) {
				if engine.metrics != nil {
					engine.metrics.Add(MetricCleanupRemoved, uint64(n))
				}
			},
		},
	})

	return engine, nil
}
