package authkit

import (
	"errors"

	"github.com/vantagecms/authkit/broadcast"
	"github.com/vantagecms/authkit/internal/schedule"
	"github.com/vantagecms/authkit/store"
	"github.com/vantagecms/authkit/token"
)

// Builder defines a public type used by authkit APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config

	backend   Backend
	store     store.Store
	caster    broadcast.Broadcaster
	codec     token.Codec
	eventSink EventSink

	built bool
}

// New describes the new operation and its observable behavior.
//
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig does not mutate shared global state beyond the builder and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithBackend describes the withbackend operation and its observable behavior.
//
// WithBackend does not mutate shared global state beyond the builder and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithBackend(backend Backend) *Builder {
	b.backend = backend
	return b
}

// WithStore describes the withstore operation and its observable behavior.
//
// WithStore does not mutate shared global state beyond the builder and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithStore(s store.Store) *Builder {
	b.store = s
	return b
}

// WithBroadcaster describes the withbroadcaster operation and its observable behavior.
//
// WithBroadcaster does not mutate shared global state beyond the builder and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithBroadcaster(caster broadcast.Broadcaster) *Builder {
	b.caster = caster
	return b
}

// WithTokenCodec describes the withtokencodec operation and its observable behavior.
//
// WithTokenCodec does not mutate shared global state beyond the builder and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithTokenCodec(codec token.Codec) *Builder {
	b.codec = codec
	return b
}

// WithEventSink describes the witheventsink operation and its observable behavior.
//
// WithEventSink does not mutate shared global state beyond the builder and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithEventSink(sink EventSink) *Builder {
	b.eventSink = sink
	b.config.Events.Enabled = true
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled does not mutate shared global state beyond the builder and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
//
// WithLatencyHistograms does not mutate shared global state beyond the builder and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
// Build does not mutate shared global state beyond the builder and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) Build() (*Manager, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.backend == nil {
		return nil, errors.New("backend required")
	}

	sessionStore := b.store
	if sessionStore == nil {
		sessionStore = store.NewMemory()
	}

	codec := b.codec
	if codec == nil {
		codec = token.NewJWTCodec()
	}

	m := &Manager{
		config:  cfg,
		backend: b.backend,
		store:   sessionStore,
		caster:  b.caster,
		codec:   codec,
		status:  StatusBootstrapping,
	}
	m.scheduler = schedule.New(
		codec,
		cfg.Refresh.Skew,
		cfg.Refresh.Floor,
		cfg.Refresh.UnknownExpiryFallback,
	)
	m.metrics = NewMetrics(cfg.Metrics)
	m.events = newEventDispatcher(cfg.Events, b.eventSink)

	if b.caster != nil {
		b.caster.Subscribe(m.handleBroadcast)
	}

	b.built = true

	return m, nil
}
