package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/tacc-cloud/abaco/internal/app/authz"
	"github.com/tacc-cloud/abaco/internal/app/channel"
	core "github.com/tacc-cloud/abaco/internal/app/core/service"
	"github.com/tacc-cloud/abaco/internal/app/domain/actor"
	"github.com/tacc-cloud/abaco/internal/app/envelope"
	"github.com/tacc-cloud/abaco/internal/app/services/actors"
	"github.com/tacc-cloud/abaco/internal/app/services/workers"
	"github.com/tacc-cloud/abaco/internal/app/storage"
	"github.com/tacc-cloud/abaco/internal/app/system"
	"github.com/tacc-cloud/abaco/pkg/logger"

	"github.com/go-redis/redis/v8"
)

// RuntimeConfig captures environment-dependent wiring that was previously
// sourced directly from OS variables. It allows callers to supply explicit
// configuration when embedding the application or running tests.
type RuntimeConfig struct {
	WebCase         string // "snake" or "camel" (spec.md §4.7, §6)
	ChannelBackend  string // "memory" or "redis"
	RedisURL        string
	RedisPrefix     string
	WorkerSweepCron string // robfig/cron/v3 schedule for the convergence sweep
	DisableSweep    bool
}

// Option customises the application runtime.
type Option func(*builderConfig)

// Environment exposes a simple lookup mechanism which callers can implement
// to inject custom environment sources (for example when testing).
type Environment interface {
	Lookup(key string) string
}

type builderConfig struct {
	environment    Environment
	runtime        RuntimeConfig
	runtimeDefined bool
}

type runtimeSettings struct {
	keyCase        envelope.KeyCase
	channelBackend string
	redisURL       string
	redisPrefix    string
	sweepCron      string
	sweepDisabled  bool
}

// WithRuntimeConfig overrides the runtime configuration used when wiring
// services. When omitted, environment variables are consulted.
func WithRuntimeConfig(cfg RuntimeConfig) Option {
	return func(b *builderConfig) {
		b.runtime = cfg
		b.runtimeDefined = true
	}
}

// WithEnvironment provides a custom environment lookup used when no explicit
// runtime configuration was supplied. Passing nil retains the default.
func WithEnvironment(env Environment) Option {
	return func(b *builderConfig) {
		if env != nil {
			b.environment = env
		}
	}
}

// Application ties the actor-platform services together and manages their
// lifecycle: the store-backed actors.Service (C6, wiring C5), its channel
// factory (C2), its authorizer (C3), and the periodic worker sweep.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Actors   *actors.Service
	Authz    *authz.Authorizer
	Channels channel.Factory
	Stores   storage.Stores

	descriptors []core.Descriptor
}

// New builds a fully initialised application over the given stores.
func New(stores storage.Stores, log *logger.Logger, opts ...Option) (*Application, error) {
	options := resolveBuilderOptions(opts...)
	if log == nil {
		log = logger.NewDefault("app")
	}

	stores = storage.Normalize(stores)
	manager := system.NewManager(log)

	chans, err := buildChannelFactory(options, log)
	if err != nil {
		return nil, fmt.Errorf("build channel factory: %w", err)
	}

	az := authz.New(stores.Permissions)
	actorsService := actors.New(stores, chans, az, log, options.keyCase)

	if !options.sweepDisabled {
		sweeper, err := newSweeper(stores, actorsService, options.sweepCron, log)
		if err != nil {
			log.WithError(err).Warn("worker sweep disabled: store does not support ListAll")
		} else {
			manager.Register(sweeper)
		}
	}

	descriptors := manager.Descriptors()

	return &Application{
		manager:     manager,
		log:         log,
		Actors:      actorsService,
		Authz:       az,
		Channels:    chans,
		Stores:      stores,
		descriptors: descriptors,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) {
	a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}

// Descriptors returns advertised service descriptors for orchestration/CLI
// introspection.
func (a *Application) Descriptors() []core.Descriptor {
	out := make([]core.Descriptor, len(a.descriptors))
	copy(out, a.descriptors)
	return out
}

func buildChannelFactory(rt runtimeSettings, log *logger.Logger) (channel.Factory, error) {
	switch rt.channelBackend {
	case "redis":
		if rt.redisURL == "" {
			return nil, fmt.Errorf("CHANNEL_REDIS_URL is required when CHANNEL_BACKEND=redis")
		}
		opts, err := redis.ParseURL(rt.redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		return channel.NewRedisFactory(client, rt.redisPrefix), nil
	default:
		log.Info("using in-memory channel factory; messages do not survive a process restart")
		return channel.NewMemoryFactory(), nil
	}
}

func resolveBuilderOptions(opts ...Option) runtimeSettings {
	cfg := builderConfig{environment: osEnvironment{}}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.environment == nil {
		cfg.environment = osEnvironment{}
	}
	runtimeCfg := cfg.runtime
	if !cfg.runtimeDefined {
		runtimeCfg = runtimeConfigFromEnv(cfg.environment)
	}
	return normalizeRuntimeConfig(runtimeCfg)
}

func runtimeConfigFromEnv(env Environment) RuntimeConfig {
	if env == nil {
		env = osEnvironment{}
	}
	return RuntimeConfig{
		WebCase:         env.Lookup("WEB_CASE"),
		ChannelBackend:  env.Lookup("CHANNEL_BACKEND"),
		RedisURL:        env.Lookup("CHANNEL_REDIS_URL"),
		RedisPrefix:     env.Lookup("CHANNEL_REDIS_PREFIX"),
		WorkerSweepCron: env.Lookup("WORKER_SWEEP_CRON"),
		DisableSweep:    parseBool(env.Lookup("WORKER_SWEEP_DISABLED")),
	}
}

func normalizeRuntimeConfig(cfg RuntimeConfig) runtimeSettings {
	keyCase := envelope.CaseSnake
	if strings.EqualFold(strings.TrimSpace(cfg.WebCase), "camel") {
		keyCase = envelope.CaseCamel
	}
	backend := strings.ToLower(strings.TrimSpace(cfg.ChannelBackend))
	if backend == "" {
		backend = "memory"
	}
	sweepCron := strings.TrimSpace(cfg.WorkerSweepCron)
	if sweepCron == "" {
		sweepCron = "*/1 * * * *"
	}
	return runtimeSettings{
		keyCase:        keyCase,
		channelBackend: backend,
		redisURL:       strings.TrimSpace(cfg.RedisURL),
		redisPrefix:    strings.TrimSpace(cfg.RedisPrefix),
		sweepCron:      sweepCron,
		sweepDisabled:  cfg.DisableSweep,
	}
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

type osEnvironment struct{}

func (osEnvironment) Lookup(key string) string {
	return os.Getenv(key)
}

// newSweeper builds the worker-population sweep service (SPEC_FULL.md §B,
// robfig/cron/v3) over whichever store exposes the cross-tenant ListAll
// capability; both the in-memory and Postgres ActorStore implementations do.
func newSweeper(stores storage.Stores, actorsService *actors.Service, schedule string, log *logger.Logger) (*workers.Sweeper, error) {
	lister, ok := stores.Actors.(interface {
		ListAll(ctx context.Context) ([]*actor.Actor, error)
	})
	if !ok {
		return nil, fmt.Errorf("actor store does not support ListAll")
	}
	return workers.New(lister, actorsService, schedule, log), nil
}
