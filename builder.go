package goAccounts

import (
	"errors"

	"github.com/MrEthical07/goAccounts/hooks"
	internalaudit "github.com/MrEthical07/goAccounts/internal/audit"
	"github.com/MrEthical07/goAccounts/internal/rate"
	"github.com/MrEthical07/goAccounts/internal/tasks"
	"github.com/MrEthical07/goAccounts/password"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an [Engine]. Configure it during initialization, call
// Build once, and discard it.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	log    *zap.Logger

	settings SettingsSource
	users    UserStore
	roles    RoleStore
	tokens   ResumeTokenStore
	mailer   Mailer
	apps     AppEventTrigger
	limiter  LoginLimiter
	channels ChannelJoiner
	avatars  AvatarService
	rooms    RoomStore
	access   RoomAccess
	hasher   password.Hasher

	auditSink AuditSink

	beforeCreate        []hooks.Handler[CreateInput]
	onCreate            []hooks.Handler[CreateInput]
	afterCreate         []hooks.Handler[User]
	beforeValidateLogin []hooks.Handler[LoginAttempt]
	onValidateLogin     []hooks.Handler[LoginAttempt]
	afterValidateLogin  []hooks.Handler[LoginAttempt]

	built bool
}

// New returns a Builder holding DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the engine configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis enables the Redis failed-login limiter when
// Config.LoginThrottle.Enabled is set and no LoginLimiter was supplied.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithLogger sets the logger used for best-effort failures.
func (b *Builder) WithLogger(log *zap.Logger) *Builder {
	b.log = log
	return b
}

// WithSettings sets the settings source. Required.
func (b *Builder) WithSettings(s SettingsSource) *Builder {
	b.settings = s
	return b
}

// WithUserStore sets the user store. Required.
func (b *Builder) WithUserStore(s UserStore) *Builder {
	b.users = s
	return b
}

// WithRoleStore sets the role store. Required.
func (b *Builder) WithRoleStore(s RoleStore) *Builder {
	b.roles = s
	return b
}

// WithResumeTokenStore enables resume-token pruning and the login drivers.
func (b *Builder) WithResumeTokenStore(s ResumeTokenStore) *Builder {
	b.tokens = s
	return b
}

func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

func (b *Builder) WithAppEvents(t AppEventTrigger) *Builder {
	b.apps = t
	return b
}

// WithLoginLimiter supplies a custom limiter, taking precedence over WithRedis.
func (b *Builder) WithLoginLimiter(l LoginLimiter) *Builder {
	b.limiter = l
	return b
}

func (b *Builder) WithChannelJoiner(j ChannelJoiner) *Builder {
	b.channels = j
	return b
}

func (b *Builder) WithAvatarService(a AvatarService) *Builder {
	b.avatars = a
	return b
}

// WithRooms enables SetRoomKeyID.
func (b *Builder) WithRooms(store RoomStore, access RoomAccess) *Builder {
	b.rooms = store
	b.access = access
	return b
}

// WithPasswordHasher replaces the Argon2id hasher built from Config.Password.
func (b *Builder) WithPasswordHasher(h password.Hasher) *Builder {
	b.hasher = h
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

/*
====================================
HOOK REGISTRATION
====================================
*/

// BeforeCreateUser registers handlers run first during PrepareUser.
func (b *Builder) BeforeCreateUser(h ...hooks.Handler[CreateInput]) *Builder {
	b.beforeCreate = append(b.beforeCreate, h...)
	return b
}

// OnCreateUser registers handlers run after the admin notification.
func (b *Builder) OnCreateUser(h ...hooks.Handler[CreateInput]) *Builder {
	b.onCreate = append(b.onCreate, h...)
	return b
}

// AfterCreateUser registers handlers queued after insertion. Their output is
// discarded and failures are only logged.
func (b *Builder) AfterCreateUser(h ...hooks.Handler[User]) *Builder {
	b.afterCreate = append(b.afterCreate, h...)
	return b
}

// BeforeValidateLogin registers handlers that run before any login check.
func (b *Builder) BeforeValidateLogin(h ...hooks.Handler[LoginAttempt]) *Builder {
	b.beforeValidateLogin = append(b.beforeValidateLogin, h...)
	return b
}

// OnValidateLogin registers handlers that run after the built-in checks pass.
func (b *Builder) OnValidateLogin(h ...hooks.Handler[LoginAttempt]) *Builder {
	b.onValidateLogin = append(b.onValidateLogin, h...)
	return b
}

// AfterValidateLogin registers handlers queued once a login is allowed.
func (b *Builder) AfterValidateLogin(h ...hooks.Handler[LoginAttempt]) *Builder {
	b.afterValidateLogin = append(b.afterValidateLogin, h...)
	return b
}

// Build validates the configuration and returns a ready Engine. A Builder
// can only be built once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.settings == nil {
		return nil, errors.New("settings source required")
	}
	if b.users == nil {
		return nil, errors.New("user store required")
	}
	if b.roles == nil {
		return nil, errors.New("role store required")
	}
	if (b.rooms == nil) != (b.access == nil) {
		return nil, errors.New("room store and room access must be set together")
	}

	log := b.log
	if log == nil {
		log = zap.NewNop()
	}

	engine := &Engine{
		config:   cfg,
		log:      log,
		settings: b.settings,
		users:    b.users,
		roles:    b.roles,
		tokens:   b.tokens,
		mailer:   b.mailer,
		apps:     b.apps,
		limiter:  b.limiter,
		channels: b.channels,
		avatars:  b.avatars,
		rooms:    b.rooms,
		access:   b.access,
		hasher:   b.hasher,

		beforeCreate:        frozenChain(b.beforeCreate),
		onCreate:            frozenChain(b.onCreate),
		afterCreate:         frozenChain(b.afterCreate),
		beforeValidateLogin: frozenChain(b.beforeValidateLogin),
		onValidateLogin:     frozenChain(b.onValidateLogin),
		afterValidateLogin:  frozenChain(b.afterValidateLogin),
	}

	// -------- LOGIN LIMITER --------
	if engine.limiter == nil && b.redis != nil && cfg.LoginThrottle.Enabled {
		engine.limiter = rate.New(b.redis, rate.Config{
			BlockByIP:                cfg.LoginThrottle.BlockByIP,
			BlockByUser:              cfg.LoginThrottle.BlockByUser,
			AttemptsUntilBlockByIP:   cfg.LoginThrottle.AttemptsUntilBlockByIP,
			AttemptsUntilBlockByUser: cfg.LoginThrottle.AttemptsUntilBlockByUser,
			TimeToUnblockByIP:        cfg.LoginThrottle.TimeToUnblockByIP,
			TimeToUnblockByUser:      cfg.LoginThrottle.TimeToUnblockByUser,
			IPWhitelist:              cfg.LoginThrottle.IPWhitelist,
			KeyPrefix:                cfg.LoginThrottle.RedisPrefix,
		})
	}

	// -------- PASSWORD HASHER --------
	if engine.hasher == nil {
		ph, err := password.NewArgon2(password.Config{
			Memory:           cfg.Password.Memory,
			Time:             cfg.Password.Time,
			Parallelism:      cfg.Password.Parallelism,
			SaltLength:       cfg.Password.SaltLength,
			KeyLength:        cfg.Password.KeyLength,
			MinPasswordBytes: cfg.Password.MinLength,
		})
		if err != nil {
			return nil, err
		}
		engine.hasher = ph
	}

	engine.metrics = NewMetrics(cfg.Metrics)
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		OnDrop:     engine.onAuditDrop,
	}, b.auditSink)
	engine.tasks = tasks.New(tasks.Config{
		Workers:     cfg.Tasks.Workers,
		BufferSize:  cfg.Tasks.BufferSize,
		DropIfFull:  cfg.Tasks.DropIfFull,
		TaskTimeout: cfg.Tasks.TaskTimeout,
	}, engine.onTaskError)

	b.built = true

	return engine, nil
}

func frozenChain[T any](handlers []hooks.Handler[T]) *hooks.Chain[T] {
	c := hooks.NewChain(handlers...)
	c.Freeze()
	return c
}
