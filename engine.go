package goAccounts

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/goAccounts/hooks"
	internalaudit "github.com/MrEthical07/goAccounts/internal/audit"
	"github.com/MrEthical07/goAccounts/internal/tasks"
	"github.com/MrEthical07/goAccounts/password"
	"go.uber.org/zap"
)

// Engine runs the account lifecycle pipeline. It is safe for concurrent use
// once built.
type Engine struct {
	config Config
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

	beforeCreate        *hooks.Chain[CreateInput]
	onCreate            *hooks.Chain[CreateInput]
	afterCreate         *hooks.Chain[User]
	beforeValidateLogin *hooks.Chain[LoginAttempt]
	onValidateLogin     *hooks.Chain[LoginAttempt]
	afterValidateLogin  *hooks.Chain[LoginAttempt]

	audit   *internalaudit.Dispatcher
	metrics *Metrics
	tasks   *tasks.Queue
}

// Close waits for queued hook chains to finish, then flushes the audit
// dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.tasks != nil {
		e.tasks.Close()
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports audit events lost to a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the in-process counters, with audit
// drops and background task completions folded in. Disabled metrics yield
// an empty snapshot.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || !e.metrics.Enabled() {
		return emptySnapshot()
	}
	s := e.metrics.Snapshot()
	s.AuditDropped = e.audit.DroppedByType()
	s.TasksCompleted = e.tasks.Completed()
	return s
}

// LoginFailures returns the failed-login count the limiter holds for
// username. It is zero when the limiter cannot report counts.
func (e *Engine) LoginFailures(ctx context.Context, username string) (int, error) {
	counter, ok := e.limiter.(LoginFailureCounter)
	if !ok || username == "" {
		return 0, nil
	}
	n, err := counter.Failures(ctx, username)
	if err != nil {
		return 0, fmt.Errorf("login failures: %w", err)
	}
	return n, nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) observeSince(id MetricID, start time.Time) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(id, time.Since(start))
}

func (e *Engine) snapshot(ctx context.Context) (Settings, error) {
	s, err := e.settings.Snapshot(ctx)
	if err != nil {
		return Settings{}, fmt.Errorf("settings snapshot: %w", err)
	}
	return s, nil
}

// submit queues fn on the background task queue. ctx only bounds the wait
// for buffer space; fn runs under the queue's own deadline.
func (e *Engine) submit(ctx context.Context, name string, fn func(context.Context) error) {
	if !e.tasks.Submit(ctx, tasks.Task{Name: name, Run: fn}) {
		e.metricInc(MetricTaskDropped)
		e.log.Warn("background hook dropped", zap.String("task", name))
	}
}

func (e *Engine) onAuditDrop(event AuditEvent) {
	e.log.Warn("audit event dropped",
		zap.String("event", event.EventType),
		zap.String("username", event.Username),
		zap.String("actor", event.ActorID),
	)
}

func (e *Engine) onTaskError(name string, err error) {
	e.metricInc(MetricTaskFailed)
	e.log.Error("background hook failed", zap.String("task", name), zap.Error(err))
}
