package goAccounts

import (
	"context"
	"time"
)

const (
	auditEventUserPrepared       = "user_prepared"
	auditEventUserRejected       = "user_rejected"
	auditEventUserCreated        = "user_created"
	auditEventFirstAdminPromoted = "first_admin_promoted"
	auditEventLoginAllowed       = "login_allowed"
	auditEventLoginRejected      = "login_rejected"
	auditEventLoginFailure       = "login_failure"
	auditEventResumeTokensPruned = "resume_tokens_pruned"
	auditEventRoomKeySet         = "room_key_set"
	auditEventRoomKeyRejected    = "room_key_rejected"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	user *User,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if user != nil {
		event.UserID = user.ID
		event.Username = user.Username
	}
	if actor := actorFromContext(ctx); actor != nil {
		event.ActorID = actor.ID
	}
	if err != nil {
		if code := ErrorCode(err); code != "" {
			event.Error = code
		} else {
			event.Error = "internal_error"
		}
	}

	e.audit.Emit(ctx, event)
}
