package goAccounts

import (
	"context"
	"errors"
	"fmt"
)

var roomKeyDetails = map[string]string{"method": "e2e.setRoomKeyID"}

// SetRoomKeyID stores the e2e key id of a room on behalf of the actor in
// ctx. A room's key id is written once; later calls, including a losing
// concurrent write, fail with ErrRoomE2EKeyExists.
func (e *Engine) SetRoomKeyID(ctx context.Context, roomID, keyID string) error {
	if e.rooms == nil || e.access == nil {
		return ErrEngineNotReady
	}

	actor := actorFromContext(ctx)
	if actor == nil || actor.ID == "" {
		return e.rejectRoomKey(ctx, roomID, ErrInvalidUser.withDetails(roomKeyDetails))
	}

	if roomID == "" {
		return e.rejectRoomKey(ctx, roomID, ErrInvalidRoom.withDetails(roomKeyDetails))
	}

	ok, err := e.access.CanAccessRoom(ctx, roomID, actor.ID)
	if err != nil {
		return fmt.Errorf("room access: %w", err)
	}
	if !ok {
		return e.rejectRoomKey(ctx, roomID, ErrInvalidRoom.withDetails(roomKeyDetails))
	}

	room, err := e.rooms.FindRoomByID(ctx, roomID)
	if err != nil && !errors.Is(err, ErrRoomNotFound) {
		return fmt.Errorf("find room: %w", err)
	}
	if room == nil {
		return e.rejectRoomKey(ctx, roomID, ErrInvalidRoom.withDetails(roomKeyDetails))
	}

	if room.E2EKeyID != "" {
		e.metricInc(MetricRoomKeyConflict)
		return e.rejectRoomKey(ctx, roomID, ErrRoomE2EKeyExists.withDetails(roomKeyDetails))
	}

	if err := e.rooms.SetE2EKeyID(ctx, roomID, keyID); err != nil {
		if errors.Is(err, ErrRoomKeyConflict) {
			e.metricInc(MetricRoomKeyConflict)
			return e.rejectRoomKey(ctx, roomID, ErrRoomE2EKeyExists.withDetails(roomKeyDetails))
		}
		if errors.Is(err, ErrRoomNotFound) {
			return e.rejectRoomKey(ctx, roomID, ErrInvalidRoom.withDetails(roomKeyDetails))
		}
		return fmt.Errorf("set room key: %w", err)
	}

	e.metricInc(MetricRoomKeySet)
	e.emitAudit(ctx, auditEventRoomKeySet, true, actor, nil, func() map[string]string {
		return map[string]string{"room_id": roomID}
	})
	return nil
}

func (e *Engine) rejectRoomKey(ctx context.Context, roomID string, err error) error {
	e.emitAudit(ctx, auditEventRoomKeyRejected, false, actorFromContext(ctx), err, func() map[string]string {
		return map[string]string{"room_id": roomID}
	})
	return err
}
