package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	goAccounts "github.com/MrEthical07/goAccounts"
)

// Rooms implements goAccounts.RoomStore and goAccounts.RoomAccess.
type Rooms struct {
	db DBTX
}

func NewRooms(db DBTX) *Rooms {
	return &Rooms{db: db}
}

func (r *Rooms) FindRoomByID(ctx context.Context, roomID string) (*goAccounts.Room, error) {
	var (
		room goAccounts.Room
		key  sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `SELECT id, e2e_key_id FROM rooms WHERE id = $1`, roomID).Scan(&room.ID, &key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, goAccounts.ErrRoomNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	room.E2EKeyID = key.String
	return &room, nil
}

// SetE2EKeyID writes keyID only while the room has none.
func (r *Rooms) SetE2EKeyID(ctx context.Context, roomID, keyID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE rooms SET e2e_key_id = $2 WHERE id = $1 AND (e2e_key_id IS NULL OR e2e_key_id = '')`,
		roomID, keyID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 1 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM rooms WHERE id = $1)`, roomID).Scan(&exists); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if !exists {
		return goAccounts.ErrRoomNotFound
	}
	return goAccounts.ErrRoomKeyConflict
}

// CanAccessRoom reports room membership.
func (r *Rooms) CanAccessRoom(ctx context.Context, roomID, userID string) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM room_members WHERE room_id = $1 AND user_id = $2)`,
		roomID, userID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}
