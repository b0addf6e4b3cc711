package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goAccounts "github.com/MrEthical07/goAccounts"
	"github.com/google/uuid"
)

const userColumns = `id, username, name, type, status, active, roles, emails, services, created_at, last_login`

// Users implements goAccounts.UserStore and goAccounts.RoleStore.
type Users struct {
	db DBTX
}

// NewUsers returns a repository over db.
func NewUsers(db DBTX) *Users {
	return &Users{db: db}
}

// InsertUser stores user under a new UUID and returns it.
func (r *Users) InsertUser(ctx context.Context, user *goAccounts.User) (string, error) {
	id := uuid.NewString()

	roles, err := json.Marshal(nonNil(user.Roles))
	if err != nil {
		return "", err
	}
	list := user.Emails
	if list == nil {
		list = []goAccounts.Email{}
	}
	emails, err := json.Marshal(list)
	if err != nil {
		return "", err
	}
	var services []byte
	if user.Services != nil {
		if services, err = json.Marshal(user.Services); err != nil {
			return "", err
		}
	}

	query :=
		`INSERT INTO users (id, username, name, type, status, active, roles, emails, services, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = r.db.ExecContext(ctx, query,
		id,
		nullString(user.Username),
		user.Name,
		string(user.Type),
		string(user.Status),
		nullBool(user.Active),
		roles,
		emails,
		services,
		createdAt(user.CreatedAt),
	)
	if err != nil {
		return "", fmt.Errorf("db error: %w", err)
	}
	return id, nil
}

// FindUserByID returns goAccounts.ErrUserNotFound when no row matches.
func (r *Users) FindUserByID(ctx context.Context, id string) (*goAccounts.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// FindUserByUsername returns goAccounts.ErrUserNotFound when no row matches.
func (r *Users) FindUserByUsername(ctx context.Context, username string) (*goAccounts.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	return scanUser(row)
}

func (r *Users) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET last_login = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireRow(res, goAccounts.ErrUserNotFound)
}

// UpdatePasswordHash replaces the stored password credential.
func (r *Users) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET services = jsonb_set(COALESCE(services, '{}'::jsonb), '{password}', jsonb_build_object('hash', $2::text)) WHERE id = $1`,
		id, hash)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireRow(res, goAccounts.ErrUserNotFound)
}

// FindUsersInRole lists users holding role, ordered by creation.
func (r *Users) FindUsersInRole(ctx context.Context, role string) ([]goAccounts.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE roles ? $1 ORDER BY created_at`, role)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []goAccounts.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

// FindOneByRolesAndType returns nil, nil when no user matches.
func (r *Users) FindOneByRolesAndType(ctx context.Context, role string, userType goAccounts.UserType) (*goAccounts.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE roles ? $1 AND type = $2 LIMIT 1`,
		role, string(userType))
	u, err := scanUser(row)
	if errors.Is(err, goAccounts.ErrUserNotFound) {
		return nil, nil
	}
	return u, err
}

// AddUserRoles appends roles the user does not already hold, keeping order.
func (r *Users) AddUserRoles(ctx context.Context, userID string, roles []string) error {
	payload, err := json.Marshal(nonNil(roles))
	if err != nil {
		return err
	}

	query :=
		`UPDATE users SET roles = roles || COALESCE(
		   (SELECT jsonb_agg(r) FROM jsonb_array_elements_text($2::jsonb) AS r WHERE NOT users.roles ? r),
		   '[]'::jsonb)
		 WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, userID, payload)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireRow(res, goAccounts.ErrUserNotFound)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*goAccounts.User, error) {
	var (
		u                       goAccounts.User
		username                sql.NullString
		userType, status        string
		active                  sql.NullBool
		roles, emails, services []byte
		lastLogin               sql.NullTime
	)

	err := row.Scan(&u.ID, &username, &u.Name, &userType, &status, &active, &roles, &emails, &services, &u.CreatedAt, &lastLogin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, goAccounts.ErrUserNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	u.Username = username.String
	u.Type = goAccounts.UserType(userType)
	u.Status = goAccounts.UserStatus(status)
	if active.Valid {
		u.Active = goAccounts.Bool(active.Bool)
	}
	if lastLogin.Valid {
		u.LastLogin = lastLogin.Time
	}

	u.Roles = []string{}
	if len(roles) > 0 {
		if err := json.Unmarshal(roles, &u.Roles); err != nil {
			return nil, fmt.Errorf("decode roles: %w", err)
		}
	}
	if len(emails) > 0 {
		if err := json.Unmarshal(emails, &u.Emails); err != nil {
			return nil, fmt.Errorf("decode emails: %w", err)
		}
	}
	if len(services) > 0 {
		u.Services = &goAccounts.Services{}
		if err := json.Unmarshal(services, u.Services); err != nil {
			return nil, fmt.Errorf("decode services: %w", err)
		}
	}
	return &u, nil
}

func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

func createdAt(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
