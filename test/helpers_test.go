package test

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	goAccounts "github.com/MrEthical07/goAccounts"
	"github.com/MrEthical07/goAccounts/redisstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type userStore struct {
	mu    sync.Mutex
	users []*goAccounts.User
}

func (s *userStore) InsertUser(_ context.Context, u *goAccounts.User) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := u.Clone()
	c.ID = "u" + strconv.Itoa(len(s.users)+1)
	s.users = append(s.users, c)
	return c.ID, nil
}

func (s *userStore) find(match func(*goAccounts.User) bool) (*goAccounts.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if match(u) {
			return u.Clone(), nil
		}
	}
	return nil, goAccounts.ErrUserNotFound
}

func (s *userStore) FindUserByID(_ context.Context, id string) (*goAccounts.User, error) {
	return s.find(func(u *goAccounts.User) bool { return u.ID == id })
}

func (s *userStore) FindUserByUsername(_ context.Context, name string) (*goAccounts.User, error) {
	return s.find(func(u *goAccounts.User) bool { return u.Username == name })
}

func (s *userStore) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == id {
			u.LastLogin = at
			return nil
		}
	}
	return goAccounts.ErrUserNotFound
}

func (s *userStore) FindUsersInRole(_ context.Context, role string) ([]goAccounts.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []goAccounts.User
	for _, u := range s.users {
		if u.HasRole(role) {
			out = append(out, *u.Clone())
		}
	}
	return out, nil
}

func (s *userStore) FindOneByRolesAndType(_ context.Context, role string, t goAccounts.UserType) (*goAccounts.User, error) {
	u, err := s.find(func(u *goAccounts.User) bool { return u.HasRole(role) && u.Type == t })
	if err != nil {
		return nil, nil
	}
	return u, nil
}

func (s *userStore) AddUserRoles(_ context.Context, id string, roles []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID != id {
			continue
		}
		for _, r := range roles {
			if !u.HasRole(r) {
				u.Roles = append(u.Roles, r)
			}
		}
		return nil
	}
	return goAccounts.ErrUserNotFound
}

type roomStore struct {
	mu      sync.Mutex
	keys    map[string]string
	members map[string]bool
}

func newRoomStore() *roomStore {
	return &roomStore{keys: map[string]string{}, members: map[string]bool{}}
}

func (s *roomStore) addRoom(id string, members ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[id] = ""
	for _, m := range members {
		s.members[id+"/"+m] = true
	}
}

func (s *roomStore) FindRoomByID(_ context.Context, id string) (*goAccounts.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.keys[id]
	if !ok {
		return nil, goAccounts.ErrRoomNotFound
	}
	return &goAccounts.Room{ID: id, E2EKeyID: key}, nil
}

func (s *roomStore) SetE2EKeyID(_ context.Context, id, keyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.keys[id]
	if !ok {
		return goAccounts.ErrRoomNotFound
	}
	if key != "" {
		return goAccounts.ErrRoomKeyConflict
	}
	s.keys[id] = keyID
	return nil
}

func (s *roomStore) CanAccessRoom(_ context.Context, roomID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.members[roomID+"/"+userID], nil
}

type stack struct {
	engine *goAccounts.Engine
	users  *userStore
	rooms  *roomStore
	redis  *miniredis.Miniredis
}

func newStack(t *testing.T, settings goAccounts.Settings) *stack {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	settingsStore := redisstore.NewSettings(rdb, "t:")
	if err := settingsStore.Store(context.Background(), settings); err != nil {
		t.Fatalf("store settings: %v", err)
	}

	cfg := goAccounts.DefaultConfig()
	cfg.Password.Memory = 8192
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.LoginThrottle.AttemptsUntilBlockByUser = 3
	cfg.LoginThrottle.RedisPrefix = "t:"
	cfg.Metrics.Enabled = true

	s := &stack{users: &userStore{}, rooms: newRoomStore(), redis: mr}
	s.engine, err = goAccounts.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithSettings(settingsStore).
		WithUserStore(s.users).
		WithRoleStore(s.users).
		WithResumeTokenStore(redisstore.NewResumeTokens(rdb, "t:")).
		WithRooms(s.rooms, s.rooms).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(s.engine.Close)
	return s
}
