package goAccounts

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goAccounts/mail"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// memStore implements every persistence interface the engine uses.
type memStore struct {
	mu     sync.Mutex
	nextID int
	users  map[string]*User
	tokens map[string][]ResumeToken
	rooms  map[string]*Room
	access map[string]bool

	lastLogin map[string]time.Time
}

func newMemStore() *memStore {
	return &memStore{
		users:     map[string]*User{},
		tokens:    map[string][]ResumeToken{},
		rooms:     map[string]*Room{},
		access:    map[string]bool{},
		lastLogin: map[string]time.Time{},
	}
}

func (s *memStore) InsertUser(_ context.Context, user *User) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := "u" + strconv.Itoa(s.nextID)
	stored := user.Clone()
	stored.ID = id
	s.users[id] = stored
	return id, nil
}

func (s *memStore) FindUserByID(_ context.Context, id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u.Clone(), nil
}

func (s *memStore) FindUserByUsername(_ context.Context, username string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == username {
			return u.Clone(), nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *memStore) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastLogin[id] = at
	return nil
}

func (s *memStore) UpdatePasswordHash(_ context.Context, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	if u.Services == nil {
		u.Services = &Services{}
	}
	u.Services.Password = &PasswordService{Hash: hash}
	return nil
}

func (s *memStore) FindUsersInRole(_ context.Context, role string) ([]User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []User
	for _, u := range s.sortedUsers() {
		if u.HasRole(role) {
			out = append(out, *u.Clone())
		}
	}
	return out, nil
}

func (s *memStore) FindOneByRolesAndType(_ context.Context, role string, userType UserType) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.sortedUsers() {
		if u.HasRole(role) && u.Type == userType {
			return u.Clone(), nil
		}
	}
	return nil, nil
}

func (s *memStore) AddUserRoles(_ context.Context, id string, roles []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	for _, r := range roles {
		if !u.HasRole(r) {
			u.Roles = append(u.Roles, r)
		}
	}
	return nil
}

func (s *memStore) sortedUsers() []*User {
	out := make([]*User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *memStore) AddResumeToken(_ context.Context, userID string, token ResumeToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens[userID] = append(s.tokens[userID], token)
	return nil
}

func (s *memStore) ResumeTokens(_ context.Context, userID string) ([]ResumeToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]ResumeToken(nil), s.tokens[userID]...), nil
}

func (s *memStore) RemoveResumeTokensOlderThan(_ context.Context, userID string, cutoff time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var kept []ResumeToken
	for _, t := range s.tokens[userID] {
		if !t.When.Before(cutoff) {
			kept = append(kept, t)
		}
	}
	s.tokens[userID] = kept
	return nil
}

func (s *memStore) FindUserIDByResumeToken(_ context.Context, hashed string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, tokens := range s.tokens {
		for _, t := range tokens {
			if t.HashedToken == hashed {
				return id, nil
			}
		}
	}
	return "", ErrResumeTokenInvalid
}

func (s *memStore) FindRoomByID(_ context.Context, roomID string) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	out := *r
	return &out, nil
}

func (s *memStore) SetE2EKeyID(_ context.Context, roomID, keyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	if r.E2EKeyID != "" {
		return ErrRoomKeyConflict
	}
	r.E2EKeyID = keyID
	return nil
}

func (s *memStore) CanAccessRoom(_ context.Context, roomID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.access[roomID+"/"+userID], nil
}

func (s *memStore) putUser(u *User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users[u.ID] = u.Clone()
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type recordingApps struct {
	mu     sync.Mutex
	events []AppEvent
	err    error
}

func (a *recordingApps) TriggerEvent(_ context.Context, event AppEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.err != nil {
		return a.err
	}
	a.events = append(a.events, event)
	return nil
}

func (a *recordingApps) names() []AppEventName {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]AppEventName, 0, len(a.events))
	for _, e := range a.events {
		out = append(out, e.Name)
	}
	return out
}

type recordingChannels struct {
	mu       sync.Mutex
	joined   []string
	silenced []bool
}

func (c *recordingChannels) JoinDefaultChannels(_ context.Context, userID string, silenced bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.joined = append(c.joined, userID)
	c.silenced = append(c.silenced, silenced)
	return nil
}

type stubAvatars struct {
	mu          sync.Mutex
	suggestions []AvatarSuggestion
	set         []AvatarSuggestion
}

func (a *stubAvatars) Suggestions(context.Context, *User) ([]AvatarSuggestion, error) {
	return a.suggestions, nil
}

func (a *stubAvatars) SetAvatarFromService(_ context.Context, _ string, s AvatarSuggestion) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.set = append(a.set, s)
	return nil
}

// testEngine bundles an engine with its collaborators.
type testEngine struct {
	*Engine
	store    *memStore
	settings *StaticSettings
	mailer   *recordingMailer
	apps     *recordingApps
	channels *recordingChannels
	avatars  *stubAvatars
}

func testConfig() Config {
	cfg := defaultConfig()
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Tasks.Workers = 1
	cfg.Metrics.Enabled = true
	return cfg
}

func newTestEngine(t *testing.T, settings Settings, configure ...func(*Builder)) *testEngine {
	t.Helper()

	te := &testEngine{
		store:    newMemStore(),
		settings: NewStaticSettings(settings),
		mailer:   &recordingMailer{},
		apps:     &recordingApps{},
		channels: &recordingChannels{},
		avatars:  &stubAvatars{},
	}

	b := New().
		WithConfig(testConfig()).
		WithSettings(te.settings).
		WithUserStore(te.store).
		WithRoleStore(te.store).
		WithResumeTokenStore(te.store).
		WithRooms(te.store, te.store).
		WithMailer(te.mailer).
		WithAppEvents(te.apps).
		WithChannelJoiner(te.channels).
		WithAvatarService(te.avatars)
	for _, fn := range configure {
		fn(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	te.Engine = engine
	return te
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func requireCode(t *testing.T, err error, want *Error) {
	t.Helper()

	if err == nil {
		t.Fatalf("expected %s, got nil", want.Code)
	}
	if got := ErrorCode(err); got != want.Code {
		t.Fatalf("expected %s, got %v", want.Code, err)
	}
}
