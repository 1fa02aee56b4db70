// Package session holds the auth cache every access-gated view reads: the
// current user, a logged-in flag, and a hydration flag distinguishing "not
// yet known" from "known to be logged out". The cache is observable and
// persisted to durable storage; access-control decisions wait for hydration.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// User is the cached identity used for role gating.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Snapshot is an immutable view of the cache state.
type Snapshot struct {
	LoggedIn bool
	Hydrated bool
	User     *User
}

var (
	// ErrNotHydrated is returned before persisted state has been loaded.
	ErrNotHydrated = errors.New("세션 정보를 불러오는 중입니다.")
	// ErrLoginRequired is returned for anonymous access to a gated view.
	ErrLoginRequired = errors.New("로그인이 필요한 서비스입니다.")
	// ErrForbidden is returned when the cached role is not allow-listed.
	ErrForbidden = errors.New("이 페이지에 접근할 권한이 없습니다.")
)

// Persistence stores the serialized cache between process runs.
type Persistence interface {
	Load(ctx context.Context, key string) ([]byte, error) // nil, nil when absent
	Save(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// persisted is the durable subset of the cache; hydration state is not
// persisted, it describes this process's knowledge.
type persisted struct {
	LoggedIn bool  `json:"loggedIn"`
	User     *User `json:"user"`
}

// Store is the process-wide observable auth cache.
type Store struct {
	mu       sync.RWMutex
	key      string
	persist  Persistence
	user     *User
	loggedIn bool
	hydrated bool
	subs     map[int]chan Snapshot
	nextSub  int
}

// NewStore creates an unhydrated store backed by persistence under key.
func NewStore(key string, persist Persistence) *Store {
	return &Store{
		key:     key,
		persist: persist,
		subs:    make(map[int]chan Snapshot),
	}
}

// Hydrate loads persisted state. The store becomes hydrated even when no
// state was persisted; a load failure leaves it unhydrated.
func (s *Store) Hydrate(ctx context.Context) error {
	data, err := s.persist.Load(ctx, s.key)
	if err != nil {
		return fmt.Errorf("hydrate session: %w", err)
	}

	s.mu.Lock()
	if data != nil {
		var p persisted
		if err := json.Unmarshal(data, &p); err == nil {
			s.loggedIn = p.LoggedIn
			s.user = p.User
		}
	}
	s.hydrated = true
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

// SetUser records a login (or a re-validated identity) and persists it.
// A nil user records a logout.
func (s *Store) SetUser(ctx context.Context, user *User) error {
	s.mu.Lock()
	s.user = user
	s.loggedIn = user != nil
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return s.save(ctx, snap)
}

// Logout clears the cache and its persisted copy.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.user = nil
	s.loggedIn = false
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	if err := s.persist.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("clear persisted session: %w", err)
	}
	return nil
}

// Snapshot returns the current cache state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Authorize gates access to a view restricted to allowedRoles. It refuses
// all access until hydration completes, so "not yet known" never passes as
// "logged out" or vice versa.
func (s *Store) Authorize(allowedRoles ...string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.hydrated {
		return ErrNotHydrated
	}
	if !s.loggedIn || s.user == nil {
		return ErrLoginRequired
	}
	for _, role := range allowedRoles {
		if s.user.Role == role {
			return nil
		}
	}
	return ErrForbidden
}

// Subscribe registers an observer. The channel holds the latest snapshot;
// slow consumers only ever miss intermediate states, never the newest one.
// The returned cancel func releases the subscription.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Store) snapshotLocked() Snapshot {
	var user *User
	if s.user != nil {
		copied := *s.user
		user = &copied
	}
	return Snapshot{LoggedIn: s.loggedIn, Hydrated: s.hydrated, User: user}
}

func (s *Store) notify(snap Snapshot) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			// Replace the stale pending snapshot with the newest one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

func (s *Store) save(ctx context.Context, snap Snapshot) error {
	data, err := json.Marshal(persisted{LoggedIn: snap.LoggedIn, User: snap.User})
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.persist.Save(ctx, s.key, data); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}
