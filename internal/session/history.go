// Package session keeps short per-user conversation history in memory.
package session

import (
	"strconv"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is a single message in a conversation.
type Turn struct {
	Role    Role
	Content string
}

// ring is a fixed-capacity buffer of turns that drops the oldest entry when full.
type ring struct {
	buf   []Turn
	start int
	size  int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]Turn, capacity)}
}

func (r *ring) push(t Turn) {
	if len(r.buf) == 0 {
		return
	}
	idx := (r.start + r.size) % len(r.buf)
	r.buf[idx] = t
	if r.size < len(r.buf) {
		r.size++
		return
	}
	r.start = (r.start + 1) % len(r.buf)
}

func (r *ring) turns() []Turn {
	out := make([]Turn, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

// Store holds one ring of turns per user. Entries expire after ttl of
// inactivity, and the number of tracked users is capped at maxUsers.
type Store struct {
	mu       sync.Mutex
	cache    *cache.Cache
	maxTurns int
	maxUsers int
	ttl      time.Duration
}

// NewStore creates a history store. A zero ttl keeps histories until they are
// reset or evicted by the user cap.
func NewStore(maxTurns, maxUsers int, ttl time.Duration) *Store {
	if maxTurns <= 0 {
		maxTurns = 10
	}
	expiration := ttl
	cleanup := 2 * ttl
	if ttl <= 0 {
		expiration = cache.NoExpiration
		cleanup = 0
	}
	return &Store{
		cache:    cache.New(expiration, cleanup),
		maxTurns: maxTurns,
		maxUsers: maxUsers,
		ttl:      expiration,
	}
}

func key(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

// History returns a copy of the user's turns, oldest first.
func (s *Store) History(userID int64) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.cache.Get(key(userID))
	if !ok {
		return nil
	}
	return v.(*ring).turns()
}

// Append adds turns to the user's history, creating it on first use and
// dropping the oldest turns beyond the cap.
func (s *Store) Append(userID int64, turns ...Turn) {
	if len(turns) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(userID)
	var r *ring
	if v, ok := s.cache.Get(k); ok {
		r = v.(*ring)
	} else {
		if s.maxUsers > 0 && s.cache.ItemCount() >= s.maxUsers {
			s.evictLocked()
		}
		r = newRing(s.maxTurns)
	}
	for _, t := range turns {
		r.push(t)
	}
	// Re-setting refreshes the expiration on every exchange.
	s.cache.Set(k, r, s.ttl)
}

// Reset discards the user's history.
func (s *Store) Reset(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Delete(key(userID))
}

// Len reports how many users currently have a history.
func (s *Store) Len() int {
	return s.cache.ItemCount()
}

// Sweep removes expired histories and returns how many remain.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.DeleteExpired()
	return s.cache.ItemCount()
}

// evictLocked frees room for a new user: expired entries first, then the entry
// closest to expiry.
func (s *Store) evictLocked() {
	s.cache.DeleteExpired()
	if s.cache.ItemCount() < s.maxUsers {
		return
	}

	var (
		oldestKey string
		oldestExp int64
	)
	for k, item := range s.cache.Items() {
		if oldestKey == "" || item.Expiration < oldestExp {
			oldestKey, oldestExp = k, item.Expiration
		}
	}
	if oldestKey != "" {
		s.cache.Delete(oldestKey)
	}
}
