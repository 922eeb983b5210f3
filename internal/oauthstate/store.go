// Package oauthstate stores the anti-forgery state nonces issued at the start
// of an OAuth connection flow. A nonce is single use: Consume atomically
// removes it while checking it, so two concurrent callbacks carrying the same
// state can never both pass. The redis-backed store makes the guarantee hold
// across replicas; the in-memory store covers single-process deployments and
// tests.
package oauthstate

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how long an issued state stays redeemable. A user who
// parks on the provider's consent screen longer than this restarts the flow.
const DefaultTTL = 10 * time.Minute

// ErrStateMismatch is returned when a callback presents a state that was never
// issued, was already consumed, or does not match the stored value. All three
// cases are indistinguishable to the caller on purpose.
var ErrStateMismatch = errors.New("oauthstate: state missing, consumed, or mismatched")

// Store issues and redeems single-use state nonces keyed by browser session.
type Store interface {
	// Issue generates a fresh state nonce for the session, replacing any
	// pending one.
	Issue(ctx context.Context, sessionKey string) (string, error)

	// Consume atomically removes the pending state for the session and
	// returns ErrStateMismatch unless it exactly equals the presented value.
	Consume(ctx context.Context, sessionKey, state string) error
}

func newState() string {
	// Two UUIDs worth of randomness; the value is opaque to providers.
	return uuid.NewString() + uuid.NewString()
}

// RedisStore keeps pending states in redis so the single-use guarantee holds
// across server replicas.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a redis-backed state store.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func redisKey(sessionKey string) string {
	return "oauth_state:" + sessionKey
}

// Issue generates and stores a fresh state nonce for the session.
func (s *RedisStore) Issue(ctx context.Context, sessionKey string) (string, error) {
	state := newState()
	if err := s.client.Set(ctx, redisKey(sessionKey), state, s.ttl).Err(); err != nil {
		return "", err
	}
	return state, nil
}

// Consume removes and checks the pending state. GETDEL makes delete-and-return
// a single redis operation, which is what closes the replay window.
func (s *RedisStore) Consume(ctx context.Context, sessionKey, state string) error {
	stored, err := s.client.GetDel(ctx, redisKey(sessionKey)).Result()
	if err == redis.Nil {
		return ErrStateMismatch
	}
	if err != nil {
		return err
	}
	if stored != state || state == "" {
		return ErrStateMismatch
	}
	return nil
}

type memoryEntry struct {
	state     string
	expiresAt time.Time
}

// MemoryStore keeps pending states in process memory. Suitable for
// single-replica deployments; state does not survive restarts.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	pending map[string]memoryEntry
}

// NewMemoryStore creates an in-memory state store.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		ttl:     ttl,
		pending: make(map[string]memoryEntry),
	}
}

// Issue generates and stores a fresh state nonce for the session.
func (s *MemoryStore) Issue(ctx context.Context, sessionKey string) (string, error) {
	state := newState()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Opportunistically drop expired entries so the map does not grow with
	// abandoned flows.
	now := time.Now()
	for key, entry := range s.pending {
		if now.After(entry.expiresAt) {
			delete(s.pending, key)
		}
	}

	s.pending[sessionKey] = memoryEntry{state: state, expiresAt: now.Add(s.ttl)}
	return state, nil
}

// Consume removes and checks the pending state under one lock acquisition.
func (s *MemoryStore) Consume(ctx context.Context, sessionKey, state string) error {
	s.mu.Lock()
	entry, found := s.pending[sessionKey]
	delete(s.pending, sessionKey)
	s.mu.Unlock()

	if !found || time.Now().After(entry.expiresAt) {
		return ErrStateMismatch
	}
	if entry.state != state || state == "" {
		return ErrStateMismatch
	}
	return nil
}
