package contextstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/opencode-ai/orchestrator/telemetry"
)

// ErrNotFound indicates no Context exists for the given session.
var ErrNotFound = errors.New("contextstore: session not found")

// DefaultMaxHistory bounds conversation history when a Context is created
// via GetOrCreate without an explicit override.
const DefaultMaxHistory = 50

// DefaultTTL is the TTL applied to newly created contexts and refreshed on
// every write.
const DefaultTTL = 24 * time.Hour

// Durable is the opaque key/value-with-TTL backing store contract. A real
// deployment points this at Redis, Mongo, or any store that can round-trip
// serialized bytes and honor an expiry; Store degrades to local-only when
// Durable is nil or returns errors.
type Durable interface {
	// Put stores value under key with the given TTL, overwriting any
	// existing entry and resetting its expiry.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// ExtendTTL refreshes key's expiry without rewriting its value.
	ExtendTTL(ctx context.Context, key string, ttl time.Duration) error
	// Keys lists keys matching pattern (a simple glob, e.g. "sess:*").
	Keys(ctx context.Context, pattern string) ([]string, error)
}

// Codec (de)serializes a Context for the Durable backing store. Store never
// assumes a particular wire format so Durable implementations can choose
// JSON, BSON, or anything else.
type Codec interface {
	Marshal(*Context) ([]byte, error)
	Unmarshal([]byte) (*Context, error)
}

// Store is the per-session conversation Context keeper described in section
// 4.2: a process-local authoritative cache fronting an optional durable
// backing store, grounded in the teacher's session.Store lifecycle contract
// but generalized to free-form conversational state with TTL semantics
// instead of explicit session end.
type Store struct {
	mu      sync.RWMutex
	cache   map[string]*Context
	durable Durable
	codec   Codec
	ttl     time.Duration
	log     telemetry.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithDurable attaches an opaque durable backing store and the codec used
// to serialize contexts to and from it.
func WithDurable(d Durable, c Codec) Option {
	return func(s *Store) {
		s.durable = d
		s.codec = c
	}
}

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithLogger attaches a Logger used to report durable-backing degradation.
func WithLogger(l telemetry.Logger) Option {
	return func(s *Store) { s.log = l }
}

// New constructs a Store. Without WithDurable it operates purely in
// process-local memory.
func New(opts ...Option) *Store {
	s := &Store{
		cache: make(map[string]*Context),
		ttl:   DefaultTTL,
		log:   telemetry.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the Context for sessionID, or ErrNotFound. It checks the
// local cache first; on a cache miss it falls back to the durable store (if
// configured) and repopulates the cache.
func (s *Store) Get(ctx context.Context, sessionID string) (*Context, error) {
	s.mu.RLock()
	if c, ok := s.cache[sessionID]; ok {
		defer s.mu.RUnlock()
		return c.clone(), nil
	}
	s.mu.RUnlock()

	if s.durable == nil {
		return nil, ErrNotFound
	}
	raw, err := s.durable.Get(ctx, key(sessionID))
	if err != nil {
		return nil, ErrNotFound
	}
	c, err := s.codec.Unmarshal(raw)
	if err != nil {
		s.log.Warn(ctx, "contextstore: durable payload corrupt, treating as miss", "session_id", sessionID, "error", err.Error())
		return nil, ErrNotFound
	}
	s.mu.Lock()
	s.cache[sessionID] = c
	s.mu.Unlock()
	return c.clone(), nil
}

// GetOrCreate returns the existing Context for sessionID, creating an empty
// one owned by userID if none exists.
func (s *Store) GetOrCreate(ctx context.Context, sessionID, userID string) (*Context, error) {
	if c, err := s.Get(ctx, sessionID); err == nil {
		return c, nil
	}
	now := time.Now()
	c := &Context{
		SessionID:   sessionID,
		UserID:      userID,
		Permissions: make(map[string]struct{}),
		Metadata:    make(map[string]any),
		MaxHistory:  DefaultMaxHistory,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.Save(ctx, c); err != nil {
		return nil, err
	}
	return c.clone(), nil
}

// Save writes ctxVal to the cache and, if configured, the durable backing
// store, refreshing its TTL. Durable-backing failures degrade the call to
// local-only and are logged rather than returned, per the store's failure
// mode: it never fails a call for backing unavailability.
func (s *Store) Save(ctx context.Context, ctxVal *Context) error {
	cp := ctxVal.clone()
	s.mu.Lock()
	s.cache[cp.SessionID] = cp
	s.mu.Unlock()

	s.persist(ctx, cp)
	return nil
}

// UpdateConversation appends msg to the session's history (dropping the
// oldest entry past MaxHistory) and persists the result.
func (s *Store) UpdateConversation(ctx context.Context, sessionID string, msg Message) error {
	s.mu.Lock()
	c, ok := s.cache[sessionID]
	if !ok {
		s.mu.Unlock()
		got, err := s.Get(ctx, sessionID)
		if err != nil {
			return err
		}
		s.mu.Lock()
		c = got
		s.cache[sessionID] = c
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	c.appendMessage(msg)
	cp := c.clone()
	s.mu.Unlock()

	s.persist(ctx, cp)
	return nil
}

// Delete removes sessionID from the cache and, if configured, the durable
// backing store.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.cache, sessionID)
	s.mu.Unlock()
	if s.durable == nil {
		return nil
	}
	if err := s.durable.Delete(ctx, key(sessionID)); err != nil {
		s.log.Warn(ctx, "contextstore: durable delete failed", "session_id", sessionID, "error", err.Error())
	}
	return nil
}

// ExtendTTL refreshes the durable expiry for sessionID without rewriting
// its value. A no-op when no durable backing is configured.
func (s *Store) ExtendTTL(ctx context.Context, sessionID string, seconds int) error {
	if s.durable == nil {
		return nil
	}
	if err := s.durable.ExtendTTL(ctx, key(sessionID), time.Duration(seconds)*time.Second); err != nil {
		s.log.Warn(ctx, "contextstore: durable TTL extend failed", "session_id", sessionID, "error", err.Error())
	}
	return nil
}

// ListSessions returns session IDs matching pattern from the durable
// backing store. When none is configured it returns every cached session
// id and pattern is not applied.
func (s *Store) ListSessions(ctx context.Context, pattern string) ([]string, error) {
	if s.durable == nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		ids := make([]string, 0, len(s.cache))
		for id := range s.cache {
			ids = append(ids, id)
		}
		return ids, nil
	}
	keys, err := s.durable.Keys(ctx, keyPattern(pattern))
	if err != nil {
		s.log.Warn(ctx, "contextstore: durable list failed", "error", err.Error())
		return nil, nil
	}
	ids := make([]string, len(keys))
	for i, k := range keys {
		ids[i] = stripPrefix(k)
	}
	return ids, nil
}

func (s *Store) persist(ctx context.Context, c *Context) {
	if s.durable == nil || s.codec == nil {
		return
	}
	raw, err := s.codec.Marshal(c)
	if err != nil {
		s.log.Warn(ctx, "contextstore: marshal failed, degrading to local-only", "session_id", c.SessionID, "error", err.Error())
		return
	}
	if err := s.durable.Put(ctx, key(c.SessionID), raw, s.ttl); err != nil {
		s.log.Warn(ctx, "contextstore: durable write failed, degrading to local-only", "session_id", c.SessionID, "error", err.Error())
	}
}

const keyPrefix = "sess:"

func key(sessionID string) string { return keyPrefix + sessionID }

func keyPattern(pattern string) string {
	if pattern == "" {
		return keyPrefix + "*"
	}
	return keyPrefix + pattern
}

func stripPrefix(k string) string {
	if len(k) > len(keyPrefix) && k[:len(keyPrefix)] == keyPrefix {
		return k[len(keyPrefix):]
	}
	return k
}
