package contextstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeDurable is an in-memory stand-in for a real durable backing store,
// used to exercise Store's read-through and degrade-on-failure paths
// without a network dependency.
type fakeDurable struct {
	mu     sync.Mutex
	data   map[string][]byte
	failOn map[string]bool
}

func newFakeDurable() *fakeDurable {
	return &fakeDurable{data: make(map[string][]byte), failOn: make(map[string]bool)}
}

func (f *fakeDurable) Put(_ context.Context, key string, value []byte, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn["put"] {
		return errUnavailable
	}
	f.data[key] = value
	return nil
}

func (f *fakeDurable) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (f *fakeDurable) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	return nil
}

func (f *fakeDurable) ExtendTTL(context.Context, string, time.Duration) error { return nil }

func (f *fakeDurable) Keys(_ context.Context, _ string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.data))
	for k := range f.data {
		ids = append(ids, k)
	}
	return ids, nil
}

var errUnavailable = &unavailableErr{}

type unavailableErr struct{}

func (*unavailableErr) Error() string { return "durable backend unavailable" }

func TestGetOrCreateCreatesOncePerSession(t *testing.T) {
	s := New()
	ctx := context.Background()

	c1, err := s.GetOrCreate(ctx, "sess-1", "user-1")
	require.NoError(t, err)
	require.Equal(t, "user-1", c1.UserID)

	c2, err := s.GetOrCreate(ctx, "sess-1", "ignored")
	require.NoError(t, err)
	require.Equal(t, "user-1", c2.UserID)
}

func TestUpdateConversationDropsOldest(t *testing.T) {
	s := New()
	ctx := context.Background()
	c, err := s.GetOrCreate(ctx, "sess-1", "user-1")
	require.NoError(t, err)
	c.MaxHistory = 2
	require.NoError(t, s.Save(ctx, c))

	require.NoError(t, s.UpdateConversation(ctx, "sess-1", Message{Role: "user", Content: "one"}))
	require.NoError(t, s.UpdateConversation(ctx, "sess-1", Message{Role: "user", Content: "two"}))
	require.NoError(t, s.UpdateConversation(ctx, "sess-1", Message{Role: "user", Content: "three"}))

	got, err := s.Get(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, got.History, 2)
	require.Equal(t, "two", got.History[0].Content)
	require.Equal(t, "three", got.History[1].Content)
}

func TestDurableReadThroughOnCacheMiss(t *testing.T) {
	durable := newFakeDurable()
	s := New(WithDurable(durable, JSONCodec{}))
	ctx := context.Background()

	_, err := s.GetOrCreate(ctx, "sess-1", "user-1")
	require.NoError(t, err)

	// Simulate a fresh process: drop the local cache, keep the durable copy.
	s2 := New(WithDurable(durable, JSONCodec{}))
	got, err := s2.Get(ctx, "sess-1")
	require.NoError(t, err)
	require.Equal(t, "user-1", got.UserID)
}

func TestDurableFailureDegradesToLocalOnly(t *testing.T) {
	durable := newFakeDurable()
	durable.failOn["put"] = true
	s := New(WithDurable(durable, JSONCodec{}))
	ctx := context.Background()

	c, err := s.GetOrCreate(ctx, "sess-1", "user-1")
	require.NoError(t, err)
	require.Equal(t, "user-1", c.UserID)

	got, err := s.Get(ctx, "sess-1")
	require.NoError(t, err)
	require.Equal(t, "user-1", got.UserID)
}

func TestGetUnknownSessionReturnsNotFound(t *testing.T) {
	s := New()
	_, err := s.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}
