package breaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOpensAtFailureThreshold(t *testing.T) {
	b := New(WithFailureThreshold(3))
	require.Equal(t, Closed, b.State())
	b.RecordFailure()
	b.RecordFailure()
	require.Equal(t, Closed, b.State())
	b.RecordFailure()
	require.Equal(t, Open, b.State())
	require.False(t, b.Allow())
}

func TestHalfOpenAfterRecoveryTimeout(t *testing.T) {
	now := time.Unix(0, 0)
	clock := func() time.Time { return now }
	b := New(WithFailureThreshold(1), WithRecoveryTimeout(time.Minute), withClock(clock))
	b.RecordFailure()
	require.Equal(t, Open, b.State())
	require.False(t, b.Allow())

	now = now.Add(time.Minute)
	require.True(t, b.Allow())
	require.Equal(t, HalfOpen, b.State())
}

func TestHalfOpenSuccessCloses(t *testing.T) {
	b := New(WithFailureThreshold(1), WithRecoveryTimeout(0))
	b.RecordFailure()
	require.True(t, b.Allow())
	require.Equal(t, HalfOpen, b.State())
	b.RecordSuccess()
	require.Equal(t, Closed, b.State())
	require.Equal(t, 0, b.FailureCount())
}

func TestHalfOpenFailureReopens(t *testing.T) {
	now := time.Unix(0, 0)
	clock := func() time.Time { return now }
	b := New(WithFailureThreshold(1), WithRecoveryTimeout(time.Second), withClock(clock))
	b.RecordFailure()
	now = now.Add(time.Second)
	require.True(t, b.Allow())
	require.Equal(t, HalfOpen, b.State())
	b.RecordFailure()
	require.Equal(t, Open, b.State())
}
