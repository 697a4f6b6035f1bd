package executoractor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/orchestrator/eventbus"
	"github.com/opencode-ai/orchestrator/orcherrors"
	"github.com/opencode-ai/orchestrator/plan"
)

type fakeGateway struct {
	calls   int
	errs    []error
	results []map[string]any
}

func (f *fakeGateway) Call(context.Context, string, string, map[string]any) (map[string]any, error) {
	i := f.calls
	f.calls++
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	var res map[string]any
	if i < len(f.results) {
		res = f.results[i]
	}
	return res, err
}

type fakeResolver struct {
	service string
	err     error
}

func (f *fakeResolver) Resolve(string) (string, error) { return f.service, f.err }

func TestExecuteSucceedsFirstAttempt(t *testing.T) {
	gw := &fakeGateway{results: []map[string]any{{"ok": true}}}
	bus := eventbus.New(10)
	e := New(gw, &fakeResolver{service: "sandbox"}, bus, withSleep(func(time.Duration) {}))

	result := e.Execute(context.Background(), plan.Task{ID: "t1", Tool: "run"}, "corr-1")
	require.True(t, result.Success)
	require.Equal(t, 1, gw.calls)
}

func TestExecuteRetriesRetryableFailures(t *testing.T) {
	gw := &fakeGateway{
		errs: []error{
			orcherrors.Wrap(orcherrors.KindTransientTransport, errors.New("flaky")),
			orcherrors.Wrap(orcherrors.KindTransientTransport, errors.New("flaky")),
		},
		results: []map[string]any{nil, nil, {"ok": true}},
	}
	var slept []time.Duration
	e := New(gw, &fakeResolver{service: "sandbox"}, nil,
		withSleep(func(d time.Duration) { slept = append(slept, d) }))

	result := e.Execute(context.Background(), plan.Task{ID: "t1", Tool: "run"}, "corr-1")
	require.True(t, result.Success)
	require.Equal(t, 3, gw.calls)
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second}, slept)
}

func TestExecuteExhaustsRetriesAndFails(t *testing.T) {
	boom := orcherrors.Wrap(orcherrors.KindTransientTransport, errors.New("boom"))
	gw := &fakeGateway{errs: []error{boom, boom, boom}}
	e := New(gw, &fakeResolver{service: "sandbox"}, nil, WithMaxRetries(2), withSleep(func(time.Duration) {}))

	result := e.Execute(context.Background(), plan.Task{ID: "t1", Tool: "run"}, "corr-1")
	require.False(t, result.Success)
	require.Equal(t, "boom", result.Error)
	require.Equal(t, 3, gw.calls)
}

func TestExecuteBusinessErrorDoesNotRetry(t *testing.T) {
	gw := &fakeGateway{errs: []error{orcherrors.Wrap(orcherrors.KindBusiness, errors.New("bad input"))}}
	e := New(gw, &fakeResolver{service: "sandbox"}, nil, withSleep(func(time.Duration) {}))

	result := e.Execute(context.Background(), plan.Task{ID: "t1", Tool: "run"}, "corr-1")
	require.False(t, result.Success)
	require.Equal(t, 1, gw.calls)
}

func TestExecuteResolvesServiceWhenTaskHasNone(t *testing.T) {
	gw := &fakeGateway{results: []map[string]any{{"ok": true}}}
	resolver := &fakeResolver{service: "resolved-service"}
	e := New(gw, resolver, nil, withSleep(func(time.Duration) {}))

	result := e.Execute(context.Background(), plan.Task{ID: "t1", Tool: "search"}, "corr-1")
	require.True(t, result.Success)
}
