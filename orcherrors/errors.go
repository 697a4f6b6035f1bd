// Package orcherrors classifies the error kinds named in the orchestrator's
// error-handling design: which failures retry, which fail fast, and which
// are business errors that should never be retried. Packages that need to
// react differently to different failure modes (the Executor deciding
// whether to retry, the Orchestrator deciding whether to terminate the
// stream) check these predicates rather than comparing error strings.
package orcherrors

import "errors"

// Kind identifies one of the error categories handled by the orchestrator.
type Kind string

const (
	// KindTransientTransport covers I/O failures from the Gateway, an LLM
	// call, or retriever I/O. The Executor retries these with backoff.
	KindTransientTransport Kind = "transient_transport"

	// KindCircuitOpen is returned by the Gateway when a service's circuit
	// breaker is open. Never retried by the Executor.
	KindCircuitOpen Kind = "circuit_open"

	// KindTimeout covers an Executor task or the outer request stream
	// exceeding its deadline.
	KindTimeout Kind = "timeout"

	// KindBusiness covers validation failures, unknown methods, and invalid
	// JSON from the Planner's LLM. Never retried.
	KindBusiness Kind = "business"

	// KindChildCrash covers an actor panicking or returning an
	// unrecoverable error. The supervisor restarts the child up to its cap.
	KindChildCrash Kind = "child_crash"

	// KindUserFacingAnswerFailure covers the final synthesis LLM call
	// failing. The Orchestrator emits a diagnostic ANSWER instead of
	// raising.
	KindUserFacingAnswerFailure Kind = "answer_failure"
)

// classified wraps an error with a Kind so callers can recover it with
// errors.As without the wrapped error needing to know about orcherrors.
type classified struct {
	kind Kind
	err  error
}

func (c *classified) Error() string { return c.err.Error() }
func (c *classified) Unwrap() error { return c.err }

// Wrap annotates err with kind. Wrap(nil, ...) returns nil.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &classified{kind: kind, err: err}
}

// KindOf extracts the Kind attached to err via Wrap, defaulting to
// KindBusiness for unclassified errors (the conservative choice: unknown
// errors are not retried).
func KindOf(err error) Kind {
	var c *classified
	if errors.As(err, &c) {
		return c.kind
	}
	return KindBusiness
}

// IsRetryable reports whether the Executor should retry err per the policy
// table: transient transport and timeout errors retry, everything else does
// not.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindTransientTransport, KindTimeout:
		return true
	default:
		return false
	}
}

// IsCircuitOpen reports whether err originated from an open circuit
// breaker rejecting a call without invoking the service.
func IsCircuitOpen(err error) bool { return KindOf(err) == KindCircuitOpen }
