package llm

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimited wraps a Client with an AIMD adaptive token-bucket: it
// estimates the token cost of each request and blocks the caller until
// budget is available, halves its tokens-per-minute budget whenever the
// wrapped client reports ErrRateLimited, and recovers it gradually on every
// success. Grounded in the teacher's
// features/model/middleware.AdaptiveRateLimiter, narrowed to the
// process-local case: this project has no Pulse-backed cluster map to
// coordinate budget across processes, so there is no equivalent of the
// teacher's rmap-backed clusterAdaptiveRateLimiter here.
type RateLimited struct {
	next Client

	mu           sync.Mutex
	limiter      *rate.Limiter
	currentTPM   float64
	minTPM       float64
	maxTPM       float64
	recoveryRate float64
}

// defaultInitialTPM matches the teacher's conservative default budget when
// the caller doesn't specify one.
const defaultInitialTPM = 60000.0

// NewRateLimited wraps next with an adaptive limiter starting at initialTPM
// tokens per minute and never exceeding maxTPM. A non-positive initialTPM
// defaults to defaultInitialTPM; a maxTPM below initialTPM is raised to
// match it.
func NewRateLimited(next Client, initialTPM, maxTPM float64) *RateLimited {
	if initialTPM <= 0 {
		initialTPM = defaultInitialTPM
	}
	if maxTPM < initialTPM {
		maxTPM = initialTPM
	}
	minTPM := initialTPM * 0.1
	if minTPM < 1 {
		minTPM = 1
	}
	recoveryRate := initialTPM * 0.05
	if recoveryRate < 1 {
		recoveryRate = 1
	}
	return &RateLimited{
		next:         next,
		limiter:      rate.NewLimiter(rate.Limit(initialTPM/60.0), int(initialTPM)),
		currentTPM:   initialTPM,
		minTPM:       minTPM,
		maxTPM:       maxTPM,
		recoveryRate: recoveryRate,
	}
}

// Complete blocks for budget, delegates to next, and adjusts the budget
// based on the outcome.
func (l *RateLimited) Complete(ctx context.Context, req *Request) (*Response, error) {
	if err := l.wait(ctx, req); err != nil {
		return nil, err
	}
	resp, err := l.next.Complete(ctx, req)
	l.observe(err)
	return resp, err
}

// Stream blocks for budget, delegates to next, and adjusts the budget based
// on whether the stream was accepted. A mid-stream rate-limit signal (if the
// Streamer surfaces one through Recv) is not observed here, matching the
// teacher's own stream handling.
func (l *RateLimited) Stream(ctx context.Context, req *Request) (Streamer, error) {
	if err := l.wait(ctx, req); err != nil {
		return nil, err
	}
	s, err := l.next.Stream(ctx, req)
	l.observe(err)
	return s, err
}

func (l *RateLimited) wait(ctx context.Context, req *Request) error {
	return l.limiter.WaitN(ctx, estimateTokens(req))
}

func (l *RateLimited) observe(err error) {
	if err == nil {
		l.probe()
		return
	}
	if errors.Is(err, ErrRateLimited) {
		l.backoff()
	}
}

// backoff halves the current budget on a rate-limit rejection, floored at
// minTPM.
func (l *RateLimited) backoff() {
	l.mu.Lock()
	defer l.mu.Unlock()
	tpm := l.currentTPM * 0.5
	if tpm < l.minTPM {
		tpm = l.minTPM
	}
	l.setTPM(tpm)
}

// probe grows the current budget by recoveryRate on a successful call,
// capped at maxTPM.
func (l *RateLimited) probe() {
	l.mu.Lock()
	defer l.mu.Unlock()
	tpm := l.currentTPM + l.recoveryRate
	if tpm > l.maxTPM {
		tpm = l.maxTPM
	}
	l.setTPM(tpm)
}

// setTPM applies a new budget to the limiter. Callers must hold mu.
func (l *RateLimited) setTPM(tpm float64) {
	if tpm == l.currentTPM {
		return
	}
	l.currentTPM = tpm
	l.limiter.SetLimit(rate.Limit(tpm / 60.0))
	l.limiter.SetBurst(int(tpm))
}

// estimateTokens is a cheap char-count heuristic for a request's token
// cost, adapted from the teacher's estimateTokens to this package's flatter
// Request shape (a single System string plus role/content Messages, rather
// than the teacher's multi-part TextPart/ToolResultPart messages).
func estimateTokens(req *Request) int {
	chars := len(req.System)
	for _, m := range req.Messages {
		chars += len(m.Content)
	}
	if chars == 0 {
		return 500
	}
	tokens := chars/3 + 500
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}
