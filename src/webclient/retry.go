package webclient

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"
)

type AttemptFunc func() (status int, body []byte, err error)

// Policy bounds how an idempotent request is repeated.
type Policy struct {
	Attempts int
	Delay    time.Duration
	MaxDelay time.Duration
	// Label names the request in retry log lines; empty keeps retries quiet.
	Label string
}

func (p Policy) withDefaults() Policy {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}
	if p.Delay <= 0 {
		p.Delay = 2 * time.Second
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
	return p
}

// Retryable reports whether an attempt outcome is worth repeating:
// transport errors, 429 and 5xx. A cancelled caller is never retried.
func Retryable(status int, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	return status == http.StatusTooManyRequests || status >= 500
}

// Do runs fn until it succeeds, fails permanently or attempts run out.
// The delay doubles after each failure up to MaxDelay.
func (p Policy) Do(ctx context.Context, fn AttemptFunc) (int, []byte, error) {
	p = p.withDefaults()
	delay := p.Delay
	var (
		status int
		body   []byte
		err    error
	)
	for attempt := 1; ; attempt++ {
		status, body, err = fn()
		if !Retryable(status, err) || attempt >= p.Attempts {
			return status, body, err
		}
		if p.Label != "" {
			log.Printf("webclient: %s: attempt %d/%d failed (status %d, err %v), retrying in %s",
				p.Label, attempt, p.Attempts, status, err, delay)
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return status, body, ctx.Err()
		case <-t.C:
		}
		delay = min(delay*2, p.MaxDelay)
	}
}

// DoWithRetry is Policy.Do with the default backoff cap. Only use it for
// idempotent requests.
func DoWithRetry(ctx context.Context, attempts int, initialDelay time.Duration, fn AttemptFunc) (int, []byte, error) {
	return Policy{Attempts: attempts, Delay: initialDelay}.Do(ctx, fn)
}
