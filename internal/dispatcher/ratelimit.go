package dispatcher

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiters hands out a token-bucket rate.Limiter per phone-number-id,
// creating one lazily on first use. The dispatcher holds one process-wide
// instance so the rate limit applies globally per phone number regardless
// of which goroutine is dispatching to it.
type Limiters struct {
	rps   rate.Limit
	burst int

	mu           sync.Mutex
	perPhone     map[string]*rate.Limiter
	blockedUntil map[string]time.Time
}

// NewLimiters builds a Limiters with the given per-phone-number rate and
// burst, shared by every call Wait makes for that phone number.
func NewLimiters(rps float64, burst int) *Limiters {
	return &Limiters{
		rps:          rate.Limit(rps),
		burst:        burst,
		perPhone:     make(map[string]*rate.Limiter),
		blockedUntil: make(map[string]time.Time),
	}
}

// Wait blocks until a token for phoneNumberID is available or ctx is
// cancelled, suspending the consumer before the platform call rather than
// after, so an unconsumed message is never acked under backpressure. A
// pending Retry-After deferral (DeferRefill) is honored first.
func (l *Limiters) Wait(ctx context.Context, phoneNumberID string) error {
	if wait := l.blockedFor(phoneNumberID); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return l.limiterFor(phoneNumberID).Wait(ctx)
}

func (l *Limiters) limiterFor(phoneNumberID string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.perPhone[phoneNumberID]
	if !ok {
		lim = rate.NewLimiter(l.rps, l.burst)
		l.perPhone[phoneNumberID] = lim
	}
	return lim
}

func (l *Limiters) blockedFor(phoneNumberID string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	until, ok := l.blockedUntil[phoneNumberID]
	if !ok {
		return 0
	}
	remaining := time.Until(until)
	if remaining <= 0 {
		delete(l.blockedUntil, phoneNumberID)
		return 0
	}
	return remaining
}

// DeferRefill honors a platform 429's Retry-After header by blocking
// phoneNumberID's next Wait call until retryAfter has elapsed, instead of
// immediately retrying against an exhausted bucket.
func (l *Limiters) DeferRefill(phoneNumberID string, retryAfter time.Duration) {
	if retryAfter <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.blockedUntil[phoneNumberID] = time.Now().Add(retryAfter)
}
