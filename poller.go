package account

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-errors"
)

const (
	// DefaultPollInterval is how often the poller re-checks the backend
	// verification flag while the visitor sits on the verification page.
	DefaultPollInterval = 20 * time.Second
	// DefaultRedirectGrace is how long the verified confirmation stays on
	// screen before the poller reports completion.
	DefaultRedirectGrace = 2 * time.Second
	// DefaultResendLimit caps manual resends per poller lifetime.
	DefaultResendLimit = 3
)

// VerificationPoller drives the wait-for-verification flow. It re-checks the
// backend flag on an interval, persists the verification record through the
// client on the first true reading, and invokes the completion callback after
// a short grace so the visitor sees the confirmation before navigating away.
type VerificationPoller struct {
	mu sync.Mutex

	client *Client
	logger Logger

	interval    time.Duration
	grace       time.Duration
	resendLimit int

	resendCount int
	verified    bool

	onSignedOut func()

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// PollerOption customizes poller construction.
type PollerOption func(*VerificationPoller)

// WithPollerLogger overrides the default logger.
func WithPollerLogger(logger Logger) PollerOption {
	return func(p *VerificationPoller) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithPollInterval overrides the re-check interval.
func WithPollInterval(interval time.Duration) PollerOption {
	return func(p *VerificationPoller) {
		if interval > 0 {
			p.interval = interval
		}
	}
}

// WithRedirectGrace overrides the delay between detecting verification and
// invoking the completion callback.
func WithRedirectGrace(grace time.Duration) PollerOption {
	return func(p *VerificationPoller) {
		if grace >= 0 {
			p.grace = grace
		}
	}
}

// WithResendLimit overrides the manual resend cap.
func WithResendLimit(limit int) PollerOption {
	return func(p *VerificationPoller) {
		if limit > 0 {
			p.resendLimit = limit
		}
	}
}

// WithSignedOutHandler sets the callback invoked when a check finds no
// active session. The handler typically navigates to the login page.
func WithSignedOutHandler(fn func()) PollerOption {
	return func(p *VerificationPoller) {
		p.onSignedOut = fn
	}
}

// NewVerificationPoller builds a poller around the given client.
func NewVerificationPoller(client *Client, opts ...PollerOption) *VerificationPoller {
	p := &VerificationPoller{
		client:      client,
		logger:      defLogger{},
		interval:    DefaultPollInterval,
		grace:       DefaultRedirectGrace,
		resendLimit: DefaultResendLimit,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	return p
}

// Run checks immediately, then on every interval tick, until the principal
// verifies, the session disappears, Stop is called, or the context ends.
// onVerified fires exactly once, after the grace period, and only if the
// poller was not stopped in the meantime. A check that finds no active
// session ends the loop with ErrNoCurrentPrincipal after invoking the
// signed-out handler; polling without a principal can never converge.
// Run blocks; callers start it on its own goroutine.
func (p *VerificationPoller) Run(ctx context.Context, onVerified func()) error {
	defer close(p.done)

	if ok, err := p.check(ctx); err != nil {
		if errors.Is(err, ErrNoCurrentPrincipal) {
			return p.signedOut()
		}
		p.logger.Warn("verification check failed", "error", err)
	} else if ok {
		return p.finish(ctx, onVerified)
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.stop:
			return nil
		case <-ticker.C:
			ok, err := p.check(ctx)
			if err != nil {
				if errors.Is(err, ErrNoCurrentPrincipal) {
					return p.signedOut()
				}
				// transient failures keep the loop alive, the next tick
				// gets a fresh read
				p.logger.Warn("verification check failed", "error", err)
				continue
			}
			if ok {
				return p.finish(ctx, onVerified)
			}
		}
	}
}

func (p *VerificationPoller) signedOut() error {
	p.logger.Info("verification polling stopped, no active session")
	if p.onSignedOut != nil {
		p.onSignedOut()
	}
	return ErrNoCurrentPrincipal
}

// Verified reports whether a check has observed the verified flag.
func (p *VerificationPoller) Verified() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.verified
}

// Resend sends another verification email, enforcing the local resend cap
// before the provider is contacted. Attempts past the cap fail with a rate
// limit error without any network activity.
func (p *VerificationPoller) Resend(ctx context.Context) error {
	p.mu.Lock()
	if p.resendCount >= p.resendLimit {
		p.mu.Unlock()
		return errors.New("verification email resend limit reached", errors.CategoryRateLimit).
			WithTextCode(TextCodeTooManyRequests).
			WithMetadata(map[string]any{"limit": p.resendLimit})
	}
	p.resendCount++
	count := p.resendCount
	p.mu.Unlock()

	if err := p.client.SendVerificationEmail(ctx); err != nil {
		p.logger.Error("verification email resend failed", "error", err, "attempt", count)
		return err
	}

	p.logger.Info("verification email resent", "attempt", count, "limit", p.resendLimit)
	return nil
}

// ResendsLeft reports how many manual resends remain.
func (p *VerificationPoller) ResendsLeft() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	left := p.resendLimit - p.resendCount
	if left < 0 {
		return 0
	}
	return left
}

// Stop halts the polling loop. Safe to call multiple times and concurrently
// with Run; a stop that races the grace period suppresses the callback.
func (p *VerificationPoller) Stop() {
	p.stopOnce.Do(func() {
		close(p.stop)
	})
}

// Wait blocks until the polling loop has exited.
func (p *VerificationPoller) Wait() {
	<-p.done
}

func (p *VerificationPoller) check(ctx context.Context) (bool, error) {
	ok, err := p.client.SyncVerification(ctx)
	if err != nil {
		return false, err
	}

	if ok {
		p.mu.Lock()
		p.verified = true
		p.mu.Unlock()
	}

	return ok, nil
}

func (p *VerificationPoller) finish(ctx context.Context, onVerified func()) error {
	timer := time.NewTimer(p.grace)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.stop:
		return nil
	case <-timer.C:
	}

	if onVerified != nil {
		onVerified()
	}

	return nil
}
