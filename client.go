package account

import (
	"context"
	"time"
)

// Client wraps the external identity backend and normalizes its failures
// into the package error taxonomy. It is the only component that talks to
// the provider directly; session state, guards, and pollers all go through
// it.
type Client struct {
	provider     IdentityProvider
	records      VerificationRecords
	logger       Logger
	activitySink ActivitySink

	// continue-URLs for the retry path of verification emails
	landingRedirect string
	verifyRedirect  string

	now func() time.Time
}

// ClientOption customizes Client construction.
type ClientOption func(*Client)

// WithClientLogger overrides the default logger.
func WithClientLogger(logger Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithActivitySink configures an ActivitySink for emitting account events.
func WithActivitySink(sink ActivitySink) ClientOption {
	return func(c *Client) {
		c.activitySink = normalizeActivitySink(sink)
	}
}

// WithRedirectTargets sets the continue-URLs used when email delivery is
// retried with explicit redirect configuration.
func WithRedirectTargets(landing, verify string) ClientOption {
	return func(c *Client) {
		if landing != "" {
			c.landingRedirect = landing
		}
		if verify != "" {
			c.verifyRedirect = verify
		}
	}
}

// WithClientClock injects a custom clock (useful for tests).
func WithClientClock(clock func() time.Time) ClientOption {
	return func(c *Client) {
		if clock != nil {
			c.now = clock
		}
	}
}

// NewClient returns a new identity client adapter.
func NewClient(provider IdentityProvider, records VerificationRecords, opts ...ClientOption) *Client {
	c := &Client{
		provider:        provider,
		records:         records,
		logger:          defLogger{},
		activitySink:    noopActivitySink{},
		landingRedirect: "/dashboard",
		verifyRedirect:  "/verify-email",
		now:             time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

// SignUp creates a principal, best-effort sets the display name, and sends
// the verification email with a single redirect-target retry. Email failures
// do not fail the sign-up; the principal exists either way and the caller is
// responsible for offering a manual resend.
func (c *Client) SignUp(ctx context.Context, email, password, displayName string) (*Principal, error) {
	principal, err := c.provider.CreateAccount(ctx, email, password)
	if err != nil {
		c.logger.Error("SignUp create account error", "error", err)
		return nil, translateProviderError(err)
	}

	if displayName != "" {
		if err := c.provider.UpdateDisplayName(ctx, principal.ID, displayName); err != nil {
			// non-fatal, the principal itself was created successfully
			c.logger.Warn("SignUp display name update failed", "error", err, "principal", principal.ID)
		} else {
			principal.DisplayName = displayName
		}
	}

	if err := c.provider.SendVerificationEmail(ctx, principal.ID, nil); err != nil {
		c.logger.Warn("SignUp verification email failed, retrying with redirect target", "error", err)

		retryErr := c.provider.SendVerificationEmail(ctx, principal.ID, &EmailOptions{
			RedirectTarget: c.landingRedirect,
			HandleInApp:    true,
		})
		if retryErr != nil {
			c.logger.Error("SignUp verification email retry failed", "error", retryErr)
		}
	}

	c.emitEvent(ctx, ActivityEventSignUp, principal.ID, map[string]any{"email": email})

	return principal, nil
}

// SignIn authenticates, force-refreshes the verification flag, and rejects
// unverified principals after signing the session back out. On success the
// last-login timestamp is recorded opportunistically.
func (c *Client) SignIn(ctx context.Context, email, password string) (*Principal, error) {
	principal, err := c.provider.SignIn(ctx, email, password)
	if err != nil {
		c.logger.Error("SignIn error", "error", err, "email", email)
		c.emitEvent(ctx, ActivityEventLoginFailure, "", map[string]any{
			"email": email,
			"error": err.Error(),
		})
		return nil, translateProviderError(err)
	}

	if reloaded, err := c.provider.ReloadPrincipal(ctx); err == nil && reloaded != nil {
		principal = reloaded
	}

	if !principal.EmailVerified {
		if err := c.provider.SignOut(ctx); err != nil {
			c.logger.Error("SignIn teardown of unverified session failed", "error", err)
		}
		c.emitEvent(ctx, ActivityEventLoginFailure, principal.ID, map[string]any{
			"email": email,
			"error": ErrEmailNotVerified.Message,
		})
		return nil, ErrEmailNotVerified
	}

	if err := c.records.TouchLastLogin(ctx, principal.ID, c.now()); err != nil {
		// non-fatal, the session is already established
		c.logger.Warn("SignIn failed to record last login", "error", err)
	}

	c.emitEvent(ctx, ActivityEventLoginSuccess, principal.ID, map[string]any{"email": email})

	return principal, nil
}

// SignOut clears the provider session. Errors are never swallowed.
func (c *Client) SignOut(ctx context.Context) error {
	if err := c.provider.SignOut(ctx); err != nil {
		c.logger.Error("SignOut error", "error", err)
		return translateProviderError(err)
	}

	c.emitEvent(ctx, ActivityEventSignOut, "", nil)
	return nil
}

// SendVerificationEmail sends a verification email to the current principal.
// Returns ErrNoCurrentPrincipal when signed out and succeeds without sending
// when the principal is already verified.
func (c *Client) SendVerificationEmail(ctx context.Context) error {
	principal, err := c.provider.ReloadPrincipal(ctx)
	if err != nil {
		return translateProviderError(err)
	}

	if principal == nil {
		return ErrNoCurrentPrincipal
	}

	if principal.EmailVerified {
		c.logger.Debug("SendVerificationEmail principal already verified", "principal", principal.ID)
		return nil
	}

	if err := c.provider.SendVerificationEmail(ctx, principal.ID, nil); err != nil {
		c.logger.Warn("SendVerificationEmail failed, retrying with redirect target", "error", err)

		retryErr := c.provider.SendVerificationEmail(ctx, principal.ID, &EmailOptions{
			RedirectTarget: c.verifyRedirect,
			HandleInApp:    true,
		})
		if retryErr != nil {
			c.logger.Error("SendVerificationEmail retry failed", "error", retryErr)
			return translateProviderError(retryErr)
		}
	}

	c.emitEvent(ctx, ActivityEventVerificationSent, principal.ID, nil)
	return nil
}

// CurrentPrincipal force-reloads before returning, so the verification flag
// is never stale by more than one round trip. Returns nil, nil when no
// session is active.
func (c *Client) CurrentPrincipal(ctx context.Context) (*Principal, error) {
	principal, err := c.provider.ReloadPrincipal(ctx)
	if err != nil {
		return nil, translateProviderError(err)
	}
	return principal, nil
}

// IsVerified reports true only when the backend's native flag and the
// application verification record agree. A provider flag that flipped true
// before its side effects were persisted still reads as unverified.
func (c *Client) IsVerified(ctx context.Context) (bool, error) {
	principal, err := c.provider.ReloadPrincipal(ctx)
	if err != nil {
		return false, translateProviderError(err)
	}

	if principal == nil || !principal.EmailVerified {
		return false, nil
	}

	record, err := c.records.Get(ctx, principal.ID)
	if err != nil {
		if IsRecordNotFound(err) {
			return false, nil
		}
		return false, err
	}

	return record.IsVerified, nil
}

// SyncVerification persists the write-once verification record when the
// backend's native flag has become true. Returns whether the principal is
// verified on the backend side.
func (c *Client) SyncVerification(ctx context.Context) (bool, error) {
	principal, err := c.provider.ReloadPrincipal(ctx)
	if err != nil {
		return false, translateProviderError(err)
	}

	if principal == nil {
		return false, ErrNoCurrentPrincipal
	}

	if !principal.EmailVerified {
		return false, nil
	}

	if err := c.records.MarkVerified(ctx, principal.ID, c.now()); err != nil {
		return false, err
	}

	c.emitEvent(ctx, ActivityEventEmailVerified, principal.ID, nil)
	return true, nil
}

// ResetPassword asks the backend to deliver a password-reset email.
func (c *Client) ResetPassword(ctx context.Context, email string) error {
	if err := c.provider.SendPasswordReset(ctx, email); err != nil {
		c.logger.Error("ResetPassword error", "error", err)
		return translateProviderError(err)
	}

	c.emitEvent(ctx, ActivityEventPasswordResetSent, "", map[string]any{"email": email})
	return nil
}

// Subscribe registers for push notifications on principal changes. The
// listener receives nil on sign-out. The returned handle must be invoked on
// teardown to release the provider listener.
func (c *Client) Subscribe(listener func(*Principal)) Unsubscribe {
	return c.provider.Subscribe(listener)
}

func (c *Client) emitEvent(ctx context.Context, eventType ActivityEventType, principalID string, metadata map[string]any) {
	sink := normalizeActivitySink(c.activitySink)
	event := ActivityEvent{
		EventType:   eventType,
		PrincipalID: principalID,
		Metadata:    metadata,
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = c.now()
	}

	if err := sink.Record(ctx, event); err != nil {
		c.logger.Warn("activity sink record error: %v", err)
	}
}
