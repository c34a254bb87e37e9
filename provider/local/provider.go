// Package local is a self-contained identity backend stored in the
// application database. It mirrors the failure codes of a hosted identity
// service so the client adapter treats both identically.
package local

import (
	"context"
	"fmt"
	"sync"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	account "github.com/iblameyuvraj/carpartsdetectionsystem"
)

// MaxLoginAttempts is the maximum number of attempts a user gets
// in a period
var MaxLoginAttempts = 5

// CoolDownPeriod is the period in which we enforce a cool down
var CoolDownPeriod = "24h"

// Provider implements account.IdentityProvider against the local users store.
// It keeps at most one active session, like the browser SDK it stands in for.
type Provider struct {
	mu sync.Mutex

	users  Users
	mailer Mailer
	logger account.Logger

	verifyBase string

	current    *account.Principal
	listeners  map[int]func(*account.Principal)
	listenerID int
}

var _ account.IdentityProvider = (*Provider)(nil)

// Option customizes provider construction.
type Option func(*Provider)

// WithLogger overrides the default logger.
func WithLogger(logger account.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithVerifyBase sets the base URL embedded in verification links.
func WithVerifyBase(base string) Option {
	return func(p *Provider) {
		if base != "" {
			p.verifyBase = base
		}
	}
}

// New returns a local identity provider.
func New(users Users, mailer Mailer, opts ...Option) *Provider {
	p := &Provider{
		users:      users,
		mailer:     mailer,
		verifyBase: "/verify-email",
		listeners:  map[int]func(*account.Principal){},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	if p.logger == nil {
		p.logger = noopLogger{}
	}

	return p
}

// CreateAccount registers a new user and opens a session for it, matching
// the sign-up flow of hosted identity SDKs. The account id is derived from
// the email so replayed sign-ups collide instead of duplicating.
func (p *Provider) CreateAccount(ctx context.Context, email, password string) (*account.Principal, error) {
	if _, err := p.users.GetByIdentifier(ctx, email); err == nil {
		return nil, account.NewProviderError(account.ProviderCodeEmailInUse, "email already registered")
	} else if !repository.IsRecordNotFound(err) {
		return nil, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to hash password")
	}

	user := &User{
		Email:        email,
		PasswordHash: hash,
	}

	if id, err := hashid.NewUUID(email); err == nil {
		user.ID = id
	}

	created, err := p.users.Register(ctx, user)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to register user")
	}

	principal := principalFromUser(created)
	p.setCurrent(principal)

	return principal, nil
}

// UpdateDisplayName sets the display name on the stored user.
func (p *Provider) UpdateDisplayName(ctx context.Context, id, displayName string) error {
	user, err := p.users.GetByIdentifier(ctx, id)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return account.NewProviderError(account.ProviderCodeUserNotFound, "no user for id")
		}
		return err
	}

	if err := p.users.SetDisplayName(ctx, user.ID, displayName); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to update display name")
	}

	p.mu.Lock()
	if p.current != nil && p.current.ID == id {
		p.current.DisplayName = displayName
	}
	p.mu.Unlock()

	return nil
}

// SignIn verifies the password and opens a session. Failed attempts count
// toward a cooldown window; disabled users are rejected regardless of
// credentials.
func (p *Provider) SignIn(ctx context.Context, email, password string) (*account.Principal, error) {
	user, err := p.users.GetByIdentifier(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, account.NewProviderError(account.ProviderCodeUserNotFound, "no user for email")
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve user during sign in")
	}

	if user.Disabled {
		return nil, account.NewProviderError(account.ProviderCodeUserDisabled, "account disabled")
	}

	if user.LoginAttemptAt != nil {
		expired, err := account.IsOutsideThresholdPeriod(*user.LoginAttemptAt, CoolDownPeriod)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to calculate login attempt cooldown")
		}

		if expired {
			user.LoginAttempts = 0
		}
	}

	// if we have too many attempts in the given window, cool off!
	if user.LoginAttempts > MaxLoginAttempts {
		return nil, account.NewProviderError(account.ProviderCodeTooManyRequests, "too many login attempts")
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		if err2 := p.users.TrackAttemptedLogin(ctx, user); err2 != nil {
			return nil, errors.Wrap(err2, errors.CategoryInternal, "failed to track login attempt")
		}

		return nil, account.NewProviderError(account.ProviderCodeWrongPassword, "wrong password")
	}

	if err := p.users.TrackSuccessfulLogin(ctx, user); err != nil {
		p.logger.Error("failed to track successful login", "error", err)
	}

	principal := principalFromUser(user)
	p.setCurrent(principal)

	return principal, nil
}

// SignOut closes the active session. Signing out with no session is a no-op.
func (p *Provider) SignOut(ctx context.Context) error {
	p.setCurrent(nil)
	return nil
}

// SendVerificationEmail delivers a verification link for the given user.
func (p *Provider) SendVerificationEmail(ctx context.Context, id string, opts *account.EmailOptions) error {
	user, err := p.users.GetByIdentifier(ctx, id)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return account.NewProviderError(account.ProviderCodeUserNotFound, "no user for id")
		}
		return err
	}

	link := fmt.Sprintf("%s?uid=%s", p.verifyBase, user.ID)
	if opts != nil && opts.RedirectTarget != "" {
		link = fmt.Sprintf("%s&continue=%s", link, opts.RedirectTarget)
	}

	return p.mailer.SendVerification(ctx, user.Email, link)
}

// SendPasswordReset delivers a password reset link. Unknown addresses do not
// leak: the call succeeds without sending.
func (p *Provider) SendPasswordReset(ctx context.Context, email string) error {
	user, err := p.users.GetByIdentifier(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil
		}
		return err
	}

	link := fmt.Sprintf("/password-reset/%s", user.ID)
	return p.mailer.SendPasswordReset(ctx, user.Email, link)
}

// ReloadPrincipal re-reads the active session's user so the verification
// flag is fresh. Returns nil, nil when no session is open.
func (p *Provider) ReloadPrincipal(ctx context.Context) (*account.Principal, error) {
	p.mu.Lock()
	current := p.current
	p.mu.Unlock()

	if current == nil {
		return nil, nil
	}

	user, err := p.users.GetByIdentifier(ctx, current.ID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			// session refers to a user that no longer exists
			p.setCurrent(nil)
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to reload principal")
	}

	principal := principalFromUser(user)

	p.mu.Lock()
	p.current = principal
	p.mu.Unlock()

	return principal, nil
}

// Subscribe registers a listener for session changes. The listener receives
// nil on sign-out.
func (p *Provider) Subscribe(listener func(*account.Principal)) account.Unsubscribe {
	p.mu.Lock()
	p.listenerID++
	id := p.listenerID
	p.listeners[id] = listener
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// VerifyEmail flips the stored verification flag. This is what the emailed
// link resolves to in a deployment without a hosted identity service.
func (p *Provider) VerifyEmail(ctx context.Context, id string) error {
	user, err := p.users.GetByIdentifier(ctx, id)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return account.NewProviderError(account.ProviderCodeUserNotFound, "no user for id")
		}
		return err
	}

	if err := p.users.MarkEmailVerified(ctx, user.ID); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to mark email verified")
	}

	return nil
}

func (p *Provider) setCurrent(principal *account.Principal) {
	p.mu.Lock()
	p.current = principal
	listeners := make([]func(*account.Principal), 0, len(p.listeners))
	for _, l := range p.listeners {
		listeners = append(listeners, l)
	}
	p.mu.Unlock()

	for _, l := range listeners {
		if l != nil {
			l(principal)
		}
	}
}

func principalFromUser(user *User) *account.Principal {
	return &account.Principal{
		ID:            user.ID.String(),
		Email:         user.Email,
		DisplayName:   user.DisplayName,
		EmailVerified: user.EmailVerified,
		LastLoginAt:   user.LoggedInAt,
	}
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
