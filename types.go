package account

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Principal is the authenticated visitor as known to the client. It is a
// read-through cached copy of the record owned by the identity backend.
type Principal struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	DisplayName   string     `json:"display_name,omitempty"`
	EmailVerified bool       `json:"email_verified"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
}

// EmailOptions configures how the identity backend delivers account emails.
// RedirectTarget is the continue-URL embedded in the verification link.
type EmailOptions struct {
	RedirectTarget string
	HandleInApp    bool
}

// Unsubscribe releases a principal-change listener. Every caller of
// Subscribe owns exactly one of these and must invoke it on teardown.
type Unsubscribe func()

// IdentityProvider is the external identity backend. All operations are
// opaque remote calls; backend failures surface as *ProviderError, transport
// problems as plain errors.
type IdentityProvider interface {
	CreateAccount(ctx context.Context, email, password string) (*Principal, error)
	UpdateDisplayName(ctx context.Context, id, displayName string) error
	SignIn(ctx context.Context, email, password string) (*Principal, error)
	SignOut(ctx context.Context) error
	SendVerificationEmail(ctx context.Context, id string, opts *EmailOptions) error
	SendPasswordReset(ctx context.Context, email string) error
	// ReloadPrincipal re-fetches the current principal so the verification
	// flag is never stale by more than one round trip. Returns nil, nil
	// when no session is active.
	ReloadPrincipal(ctx context.Context) (*Principal, error)
	Subscribe(listener func(*Principal)) Unsubscribe
}

// TokenService mints and validates first-party session tokens.
type TokenService interface {
	Generate(principal *Principal) (string, error)
	Validate(tokenString string) (SessionClaims, error)
}

// TokenStore persists the opaque session artifact between runs.
type TokenStore interface {
	Save(token string) error
	Load() (string, error)
	Clear() error
}

// Config holds session options
type Config interface {
	GetSigningKey() string
	GetSigningMethod() string
	GetContextKey() string
	GetTokenExpiration() int
	GetTokenLookup() string
	GetAuthScheme() string
	GetIssuer() string
	GetAudience() []string
	GetLoginRoute() string
	GetVerificationRoute() string
	GetLandingRoute() string
	GetRejectedRouteKey() string
	GetRejectedRouteDefault() string
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] ACCOUNT "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] ACCOUNT "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] ACCOUNT "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] ACCOUNT "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
