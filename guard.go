package account

import (
	"context"
	"sync"
)

// GuardState is the route guard's lifecycle for a single navigation.
type GuardState string

const (
	// GuardChecking is the initial state on every navigation into a
	// guarded view; nothing is rendered while checking.
	GuardChecking GuardState = "checking"
	// GuardAllowed means the protected view may render.
	GuardAllowed GuardState = "allowed"
	// GuardRedirecting is terminal for the navigation; the visitor is
	// being sent to an entry page.
	GuardRedirecting GuardState = "redirecting"
)

// GuardPolicy configures what a guarded view requires.
type GuardPolicy struct {
	RequireVerification bool
}

// GuardDecision is the outcome of a guard check. Redirect is only set in
// the redirecting state.
type GuardDecision struct {
	State    GuardState
	Redirect string
}

// Guard gates rendering of a protected view. Any uncertainty about the auth
// or verification state resolves to a redirect, never to access.
type Guard struct {
	mu sync.Mutex

	client *Client
	policy GuardPolicy
	logger Logger

	loginRoute  string
	verifyRoute string

	state       GuardState
	unsubscribe Unsubscribe
}

// GuardOption customizes guard construction.
type GuardOption func(*Guard)

// WithGuardLogger overrides the default logger.
func WithGuardLogger(logger Logger) GuardOption {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithGuardRoutes overrides the login and verification entry routes.
func WithGuardRoutes(login, verify string) GuardOption {
	return func(g *Guard) {
		if login != "" {
			g.loginRoute = login
		}
		if verify != "" {
			g.verifyRoute = verify
		}
	}
}

// NewGuard returns a guard for the given policy.
func NewGuard(client *Client, policy GuardPolicy, opts ...GuardOption) *Guard {
	g := &Guard{
		client:      client,
		policy:      policy,
		logger:      defLogger{},
		loginRoute:  "/log-in",
		verifyRoute: "/verify-email",
		state:       GuardChecking,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	return g
}

// State returns the guard's current state.
func (g *Guard) State() GuardState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Check runs the entry decision for a navigation into the guarded view.
// Absent principal redirects to login; unverified under a verification
// policy redirects to the verification entry; errors fail closed to the
// verification entry.
func (g *Guard) Check(ctx context.Context) GuardDecision {
	g.setState(GuardChecking)

	principal, err := g.client.CurrentPrincipal(ctx)
	if err != nil {
		g.logger.Error("guard auth check failed, failing closed", "error", err)
		return g.redirect(g.verifyRoute)
	}

	if principal == nil {
		return g.redirect(g.loginRoute)
	}

	if g.policy.RequireVerification && !principal.EmailVerified {
		return g.redirect(g.verifyRoute)
	}

	g.setState(GuardAllowed)
	return GuardDecision{State: GuardAllowed}
}

// Watch subscribes to principal pushes so a concurrent sign-out or
// de-verification flips an already-allowed view into redirecting without a
// reload. onRedirect receives the target route. Close releases the listener.
func (g *Guard) Watch(onRedirect func(route string)) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.unsubscribe != nil {
		return
	}

	g.unsubscribe = g.client.Subscribe(func(principal *Principal) {
		if principal == nil {
			g.setState(GuardRedirecting)
			onRedirect(g.loginRoute)
			return
		}

		if g.policy.RequireVerification && !principal.EmailVerified {
			g.setState(GuardRedirecting)
			onRedirect(g.verifyRoute)
			return
		}

		g.setState(GuardAllowed)
	})
}

// Close releases the push subscription registered by Watch.
func (g *Guard) Close() {
	g.mu.Lock()
	unsub := g.unsubscribe
	g.unsubscribe = nil
	g.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

func (g *Guard) redirect(route string) GuardDecision {
	g.setState(GuardRedirecting)
	return GuardDecision{State: GuardRedirecting, Redirect: route}
}

func (g *Guard) setState(state GuardState) {
	g.mu.Lock()
	g.state = state
	g.mu.Unlock()
}
