package account_test

import (
	"context"
	"testing"

	account "github.com/iblameyuvraj/carpartsdetectionsystem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newGuardFixture(t *testing.T, policy account.GuardPolicy) (*MockProvider, *account.Guard) {
	t.Helper()

	provider := &MockProvider{}
	records := &MockRecords{}
	client := account.NewClient(provider, records)

	return provider, account.NewGuard(client, policy)
}

func TestGuardRedirectsAnonymousToLogin(t *testing.T) {
	provider, guard := newGuardFixture(t, account.GuardPolicy{RequireVerification: true})
	provider.On("ReloadPrincipal", mock.Anything).Return(nil, nil)

	decision := guard.Check(context.Background())

	assert.Equal(t, account.GuardRedirecting, decision.State)
	assert.Equal(t, "/log-in", decision.Redirect)
	assert.Equal(t, account.GuardRedirecting, guard.State())
}

func TestGuardRedirectsUnverifiedToVerification(t *testing.T) {
	provider, guard := newGuardFixture(t, account.GuardPolicy{RequireVerification: true})
	provider.On("ReloadPrincipal", mock.Anything).
		Return(&account.Principal{ID: "p-1", EmailVerified: false}, nil)

	decision := guard.Check(context.Background())

	assert.Equal(t, account.GuardRedirecting, decision.State)
	assert.Equal(t, "/verify-email", decision.Redirect)
}

func TestGuardAllowsVerifiedPrincipal(t *testing.T) {
	provider, guard := newGuardFixture(t, account.GuardPolicy{RequireVerification: true})
	provider.On("ReloadPrincipal", mock.Anything).
		Return(&account.Principal{ID: "p-1", EmailVerified: true}, nil)

	decision := guard.Check(context.Background())

	assert.Equal(t, account.GuardAllowed, decision.State)
	assert.Empty(t, decision.Redirect)
	assert.Equal(t, account.GuardAllowed, guard.State())
}

func TestGuardAllowsUnverifiedWhenPolicyPermits(t *testing.T) {
	provider, guard := newGuardFixture(t, account.GuardPolicy{RequireVerification: false})
	provider.On("ReloadPrincipal", mock.Anything).
		Return(&account.Principal{ID: "p-1", EmailVerified: false}, nil)

	decision := guard.Check(context.Background())

	assert.Equal(t, account.GuardAllowed, decision.State)
}

func TestGuardFailsClosedOnError(t *testing.T) {
	provider, guard := newGuardFixture(t, account.GuardPolicy{RequireVerification: true})
	provider.On("ReloadPrincipal", mock.Anything).Return(nil, assert.AnError)

	decision := guard.Check(context.Background())

	// an unknown auth state never resolves to access
	assert.Equal(t, account.GuardRedirecting, decision.State)
	assert.Equal(t, "/verify-email", decision.Redirect)
}

func TestGuardCustomRoutes(t *testing.T) {
	provider := &MockProvider{}
	records := &MockRecords{}
	client := account.NewClient(provider, records)

	guard := account.NewGuard(client, account.GuardPolicy{RequireVerification: true},
		account.WithGuardRoutes("/enter", "/confirm"))

	provider.On("ReloadPrincipal", mock.Anything).Return(nil, nil)

	decision := guard.Check(context.Background())
	assert.Equal(t, "/enter", decision.Redirect)
}

func TestGuardWatchFlipsAllowedOnSignOut(t *testing.T) {
	provider, guard := newGuardFixture(t, account.GuardPolicy{RequireVerification: true})
	provider.On("ReloadPrincipal", mock.Anything).
		Return(&account.Principal{ID: "p-1", EmailVerified: true}, nil)

	decision := guard.Check(context.Background())
	assert.Equal(t, account.GuardAllowed, decision.State)

	var redirectedTo string
	guard.Watch(func(route string) {
		redirectedTo = route
	})

	// a concurrent sign-out must not leave the view allowed
	provider.Push(nil)

	assert.Equal(t, account.GuardRedirecting, guard.State())
	assert.Equal(t, "/log-in", redirectedTo)

	guard.Close()
	assert.Zero(t, provider.LiveListeners())
}

func TestGuardWatchFlipsOnDeverification(t *testing.T) {
	provider, guard := newGuardFixture(t, account.GuardPolicy{RequireVerification: true})

	var redirectedTo string
	guard.Watch(func(route string) {
		redirectedTo = route
	})

	provider.Push(&account.Principal{ID: "p-1", EmailVerified: false})

	assert.Equal(t, account.GuardRedirecting, guard.State())
	assert.Equal(t, "/verify-email", redirectedTo)
}
