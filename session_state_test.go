package account_test

import (
	"context"
	"testing"

	account "github.com/iblameyuvraj/carpartsdetectionsystem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestSessionStateStartLoadsPrincipal(t *testing.T) {
	provider := &MockProvider{}
	records := &MockRecords{}
	tokens := &MockTokens{}

	principal := &account.Principal{ID: "p-1", Email: "who@example.com", EmailVerified: true}
	provider.On("ReloadPrincipal", mock.Anything).Return(principal, nil)
	tokens.On("Generate", principal).Return("token-1", nil)

	client := account.NewClient(provider, records)
	store := account.NewMemoryTokenStore()

	state := account.NewSessionState(client, tokens, store)
	assert.True(t, state.Loading())

	err := state.Start(context.Background())
	assert.NoError(t, err)

	assert.False(t, state.Loading())
	assert.Equal(t, "p-1", state.Current().ID)
	assert.Equal(t, "token-1", state.Token())

	saved, err := store.Load()
	assert.NoError(t, err)
	assert.Equal(t, "token-1", saved)

	state.Close()
	assert.Zero(t, provider.LiveListeners())
}

func TestSessionStateStartSignedOut(t *testing.T) {
	provider := &MockProvider{}
	records := &MockRecords{}
	tokens := &MockTokens{}

	provider.On("ReloadPrincipal", mock.Anything).Return(nil, nil)

	client := account.NewClient(provider, records)
	state := account.NewSessionState(client, tokens, account.NewMemoryTokenStore())

	assert.NoError(t, state.Start(context.Background()))
	assert.Nil(t, state.Current())
	assert.Empty(t, state.Token())
	assert.False(t, state.Loading())
}

func TestSessionStatePushUpdatesPrincipal(t *testing.T) {
	provider := &MockProvider{}
	records := &MockRecords{}
	tokens := &MockTokens{}

	provider.On("ReloadPrincipal", mock.Anything).Return(nil, nil)

	next := &account.Principal{ID: "p-2", Email: "new@example.com"}
	tokens.On("Generate", next).Return("token-2", nil)

	client := account.NewClient(provider, records)
	store := account.NewMemoryTokenStore()
	state := account.NewSessionState(client, tokens, store)

	assert.NoError(t, state.Start(context.Background()))
	assert.Nil(t, state.Current())

	provider.Push(next)

	assert.Equal(t, "p-2", state.Current().ID)
	assert.Equal(t, "token-2", state.Token())
}

func TestSessionStateSignOutClearsToken(t *testing.T) {
	provider := &MockProvider{}
	records := &MockRecords{}
	tokens := &MockTokens{}

	principal := &account.Principal{ID: "p-1", EmailVerified: true}
	provider.On("ReloadPrincipal", mock.Anything).Return(principal, nil)
	tokens.On("Generate", principal).Return("token-1", nil)

	client := account.NewClient(provider, records)
	store := account.NewMemoryTokenStore()
	state := account.NewSessionState(client, tokens, store)

	assert.NoError(t, state.Start(context.Background()))
	assert.Equal(t, "token-1", state.Token())

	provider.Push(nil)

	assert.Nil(t, state.Current())
	assert.Empty(t, state.Token())

	saved, err := store.Load()
	assert.NoError(t, err)
	assert.Empty(t, saved)
}

func TestSessionStateMintFailureDropsStaleToken(t *testing.T) {
	provider := &MockProvider{}
	records := &MockRecords{}
	tokens := &MockTokens{}

	first := &account.Principal{ID: "p-1", EmailVerified: true}
	provider.On("ReloadPrincipal", mock.Anything).Return(first, nil)
	tokens.On("Generate", first).Return("token-1", nil)

	next := &account.Principal{ID: "p-2", Email: "new@example.com"}
	tokens.On("Generate", next).Return("", assert.AnError)

	client := account.NewClient(provider, records)
	store := account.NewMemoryTokenStore()
	state := account.NewSessionState(client, tokens, store)

	assert.NoError(t, state.Start(context.Background()))
	assert.Equal(t, "token-1", state.Token())

	provider.Push(next)

	// the old principal's token must not survive the principal change
	assert.Equal(t, "p-2", state.Current().ID)
	assert.Empty(t, state.Token())
	assert.Error(t, state.Err())

	saved, err := store.Load()
	assert.NoError(t, err)
	assert.Empty(t, saved)
}

func TestSessionStateErrorKeepsLastGoodPrincipal(t *testing.T) {
	provider := &MockProvider{}
	records := &MockRecords{}
	tokens := &MockTokens{}

	principal := &account.Principal{ID: "p-1", EmailVerified: true}
	provider.On("ReloadPrincipal", mock.Anything).Return(principal, nil).Once()
	provider.On("ReloadPrincipal", mock.Anything).Return(nil, assert.AnError)
	tokens.On("Generate", principal).Return("token-1", nil)

	client := account.NewClient(provider, records)
	state := account.NewSessionState(client, tokens, account.NewMemoryTokenStore())

	assert.NoError(t, state.Start(context.Background()))
	assert.Equal(t, "p-1", state.Current().ID)

	state.Refresh(context.Background())

	assert.Error(t, state.Err())
	assert.Equal(t, "p-1", state.Current().ID)
}
