package account_test

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-errors"
	account "github.com/iblameyuvraj/carpartsdetectionsystem"
	"github.com/stretchr/testify/mock"
)

// MockProvider implements account.IdentityProvider
type MockProvider struct {
	mock.Mock

	mu        sync.Mutex
	listeners []func(*account.Principal)
}

func (m *MockProvider) CreateAccount(ctx context.Context, email, password string) (*account.Principal, error) {
	args := m.Called(ctx, email, password)
	p, _ := args.Get(0).(*account.Principal)
	return p, args.Error(1)
}

func (m *MockProvider) UpdateDisplayName(ctx context.Context, id, displayName string) error {
	args := m.Called(ctx, id, displayName)
	return args.Error(0)
}

func (m *MockProvider) SignIn(ctx context.Context, email, password string) (*account.Principal, error) {
	args := m.Called(ctx, email, password)
	p, _ := args.Get(0).(*account.Principal)
	return p, args.Error(1)
}

func (m *MockProvider) SignOut(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockProvider) SendVerificationEmail(ctx context.Context, id string, opts *account.EmailOptions) error {
	args := m.Called(ctx, id, opts)
	return args.Error(0)
}

func (m *MockProvider) SendPasswordReset(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

func (m *MockProvider) ReloadPrincipal(ctx context.Context) (*account.Principal, error) {
	args := m.Called(ctx)
	p, _ := args.Get(0).(*account.Principal)
	return p, args.Error(1)
}

func (m *MockProvider) Subscribe(listener func(*account.Principal)) account.Unsubscribe {
	m.mu.Lock()
	m.listeners = append(m.listeners, listener)
	idx := len(m.listeners) - 1
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		m.listeners[idx] = nil
		m.mu.Unlock()
	}
}

// Push delivers a principal change to every live listener.
func (m *MockProvider) Push(principal *account.Principal) {
	m.mu.Lock()
	listeners := append([]func(*account.Principal){}, m.listeners...)
	m.mu.Unlock()

	for _, l := range listeners {
		if l != nil {
			l(principal)
		}
	}
}

// LiveListeners reports how many listeners have not unsubscribed.
func (m *MockProvider) LiveListeners() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, l := range m.listeners {
		if l != nil {
			n++
		}
	}
	return n
}

// MockRecords implements account.VerificationRecords
type MockRecords struct {
	mock.Mock
}

func (m *MockRecords) Get(ctx context.Context, principalID string) (*account.VerificationRecord, error) {
	args := m.Called(ctx, principalID)
	r, _ := args.Get(0).(*account.VerificationRecord)
	return r, args.Error(1)
}

func (m *MockRecords) MarkVerified(ctx context.Context, principalID string, at time.Time) error {
	args := m.Called(ctx, principalID, at)
	return args.Error(0)
}

func (m *MockRecords) TouchLastLogin(ctx context.Context, principalID string, at time.Time) error {
	args := m.Called(ctx, principalID, at)
	return args.Error(0)
}

func recordNotFoundErr() error {
	return errors.New("verification record not found", errors.CategoryNotFound)
}

// MockTokens implements account.TokenService
type MockTokens struct {
	mock.Mock
}

func (m *MockTokens) Generate(principal *account.Principal) (string, error) {
	args := m.Called(principal)
	return args.String(0), args.Error(1)
}

func (m *MockTokens) Validate(tokenString string) (account.SessionClaims, error) {
	args := m.Called(tokenString)
	c, _ := args.Get(0).(account.SessionClaims)
	return c, args.Error(1)
}

// MockActivitySink records events for assertions.
type MockActivitySink struct {
	mu     sync.Mutex
	events []account.ActivityEvent
}

func (m *MockActivitySink) Record(ctx context.Context, event account.ActivityEvent) error {
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
	return nil
}

func (m *MockActivitySink) Events() []account.ActivityEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]account.ActivityEvent{}, m.events...)
}

func (m *MockActivitySink) HasEvent(eventType account.ActivityEventType) bool {
	for _, e := range m.Events() {
		if e.EventType == eventType {
			return true
		}
	}
	return false
}
