package account

import (
	"context"
	"sync"
)

// SessionState is the single in-memory source of truth for who is signed in
// right now. Every field is derived from Client responses; it performs no
// independent mutation. A fresh session token is minted whenever the
// underlying principal changes and cleared on sign-out.
type SessionState struct {
	mu sync.RWMutex

	client *Client
	tokens TokenService
	store  TokenStore
	logger Logger

	principal *Principal
	token     string
	loading   bool
	lastErr   error

	unsubscribe Unsubscribe
}

// SessionStateOption customizes SessionState construction.
type SessionStateOption func(*SessionState)

// WithSessionLogger overrides the default logger.
func WithSessionLogger(logger Logger) SessionStateOption {
	return func(s *SessionState) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSessionState builds a session holder around the given client. Call
// Start to perform the initial load and register the provider subscription,
// and Close to release it.
func NewSessionState(client *Client, tokens TokenService, store TokenStore, opts ...SessionStateOption) *SessionState {
	s := &SessionState{
		client:  client,
		tokens:  tokens,
		store:   store,
		logger:  defLogger{},
		loading: true,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// Start performs the initial principal load and subscribes to provider
// pushes. It is safe to render a loading state until Start returns.
func (s *SessionState) Start(ctx context.Context) error {
	principal, err := s.client.CurrentPrincipal(ctx)

	s.apply(principal, err)

	s.mu.Lock()
	s.unsubscribe = s.client.Subscribe(func(p *Principal) {
		s.apply(p, nil)
	})
	s.mu.Unlock()

	return err
}

// Refresh re-reads the current principal from the client.
func (s *SessionState) Refresh(ctx context.Context) {
	principal, err := s.client.CurrentPrincipal(ctx)
	s.apply(principal, err)
}

// Current returns the cached principal, or nil when signed out.
func (s *SessionState) Current() *Principal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.principal
}

// Token returns the session token for the current principal, empty when
// signed out.
func (s *SessionState) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Loading reports whether the initial auth check is still outstanding.
func (s *SessionState) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Err returns the last error observed while deriving session state.
func (s *SessionState) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Close releases the provider subscription. Required on teardown to avoid
// leaking the listener.
func (s *SessionState) Close() {
	s.mu.Lock()
	unsub := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

func (s *SessionState) apply(principal *Principal, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loading = false
	s.lastErr = err

	if err != nil {
		return
	}

	s.principal = principal

	if principal == nil {
		s.token = ""
		if s.store != nil {
			if err := s.store.Clear(); err != nil {
				s.logger.Warn("session state failed to clear stored token", "error", err)
			}
		}
		return
	}

	token, err := s.tokens.Generate(principal)
	if err != nil {
		s.logger.Error("session state failed to mint token", "error", err)
		s.lastErr = err
		// the previous principal's token must not outlive it
		s.token = ""
		if s.store != nil {
			if cerr := s.store.Clear(); cerr != nil {
				s.logger.Warn("session state failed to clear stored token", "error", cerr)
			}
		}
		return
	}

	s.token = token
	if s.store != nil {
		if err := s.store.Save(token); err != nil {
			s.logger.Warn("session state failed to persist token", "error", err)
		}
	}
}
