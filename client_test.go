package account_test

import (
	"context"
	"testing"
	"time"

	account "github.com/iblameyuvraj/carpartsdetectionsystem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestSignUpSendsVerificationEmail(t *testing.T) {
	provider := &MockProvider{}
	records := &MockRecords{}
	sink := &MockActivitySink{}

	principal := &account.Principal{ID: "p-1", Email: "new@example.com"}

	provider.On("CreateAccount", mock.Anything, "new@example.com", "secret").Return(principal, nil)
	provider.On("UpdateDisplayName", mock.Anything, "p-1", "New User").Return(nil)
	provider.On("SendVerificationEmail", mock.Anything, "p-1", (*account.EmailOptions)(nil)).Return(nil)

	client := account.NewClient(provider, records, account.WithActivitySink(sink))

	got, err := client.SignUp(context.Background(), "new@example.com", "secret", "New User")
	assert.NoError(t, err)
	assert.Equal(t, "p-1", got.ID)
	assert.Equal(t, "New User", got.DisplayName)
	assert.True(t, sink.HasEvent(account.ActivityEventSignUp))

	provider.AssertExpectations(t)
}

func TestSignUpRetriesEmailWithRedirectTarget(t *testing.T) {
	provider := &MockProvider{}
	records := &MockRecords{}

	principal := &account.Principal{ID: "p-1", Email: "new@example.com"}

	provider.On("CreateAccount", mock.Anything, "new@example.com", "secret").Return(principal, nil)
	provider.On("SendVerificationEmail", mock.Anything, "p-1", (*account.EmailOptions)(nil)).
		Return(assert.AnError).Once()
	provider.On("SendVerificationEmail", mock.Anything, "p-1", mock.MatchedBy(func(opts *account.EmailOptions) bool {
		return opts != nil && opts.RedirectTarget == "/dashboard" && opts.HandleInApp
	})).Return(nil).Once()

	client := account.NewClient(provider, records)

	// email delivery failures never fail the sign-up itself
	got, err := client.SignUp(context.Background(), "new@example.com", "secret", "")
	assert.NoError(t, err)
	assert.NotNil(t, got)

	provider.AssertExpectations(t)
}

func TestSignUpEmailInUse(t *testing.T) {
	provider := &MockProvider{}
	records := &MockRecords{}

	provider.On("CreateAccount", mock.Anything, "taken@example.com", "secret").
		Return(nil, account.NewProviderError(account.ProviderCodeEmailInUse, "email taken"))

	client := account.NewClient(provider, records)

	_, err := client.SignUp(context.Background(), "taken@example.com", "secret", "")
	assert.ErrorIs(t, err, account.ErrEmailAlreadyInUse)
}

func TestSignInRejectsUnverifiedAndTearsDownSession(t *testing.T) {
	provider := &MockProvider{}
	records := &MockRecords{}
	sink := &MockActivitySink{}

	unverified := &account.Principal{ID: "p-1", Email: "who@example.com", EmailVerified: false}

	provider.On("SignIn", mock.Anything, "who@example.com", "secret").Return(unverified, nil)
	provider.On("ReloadPrincipal", mock.Anything).Return(unverified, nil)
	provider.On("SignOut", mock.Anything).Return(nil)

	client := account.NewClient(provider, records, account.WithActivitySink(sink))

	_, err := client.SignIn(context.Background(), "who@example.com", "secret")
	assert.ErrorIs(t, err, account.ErrEmailNotVerified)
	assert.True(t, account.IsUnverifiedError(err))
	assert.True(t, sink.HasEvent(account.ActivityEventLoginFailure))

	// the unverified principal must not hold a session past the login step
	provider.AssertCalled(t, "SignOut", mock.Anything)
	records.AssertNotCalled(t, "TouchLastLogin", mock.Anything, mock.Anything, mock.Anything)
}

func TestSignInRecordsLastLogin(t *testing.T) {
	provider := &MockProvider{}
	records := &MockRecords{}
	sink := &MockActivitySink{}

	verified := &account.Principal{ID: "p-1", Email: "who@example.com", EmailVerified: true}
	now := time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC)

	provider.On("SignIn", mock.Anything, "who@example.com", "secret").Return(verified, nil)
	provider.On("ReloadPrincipal", mock.Anything).Return(verified, nil)
	records.On("TouchLastLogin", mock.Anything, "p-1", now).Return(nil)

	client := account.NewClient(provider, records,
		account.WithActivitySink(sink),
		account.WithClientClock(func() time.Time { return now }),
	)

	got, err := client.SignIn(context.Background(), "who@example.com", "secret")
	assert.NoError(t, err)
	assert.Equal(t, "p-1", got.ID)
	assert.True(t, sink.HasEvent(account.ActivityEventLoginSuccess))

	records.AssertExpectations(t)
}

func TestSignInLastLoginFailureIsNonFatal(t *testing.T) {
	provider := &MockProvider{}
	records := &MockRecords{}

	verified := &account.Principal{ID: "p-1", Email: "who@example.com", EmailVerified: true}

	provider.On("SignIn", mock.Anything, "who@example.com", "secret").Return(verified, nil)
	provider.On("ReloadPrincipal", mock.Anything).Return(verified, nil)
	records.On("TouchLastLogin", mock.Anything, "p-1", mock.Anything).Return(assert.AnError)

	client := account.NewClient(provider, records)

	_, err := client.SignIn(context.Background(), "who@example.com", "secret")
	assert.NoError(t, err)
}

func TestSignInErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		expected error
	}{
		{"invalid credential", account.ProviderCodeInvalidCredential, account.ErrInvalidCredentials},
		{"unknown user", account.ProviderCodeUserNotFound, account.ErrInvalidCredentials},
		{"wrong password", account.ProviderCodeWrongPassword, account.ErrInvalidCredentials},
		{"throttled", account.ProviderCodeTooManyRequests, account.ErrTooManyRequests},
		{"disabled", account.ProviderCodeUserDisabled, account.ErrAccountDisabled},
		{"network", account.ProviderCodeNetworkFailed, account.ErrNetworkFailure},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			provider := &MockProvider{}
			records := &MockRecords{}

			provider.On("SignIn", mock.Anything, "who@example.com", "nope").
				Return(nil, account.NewProviderError(tc.code, "backend says no"))

			client := account.NewClient(provider, records)

			_, err := client.SignIn(context.Background(), "who@example.com", "nope")
			assert.ErrorIs(t, err, tc.expected)
		})
	}
}

func TestSignInUnknownCodePropagates(t *testing.T) {
	provider := &MockProvider{}
	records := &MockRecords{}

	perr := account.NewProviderError("auth/something-new", "no idea")
	provider.On("SignIn", mock.Anything, "who@example.com", "pw").Return(nil, perr)

	client := account.NewClient(provider, records)

	_, err := client.SignIn(context.Background(), "who@example.com", "pw")
	assert.ErrorIs(t, err, perr)
}

func TestSendVerificationEmailNoSession(t *testing.T) {
	provider := &MockProvider{}
	records := &MockRecords{}

	provider.On("ReloadPrincipal", mock.Anything).Return(nil, nil)

	client := account.NewClient(provider, records)

	err := client.SendVerificationEmail(context.Background())
	assert.ErrorIs(t, err, account.ErrNoCurrentPrincipal)
}

func TestSendVerificationEmailAlreadyVerifiedNoop(t *testing.T) {
	provider := &MockProvider{}
	records := &MockRecords{}

	verified := &account.Principal{ID: "p-1", EmailVerified: true}
	provider.On("ReloadPrincipal", mock.Anything).Return(verified, nil)

	client := account.NewClient(provider, records)

	err := client.SendVerificationEmail(context.Background())
	assert.NoError(t, err)
	provider.AssertNotCalled(t, "SendVerificationEmail", mock.Anything, mock.Anything, mock.Anything)
}

func TestIsVerifiedRequiresBothFlags(t *testing.T) {
	ctx := context.Background()

	t.Run("backend flag false", func(t *testing.T) {
		provider := &MockProvider{}
		records := &MockRecords{}
		provider.On("ReloadPrincipal", mock.Anything).
			Return(&account.Principal{ID: "p-1", EmailVerified: false}, nil)

		client := account.NewClient(provider, records)

		ok, err := client.IsVerified(ctx)
		assert.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("no verification record", func(t *testing.T) {
		provider := &MockProvider{}
		records := &MockRecords{}
		provider.On("ReloadPrincipal", mock.Anything).
			Return(&account.Principal{ID: "p-1", EmailVerified: true}, nil)
		records.On("Get", mock.Anything, "p-1").
			Return(nil, recordNotFoundErr())

		client := account.NewClient(provider, records)

		ok, err := client.IsVerified(ctx)
		assert.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("both agree", func(t *testing.T) {
		provider := &MockProvider{}
		records := &MockRecords{}
		provider.On("ReloadPrincipal", mock.Anything).
			Return(&account.Principal{ID: "p-1", EmailVerified: true}, nil)
		records.On("Get", mock.Anything, "p-1").
			Return(&account.VerificationRecord{PrincipalID: "p-1", IsVerified: true}, nil)

		client := account.NewClient(provider, records)

		ok, err := client.IsVerified(ctx)
		assert.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestSyncVerificationPersistsRecord(t *testing.T) {
	provider := &MockProvider{}
	records := &MockRecords{}
	sink := &MockActivitySink{}

	now := time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC)
	verified := &account.Principal{ID: "p-1", EmailVerified: true}

	provider.On("ReloadPrincipal", mock.Anything).Return(verified, nil)
	records.On("MarkVerified", mock.Anything, "p-1", now).Return(nil)

	client := account.NewClient(provider, records,
		account.WithActivitySink(sink),
		account.WithClientClock(func() time.Time { return now }),
	)

	ok, err := client.SyncVerification(context.Background())
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, sink.HasEvent(account.ActivityEventEmailVerified))

	records.AssertExpectations(t)
}

func TestSyncVerificationUnverifiedDoesNotWrite(t *testing.T) {
	provider := &MockProvider{}
	records := &MockRecords{}

	provider.On("ReloadPrincipal", mock.Anything).
		Return(&account.Principal{ID: "p-1", EmailVerified: false}, nil)

	client := account.NewClient(provider, records)

	ok, err := client.SyncVerification(context.Background())
	assert.NoError(t, err)
	assert.False(t, ok)

	records.AssertNotCalled(t, "MarkVerified", mock.Anything, mock.Anything, mock.Anything)
}

func TestSyncVerificationNoSession(t *testing.T) {
	provider := &MockProvider{}
	records := &MockRecords{}

	provider.On("ReloadPrincipal", mock.Anything).Return(nil, nil)

	client := account.NewClient(provider, records)

	_, err := client.SyncVerification(context.Background())
	assert.ErrorIs(t, err, account.ErrNoCurrentPrincipal)
}
