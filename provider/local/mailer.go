package local

import (
	"context"

	account "github.com/iblameyuvraj/carpartsdetectionsystem"
)

// Mailer delivers account emails. The provider retries delivery with explicit
// redirect options when the first attempt fails, so implementations should
// not retry internally.
type Mailer interface {
	SendVerification(ctx context.Context, email, link string) error
	SendPasswordReset(ctx context.Context, email, link string) error
}

// LogMailer writes emails to the logger instead of delivering them. Intended
// for development and tests.
type LogMailer struct {
	Logger account.Logger
}

var _ Mailer = (*LogMailer)(nil)

func (m *LogMailer) SendVerification(ctx context.Context, email, link string) error {
	m.Logger.Info("verification email", "to", email, "link", link)
	return nil
}

func (m *LogMailer) SendPasswordReset(ctx context.Context, email, link string) error {
	m.Logger.Info("password reset email", "to", email, "link", link)
	return nil
}
