// Package account manages the client-side session and email-verification
// lifecycle for the car parts detection service.
//
// Session lifecycle:
//   - Client wraps the identity backend (IdentityProvider) and normalizes its
//     failures into a small error taxonomy. It is the only component that
//     talks to the backend directly.
//   - SessionState is the single in-memory source of truth for who is signed
//     in right now. It mints a session token on every principal change and
//     clears it on sign-out.
//   - Guard gates protected views: absent principals redirect to login,
//     unverified principals to the verification page, and errors fail closed.
//
// Verification:
//   - An account is treated as verified only when the backend's native flag
//     and the application's verification record agree. VerificationPoller
//     drives the wait-for-verification page, re-checking on an interval and
//     persisting the record on the first true reading. The record is
//     write-once: once verified, never unverified.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by Client to describe
//     sign-up, login, sign-out, and verification events. Sinks run
//     best-effort (errors are logged) so you can forward to a database or
//     queue without blocking authentication.
package account
