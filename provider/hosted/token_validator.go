// Package hosted validates session tokens issued by a hosted identity
// service, using its published JWK Set.
package hosted

import (
	stderrors "errors"
	"fmt"
	"log"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	account "github.com/iblameyuvraj/carpartsdetectionsystem"
)

// Config describes the hosted identity service.
type Config struct {
	// JWKSURL is the service's JWK Set endpoint.
	JWKSURL string
	// Issuer is enforced against the token's iss claim when set.
	Issuer string
	// Audience entries are enforced against the token's aud claim.
	Audience []string
	// RefreshInterval controls JWKS cache refresh. Defaults to one hour.
	RefreshInterval time.Duration
}

// TokenValidator validates hosted-service JWTs using JWKS.
type TokenValidator struct {
	config Config
	jwks   *keyfunc.JWKS
}

// NewTokenValidator creates a validator backed by the service's JWK Set.
func NewTokenValidator(cfg Config) (*TokenValidator, error) {
	if cfg.JWKSURL == "" {
		return nil, fmt.Errorf("hosted: JWKS URL is required")
	}

	refresh := cfg.RefreshInterval
	if refresh == 0 {
		refresh = time.Hour
	}

	jwks, err := keyfunc.Get(cfg.JWKSURL, keyfunc.Options{
		RefreshInterval:   refresh,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			log.Printf("failed to do a background refresh of JWT set: %s", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("hosted: failed to load JWK Set: %w", err)
	}

	return &TokenValidator{
		config: cfg,
		jwks:   jwks,
	}, nil
}

// Close stops the background JWKS refresh.
func (v *TokenValidator) Close() {
	v.jwks.EndBackground()
}

// Validate implements account.TokenService's validation half for tokens the
// hosted service minted.
func (v *TokenValidator) Validate(tokenString string) (account.SessionClaims, error) {
	opts := []jwt.ParserOption{}
	if v.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.config.Issuer))
	}
	for _, aud := range v.config.Audience {
		opts = append(opts, jwt.WithAudience(aud))
	}

	claims := &account.JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, v.jwks.Keyfunc, opts...)
	if err != nil {
		return nil, normalizeValidationError(err)
	}

	if !token.Valid {
		return nil, account.ErrTokenMalformed
	}

	return claims, nil
}

func normalizeValidationError(err error) error {
	if err == nil {
		return nil
	}

	clone := account.ErrTokenMalformed.Clone()
	if stderrors.Is(err, jwt.ErrTokenExpired) {
		clone = account.ErrTokenExpired.Clone()
	}

	if clone == nil {
		return err
	}

	clone.Source = err
	return clone.WithMetadata(map[string]any{
		"provider": "hosted",
		"cause":    err.Error(),
	})
}
