package sessionware

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
)

var testKey = []byte("sessionware-test-key")

func signTestToken(t *testing.T, claims *sessionTokenClaims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(testKey)
	assert.NoError(t, err)
	return signed
}

func TestGetDefaultConfigDefaults(t *testing.T) {
	cfg := GetDefaultConfig(Config{
		SigningKey: SigningKey{Key: testKey, JWTAlg: "HS256"},
	})

	assert.Equal(t, "session", cfg.ContextKey)
	assert.Equal(t, "Bearer", cfg.AuthScheme)
	assert.Equal(t, defaultTokenLookup, cfg.TokenLookup)
	assert.Equal(t, "current_user", cfg.TemplateUserKey)
	assert.NotNil(t, cfg.TokenValidator)
	assert.NotNil(t, cfg.SuccessHandler)
	assert.NotNil(t, cfg.ErrorHandler)
}

func TestGetDefaultConfigPanicsWithoutKeys(t *testing.T) {
	assert.Panics(t, func() {
		GetDefaultConfig(Config{})
	})
}

func TestBuiltInValidatorRoundTrip(t *testing.T) {
	cfg := GetDefaultConfig(Config{
		SigningKey: SigningKey{Key: testKey, JWTAlg: "HS256"},
		Issuer:     "carparts",
		Audience:   []string{"carparts-web"},
	})

	now := time.Now()
	signed := signTestToken(t, &sessionTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "carparts",
			Subject:   "p-1",
			Audience:  jwt.ClaimStrings{"carparts-web"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		UID:         "p-1",
		UserEmail:   "who@example.com",
		DisplayName: "Who",
	})

	claims, err := cfg.TokenValidator.Validate(signed)
	assert.NoError(t, err)
	assert.Equal(t, "p-1", claims.Subject())
	assert.Equal(t, "p-1", claims.UserID())
	assert.Equal(t, "who@example.com", claims.Email())
	assert.Equal(t, "Who", claims.Name())
}

func TestBuiltInValidatorRejectsExpired(t *testing.T) {
	cfg := GetDefaultConfig(Config{
		SigningKey: SigningKey{Key: testKey, JWTAlg: "HS256"},
	})

	signed := signTestToken(t, &sessionTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "p-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})

	_, err := cfg.TokenValidator.Validate(signed)
	assert.Error(t, err)
}

func TestBuiltInValidatorRejectsWrongAudience(t *testing.T) {
	cfg := GetDefaultConfig(Config{
		SigningKey: SigningKey{Key: testKey, JWTAlg: "HS256"},
		Audience:   []string{"carparts-web"},
	})

	signed := signTestToken(t, &sessionTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "p-1",
			Audience:  jwt.ClaimStrings{"someone-else"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	_, err := cfg.TokenValidator.Validate(signed)
	assert.Error(t, err)
}

func TestBuiltInValidatorRejectsWrongAlg(t *testing.T) {
	cfg := GetDefaultConfig(Config{
		SigningKey: SigningKey{Key: testKey, JWTAlg: "HS256"},
	})

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, &sessionTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "p-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString(testKey)
	assert.NoError(t, err)

	_, err = cfg.TokenValidator.Validate(signed)
	assert.Error(t, err)
}

func TestGetExtractorsParsesLookup(t *testing.T) {
	extractors := GetExtractors("header:Authorization,cookie:session,query:token")
	assert.Len(t, extractors, 3)

	extractors = GetExtractors("cookie:session")
	assert.Len(t, extractors, 1)
}
