package account

import (
	"net/http"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/iblameyuvraj/carpartsdetectionsystem/middleware/sessionware"
)

// RouteSession wires the identity client into cookie-carried HTTP sessions.
// It owns the session cookie lifecycle and the redirect-memory used when an
// unauthenticated visitor hits a protected route.
type RouteSession struct {
	client           *Client
	tokens           TokenService
	cfg              Config
	cookieDuration   time.Duration
	Logger           Logger
	AuthErrorHandler func(c router.Context, err error) error
	ErrorHandler     func(c router.Context, err error) error
}

// NewHTTPSession builds a RouteSession around the given client and token
// service.
func NewHTTPSession(client *Client, tokens TokenService, cfg Config) (*RouteSession, error) {
	cookieDuration := time.Duration(DefaultTokenExpiration) * time.Hour
	if cfg.GetTokenExpiration() > 0 {
		cookieDuration = time.Duration(cfg.GetTokenExpiration()) * time.Hour
	}

	s := &RouteSession{
		client:         client,
		tokens:         tokens,
		cfg:            cfg,
		Logger:         defLogger{},
		cookieDuration: cookieDuration,
	}

	s.ErrorHandler = s.defaultErrHandler
	s.AuthErrorHandler = s.defaultAuthErrHandler

	return s, nil
}

func (s RouteSession) GetCookieDuration() time.Duration {
	return s.cookieDuration
}

// ProtectedRoute validates the session token on every request. It carries
// no verification check of its own: unverified principals never reach it
// because Login refuses to mint a session token for them.
func (s *RouteSession) ProtectedRoute(cfg Config, errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return sessionware.New(sessionware.Config{
			ErrorHandler: errorHandler,
			SigningKey: sessionware.SigningKey{
				Key:    []byte(cfg.GetSigningKey()),
				JWTAlg: cfg.GetSigningMethod(),
			},
			AuthScheme:  cfg.GetAuthScheme(),
			ContextKey:  cfg.GetContextKey(),
			TokenLookup: cfg.GetTokenLookup(),
			Issuer:      cfg.GetIssuer(),
			Audience:    cfg.GetAudience(),
		})
	}
}

// Login signs the principal in through the client, mints a session token,
// and sets the session cookie. Unverified principals fail here with
// ErrEmailNotVerified; the provider session was already torn down by the
// client.
func (s *RouteSession) Login(ctx router.Context, email, password string) error {
	principal, err := s.client.SignIn(ctx.Context(), email, password)
	if err != nil {
		s.Logger.Error("Login error: %s", err)
		return err
	}

	token, err := s.tokens.Generate(principal)
	if err != nil {
		s.Logger.Error("Login token mint error: %s", err)
		return err
	}

	s.setCookieToken(ctx, token, s.cookieDuration)
	return nil
}

// Logout clears the provider session and expires the session cookie. The
// cookie is expired even when the provider call fails.
func (s *RouteSession) Logout(ctx router.Context) error {
	err := s.client.SignOut(ctx.Context())
	s.cookieDel(ctx, s.cfg.GetContextKey())
	return err
}

func (s *RouteSession) MakeClientRouteAuthErrorHandler(optional bool) func(router.Context, error) error {
	return func(ctx router.Context, err error) error {
		var richErr *errors.Error

		if IsTokenExpiredError(err) {
			richErr = ErrTokenExpired
		} else if IsMalformedError(err) {
			richErr = ErrTokenMalformed
		} else if IsUnverifiedError(err) {
			richErr = ErrEmailNotVerified
		} else {
			richErr = errors.Wrap(err, errors.CategoryAuth, "Invalid session token").
				WithCode(errors.CodeUnauthorized)
		}

		if optional {
			s.Logger.Info("Optional auth failed, proceeding", "error", richErr.Message)
			return ctx.Next()
		}

		return s.ErrorHandler(ctx, richErr)
	}
}

func (s *RouteSession) GetRedirect(ctx router.Context, def ...string) string {
	rejectedRoute := s.cfg.GetRejectedRouteKey()
	r := ctx.Cookies(rejectedRoute)
	if r == "" {
		return def[0]
	}
	s.cookieDel(ctx, rejectedRoute)
	return r
}

func (s *RouteSession) GetRedirectOrDefault(ctx router.Context) string {
	rejectedRoute := s.cfg.GetRejectedRouteKey()
	refererHeader := string(ctx.Referer())

	r := ctx.Cookies(rejectedRoute, refererHeader)
	if r == "" {
		r = s.cfg.GetRejectedRouteDefault()
	}
	s.cookieDel(ctx, rejectedRoute)
	return r
}

func (s *RouteSession) SetRedirect(ctx router.Context) {
	rejectedRoute := s.cfg.GetRejectedRouteKey()

	s.Logger.Info("Setting redirect cookie", "key", rejectedRoute, "path", ctx.OriginalURL())

	ctx.Cookie(&router.Cookie{
		Name:     rejectedRoute,
		Value:    ctx.OriginalURL(),
		Expires:  time.Now().Add(time.Minute * 5),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (s *RouteSession) setCookieToken(c router.Context, val string, duration time.Duration) {
	c.Cookie(&router.Cookie{
		Name:     s.cfg.GetContextKey(),
		Value:    val,
		Expires:  time.Now().Add(duration),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (s *RouteSession) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (s *RouteSession) defaultAuthErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryAuth, "An unexpected authentication error").
			WithCode(errors.CodeUnauthorized)
	}

	s.Logger.Info(
		"Authentication error, redirecting to entry page",
		"error", richErr.Message,
		"text_code", richErr.TextCode,
		"path", c.OriginalURL(),
	)

	s.SetRedirect(c)

	// unverified sessions go to the verification page, everything
	// else back to login
	target := s.cfg.GetLoginRoute()
	if richErr.TextCode == TextCodeEmailNotVerified {
		target = s.cfg.GetVerificationRoute()
	}

	statusCode := http.StatusSeeOther
	if c.Method() == string(router.GET) {
		statusCode = http.StatusFound
	}
	return c.Redirect(target, statusCode)
}

func (s *RouteSession) defaultErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	s.Logger.Info(
		"Middleware error handler",
		"error", richErr.Message,
		"category", richErr.Category,
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	switch richErr.Category {
	case errors.CategoryAuth, errors.CategoryAuthz:
		return s.AuthErrorHandler(c, richErr)
	default:
		return c.Status(richErr.Code).Render("errors/500", router.ViewContext{
			"error": richErr,
		})
	}
}
