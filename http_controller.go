package account

import (
	"errors"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-router/flash"
	"github.com/nyaruka/phonenumbers"
)

// HTTPSession is the session surface the controller drives.
type HTTPSession interface {
	Login(ctx router.Context, email, password string) error
	Logout(ctx router.Context) error
	GetRedirect(ctx router.Context, def ...string) string
	ProtectedRoute(cfg Config, errorHandler func(router.Context, error) error) router.MiddlewareFunc
	MakeClientRouteAuthErrorHandler(optional bool) func(router.Context, error) error
}

// resendCookie tracks manual verification resends for the page session.
const resendCookie = "verify_resends"

func RegisterAccountRoutes[T any](app router.Router[T], opts ...AccountControllerOption) {

	controller := NewAccountController(opts...)

	app.
		Get(controller.Routes.Login,
			controller.LoginShow,
		).
		SetName("log-in.get")

	app.
		Post(
			controller.Routes.Login,
			controller.LoginPost,
		).
		SetName("log-in.post")

	app.Get(controller.Routes.Logout, controller.LogOut).SetName("log-out.get")

	app.Get(controller.Routes.SignUp, controller.SignUpShow).
		SetName("sign-up.get")
	app.Post(controller.Routes.SignUp, controller.SignUpCreate).
		SetName("sign-up.post")

	app.Get(controller.Routes.VerifyEmail, controller.VerifyEmailShow).
		SetName("verify-email.get")
	app.Post(controller.Routes.VerifyEmail, controller.VerifyEmailResend).
		SetName("verify-email.post")
	app.Get(controller.Routes.VerifyEmail+"/status", controller.VerifyEmailStatus).
		SetName("verify-email.status")

	app.Get(controller.Routes.PasswordReset, controller.PasswordResetShow).
		SetName("pwd-reset.get")
	app.Post(controller.Routes.PasswordReset, controller.PasswordResetPost).
		SetName("pwd-reset.post")
}

// RegisterProtectedRoutes mounts the views that require an authenticated and
// verified session.
func RegisterProtectedRoutes[T any](app router.Router[T], cfg Config, opts ...AccountControllerOption) {
	controller := NewAccountController(opts...)

	if key := cfg.GetContextKey(); key != "" {
		controller.ContextKey = key
	}

	guard := controller.Session.ProtectedRoute(cfg, controller.Session.MakeClientRouteAuthErrorHandler(false))

	app.Get(controller.Routes.Dashboard, controller.DashboardShow, guard).
		SetName("dashboard.get")
}

type AccountControllerRoutes struct {
	Login         string
	Logout        string
	SignUp        string
	VerifyEmail   string
	Dashboard     string
	PasswordReset string
}

type AccountControllerViews struct {
	Login         string
	SignUp        string
	VerifyEmail   string
	Dashboard     string
	PasswordReset string
}

type AccountController struct {
	Debug        bool
	Logger       Logger
	Client       *Client
	Session      HTTPSession
	Routes       *AccountControllerRoutes
	Views        *AccountControllerViews
	ContextKey   string
	ResendLimit  int
	ErrorHandler router.ErrorHandler
}

type AccountControllerOption func(*AccountController) *AccountController

func WithControllerClient(client *Client) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Client = client
		return c
	}
}

func WithControllerSession(session HTTPSession) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Session = session
		return c
	}
}

// WithControllerContextKey sets the request-local key the middleware stores
// session claims under. Must match Config.GetContextKey.
func WithControllerContextKey(key string) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		if key != "" {
			c.ContextKey = key
		}
		return c
	}
}

func WithControllerLogger(logger Logger) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func NewAccountController(opts ...AccountControllerOption) *AccountController {
	c := &AccountController{
		Logger:       defLogger{},
		ErrorHandler: defaultErrHandler,
		ContextKey:   "session",
		ResendLimit:  DefaultResendLimit,
		Routes: &AccountControllerRoutes{
			Login:         "/log-in",
			Logout:        "/log-out",
			SignUp:        "/sign-up",
			VerifyEmail:   "/verify-email",
			Dashboard:     "/dashboard",
			PasswordReset: "/password-reset",
		},
		Views: &AccountControllerViews{
			Login:         "log_in",
			SignUp:        "sign_up",
			VerifyEmail:   "verify_email",
			Dashboard:     "dashboard",
			PasswordReset: "password_reset",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Client == nil {
		panic("Missing Client in account controller...")
	}

	if c.Session == nil {
		panic("Missing HTTPSession in account controller...")
	}

	return c
}

func (a *AccountController) LoginShow(ctx router.Context) error {
	return ctx.Render(a.Views.Login, router.ViewContext{
		"errors": nil,
		"record": nil,
	})
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

func (a *AccountController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("login parse payload: ", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return ctx.Render(a.Views.Login, router.ViewContext{
			"record":     payload,
			"validation": FormatValidationErrorToMap(err),
		})
	}

	if a.Debug {
		a.Logger.Debug("login payload %s", print.MaybePrettyJSON(payload))
	}

	if err := a.Session.Login(ctx, payload.Email, payload.Password); err != nil {
		// unverified accounts get routed back to the verification page
		// instead of a generic failure
		if IsUnverifiedError(err) {
			return flash.WithError(ctx, router.ViewContext{
				"error_message": ErrEmailNotVerified.Message,
			}).Redirect(a.Routes.VerifyEmail, router.StatusSeeOther)
		}

		return ctx.Render(a.Views.Login, router.ViewContext{
			"errors": map[string]string{
				"authentication": userFacingMessage(err),
			},
			"record": payload,
		})
	}

	redirect := a.Session.GetRedirect(ctx, a.Routes.Dashboard)

	return ctx.Redirect(redirect, router.StatusSeeOther)
}

func (a *AccountController) LogOut(ctx router.Context) error {
	if err := a.Session.Logout(ctx); err != nil {
		a.Logger.Error("logout error: ", "error", err)
	}
	return ctx.Redirect(a.Routes.Login, router.StatusTemporaryRedirect)
}

func (a *AccountController) SignUpShow(ctx router.Context) error {
	return ctx.Render(a.Views.SignUp, router.ViewContext{
		"errors": map[string]string{},
		"record": SignUpPayload{},
	})
}

// SignUpPayload is the form payload
type SignUpPayload struct {
	DisplayName     string `form:"display_name" json:"display_name"`
	Email           string `form:"email" json:"email"`
	Phone           string `form:"phone_number" json:"phone_number"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r SignUpPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.DisplayName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Phone, validation.By(ValidatePhoneNumber("US"))),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.Length(6, 100),
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AccountController) SignUpCreate(ctx router.Context) error {
	payload := new(SignUpPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("sign up parse payload: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error parsing body",
		}).Status(fiber.StatusBadRequest).Render(a.Views.SignUp, router.ViewContext{
			"errors": map[string]string{"form": "Failed to parse form"},
			"record": payload,
		})
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("sign up validate payload: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error validating payload",
		}).Render(a.Views.SignUp, router.ViewContext{
			"record":     payload,
			"validation": FormatValidationErrorToMap(err),
		})
	}

	if _, err := a.Client.SignUp(ctx.Context(), payload.Email, payload.Password, payload.DisplayName); err != nil {
		a.Logger.Error("sign up error: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  userFacingMessage(err),
			"system_message": "Error creating account",
		}).Render(a.Views.SignUp, router.ViewContext{
			"record": payload,
			"errors": []string{userFacingMessage(err)},
		})
	}

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "Account created, check your email for a verification link",
	}).Redirect(a.Routes.VerifyEmail, fiber.StatusSeeOther)
}

func (a *AccountController) VerifyEmailShow(ctx router.Context) error {
	principal, err := a.Client.CurrentPrincipal(ctx.Context())
	if err != nil {
		a.Logger.Error("verify email load principal: ", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	if principal == nil {
		return ctx.Redirect(a.Routes.Login, router.StatusSeeOther)
	}

	if principal.EmailVerified {
		return ctx.Redirect(a.Routes.Dashboard, router.StatusSeeOther)
	}

	return ctx.Render(a.Views.VerifyEmail, router.ViewContext{
		"email":         principal.Email,
		"resends_left":  a.resendsLeft(ctx),
		"poll_interval": int(DefaultPollInterval.Seconds()),
	})
}

// VerifyEmailResend sends another verification email. Resends past the cap
// are rejected without contacting the backend.
func (a *AccountController) VerifyEmailResend(ctx router.Context) error {
	used := a.resendsUsed(ctx)
	if used >= a.ResendLimit {
		return flash.WithError(ctx, router.ViewContext{
			"error_message": "Resend limit reached, please wait for the original email",
		}).Redirect(a.Routes.VerifyEmail, router.StatusSeeOther)
	}

	if err := a.Client.SendVerificationEmail(ctx.Context()); err != nil {
		if errors.Is(err, ErrNoCurrentPrincipal) {
			return ctx.Redirect(a.Routes.Login, router.StatusSeeOther)
		}
		a.Logger.Error("verify email resend: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message": userFacingMessage(err),
		}).Redirect(a.Routes.VerifyEmail, router.StatusSeeOther)
	}

	a.setResendsUsed(ctx, used+1)

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "Verification email sent",
	}).Redirect(a.Routes.VerifyEmail, router.StatusSeeOther)
}

// VerifyEmailStatus is polled by the verification page. It re-reads the
// backend flag, persists the verification record on the first true reading,
// and tells the page where to go next.
func (a *AccountController) VerifyEmailStatus(ctx router.Context) error {
	verified, err := a.Client.SyncVerification(ctx.Context())
	if err != nil {
		if errors.Is(err, ErrNoCurrentPrincipal) {
			return ctx.JSON(router.StatusUnauthorized, map[string]any{
				"verified": false,
				"redirect": a.Routes.Login,
			})
		}
		a.Logger.Error("verify email status: ", "error", err)
		return ctx.JSON(router.StatusOK, map[string]any{"verified": false})
	}

	body := map[string]any{"verified": verified}
	if verified {
		body["redirect"] = a.Routes.Dashboard
		body["grace_seconds"] = int(DefaultRedirectGrace.Seconds())
	}

	return ctx.JSON(router.StatusOK, body)
}

func (a *AccountController) DashboardShow(ctx router.Context) error {
	claims, ok := GetRouterClaims(ctx, a.ContextKey)
	if !ok {
		return ctx.Redirect(a.Routes.Login, router.StatusSeeOther)
	}

	return ctx.Render(a.Views.Dashboard, router.ViewContext{
		"principal": map[string]string{
			"id":    claims.UserID(),
			"email": claims.Email(),
			"name":  claims.Name(),
		},
	})
}

func (a *AccountController) PasswordResetShow(ctx router.Context) error {
	return ctx.Render(a.Views.PasswordReset, router.ViewContext{
		"errors": nil,
		"record": nil,
	})
}

// PasswordResetPayload holds values for password reset
type PasswordResetPayload struct {
	Email string `form:"email" json:"email"`
}

// Validate will validate the payload
func (r PasswordResetPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
	)
}

func (a *AccountController) PasswordResetPost(ctx router.Context) error {
	payload := new(PasswordResetPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("password reset parse payload: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error parsing body",
		}).Status(fiber.StatusBadRequest).Render(a.Views.PasswordReset, router.ViewContext{
			"errors": map[string]string{"form": "Failed to parse form"},
			"record": payload,
		})
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("password reset validate payload: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error validating payload",
		}).Render(a.Views.PasswordReset, router.ViewContext{
			"record":     payload,
			"validation": FormatValidationErrorToMap(err),
		})
	}

	if err := a.Client.ResetPassword(ctx.Context(), payload.Email); err != nil {
		a.Logger.Error("password reset error: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  userFacingMessage(err),
			"system_message": "Error requesting password reset",
		}).Render(a.Views.PasswordReset, router.ViewContext{
			"record": payload,
			"errors": []string{userFacingMessage(err)},
		})
	}

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "If an account exists for that address, a reset email is on its way",
	}).Redirect(a.Routes.Login, fiber.StatusSeeOther)
}

func (a *AccountController) resendsUsed(ctx router.Context) int {
	raw := ctx.Cookies(resendCookie)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func (a *AccountController) resendsLeft(ctx router.Context) int {
	left := a.ResendLimit - a.resendsUsed(ctx)
	if left < 0 {
		return 0
	}
	return left
}

func (a *AccountController) setResendsUsed(ctx router.Context, n int) {
	ctx.Cookie(&router.Cookie{
		Name:     resendCookie,
		Value:    strconv.Itoa(n),
		HTTPOnly: true,
		SameSite: "Lax",
	})
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}

// ValidatePhoneNumber checks an optional phone field against the given
// default region.
func ValidatePhoneNumber(region string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s == "" {
			return nil
		}
		num, err := phonenumbers.Parse(s, region)
		if err != nil {
			return errors.New("must be a valid phone number")
		}
		if !phonenumbers.IsValidNumber(num) {
			return errors.New("must be a valid phone number")
		}
		return nil
	}
}

// FormatValidationErrorToMap flattens ozzo validation errors into a
// field-to-message map for templates.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			if ferr != nil {
				out[field] = ferr.Error()
			}
		}
		return out
	}

	out["form"] = err.Error()
	return out
}

func userFacingMessage(err error) string {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Message
	}
	return "Something went wrong, please try again"
}

func defaultErrHandler(c router.Context, err error) error {
	return c.Render("errors/500", router.ViewContext{
		"message": err.Error(),
	})
}
