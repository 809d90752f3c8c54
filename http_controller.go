package login

import (
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-login/middleware/jwtware"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// Response bodies stay deliberately generic: a failed login reads the same
// whether the username exists or not.
const (
	detailLoginFailed   = "Incorrect username or password"
	detailInvalidToken  = "Could not validate credentials"
	detailInactiveUser  = "Inactive user"
	detailDuplicateUser = "Username already registered"
)

// TokenResponse is the payload returned by the token endpoint
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// TokenRequest payload
type TokenRequest struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

// GetIdentifier returns the identifier
func (r TokenRequest) GetIdentifier() string {
	return r.Username
}

// GetPassword will return the password
func (r TokenRequest) GetPassword() string {
	return r.Password
}

type APIControllerRoutes struct {
	Token    string
	Me       string
	Register string
	Ping     string
	Root     string
}

type APIController struct {
	Debug        bool
	Logger       Logger
	Auth         Authenticator
	Routes       *APIControllerRoutes
	TokenLookup  string
	AuthScheme   string
	ErrorHandler router.ErrorHandler
}

type APIControllerOption func(*APIController) *APIController

func WithControllerAuthenticator(auth Authenticator) APIControllerOption {
	return func(c *APIController) *APIController {
		c.Auth = auth
		return c
	}
}

func WithControllerLogger(logger Logger) APIControllerOption {
	return func(c *APIController) *APIController {
		c.Logger = logger
		return c
	}
}

func WithControllerDebug(debug bool) APIControllerOption {
	return func(c *APIController) *APIController {
		c.Debug = debug
		return c
	}
}

func NewAPIController(opts ...APIControllerOption) *APIController {
	c := &APIController{
		Logger:      defLogger{},
		TokenLookup: "header:" + router.HeaderAuthorization,
		AuthScheme:  "Bearer",
		Routes: &APIControllerRoutes{
			Token:    "/token",
			Me:       "/users/me",
			Register: "/register",
			Ping:     "/ping",
			Root:     "/",
		},
	}

	c.ErrorHandler = c.defaultErrHandler

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Auth == nil {
		panic("Missing Authenticator in API controller...")
	}

	return c
}

func RegisterAPIRoutes[T any](app router.Router[T], opts ...APIControllerOption) *APIController {
	controller := NewAPIController(opts...)

	app.Post(controller.Routes.Token, controller.TokenPost).
		SetName("token.post")

	app.Get(controller.Routes.Me, controller.CurrentUser).
		SetName("users-me.get")

	app.Post(controller.Routes.Register, controller.RegistrationCreate).
		SetName("register.post")

	app.Get(controller.Routes.Ping, controller.Ping).
		SetName("ping.get")

	app.Get(controller.Routes.Root, controller.Root).
		SetName("root.get")

	return controller
}

// TokenPost implements the password grant: form credentials in, bearer
// token out. All credential failures produce the same 401.
func (a *APIController) TokenPost(ctx router.Context) error {
	payload := new(TokenRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("TokenPost bind error", "error", err)
		return a.unauthorized(ctx)
	}

	if a.Debug {
		a.Logger.Debug("token request", "payload", print.MaybePrettyJSON(payload))
	}

	if payload.Username == "" || payload.Password == "" {
		return a.unauthorized(ctx)
	}

	token, err := a.Auth.Login(ctx.Context(), payload.Username, payload.Password)
	if err != nil {
		if goerrors.Is(err, ErrIdentityDisabled) {
			return ctx.Status(router.StatusBadRequest).JSON(router.StatusBadRequest, map[string]string{
				"detail": detailInactiveUser,
			})
		}
		return a.unauthorized(ctx)
	}

	return ctx.JSON(router.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
	})
}

// CurrentUser resolves the bearer token to the identity it was issued for.
// Invalid, expired, or tampered tokens get a 401; a token whose record was
// deactivated after issuance gets a 400.
func (a *APIController) CurrentUser(ctx router.Context) error {
	raw, err := jwtware.ExtractRawTokenFromContext(
		ctx,
		jwtware.GetExtractors(a.TokenLookup, a.AuthScheme),
	)
	if err != nil || raw == "" {
		return a.unauthorizedBearer(ctx)
	}

	identity, err := a.Auth.Authenticate(ctx.Context(), raw)
	if err != nil {
		if goerrors.Is(err, ErrIdentityDisabled) {
			return ctx.Status(router.StatusBadRequest).JSON(router.StatusBadRequest, map[string]string{
				"detail": detailInactiveUser,
			})
		}
		return a.unauthorizedBearer(ctx)
	}

	return ctx.JSON(router.StatusOK, identityResponse(identity))
}

// RegistrationCreate validates and persists a new identity. The response
// never includes the credential digest.
func (a *APIController) RegistrationCreate(ctx router.Context) error {
	payload := new(RegisterUserMessage)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("RegistrationCreate bind error", "error", err)
		return ctx.Status(router.StatusBadRequest).JSON(router.StatusBadRequest, map[string]string{
			"detail": "Invalid registration payload",
		})
	}

	if a.Debug {
		a.Logger.Debug("registration request", "username", payload.Username)
	}

	identity, err := a.Auth.Register(ctx.Context(), *payload)
	if err != nil {
		var richErr *goerrors.Error

		switch {
		case goerrors.Is(err, ErrDuplicateIdentity):
			return ctx.Status(router.StatusBadRequest).JSON(router.StatusBadRequest, map[string]string{
				"detail": detailDuplicateUser,
			})
		case goerrors.As(err, &richErr) && richErr.Category == goerrors.CategoryValidation:
			return ctx.Status(router.StatusBadRequest).JSON(router.StatusBadRequest, map[string]string{
				"detail": "Invalid registration payload",
			})
		default:
			return a.ErrorHandler(ctx, err)
		}
	}

	return ctx.JSON(router.StatusOK, identityResponse(identity))
}

// Ping is a liveness probe, no auth required
func (a *APIController) Ping(ctx router.Context) error {
	return ctx.JSON(router.StatusOK, map[string]string{
		"message": "pong",
	})
}

// Root is an unauthenticated info endpoint
func (a *APIController) Root(ctx router.Context) error {
	return ctx.JSON(router.StatusOK, map[string]string{
		"message": "Welcome to the Login API",
	})
}

func (a *APIController) unauthorized(ctx router.Context) error {
	ctx.SetHeader("WWW-Authenticate", a.AuthScheme)
	return ctx.Status(router.StatusUnauthorized).JSON(router.StatusUnauthorized, map[string]string{
		"detail": detailLoginFailed,
	})
}

func (a *APIController) unauthorizedBearer(ctx router.Context) error {
	ctx.SetHeader("WWW-Authenticate", a.AuthScheme)
	return ctx.Status(router.StatusUnauthorized).JSON(router.StatusUnauthorized, map[string]string{
		"detail": detailInvalidToken,
	})
}

func (a *APIController) defaultErrHandler(c router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	a.Logger.Error(
		"API error handler",
		"error", richErr.Message,
		"category", richErr.Category,
		"text_code", richErr.TextCode,
	)

	code := richErr.Code
	if code == 0 {
		code = goerrors.CodeInternal
	}

	// internal detail never leaves the process
	return c.Status(code).JSON(code, map[string]string{
		"detail": "Internal server error",
	})
}

func identityResponse(identity Identity) map[string]any {
	resp := map[string]any{
		"id":        identity.ID(),
		"username":  identity.Username(),
		"email":     identity.Email(),
		"full_name": identity.FullName(),
	}

	if status, ok := identityStatus(identity); ok {
		resp["status"] = status
	}

	return resp
}
