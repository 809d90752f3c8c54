package login_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	login "github.com/goliatone/go-login"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newControllerFixture(t *testing.T) (*login.APIController, *login.Auther, *login.MemoryStore) {
	t.Helper()

	store := login.NewMemoryStore()
	provider := login.NewUserProvider(store).WithLogger(testLogger{})

	auther, err := login.NewAuthenticator(provider, newTestConfig())
	require.NoError(t, err)
	auther.WithLogger(testLogger{})

	_, err = provider.RegisterUser(context.Background(), login.RegisterUserMessage{
		Username: "johndoe",
		Email:    "johndoe@example.com",
		FullName: "John Doe",
		Password: "password123",
	})
	require.NoError(t, err)

	controller := login.NewAPIController(
		login.WithControllerAuthenticator(auther),
		login.WithControllerLogger(testLogger{}),
	)

	return controller, auther, store
}

func newTokenCtx(username, password string) *bindCtx {
	base := router.NewMockContext()
	base.On("Context").Return(context.Background()).Maybe()
	base.On("SetHeader", mock.Anything, mock.Anything).Return(base).Maybe()

	return &bindCtx{
		MockContext: base,
		bind: func(v any) error {
			payload, ok := v.(*login.TokenRequest)
			if ok {
				payload.Username = username
				payload.Password = password
			}
			return nil
		},
	}
}

func TestTokenPost(t *testing.T) {
	controller, auther, store := newControllerFixture(t)

	t.Run("valid credentials return a bearer token", func(t *testing.T) {
		ctx := newTokenCtx("johndoe", "password123")

		var response login.TokenResponse
		ctx.On("JSON", router.StatusOK, mock.Anything).Run(func(args mock.Arguments) {
			response = args.Get(1).(login.TokenResponse)
		}).Return(nil)

		err := controller.TokenPost(ctx)
		require.NoError(t, err)
		assert.Equal(t, "bearer", response.TokenType)
		require.NotEmpty(t, response.AccessToken)

		// the minted token resolves back to the account
		identity, err := auther.Authenticate(context.Background(), response.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "johndoe", identity.Username())
	})

	t.Run("wrong password returns 401 with the challenge header", func(t *testing.T) {
		ctx := newTokenCtx("johndoe", "wrong-password")

		var body map[string]string
		ctx.On("JSON", router.StatusUnauthorized, mock.Anything).Run(func(args mock.Arguments) {
			body = args.Get(1).(map[string]string)
		}).Return(nil)

		err := controller.TokenPost(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Incorrect username or password", body["detail"])
		ctx.MockContext.AssertCalled(t, "SetHeader", "WWW-Authenticate", "Bearer")
	})

	t.Run("unknown username is indistinguishable from a wrong password", func(t *testing.T) {
		ctx := newTokenCtx("nobody", "password123")

		var body map[string]string
		ctx.On("JSON", router.StatusUnauthorized, mock.Anything).Run(func(args mock.Arguments) {
			body = args.Get(1).(map[string]string)
		}).Return(nil)

		err := controller.TokenPost(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Incorrect username or password", body["detail"])
		ctx.MockContext.AssertCalled(t, "SetHeader", "WWW-Authenticate", "Bearer")
	})

	t.Run("missing fields return 401", func(t *testing.T) {
		ctx := newTokenCtx("", "")

		ctx.On("JSON", router.StatusUnauthorized, mock.Anything).Return(nil)

		err := controller.TokenPost(ctx)
		require.NoError(t, err)
		ctx.MockContext.AssertCalled(t, "JSON", router.StatusUnauthorized, mock.Anything)
	})

	t.Run("deactivated account returns 400", func(t *testing.T) {
		_, err := store.SetStatus(context.Background(), "johndoe", login.UserStatusDisabled)
		require.NoError(t, err)
		defer store.SetStatus(context.Background(), "johndoe", login.UserStatusActive)

		ctx := newTokenCtx("johndoe", "password123")

		var body map[string]string
		ctx.On("JSON", router.StatusBadRequest, mock.Anything).Run(func(args mock.Arguments) {
			body = args.Get(1).(map[string]string)
		}).Return(nil)

		err = controller.TokenPost(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Inactive user", body["detail"])
	})
}

func newBearerCtx(token string) *router.MockContext {
	ctx := router.NewMockContext()
	ctx.On("Context").Return(context.Background()).Maybe()
	ctx.On("SetHeader", mock.Anything, mock.Anything).Return(ctx).Maybe()
	if token == "" {
		ctx.On("GetString", "Authorization", "").Return("")
	} else {
		ctx.HeadersM["Authorization"] = "Bearer " + token
		ctx.On("GetString", "Authorization", "").Return("Bearer " + token)
	}
	return ctx
}

func TestCurrentUser(t *testing.T) {
	controller, auther, store := newControllerFixture(t)

	mintToken := func(t *testing.T) string {
		t.Helper()
		token, err := auther.Login(context.Background(), "johndoe", "password123")
		require.NoError(t, err)
		return token
	}

	t.Run("valid token resolves the identity", func(t *testing.T) {
		ctx := newBearerCtx(mintToken(t))

		var body map[string]any
		ctx.On("JSON", router.StatusOK, mock.Anything).Run(func(args mock.Arguments) {
			body = args.Get(1).(map[string]any)
		}).Return(nil)

		err := controller.CurrentUser(ctx)
		require.NoError(t, err)
		assert.Equal(t, "johndoe", body["username"])
		assert.Equal(t, "johndoe@example.com", body["email"])
		assert.Equal(t, "John Doe", body["full_name"])

		// the digest never shows up in responses
		assert.NotContains(t, body, "password_hash")
		assert.NotContains(t, body, "password")
	})

	t.Run("missing header returns 401 with challenge", func(t *testing.T) {
		ctx := newBearerCtx("")

		var body map[string]string
		ctx.On("JSON", router.StatusUnauthorized, mock.Anything).Run(func(args mock.Arguments) {
			body = args.Get(1).(map[string]string)
		}).Return(nil)

		err := controller.CurrentUser(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Could not validate credentials", body["detail"])
		ctx.AssertCalled(t, "SetHeader", "WWW-Authenticate", "Bearer")
	})

	t.Run("garbage token returns 401", func(t *testing.T) {
		ctx := newBearerCtx("garbage.token.value")

		ctx.On("JSON", router.StatusUnauthorized, mock.Anything).Return(nil)

		err := controller.CurrentUser(ctx)
		require.NoError(t, err)
		ctx.AssertCalled(t, "JSON", router.StatusUnauthorized, mock.Anything)
	})

	t.Run("expired token returns 401", func(t *testing.T) {
		claims := &login.JWTClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "test-issuer",
				Subject:   "johndoe",
				Audience:  jwt.ClaimStrings{"test:audience"},
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			},
		}
		token, err := auther.TokenService().SignClaims(claims)
		require.NoError(t, err)

		ctx := newBearerCtx(token)
		ctx.On("JSON", router.StatusUnauthorized, mock.Anything).Return(nil)

		err = controller.CurrentUser(ctx)
		require.NoError(t, err)
		ctx.AssertCalled(t, "JSON", router.StatusUnauthorized, mock.Anything)
	})

	t.Run("token for a deactivated account returns 400", func(t *testing.T) {
		token := mintToken(t)

		_, err := store.SetStatus(context.Background(), "johndoe", login.UserStatusDisabled)
		require.NoError(t, err)
		defer store.SetStatus(context.Background(), "johndoe", login.UserStatusActive)

		ctx := newBearerCtx(token)

		var body map[string]string
		ctx.On("JSON", router.StatusBadRequest, mock.Anything).Run(func(args mock.Arguments) {
			body = args.Get(1).(map[string]string)
		}).Return(nil)

		err = controller.CurrentUser(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Inactive user", body["detail"])
	})
}

func newRegisterCtx(msg login.RegisterUserMessage) *bindCtx {
	base := router.NewMockContext()
	base.On("Context").Return(context.Background()).Maybe()
	base.On("SetHeader", mock.Anything, mock.Anything).Return(base).Maybe()

	return &bindCtx{
		MockContext: base,
		bind: func(v any) error {
			payload, ok := v.(*login.RegisterUserMessage)
			if ok {
				*payload = msg
			}
			return nil
		},
	}
}

func TestRegistrationCreate(t *testing.T) {
	controller, auther, _ := newControllerFixture(t)

	t.Run("creates the account", func(t *testing.T) {
		ctx := newRegisterCtx(login.RegisterUserMessage{
			Username: "alice",
			Email:    "alice@example.com",
			FullName: "Alice Wonderson",
			Password: "secret456",
		})

		var body map[string]any
		ctx.On("JSON", router.StatusOK, mock.Anything).Run(func(args mock.Arguments) {
			body = args.Get(1).(map[string]any)
		}).Return(nil)

		err := controller.RegistrationCreate(ctx)
		require.NoError(t, err)
		assert.Equal(t, "alice", body["username"])
		assert.NotContains(t, body, "password")
		assert.NotContains(t, body, "password_hash")

		// new account can log in right away
		_, err = auther.Login(context.Background(), "alice", "secret456")
		require.NoError(t, err)
	})

	t.Run("duplicate username returns 400", func(t *testing.T) {
		ctx := newRegisterCtx(login.RegisterUserMessage{
			Username: "johndoe",
			Password: "password123",
		})

		var body map[string]string
		ctx.On("JSON", router.StatusBadRequest, mock.Anything).Run(func(args mock.Arguments) {
			body = args.Get(1).(map[string]string)
		}).Return(nil)

		err := controller.RegistrationCreate(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Username already registered", body["detail"])
	})

	t.Run("invalid payload returns 400", func(t *testing.T) {
		ctx := newRegisterCtx(login.RegisterUserMessage{
			Username: "bob",
			Password: "short",
		})

		ctx.On("JSON", router.StatusBadRequest, mock.Anything).Return(nil)

		err := controller.RegistrationCreate(ctx)
		require.NoError(t, err)
		ctx.MockContext.AssertCalled(t, "JSON", router.StatusBadRequest, mock.Anything)
	})
}

func TestPingAndRoot(t *testing.T) {
	controller, _, _ := newControllerFixture(t)

	t.Run("ping", func(t *testing.T) {
		ctx := router.NewMockContext()

		var body map[string]string
		ctx.On("JSON", router.StatusOK, mock.Anything).Run(func(args mock.Arguments) {
			body = args.Get(1).(map[string]string)
		}).Return(nil)

		require.NoError(t, controller.Ping(ctx))
		assert.Equal(t, "pong", body["message"])
	})

	t.Run("root", func(t *testing.T) {
		ctx := router.NewMockContext()

		var body map[string]string
		ctx.On("JSON", router.StatusOK, mock.Anything).Run(func(args mock.Arguments) {
			body = args.Get(1).(map[string]string)
		}).Return(nil)

		require.NoError(t, controller.Root(ctx))
		assert.Equal(t, "Welcome to the Login API", body["message"])
	})
}

func TestNewAPIControllerDefaults(t *testing.T) {
	controller, _, _ := newControllerFixture(t)

	assert.Equal(t, "/token", controller.Routes.Token)
	assert.Equal(t, "/users/me", controller.Routes.Me)
	assert.Equal(t, "/register", controller.Routes.Register)
	assert.Equal(t, "/ping", controller.Routes.Ping)
	assert.Equal(t, "/", controller.Routes.Root)
	assert.Equal(t, "Bearer", controller.AuthScheme)

	assert.Panics(t, func() {
		login.NewAPIController()
	})
}
