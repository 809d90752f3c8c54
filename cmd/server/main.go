package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	gconfig "github.com/goliatone/go-config/config"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	login "github.com/goliatone/go-login"
	"github.com/goliatone/go-login/cmd/server/config"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/migrate"
)

type App struct {
	config *gconfig.Container[*config.BaseConfig]
	bunDB  *bun.DB
	auth   login.Authenticator
	repo   login.RepositoryManager
	srv    router.Server[*fiber.App]
	logger *glog.BaseLogger
}

func (a *App) Config() *config.BaseConfig {
	return a.config.Raw()
}

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func main() {
	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Trace),
		glog.WithName("login"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)

	cfg := gconfig.New(&config.BaseConfig{}).
		WithLogger(lgr.GetLogger("config"))

	ctx := context.Background()
	if err := cfg.Load(ctx); err != nil {
		panic(err)
	}

	app := &App{
		config: cfg,
		logger: lgr,
	}

	if app.Config().GetServer().Debug {
		fmt.Println(print.MaybeHighlightJSON(cfg.Raw()))
	}

	if err := WithPersistence(ctx, app); err != nil {
		panic(err)
	}

	if err := WithHTTPServer(ctx, app); err != nil {
		panic(err)
	}

	if err := WithAuth(ctx, app); err != nil {
		panic(err)
	}

	if app.Config().GetPersistence().Seed {
		if err := SeedDemoAccounts(ctx, app); err != nil {
			panic(err)
		}
	}

	app.srv.Serve(app.Config().GetServer().Address)

	WaitExitSignal()
}

func WithPersistence(ctx context.Context, app *App) error {
	db, err := sql.Open(sqliteshim.ShimName, app.Config().GetPersistence().GetDSN())
	if err != nil {
		return err
	}

	bunDB := bun.NewDB(db, sqlitedialect.New())

	migrationsFS, err := fs.Sub(login.GetMigrationsFS(), "data/sql/migrations")
	if err != nil {
		return err
	}

	migrations := migrate.NewMigrations()
	if err := migrations.Discover(migrationsFS); err != nil {
		return err
	}

	migrator := migrate.NewMigrator(bunDB, migrations)
	if err := migrator.Init(ctx); err != nil {
		return err
	}

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return err
	}

	if group.IsZero() {
		app.GetLogger("persistence").Info("database schema up to date")
	} else {
		app.GetLogger("persistence").Info("database migrated", "group", group.String())
	}

	app.bunDB = bunDB
	app.repo = login.NewRepositoryManager(bunDB)

	return app.repo.Validate()
}

func WithHTTPServer(ctx context.Context, app *App) error {
	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:      true,
			EnablePrintRoutes: app.Config().GetServer().Debug,
			StrictRouting:     false,
		}))
	})

	srv.Router().WithLogger(app.GetLogger("router"))

	app.srv = srv

	return nil
}

func WithAuth(ctx context.Context, app *App) error {
	cfg := app.Config().GetAuth()

	userProvider := login.NewUserProvider(app.repo.Users()).
		WithLogger(app.GetLogger("auth:prv"))

	authenticator, err := login.NewAuthenticator(userProvider, cfg)
	if err != nil {
		return err
	}
	authenticator.WithLogger(app.GetLogger("auth"))

	app.auth = authenticator

	login.RegisterAPIRoutes(app.srv.Router(),
		login.WithControllerAuthenticator(authenticator),
		login.WithControllerLogger(app.GetLogger("auth:ctrl")),
		login.WithControllerDebug(app.Config().GetServer().Debug),
	)

	return nil
}

// SeedDemoAccounts registers the bundled demo identities. Registration is
// idempotent so repeated boots reuse the stored records.
func SeedDemoAccounts(ctx context.Context, app *App) error {
	demo := []login.RegisterUserMessage{
		{
			Username: "johndoe",
			Email:    "johndoe@example.com",
			FullName: "John Doe",
			Password: "password123",
		},
		{
			Username: "alice",
			Email:    "alice@example.com",
			FullName: "Alice Wonderson",
			Password: "secret456",
		},
	}

	users := app.repo.Users()
	for _, msg := range demo {
		record, err := msg.ToUser()
		if err != nil {
			return err
		}

		if _, err := users.GetOrRegister(ctx, record); err != nil {
			return err
		}

		app.GetLogger("seed").Debug("seeded demo account", "username", record.Username)
	}

	return nil
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
