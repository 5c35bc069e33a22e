package main

import (
	"context"
	"database/sql"
	"log"
	"os"

	accounts "github.com/avetikov/go-accounts"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func main() {
	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Trace),
		glog.WithName("accounts-demo"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)

	ctx := context.Background()

	db, err := openDatabase()
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := createSchema(ctx, db); err != nil {
		log.Fatal(err)
	}

	repo := accounts.NewRepositoryManager(db)
	repo.MustValidate()

	manager := accounts.NewManager(repo, accounts.DefaultConfig()).
		WithLogger(lgr).
		WithMailer(consoleMailer{logger: lgr}).
		WithActivitySink(accounts.ActivitySinkFunc(func(_ context.Context, event accounts.ActivityEvent) error {
			lgr.Info("activity", "event", string(event.EventType), "user_id", event.UserID)
			return nil
		}))

	ctx = accounts.WithIPAddress(ctx, "127.0.0.1")

	user, res := manager.Register(ctx, accounts.Credentials{
		"email":                 "pepe.rone@example.com",
		"password":              "secret-password",
		"password_confirmation": "secret-password",
		"name":                  "Pepe",
	}, false)
	if res.Failed() {
		lgr.Error("registration failed", "message", res.Message, "error", res.Err)
		os.Exit(1)
	}
	lgr.Info("registered", "user_id", user.ID.String(), "activated", user.IsActivated)

	// login before activation is rejected
	if _, res := manager.Authenticate(ctx, accounts.Credentials{
		"email":    "pepe.rone@example.com",
		"password": "secret-password",
	}, false); res.Failed() {
		lgr.Info("pre-activation login rejected", "message", res.Message)
	}

	activate := accounts.NewActivateUserHandler(repo, nil)
	if err := activate.Execute(ctx, accounts.ActivateUserMessage{
		Code: user.ActivationCode,
	}); err != nil {
		lgr.Error("activation failed", "error", err)
		os.Exit(1)
	}

	user, res = manager.Authenticate(ctx, accounts.Credentials{
		"email":    "pepe.rone@example.com",
		"password": "secret-password",
	}, true)
	if res.Failed() {
		lgr.Error("login failed", "message", res.Message, "error", res.Err)
		os.Exit(1)
	}
	lgr.Info("logged in", "user_id", user.ID.String())

	restored, err := manager.CheckSession(ctx)
	if err != nil {
		lgr.Error("session check failed", "error", err)
		os.Exit(1)
	}
	lgr.Info("session restored", "user_id", restored.ID.String())

	if err := manager.Logout(accounts.WithCurrentUser(ctx, restored)); err != nil {
		lgr.Error("logout failed", "error", err)
		os.Exit(1)
	}
	lgr.Info("logged out")
}

func openDatabase() (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:?cache=shared")
	if err != nil {
		return nil, err
	}

	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

func createSchema(ctx context.Context, db *bun.DB) error {
	models := []any{
		(*accounts.User)(nil),
		(*accounts.Group)(nil),
		(*accounts.UserGroup)(nil),
		(*accounts.Throttle)(nil),
	}

	for _, model := range models {
		if _, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}
	}

	return nil
}

// consoleMailer stands in for a real transport: it logs the message payload
// so the activation and restore codes are visible while playing with the demo.
type consoleMailer struct {
	logger glog.Logger
}

func (m consoleMailer) Send(_ context.Context, msg accounts.MailMessage) error {
	m.logger.Info("sending mail",
		"to", msg.To,
		"subject", msg.Subject,
		"template", msg.Template,
		"data", msg.Data,
	)
	return nil
}
