// Command accountctl administers an accountcore PostgreSQL deployment.
//
// Usage:
//
//	accountctl [-config accountctl.toml] <command> [flags]
//
// Commands:
//
//	migrate         apply the embedded schema migrations
//	bootstrap       create the first administrator
//	unlock          clear lockout state for an account id
//	purge-revoked   delete revoked-token rows past their expiry
//	report          print the effective security settings as JSON
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/MrEthical07/accountcore"
	"github.com/MrEthical07/accountcore/store/pgstore"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Seams for tests.
var (
	openDB    = pgstore.Open
	migrateDB = pgstore.Migrate
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, os.Getenv)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, getenv func(string) string) int {
	global := flag.NewFlagSet("accountctl", flag.ContinueOnError)
	global.SetOutput(stderr)
	configPath := global.String("config", "", "path to a TOML config file")
	global.Usage = func() {
		fmt.Fprintln(stderr, "usage: accountctl [-config file] <migrate|bootstrap|unlock|purge-revoked|report> [flags]")
		global.PrintDefaults()
	}
	if err := global.Parse(args); err != nil {
		return 2
	}
	if global.NArg() == 0 {
		global.Usage()
		return 2
	}

	cmd, rest := global.Arg(0), global.Args()[1:]
	var handler func(context.Context, *app, []string) error
	switch cmd {
	case "migrate":
		handler = runMigrate
	case "bootstrap":
		handler = runBootstrap
	case "unlock":
		handler = runUnlock
	case "purge-revoked":
		handler = runPurgeRevoked
	case "report":
		handler = runReport
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", cmd)
		global.Usage()
		return 2
	}

	cfg, err := loadConfig(*configPath, getenv)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	logger, err := cfg.newLogger()
	if err != nil {
		fmt.Fprintf(stderr, "failed to build logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	a := &app{cfg: cfg, getenv: getenv, stdout: stdout, stderr: stderr, logger: logger}
	if err := handler(ctx, a, rest); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		if errors.Is(err, errUsage) {
			return 2
		}
		logger.Error("command failed", zap.String("command", cmd), zap.Error(err))
		fmt.Fprintf(stderr, "%s: %v\n", cmd, err)
		return 1
	}
	return 0
}

var errUsage = errors.New("usage")

type app struct {
	cfg    fileConfig
	getenv func(string) string
	stdout io.Writer
	stderr io.Writer
	logger *zap.Logger
}

func (a *app) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

func (a *app) open(ctx context.Context) (*sql.DB, error) {
	if err := a.cfg.requireDSN(); err != nil {
		return nil, err
	}
	return openDB(ctx, a.cfg.Database.DSN)
}

// engine builds an Engine over db. Redis is attached when configured so
// that limiter state matches the serving deployment.
func (a *app) engine(db *sql.DB) (*accountcore.Engine, func(), error) {
	cfg, err := a.cfg.engineConfig()
	if err != nil {
		return nil, nil, err
	}

	b := accountcore.New().
		WithConfig(cfg).
		WithStore(pgstore.New(db, pgstore.Options{})).
		WithLogger(a.logger)

	var rdb *redis.Client
	if a.cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		b = b.WithRedis(rdb)
	}

	engine, err := b.Build()
	if err != nil {
		if rdb != nil {
			_ = rdb.Close()
		}
		return nil, nil, err
	}
	cleanup := func() {
		engine.Close()
		if rdb != nil {
			_ = rdb.Close()
		}
	}
	return engine, cleanup, nil
}

func runMigrate(ctx context.Context, a *app, args []string) error {
	fs := a.flags("migrate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrateDB(ctx, db); err != nil {
		return err
	}
	a.logger.Info("migrations applied")
	fmt.Fprintln(a.stdout, "migrations applied")
	return nil
}

func runBootstrap(ctx context.Context, a *app, args []string) error {
	fs := a.flags("bootstrap")
	email := fs.String("email", "", "administrator email")
	dni := fs.Int64("dni", 0, "administrator national id")
	firstName := fs.String("first-name", "", "administrator first name")
	lastName := fs.String("last-name", "", "administrator last name")
	passwordFlag := fs.String("password", "", "administrator password (prefer ACCOUNTCTL_BOOTSTRAP_PASSWORD)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	pw := *passwordFlag
	if pw == "" {
		pw = a.getenv("ACCOUNTCTL_BOOTSTRAP_PASSWORD")
	}
	if *email == "" || pw == "" {
		fmt.Fprintln(a.stderr, "bootstrap requires -email and a password")
		fs.PrintDefaults()
		return errUsage
	}

	db, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	engine, cleanup, err := a.engine(db)
	if err != nil {
		return err
	}
	defer cleanup()

	acc, err := engine.Bootstrap(ctx, accountcore.NewAccount{
		Email:     *email,
		Password:  pw,
		DNI:       *dni,
		FirstName: *firstName,
		LastName:  *lastName,
	})
	if err != nil {
		return err
	}
	a.logger.Info("administrator created", zap.String("account_id", acc.ID))
	fmt.Fprintf(a.stdout, "created administrator %s (%s)\n", acc.ID, acc.Email)
	return nil
}

func runUnlock(ctx context.Context, a *app, args []string) error {
	fs := a.flags("unlock")
	id := fs.String("id", "", "account id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		fmt.Fprintln(a.stderr, "unlock requires -id")
		return errUsage
	}

	db, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	engine, cleanup, err := a.engine(db)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := engine.UnlockAccount(ctx, *id); err != nil {
		return err
	}
	a.logger.Info("account unlocked", zap.String("account_id", *id))
	fmt.Fprintf(a.stdout, "unlocked %s\n", *id)
	return nil
}

func runPurgeRevoked(ctx context.Context, a *app, args []string) error {
	fs := a.flags("purge-revoked")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := pgstore.New(db, pgstore.Options{}).PurgeRevoked(ctx)
	if err != nil {
		return err
	}
	a.logger.Info("revoked tokens purged", zap.Int64("rows", n))
	fmt.Fprintf(a.stdout, "purged %d revoked tokens\n", n)
	return nil
}

func runReport(ctx context.Context, a *app, args []string) error {
	fs := a.flags("report")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	engine, cleanup, err := a.engine(db)
	if err != nil {
		return err
	}
	defer cleanup()

	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(engine.SecurityReport())
}
