package main

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	_ "github.com/lib/pq"
	"github.com/spf13/pflag"

	"github.com/saviobatista/rid-tracker/internal/config"
	"github.com/saviobatista/rid-tracker/internal/db/migrations"
)

// options are the command line options of the migrate command.
type options struct {
	dbURL    string
	rollback bool
	status   bool
}

func parseFlags(args []string, defaultDB string) (*options, error) {
	opts := &options{}
	fs := pflag.NewFlagSet("migrate", pflag.ContinueOnError)
	fs.StringVar(&opts.dbURL, "db", defaultDB, "Database connection string")
	fs.BoolVar(&opts.rollback, "rollback", false, "Rollback the last migration")
	fs.BoolVar(&opts.status, "status", false, "List pending migrations and exit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if opts.rollback && opts.status {
		return nil, errors.New("--rollback and --status are mutually exclusive")
	}
	return opts, nil
}

// runMigration applies, rolls back or reports migrations on an open database.
func runMigration(db *sql.DB, opts *options, logger *log.Logger) error {
	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	migrator := migrations.New(db)
	list := migrations.All()

	switch {
	case opts.status:
		if err := migrator.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize migrations: %w", err)
		}
		pending, err := migrator.Pending(list)
		if err != nil {
			return err
		}
		for _, m := range pending {
			logger.Info("pending migration", "name", m.Name)
		}
		logger.Info("migration status", "known", len(list), "pending", len(pending))
		return nil

	case opts.rollback:
		if err := migrator.Rollback(list); err != nil {
			if errors.Is(err, migrations.ErrNothingToRollback) {
				logger.Warn("nothing to rollback")
				return nil
			}
			return err
		}
		return nil

	default:
		return migrator.Migrate(list)
	}
}

func run(opts *options, logger *log.Logger) error {
	db, err := sql.Open("postgres", opts.dbURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("error closing database", "err", err)
		}
	}()
	return runMigration(db, opts, logger)
}

func main() {
	defaultDB := config.DefaultDBConnStr
	logLevel := config.DefaultLogLevel
	if cfg, err := config.Load(); err == nil {
		defaultDB = cfg.DBConnStr
		logLevel = cfg.LogLevel
	}
	logger := (&config.Config{LogLevel: logLevel}).NewLogger("migrate")

	opts, err := parseFlags(os.Args[1:], defaultDB)
	if err != nil {
		logger.Error("Invalid arguments", "err", err)
		os.Exit(2)
	}

	if err := run(opts, logger); err != nil {
		logger.Error("Migration failed", "err", err)
		os.Exit(1)
	}
}
