package migrations

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
)

// ErrNothingToRollback is returned by Rollback when no migration is applied.
var ErrNothingToRollback = errors.New("no migrations to rollback")

// Migration represents a database migration
type Migration struct {
	ID        string
	Name      string
	UpSQL     string
	DownSQL   string
	CreatedAt time.Time
}

// All lists the schema migrations in apply order.
func All() []*Migration {
	return []*Migration{
		InitialSchema,
		RetentionPolicies,
	}
}

// Migrator manages database migrations
type Migrator struct {
	db     *sql.DB
	logger *log.Logger
}

// New creates a new Migrator
func New(db *sql.DB) *Migrator {
	return &Migrator{
		db:     db,
		logger: log.Default().WithPrefix("migrate"),
	}
}

// Initialize creates the migrations table if it doesn't exist
func (m *Migrator) Initialize() error {
	_, err := m.db.Exec(`
		CREATE TABLE IF NOT EXISTS migrations (
			id SERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

// GetAppliedMigrations returns the names of applied migrations
func (m *Migrator) GetAppliedMigrations() (map[string]bool, error) {
	rows, err := m.db.Query(`SELECT name FROM migrations ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			m.logger.Warn("error closing rows", "err", cerr)
		}
	}()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		applied[name] = true
	}
	return applied, rows.Err()
}

// Pending returns the migrations from list that are not applied yet.
func (m *Migrator) Pending(list []*Migration) ([]*Migration, error) {
	applied, err := m.GetAppliedMigrations()
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}
	var pending []*Migration
	for _, migration := range list {
		if !applied[migration.Name] {
			pending = append(pending, migration)
		}
	}
	return pending, nil
}

// run executes stmt and the bookkeeping query in one transaction.
func (m *Migrator) run(migration *Migration, stmt, record string) error {
	tx, err := m.db.Begin()
	if err != nil {
		return err
	}

	if _, err := tx.Exec(stmt); err != nil {
		m.rollback(tx)
		return fmt.Errorf("failed to execute migration %s: %w", migration.Name, err)
	}
	if _, err := tx.Exec(record, migration.Name); err != nil {
		m.rollback(tx)
		return fmt.Errorf("failed to record migration %s: %w", migration.Name, err)
	}
	return tx.Commit()
}

func (m *Migrator) rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil {
		m.logger.Warn("failed to rollback transaction", "err", err)
	}
}

// ApplyMigration applies a single migration
func (m *Migrator) ApplyMigration(migration *Migration) error {
	return m.run(migration, migration.UpSQL, "INSERT INTO migrations (name) VALUES ($1)")
}

// RollbackMigration rolls back a single migration
func (m *Migrator) RollbackMigration(migration *Migration) error {
	return m.run(migration, migration.DownSQL, "DELETE FROM migrations WHERE name = $1")
}

// Migrate applies all pending migrations in order
func (m *Migrator) Migrate(list []*Migration) error {
	if err := m.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}

	pending, err := m.Pending(list)
	if err != nil {
		return err
	}

	for _, migration := range pending {
		if err := m.ApplyMigration(migration); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Name, err)
		}
		m.logger.Info("applied migration", "name", migration.Name)
	}
	if len(pending) == 0 {
		m.logger.Info("schema up to date")
	}
	return nil
}

// Rollback rolls back the last applied migration
func (m *Migrator) Rollback(list []*Migration) error {
	applied, err := m.GetAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	var last *Migration
	for i := len(list) - 1; i >= 0; i-- {
		if applied[list[i].Name] {
			last = list[i]
			break
		}
	}
	if last == nil {
		return ErrNothingToRollback
	}

	if err := m.RollbackMigration(last); err != nil {
		return fmt.Errorf("failed to rollback migration %s: %w", last.Name, err)
	}
	m.logger.Info("rolled back migration", "name", last.Name)
	return nil
}
