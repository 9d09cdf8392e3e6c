package migrations

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Migrator applies embedded schema migrations at startup, tracking applied
// versions in the schema_migrations table.
type Migrator struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewMigrator creates a new migrator.
func NewMigrator(db *sqlx.DB, logger *zap.Logger) *Migrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Migrator{db: db, logger: logger}
}

func (m *Migrator) ensureMigrationTable(ctx context.Context) error {
	const createTableSQL = `CREATE TABLE IF NOT EXISTS schema_migrations (
		version VARCHAR(255) PRIMARY KEY,
		applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`
	if _, err := m.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("create migration tracking table: %w", err)
	}
	return nil
}

func (m *Migrator) isApplied(ctx context.Context, version string) (bool, error) {
	var exists bool
	const query = `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`
	if err := m.db.GetContext(ctx, &exists, query, version); err != nil {
		return false, fmt.Errorf("check migration status: %w", err)
	}
	return exists, nil
}

// Run applies every pending migration in order, each inside a transaction.
func (m *Migrator) Run(ctx context.Context) error {
	if err := m.ensureMigrationTable(ctx); err != nil {
		return err
	}

	for _, mig := range all {
		applied, err := m.isApplied(ctx, mig.version)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		tx, err := m.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", mig.version, err)
		}
		if _, err := tx.ExecContext(ctx, mig.statements); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %s: %w", mig.version, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, applied_at) VALUES ($1, $2)`, mig.version, time.Now().UTC()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", mig.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", mig.version, err)
		}
		m.logger.Info("migration applied", zap.String("version", mig.version))
	}

	return nil
}

type migration struct {
	version    string
	statements string
}

var all = []migration{
	{version: "0001_init", statements: schemaInit},
}
