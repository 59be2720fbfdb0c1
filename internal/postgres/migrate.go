package postgres

import (
	"context"
	"embed"
	"io/fs"
	"sort"
	"strings"

	ierr "github.com/invoicekit/invoicekit/internal/errors"
	"github.com/invoicekit/invoicekit/internal/logger"
	"github.com/samber/lo"
)

//go:embed migrations/*.up.sql
var migrationFS embed.FS

const createMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version     VARCHAR(255) PRIMARY KEY,
    applied_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Migration is one embedded schema change
type Migration struct {
	Version string
	SQL     string
}

// Migrator applies the embedded migrations in version order
type Migrator struct {
	db     *DB
	logger *logger.Logger
}

func NewMigrator(db *DB, logger *logger.Logger) *Migrator {
	return &Migrator{db: db, logger: logger}
}

// Migrations returns the embedded migrations sorted by version
func Migrations() ([]Migration, error) {
	names, err := fs.Glob(migrationFS, "migrations/*.up.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	migrations := make([]Migration, 0, len(names))
	for _, name := range names {
		body, err := migrationFS.ReadFile(name)
		if err != nil {
			return nil, err
		}
		version := strings.TrimSuffix(strings.TrimPrefix(name, "migrations/"), ".up.sql")
		migrations = append(migrations, Migration{Version: version, SQL: string(body)})
	}
	return migrations, nil
}

// Up applies every migration not yet recorded in schema_migrations, each in its own
// transaction. With dryRun set nothing is executed and the pending list is returned.
func (m *Migrator) Up(ctx context.Context, dryRun bool) ([]Migration, error) {
	all, err := Migrations()
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Could not read embedded migrations").
			Mark(ierr.ErrSystem)
	}

	if _, err := m.db.ExecContext(ctx, createMigrationsTable); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Could not create the migrations table").
			Mark(ierr.ErrDatabase)
	}

	var applied []string
	if err := m.db.SelectContext(ctx, &applied, `SELECT version FROM schema_migrations`); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Could not read applied migrations").
			Mark(ierr.ErrDatabase)
	}

	pending := lo.Filter(all, func(mig Migration, _ int) bool {
		return !lo.Contains(applied, mig.Version)
	})

	if dryRun {
		return pending, nil
	}

	for _, mig := range pending {
		m.logger.Infow("applying migration", "version", mig.Version)

		err := m.db.WithTx(ctx, func(txCtx context.Context) error {
			q := m.db.GetQuerier(txCtx)
			if _, err := q.ExecContext(txCtx, mig.SQL); err != nil {
				return err
			}
			_, err := q.ExecContext(txCtx, `INSERT INTO schema_migrations (version) VALUES ($1)`, mig.Version)
			return err
		})
		if err != nil {
			return nil, ierr.WithError(err).
				WithHintf("Migration %s failed", mig.Version).
				Mark(ierr.ErrDatabase)
		}
	}

	return pending, nil
}
