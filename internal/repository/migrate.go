package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/joseph-ayodele/payment-receipts/db"
)

// MigrateUp applies every pending migration. Postgres goes through golang-migrate so the
// schema version is tracked; SQLite replays the idempotent up files directly.
func (d *DB) MigrateUp(ctx context.Context) error {
	start := time.Now()
	var err error
	switch d.dialect {
	case dialect.Postgres:
		err = d.withMigrator(func(m *migrate.Migrate) error {
			if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
				return err
			}
			return nil
		})
	case dialect.SQLite:
		err = d.applySQLite(ctx)
	default:
		err = fmt.Errorf("migrations not supported for %q", d.dialect)
	}
	if err != nil {
		d.logger.Error("db.migrate.failed", "error", err)
		return fmt.Errorf("migrate up: %w", err)
	}
	d.logger.Info("db.migrate.ok", "driver", d.dialect, "elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

// MigrateDown rolls back steps migrations (Postgres only).
func (d *DB) MigrateDown(steps int) error {
	if d.dialect != dialect.Postgres {
		return fmt.Errorf("migrate down: not supported for %q", d.dialect)
	}
	if steps <= 0 {
		steps = 1
	}
	return d.withMigrator(func(m *migrate.Migrate) error {
		if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migrate down: %w", err)
		}
		return nil
	})
}

// MigrationVersion reports the applied schema version (Postgres only).
func (d *DB) MigrationVersion() (version uint, dirty bool, err error) {
	if d.dialect != dialect.Postgres {
		return 0, false, fmt.Errorf("migration version: not supported for %q", d.dialect)
	}
	err = d.withMigrator(func(m *migrate.Migrate) error {
		var verr error
		version, dirty, verr = m.Version()
		if errors.Is(verr, migrate.ErrNilVersion) {
			return nil
		}
		return verr
	})
	return version, dirty, err
}

// withMigrator opens a dedicated migrate connection; closing it must not close the pool.
func (d *DB) withMigrator(fn func(m *migrate.Migrate) error) error {
	src, err := iofs.New(db.Migrations, db.MigrationsDir)
	if err != nil {
		return fmt.Errorf("opening embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, pgx5URL(d.url))
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			d.logger.Warn("closing migrator", "source_error", srcErr, "db_error", dbErr)
		}
	}()
	return fn(m)
}

func pgx5URL(url string) string {
	for _, scheme := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(url, scheme) {
			return "pgx5://" + strings.TrimPrefix(url, scheme)
		}
	}
	return url
}

func (d *DB) applySQLite(ctx context.Context) error {
	names, err := fs.Glob(db.Migrations, db.MigrationsDir+"/*.up.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)
	for _, name := range names {
		body, err := fs.ReadFile(db.Migrations, name)
		if err != nil {
			return fmt.Errorf("reading %s: %w", name, err)
		}
		if _, err := d.SQL.ExecContext(ctx, string(body)); err != nil {
			return fmt.Errorf("applying %s: %w", name, err)
		}
		d.logger.Debug("db.migrate.applied", "file", name)
	}
	return nil
}
