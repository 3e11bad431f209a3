// Package storage persists users, notifications and announcements through
// sqlx, on SQLite (modernc) or PostgreSQL (pgx).
package storage

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

//go:embed migrations/*.sql
var migrations embed.FS

// goose keeps its settings in package globals.
var gooseMu sync.Mutex

type DB struct {
	db     *sqlx.DB
	driver string
}

// Open connects with driver "sqlite" or "pgx" and applies pending migrations.
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	var dialect string
	switch driver {
	case "sqlite":
		dialect = "sqlite3"
	case "pgx":
		dialect = "postgres"
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	if driver == "sqlite" {
		// One connection: ":memory:" databases are per connection and
		// SQLite serialises writers anyway.
		db.SetMaxOpenConns(1)
		for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON"} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				db.Close()
				return nil, fmt.Errorf("%s: %w", pragma, err)
			}
		}
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	if err := migrate(ctx, db, dialect); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	log.Info().Str("module", "storage").Str("driver", driver).Msg("database ready")
	return &DB{db: db, driver: driver}, nil
}

func migrate(ctx context.Context, db *sqlx.DB, dialect string) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{log.With().Str("module", "storage.migrate").Logger()})
	if err := goose.SetDialect(dialect); err != nil {
		return err
	}
	return goose.UpContext(ctx, db.DB, "migrations")
}

func (d *DB) Close() error { return d.db.Close() }

func (d *DB) Users() *Users                 { return &Users{db: d.db} }
func (d *DB) Notifications() *Notifications { return &Notifications{db: d.db} }
func (d *DB) Announcements() *Announcements { return &Announcements{db: d.db} }

// isUniqueViolation reports a unique-constraint failure on either driver.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

type gooseLogger struct {
	l zerolog.Logger
}

func (g gooseLogger) Printf(format string, v ...any) { g.l.Info().Msgf(format, v...) }
func (g gooseLogger) Fatalf(format string, v ...any) { g.l.Fatal().Msgf(format, v...) }
