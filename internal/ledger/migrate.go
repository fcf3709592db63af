package ledger

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

//go:embed migrations/*/*.sql
var migrationsFS embed.FS

type DBDriver string

const (
	DBSQLite   DBDriver = "sqlite"
	DBPostgres DBDriver = "postgres"
)

var ErrUnsupportedDriver = errors.New("unsupported db driver")

// ParseDriver maps a config value onto a DBDriver.
func ParseDriver(name string) (DBDriver, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sqlite", "sqlite3":
		return DBSQLite, nil
	case "postgres", "postgresql", "pg":
		return DBPostgres, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedDriver, name)
	}
}

// dialect is the per-driver bookkeeping for schema versions.
type dialect struct {
	dir   string
	table string
	ddl   string
	// record inserts a version and affects no row when it is already there.
	record string
	stamp  func(time.Time) any
}

var dialects = map[DBDriver]dialect{
	DBSQLite: {
		dir:    "migrations/sqlite",
		table:  "schema_migrations",
		ddl:    `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied_at TEXT NOT NULL)`,
		record: `INSERT INTO schema_migrations(version, applied_at) VALUES(?, ?) ON CONFLICT(version) DO NOTHING`,
		stamp:  func(t time.Time) any { return t.Format(time.RFC3339) },
	},
	DBPostgres: {
		dir:    "migrations/postgres",
		table:  "tally_schema_migrations",
		ddl:    `CREATE TABLE IF NOT EXISTS tally_schema_migrations (version TEXT PRIMARY KEY, applied_at TIMESTAMPTZ NOT NULL)`,
		record: `INSERT INTO tally_schema_migrations(version, applied_at) VALUES($1, $2) ON CONFLICT(version) DO NOTHING`,
		stamp:  func(t time.Time) any { return t },
	},
}

func dialectFor(driver DBDriver) (dialect, error) {
	d, ok := dialects[driver]
	if !ok {
		return dialect{}, fmt.Errorf("%w: %s", ErrUnsupportedDriver, driver)
	}
	return d, nil
}

// Migrate brings the ledger schema up to date. Each embedded file runs once,
// in name order, in the same transaction that records its version.
func Migrate(db *sql.DB, driver DBDriver) error {
	if db == nil {
		return fmt.Errorf("missing db")
	}
	d, err := dialectFor(driver)
	if err != nil {
		return err
	}
	if _, err := db.Exec(d.ddl); err != nil {
		return fmt.Errorf("create %s: %w", d.table, err)
	}

	files, err := d.files()
	if err != nil {
		return err
	}
	at := time.Now().UTC()
	for _, file := range files {
		if err := d.apply(db, file, at); err != nil {
			return err
		}
	}
	return nil
}

func (d dialect) files() ([]string, error) {
	files, err := fs.Glob(migrationsFS, d.dir+"/*.sql")
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no migrations under %s", d.dir)
	}
	sort.Strings(files)
	return files, nil
}

func (d dialect) apply(db *sql.DB, file string, at time.Time) (err error) {
	version := strings.TrimSuffix(path.Base(file), ".sql")
	body, err := migrationsFS.ReadFile(file)
	if err != nil {
		return err
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.Exec(d.record, version, d.stamp(at))
	if err != nil {
		return fmt.Errorf("record migration %s: %w", version, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return tx.Rollback()
	}
	if _, err = tx.Exec(string(body)); err != nil {
		return fmt.Errorf("apply migration %s: %w", version, err)
	}
	return tx.Commit()
}
