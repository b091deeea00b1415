package sqlite

import (
	"database/sql"
	"fmt"
	"io"

	"github.com/golang-migrate/migrate/v4/database"
)

// migrationDriver adapts an already-open *sql.DB (ncruces driver) to
// golang-migrate's database.Driver interface. The stock sqlite drivers in
// migrate bring their own engine; this keeps the daemon on a single
// driver registration.
type migrationDriver struct {
	db *sql.DB
}

var _ database.Driver = (*migrationDriver)(nil)

func newMigrationDriver(db *sql.DB) *migrationDriver {
	return &migrationDriver{db: db}
}

func (d *migrationDriver) Open(url string) (database.Driver, error) {
	return nil, fmt.Errorf("migrationDriver is instance-only")
}

func (d *migrationDriver) Close() error { return nil }

// Lock is a no-op: the daemon is the only writer and migrations run once
// at startup before anything else touches the database.
func (d *migrationDriver) Lock() error   { return nil }
func (d *migrationDriver) Unlock() error { return nil }

func (d *migrationDriver) Run(migration io.Reader) error {
	stmts, err := io.ReadAll(migration)
	if err != nil {
		return fmt.Errorf("reading migration: %w", err)
	}
	if _, err := d.db.Exec(string(stmts)); err != nil {
		return database.Error{OrigErr: err, Err: "migration failed", Query: stmts}
	}
	return nil
}

func (d *migrationDriver) SetVersion(version int, dirty bool) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER NOT NULL, dirty INTEGER NOT NULL)`); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.Exec(`DELETE FROM schema_migrations`); err != nil {
		_ = tx.Rollback()
		return err
	}
	// version < 0 means NilVersion: leave the table empty.
	if version >= 0 {
		dirtyInt := 0
		if dirty {
			dirtyInt = 1
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (version, dirty) VALUES (?, ?)`, version, dirtyInt); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (d *migrationDriver) Version() (int, bool, error) {
	var version, dirty int
	err := d.db.QueryRow(`SELECT version, dirty FROM schema_migrations LIMIT 1`).Scan(&version, &dirty)
	switch {
	case err == sql.ErrNoRows:
		return database.NilVersion, false, nil
	case err != nil:
		// Table absent on a fresh database.
		return database.NilVersion, false, nil
	}
	return version, dirty == 1, nil
}

func (d *migrationDriver) Drop() error {
	rows, err := d.db.Query(`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'`)
	if err != nil {
		return err
	}
	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			_ = rows.Close()
			return err
		}
		tables = append(tables, name)
	}
	if err := rows.Close(); err != nil {
		return err
	}
	for _, table := range tables {
		if _, err := d.db.Exec(`DROP TABLE ` + table); err != nil {
			return err
		}
	}
	return nil
}
