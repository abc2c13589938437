package db

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrSiteExists        = errors.New("a site with this name already exists")
	ErrNameRequired      = errors.New("name is required")
	ErrInvalidConfigData = errors.New("configuration data must be a JSON object")
	ErrInvalidBackup     = errors.New("not a SQLite database")
)

var sqliteHeader = []byte("SQLite format 3\x00")

// DB is the SQLite repository behind the remote store. It is safe for
// concurrent use; Restore swaps the underlying file under the write lock.
type DB struct {
	mu   sync.RWMutex
	conn *sql.DB
	path string
}

// Open opens (creating if needed) the database at path and applies the schema
func Open(path string) (*DB, error) {
	conn, err := connect(path)
	if err != nil {
		return nil, err
	}
	return &DB{conn: conn, path: path}, nil
}

func connect(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// sqlite serializes writers anyway
	conn.SetMaxOpenConns(1)

	if err = conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err = createTables(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// Path returns the database file path
func (d *DB) Path() string {
	return d.path
}

// Close closes the database connection
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn != nil {
		err := d.conn.Close()
		d.conn = nil
		return err
	}
	return nil
}

// Ping checks the connection
func (d *DB) Ping(ctx context.Context) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.conn == nil {
		return errors.New("database closed")
	}
	return d.conn.PingContext(ctx)
}

func createTables(conn *sql.DB) error {
	createSitesTable := `CREATE TABLE IF NOT EXISTS sites (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		description TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);`

	if _, err := conn.Exec(createSitesTable); err != nil {
		return fmt.Errorf("create sites table: %w", err)
	}

	createConfigurationsTable := `CREATE TABLE IF NOT EXISTS rack_configurations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		site_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		config_data TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE(site_id, name),
		FOREIGN KEY(site_id) REFERENCES sites(id) ON DELETE CASCADE
	);`

	if _, err := conn.Exec(createConfigurationsTable); err != nil {
		return fmt.Errorf("create rack_configurations table: %w", err)
	}

	// Migration for the description column, absent from early databases
	if _, err := conn.Exec("ALTER TABLE rack_configurations ADD COLUMN description TEXT"); err != nil {
		// Ignore if column exists
		log.Trace().Err(err).Msg("description column migration skipped")
	}

	if _, err := conn.Exec("CREATE INDEX IF NOT EXISTS idx_rack_configurations_site ON rack_configurations(site_id)"); err != nil {
		return fmt.Errorf("create site index: %w", err)
	}
	return nil
}

// Backup writes a consistent copy of the database to w
func (d *DB) Backup(ctx context.Context, w io.Writer) error {
	tmp, err := os.MkdirTemp("", "racksum-backup-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)
	snapshot := filepath.Join(tmp, "backup.db")

	d.mu.RLock()
	if d.conn == nil {
		d.mu.RUnlock()
		return errors.New("database closed")
	}
	_, err = d.conn.ExecContext(ctx, "VACUUM INTO ?", snapshot)
	d.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("snapshot database: %w", err)
	}

	f, err := os.Open(snapshot)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

// Restore replaces the database with the SQLite file read from r. The file is
// checked before the live database is touched; on failure the old one stays open.
func (d *DB) Restore(r io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(d.path), ".racksum-restore-*.db")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err = io.Copy(tmp, r); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = checkBackup(tmpPath); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn != nil {
		if err = d.conn.Close(); err != nil {
			return fmt.Errorf("close database: %w", err)
		}
		d.conn = nil
	}
	if err = os.Rename(tmpPath, d.path); err != nil {
		// reopen the old file so the server keeps working
		conn, openErr := connect(d.path)
		if openErr == nil {
			d.conn = conn
		}
		return fmt.Errorf("replace database: %w", err)
	}
	// stale journals belong to the old file
	os.Remove(d.path + "-wal")
	os.Remove(d.path + "-shm")

	conn, err := connect(d.path)
	if err != nil {
		return err
	}
	d.conn = conn
	log.Info().Str("path", d.path).Msg("database restored")
	return nil
}

func checkBackup(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	header := make([]byte, len(sqliteHeader))
	if _, err = io.ReadFull(f, header); err != nil || !bytes.Equal(header, sqliteHeader) {
		return ErrInvalidBackup
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}
