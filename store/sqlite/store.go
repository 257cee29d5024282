// Package sqlite stores registry records in SQLite through database/sql.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperledger/fabric/common/flogging"

	"verification/registry"

	_ "modernc.org/sqlite"
)

var logger = flogging.MustGetLogger("verification.store.sqlite")

// Store is a registry.Store over a single records table.
type Store struct {
	db *sql.DB
}

// busyTimeoutMillis bounds how long a writer from another process waits on the
// database lock before SQLite reports SQLITE_BUSY.
const busyTimeoutMillis = 5000

// Open opens the database at path. The pool is pinned to one connection: a
// ":memory:" database then sees the same data on every query, and racing
// writers in this process queue on the pool instead of failing with
// SQLITE_BUSY, so a losing Create reports registry.ErrRecordAlreadyExists.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

func dsn(path string) string {
	if path == ":memory:" {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_pragma=busy_timeout(%d)", path, sep, busyTimeoutMillis)
}

// New wraps db and creates the records table if needed.
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS registry_records (
		address TEXT PRIMARY KEY,
		kind INTEGER NOT NULL,
		data BLOB NOT NULL
	);`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("migrate registry_records: %w", err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, addr registry.Address) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM registry_records WHERE address = ?`, addr.String()).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, registry.ErrRecordNotFound
		}
		return nil, fmt.Errorf("load record %s: %w", addr, err)
	}
	return data, nil
}

// Create relies on the primary key: a conflicting insert affects no rows.
func (s *Store) Create(ctx context.Context, addr registry.Address, data []byte) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO registry_records (address, kind, data)
		VALUES (?, ?, ?)
		ON CONFLICT (address) DO NOTHING`,
		addr.String(), int(registry.KindOf(data)), data)
	if err != nil {
		return fmt.Errorf("create record %s: %w", addr, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create record %s: rows affected: %w", addr, err)
	}
	if n == 0 {
		return registry.ErrRecordAlreadyExists
	}
	return nil
}

func (s *Store) Save(ctx context.Context, addr registry.Address, data []byte) error {
	res, err := s.db.ExecContext(ctx, `UPDATE registry_records SET data = ? WHERE address = ?`, data, addr.String())
	if err != nil {
		return fmt.Errorf("save record %s: %w", addr, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save record %s: rows affected: %w", addr, err)
	}
	if n == 0 {
		return registry.ErrRecordNotFound
	}
	return nil
}

type row struct {
	addr registry.Address
	data []byte
}

// Scan reads all rows before invoking fn so callbacks may query the store.
func (s *Store) Scan(ctx context.Context, fn func(registry.Address, []byte) error) error {
	rows, err := s.db.QueryContext(ctx, `SELECT address, data FROM registry_records ORDER BY address`)
	if err != nil {
		return fmt.Errorf("scan records: %w", err)
	}
	defer rows.Close()

	var all []row
	for rows.Next() {
		var (
			text string
			data []byte
		)
		if err := rows.Scan(&text, &data); err != nil {
			return fmt.Errorf("scan records: %w", err)
		}
		addr, err := registry.ParseAddress(text)
		if err != nil {
			logger.Warningf("Scan: skipping row with bad address '%s': %v", text, err)
			continue
		}
		all = append(all, row{addr: addr, data: data})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("scan records: %w", err)
	}
	rows.Close()

	for _, r := range all {
		if err := fn(r.addr, r.data); err != nil {
			return err
		}
	}
	return nil
}
