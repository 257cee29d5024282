// Package postgres stores registry records in PostgreSQL through database/sql and lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hyperledger/fabric/common/flogging"
	_ "github.com/lib/pq"

	"verification/registry"
)

var logger = flogging.MustGetLogger("verification.store.postgres")

// Store is a registry.Store over the registry_records table.
type Store struct {
	db *sql.DB
}

// Open connects to the database at dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return db, nil
}

// New wraps db and creates the records table if needed.
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	query := `
		CREATE TABLE IF NOT EXISTS registry_records (
			address TEXT PRIMARY KEY,
			kind SMALLINT NOT NULL,
			data BYTEA NOT NULL
		)`
	if _, err := db.ExecContext(ctx, query); err != nil {
		return nil, fmt.Errorf("migrate registry_records: %w", err)
	}
	return s, nil
}

func (s *Store) Load(ctx context.Context, addr registry.Address) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM registry_records WHERE address = $1`, addr.String()).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, registry.ErrRecordNotFound
		}
		return nil, fmt.Errorf("load record %s: %w", addr, err)
	}
	return data, nil
}

// Create is a single INSERT; the primary key arbitrates concurrent creators.
func (s *Store) Create(ctx context.Context, addr registry.Address, data []byte) error {
	query := `
		INSERT INTO registry_records (address, kind, data)
		VALUES ($1, $2, $3)
		ON CONFLICT (address) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query, addr.String(), int(registry.KindOf(data)), data)
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
	res, err := s.db.ExecContext(ctx, `UPDATE registry_records SET data = $1 WHERE address = $2`, data, addr.String())
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

func (s *Store) Scan(ctx context.Context, fn func(registry.Address, []byte) error) error {
	rows, err := s.db.QueryContext(ctx, `SELECT address, data FROM registry_records ORDER BY address`)
	if err != nil {
		return fmt.Errorf("scan records: %w", err)
	}
	defer rows.Close()

	type record struct {
		addr registry.Address
		data []byte
	}
	var all []record
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
		all = append(all, record{addr: addr, data: data})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("scan records: %w", err)
	}
	for _, r := range all {
		if err := fn(r.addr, r.data); err != nil {
			return err
		}
	}
	return nil
}
