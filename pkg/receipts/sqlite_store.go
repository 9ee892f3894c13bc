package receipts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const receiptColumns = `id, certificate_digest, patch_hash, result, code, admitted, reason, cost, budget, epsilon, patch_size, timestamp, prev_hash, signer_key, signature`

// SQLiteStore persists receipts in an embedded SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and migrates it.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One writer keeps append order and chain linkage consistent.
	db.SetMaxOpenConns(1)
	return NewSQLiteStore(ctx, db)
}

func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS opengate_receipts (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		certificate_digest TEXT NOT NULL,
		patch_hash TEXT NOT NULL,
		result TEXT NOT NULL,
		code INTEGER NOT NULL,
		admitted INTEGER NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		cost INTEGER NOT NULL,
		budget INTEGER NOT NULL,
		epsilon INTEGER NOT NULL,
		patch_size INTEGER NOT NULL,
		timestamp TEXT NOT NULL,
		prev_hash TEXT NOT NULL DEFAULT '',
		signer_key TEXT NOT NULL DEFAULT '',
		signature TEXT NOT NULL DEFAULT ''
	);`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("migrate receipts: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Append(ctx context.Context, r *Receipt) error {
	query := `INSERT INTO opengate_receipts (` + receiptColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.CertificateDigest, r.PatchHash, r.Result, r.Code, r.Admitted, r.Reason,
		int64(r.Cost), int64(r.Budget), int64(r.Epsilon), r.PatchSize,
		r.Timestamp.UTC().Format(time.RFC3339Nano), r.PrevHash, r.SignerKey, r.Signature,
	)
	if err != nil {
		return fmt.Errorf("failed to insert receipt: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Receipt, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+receiptColumns+` FROM opengate_receipts WHERE id = ?`, id)
	r, err := scanSQLite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]*Receipt, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+receiptColumns+` FROM opengate_receipts ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*Receipt
	for rows.Next() {
		r, err := scanSQLite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Last(ctx context.Context) (*Receipt, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+receiptColumns+` FROM opengate_receipts ORDER BY seq DESC LIMIT 1`)
	r, err := scanSQLite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLite(row rowScanner) (*Receipt, error) {
	var (
		r                     Receipt
		cost, budget, epsilon int64
		timestamp             string
	)
	err := row.Scan(&r.ID, &r.CertificateDigest, &r.PatchHash, &r.Result, &r.Code, &r.Admitted, &r.Reason,
		&cost, &budget, &epsilon, &r.PatchSize, &timestamp, &r.PrevHash, &r.SignerKey, &r.Signature)
	if err != nil {
		return nil, err
	}
	r.Cost, r.Budget, r.Epsilon = uint64(cost), uint32(budget), uint32(epsilon)
	r.Timestamp = parseTime(timestamp)
	return &r, nil
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC()
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC()
	}
	return time.Time{}
}
