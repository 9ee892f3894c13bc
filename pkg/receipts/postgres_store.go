package receipts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresStore is the durable receipt store for multi-instance deployments.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres connects with lib/pq and migrates the schema.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := NewPostgresStore(db)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the receipts table if missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS opengate_receipts (
		seq BIGSERIAL PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		certificate_digest TEXT NOT NULL,
		patch_hash TEXT NOT NULL,
		result TEXT NOT NULL,
		code INTEGER NOT NULL,
		admitted BOOLEAN NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		cost BIGINT NOT NULL,
		budget BIGINT NOT NULL,
		epsilon BIGINT NOT NULL,
		patch_size BIGINT NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL,
		prev_hash TEXT NOT NULL DEFAULT '',
		signer_key TEXT NOT NULL DEFAULT '',
		signature TEXT NOT NULL DEFAULT ''
	)`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("migrate receipts: %w", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, r *Receipt) error {
	query := `INSERT INTO opengate_receipts (` + receiptColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.CertificateDigest, r.PatchHash, r.Result, r.Code, r.Admitted, r.Reason,
		int64(r.Cost), int64(r.Budget), int64(r.Epsilon), r.PatchSize,
		r.Timestamp.UTC(), r.PrevHash, r.SignerKey, r.Signature,
	)
	if err != nil {
		return fmt.Errorf("failed to insert receipt: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Receipt, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+receiptColumns+` FROM opengate_receipts WHERE id = $1`, id)
	r, err := scanPostgres(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]*Receipt, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = s.db.QueryContext(ctx, `SELECT `+receiptColumns+` FROM opengate_receipts ORDER BY seq DESC LIMIT $1`, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `SELECT `+receiptColumns+` FROM opengate_receipts ORDER BY seq DESC`)
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*Receipt
	for rows.Next() {
		r, err := scanPostgres(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Last(ctx context.Context) (*Receipt, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+receiptColumns+` FROM opengate_receipts ORDER BY seq DESC LIMIT 1`)
	r, err := scanPostgres(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

// Close closes the database.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func scanPostgres(row rowScanner) (*Receipt, error) {
	var (
		r                     Receipt
		cost, budget, epsilon int64
	)
	err := row.Scan(&r.ID, &r.CertificateDigest, &r.PatchHash, &r.Result, &r.Code, &r.Admitted, &r.Reason,
		&cost, &budget, &epsilon, &r.PatchSize, &r.Timestamp, &r.PrevHash, &r.SignerKey, &r.Signature)
	if err != nil {
		return nil, err
	}
	r.Cost, r.Budget, r.Epsilon = uint64(cost), uint32(budget), uint32(epsilon)
	r.Timestamp = r.Timestamp.UTC()
	return &r, nil
}
