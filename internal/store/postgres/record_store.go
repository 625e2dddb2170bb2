package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/glebkoxan36/mypip/internal/domain"
	"github.com/glebkoxan36/mypip/internal/store"
)

// RecordStore implements store.RecordStore using PostgreSQL.
type RecordStore struct {
	pool *Pool
}

// NewRecordStore creates a new RecordStore.
func NewRecordStore(pool *Pool) *RecordStore {
	return &RecordStore{pool: pool}
}

// Compile-time interface check.
var _ store.RecordStore = (*RecordStore)(nil)

// Put inserts or replaces a record keyed by (coin, address).
func (s *RecordStore) Put(ctx context.Context, rec *domain.CollectionRecord) error {
	if rec == nil || rec.Coin == "" || rec.Address == "" {
		return store.ErrInvalidInput
	}

	query := `
		INSERT INTO collection_records (
			coin, address, state, balance, confirmations,
			credential_ref, attempts, txid, last_error,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11
		)
		ON CONFLICT (coin, address) DO UPDATE SET
			state = EXCLUDED.state,
			balance = EXCLUDED.balance,
			confirmations = EXCLUDED.confirmations,
			credential_ref = EXCLUDED.credential_ref,
			attempts = EXCLUDED.attempts,
			txid = EXCLUDED.txid,
			last_error = EXCLUDED.last_error,
			updated_at = EXCLUDED.updated_at
	`

	_, err := s.pool.Exec(ctx, query,
		string(rec.Coin), rec.Address, string(rec.State), rec.Balance, rec.Confirmations,
		rec.CredentialRef, rec.Attempts, rec.Txid, rec.LastError,
		rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("put collection record: %w", err)
	}
	return nil
}

// Get retrieves a record. Returns ErrNotFound if not exists.
func (s *RecordStore) Get(ctx context.Context, coin domain.Coin, address string) (*domain.CollectionRecord, error) {
	query := `
		SELECT
			coin, address, state, balance, confirmations,
			credential_ref, attempts, txid, last_error,
			created_at, updated_at
		FROM collection_records
		WHERE coin = $1 AND address = $2
	`

	row := s.pool.QueryRow(ctx, query, string(coin), address)
	rec, err := scanCollectionRecord(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get collection record: %w", err)
	}
	return rec, nil
}

// Delete removes a record. Returns ErrNotFound if not exists.
func (s *RecordStore) Delete(ctx context.Context, coin domain.Coin, address string) error {
	query := `DELETE FROM collection_records WHERE coin = $1 AND address = $2`

	tag, err := s.pool.Exec(ctx, query, string(coin), address)
	if err != nil {
		return fmt.Errorf("delete collection record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ListByCoin retrieves a coin's records, ordered by address ASC.
func (s *RecordStore) ListByCoin(ctx context.Context, coin domain.Coin) ([]*domain.CollectionRecord, error) {
	query := `
		SELECT
			coin, address, state, balance, confirmations,
			credential_ref, attempts, txid, last_error,
			created_at, updated_at
		FROM collection_records
		WHERE coin = $1
		ORDER BY address ASC
	`

	rows, err := s.pool.Query(ctx, query, string(coin))
	if err != nil {
		return nil, fmt.Errorf("list collection records: %w", err)
	}
	defer rows.Close()

	return scanCollectionRecords(rows)
}

// ListByState retrieves a coin's records in the given state, ordered by
// address ASC.
func (s *RecordStore) ListByState(ctx context.Context, coin domain.Coin, state domain.CollectionState) ([]*domain.CollectionRecord, error) {
	query := `
		SELECT
			coin, address, state, balance, confirmations,
			credential_ref, attempts, txid, last_error,
			created_at, updated_at
		FROM collection_records
		WHERE coin = $1 AND state = $2
		ORDER BY address ASC
	`

	rows, err := s.pool.Query(ctx, query, string(coin), string(state))
	if err != nil {
		return nil, fmt.Errorf("list collection records by state: %w", err)
	}
	defer rows.Close()

	return scanCollectionRecords(rows)
}

// scanCollectionRecord scans a single row into a CollectionRecord.
func scanCollectionRecord(row pgx.Row) (*domain.CollectionRecord, error) {
	var rec domain.CollectionRecord

	err := row.Scan(
		&rec.Coin, &rec.Address, &rec.State, &rec.Balance, &rec.Confirmations,
		&rec.CredentialRef, &rec.Attempts, &rec.Txid, &rec.LastError,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &rec, nil
}

// scanCollectionRecords scans multiple rows into a slice of CollectionRecord.
func scanCollectionRecords(rows pgx.Rows) ([]*domain.CollectionRecord, error) {
	var records []*domain.CollectionRecord

	for rows.Next() {
		var rec domain.CollectionRecord

		err := rows.Scan(
			&rec.Coin, &rec.Address, &rec.State, &rec.Balance, &rec.Confirmations,
			&rec.CredentialRef, &rec.Attempts, &rec.Txid, &rec.LastError,
			&rec.CreatedAt, &rec.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan collection record row: %w", err)
		}

		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collection record rows: %w", err)
	}

	return records, nil
}
