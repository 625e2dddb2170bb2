package clickhouse

import (
	"context"
	"fmt"

	"github.com/glebkoxan36/mypip/internal/domain"
	"github.com/glebkoxan36/mypip/internal/store"
)

// SweepArchive implements store.SweepArchive using ClickHouse.
type SweepArchive struct {
	conn *Conn
}

// NewSweepArchive creates a new SweepArchive.
func NewSweepArchive(conn *Conn) *SweepArchive {
	return &SweepArchive{conn: conn}
}

// Compile-time interface check.
var _ store.SweepArchive = (*SweepArchive)(nil)

// InsertOutcome appends one outcome row. Inserts go through the native
// batch protocol, so values never pass through query-text binding.
func (s *SweepArchive) InsertOutcome(ctx context.Context, o *domain.SweepOutcome) error {
	if o == nil || o.Coin == "" || o.Address == "" {
		return store.ErrInvalidInput
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO sweep_outcomes (
			coin, address, state, txid,
			gross, fee, utxo_count, attempts, error,
			started_at, finished_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare outcome batch: %w", err)
	}

	err = batch.Append(
		string(o.Coin), o.Address, string(o.State), o.Txid,
		o.Gross, o.Fee, int32(o.UtxoCount), int32(o.Attempts), o.Error,
		o.StartedAt, o.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("append outcome to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send outcome batch: %w", err)
	}

	return nil
}

// ListByCoin retrieves a coin's outcomes, newest first, at most limit
// rows (0 means no limit).
func (s *SweepArchive) ListByCoin(ctx context.Context, coin domain.Coin, limit int) ([]*domain.SweepOutcome, error) {
	query := `
		SELECT
			coin, address, state, txid,
			gross, fee, utxo_count, attempts, error,
			started_at, finished_at
		FROM sweep_outcomes
		WHERE coin = ?
		ORDER BY finished_at DESC, address ASC
	`
	args := []any{string(coin)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, int64(limit))
	}

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query outcomes by coin: %w", err)
	}
	defer rows.Close()

	return scanSweepOutcomes(rows)
}

// Rows interface for scanning
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanSweepOutcomes scans multiple rows into a slice. Columns are read
// into plainly typed locals because the native driver scans by exact
// type.
func scanSweepOutcomes(rows chRows) ([]*domain.SweepOutcome, error) {
	var outcomes []*domain.SweepOutcome

	for rows.Next() {
		var (
			coin, address, state, txid, errText string
			gross, fee, startedAt, finishedAt   int64
			utxoCount, attempts                 int32
		)

		err := rows.Scan(
			&coin, &address, &state, &txid,
			&gross, &fee, &utxoCount, &attempts, &errText,
			&startedAt, &finishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan outcome row: %w", err)
		}

		outcomes = append(outcomes, &domain.SweepOutcome{
			Coin:       domain.Coin(coin),
			Address:    address,
			State:      domain.CollectionState(state),
			Txid:       txid,
			Gross:      gross,
			Fee:        fee,
			UtxoCount:  int(utxoCount),
			Attempts:   int(attempts),
			Error:      errText,
			StartedAt:  startedAt,
			FinishedAt: finishedAt,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcome rows: %w", err)
	}

	return outcomes, nil
}
