package batch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"reliefpool/internal/xrpl"
	"reliefpool/pkg/domain"
	"reliefpool/pkg/platform/sentinel"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const batchColumns = `batch_id, escrow_tx_hash, finish_tx_hash, sequence, currency, total_amount_drops, donor_count, status, trigger_type, finish_after, created_at, finished_at`

func (s *PostgresStore) Create(ctx context.Context, b Batch) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO batches (batch_id, escrow_tx_hash, finish_tx_hash, sequence, currency, total_amount_drops, donor_count, status, trigger_type, finish_after, created_at, finished_at)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		b.ID, b.EscrowTxHash, b.FinishTxHash, int64(b.Sequence), b.Currency, b.TotalAmount, b.DonorCount, b.Status, b.Trigger, int64(b.FinishAfter), b.CreatedAt, b.FinishedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("batch %s: %w", b.ID, sentinel.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id domain.BatchID) (Batch, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+batchColumns+` FROM batches WHERE batch_id = $1`, id)
	b, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Batch{}, fmt.Errorf("batch %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return Batch{}, fmt.Errorf("get batch: %w", err)
	}
	return b, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]Batch, error) {
	return s.list(ctx, `
		SELECT `+batchColumns+` FROM batches ORDER BY created_at DESC, batch_id DESC`)
}

func (s *PostgresStore) ListByStatus(ctx context.Context, status Status) ([]Batch, error) {
	return s.list(ctx, `
		SELECT `+batchColumns+` FROM batches WHERE status = $1 ORDER BY created_at DESC, batch_id DESC`, status)
}

func (s *PostgresStore) ListFinishedBefore(ctx context.Context, cutoff time.Time) ([]Batch, error) {
	return s.list(ctx, `
		SELECT `+batchColumns+` FROM batches WHERE status = $1 AND finished_at <= $2 ORDER BY created_at DESC, batch_id DESC`,
		StatusFinished, cutoff)
}

func (s *PostgresStore) MarkLocked(ctx context.Context, id domain.BatchID, escrowTxHash domain.TxHash, sequence uint32) error {
	return s.transition(ctx, id, StatusPending, `
		UPDATE batches SET status = $1, escrow_tx_hash = $2, sequence = $3 WHERE batch_id = $4 AND status = $5`,
		StatusLocked, escrowTxHash, int64(sequence), id, StatusPending)
}

func (s *PostgresStore) MarkFinished(ctx context.Context, id domain.BatchID, finishTxHash domain.TxHash, finishedAt time.Time) error {
	return s.transition(ctx, id, StatusLocked, `
		UPDATE batches SET status = $1, finish_tx_hash = $2, finished_at = $3 WHERE batch_id = $4 AND status = $5`,
		StatusFinished, finishTxHash, finishedAt, id, StatusLocked)
}

func (s *PostgresStore) Delete(ctx context.Context, id domain.BatchID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM batches WHERE batch_id = $1`, id); err != nil {
		return fmt.Errorf("delete batch: %w", err)
	}
	return nil
}

// transition runs a guarded status update and distinguishes a missing row
// from a row in the wrong state.
func (s *PostgresStore) transition(ctx context.Context, id domain.BatchID, from Status, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update batch: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}

	var status Status
	err = s.db.QueryRowContext(ctx, `SELECT status FROM batches WHERE batch_id = $1`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("batch %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("check batch: %w", err)
	}
	return fmt.Errorf("batch %s is %s, not %s: %w", id, status, from, sentinel.ErrInvalidState)
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]Batch, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var out []Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBatch(row rowScanner) (Batch, error) {
	var (
		b           Batch
		escrowHash  sql.NullString
		finishHash  sql.NullString
		sequence    int64
		finishAfter int64
	)
	err := row.Scan(&b.ID, &escrowHash, &finishHash, &sequence, &b.Currency, &b.TotalAmount, &b.DonorCount, &b.Status, &b.Trigger, &finishAfter, &b.CreatedAt, &b.FinishedAt)
	if err != nil {
		return Batch{}, err
	}
	b.EscrowTxHash = domain.TxHash(escrowHash.String)
	b.FinishTxHash = domain.TxHash(finishHash.String)
	b.Sequence = uint32(sequence)
	b.FinishAfter = xrpl.RippleTime(finishAfter)
	return b, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
