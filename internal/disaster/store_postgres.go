package disaster

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
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

const disasterColumns = `disaster_id, disaster_type, location, severity, total_allocated_drops, total_rlusd_allocated_drops, status, created_at, completed_at`

func (s *PostgresStore) CreateDisaster(ctx context.Context, d Disaster) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO disasters (disaster_id, disaster_type, location, severity, total_allocated_drops, total_rlusd_allocated_drops, status, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		d.ID, d.Type, d.Location, d.Severity, d.TotalAllocated, d.TotalRLUSDAllocated, d.Status, d.CreatedAt, d.CompletedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("disaster %s: %w", d.ID, sentinel.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert disaster: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetDisaster(ctx context.Context, id domain.DisasterID) (Disaster, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+disasterColumns+` FROM disasters WHERE disaster_id = $1`, id)
	d, err := scanDisaster(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Disaster{}, fmt.Errorf("disaster %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return Disaster{}, fmt.Errorf("get disaster: %w", err)
	}
	return d, nil
}

func (s *PostgresStore) ListDisasters(ctx context.Context) ([]Disaster, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+disasterColumns+` FROM disasters ORDER BY created_at DESC, disaster_id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list disasters: %w", err)
	}
	defer rows.Close()

	var out []Disaster
	for rows.Next() {
		d, err := scanDisaster(rows)
		if err != nil {
			return nil, fmt.Errorf("scan disaster: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CompleteDisaster(ctx context.Context, id domain.DisasterID, completedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE disasters SET status = $1, completed_at = $2 WHERE disaster_id = $3 AND status = $4`,
		StatusCompleted, completedAt, id, StatusActive)
	if err != nil {
		return fmt.Errorf("complete disaster: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}

	var status Status
	err = s.db.QueryRowContext(ctx, `SELECT status FROM disasters WHERE disaster_id = $1`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("disaster %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("check disaster: %w", err)
	}
	return fmt.Errorf("disaster %s is %s, not active: %w", id, status, sentinel.ErrInvalidState)
}

const escrowColumns = `id, disaster_id, org_id, org_address, escrow_tx_hash, finish_tx_hash, sequence, amount_drops, currency, status, COALESCE(error_message, ''), finish_after, cancel_after, created_at, finished_at`

func (s *PostgresStore) CreateOrgEscrow(ctx context.Context, e OrgEscrow) error {
	var cancelAfter *int64
	if e.CancelAfter != 0 {
		v := int64(e.CancelAfter)
		cancelAfter = &v
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO org_escrows (id, disaster_id, org_id, org_address, escrow_tx_hash, finish_tx_hash, sequence, amount_drops, currency, status, error_message, finish_after, cancel_after, created_at, finished_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8, $9, $10, NULLIF($11, ''), $12, $13, $14, $15)`,
		e.ID, e.DisasterID, e.OrgID, e.OrgAddress, e.EscrowTxHash, e.FinishTxHash, int64(e.Sequence), e.Amount, e.Currency, e.Status, e.Error, int64(e.FinishAfter), cancelAfter, e.CreatedAt, e.FinishedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("org escrow %s: %w", e.ID, sentinel.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert org escrow: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListEscrowsByDisaster(ctx context.Context, id domain.DisasterID) ([]OrgEscrow, error) {
	return s.listEscrows(ctx, `
		SELECT `+escrowColumns+` FROM org_escrows WHERE disaster_id = $1 ORDER BY created_at, org_id`, id)
}

func (s *PostgresStore) ListLockedEscrows(ctx context.Context) ([]OrgEscrow, error) {
	return s.listEscrows(ctx, `
		SELECT `+escrowColumns+` FROM org_escrows WHERE status = $1 ORDER BY created_at, org_id`, EscrowStatusLocked)
}

func (s *PostgresStore) FinishOrgEscrow(ctx context.Context, id uuid.UUID, finishTxHash domain.TxHash, finishedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE org_escrows SET status = $1, finish_tx_hash = $2, finished_at = $3 WHERE id = $4 AND status = $5`,
		EscrowStatusFinished, finishTxHash, finishedAt, id, EscrowStatusLocked)
	if err != nil {
		return fmt.Errorf("finish org escrow: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}

	var status EscrowStatus
	err = s.db.QueryRowContext(ctx, `SELECT status FROM org_escrows WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("org escrow %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("check org escrow: %w", err)
	}
	return fmt.Errorf("org escrow %s is %s, not locked: %w", id, status, sentinel.ErrInvalidState)
}

func (s *PostgresStore) listEscrows(ctx context.Context, query string, args ...any) ([]OrgEscrow, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list org escrows: %w", err)
	}
	defer rows.Close()

	var out []OrgEscrow
	for rows.Next() {
		e, err := scanOrgEscrow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan org escrow: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDisaster(row rowScanner) (Disaster, error) {
	var d Disaster
	err := row.Scan(&d.ID, &d.Type, &d.Location, &d.Severity, &d.TotalAllocated, &d.TotalRLUSDAllocated, &d.Status, &d.CreatedAt, &d.CompletedAt)
	return d, err
}

func scanOrgEscrow(row rowScanner) (OrgEscrow, error) {
	var (
		e           OrgEscrow
		escrowHash  sql.NullString
		finishHash  sql.NullString
		sequence    int64
		finishAfter int64
		cancelAfter sql.NullInt64
	)
	err := row.Scan(&e.ID, &e.DisasterID, &e.OrgID, &e.OrgAddress, &escrowHash, &finishHash, &sequence, &e.Amount, &e.Currency, &e.Status, &e.Error, &finishAfter, &cancelAfter, &e.CreatedAt, &e.FinishedAt)
	if err != nil {
		return OrgEscrow{}, err
	}
	e.EscrowTxHash = domain.TxHash(escrowHash.String)
	e.FinishTxHash = domain.TxHash(finishHash.String)
	e.Sequence = uint32(sequence)
	e.FinishAfter = xrpl.RippleTime(finishAfter)
	e.CancelAfter = xrpl.RippleTime(cancelAfter.Int64)
	return e, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
