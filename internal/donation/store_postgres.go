package donation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"reliefpool/pkg/domain"
	"reliefpool/pkg/platform/sentinel"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const donationColumns = `id, donor_address, amount_drops, currency, payment_tx_hash, batch_id, batch_status, created_at`

func (s *PostgresStore) Create(ctx context.Context, d Donation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO donations (id, donor_address, amount_drops, currency, payment_tx_hash, batch_id, batch_status, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8)`,
		d.ID, d.DonorAddress, d.Amount, d.Currency, d.PaymentTxHash, d.BatchID, d.BatchStatus, d.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("donation for tx %s: %w", d.PaymentTxHash, sentinel.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert donation: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetByTxHash(ctx context.Context, hash domain.TxHash) (Donation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+donationColumns+` FROM donations WHERE payment_tx_hash = $1`, hash)
	d, err := scanDonation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Donation{}, fmt.Errorf("donation for tx %s: %w", hash, sentinel.ErrNotFound)
	}
	if err != nil {
		return Donation{}, fmt.Errorf("get donation: %w", err)
	}
	return d, nil
}

func (s *PostgresStore) ListByDonor(ctx context.Context, donor domain.Address) ([]Donation, error) {
	return s.list(ctx, `
		SELECT `+donationColumns+` FROM donations WHERE donor_address = $1 ORDER BY created_at, id`, donor)
}

func (s *PostgresStore) ListPending(ctx context.Context) ([]Donation, error) {
	return s.list(ctx, `
		SELECT `+donationColumns+` FROM donations WHERE batch_status = $1 ORDER BY created_at, id`, BatchStatusPending)
}

func (s *PostgresStore) ListByBatch(ctx context.Context, batchID domain.BatchID) ([]Donation, error) {
	return s.list(ctx, `
		SELECT `+donationColumns+` FROM donations WHERE batch_id = $1 ORDER BY created_at, id`, batchID)
}

func (s *PostgresStore) AssignBatch(ctx context.Context, ids []domain.DonationID, batchID domain.BatchID) error {
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE donations SET batch_id = $1, batch_status = $2 WHERE id = ANY($3)`,
		batchID, BatchStatusLocked, raw,
	)
	if err != nil {
		return fmt.Errorf("assign batch: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n != int64(len(ids)) {
		return fmt.Errorf("assign batch: %d of %d donations updated: %w", n, len(ids), sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]Donation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list donations: %w", err)
	}
	defer rows.Close()

	var out []Donation
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan donation: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDonation(row rowScanner) (Donation, error) {
	var (
		d       Donation
		batchID sql.NullString
	)
	err := row.Scan(&d.ID, &d.DonorAddress, &d.Amount, &d.Currency, &d.PaymentTxHash, &batchID, &d.BatchStatus, &d.CreatedAt)
	if err != nil {
		return Donation{}, err
	}
	d.BatchID = domain.BatchID(batchID.String)
	return d, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
