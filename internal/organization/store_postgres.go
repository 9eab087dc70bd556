package organization

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

const orgColumns = `org_id, name, cause_type, wallet_address, need_score, COALESCE(password_hash, ''), total_received_drops, total_rlusd_received_drops, created_at`

func (s *PostgresStore) Create(ctx context.Context, org Organization) (Organization, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO organizations (name, cause_type, wallet_address, need_score, password_hash, total_received_drops, total_rlusd_received_drops, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8)
		RETURNING org_id`,
		org.Name, org.CauseType, org.WalletAddress, org.NeedScore, org.PasswordHash, org.TotalReceived, org.TotalRLUSDReceived, org.CreatedAt,
	).Scan(&org.ID)
	if isUniqueViolation(err) {
		return Organization{}, fmt.Errorf("organization %q: %w", org.Name, sentinel.ErrConflict)
	}
	if err != nil {
		return Organization{}, fmt.Errorf("insert organization: %w", err)
	}
	return org, nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id domain.OrgID) (Organization, error) {
	return s.get(ctx, `SELECT `+orgColumns+` FROM organizations WHERE org_id = $1`, fmt.Sprintf("%d", id), id)
}

func (s *PostgresStore) GetByName(ctx context.Context, name string) (Organization, error) {
	return s.get(ctx, `SELECT `+orgColumns+` FROM organizations WHERE name = $1`, name, name)
}

func (s *PostgresStore) get(ctx context.Context, query, label string, arg any) (Organization, error) {
	org, err := scanOrg(s.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return Organization{}, fmt.Errorf("organization %s: %w", label, sentinel.ErrNotFound)
	}
	if err != nil {
		return Organization{}, fmt.Errorf("get organization: %w", err)
	}
	return org, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]Organization, error) {
	return s.list(ctx, `SELECT `+orgColumns+` FROM organizations ORDER BY org_id`)
}

func (s *PostgresStore) ListByCauses(ctx context.Context, causes []domain.CauseType) ([]Organization, error) {
	raw := make([]string, len(causes))
	for i, c := range causes {
		raw[i] = string(c)
	}
	return s.list(ctx, `SELECT `+orgColumns+` FROM organizations WHERE cause_type = ANY($1) ORDER BY org_id`, raw)
}

func (s *PostgresStore) AddReceived(ctx context.Context, id domain.OrgID, currency domain.Currency, amount domain.Drops) error {
	column := "total_received_drops"
	if currency == domain.CurrencyRLUSD {
		column = "total_rlusd_received_drops"
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE organizations SET `+column+` = `+column+` + $1 WHERE org_id = $2`, amount, id)
	if err != nil {
		return fmt.Errorf("add received: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("organization %d: %w", id, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]Organization, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()

	var out []Organization
	for rows.Next() {
		org, err := scanOrg(rows)
		if err != nil {
			return nil, fmt.Errorf("scan organization: %w", err)
		}
		out = append(out, org)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrg(row rowScanner) (Organization, error) {
	var org Organization
	err := row.Scan(&org.ID, &org.Name, &org.CauseType, &org.WalletAddress, &org.NeedScore, &org.PasswordHash, &org.TotalReceived, &org.TotalRLUSDReceived, &org.CreatedAt)
	return org, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
