package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/dbx"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
)

const accountColumns = `id, username, password_hash, remote_account_id, is_admin, is_disabled, expires_at, role_id, created_at`

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (*models.Account, error) {
	var (
		a        models.Account
		remoteID sql.NullString
		expires  sql.NullTime
		roleID   sql.NullString
	)
	if err := row.Scan(&a.ID, &a.UserName, &a.PasswordHash, &remoteID, &a.IsAdmin, &a.IsDisabled, &expires, &roleID, &a.CreatedAt); err != nil {
		return nil, err
	}
	if remoteID.Valid {
		a.RemoteAccountID = &remoteID.String
	}
	if expires.Valid {
		a.ExpiresAt = &expires.Time
	}
	if roleID.Valid {
		a.RoleID = &roleID.String
	}
	return &a, nil
}

func (r *PostgresRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	query :=
		`INSERT INTO accounts (username, password_hash, remote_account_id, is_admin, is_disabled, expires_at, role_id)
         VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		account.UserName, account.PasswordHash, account.RemoteAccountID, account.IsAdmin,
		account.IsDisabled, account.ExpiresAt, account.RoleID).Scan(&account.ID, &account.CreatedAt)

	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, fmt.Errorf("account %q: %w", account.UserName, common.ErrConflict)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return account, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*models.Account, error) {
	a, err := scanAccount(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	return r.getOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
}

func (r *PostgresRepository) GetByUserName(ctx context.Context, userName string) (*models.Account, error) {
	return r.getOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE lower(username) = lower($1)`, userName)
}

func (r *PostgresRepository) GetByRemoteID(ctx context.Context, remoteID string) (*models.Account, error) {
	return r.getOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE remote_account_id = $1`, remoteID)
}

func (r *PostgresRepository) queryMany(ctx context.Context, query string, args ...any) ([]models.Account, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]models.Account, error) {
	return r.queryMany(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY username`)
}

func (r *PostgresRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM accounts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// execOne runs an UPDATE/DELETE expected to touch exactly one row by id.
func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	n, err := dbx.RowsAffected(r.db.ExecContext(ctx, query, args...))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) UpdatePasswordHash(ctx context.Context, id string, hash string) error {
	return r.execOne(ctx, `UPDATE accounts SET password_hash = $2 WHERE id = $1`, id, hash)
}

func (r *PostgresRepository) SetAdmin(ctx context.Context, id string, isAdmin bool) error {
	return r.execOne(ctx, `UPDATE accounts SET is_admin = $2 WHERE id = $1`, id, isAdmin)
}

func (r *PostgresRepository) SetExpiry(ctx context.Context, id string, expiresAt *time.Time) error {
	return r.execOne(ctx, `UPDATE accounts SET expires_at = $2 WHERE id = $1`, id, expiresAt)
}

func (r *PostgresRepository) SetDisabled(ctx context.Context, id string, disabled bool) error {
	return r.execOne(ctx, `UPDATE accounts SET is_disabled = $2 WHERE id = $1`, id, disabled)
}

func (r *PostgresRepository) Enable(ctx context.Context, id string) (*models.Account, error) {
	return r.getOne(ctx,
		`UPDATE accounts SET is_disabled = FALSE, expires_at = NULL
		 WHERE id = $1
		 RETURNING `+accountColumns, id)
}

func (r *PostgresRepository) ClearDisabled(ctx context.Context, id string, now time.Time) (bool, error) {
	query :=
		`UPDATE accounts SET is_disabled = FALSE
		 WHERE id = $1 AND is_disabled AND (expires_at IS NULL OR expires_at > $2)
		 `
	n, err := dbx.RowsAffected(r.db.ExecContext(ctx, query, id, now))
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) DisableExpired(ctx context.Context, now time.Time) ([]models.Account, error) {
	return r.queryMany(ctx,
		`UPDATE accounts SET is_disabled = TRUE
		 WHERE expires_at IS NOT NULL AND expires_at <= $1 AND NOT is_disabled
		 RETURNING `+accountColumns, now)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	return r.execOne(ctx, `DELETE FROM accounts WHERE id = $1`, id)
}
