package invites

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

const inviteColumns = `code, label, profile_id, role_id, max_uses, used_count, reserved_count, expires_at, account_validity_seconds, created_by, created_at`

// spentPredicate matches invites that are expired at the given placeholder or exhausted.
func spentPredicate(now string) string {
	return `((expires_at IS NOT NULL AND expires_at <= ` + now + `) OR (max_uses IS NOT NULL AND used_count >= max_uses))`
}

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInvite(row scanner) (*models.Invite, error) {
	var (
		inv       models.Invite
		profileID sql.NullString
		roleID    sql.NullString
		maxUses   sql.NullInt64
		expires   sql.NullTime
		validity  int64
	)
	if err := row.Scan(&inv.Code, &inv.Label, &profileID, &roleID, &maxUses, &inv.UsedCount, &inv.ReservedCount, &expires, &validity, &inv.CreatedBy, &inv.CreatedAt); err != nil {
		return nil, err
	}
	if profileID.Valid {
		inv.ProfileID = &profileID.String
	}
	if roleID.Valid {
		inv.RoleID = &roleID.String
	}
	if maxUses.Valid {
		n := int(maxUses.Int64)
		inv.MaxUses = &n
	}
	if expires.Valid {
		inv.ExpiresAt = &expires.Time
	}
	inv.AccountValidity = time.Duration(validity) * time.Second
	return &inv, nil
}

func (r *PostgresRepository) Create(ctx context.Context, invite *models.Invite) error {
	query :=
		`INSERT INTO invites (code, label, profile_id, role_id, max_uses, used_count, expires_at, account_validity_seconds, created_by)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		invite.Code, invite.Label, invite.ProfileID, invite.RoleID, invite.MaxUses, invite.UsedCount,
		invite.ExpiresAt, int64(invite.AccountValidity/time.Second), invite.CreatedBy).Scan(&invite.CreatedAt)

	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return fmt.Errorf("invite code: %w", common.ErrConflict)
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*models.Invite, error) {
	inv, err := scanInvite(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return inv, nil
}

func (r *PostgresRepository) Get(ctx context.Context, code string) (*models.Invite, error) {
	return r.getOne(ctx, `SELECT `+inviteColumns+` FROM invites WHERE code = $1`, code)
}

func (r *PostgresRepository) List(ctx context.Context) ([]models.Invite, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+inviteColumns+` FROM invites ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.Invite
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Claim(ctx context.Context, code string, now time.Time) (*models.Invite, error) {
	return r.getOne(ctx,
		`UPDATE invites SET reserved_count = reserved_count + 1
		 WHERE code = $1
		   AND (max_uses IS NULL OR used_count + reserved_count < max_uses)
		   AND (expires_at IS NULL OR expires_at > $2)
		 RETURNING `+inviteColumns, code, now)
}

func (r *PostgresRepository) Commit(ctx context.Context, code string) (*models.Invite, error) {
	return r.getOne(ctx,
		`UPDATE invites SET used_count = used_count + 1, reserved_count = reserved_count - 1
		 WHERE code = $1 AND reserved_count > 0
		 RETURNING `+inviteColumns, code)
}

func (r *PostgresRepository) Release(ctx context.Context, code string) error {
	query :=
		`UPDATE invites SET reserved_count = reserved_count - 1
		 WHERE code = $1 AND reserved_count > 0
		 `
	if _, err := r.db.ExecContext(ctx, query, code); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteIfSpent(ctx context.Context, code string, now time.Time) (bool, error) {
	n, err := dbx.RowsAffected(r.db.ExecContext(ctx,
		`DELETE FROM invites WHERE code = $1 AND `+spentPredicate("$2"), code, now))
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, code string) error {
	n, err := dbx.RowsAffected(r.db.ExecContext(ctx, `DELETE FROM invites WHERE code = $1`, code))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) Cleanup(ctx context.Context, now time.Time) (int64, error) {
	n, err := dbx.RowsAffected(r.db.ExecContext(ctx,
		`DELETE FROM invites WHERE `+spentPredicate("$1"), now))
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
