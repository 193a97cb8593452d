package profiles

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/dbx"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
)

const profileColumns = `id, name, source_remote_account_id, folder_ids, home_layout, created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProfile(row scanner) (*models.AccessProfile, error) {
	var (
		p       models.AccessProfile
		folders []byte
		layout  []byte
	)
	if err := row.Scan(&p.ID, &p.Name, &p.SourceRemoteAccountID, &folders, &layout, &p.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(folders, &p.FolderIDs); err != nil {
		return nil, fmt.Errorf("folder_ids: %w", err)
	}
	if len(layout) > 0 {
		p.HomeLayout = json.RawMessage(layout)
	}
	return &p, nil
}

func (r *PostgresRepository) Create(ctx context.Context, profile *models.AccessProfile) (*models.AccessProfile, error) {
	query :=
		`INSERT INTO access_profiles (name, source_remote_account_id, folder_ids, home_layout)
         VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at
		 `

	folderIDs := profile.FolderIDs
	if folderIDs == nil {
		folderIDs = []string{}
	}
	folders, err := json.Marshal(folderIDs)
	if err != nil {
		return nil, err
	}

	var layout any
	if len(profile.HomeLayout) > 0 {
		layout = []byte(profile.HomeLayout)
	}

	err = r.db.QueryRowContext(ctx, query,
		profile.Name, profile.SourceRemoteAccountID, folders, layout).
		Scan(&profile.ID, &profile.CreatedAt)

	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, fmt.Errorf("profile %q: %w", profile.Name, common.ErrConflict)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return profile, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.AccessProfile, error) {
	p, err := scanProfile(r.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM access_profiles WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]models.AccessProfile, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+profileColumns+` FROM access_profiles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.AccessProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	n, err := dbx.RowsAffected(r.db.ExecContext(ctx, `DELETE FROM access_profiles WHERE id = $1`, id))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
