package affiliation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	id "tracker/pkg/domain"
	"tracker/pkg/platform/sentinel"
	"tracker/pkg/platform/tx"
)

// PostgresStore persists affiliation edges as rows with a unique
// (org_key, user_key) index. Statements route through the context
// transaction when the mutation executor has one open.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres returns an affiliation store over db.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func (s *PostgresStore) Find(ctx context.Context, orgKey id.OrgKey, userKey id.UserKey) (*Affiliation, error) {
	row := tx.QuerierFrom(ctx, s.db).QueryRowContext(ctx,
		`SELECT permission, created_at, updated_at
		 FROM affiliations
		 WHERE org_key = $1 AND user_key = $2`,
		orgKey.String(), userKey.String(),
	)

	var (
		raw                  string
		createdAt, updatedAt time.Time
	)
	if err := row.Scan(&raw, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find affiliation: %w", err)
	}

	permission, err := id.ParsePermission(raw)
	if err != nil {
		return nil, fmt.Errorf("find affiliation: stored permission %q: %w", raw, err)
	}
	return &Affiliation{
		OrgKey:     orgKey,
		UserKey:    userKey,
		Permission: permission,
		CreatedAt:  createdAt,
		UpdatedAt:  updatedAt,
	}, nil
}

func (s *PostgresStore) ListByOrg(ctx context.Context, orgKey id.OrgKey) ([]*Affiliation, error) {
	rows, err := tx.QuerierFrom(ctx, s.db).QueryContext(ctx,
		`SELECT user_key, permission, created_at, updated_at
		 FROM affiliations
		 WHERE org_key = $1
		 ORDER BY created_at`,
		orgKey.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("list affiliations: %w", err)
	}
	defer rows.Close()

	var out []*Affiliation
	for rows.Next() {
		var (
			rawUser, rawPerm     string
			createdAt, updatedAt time.Time
		)
		if err := rows.Scan(&rawUser, &rawPerm, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("list affiliations: %w", err)
		}
		userKey, err := id.ParseUserKey(rawUser)
		if err != nil {
			return nil, fmt.Errorf("list affiliations: stored user key %q: %w", rawUser, err)
		}
		permission, err := id.ParsePermission(rawPerm)
		if err != nil {
			return nil, fmt.Errorf("list affiliations: stored permission %q: %w", rawPerm, err)
		}
		out = append(out, &Affiliation{
			OrgKey:     orgKey,
			UserKey:    userKey,
			Permission: permission,
			CreatedAt:  createdAt,
			UpdatedAt:  updatedAt,
		})
	}
	return out, rows.Err()
}

func (s *PostgresStore) Create(ctx context.Context, a *Affiliation) error {
	if err := a.Validate(); err != nil {
		return err
	}
	_, err := tx.QuerierFrom(ctx, s.db).ExecContext(ctx,
		`INSERT INTO affiliations (org_key, user_key, permission, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		a.OrgKey.String(), a.UserKey.String(), a.Permission.String(), a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create affiliation: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdatePermission(ctx context.Context, orgKey id.OrgKey, userKey id.UserKey, permission id.Permission, now time.Time) (*Affiliation, error) {
	row := tx.QuerierFrom(ctx, s.db).QueryRowContext(ctx,
		`UPDATE affiliations
		 SET permission = $3, updated_at = $4
		 WHERE org_key = $1 AND user_key = $2
		 RETURNING created_at`,
		orgKey.String(), userKey.String(), permission.String(), now,
	)

	var createdAt time.Time
	if err := row.Scan(&createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("update affiliation permission: %w", err)
	}
	return &Affiliation{
		OrgKey:     orgKey,
		UserKey:    userKey,
		Permission: permission,
		CreatedAt:  createdAt,
		UpdatedAt:  now,
	}, nil
}

func (s *PostgresStore) Delete(ctx context.Context, orgKey id.OrgKey, userKey id.UserKey) error {
	res, err := tx.QuerierFrom(ctx, s.db).ExecContext(ctx,
		`DELETE FROM affiliations WHERE org_key = $1 AND user_key = $2`,
		orgKey.String(), userKey.String(),
	)
	if err != nil {
		return fmt.Errorf("delete affiliation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete affiliation: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
