package organization

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

// PostgresStore persists organizations across two tables: organizations
// for the vertex and organization_details for the per-locale records,
// unique on (locale, slug). Statements route through the context
// transaction when the mutation executor has one open.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres returns an organization store over db.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func (s *PostgresStore) Find(ctx context.Context, key id.OrgKey) (*Organization, error) {
	q := tx.QuerierFrom(ctx, s.db)

	row := q.QueryRowContext(ctx,
		`SELECT created_at, updated_at FROM organizations WHERE org_key = $1`,
		key.String(),
	)
	o := &Organization{Key: key, Details: make(map[Locale]Details)}
	if err := row.Scan(&o.CreatedAt, &o.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find organization: %w", err)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT locale, name, acronym, slug, country, province, city
		 FROM organization_details
		 WHERE org_key = $1`,
		key.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("find organization details: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			locale string
			d      Details
		)
		if err := rows.Scan(&locale, &d.Name, &d.Acronym, &d.Slug, &d.Country, &d.Province, &d.City); err != nil {
			return nil, fmt.Errorf("find organization details: %w", err)
		}
		o.Details[Locale(locale)] = d
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find organization details: %w", err)
	}
	return o, nil
}

func (s *PostgresStore) FindBySlug(ctx context.Context, locale Locale, slug string) (*Organization, error) {
	row := tx.QuerierFrom(ctx, s.db).QueryRowContext(ctx,
		`SELECT org_key FROM organization_details WHERE locale = $1 AND slug = $2`,
		string(locale), slug,
	)
	var raw string
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find organization by slug: %w", err)
	}
	key, err := id.ParseOrgKey(raw)
	if err != nil {
		return nil, fmt.Errorf("find organization by slug: stored org key %q: %w", raw, err)
	}
	return s.Find(ctx, key)
}

func (s *PostgresStore) Create(ctx context.Context, o *Organization) error {
	if err := o.Validate(); err != nil {
		return err
	}
	q := tx.QuerierFrom(ctx, s.db)

	_, err := q.ExecContext(ctx,
		`INSERT INTO organizations (org_key, created_at, updated_at)
		 VALUES ($1, $2, $3)`,
		o.Key.String(), o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create organization: %w", err)
	}

	for locale, d := range o.Details {
		_, err := q.ExecContext(ctx,
			`INSERT INTO organization_details (org_key, locale, name, acronym, slug, country, province, city)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			o.Key.String(), string(locale), d.Name, d.Acronym, d.Slug, d.Country, d.Province, d.City,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return sentinel.ErrConflict
			}
			return fmt.Errorf("create organization details: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) UpdateDetails(ctx context.Context, key id.OrgKey, locale Locale, patch DetailsPatch, now time.Time) (*Organization, error) {
	q := tx.QuerierFrom(ctx, s.db)

	row := q.QueryRowContext(ctx,
		`SELECT name, acronym, slug, country, province, city
		 FROM organization_details
		 WHERE org_key = $1 AND locale = $2`,
		key.String(), string(locale),
	)
	var d Details
	if err := row.Scan(&d.Name, &d.Acronym, &d.Slug, &d.Country, &d.Province, &d.City); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("update organization details: %w", err)
	}
	patch.Apply(&d)

	_, err := q.ExecContext(ctx,
		`UPDATE organization_details
		 SET name = $3, acronym = $4, slug = $5, country = $6, province = $7, city = $8
		 WHERE org_key = $1 AND locale = $2`,
		key.String(), string(locale), d.Name, d.Acronym, d.Slug, d.Country, d.Province, d.City,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, sentinel.ErrConflict
		}
		return nil, fmt.Errorf("update organization details: %w", err)
	}

	res, err := q.ExecContext(ctx,
		`UPDATE organizations SET updated_at = $2 WHERE org_key = $1`,
		key.String(), now,
	)
	if err != nil {
		return nil, fmt.Errorf("update organization: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update organization: %w", err)
	}
	if affected == 0 {
		return nil, sentinel.ErrNotFound
	}
	return s.Find(ctx, key)
}
