package domains

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

// PostgresStore persists domain vertices and claim edges. Selectors are
// stored as a text array; claims are rows unique on (org_key,
// domain_key). Statements route through the context transaction when the
// mutation executor has one open.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres returns a domain store over db.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func (s *PostgresStore) Find(ctx context.Context, key id.DomainKey) (*Domain, error) {
	row := tx.QuerierFrom(ctx, s.db).QueryRowContext(ctx,
		`SELECT hostname, selectors, last_ran, created_at, updated_at
		 FROM domains
		 WHERE domain_key = $1`,
		key.String(),
	)
	return scanDomain(row, key)
}

func (s *PostgresStore) FindByHostname(ctx context.Context, hostname string) (*Domain, error) {
	row := tx.QuerierFrom(ctx, s.db).QueryRowContext(ctx,
		`SELECT domain_key, selectors, last_ran, created_at, updated_at
		 FROM domains
		 WHERE hostname = $1`,
		hostname,
	)

	var (
		rawKey    string
		selectors pq.StringArray
		lastRan   sql.NullTime
		d         Domain
	)
	if err := row.Scan(&rawKey, &selectors, &lastRan, &d.CreatedAt, &d.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find domain by hostname: %w", err)
	}
	key, err := id.ParseDomainKey(rawKey)
	if err != nil {
		return nil, fmt.Errorf("find domain by hostname: stored domain key %q: %w", rawKey, err)
	}
	d.Key = key
	d.Hostname = hostname
	d.Selectors = selectors
	if lastRan.Valid {
		t := lastRan.Time
		d.LastRan = &t
	}
	return &d, nil
}

func scanDomain(row *sql.Row, key id.DomainKey) (*Domain, error) {
	var (
		selectors pq.StringArray
		lastRan   sql.NullTime
		d         Domain
	)
	if err := row.Scan(&d.Hostname, &selectors, &lastRan, &d.CreatedAt, &d.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find domain: %w", err)
	}
	d.Key = key
	d.Selectors = selectors
	if lastRan.Valid {
		t := lastRan.Time
		d.LastRan = &t
	}
	return &d, nil
}

func (s *PostgresStore) Create(ctx context.Context, d *Domain) error {
	if err := d.Validate(); err != nil {
		return err
	}
	var lastRan sql.NullTime
	if d.LastRan != nil {
		lastRan = sql.NullTime{Time: *d.LastRan, Valid: true}
	}
	_, err := tx.QuerierFrom(ctx, s.db).ExecContext(ctx,
		`INSERT INTO domains (domain_key, hostname, selectors, last_ran, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		d.Key.String(), d.Hostname, pq.StringArray(d.Selectors), lastRan, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create domain: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, key id.DomainKey, patch Patch, now time.Time) (*Domain, error) {
	current, err := s.Find(ctx, key)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, sentinel.ErrNotFound
	}
	patch.Apply(current)
	current.UpdatedAt = now

	var lastRan sql.NullTime
	if current.LastRan != nil {
		lastRan = sql.NullTime{Time: *current.LastRan, Valid: true}
	}
	_, err = tx.QuerierFrom(ctx, s.db).ExecContext(ctx,
		`UPDATE domains
		 SET hostname = $2, selectors = $3, last_ran = $4, updated_at = $5
		 WHERE domain_key = $1`,
		key.String(), current.Hostname, pq.StringArray(current.Selectors), lastRan, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, sentinel.ErrConflict
		}
		return nil, fmt.Errorf("update domain: %w", err)
	}
	return current, nil
}

func (s *PostgresStore) FindClaim(ctx context.Context, orgKey id.OrgKey, domainKey id.DomainKey) (*Claim, error) {
	row := tx.QuerierFrom(ctx, s.db).QueryRowContext(ctx,
		`SELECT created_at FROM claims WHERE org_key = $1 AND domain_key = $2`,
		orgKey.String(), domainKey.String(),
	)
	c := &Claim{OrgKey: orgKey, DomainKey: domainKey}
	if err := row.Scan(&c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find claim: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) ListClaimsByOrg(ctx context.Context, orgKey id.OrgKey) ([]*Claim, error) {
	rows, err := tx.QuerierFrom(ctx, s.db).QueryContext(ctx,
		`SELECT domain_key, created_at FROM claims WHERE org_key = $1 ORDER BY created_at`,
		orgKey.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	defer rows.Close()

	var out []*Claim
	for rows.Next() {
		var (
			raw       string
			createdAt time.Time
		)
		if err := rows.Scan(&raw, &createdAt); err != nil {
			return nil, fmt.Errorf("list claims: %w", err)
		}
		domainKey, err := id.ParseDomainKey(raw)
		if err != nil {
			return nil, fmt.Errorf("list claims: stored domain key %q: %w", raw, err)
		}
		out = append(out, &Claim{OrgKey: orgKey, DomainKey: domainKey, CreatedAt: createdAt})
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateClaim(ctx context.Context, c *Claim) error {
	_, err := tx.QuerierFrom(ctx, s.db).ExecContext(ctx,
		`INSERT INTO claims (org_key, domain_key, created_at) VALUES ($1, $2, $3)`,
		c.OrgKey.String(), c.DomainKey.String(), c.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create claim: %w", err)
	}
	return nil
}
