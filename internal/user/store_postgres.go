package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	id "tracker/pkg/domain"
	"tracker/pkg/platform/tx"
)

// PostgresStore reads user records from the users table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres returns a user store over db.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Find(ctx context.Context, key id.UserKey) (*User, error) {
	row := tx.QuerierFrom(ctx, s.db).QueryRowContext(ctx,
		`SELECT user_name, display_name, preferred_lang, created_at
		 FROM users
		 WHERE user_key = $1`,
		key.String(),
	)
	u := &User{Key: key}
	if err := row.Scan(&u.UserName, &u.DisplayName, &u.PreferredLang, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) FindMany(ctx context.Context, keys []id.UserKey) (map[id.UserKey]*User, error) {
	if len(keys) == 0 {
		return map[id.UserKey]*User{}, nil
	}
	raw := make([]string, len(keys))
	for i, key := range keys {
		raw[i] = key.String()
	}

	rows, err := tx.QuerierFrom(ctx, s.db).QueryContext(ctx,
		`SELECT user_key, user_name, display_name, preferred_lang, created_at
		 FROM users
		 WHERE user_key = ANY($1)`,
		pq.StringArray(raw),
	)
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	defer rows.Close()

	out := make(map[id.UserKey]*User, len(keys))
	for rows.Next() {
		var (
			rawKey string
			u      User
		)
		if err := rows.Scan(&rawKey, &u.UserName, &u.DisplayName, &u.PreferredLang, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("find users: %w", err)
		}
		key, err := id.ParseUserKey(rawKey)
		if err != nil {
			return nil, fmt.Errorf("find users: stored user key %q: %w", rawKey, err)
		}
		u.Key = key
		out[key] = &u
	}
	return out, rows.Err()
}
