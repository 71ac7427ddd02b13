package audit

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore appends audit events to the audit_events table. Audit
// writes never join the mutation transaction: the trail records attempts,
// including ones whose transaction aborted.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres returns an audit store over db.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_events (occurred_at, org_key, actor_key, target_key, action, outcome, reason, request_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.Timestamp, event.OrgKey, event.ActorKey, event.TargetKey,
		string(event.Action), string(event.Outcome), event.Reason, event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}
