// Package audit persists side-effect failures so operators can follow up on
// notifications and syncs that were silently swallowed.
package audit

import (
	"context"
	"fmt"

	"tireshop_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository writes audit_log rows. Record never returns an error: a failed
// audit write is itself logged and dropped, because the audit trail must not
// introduce a new failure path into the flows it observes.
type Repository struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

// New creates a new audit repository.
func New(pool *pgxpool.Pool, log *logger.Logger) *Repository {
	return &Repository{pool: pool, log: log}
}

// Record stores one failure entry.
func (r *Repository) Record(ctx context.Context, action, entityType string, entityID int64, detail string) {
	description := fmt.Sprintf("%s %d: %s", entityType, entityID, detail)
	_, err := r.pool.Exec(ctx, `
		INSERT INTO audit_log (action, description)
		VALUES ($1, $2)`,
		action, description,
	)
	if err != nil {
		r.log.DatabaseError("audit_record", err)
	}
}

// RecordWithEmail stores one failure entry tied to a customer address.
func (r *Repository) RecordWithEmail(ctx context.Context, action, detail, email string) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO audit_log (action, description, email)
		VALUES ($1, $2, $3)`,
		action, detail, email,
	)
	if err != nil {
		r.log.DatabaseError("audit_record", err)
	}
}
