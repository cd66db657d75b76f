package postgres

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cbc-agent/analytics-ingest/models"
	"github.com/cbc-agent/analytics-ingest/repositories"
)

// AuditRepository implements the repositories.AuditRepository interface
type AuditRepository struct {
	baseRepository
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *DB, logger *zap.Logger) repositories.AuditRepository {
	return &AuditRepository{baseRepository{db: db, logger: logger}}
}

// Insert inserts a new audit log entry
func (r *AuditRepository) Insert(ctx context.Context, log *models.AuditLog) error {
	query := `
		INSERT INTO privacy_audit_log (id, guest_id, action, details, request_id, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	var details interface{}
	if len(log.Details) > 0 {
		details = []byte(log.Details)
	}

	_, err := r.executor(ctx).ExecContext(ctx, query,
		log.ID,
		log.GuestID,
		log.Action,
		details,
		log.RequestID,
		log.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	r.logger.Debug("audit log inserted", zap.String("id", log.ID.String()), zap.String("action", string(log.Action)))
	return nil
}

// GetByGuestID retrieves audit logs for a guest, newest first
func (r *AuditRepository) GetByGuestID(ctx context.Context, guestID string, limit, offset int) ([]*models.AuditLog, error) {
	query := `
		SELECT id, guest_id, action, details, request_id, timestamp
		FROM privacy_audit_log
		WHERE guest_id = $1
		ORDER BY timestamp DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.executor(ctx).QueryContext(ctx, query, guestID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.AuditLog
	for rows.Next() {
		log := &models.AuditLog{}
		var details []byte
		if err := rows.Scan(&log.ID, &log.GuestID, &log.Action, &details, &log.RequestID, &log.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		log.Details = details
		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit log rows: %w", err)
	}

	return logs, nil
}

// WithTx returns a new repository instance bound to the transaction
func (r *AuditRepository) WithTx(tx repositories.Transaction) repositories.AuditRepository {
	return &AuditRepository{r.withTx(tx)}
}
