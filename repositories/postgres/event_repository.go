package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cbc-agent/analytics-ingest/models"
	"github.com/cbc-agent/analytics-ingest/repositories"
)

const eventColumns = `id, event_type, ts, session_id, guest_id, schema_version, app_version,
	device, payload, ip_data, raw_ip, geo, retention_days, expires_at, received_at`

// EventRepository implements the repositories.EventRepository interface
type EventRepository struct {
	baseRepository
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *DB, logger *zap.Logger) repositories.EventRepository {
	return &EventRepository{baseRepository{db: db, logger: logger}}
}

// Insert persists one storage record
func (r *EventRepository) Insert(ctx context.Context, rec *models.StorageRecord) error {
	query := `INSERT INTO events (` + eventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	device, err := jsonbArg(rec.Device)
	if err != nil {
		return fmt.Errorf("failed to encode device: %w", err)
	}
	ipData, err := jsonbArg(rec.IPData)
	if err != nil {
		return fmt.Errorf("failed to encode ip data: %w", err)
	}
	var geo interface{}
	if !rec.Geo.IsEmpty() {
		if geo, err = jsonbArg(rec.Geo); err != nil {
			return fmt.Errorf("failed to encode geo: %w", err)
		}
	}
	payload := []byte(rec.Payload)
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	_, err = r.executor(ctx).ExecContext(ctx, query,
		rec.ID,
		rec.EventType,
		rec.Timestamp,
		rec.SessionID,
		rec.GuestID,
		rec.SchemaVersion,
		rec.AppVersion,
		device,
		payload,
		ipData,
		rec.RawIP,
		geo,
		rec.RetentionDays,
		rec.ExpiresAt,
		rec.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	r.logger.Debug("event stored",
		zap.String("id", rec.ID.String()),
		zap.String("event_type", rec.EventType))
	return nil
}

// ListByGuest returns a guest's events ordered by event time
func (r *EventRepository) ListByGuest(ctx context.Context, guestID string) ([]*models.StorageRecord, error) {
	query := `SELECT ` + eventColumns + `
		FROM events
		WHERE guest_id = $1
		ORDER BY ts ASC`

	rows, err := r.executor(ctx).QueryContext(ctx, query, guestID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	records := []*models.StorageRecord{}
	for rows.Next() {
		rec := &models.StorageRecord{}
		var device, payload, ipData, geo []byte
		err := rows.Scan(
			&rec.ID,
			&rec.EventType,
			&rec.Timestamp,
			&rec.SessionID,
			&rec.GuestID,
			&rec.SchemaVersion,
			&rec.AppVersion,
			&device,
			&payload,
			&ipData,
			&rec.RawIP,
			&geo,
			&rec.RetentionDays,
			&rec.ExpiresAt,
			&rec.ReceivedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		rec.Payload = json.RawMessage(payload)
		if err := scanJSONB(device, &rec.Device); err != nil {
			return nil, fmt.Errorf("failed to decode device: %w", err)
		}
		if err := scanJSONB(ipData, &rec.IPData); err != nil {
			return nil, fmt.Errorf("failed to decode ip data: %w", err)
		}
		if err := scanJSONB(geo, &rec.Geo); err != nil {
			return nil, fmt.Errorf("failed to decode geo: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}

	return records, nil
}

// CountByType counts events with an event time at or after since, per type
func (r *EventRepository) CountByType(ctx context.Context, since time.Time, eventType string) ([]models.EventCount, error) {
	query := `SELECT event_type, COUNT(*) FROM events WHERE ts >= $1`
	args := []interface{}{since}
	if eventType != "" {
		query += ` AND event_type = $2`
		args = append(args, eventType)
	}
	query += ` GROUP BY event_type ORDER BY event_type`

	rows, err := r.executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	defer rows.Close()

	counts := []models.EventCount{}
	for rows.Next() {
		var c models.EventCount
		if err := rows.Scan(&c.EventType, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan event count: %w", err)
		}
		counts = append(counts, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event count rows: %w", err)
	}

	return counts, nil
}

// DeleteByGuest removes every event of a guest
func (r *EventRepository) DeleteByGuest(ctx context.Context, guestID string) (int64, error) {
	result, err := r.executor(ctx).ExecContext(ctx, `DELETE FROM events WHERE guest_id = $1`, guestID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete guest events: %w", err)
	}
	return result.RowsAffected()
}

// DeleteExpired removes up to limit events that expired before now
func (r *EventRepository) DeleteExpired(ctx context.Context, now time.Time, limit int) (int64, error) {
	query := `
		DELETE FROM events
		WHERE id IN (
			SELECT id FROM events
			WHERE expires_at < $1
			ORDER BY expires_at
			LIMIT $2
		)
	`

	result, err := r.executor(ctx).ExecContext(ctx, query, now, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired events: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read deleted row count: %w", err)
	}

	r.logger.Debug("expired events deleted", zap.Int64("count", deleted))
	return deleted, nil
}

// WithTx returns a new repository instance bound to the transaction
func (r *EventRepository) WithTx(tx repositories.Transaction) repositories.EventRepository {
	return &EventRepository{r.withTx(tx)}
}

// jsonbArg encodes v for a JSONB column; a nil pointer becomes SQL NULL
func jsonbArg[T any](v *T) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// scanJSONB decodes a nullable JSONB column into *dst, leaving it nil for NULL
func scanJSONB[T any](data []byte, dst **T) error {
	if len(data) == 0 || string(data) == "null" {
		*dst = nil
		return nil
	}
	v := new(T)
	if err := json.Unmarshal(data, v); err != nil {
		return err
	}
	*dst = v
	return nil
}
