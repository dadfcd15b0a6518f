// ABOUTME: Audit log entity and SQLite methods for recording exports and admin actions
// ABOUTME: Records who did what, to which target, and when

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditAction describes an auditable action.
type AuditAction string

const (
	AuditMappingExport AuditAction = "Mapping effectué et fichier téléchargé"
	AuditSetRole       AuditAction = "set_role"
	AuditResetPassword AuditAction = "reset_password"
	AuditCreateUser    AuditAction = "create_user"
)

// AuditEntry is a single audit log entry.
type AuditEntry struct {
	ID        string         // UUID v4
	UserEmail string         // who performed the action
	Action    AuditAction    // what was done
	TargetID  string         // affected user uid or export filename
	Timestamp time.Time      // when it happened
	Detail    map[string]any // additional context, stored as JSON
}

// AuditFilter specifies filtering options for listing audit entries.
type AuditFilter struct {
	Since     *time.Time
	Until     *time.Time
	UserEmail *string
	Action    *AuditAction
	Limit     int // default 100, max 1000
}

// prepareAuditEntry fills ID and Timestamp when unset and encodes Detail.
func prepareAuditEntry(e *AuditEntry) (*string, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if e.Detail == nil {
		return nil, nil
	}
	data, err := json.Marshal(e.Detail)
	if err != nil {
		return nil, fmt.Errorf("marshaling audit detail: %w", err)
	}
	str := string(data)
	return &str, nil
}

func decodeAuditDetail(e *AuditEntry, detailJSON *string) error {
	if detailJSON == nil {
		return nil
	}
	if err := json.Unmarshal([]byte(*detailJSON), &e.Detail); err != nil {
		return fmt.Errorf("unmarshaling detail: %w", err)
	}
	return nil
}

// normalizeAuditLimit applies default (100) and cap (1000) to audit limit.
func normalizeAuditLimit(limit int) int {
	switch {
	case limit <= 0:
		return 100
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}

// AppendAuditLog appends a new entry to the audit log.
// Generates ID and Timestamp if not set.
func (s *SQLiteStore) AppendAuditLog(ctx context.Context, e *AuditEntry) error {
	detailJSON, err := prepareAuditEntry(e)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO audit_log (audit_id, user_email, action, target_id, ts, detail_json)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		e.ID,
		e.UserEmail,
		string(e.Action),
		e.TargetID,
		e.Timestamp.UTC().Format(timeLayout),
		detailJSON,
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}

	s.logger.Debug("appended audit log",
		"id", e.ID,
		"user", e.UserEmail,
		"action", e.Action,
		"target", e.TargetID,
	)
	return nil
}

const sqliteAuditLogQuery = `
	SELECT audit_id, user_email, action, target_id, ts, detail_json
	FROM audit_log
	WHERE (? IS NULL OR ts >= ?)
	  AND (? IS NULL OR ts <= ?)
	  AND (? IS NULL OR user_email = ?)
	  AND (? IS NULL OR action = ?)
	ORDER BY ts DESC
	LIMIT ?
`

// ListAuditLog returns audit entries matching the filter, newest first.
func (s *SQLiteStore) ListAuditLog(ctx context.Context, f AuditFilter) ([]AuditEntry, error) {
	var since, until, action *string
	if f.Since != nil {
		v := f.Since.UTC().Format(timeLayout)
		since = &v
	}
	if f.Until != nil {
		v := f.Until.UTC().Format(timeLayout)
		until = &v
	}
	if f.Action != nil {
		v := string(*f.Action)
		action = &v
	}

	rows, err := s.db.QueryContext(ctx, sqliteAuditLogQuery,
		since, since,
		until, until,
		f.UserEmail, f.UserEmail,
		action, action,
		normalizeAuditLimit(f.Limit),
	)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var actionStr, tsStr string
		var detailJSON *string

		if err := rows.Scan(&e.ID, &e.UserEmail, &actionStr, &e.TargetID, &tsStr, &detailJSON); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		e.Action = AuditAction(actionStr)
		e.Timestamp, err = time.Parse(timeLayout, tsStr)
		if err != nil {
			return nil, fmt.Errorf("parsing timestamp: %w", err)
		}
		if err := decodeAuditDetail(&e, detailJSON); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit log: %w", err)
	}

	return entries, nil
}
