package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// AppendSystemLog records an operator-facing log entry, independent of the
// structured slog stream, for the get_system_logs surface.
func (s *Store) AppendSystemLog(ctx context.Context, level, message string) error {
	return s.transaction(ctx, "append_system_log", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO system_log(captured_at, level, message) VALUES (?, ?, ?)",
			time.Now().UTC().Format(time.RFC3339), level, message)
		return err
	})
}

// GetSystemLogs returns the most recent system log entries, newest first.
func (s *Store) GetSystemLogs(ctx context.Context, limit int) ([]SystemLogEntry, error) {
	if limit <= 0 {
		limit = 200
	}
	lease, err := s.Lease(ctx)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	rows, err := lease.conn.QueryContext(ctx,
		"SELECT id, captured_at, level, message FROM system_log ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("catalog: get system logs: %w", err)
	}
	defer rows.Close()

	var out []SystemLogEntry
	for rows.Next() {
		var e SystemLogEntry
		var capturedAt string
		if err := rows.Scan(&e.ID, &capturedAt, &e.Level, &e.Message); err != nil {
			return nil, err
		}
		e.CapturedAt, _ = time.Parse(time.RFC3339, capturedAt)
		out = append(out, e)
	}
	return out, rows.Err()
}
