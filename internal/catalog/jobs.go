package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/cyber-rangers/cratec/internal/cratecerr"
)

// InsertJob persists a new acquisition job and its supervising process
// wrapper in a single transaction, mirroring the original tool's pattern of
// inserting copy_log_<dialect> then copy_process before the subprocess is
// ever spawned, so a log line can always be attributed to a process id.
func (s *Store) InsertJob(ctx context.Context, dialect string, req JobRequest) (jobID, processID int64, err error) {
	if dialect != "ewf" && dialect != "raw" {
		return 0, 0, fmt.Errorf("catalog: unknown job dialect %q", dialect)
	}
	if req.SourceInterfaceID == req.DestInterfaceID {
		return 0, 0, fmt.Errorf("catalog: source and destination are the same interface: %w", cratecerr.ErrInvalidTopology)
	}
	if req.Dest2InterfaceID != nil {
		if *req.Dest2InterfaceID == req.SourceInterfaceID || *req.Dest2InterfaceID == req.DestInterfaceID {
			return 0, 0, fmt.Errorf("catalog: second destination reuses source or destination interface: %w", cratecerr.ErrInvalidTopology)
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	err = s.transaction(ctx, "insert_job", func(tx *sql.Tx) error {
		table := "job_ewf"
		if dialect == "raw" {
			table = "job_raw"
		}
		res, execErr := tx.ExecContext(ctx, fmt.Sprintf(`
			INSERT INTO %s(
				config_id, investigator, case_name, evidence, description, notes,
				source_interface_id, dest_interface_id, dest2_interface_id,
				req_offset, req_bytes, start_datetime, status
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'running')`, table),
			req.ConfigID, req.Investigator, req.CaseName, req.Evidence, req.Description, req.Notes,
			req.SourceInterfaceID, req.DestInterfaceID, req.Dest2InterfaceID, req.ReqOffset, req.ReqBytes, now)
		if execErr != nil {
			return execErr
		}
		jobID, execErr = res.LastInsertId()
		if execErr != nil {
			return execErr
		}

		var procRes sql.Result
		if dialect == "ewf" {
			procRes, execErr = tx.ExecContext(ctx,
				"INSERT INTO process(triggered_by_ewf, start_datetime, status) VALUES (?, ?, 'running')", jobID, now)
		} else {
			procRes, execErr = tx.ExecContext(ctx,
				"INSERT INTO process(triggered_by_raw, start_datetime, status) VALUES (?, ?, 'running')", jobID, now)
		}
		if execErr != nil {
			return execErr
		}
		processID, execErr = procRes.LastInsertId()
		return execErr
	})
	if err != nil {
		return 0, 0, fmt.Errorf("catalog: insert %s job: %w", dialect, err)
	}
	return jobID, processID, nil
}

// GetJob loads a single job row by dialect and id, for the report builder
// and single-job detail lookups.
func (s *Store) GetJob(ctx context.Context, dialect string, jobID int64) (*Job, error) {
	table := "job_ewf"
	if dialect == "raw" {
		table = "job_raw"
	}
	lease, err := s.Lease(ctx)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	var j Job
	j.Dialect = dialect
	var startStr string
	var endStr, md5, sha1, sha256, sha384, sha512 sql.NullString
	var dest2 sql.NullInt64
	row := lease.conn.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT id, config_id, investigator, case_name, evidence, description, notes,
		       source_interface_id, dest_interface_id, dest2_interface_id, req_offset, req_bytes,
		       start_datetime, end_datetime, status, md5, sha1, sha256, sha384, sha512
		FROM %s WHERE id = ?`, table), jobID)
	if err := row.Scan(&j.ID, &j.Request.ConfigID, &j.Request.Investigator, &j.Request.CaseName,
		&j.Request.Evidence, &j.Request.Description, &j.Request.Notes, &j.Request.SourceInterfaceID,
		&j.Request.DestInterfaceID, &dest2, &j.Request.ReqOffset, &j.Request.ReqBytes,
		&startStr, &endStr, &j.Status, &md5, &sha1, &sha256, &sha384, &sha512); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("catalog: %s job %d: %w", dialect, jobID, cratecerr.ErrNotFound)
		}
		return nil, err
	}
	if dest2.Valid {
		v := dest2.Int64
		j.Request.Dest2InterfaceID = &v
	}
	j.Start, _ = time.Parse(time.RFC3339, startStr)
	if endStr.Valid {
		t, _ := time.Parse(time.RFC3339, endStr.String)
		j.End = &t
	}
	j.Digests = Digests{MD5: md5.String, SHA1: sha1.String, SHA256: sha256.String, SHA384: sha384.String, SHA512: sha512.String}
	return &j, nil
}

// AppendLogLine records one captured subprocess output line. line_number is
// caller-assigned and monotonically increasing per process; the UNIQUE
// constraint on (process_id, line_number) makes a retried append harmless.
func (s *Store) AppendLogLine(ctx context.Context, processID int64, lineNumber int, content string) error {
	return s.transaction(ctx, "append_log_line", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO process_log_lines(process_id, line_number, line_content, captured_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(process_id, line_number) DO NOTHING`,
			processID, lineNumber, content, time.Now().UTC().Format(time.RFC3339))
		return err
	})
}

// FinalizeJob writes the terminal status, end timestamp, and digests for a
// job, and mirrors the same status onto its supervising process row. Both
// UPDATEs are guarded on status = 'running': a job that is already terminal
// cannot be finalized a second time, matching spec.md's "a second finalize
// is a no-op" invariant.
func (s *Store) FinalizeJob(ctx context.Context, dialect string, jobID, processID int64, status JobStatus, digests Digests) error {
	if dialect != "ewf" && dialect != "raw" {
		return fmt.Errorf("catalog: unknown job dialect %q", dialect)
	}
	table := "job_ewf"
	if dialect == "raw" {
		table = "job_raw"
	}
	now := time.Now().UTC().Format(time.RFC3339)

	return s.transaction(ctx, "finalize_job", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`
			UPDATE %s SET end_datetime = ?, status = ?, md5 = ?, sha1 = ?, sha256 = ?, sha384 = ?, sha512 = ?
			WHERE id = ? AND status = 'running'`, table),
			now, string(status), nullIfEmpty(digests.MD5), nullIfEmpty(digests.SHA1), nullIfEmpty(digests.SHA256),
			nullIfEmpty(digests.SHA384), nullIfEmpty(digests.SHA512), jobID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			"UPDATE process SET end_datetime = ?, status = ? WHERE id = ? AND status = 'running'", now, string(status), processID)
		return err
	})
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// splitCSV parses the comma-joined hash_types column. The spec's Open
// Questions section notes that some original schema variants store this as
// JSON and others as CSV; this store always writes CSV and tolerates
// surrounding whitespace on read.
func splitCSV(s string) []string {
	parts := make([]string, 0)
	for _, p := range strings.Split(s, ",") {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
