package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// GetHistory returns completed and in-flight jobs across both dialects,
// newest first, for the acquisition history view.
func (s *Store) GetHistory(ctx context.Context, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 100
	}
	lease, err := s.Lease(ctx)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	ewfJobs, err := scanJobs(ctx, lease.conn, "job_ewf", "ewf", limit)
	if err != nil {
		return nil, fmt.Errorf("catalog: history ewf: %w", err)
	}
	rawJobs, err := scanJobs(ctx, lease.conn, "job_raw", "raw", limit)
	if err != nil {
		return nil, fmt.Errorf("catalog: history raw: %w", err)
	}

	all := append(ewfJobs, rawJobs...)
	sortJobsByStartDesc(all)
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func scanJobs(ctx context.Context, conn *sql.Conn, table, dialect string, limit int) ([]Job, error) {
	rows, err := conn.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, config_id, investigator, case_name, evidence, description, notes,
		       source_interface_id, dest_interface_id, dest2_interface_id, req_offset, req_bytes,
		       start_datetime, end_datetime, status, md5, sha1, sha256, sha384, sha512
		FROM %s ORDER BY id DESC LIMIT ?`, table), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		var j Job
		j.Dialect = dialect
		var startStr string
		var endStr, md5, sha1, sha256, sha384, sha512 sql.NullString
		var dest2 sql.NullInt64
		if err := rows.Scan(&j.ID, &j.Request.ConfigID, &j.Request.Investigator, &j.Request.CaseName,
			&j.Request.Evidence, &j.Request.Description, &j.Request.Notes, &j.Request.SourceInterfaceID,
			&j.Request.DestInterfaceID, &dest2, &j.Request.ReqOffset, &j.Request.ReqBytes,
			&startStr, &endStr, &j.Status, &md5, &sha1, &sha256, &sha384, &sha512); err != nil {
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
		out = append(out, j)
	}
	return out, rows.Err()
}

func sortJobsByStartDesc(jobs []Job) {
	for i := 1; i < len(jobs); i++ {
		for j := i; j > 0 && jobs[j].Start.After(jobs[j-1].Start); j-- {
			jobs[j], jobs[j-1] = jobs[j-1], jobs[j]
		}
	}
}

// GetProcessLogLines returns the captured output lines for one process,
// in capture order, for the get_process_log_lines_texts surface.
func (s *Store) GetProcessLogLines(ctx context.Context, processID int64) ([]LogLine, error) {
	lease, err := s.Lease(ctx)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	rows, err := lease.conn.QueryContext(ctx, `
		SELECT process_id, line_number, line_content, captured_at
		FROM process_log_lines WHERE process_id = ? ORDER BY line_number`, processID)
	if err != nil {
		return nil, fmt.Errorf("catalog: get process log lines: %w", err)
	}
	defer rows.Close()

	var out []LogLine
	for rows.Next() {
		var l LogLine
		var capturedAt string
		if err := rows.Scan(&l.ProcessID, &l.LineNumber, &l.LineContent, &capturedAt); err != nil {
			return nil, err
		}
		l.CapturedAt, _ = time.Parse(time.RFC3339, capturedAt)
		out = append(out, l)
	}
	return out, rows.Err()
}
