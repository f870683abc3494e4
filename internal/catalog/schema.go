package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cyber-rangers/cratec/internal/cratecerr"
)

// schemaVersion is the version this binary knows how to read. Bumping it
// requires a corresponding migration step below.
const schemaVersion = 1

const ddl = `
CREATE TABLE IF NOT EXISTS schema_meta (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS interfaces (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	stable_path TEXT NOT NULL UNIQUE,
	side        TEXT NOT NULL CHECK (side IN ('input','output')),
	label       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS ewf_config (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	name                TEXT NOT NULL,
	active              INTEGER NOT NULL DEFAULT 1,
	created_at          TEXT NOT NULL,
	codepage            TEXT NOT NULL DEFAULT 'ascii',
	sectors_per_read    TEXT NOT NULL DEFAULT '64',
	bytes_to_read       TEXT NOT NULL DEFAULT 'whole',
	compression_method  TEXT NOT NULL DEFAULT 'deflate',
	compression_level   TEXT NOT NULL DEFAULT 'fast',
	hash_types          TEXT NOT NULL DEFAULT '',
	ewf_format          TEXT NOT NULL DEFAULT 'encase6',
	granularity_sectors TEXT NOT NULL DEFAULT '64',
	notes               TEXT NOT NULL DEFAULT 'ask',
	offset              TEXT NOT NULL DEFAULT '0',
	process_buffer_size TEXT NOT NULL DEFAULT 'auto',
	bytes_per_sector    TEXT NOT NULL DEFAULT 'auto',
	read_retry_count    TEXT NOT NULL DEFAULT '2',
	swap_byte_pairs     INTEGER NOT NULL DEFAULT 0,
	segment_size        TEXT NOT NULL DEFAULT '1.4GiB',
	zero_on_read_error  INTEGER NOT NULL DEFAULT 0,
	use_chunk_data      INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS raw_config (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	name            TEXT NOT NULL,
	active          INTEGER NOT NULL DEFAULT 1,
	created_at      TEXT NOT NULL,
	block_size      TEXT NOT NULL DEFAULT 'auto',
	hash_types      TEXT NOT NULL DEFAULT 'md5',
	split           TEXT NOT NULL DEFAULT 'whole',
	hashwindow      TEXT NOT NULL DEFAULT 'whole',
	status_interval TEXT NOT NULL DEFAULT '10'
);

CREATE TABLE IF NOT EXISTS job_ewf (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	config_id           INTEGER NOT NULL REFERENCES ewf_config(id),
	investigator        TEXT NOT NULL,
	case_name           TEXT NOT NULL,
	evidence            TEXT NOT NULL,
	description         TEXT NOT NULL DEFAULT '',
	notes               TEXT NOT NULL DEFAULT '',
	source_interface_id INTEGER NOT NULL REFERENCES interfaces(id),
	dest_interface_id   INTEGER NOT NULL REFERENCES interfaces(id),
	dest2_interface_id  INTEGER REFERENCES interfaces(id),
	req_offset          INTEGER NOT NULL DEFAULT 0,
	req_bytes           INTEGER NOT NULL DEFAULT 0,
	start_datetime      TEXT,
	end_datetime        TEXT,
	status              TEXT NOT NULL DEFAULT 'running',
	md5                 TEXT,
	sha1                TEXT,
	sha256              TEXT,
	sha384              TEXT,
	sha512              TEXT
);

CREATE TABLE IF NOT EXISTS job_raw (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	config_id           INTEGER NOT NULL REFERENCES raw_config(id),
	investigator        TEXT NOT NULL,
	case_name           TEXT NOT NULL,
	evidence            TEXT NOT NULL,
	description         TEXT NOT NULL DEFAULT '',
	notes               TEXT NOT NULL DEFAULT '',
	source_interface_id INTEGER NOT NULL REFERENCES interfaces(id),
	dest_interface_id   INTEGER NOT NULL REFERENCES interfaces(id),
	dest2_interface_id  INTEGER REFERENCES interfaces(id),
	req_offset          INTEGER NOT NULL DEFAULT 0,
	req_bytes           INTEGER NOT NULL DEFAULT 0,
	start_datetime      TEXT,
	end_datetime        TEXT,
	status              TEXT NOT NULL DEFAULT 'running',
	md5                 TEXT,
	sha1                TEXT,
	sha256              TEXT,
	sha384              TEXT,
	sha512              TEXT
);

CREATE TABLE IF NOT EXISTS process (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	triggered_by_ewf  INTEGER REFERENCES job_ewf(id),
	triggered_by_raw  INTEGER REFERENCES job_raw(id),
	start_datetime    TEXT NOT NULL,
	end_datetime      TEXT,
	status            TEXT NOT NULL DEFAULT 'running'
);

CREATE TABLE IF NOT EXISTS process_log_lines (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	process_id   INTEGER NOT NULL REFERENCES process(id),
	line_number  INTEGER NOT NULL,
	line_content TEXT NOT NULL,
	captured_at  TEXT NOT NULL,
	UNIQUE(process_id, line_number)
);

CREATE TABLE IF NOT EXISTS system_log (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	captured_at TEXT NOT NULL,
	level       TEXT NOT NULL,
	message     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_process_log_lines_process ON process_log_lines(process_id);
CREATE INDEX IF NOT EXISTS idx_job_ewf_config ON job_ewf(config_id);
CREATE INDEX IF NOT EXISTS idx_job_raw_config ON job_raw(config_id);
`

func (s *Store) migrate(ctx context.Context) error {
	lease, err := s.Lease(ctx)
	if err != nil {
		return err
	}
	defer lease.Release()

	if _, err := lease.conn.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("catalog: apply schema: %w", err)
	}

	var version sql.NullInt64
	row := lease.conn.QueryRowContext(ctx, "SELECT version FROM schema_meta LIMIT 1")
	if err := row.Scan(&version); err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("catalog: read schema_meta: %w", err)
	}

	if !version.Valid {
		if _, err := lease.conn.ExecContext(ctx, "INSERT INTO schema_meta(version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("catalog: seed schema_meta: %w", err)
		}
		return nil
	}

	if version.Int64 > schemaVersion {
		return fmt.Errorf("%w: database is at version %d, binary supports %d", cratecerr.ErrSchemaTooNew, version.Int64, schemaVersion)
	}

	return nil
}
