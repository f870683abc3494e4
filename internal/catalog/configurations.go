package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/cyber-rangers/cratec/internal/cratecerr"
)

// SaveEWFConfig inserts a new active ewfacquire preset. Prior active presets
// are left untouched — a config is "retired" explicitly, not implicitly
// superseded, so historic job rows keep resolving config_id to readable text.
func (s *Store) SaveEWFConfig(ctx context.Context, cfg EWFConfig) (int64, error) {
	var id int64
	err := s.transaction(ctx, "save_ewf_config", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO ewf_config(
				name, active, created_at, codepage, sectors_per_read, bytes_to_read,
				compression_method, compression_level, hash_types, ewf_format,
				granularity_sectors, notes, offset, process_buffer_size, bytes_per_sector,
				read_retry_count, swap_byte_pairs, segment_size, zero_on_read_error, use_chunk_data
			) VALUES (?, 1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			cfg.Name, time.Now().UTC().Format(time.RFC3339), cfg.Codepage, cfg.SectorsPerRead, cfg.BytesToRead,
			cfg.CompressionMethod, cfg.CompressionLevel, strings.Join(cfg.HashTypes, ","), cfg.EWFFormat,
			cfg.GranularitySect, cfg.Notes, cfg.Offset, cfg.ProcessBufferSize, cfg.BytesPerSector,
			cfg.ReadRetryCount, boolToInt(cfg.SwapBytePairs), cfg.SegmentSize, boolToInt(cfg.ZeroOnReadError), boolToInt(cfg.UseChunkData))
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("catalog: save ewf config: %w", err)
	}
	return id, nil
}

// SaveRawConfig inserts a new active dcfldd preset.
func (s *Store) SaveRawConfig(ctx context.Context, cfg RawConfig) (int64, error) {
	var id int64
	err := s.transaction(ctx, "save_raw_config", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO raw_config(name, active, created_at, block_size, hash_types, split, hashwindow, status_interval)
			VALUES (?, 1, ?, ?, ?, ?, ?, ?)`,
			cfg.Name, time.Now().UTC().Format(time.RFC3339), cfg.BlockSize, strings.Join(cfg.HashTypes, ","), cfg.Split, cfg.Hashwindow, cfg.StatusInterval)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("catalog: save raw config: %w", err)
	}
	return id, nil
}

// GetEWFConfig loads one EWF preset by id, requiring active=true per
// spec.md §4.5 step 3 ("load the Configuration by id and active=true").
func (s *Store) GetEWFConfig(ctx context.Context, id int64) (*EWFConfig, error) {
	lease, err := s.Lease(ctx)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	var c EWFConfig
	var createdAt, hashTypes string
	var active, swapBytePairs, zeroOnReadError, useChunkData int
	row := lease.conn.QueryRowContext(ctx, `
		SELECT id, name, active, created_at, codepage, sectors_per_read, bytes_to_read, compression_method,
		       compression_level, hash_types, ewf_format, granularity_sectors, notes, offset,
		       process_buffer_size, bytes_per_sector, read_retry_count, swap_byte_pairs, segment_size,
		       zero_on_read_error, use_chunk_data
		FROM ewf_config WHERE id = ? AND active = 1`, id)
	if err := row.Scan(&c.ID, &c.Name, &active, &createdAt, &c.Codepage, &c.SectorsPerRead, &c.BytesToRead,
		&c.CompressionMethod, &c.CompressionLevel, &hashTypes, &c.EWFFormat, &c.GranularitySect, &c.Notes,
		&c.Offset, &c.ProcessBufferSize, &c.BytesPerSector, &c.ReadRetryCount, &swapBytePairs, &c.SegmentSize,
		&zeroOnReadError, &useChunkData); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("catalog: ewf config %d: %w", id, cratecerr.ErrNotFound)
		}
		return nil, err
	}
	c.Active = active != 0
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	c.HashTypes = splitCSV(hashTypes)
	c.SwapBytePairs = swapBytePairs != 0
	c.ZeroOnReadError = zeroOnReadError != 0
	c.UseChunkData = useChunkData != 0
	return &c, nil
}

// GetRawConfig loads one RAW preset by id, requiring active=true.
func (s *Store) GetRawConfig(ctx context.Context, id int64) (*RawConfig, error) {
	lease, err := s.Lease(ctx)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	var c RawConfig
	var createdAt, hashTypes string
	var active int
	row := lease.conn.QueryRowContext(ctx, `
		SELECT id, name, active, created_at, block_size, hash_types, split, hashwindow, status_interval
		FROM raw_config WHERE id = ? AND active = 1`, id)
	if err := row.Scan(&c.ID, &c.Name, &active, &createdAt, &c.BlockSize, &hashTypes, &c.Split, &c.Hashwindow, &c.StatusInterval); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("catalog: raw config %d: %w", id, cratecerr.ErrNotFound)
		}
		return nil, err
	}
	c.Active = active != 0
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	c.HashTypes = splitCSV(hashTypes)
	return &c, nil
}

// RetireConfig deletes the preset if no job references it, otherwise flips
// active=false (reference-preserving retirement per spec.md §3).
func (s *Store) RetireConfig(ctx context.Context, dialect string, id int64) error {
	configTbl, err := configTable(dialect)
	if err != nil {
		return err
	}
	jobTbl := "job_ewf"
	if dialect == "raw" {
		jobTbl = "job_raw"
	}

	return s.transaction(ctx, "retire_config", func(tx *sql.Tx) error {
		var refCount int
		row := tx.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(1) FROM %s WHERE config_id = ?", jobTbl), id)
		if err := row.Scan(&refCount); err != nil {
			return err
		}

		if refCount == 0 {
			res, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", configTbl), id)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				return cratecerr.ErrNotFound
			}
			return nil
		}

		res, err := tx.ExecContext(ctx, fmt.Sprintf("UPDATE %s SET active = 0 WHERE id = ?", configTbl), id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return cratecerr.ErrNotFound
		}
		return nil
	})
}

// ListActiveConfigs returns every active preset across both dialects.
func (s *Store) ListActiveConfigs(ctx context.Context) ([]EWFConfig, []RawConfig, error) {
	lease, err := s.Lease(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer lease.Release()

	ewfRows, err := lease.conn.QueryContext(ctx, `
		SELECT id, name, created_at, codepage, sectors_per_read, bytes_to_read, compression_method,
		       compression_level, hash_types, ewf_format, granularity_sectors, notes, offset,
		       process_buffer_size, bytes_per_sector, read_retry_count, swap_byte_pairs, segment_size,
		       zero_on_read_error, use_chunk_data
		FROM ewf_config WHERE active = 1 ORDER BY id DESC`)
	if err != nil {
		return nil, nil, fmt.Errorf("catalog: list ewf configs: %w", err)
	}
	defer ewfRows.Close()

	var ewfConfigs []EWFConfig
	for ewfRows.Next() {
		var c EWFConfig
		var createdAt, hashTypes string
		var swapBytePairs, zeroOnReadError, useChunkData int
		if err := ewfRows.Scan(&c.ID, &c.Name, &createdAt, &c.Codepage, &c.SectorsPerRead, &c.BytesToRead,
			&c.CompressionMethod, &c.CompressionLevel, &hashTypes, &c.EWFFormat, &c.GranularitySect, &c.Notes,
			&c.Offset, &c.ProcessBufferSize, &c.BytesPerSector, &c.ReadRetryCount, &swapBytePairs, &c.SegmentSize,
			&zeroOnReadError, &useChunkData); err != nil {
			return nil, nil, err
		}
		c.Active = true
		c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		c.HashTypes = splitCSV(hashTypes)
		c.SwapBytePairs = swapBytePairs != 0
		c.ZeroOnReadError = zeroOnReadError != 0
		c.UseChunkData = useChunkData != 0
		ewfConfigs = append(ewfConfigs, c)
	}
	if err := ewfRows.Err(); err != nil {
		return nil, nil, err
	}

	rawRows, err := lease.conn.QueryContext(ctx, `
		SELECT id, name, created_at, block_size, hash_types, split, hashwindow, status_interval
		FROM raw_config WHERE active = 1 ORDER BY id DESC`)
	if err != nil {
		return nil, nil, fmt.Errorf("catalog: list raw configs: %w", err)
	}
	defer rawRows.Close()

	var rawConfigs []RawConfig
	for rawRows.Next() {
		var c RawConfig
		var createdAt, hashTypes string
		if err := rawRows.Scan(&c.ID, &c.Name, &createdAt, &c.BlockSize, &hashTypes, &c.Split, &c.Hashwindow, &c.StatusInterval); err != nil {
			return nil, nil, err
		}
		c.Active = true
		c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		c.HashTypes = splitCSV(hashTypes)
		rawConfigs = append(rawConfigs, c)
	}
	return ewfConfigs, rawConfigs, rawRows.Err()
}

// DeactivateConfig marks a preset inactive instead of deleting it, so
// historic jobs can still resolve their config_id. dialect is "ewf" or "raw".
func (s *Store) DeactivateConfig(ctx context.Context, dialect string, id int64) error {
	table, err := configTable(dialect)
	if err != nil {
		return err
	}
	return s.transaction(ctx, "deactivate_config", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, fmt.Sprintf("UPDATE %s SET active = 0 WHERE id = ?", table), id)
		return err
	})
}

func configTable(dialect string) (string, error) {
	switch dialect {
	case "ewf":
		return "ewf_config", nil
	case "raw":
		return "raw_config", nil
	default:
		return "", fmt.Errorf("catalog: unknown config dialect %q", dialect)
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
