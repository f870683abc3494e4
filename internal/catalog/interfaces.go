package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cyber-rangers/cratec/internal/cratecerr"
)

// UpsertInterface records a stable-path interface if it is not already
// known, or updates its label/side if it is. Interface registration is
// idempotent by design: device enumeration runs on every poll tick and must
// not create duplicate rows for the same stable path.
func (s *Store) UpsertInterface(ctx context.Context, iface Interface) (int64, error) {
	var id int64
	err := s.transaction(ctx, "upsert_interface", func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			INSERT INTO interfaces(stable_path, side, label) VALUES (?, ?, ?)
			ON CONFLICT(stable_path) DO UPDATE SET side = excluded.side, label = excluded.label
			RETURNING id`,
			iface.StablePath, string(iface.Side), iface.Label)
		return row.Scan(&id)
	})
	if err != nil {
		return 0, fmt.Errorf("catalog: upsert interface %s: %w", iface.StablePath, err)
	}
	return id, nil
}

// GetInterfaceByStablePath looks up a previously registered interface.
func (s *Store) GetInterfaceByStablePath(ctx context.Context, stablePath string) (*Interface, error) {
	lease, err := s.Lease(ctx)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	var iface Interface
	var side string
	row := lease.conn.QueryRowContext(ctx,
		"SELECT id, stable_path, side, label FROM interfaces WHERE stable_path = ?", stablePath)
	if err := row.Scan(&iface.ID, &iface.StablePath, &side, &iface.Label); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("catalog: interface %s: %w", stablePath, cratecerr.ErrUnknownInterface)
		}
		return nil, err
	}
	iface.Side = InterfaceSide(side)
	return &iface, nil
}

// GetInterfaceByID looks up a registered interface by its row id, used by
// the report builder to turn a job's source/dest/dest2 interface ids back
// into stable paths.
func (s *Store) GetInterfaceByID(ctx context.Context, id int64) (*Interface, error) {
	lease, err := s.Lease(ctx)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	var iface Interface
	var side string
	row := lease.conn.QueryRowContext(ctx,
		"SELECT id, stable_path, side, label FROM interfaces WHERE id = ?", id)
	if err := row.Scan(&iface.ID, &iface.StablePath, &side, &iface.Label); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("catalog: interface id %d: %w", id, cratecerr.ErrUnknownInterface)
		}
		return nil, err
	}
	iface.Side = InterfaceSide(side)
	return &iface, nil
}

// ListInterfaces returns every registered interface, optionally filtered by side.
func (s *Store) ListInterfaces(ctx context.Context, side InterfaceSide) ([]Interface, error) {
	lease, err := s.Lease(ctx)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	var rows *sql.Rows
	if side == "" {
		rows, err = lease.conn.QueryContext(ctx, "SELECT id, stable_path, side, label FROM interfaces ORDER BY id")
	} else {
		rows, err = lease.conn.QueryContext(ctx, "SELECT id, stable_path, side, label FROM interfaces WHERE side = ? ORDER BY id", string(side))
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: list interfaces: %w", err)
	}
	defer rows.Close()

	var out []Interface
	for rows.Next() {
		var iface Interface
		var s string
		if err := rows.Scan(&iface.ID, &iface.StablePath, &s, &iface.Label); err != nil {
			return nil, err
		}
		iface.Side = InterfaceSide(s)
		out = append(out, iface)
	}
	return out, rows.Err()
}
