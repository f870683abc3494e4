package orchestrator

import (
	"context"
	"fmt"

	"github.com/cyber-rangers/cratec/internal/catalog"
	"github.com/cyber-rangers/cratec/internal/cratecerr"
	"github.com/cyber-rangers/cratec/internal/device"
)

// DeviceInventory adapts the device package's free functions to the
// DeviceResolver interface.
type DeviceInventory struct {
	EscalationTool string
}

func (d DeviceInventory) DevNode(ctx context.Context, stablePath string) (string, error) {
	return device.FindDevNodeByStablePath(ctx, stablePath)
}

func (d DeviceInventory) CapacityBytes(ctx context.Context, stablePath string) (int64, error) {
	fact, err := device.GetDiskInfo(ctx, d.EscalationTool, stablePath)
	if err != nil {
		return 0, err
	}
	return int64(fact.CapacityBytes), nil
}

// MountInventory adapts the device package's mount table to MountResolver:
// a destination's stable path is first resolved to its current dev node,
// then auto-mounted (idempotently) under mountRoot. Only interfaces
// registered with Side "output" are ever auto-mounted, per spec.md §4.2 —
// a source or mis-registered destination fails closed with ErrNoMountpoint
// rather than being mounted and written to.
type MountInventory struct {
	Store     *catalog.Store
	MountRoot string
}

func (m MountInventory) ResolveMountpoint(ctx context.Context, stablePath string) (string, error) {
	iface, err := m.Store.GetInterfaceByStablePath(ctx, stablePath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", cratecerr.ErrNoMountpoint, err)
	}
	if iface.Side != catalog.SideOutput {
		return "", fmt.Errorf("%w: interface %s is not an output-side destination", cratecerr.ErrNoMountpoint, stablePath)
	}

	devNode, err := device.FindDevNodeByStablePath(ctx, stablePath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", cratecerr.ErrNoMountpoint, err)
	}

	table, err := device.ReadMountTable()
	if err == nil {
		if mp, ok := table.MountPointFor(devNode); ok {
			return mp, nil
		}
	}

	mp, err := device.AutoMount(ctx, devNode, m.MountRoot)
	if err != nil {
		return "", fmt.Errorf("%w: %v", cratecerr.ErrNoMountpoint, err)
	}
	return mp, nil
}
