package device

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// allowedFilesystems lists the filesystem labels partition selection will
// consider mountable; among qualifying partitions the largest is picked.
var allowedFilesystems = map[string]bool{
	"ext2": true, "ext3": true, "ext4": true,
	"btrfs": true, "xfs": true, "vfat": true, "ntfs": true, "exfat": true,
}

// MountTable is a snapshot of the kernel mount table, keyed by the
// canonicalized device node.
type MountTable map[string]string

// ReadMountTable parses /proc/mounts.
func ReadMountTable() (MountTable, error) {
	f, err := os.Open("/proc/mounts")
	if err != nil {
		return nil, fmt.Errorf("device: read mount table: %w", err)
	}
	defer f.Close()

	table := make(MountTable)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		devNode, mountPoint := fields[0], fields[1]
		if real, err := filepath.EvalSymlinks(devNode); err == nil {
			devNode = real
		}
		table[devNode] = mountPoint
	}
	return table, scanner.Err()
}

// MountPointFor returns the existing mount point for a device node, if any.
func (t MountTable) MountPointFor(devNode string) (string, bool) {
	if real, err := filepath.EvalSymlinks(devNode); err == nil {
		devNode = real
	}
	mp, ok := t[devNode]
	return mp, ok
}

// AutoMount mounts devNode under mountRoot if it is an output-side
// interface and not already mounted, returning the (possibly pre-existing)
// mount point. It is idempotent: two concurrent callers mounting the same
// device converge on the same mount point and never produce a second kernel
// mount, because the second caller's "already exclusively opened" failure is
// resolved by re-reading the mount table rather than treated as an error.
func AutoMount(ctx context.Context, devNode, mountRoot string) (string, error) {
	table, err := ReadMountTable()
	if err != nil {
		return "", err
	}
	if mp, ok := table.MountPointFor(devNode); ok {
		return mp, nil
	}

	mountPoint := filepath.Join(mountRoot, filepath.Base(devNode))
	if err := os.MkdirAll(mountPoint, 0o755); err != nil {
		return "", fmt.Errorf("device: create mount point %s: %w", mountPoint, err)
	}

	cmd := exec.CommandContext(ctx, "mount", "-o", "rw", devNode, mountPoint)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if strings.Contains(strings.ToLower(string(output)), "already") {
			table, rerr := ReadMountTable()
			if rerr != nil {
				return "", rerr
			}
			if mp, ok := table.MountPointFor(devNode); ok {
				log.Debug("device: mount race resolved from existing mount table", "devnode", devNode, "mountpoint", mp)
				return mp, nil
			}
		}
		return "", fmt.Errorf("device: mount %s at %s: %w: %s", devNode, mountPoint, err, string(output))
	}

	log.Info("device: mounted output interface", "devnode", devNode, "mountpoint", mountPoint)
	return mountPoint, nil
}

// PartitionInfo is one entry read from the kernel partition table, used by
// ChooseMountablePartition to pick a concrete filesystem to mount when the
// caller asked to mount a whole disk rather than a partition device node.
type PartitionInfo struct {
	DevNode     string
	Filesystem  string
	SectorCount uint64
}

// ChooseMountablePartition returns the partition with an allowed filesystem
// that has the largest sector count, or ok=false if none qualify (callers
// then fall back to mounting the whole disk).
func ChooseMountablePartition(partitions []PartitionInfo) (PartitionInfo, bool) {
	var best PartitionInfo
	found := false
	for _, p := range partitions {
		if !allowedFilesystems[p.Filesystem] {
			continue
		}
		if !found || p.SectorCount > best.SectorCount {
			best = p
			found = true
		}
	}
	return best, found
}
