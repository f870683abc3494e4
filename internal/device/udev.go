package device

import (
	"bufio"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cyber-rangers/cratec/internal/obslog"
)

var log = obslog.Component("device")

// RawBlockDevice is one entry read directly from sysfs, before it has been
// matched against the Interface table.
type RawBlockDevice struct {
	Name             string // e.g. "sda"
	DevNode          string // e.g. "/dev/sda"
	TopologyPath     string // normalized ID_PATH, empty if the enumerator found none
	SerialShort      string
	Serial           string
	SectorCount      uint64
	LogicalSectorSz  uint64
}

// EnumerateDisks lists every block device of type "disk" under
// /sys/class/block, enriching each with its topology path and serial via a
// udevadm property query. No Go udev binding ships in the dependency set
// this appliance draws from, so the enumerator shells out the same way the
// original tool's privileged probes do.
func EnumerateDisks(ctx context.Context) ([]RawBlockDevice, error) {
	entries, err := os.ReadDir("/sys/class/block")
	if err != nil {
		return nil, err
	}

	var out []RawBlockDevice
	for _, entry := range entries {
		name := entry.Name()
		if !isDiskType(name) {
			continue
		}

		devNode := "/dev/" + name
		sectorCount, _ := readSysfsUint(filepath.Join("/sys/class/block", name, "size"))
		sectorSz, err := readSysfsUint(filepath.Join("/sys/class/block", name, "queue", "hw_sector_size"))
		if err != nil || sectorSz == 0 {
			sectorSz = 512
		}

		props := queryUdevProperties(ctx, devNode)
		topologyPath := props["ID_PATH"]
		if topologyPath != "" {
			topologyPath = Normalize(topologyPath)
		}
		serialShort := props["ID_SERIAL_SHORT"]
		serial := props["ID_SERIAL"]

		out = append(out, RawBlockDevice{
			Name:            name,
			DevNode:         devNode,
			TopologyPath:    topologyPath,
			SerialShort:     serialShort,
			Serial:          serial,
			SectorCount:     sectorCount,
			LogicalSectorSz: sectorSz,
		})
	}
	return out, nil
}

// DedupeBySerial collapses entries that share a non-empty serial (the same
// physical disk reached through both a USB bridge and its SATA-passthrough
// enumeration), keeping the first occurrence.
func DedupeBySerial(devices []RawBlockDevice) []RawBlockDevice {
	seen := make(map[string]bool)
	var out []RawBlockDevice
	for _, d := range devices {
		key := d.SerialShort
		if key == "" {
			key = d.Serial
		}
		if key == "" {
			out = append(out, d)
			continue
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, d)
	}
	return out
}

func isDiskType(name string) bool {
	uevent, err := os.Open(filepath.Join("/sys/class/block", name, "uevent"))
	if err != nil {
		return false
	}
	defer uevent.Close()

	scanner := bufio.NewScanner(uevent)
	for scanner.Scan() {
		if line := scanner.Text(); strings.HasPrefix(line, "DEVTYPE=") {
			return strings.TrimPrefix(line, "DEVTYPE=") == "disk"
		}
	}
	return false
}

func readSysfsUint(path string) (uint64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
}

// queryUdevProperties shells out to udevadm to read the KEY=VALUE property
// block for a device node. Missing udevadm or a non-zero exit yields an
// empty map rather than an error: per the inventory's failure model, a
// probe that cannot run leaves its facts at their unknown default.
func queryUdevProperties(ctx context.Context, devNode string) map[string]string {
	props := make(map[string]string)

	cmd := exec.CommandContext(ctx, "udevadm", "info", "--query=property", "--name="+devNode)
	output, err := cmd.Output()
	if err != nil {
		log.Debug("udevadm query failed", "devnode", devNode, "error", err)
		return props
	}

	scanner := bufio.NewScanner(strings.NewReader(string(output)))
	for scanner.Scan() {
		line := scanner.Text()
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		props[key] = value
	}
	return props
}
