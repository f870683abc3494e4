package device

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/cyber-rangers/cratec/internal/cratecerr"
)

// Partition is one entry in a disk's partition table, as reported by the
// block-inspection tool.
type Partition struct {
	Index       int
	DevNode     string
	StartSector uint64
	EndSector   uint64
	Filesystem  string
	Label       string
	UUID        string
	MountPoint  string
	FSUsedBytes uint64
	FSSizeBytes uint64
}

// DeviceFact is the full, derived (not persisted) description of a disk,
// returned by GetDiskInfo and consumed by the report builder.
type DeviceFact struct {
	StablePath        string
	DevNode           string
	CapacityBytes     uint64
	LogicalSectorSize uint64
	Partitions        []Partition
	ATASecurityEnabled bool
	SEDEncrypted       bool
	CurrentlyReadable  bool
	HasHPA             bool
	DCOReported        bool
	Model              string
	Serial             string
	SMART              SMARTFacts
}

// FindDevNodeByStablePath resolves a persisted stable path to its current
// kernel device node. It matches on prefix, not equality — the original
// tool's udev enumerator does the same, because a stable path recorded for
// a hub port can legitimately be a prefix of a deeper ID_PATH reported for
// the same physical disk after a firmware or kernel version change.
func FindDevNodeByStablePath(ctx context.Context, stablePath string) (string, error) {
	disks, err := EnumerateDisks(ctx)
	if err != nil {
		return "", err
	}
	for _, d := range disks {
		if d.TopologyPath != "" && strings.HasPrefix(d.TopologyPath, stablePath) {
			return d.DevNode, nil
		}
	}
	return "", fmt.Errorf("%w: no block device for stable path %s", cratecerr.ErrUnknownInterface, stablePath)
}

// GetLsblkJSON runs the block-inspection tool against a device node and
// returns its raw JSON report, for callers that want the unprocessed
// passthrough rather than a parsed DeviceFact.
func GetLsblkJSON(ctx context.Context, devNode string) (string, error) {
	cmd := exec.CommandContext(ctx, "lsblk", "-J", "-O", "-b", devNode)
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("device: lsblk %s: %w", devNode, err)
	}
	return string(output), nil
}

type lsblkReport struct {
	BlockDevices []lsblkDevice `json:"blockdevices"`
}

type lsblkDevice struct {
	Name       string        `json:"name"`
	Size       json.Number   `json:"size"`
	FSType     string        `json:"fstype"`
	Label      string        `json:"label"`
	UUID       string        `json:"uuid"`
	MountPoint string        `json:"mountpoint"`
	FSAvail    json.Number   `json:"fsavail"`
	FSSize     json.Number   `json:"fssize"`
	Model      string        `json:"model"`
	Serial     string        `json:"serial"`
	Children   []lsblkDevice `json:"children"`
}

// ParsePartitions extracts Partition rows from a raw lsblk -J -O -b report.
// A probe whose JSON cannot be parsed returns an empty slice rather than an
// error, consistent with the inventory's "leave the field unknown" policy.
func ParsePartitions(lsblkJSON string, logicalSectorSize uint64) []Partition {
	var report lsblkReport
	if err := json.Unmarshal([]byte(lsblkJSON), &report); err != nil {
		log.Debug("device: failed to parse lsblk output", "error", err)
		return nil
	}
	if logicalSectorSize == 0 {
		logicalSectorSize = 512
	}

	var out []Partition
	var sectorOffset uint64
	for _, dev := range report.BlockDevices {
		for i, child := range dev.Children {
			sizeBytes := parseJSONNumberUint(child.Size)
			sectors := sizeBytes / logicalSectorSize

			out = append(out, Partition{
				Index:       i + 1,
				DevNode:     "/dev/" + child.Name,
				StartSector: sectorOffset,
				EndSector:   sectorOffset + sectors,
				Filesystem:  child.FSType,
				Label:       child.Label,
				UUID:        child.UUID,
				MountPoint:  child.MountPoint,
				FSUsedBytes: parseJSONNumberUint(child.FSSize) - parseJSONNumberUint(child.FSAvail),
				FSSizeBytes: parseJSONNumberUint(child.FSSize),
			})
			sectorOffset += sectors
		}
	}
	return out
}

func parseJSONNumberUint(n json.Number) uint64 {
	if n == "" {
		return 0
	}
	v, err := strconv.ParseUint(string(n), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// GetDiskInfo assembles the full Device Fact for a stable path: block
// listing, partition geometry, and the three privileged probes. Per the
// inventory's failure model, a probe that cannot execute or parse leaves
// only its own fields at their zero value — it never fails the whole call.
func GetDiskInfo(ctx context.Context, escalationTool, stablePath string) (*DeviceFact, error) {
	devNode, err := FindDevNodeByStablePath(ctx, stablePath)
	if err != nil {
		return nil, err
	}

	fact := &DeviceFact{StablePath: stablePath, DevNode: devNode}

	if sectors, err := readSysfsUint("/sys/class/block/" + strings.TrimPrefix(devNode, "/dev/") + "/size"); err == nil {
		fact.LogicalSectorSize = 512
		if hw, err := readSysfsUint("/sys/class/block/" + strings.TrimPrefix(devNode, "/dev/") + "/queue/hw_sector_size"); err == nil && hw > 0 {
			fact.LogicalSectorSize = hw
		}
		fact.CapacityBytes = sectors * 512
		fact.CurrentlyReadable = true
	}

	if lsblkJSON, err := GetLsblkJSON(ctx, devNode); err == nil {
		fact.Partitions = ParsePartitions(lsblkJSON, fact.LogicalSectorSize)
	}

	security := ProbeSecurity(ctx, escalationTool, devNode)
	fact.ATASecurityEnabled = security.ATASecurityEnabled
	fact.SEDEncrypted = security.SEDEncrypted

	fact.HasHPA = ProbeHPA(ctx, escalationTool, devNode).Reported
	fact.DCOReported = ProbeDCO(ctx, escalationTool, devNode).Reported
	fact.SMART = ProbeSMART(ctx, escalationTool, devNode)

	props := queryUdevProperties(ctx, devNode)
	fact.Serial = props["ID_SERIAL_SHORT"]
	if fact.Serial == "" {
		fact.Serial = props["ID_SERIAL"]
	}
	fact.Model = props["ID_MODEL"]

	return fact, nil
}
