// Package report implements the Report Builder (C6): it gathers a
// terminal job's record, its Configuration, and the device facts for
// every disk involved, renders a LaTeX template, compiles it to PDF, and
// places the PDF under every destination's evidence directory. Context
// construction is ported from original_source/report/mod.rs's field set.
package report

import "time"

// SystemIdentity identifies the appliance that produced the report.
type SystemIdentity struct {
	SoftwareHash string // hash of the running binary
	BuildDate    string
	HardwareID   string // the DMI product UUID file's content as read, not shortened
}

// CaseInfo carries the operator-supplied case metadata.
type CaseInfo struct {
	Case         string
	Evidence     string
	Investigator string
	Notes        string
}

// EngineParams records the configuration actually used for the run.
type EngineParams struct {
	Method          string // "ewfacquire" or "dcfldd"
	HashTypes       []string
	SegmentSize     string
	Compression     string
	SwapBytePairs   bool
	Granularity     string
	ZeroOnReadError bool
	UseChunkData    bool
}

// Timing records the job's wall-clock envelope.
type Timing struct {
	Start    time.Time
	End      time.Time
	Duration time.Duration
}

// Quantities records the byte/sector accounting for the acquisition.
type Quantities struct {
	LBACount            uint64
	SectorSize           uint64
	RequestedOffset       int64
	RequestedByteWindow   int64
	EffectiveByteWindow   int64
}

// SegmentFact describes one written output segment.
type SegmentFact struct {
	UID        string
	Filesystem string
	Serial     string
	FileName   string
	Path       string // <mount>/<case>/<evidence>/
}

// DriveRole distinguishes the source disk from its one or two destinations.
type DriveRole string

const (
	RoleSource              DriveRole = "Source"
	RoleDestination          DriveRole = "Destination"
	RoleSecondaryDestination DriveRole = "Secondary Destination"
)

// DriveRow is one row of the per-drive summary table.
type DriveRow struct {
	Role       DriveRole
	Serial     string
	Model      string
	Filesystem string
	Cipher     string
	SMART      string // "healthy", "failing", or "unsupported"
}

// Capacities reports a drive's size in both raw and human units.
type Capacities struct {
	Bytes uint64
	GB    float64
}

// EncryptionTable reports the security posture observed on a drive.
type EncryptionTable struct {
	ATASecurityEnabled bool
	SEDEncrypted       bool
	Locked             bool
}

// SourcePartition is one entry of the source disk's partition table.
type SourcePartition struct {
	Index      int
	Filesystem string
	StartMB    float64
	EndMB      float64
	SizeMB     float64
}

// Context is the complete template payload for one rendered report.
type Context struct {
	Identity    SystemIdentity
	Case        CaseInfo
	Engine      EngineParams
	Timing      Timing
	Quantities  Quantities
	Segments    []SegmentFact
	Drives      []DriveRow
	Capacities  map[string]Capacities // keyed by drive serial
	Encryption  map[string]EncryptionTable
	Partitions  []SourcePartition
	Digests     map[string]string
}
