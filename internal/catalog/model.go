package catalog

import "time"

// InterfaceSide distinguishes a source disk interface from a destination one.
type InterfaceSide string

const (
	SideInput  InterfaceSide = "input"
	SideOutput InterfaceSide = "output"
)

// Interface is a registered, stable-path-normalized disk interface.
type Interface struct {
	ID         int64
	StablePath string
	Side       InterfaceSide
	Label      string
}

// EWFConfig is a saved ewfacquire parameter preset.
type EWFConfig struct {
	ID                int64
	Name              string
	Active            bool
	CreatedAt         time.Time
	Codepage          string
	SectorsPerRead    string
	BytesToRead       string
	CompressionMethod string
	CompressionLevel  string
	HashTypes         []string
	EWFFormat         string
	GranularitySect   string
	Notes             string
	Offset            string
	ProcessBufferSize string
	BytesPerSector    string
	ReadRetryCount    string
	SwapBytePairs     bool
	SegmentSize       string
	ZeroOnReadError   bool
	UseChunkData      bool
}

// RawConfig is a saved dcfldd parameter preset.
type RawConfig struct {
	ID             int64
	Name           string
	Active         bool
	CreatedAt      time.Time
	BlockSize      string
	HashTypes      []string
	Split          string
	Hashwindow     string
	StatusInterval string
}

// JobStatus is the terminal or in-flight state of an acquisition job.
type JobStatus string

const (
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobError   JobStatus = "error"
)

// Digests holds the hash values produced by a completed acquisition.
type Digests struct {
	MD5    string
	SHA1   string
	SHA256 string
	SHA384 string
	SHA512 string
}

// JobRequest carries the operator-supplied parameters common to both
// ewfacquire and dcfldd jobs.
type JobRequest struct {
	ConfigID          int64
	Investigator      string
	CaseName          string
	Evidence          string
	Description       string
	Notes             string
	SourceInterfaceID int64
	DestInterfaceID   int64
	Dest2InterfaceID  *int64
	ReqOffset         int64
	ReqBytes          int64
}

// Job is a persisted acquisition job record, regardless of dialect.
type Job struct {
	ID       int64
	Dialect  string // "ewf" or "raw"
	Request  JobRequest
	Start    time.Time
	End      *time.Time
	Status   JobStatus
	Digests  Digests
}

// Process is the wrapper row InsertJob creates for exactly one job; exactly
// one of TriggeredByEWF and TriggeredByRaw is set, to that job's id.
type Process struct {
	ID             int64
	TriggeredByEWF *int64
	TriggeredByRaw *int64
	Start          time.Time
	End            *time.Time
	Status         JobStatus
}

// LogLine is one captured line of subprocess stdout/stderr.
type LogLine struct {
	ProcessID   int64
	LineNumber  int
	LineContent string
	CapturedAt  time.Time
}

// SystemLogEntry is an application-level log record surfaced to operators
// via get_system_logs, independent of the structured slog stream.
type SystemLogEntry struct {
	ID         int64
	CapturedAt time.Time
	Level      string
	Message    string
}
