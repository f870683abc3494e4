// Package broadcast implements the single WebSocket endpoint (C3): a
// status producer that polls the device inventory every two seconds and an
// event producer driven by the engine driver and orchestrator. Adapted
// directly from the teacher's internal/websocket/dag_streamer.go hub.
package broadcast

import "time"

// FrameType discriminates the five wire shapes a subscriber must dispatch
// on, per spec.md §6.
type FrameType string

const (
	FrameStatus          FrameType = "Status"
	FrameProcessFull     FrameType = "ProcessFull"
	FrameProcessOutput   FrameType = "ProcessOutput"
	FrameProcessProgress FrameType = "ProcessProgress"
	FrameProcessDone     FrameType = "ProcessDone"
)

// DeviceStatus is the payload of a Status frame, refreshed once per poll
// tick from the device inventory's host sampler and scan.
type DeviceStatus struct {
	CPUPercent    float64        `json:"cpu_percent"`
	MemUsedBytes  uint64         `json:"mem_used_bytes"`
	MemTotalBytes uint64         `json:"mem_total_bytes"`
	SampledAt     time.Time      `json:"sampled_at"`
	Interfaces    []DeviceSlot   `json:"interfaces"`
}

// DeviceSlot is one interface's presence/readiness, as shown on the Status
// frame's device list.
type DeviceSlot struct {
	StablePath string `json:"stable_path"`
	Side       string `json:"side"`
	Label      string `json:"label"`
	Present    bool   `json:"present"`
	DevNode    string `json:"dev_node,omitempty"`
}

// StatusFrame wraps a DeviceStatus for the wire.
type StatusFrame struct {
	Type FrameType    `json:"type"`
	Data DeviceStatus `json:"data"`
}

// ProcessFullFrame is emitted once when an acquisition starts, carrying the
// resolved destinations and an empty/seed log.
type ProcessFullFrame struct {
	Type             FrameType `json:"type"`
	ID               int64     `json:"id"`
	StartDatetime    time.Time `json:"start_datetime"`
	EndDatetime      *time.Time `json:"end_datetime,omitempty"`
	Status           string    `json:"status"`
	TriggeredByEWF   *int64    `json:"triggered_by_ewf,omitempty"`
	TriggeredByDD    *int64    `json:"triggered_by_dd,omitempty"`
	SourceDisk       string    `json:"source_disk"`
	DestinationDisks []string  `json:"destination_disks"`
	Speed            float64   `json:"speed"`
	ProgressPerc     float64   `json:"progress_perc"`
	ProgressTime     string    `json:"progress_time"`
	OutLog           []string  `json:"out_log"`
}

// ProcessOutputFrame carries one raw engine output line, unparsed.
type ProcessOutputFrame struct {
	Type   FrameType `json:"type"`
	ID     int64     `json:"id"`
	Output string    `json:"output"`
}

// ProcessProgressFrame carries a parsed progress/speed/ETA update. Fields
// are pointers because a given engine output line may update only one of
// them (a block counter line updates Speed without ProgressPerc, etc.).
type ProcessProgressFrame struct {
	Type         FrameType `json:"type"`
	ID           int64     `json:"id"`
	ProgressPerc *float64  `json:"progress_perc,omitempty"`
	ProgressTime *string   `json:"progress_time,omitempty"`
	Speed        *float64  `json:"speed,omitempty"`
}

// ProcessDoneFrame is emitted exactly once per job, on the transition into
// Finalizing/Terminal, always carrying the final status.
type ProcessDoneFrame struct {
	Type        FrameType `json:"type"`
	ID          int64     `json:"id"`
	Status      string    `json:"status"`
	EndDatetime time.Time `json:"end_datetime"`
}
