// Package orchestrator implements the Acquisition Orchestrator (C5): the
// public entry point that validates an acquisition request, stages
// evidence directories, drives the engine, fans out progress, finalizes
// the job, and triggers the report builder on success. Semantics are
// unchanged from spec.md §4.5; this package only wires C1/C2/C3/C4/C6
// together, stateless between calls per spec.md §4.5 Concurrency.
package orchestrator

import (
	"context"

	"github.com/cyber-rangers/cratec/internal/catalog"
)

// MountResolver resolves a destination's stable path to its mount point,
// auto-mounting if necessary (C2). Abstracted so tests can substitute a
// fixed mapping instead of touching /proc/mounts.
type MountResolver interface {
	ResolveMountpoint(ctx context.Context, stablePath string) (string, error)
}

// DeviceResolver resolves a source interface's stable path to its current
// kernel device node and capacity (C2).
type DeviceResolver interface {
	DevNode(ctx context.Context, stablePath string) (string, error)
	CapacityBytes(ctx context.Context, stablePath string) (int64, error)
}

// ReportBuilder renders and places the audit PDF for a terminal, successful
// job (C6). Failure here is logged, never unwound — the job's terminal
// status is already the source of truth (spec.md §7).
type ReportBuilder interface {
	Render(ctx context.Context, dialect string, jobID int64) error
}

// EventBus is the narrow slice of the broadcast bus (C3) the orchestrator
// needs.
type EventBus interface {
	SendProcessFullEWF(jobID, processID int64, sourceDisk string, destDisks []string, cfg catalog.EWFConfig)
	SendProcessFullRaw(jobID, processID int64, sourceDisk string, destDisks []string, cfg catalog.RawConfig)
	SendProcessOutput(jobID int64, line string)
	SendProcessProgress(jobID int64, percent *float64, etaText *string, speed *float64)
	SendProcessDone(jobID int64, status string)
}

// Request carries everything the public run operation needs for one
// dialect-agnostic acquisition.
type Request struct {
	ConfigID            int64
	Investigator        string
	CaseName             string
	Evidence             string
	Description          string
	Notes                string
	SourceInterfacePath  string
	DestInterfacePath    string
	Dest2InterfacePath   *string
	Offset               string
	BytesToRead          string
}

// Outcome is returned once the acquisition has reached a terminal status.
type Outcome struct {
	JobID     int64
	ProcessID int64
	Status    catalog.JobStatus
	Digests   catalog.Digests
}
