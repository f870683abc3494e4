// Package cratecerr collects the sentinel error kinds surfaced across the
// orchestrator so callers can discriminate failures with errors.Is/As
// instead of matching on message text.
package cratecerr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a requested config/job/interface is absent.
	ErrNotFound = errors.New("not found")

	// ErrUnknownInterface is returned when a stable path has no Interface row.
	ErrUnknownInterface = errors.New("unknown interface")

	// ErrInvalidTopology is returned when the same interface is chosen twice
	// among {source, dest, dest2}.
	ErrInvalidTopology = errors.New("invalid topology: interface reused")

	// ErrNoDestination is returned when a job request names zero destinations.
	ErrNoDestination = errors.New("no destination specified")

	// ErrNoMountpoint is returned when a destination's output volume cannot
	// be located or auto-mounted.
	ErrNoMountpoint = errors.New("no mountpoint for destination")

	// ErrDatabaseBusy is returned when the retry budget on lock contention
	// is exhausted.
	ErrDatabaseBusy = errors.New("database busy: retry budget exhausted")

	// ErrEngineLaunchFailed is returned when the engine child process could
	// not be spawned at all.
	ErrEngineLaunchFailed = errors.New("engine launch failed")

	// ErrReportRenderFailed is returned when the LaTeX template failed to render.
	ErrReportRenderFailed = errors.New("report render failed")

	// ErrReportCompileFailed is returned when the PDF compiler exited nonzero.
	ErrReportCompileFailed = errors.New("report compile failed")

	// ErrIntegrityVerificationFailed is returned by the startup gate when the
	// signed configuration blob does not verify.
	ErrIntegrityVerificationFailed = errors.New("integrity verification failed")

	// ErrSchemaTooNew is returned when the catalog database was created by a
	// newer schema version than this binary knows how to read.
	ErrSchemaTooNew = errors.New("catalog schema version too new")

	// ErrOutsideMountRoot is returned by directory-listing operations when
	// the requested path escapes the mount root.
	ErrOutsideMountRoot = errors.New("path is not a descendant of the mount root")

	// ErrInvalidPIN is returned when a lock/unlock PIN does not satisfy the
	// 4-6 digit shape.
	ErrInvalidPIN = errors.New("pin must be 4 to 6 digits")

	// ErrPINMismatch is returned when unlock is attempted with the wrong PIN.
	ErrPINMismatch = errors.New("pin does not match")
)

// EngineNonZero wraps a nonzero engine exit code.
type EngineNonZero struct {
	ExitCode int
}

func (e *EngineNonZero) Error() string {
	return fmt.Sprintf("engine exited with code %d", e.ExitCode)
}

// ParseError reports that operator input failed configuration validation.
type ParseError struct {
	Field  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error on field %q: %s", e.Field, e.Reason)
}
