package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cyber-rangers/cratec/internal/catalog"
	"github.com/cyber-rangers/cratec/internal/cratecerr"
	"github.com/cyber-rangers/cratec/internal/engine"
	"github.com/cyber-rangers/cratec/internal/engine/ewf"
	"github.com/cyber-rangers/cratec/internal/engine/raw"
	"github.com/cyber-rangers/cratec/internal/obslog"
	"github.com/cyber-rangers/cratec/internal/obsmetrics"
	"github.com/cyber-rangers/cratec/internal/workpool"
)

var log = obslog.Component("orchestrator")

// Orchestrator ties the catalog store, device inventory, engine driver,
// broadcast bus, and report builder together behind the two public
// operations named in spec.md §6: run_ewfacquire and run_dcfldd.
type Orchestrator struct {
	Store    *catalog.Store
	Mounts   MountResolver
	Devices  DeviceResolver
	Runner   engine.Runner
	Bus      EventBus
	Reports  ReportBuilder

	EscalationTool string

	// LogPool, if set, offloads catalog.AppendLogLine calls onto a bounded
	// worker pool so a slow SQLite write never backs up the stdout/stderr
	// line pump. Nil runs the append inline, which is what the unit tests
	// exercise.
	LogPool *workpool.Pool
	// ReportPool, if set, offloads the post-job Reports.Render call so the
	// caller of RunEWF/RunRaw isn't blocked on a pdflatex/tectonic
	// subprocess. Nil renders inline.
	ReportPool *workpool.Pool
}

func (o *Orchestrator) appendLogLine(ctx context.Context, processID int64, n int, line string) {
	write := func(ctx context.Context) {
		if err := o.Store.AppendLogLine(ctx, processID, n, line); err != nil {
			log.Warn("append log line failed", "process_id", processID, "error", err)
		}
	}
	if o.LogPool == nil {
		write(ctx)
		return
	}
	if err := o.LogPool.Submit(write); err != nil {
		log.Warn("log pool saturated, appending inline", "process_id", processID, "error", err)
		write(ctx)
	}
}

func (o *Orchestrator) renderReport(dialect string, jobID int64) {
	render := func(ctx context.Context) {
		if err := o.Reports.Render(ctx, dialect, jobID); err != nil {
			log.Error("report render failed, job remains done", "job_id", jobID, "error", err)
		}
	}
	if o.ReportPool == nil {
		render(context.Background())
		return
	}
	if err := o.ReportPool.Submit(render); err != nil {
		log.Error("report pool saturated, rendering inline", "job_id", jobID, "error", err)
		render(context.Background())
	}
}

// stageEvidence creates <mount>/<case>/<evidence>/ on every destination
// mount before the first byte is written, per spec.md §4.4. A failure here
// aborts the job before the engine is ever spawned.
func stageEvidence(mounts []string, caseName, evidence string) error {
	for _, mount := range mounts {
		if mount == "" {
			continue
		}
		dir := filepath.Join(mount, caseName, evidence)
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("orchestrator: stage evidence dir %s: %w", dir, err)
		}
	}
	return nil
}

// resolveDestinations resolves both destination mount points. It wraps
// whatever the resolver returns in ErrNoMountpoint only when the resolver
// hasn't already done so itself (MountInventory does; test fakes may not),
// so callers can always errors.Is against a single sentinel.
func (o *Orchestrator) resolveDestinations(ctx context.Context, req Request) (primaryMount, secondaryMount string, err error) {
	primaryMount, err = o.Mounts.ResolveMountpoint(ctx, req.DestInterfacePath)
	if err != nil {
		return "", "", wrapNoMountpoint(err)
	}
	if req.Dest2InterfacePath != nil {
		secondaryMount, err = o.Mounts.ResolveMountpoint(ctx, *req.Dest2InterfacePath)
		if err != nil {
			return "", "", wrapNoMountpoint(err)
		}
	}
	return primaryMount, secondaryMount, nil
}

func wrapNoMountpoint(err error) error {
	if errors.Is(err, cratecerr.ErrNoMountpoint) {
		return err
	}
	return fmt.Errorf("%w: %v", cratecerr.ErrNoMountpoint, err)
}

// resolveInterfaceIDs translates stable paths to Interface rows, the step
// spec.md §4.1's insert_job names as "lookups that translate stable
// interface paths to interface ids".
func (o *Orchestrator) resolveInterfaceIDs(ctx context.Context, req Request) (srcID, destID int64, dest2ID *int64, err error) {
	src, err := o.Store.GetInterfaceByStablePath(ctx, req.SourceInterfacePath)
	if err != nil {
		return 0, 0, nil, err
	}
	dst, err := o.Store.GetInterfaceByStablePath(ctx, req.DestInterfacePath)
	if err != nil {
		return 0, 0, nil, err
	}
	if req.Dest2InterfacePath != nil {
		dst2, err := o.Store.GetInterfaceByStablePath(ctx, *req.Dest2InterfacePath)
		if err != nil {
			return 0, 0, nil, err
		}
		id := dst2.ID
		dest2ID = &id
	}
	return src.ID, dst.ID, dest2ID, nil
}

// jobState accumulates the in-flight parsed updates for one job so the
// final FinalizeJob call has the complete digest set. Access is
// serialized because Supervisor.Run pumps stdout and stderr on two
// concurrent goroutines.
type jobState struct {
	mu         sync.Mutex
	lineNumber int
	digests    catalog.Digests
}

func (js *jobState) nextLine() int {
	js.mu.Lock()
	defer js.mu.Unlock()
	js.lineNumber++
	return js.lineNumber
}

// RunEWF drives one ewfacquire acquisition end to end: validate, stage,
// spawn, stream, finalize, report. It returns once the job has reached a
// terminal status.
func (o *Orchestrator) RunEWF(ctx context.Context, req Request) (Outcome, error) {
	// corrID has no persisted column of its own; it exists purely to let an
	// operator grep one acquisition's log lines out of the shared process
	// log, since job/process rowids aren't assigned until InsertJob below.
	corrID := uuid.NewString()
	log.Info("ewf acquisition requested", "correlation_id", corrID, "case", req.CaseName, "evidence", req.Evidence)

	if req.DestInterfacePath == "" {
		return Outcome{}, cratecerr.ErrNoDestination
	}

	primaryMount, secondaryMount, err := o.resolveDestinations(ctx, req)
	if err != nil {
		return Outcome{}, err
	}

	cfg, err := o.Store.GetEWFConfig(ctx, req.ConfigID)
	if err != nil {
		return Outcome{}, err
	}

	srcID, destID, dest2ID, err := o.resolveInterfaceIDs(ctx, req)
	if err != nil {
		return Outcome{}, err
	}

	jobID, processID, err := o.Store.InsertJob(ctx, "ewf", catalog.JobRequest{
		ConfigID: req.ConfigID, Investigator: req.Investigator, CaseName: req.CaseName,
		Evidence: req.Evidence, Description: req.Description, Notes: req.Notes,
		SourceInterfaceID: srcID, DestInterfaceID: destID, Dest2InterfaceID: dest2ID,
		ReqOffset: parseOffset(req.Offset), ReqBytes: parseOffset(req.BytesToRead),
	})
	if err != nil {
		return Outcome{}, err
	}

	destDisks := []string{primaryMount}
	if secondaryMount != "" {
		destDisks = append(destDisks, secondaryMount)
	}
	o.Bus.SendProcessFullEWF(jobID, processID, req.SourceInterfacePath, destDisks, *cfg)

	if err := stageEvidence(destDisks, req.CaseName, req.Evidence); err != nil {
		return o.finalize(ctx, "ewf", jobID, processID, catalog.JobError, catalog.Digests{}), err
	}

	sourceDevNode, err := o.Devices.DevNode(ctx, req.SourceInterfacePath)
	if err != nil {
		return o.finalize(ctx, "ewf", jobID, processID, catalog.JobError, catalog.Digests{}), err
	}

	argv, argvPrint, _, _ := ewf.Build(*cfg, ewf.RunParams{
		Investigator: req.Investigator, CaseName: req.CaseName, Evidence: req.Evidence,
		Description: req.Description, Notes: req.Notes, Offset: req.Offset, BytesToRead: req.BytesToRead,
	}, sourceDevNode, ewf.Targets{PrimaryMount: primaryMount, SecondaryMount: secondaryMount})
	log.Info("spawning ewfacquire", "job_id", jobID, "argv", argvPrint)

	state := &jobState{}
	start := time.Now()
	runErr := o.Runner.Run(ctx, argv, func(ev engine.Event) {
		o.handleEWFEvent(ctx, jobID, processID, state, ev)
	})
	obsmetrics.EngineJobDuration.WithLabelValues("ewf").Observe(time.Since(start).Seconds())

	status := catalog.JobDone
	if runErr != nil {
		status = catalog.JobError
	}
	obsmetrics.EngineJobsTotal.WithLabelValues("ewf", string(status)).Inc()

	outcome := o.finalize(ctx, "ewf", jobID, processID, status, state.digests)
	if status == catalog.JobDone && o.Reports != nil {
		o.renderReport("ewf", jobID)
	}
	return outcome, nil
}

func (o *Orchestrator) handleEWFEvent(ctx context.Context, jobID, processID int64, state *jobState, ev engine.Event) {
	switch ev.Kind {
	case engine.EventStdoutLine, engine.EventStderrLine:
		line := ev.Line
		if ev.Kind == engine.EventStderrLine {
			line = "[stderr] " + line
		}
		n := state.nextLine()
		o.appendLogLine(ctx, processID, n, line)
		o.Bus.SendProcessOutput(jobID, line)

		update := ewf.ParseLine(ev.Line)
		if update.HasPercent || update.HasSpeed {
			var pct, speed *float64
			var eta *string
			if update.HasPercent {
				pct = &update.Percent
			}
			if update.HasSpeed {
				speed = &update.SpeedMiBs
				eta = &update.ETAText
			}
			o.Bus.SendProcessProgress(jobID, pct, eta, speed)
		}
		state.mu.Lock()
		if update.MD5 != "" {
			state.digests.MD5 = update.MD5
		}
		if update.SHA1 != "" {
			state.digests.SHA1 = update.SHA1
		}
		if update.SHA256 != "" {
			state.digests.SHA256 = update.SHA256
		}
		state.mu.Unlock()
	case engine.EventTerminated:
		// Terminal status is driven by the Run() return value, not this event.
	}
}

// RunRaw drives one dcfldd acquisition, mirroring RunEWF's shape.
func (o *Orchestrator) RunRaw(ctx context.Context, req Request) (Outcome, error) {
	corrID := uuid.NewString()
	log.Info("raw acquisition requested", "correlation_id", corrID, "case", req.CaseName, "evidence", req.Evidence)

	if req.DestInterfacePath == "" {
		return Outcome{}, cratecerr.ErrNoDestination
	}

	primaryMount, secondaryMount, err := o.resolveDestinations(ctx, req)
	if err != nil {
		return Outcome{}, err
	}

	cfg, err := o.Store.GetRawConfig(ctx, req.ConfigID)
	if err != nil {
		return Outcome{}, err
	}

	srcID, destID, dest2ID, err := o.resolveInterfaceIDs(ctx, req)
	if err != nil {
		return Outcome{}, err
	}

	jobID, processID, err := o.Store.InsertJob(ctx, "raw", catalog.JobRequest{
		ConfigID: req.ConfigID, Investigator: req.Investigator, CaseName: req.CaseName,
		Evidence: req.Evidence, Description: req.Description, Notes: req.Notes,
		SourceInterfaceID: srcID, DestInterfaceID: destID, Dest2InterfaceID: dest2ID,
		ReqOffset: parseOffset(req.Offset), ReqBytes: parseOffset(req.BytesToRead),
	})
	if err != nil {
		return Outcome{}, err
	}

	destDisks := []string{primaryMount}
	if secondaryMount != "" {
		destDisks = append(destDisks, secondaryMount)
	}
	o.Bus.SendProcessFullRaw(jobID, processID, req.SourceInterfacePath, destDisks, *cfg)

	if err := stageEvidence(destDisks, req.CaseName, req.Evidence); err != nil {
		return o.finalize(ctx, "raw", jobID, processID, catalog.JobError, catalog.Digests{}), err
	}

	sourceDevNode, err := o.Devices.DevNode(ctx, req.SourceInterfacePath)
	if err != nil {
		return o.finalize(ctx, "raw", jobID, processID, catalog.JobError, catalog.Digests{}), err
	}

	blockSize := cfg.BlockSize
	var totalBytes int64
	if blockSize == "auto" || blockSize == "" {
		totalBytes, err = o.Devices.CapacityBytes(ctx, req.SourceInterfacePath)
		if err == nil && totalBytes > 0 {
			blockSize = "4096" // conservative default once the config itself says "auto"
		}
	} else {
		totalBytes, _ = o.Devices.CapacityBytes(ctx, req.SourceInterfacePath)
	}

	argv, argvPrint, _, _, _ := raw.Build(*cfg, raw.RunParams{
		Investigator: req.Investigator, CaseName: req.CaseName, Evidence: req.Evidence,
		Description: req.Description, Notes: req.Notes, Offset: req.Offset, BytesToRead: req.BytesToRead,
	}, sourceDevNode, blockSize, raw.Targets{PrimaryMount: primaryMount, SecondaryMount: secondaryMount})
	log.Info("spawning dcfldd", "job_id", jobID, "argv", argvPrint)

	state := &jobState{}
	parser := raw.NewParser(totalBytes)
	var parserMu sync.Mutex

	start := time.Now()
	runErr := o.Runner.Run(ctx, argv, func(ev engine.Event) {
		o.handleRawEvent(ctx, jobID, processID, state, parser, &parserMu, ev)
	})
	obsmetrics.EngineJobDuration.WithLabelValues("raw").Observe(time.Since(start).Seconds())

	status := catalog.JobDone
	if runErr != nil {
		status = catalog.JobError
	}
	obsmetrics.EngineJobsTotal.WithLabelValues("raw", string(status)).Inc()

	outcome := o.finalize(ctx, "raw", jobID, processID, status, state.digests)
	if status == catalog.JobDone && o.Reports != nil {
		o.renderReport("raw", jobID)
	}
	return outcome, nil
}

func (o *Orchestrator) handleRawEvent(ctx context.Context, jobID, processID int64, state *jobState, parser *raw.Parser, parserMu *sync.Mutex, ev engine.Event) {
	switch ev.Kind {
	case engine.EventStdoutLine, engine.EventStderrLine:
		line := ev.Line
		if ev.Kind == engine.EventStderrLine {
			line = "[stderr] " + line
		}
		n := state.nextLine()
		o.appendLogLine(ctx, processID, n, line)
		o.Bus.SendProcessOutput(jobID, line)

		parserMu.Lock()
		update := parser.ParseLine(ev.Line, time.Now())
		parserMu.Unlock()

		if update.HasPercent || update.HasSpeed {
			var pct, speed *float64
			var eta *string
			if update.HasPercent {
				pct = &update.Percent
			}
			if update.HasSpeed {
				speed = &update.SpeedMiBs
				eta = &update.ETAText
			}
			o.Bus.SendProcessProgress(jobID, pct, eta, speed)
		}
		state.mu.Lock()
		if update.MD5 != "" {
			state.digests.MD5 = update.MD5
		}
		if update.SHA1 != "" {
			state.digests.SHA1 = update.SHA1
		}
		if update.SHA256 != "" {
			state.digests.SHA256 = update.SHA256
		}
		if update.SHA384 != "" {
			state.digests.SHA384 = update.SHA384
		}
		if update.SHA512 != "" {
			state.digests.SHA512 = update.SHA512
		}
		state.mu.Unlock()
	case engine.EventTerminated:
	}
}

// finalize commits the terminal status and emits ProcessDone. It is
// idempotent at the store layer: a second finalize on an already-terminal
// job is a no-op update, matching spec.md's "Terminal-once" invariant. If
// the commit itself fails, no ProcessDone is sent and the job remains
// running until operator intervention, per spec.md §7's conservative
// default.
func (o *Orchestrator) finalize(ctx context.Context, dialect string, jobID, processID int64, status catalog.JobStatus, digests catalog.Digests) Outcome {
	if err := o.Store.FinalizeJob(ctx, dialect, jobID, processID, status, digests); err != nil {
		log.Error("finalize failed, job remains running until operator intervention", "job_id", jobID, "error", err)
		return Outcome{JobID: jobID, ProcessID: processID, Status: catalog.JobRunning}
	}
	o.Bus.SendProcessDone(jobID, string(status))
	return Outcome{JobID: jobID, ProcessID: processID, Status: status, Digests: digests}
}

func parseOffset(s string) int64 {
	if s == "" || s == "ask" {
		return 0
	}
	var v int64
	_, err := fmt.Sscanf(s, "%d", &v)
	if err != nil {
		return 0
	}
	return v
}
