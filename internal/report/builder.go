package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cyber-rangers/cratec/internal/catalog"
	"github.com/cyber-rangers/cratec/internal/cratecerr"
	"github.com/cyber-rangers/cratec/internal/device"
	"github.com/cyber-rangers/cratec/internal/engine"
	"github.com/cyber-rangers/cratec/internal/obslog"
	"github.com/cyber-rangers/cratec/internal/obsmetrics"
)

var log = obslog.Component("report")

// DiskInfoResolver is the narrow slice of the device inventory the report
// builder needs, abstracted so tests can substitute fixed facts instead of
// probing real hardware.
type DiskInfoResolver interface {
	GetDiskInfo(ctx context.Context, stablePath string) (*device.DeviceFact, error)
}

// MountResolver mirrors orchestrator.MountResolver so the report builder
// can re-resolve a destination's current mount point at render time
// instead of requiring the caller to thread per-job mount state through
// the narrow orchestrator.ReportBuilder interface.
type MountResolver interface {
	ResolveMountpoint(ctx context.Context, stablePath string) (string, error)
}

// Builder implements the orchestrator.ReportBuilder interface: given a
// terminal job id, it renders and places the audit PDF.
type Builder struct {
	Store  *catalog.Store
	Disks  DiskInfoResolver
	Mounts MountResolver

	Identity       SystemIdentity
	WorkDir        string
	Compiler       string // "pdflatex" or "tectonic"
	EscalationTool string
}

// Render implements orchestrator.ReportBuilder.
func (b *Builder) Render(ctx context.Context, dialect string, jobID int64) error {
	job, err := b.Store.GetJob(ctx, dialect, jobID)
	if err != nil {
		return fmt.Errorf("report: load job: %w", err)
	}

	reportCtx, destMounts, err := b.buildContext(ctx, dialect, job)
	if err != nil {
		return fmt.Errorf("report: build context: %w", err)
	}

	texBytes, err := RenderLaTeX(reportCtx)
	if err != nil {
		obsmetrics.ReportBuildFailures.WithLabelValues("render").Inc()
		return fmt.Errorf("%w: %v", cratecerr.ErrReportRenderFailed, err)
	}

	pdfBytes, err := b.compile(ctx, jobID, texBytes)
	if err != nil {
		obsmetrics.ReportBuildFailures.WithLabelValues("compile").Inc()
		return fmt.Errorf("%w: %v", cratecerr.ErrReportCompileFailed, err)
	}

	for _, mount := range destMounts {
		dir := filepath.Join(mount, job.Request.CaseName, job.Request.Evidence)
		if err := os.MkdirAll(dir, 0o750); err != nil {
			obsmetrics.ReportBuildFailures.WithLabelValues("place").Inc()
			return fmt.Errorf("report: stage evidence dir %s: %w", dir, err)
		}
		dest := filepath.Join(dir, "audit-report.pdf")
		if err := os.WriteFile(dest, pdfBytes, 0o640); err != nil {
			obsmetrics.ReportBuildFailures.WithLabelValues("place").Inc()
			return fmt.Errorf("report: write %s: %w", dest, err)
		}
		log.Info("audit report placed", "job_id", jobID, "path", dest)
	}
	return nil
}

func (b *Builder) compile(ctx context.Context, jobID int64, texBytes []byte) ([]byte, error) {
	dir := filepath.Join(b.WorkDir, fmt.Sprintf("job-%d", jobID))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, err
	}
	texPath := filepath.Join(dir, "audit-report.tex")
	if err := os.WriteFile(texPath, texBytes, 0o640); err != nil {
		return nil, err
	}

	compiler := b.Compiler
	if compiler == "" {
		compiler = "pdflatex"
	}
	argv := []string{compiler, "-interaction=nonstopmode", "-output-directory", dir, texPath}
	output, exitCode, err := engine.RunToCompletion(ctx, b.EscalationTool, argv)
	if err != nil {
		return nil, err
	}
	if exitCode != 0 {
		return nil, &cratecerr.EngineNonZero{ExitCode: exitCode}
	}
	_ = output // compiler chatter, not surfaced on success

	return os.ReadFile(filepath.Join(dir, "audit-report.pdf"))
}

// buildContext joins the job, its configuration, and every involved disk's
// facts into a Context, per spec.md §4.6 step 3. It returns the resolved
// destination mount points alongside the context so Render doesn't have to
// re-derive them.
func (b *Builder) buildContext(ctx context.Context, dialect string, job *catalog.Job) (Context, []string, error) {
	src, err := b.Store.GetInterfaceByID(ctx, job.Request.SourceInterfaceID)
	if err != nil {
		return Context{}, nil, err
	}
	dst, err := b.Store.GetInterfaceByID(ctx, job.Request.DestInterfaceID)
	if err != nil {
		return Context{}, nil, err
	}
	var dst2 *catalog.Interface
	if job.Request.Dest2InterfaceID != nil {
		dst2, err = b.Store.GetInterfaceByID(ctx, *job.Request.Dest2InterfaceID)
		if err != nil {
			return Context{}, nil, err
		}
	}

	srcFact, err := b.Disks.GetDiskInfo(ctx, src.StablePath)
	if err != nil {
		return Context{}, nil, err
	}
	dstFact, err := b.Disks.GetDiskInfo(ctx, dst.StablePath)
	if err != nil {
		return Context{}, nil, err
	}
	var dst2Fact *device.DeviceFact
	if dst2 != nil {
		dst2Fact, err = b.Disks.GetDiskInfo(ctx, dst2.StablePath)
		if err != nil {
			return Context{}, nil, err
		}
	}

	drives := []DriveRow{driveRow(RoleSource, srcFact), driveRow(RoleDestination, dstFact)}
	capacities := map[string]Capacities{
		srcFact.Serial: capacityOf(srcFact),
		dstFact.Serial: capacityOf(dstFact),
	}
	encryption := map[string]EncryptionTable{
		srcFact.Serial: encryptionOf(srcFact),
		dstFact.Serial: encryptionOf(dstFact),
	}

	destMount, err := b.Mounts.ResolveMountpoint(ctx, dst.StablePath)
	if err != nil {
		return Context{}, nil, err
	}
	destMounts := []string{destMount}
	if dst2Fact != nil {
		drives = append(drives, driveRow(RoleSecondaryDestination, dst2Fact))
		capacities[dst2Fact.Serial] = capacityOf(dst2Fact)
		encryption[dst2Fact.Serial] = encryptionOf(dst2Fact)
		dest2Mount, err := b.Mounts.ResolveMountpoint(ctx, dst2.StablePath)
		if err != nil {
			return Context{}, nil, err
		}
		destMounts = append(destMounts, dest2Mount)
	}

	engineParams, err := b.engineParams(ctx, dialect, job.Request.ConfigID)
	if err != nil {
		log.Warn("engine config unavailable for report, using job fields only", "job_id", job.ID, "error", err)
	}

	var end time.Time
	if job.End != nil {
		end = *job.End
	}
	var duration time.Duration
	if job.End != nil {
		duration = job.End.Sub(job.Start)
	}

	digests := map[string]string{}
	if job.Digests.MD5 != "" {
		digests["md5"] = job.Digests.MD5
	}
	if job.Digests.SHA1 != "" {
		digests["sha1"] = job.Digests.SHA1
	}
	if job.Digests.SHA256 != "" {
		digests["sha256"] = job.Digests.SHA256
	}
	if job.Digests.SHA384 != "" {
		digests["sha384"] = job.Digests.SHA384
	}
	if job.Digests.SHA512 != "" {
		digests["sha512"] = job.Digests.SHA512
	}

	evidenceDir := filepath.Join(destMount, job.Request.CaseName, job.Request.Evidence)

	reportCtx := Context{
		Identity: b.Identity,
		Case: CaseInfo{
			Case: job.Request.CaseName, Evidence: job.Request.Evidence,
			Investigator: job.Request.Investigator, Notes: job.Request.Notes,
		},
		Engine: engineParams,
		Timing: Timing{Start: job.Start, End: end, Duration: duration},
		Quantities: Quantities{
			SectorSize:          srcFact.LogicalSectorSize,
			RequestedOffset:     job.Request.ReqOffset,
			RequestedByteWindow: job.Request.ReqBytes,
			EffectiveByteWindow: job.Request.ReqBytes,
		},
		Segments: []SegmentFact{{
			UID: fmt.Sprintf("%s-%s", job.Request.CaseName, job.Request.Evidence),
			FileName: job.Request.Evidence, Path: evidenceDir,
		}},
		Drives:     drives,
		Capacities: capacities,
		Encryption: encryption,
		Partitions: sourcePartitions(srcFact),
		Digests:    digests,
	}
	return reportCtx, destMounts, nil
}

func (b *Builder) engineParams(ctx context.Context, dialect string, configID int64) (EngineParams, error) {
	if dialect == "ewf" {
		cfg, err := b.Store.GetEWFConfig(ctx, configID)
		if err != nil {
			return EngineParams{Method: "ewfacquire"}, err
		}
		return EngineParams{
			Method: "ewfacquire", HashTypes: cfg.HashTypes, SegmentSize: cfg.SegmentSize,
			Compression: fmt.Sprintf("%s:%s", cfg.CompressionMethod, cfg.CompressionLevel),
			SwapBytePairs: cfg.SwapBytePairs, Granularity: cfg.GranularitySect,
			ZeroOnReadError: cfg.ZeroOnReadError, UseChunkData: cfg.UseChunkData,
		}, nil
	}
	cfg, err := b.Store.GetRawConfig(ctx, configID)
	if err != nil {
		return EngineParams{Method: "dcfldd"}, err
	}
	return EngineParams{Method: "dcfldd", HashTypes: cfg.HashTypes}, nil
}

func driveRow(role DriveRole, f *device.DeviceFact) DriveRow {
	fs := ""
	if len(f.Partitions) > 0 {
		fs = f.Partitions[0].Filesystem
	}
	cipher := ""
	if f.SEDEncrypted {
		cipher = "SED"
	} else if f.ATASecurityEnabled {
		cipher = "ATA-security"
	}
	return DriveRow{Role: role, Serial: f.Serial, Model: f.Model, Filesystem: fs, Cipher: cipher, SMART: smartSummary(f)}
}

func smartSummary(f *device.DeviceFact) string {
	if !f.SMART.Supported {
		return "unsupported"
	}
	if !f.SMART.Healthy {
		return "failing"
	}
	return "healthy"
}

func capacityOf(f *device.DeviceFact) Capacities {
	return Capacities{Bytes: f.CapacityBytes, GB: float64(f.CapacityBytes) / 1e9}
}

func encryptionOf(f *device.DeviceFact) EncryptionTable {
	return EncryptionTable{ATASecurityEnabled: f.ATASecurityEnabled, SEDEncrypted: f.SEDEncrypted, Locked: !f.CurrentlyReadable}
}

func sourcePartitions(f *device.DeviceFact) []SourcePartition {
	out := make([]SourcePartition, 0, len(f.Partitions))
	sectorSize := f.LogicalSectorSize
	if sectorSize == 0 {
		sectorSize = 512
	}
	for _, p := range f.Partitions {
		startMB := float64(p.StartSector*sectorSize) / (1024 * 1024)
		endMB := float64(p.EndSector*sectorSize) / (1024 * 1024)
		out = append(out, SourcePartition{
			Index: p.Index, Filesystem: p.Filesystem, StartMB: startMB, EndMB: endMB, SizeMB: endMB - startMB,
		})
	}
	return out
}
