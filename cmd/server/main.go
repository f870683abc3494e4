// Command server is the cratec appliance process: it verifies the startup
// integrity gate, opens the catalog store, starts the device sampler and
// broadcast bus, and serves the command surface over HTTP.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/cyber-rangers/cratec/internal/api"
	"github.com/cyber-rangers/cratec/internal/broadcast"
	"github.com/cyber-rangers/cratec/internal/catalog"
	"github.com/cyber-rangers/cratec/internal/config"
	"github.com/cyber-rangers/cratec/internal/device"
	"github.com/cyber-rangers/cratec/internal/engine"
	"github.com/cyber-rangers/cratec/internal/hostcheck"
	"github.com/cyber-rangers/cratec/internal/infra"
	"github.com/cyber-rangers/cratec/internal/integritygate"
	"github.com/cyber-rangers/cratec/internal/lockscreen"
	"github.com/cyber-rangers/cratec/internal/obslog"
	"github.com/cyber-rangers/cratec/internal/orchestrator"
	"github.com/cyber-rangers/cratec/internal/report"
	"github.com/cyber-rangers/cratec/internal/workpool"
)

var log = obslog.Component("main")

// seedInterfaces is the fixed table of stable-path interfaces every unit
// ships with, registered idempotently on every boot per spec.md §3's "the
// stable path is unique and pre-seeded from a fixed table at first boot"
// invariant. These four bays match the reference hardware layout: one
// input bay, three output bays.
var seedInterfaces = []catalog.Interface{
	{StablePath: "pci-0000:00:14.0-usb-0:1:1.0-scsi-0:0:0:0", Side: catalog.SideInput, Label: "Source Bay"},
	{StablePath: "pci-0000:00:14.0-usb-0:2:1.0-scsi-0:0:0:0", Side: catalog.SideOutput, Label: "Destination Bay 1"},
	{StablePath: "pci-0000:00:14.0-usb-0:3:1.0-scsi-0:0:0:0", Side: catalog.SideOutput, Label: "Destination Bay 2"},
	{StablePath: "pci-0000:00:14.0-usb-0:4:1.0-scsi-0:0:0:0", Side: catalog.SideOutput, Label: "Destination Bay 3"},
}

func main() {
	obslog.Init(slog.LevelInfo, true)

	// .env is optional: a deployed appliance carries its configuration in
	// config.yaml and real environment variables, but loading it here
	// costs nothing and matches how the orchestrator binary is run locally.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn("failed to load .env", "error", err)
	}

	cfg := config.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handle, err := integritygate.Verify(cfg.Integrity.ConfigDir, cfg.Integrity.PublicKeyHex)
	if err != nil {
		log.Error("integrity gate verification failed, refusing to start", "error", err)
		os.Exit(1)
	}
	log.Info("integrity gate verified")

	store, err := catalog.Open(ctx, cfg.Catalog.StateRoot, cfg.Catalog.MaxOpenConns,
		cfg.Catalog.MaxIdleConns, cfg.Catalog.BusyTimeoutMs, cfg.Catalog.RetryBaseMs, cfg.Catalog.RetryMaxAttmpt)
	if err != nil {
		log.Error("failed to open catalog store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	for _, iface := range seedInterfaces {
		if _, err := store.UpsertInterface(ctx, iface); err != nil {
			log.Error("failed to seed interface", "stable_path", iface.StablePath, "error", err)
			os.Exit(1)
		}
	}

	sampler := device.NewSampler(time.Duration(cfg.Device.HostSampleInterval) * time.Second)
	if cfg.Redis.Enabled {
		if cache, err := infra.NewGoRedisAdapter(cfg.Redis.Addr, "", 0); err != nil {
			log.Warn("redis snapshot cache unavailable, continuing without it", "error", err)
		} else {
			sampler.Cache = cache
			defer cache.Close()
		}
	}
	go sampler.Run(ctx)

	versionBinaries := map[string][]string{
		"ewfacquire": {cfg.Engine.EWFBinary, "-V"},
		"dcfldd":     {cfg.Engine.RawBinary, "--version"},
	}

	server := &api.Server{
		Store:           store,
		Sampler:         sampler,
		Integrity:       handle,
		Gate:            &lockscreen.Gate{},
		MountRoot:       cfg.Device.MountRoot,
		EscalationTool:  cfg.Engine.EscalationTool,
		VersionBinaries: versionBinaries,
	}

	if cfg.HostCheck.Containerized {
		server.HostCheck = hostcheck.ContainerizedScanner{
			Backend:     hostcheck.DockerExecBackend{},
			ContainerID: cfg.HostCheck.Image,
			Command:     []string{cfg.HostCheck.ScannerBinary, "--report-format=json", "--report-url=stdout"},
		}
	} else {
		server.HostCheck = hostcheck.SubprocessScanner{
			Binary:         cfg.HostCheck.ScannerBinary,
			EscalationTool: cfg.Engine.EscalationTool,
		}
	}

	statusSource := func(ctx context.Context) broadcast.DeviceStatus {
		status, err := server.BuildDeviceStatus(ctx)
		if err != nil {
			log.Warn("status tick: build device status failed", "error", err)
			return broadcast.DeviceStatus{}
		}
		return status
	}

	bus, wsURL, err := broadcast.Start(ctx, cfg.Broadcast.PortRangeStart, cfg.Broadcast.PortRangeEnd,
		time.Duration(cfg.Broadcast.StatusIntervalSec)*time.Second, statusSource)
	if err != nil {
		log.Error("failed to start broadcast bus", "error", err)
		os.Exit(1)
	}
	server.Bus = bus
	log.Info("broadcast bus started", "url", wsURL)

	devices := orchestrator.DeviceInventory{EscalationTool: cfg.Engine.EscalationTool}
	mounts := orchestrator.MountInventory{Store: store, MountRoot: cfg.Device.MountRoot}

	reportBuilder := &report.Builder{
		Store:          store,
		Disks:          reportDiskResolver{escalationTool: cfg.Engine.EscalationTool},
		Mounts:         mounts,
		Identity:       systemIdentity(),
		WorkDir:        cfg.Report.WorkDir,
		Compiler:       cfg.Report.TeXCompiler,
		EscalationTool: cfg.Engine.EscalationTool,
	}

	orch := &orchestrator.Orchestrator{
		Store:          store,
		Mounts:         mounts,
		Devices:        devices,
		Runner:         &engine.Supervisor{EscalationTool: cfg.Engine.EscalationTool},
		Bus:            orchestrator.HubBus{Hub: bus.Hub},
		Reports:        reportBuilder,
		EscalationTool: cfg.Engine.EscalationTool,
		LogPool:        workpool.New("catalog-log", 4, 256),
		ReportPool:     workpool.New("report-render", 2, 16),
	}
	server.Orchestrator = orch

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      server.Routes(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSec) * time.Second,
	}

	go func() {
		log.Info("command surface listening", "port", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server stopped", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("http server shutdown error", "error", err)
	}
}

// reportDiskResolver adapts the device package's GetDiskInfo free function
// to report.DiskInfoResolver.
type reportDiskResolver struct {
	escalationTool string
}

func (r reportDiskResolver) GetDiskInfo(ctx context.Context, stablePath string) (*device.DeviceFact, error) {
	return device.GetDiskInfo(ctx, r.escalationTool, stablePath)
}

// systemIdentity derives the report's System Identity block from the
// running host, falling back to "unknown" fields rather than failing boot
// when DMI data is unreadable (e.g. inside a development container).
func systemIdentity() report.SystemIdentity {
	hardwareID := "unknown"
	if b, err := os.ReadFile("/sys/class/dmi/id/product_uuid"); err == nil {
		hardwareID = string(b)
	}
	return report.SystemIdentity{
		SoftwareHash: buildSoftwareHash,
		BuildDate:    buildDate,
		HardwareID:   hardwareID,
	}
}

// buildSoftwareHash and buildDate are overridden at link time via
// -ldflags "-X main.buildSoftwareHash=... -X main.buildDate=...".
var (
	buildSoftwareHash = "dev"
	buildDate         = "unknown"
)
