// Package api exposes the command surface named in spec.md §6 as JSON/HTTP
// handlers. Routing and the CORS-for-the-frontend idiom are adapted from
// the teacher's internal/api/server.go, generalized from gorilla/mux to the
// standard library's pattern-matching ServeMux (no component in this
// appliance needs mux's path-variable extraction, which was the only
// feature the teacher actually used it for).
package api

import (
	"context"
	"net/http"

	"github.com/cyber-rangers/cratec/internal/broadcast"
	"github.com/cyber-rangers/cratec/internal/catalog"
	"github.com/cyber-rangers/cratec/internal/device"
	"github.com/cyber-rangers/cratec/internal/hostcheck"
	"github.com/cyber-rangers/cratec/internal/integritygate"
	"github.com/cyber-rangers/cratec/internal/lockscreen"
	"github.com/cyber-rangers/cratec/internal/obslog"
	"github.com/cyber-rangers/cratec/internal/orchestrator"
)

var log = obslog.Component("api")

// Runner is the narrow slice of *orchestrator.Orchestrator the HTTP layer
// drives; kept as an interface so handler tests can substitute a fake.
type Runner interface {
	RunEWF(ctx context.Context, req orchestrator.Request) (orchestrator.Outcome, error)
	RunRaw(ctx context.Context, req orchestrator.Request) (orchestrator.Outcome, error)
}

// Server wires the catalog, orchestrator, device inventory, broadcast bus,
// integrity gate handle, host-integrity scanner, and PIN gate behind the
// command surface.
type Server struct {
	Store          *catalog.Store
	Orchestrator   Runner
	Bus            *broadcast.Bus
	Sampler        *device.Sampler
	Integrity      *integritygate.Handle
	HostCheck      hostcheck.Scanner
	Gate           *lockscreen.Gate
	MountRoot      string
	EscalationTool string
	VersionBinaries map[string][]string // display name -> argv to get a version string
}

// Routes builds the full handler mux for the command surface plus /healthz.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /save_new_ewf_config", s.handleSaveEWFConfig)
	mux.HandleFunc("POST /save_new_dd_config", s.handleSaveRawConfig)
	mux.HandleFunc("GET /get_all_active_configs", s.handleGetAllActiveConfigs)
	mux.HandleFunc("POST /delete_or_deactivate_config", s.handleDeleteOrDeactivateConfig)
	mux.HandleFunc("GET /get_config_entry", s.handleGetConfigEntry)

	mux.HandleFunc("POST /run_ewfacquire", s.handleRunEWFAcquire)
	mux.HandleFunc("POST /run_dcfldd", s.handleRunDcfldd)
	mux.HandleFunc("GET /get_history", s.handleGetHistory)
	mux.HandleFunc("GET /get_process_log_lines_texts", s.handleGetProcessLogLines)

	mux.HandleFunc("GET /get_device_status", s.handleGetDeviceStatus)
	mux.HandleFunc("GET /get_lsblk_json", s.handleGetLsblkJSON)
	mux.HandleFunc("GET /get_disk_info", s.handleGetDiskInfo)
	mux.HandleFunc("GET /get_directory_contents", s.handleGetDirectoryContents)

	mux.HandleFunc("GET /get_program_versions", s.handleGetProgramVersions)
	mux.HandleFunc("GET /get_system_logs", s.handleGetSystemLogs)
	mux.HandleFunc("POST /run_aide_check_json", s.handleRunAideCheck)

	mux.HandleFunc("POST /lock_system", s.handleLockSystem)
	mux.HandleFunc("POST /unlock_system", s.handleUnlockSystem)
	mux.HandleFunc("POST /shutdown_system", s.handleShutdownSystem)
	mux.HandleFunc("POST /restart_system", s.handleRestartSystem)

	mux.HandleFunc("GET /healthz", s.handleHealthz)

	return withCORS(mux)
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
