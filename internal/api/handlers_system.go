package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/cyber-rangers/cratec/internal/engine"
)

// programVersion is one row of the get_program_versions payload: a
// display name paired with the trimmed combined output of invoking the
// binary's version flag.
type programVersion struct {
	Name    string `json:"name"`
	Output  string `json:"output"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) handleGetProgramVersions(w http.ResponseWriter, r *http.Request) {
	out := make([]programVersion, 0, len(s.VersionBinaries))
	for name, argv := range s.VersionBinaries {
		pv := programVersion{Name: name}
		output, _, err := runVersionProbe(r.Context(), argv)
		if err != nil {
			pv.Error = err.Error()
		} else {
			pv.Output = output
		}
		out = append(out, pv)
	}
	writeJSON(w, http.StatusOK, out)
}

// runVersionProbe is a package variable (not a plain function call) so
// tests can substitute a fake instead of spawning a real binary per
// SPEC_FULL.md §8's preference for fakes over compiled test helpers.
// "get the version string" never needs privilege, so no escalation tool is
// applied.
var runVersionProbe = func(ctx context.Context, argv []string) (string, int, error) {
	output, exitCode, err := engine.RunToCompletion(ctx, "", argv)
	return strings.TrimSpace(string(output)), exitCode, err
}

func (s *Server) handleGetSystemLogs(w http.ResponseWriter, r *http.Request) {
	limit := queryIntDefault(r, "limit", 200)
	entries, err := s.Store.GetSystemLogs(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleRunAideCheck(w http.ResponseWriter, r *http.Request) {
	if s.HostCheck == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "host-integrity scanner not configured"})
		return
	}
	result, err := s.HostCheck.Scan(r.Context())
	if err != nil {
		if appendErr := s.Store.AppendSystemLog(r.Context(), "error", "aide check failed: "+err.Error()); appendErr != nil {
			log.Warn("append system log failed", "error", appendErr)
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleLockSystem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PIN string `json:"pin"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.Gate.Lock(req.PIN); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "locked"})
}

func (s *Server) handleUnlockSystem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PIN string `json:"pin"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.Gate.Unlock(req.PIN); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "unlocked"})
}

func (s *Server) handleShutdownSystem(w http.ResponseWriter, r *http.Request) {
	if s.Gate.Locked() {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "system is locked"})
		return
	}
	log.Warn("shutdown requested over API")
	s.runPowerAction([]string{"shutdown", "-h", "now"})
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "shutting down"})
}

func (s *Server) handleRestartSystem(w http.ResponseWriter, r *http.Request) {
	if s.Gate.Locked() {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "system is locked"})
		return
	}
	log.Warn("restart requested over API")
	s.runPowerAction([]string{"reboot"})
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "restarting"})
}

// runPowerAction spawns a power-control command fire-and-forget, using a
// background context: the request's own context is canceled the instant
// the handler returns, which is before the action has any chance to run.
func (s *Server) runPowerAction(argv []string) {
	go func() {
		if _, _, err := engine.RunToCompletion(context.Background(), s.EscalationTool, argv); err != nil {
			log.Error("power action failed", "argv", argv, "error", err)
		}
	}()
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	health := map[string]string{"catalog": "ok", "integrity": "ok", "broadcast": "ok"}
	status := http.StatusOK

	if _, err := s.Store.GetHistory(r.Context(), 1); err != nil {
		health["catalog"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if s.Integrity == nil {
		health["integrity"] = "not verified"
		status = http.StatusServiceUnavailable
	}
	if s.Bus == nil {
		health["broadcast"] = "not started"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, health)
}
