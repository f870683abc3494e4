package api

import (
	"context"
	"net/http"

	"github.com/cyber-rangers/cratec/internal/orchestrator"
)

// runAsync launches one acquisition on its own goroutine, detached from the
// request's context: an acquisition outlives the HTTP round trip by design,
// and progress/outcome reach the caller over the broadcast bus's ProcessFull/
// ProcessProgress/ProcessDone frames, not the HTTP response.
func (s *Server) runAsync(dialect string, req orchestrator.Request) {
	go func() {
		var err error
		switch dialect {
		case "ewf":
			_, err = s.Orchestrator.RunEWF(context.Background(), req)
		case "raw":
			_, err = s.Orchestrator.RunRaw(context.Background(), req)
		}
		if err != nil {
			log.Error("acquisition run failed", "dialect", dialect, "error", err)
		}
	}()
}

func (s *Server) handleRunEWFAcquire(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.Request
	if !decodeJSON(w, r, &req) {
		return
	}
	s.runAsync("ewf", req)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) handleRunDcfldd(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.Request
	if !decodeJSON(w, r, &req) {
		return
	}
	s.runAsync("raw", req)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	limit := queryIntDefault(r, "limit", 100)
	jobs, err := s.Store.GetHistory(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleGetProcessLogLines(w http.ResponseWriter, r *http.Request) {
	processID, ok := queryInt64(w, r, "process_id")
	if !ok {
		return
	}
	lines, err := s.Store.GetProcessLogLines(r.Context(), processID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lines)
}
