package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cyber-rangers/cratec/internal/cratecerr"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn("write json response failed", "error", err)
	}
}

// writeError maps a cratecerr sentinel to its HTTP status, per spec.md §7's
// error-kind list, and falls back to 500 for anything unrecognized.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, cratecerr.ErrNotFound), errors.Is(err, cratecerr.ErrUnknownInterface):
		status = http.StatusNotFound
	case errors.Is(err, cratecerr.ErrInvalidTopology),
		errors.Is(err, cratecerr.ErrNoDestination),
		errors.Is(err, cratecerr.ErrNoMountpoint),
		errors.Is(err, cratecerr.ErrInvalidPIN),
		errors.Is(err, cratecerr.ErrOutsideMountRoot):
		status = http.StatusBadRequest
	case errors.Is(err, cratecerr.ErrPINMismatch):
		status = http.StatusForbidden
	case errors.Is(err, cratecerr.ErrDatabaseBusy):
		status = http.StatusServiceUnavailable
	}

	var nonZero *cratecerr.EngineNonZero
	if errors.As(err, &nonZero) {
		status = http.StatusUnprocessableEntity
	}
	var parseErr *cratecerr.ParseError
	if errors.As(err, &parseErr) {
		status = http.StatusBadRequest
	}

	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return false
	}
	return true
}
