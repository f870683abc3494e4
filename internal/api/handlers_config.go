package api

import (
	"net/http"

	"github.com/cyber-rangers/cratec/internal/catalog"
)

func (s *Server) handleSaveEWFConfig(w http.ResponseWriter, r *http.Request) {
	var cfg catalog.EWFConfig
	if !decodeJSON(w, r, &cfg) {
		return
	}
	id, err := s.Store.SaveEWFConfig(r.Context(), cfg)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleSaveRawConfig(w http.ResponseWriter, r *http.Request) {
	var cfg catalog.RawConfig
	if !decodeJSON(w, r, &cfg) {
		return
	}
	id, err := s.Store.SaveRawConfig(r.Context(), cfg)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleGetAllActiveConfigs(w http.ResponseWriter, r *http.Request) {
	ewfConfigs, rawConfigs, err := s.Store.ListActiveConfigs(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ewf": ewfConfigs, "raw": rawConfigs})
}

func (s *Server) handleDeleteOrDeactivateConfig(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID      int64  `json:"id"`
		Variant string `json:"variant"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.Store.RetireConfig(r.Context(), req.Variant, req.ID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "retired"})
}

func (s *Server) handleGetConfigEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := queryInt64(w, r, "id")
	if !ok {
		return
	}
	variant := r.URL.Query().Get("variant")

	switch variant {
	case "ewf":
		cfg, err := s.Store.GetEWFConfig(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	case "raw":
		cfg, err := s.Store.GetRawConfig(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "variant must be 'ewf' or 'raw'"})
	}
}
