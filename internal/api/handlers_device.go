package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/cyber-rangers/cratec/internal/broadcast"
	"github.com/cyber-rangers/cratec/internal/cratecerr"
	"github.com/cyber-rangers/cratec/internal/device"
)

func (s *Server) handleGetDeviceStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.BuildDeviceStatus(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// BuildDeviceStatus assembles the same payload the Status websocket frame
// carries, so get_device_status and the broadcast bus's status producer
// agree on shape. Exported so cmd/server can pass it directly as the
// broadcast bus's StatusSource.
func (s *Server) BuildDeviceStatus(ctx context.Context) (broadcast.DeviceStatus, error) {
	raw, err := device.EnumerateDisks(ctx)
	if err != nil {
		return broadcast.DeviceStatus{}, fmt.Errorf("api: enumerate disks: %w", err)
	}
	disks := device.DedupeBySerial(raw)

	ifaces, err := s.Store.ListInterfaces(ctx, "")
	if err != nil {
		return broadcast.DeviceStatus{}, err
	}

	present := make(map[string]string, len(disks))
	for _, d := range disks {
		if d.TopologyPath != "" {
			present[d.TopologyPath] = d.DevNode
		}
	}

	slots := make([]broadcast.DeviceSlot, 0, len(ifaces))
	for _, iface := range ifaces {
		devNode, ok := present[iface.StablePath]
		slots = append(slots, broadcast.DeviceSlot{
			StablePath: iface.StablePath,
			Side:       string(iface.Side),
			Label:      iface.Label,
			Present:    ok,
			DevNode:    devNode,
		})
	}

	snap := s.Sampler.Snapshot()
	return broadcast.DeviceStatus{
		CPUPercent:    snap.CPUPercent,
		MemUsedBytes:  snap.MemUsedBytes,
		MemTotalBytes: snap.MemTotalBytes,
		SampledAt:     snap.SampledAt,
		Interfaces:    slots,
	}, nil
}

func (s *Server) handleGetLsblkJSON(w http.ResponseWriter, r *http.Request) {
	devNode := r.URL.Query().Get("device")
	if devNode == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing query parameter device"})
		return
	}
	raw, err := device.GetLsblkJSON(r.Context(), devNode)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(raw))
}

func (s *Server) handleGetDiskInfo(w http.ResponseWriter, r *http.Request) {
	stablePath := r.URL.Query().Get("device")
	if stablePath == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing query parameter device"})
		return
	}
	fact, err := device.GetDiskInfo(r.Context(), s.EscalationTool, stablePath)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fact)
}

// directoryEntry is the JSON shape returned by get_directory_contents.
type directoryEntry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size"`
}

func (s *Server) handleGetDirectoryContents(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		path = s.MountRoot
	}

	resolved, err := resolveWithinMountRoot(s.MountRoot, path)
	if err != nil {
		writeError(w, err)
		return
	}

	entries, err := os.ReadDir(resolved)
	if err != nil {
		writeError(w, fmt.Errorf("api: read directory %s: %w", resolved, err))
		return
	}

	out := make([]directoryEntry, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		var size int64
		if err == nil {
			size = info.Size()
		}
		out = append(out, directoryEntry{Name: e.Name(), IsDir: e.IsDir(), Size: size})
	}
	writeJSON(w, http.StatusOK, out)
}

// resolveWithinMountRoot cleans path and rejects it unless it is
// mountRoot itself or a descendant of it, per spec.md §8's authorization
// boundary invariant (Testable Property 10).
func resolveWithinMountRoot(mountRoot, path string) (string, error) {
	cleanRoot := filepath.Clean(mountRoot)
	cleanPath := filepath.Clean(path)

	if cleanPath != cleanRoot && !strings.HasPrefix(cleanPath, cleanRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", cratecerr.ErrOutsideMountRoot, path)
	}
	return cleanPath, nil
}
