package api

import (
	"errors"
	"net/http"

	"github.com/nerrad567/chuango-bridge/internal/cloud"
	"github.com/nerrad567/chuango-bridge/internal/directory"
)

// handleStatus reports account and directory health.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.backend.Status())
}

// handleSnapshot returns the whole fused snapshot.
func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.backend.Snapshot())
}

// handleDiagnostics returns the MQTT session diagnostics of every hub.
func (s *Server) handleDiagnostics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": s.backend.Diagnostics(),
	})
}

// handleRefresh fetches the shared devices now.
//
// A rejected login maps to 401 so callers can prompt for new
// credentials; other cloud failures map to 502.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	err := s.backend.Refresh(r.Context())
	switch {
	case err == nil:
		snap := s.backend.Snapshot()
		writeJSON(w, http.StatusOK, map[string]any{
			"devices": snap.DeviceIDs(),
			"version": snap.Version,
		})
	case errors.Is(err, cloud.ErrAuth):
		writeError(w, http.StatusUnauthorized, ErrCodeUpstream, "cloud rejected the account credentials")
	case errors.Is(err, directory.ErrNoSharedDevices):
		writeError(w, http.StatusBadGateway, ErrCodeUpstream, "account has no shared devices")
	default:
		s.logger.Warn("manual refresh failed", "error", err)
		writeError(w, http.StatusBadGateway, ErrCodeUpstream, "device list refresh failed")
	}
}
