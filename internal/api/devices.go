package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/chuango-bridge/internal/device"
	"github.com/nerrad567/chuango-bridge/internal/fusion"
	"github.com/nerrad567/chuango-bridge/internal/manager"
	"github.com/nerrad567/chuango-bridge/internal/session"
)

// DeviceView is one hub as presented by the API.
type DeviceView struct {
	device.Device
	Name       string            `json:"name"`
	Available  bool              `json:"available"`
	PanelState device.PanelState `json:"panel_state"`
	Telemetry  device.Telemetry  `json:"telemetry"`
}

func newDeviceView(snap *fusion.Snapshot, id string) DeviceView {
	dev := snap.Devices[id]
	tel := snap.TelemetryFor(id)
	return DeviceView{
		Device:     dev,
		Name:       dev.DisplayName(),
		Available:  tel.Available(),
		PanelState: tel.PanelState(),
		Telemetry:  tel,
	}
}

// commandRequest is the request body for POST /devices/{id}/command.
type commandRequest struct {
	Command string `json:"command"`
}

// handleListDevices returns every known hub, sorted by id.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	snap := s.backend.Snapshot()
	ids := snap.DeviceIDs()
	views := make([]DeviceView, 0, len(ids))
	for _, id := range ids {
		views = append(views, newDeviceView(snap, id))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": views,
		"count":   len(views),
		"version": snap.Version,
	})
}

// handleGetDevice returns one hub.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap := s.backend.Snapshot()
	if _, ok := snap.Devices[id]; !ok {
		writeNotFound(w, "device not found")
		return
	}
	writeJSON(w, http.StatusOK, newDeviceView(snap, id))
}

// handleDeviceDiagnostics returns the MQTT session diagnostics of one hub.
func (s *Server) handleDeviceDiagnostics(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	diag, ok := s.backend.DeviceDiagnostics(id)
	if !ok {
		writeNotFound(w, "no session for device")
		return
	}
	writeJSON(w, http.StatusOK, diag)
}

// handleCommand arms or disarms one hub.
//
// The command is sent once; a hub that is not connected in time yields
// 503 and the caller decides whether to retry.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	cmd := device.Command(req.Command)
	if _, err := cmd.ModeCode(); err != nil {
		writeBadRequest(w, "command must be one of disarm, arm_home, arm_away")
		return
	}

	err := s.backend.Dispatch(r.Context(), id, cmd)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]any{
			"device_id": id,
			"command":   string(cmd),
			"status":    "sent",
		})
	case errors.Is(err, manager.ErrUnknownDevice):
		writeNotFound(w, "device not found")
	case errors.Is(err, session.ErrNotConnected), errors.Is(err, session.ErrConfig):
		writeUnavailable(w, err.Error())
	default:
		s.logger.Error("command dispatch failed", "device_id", id, "command", req.Command, "error", err)
		writeInternalError(w, "command dispatch failed")
	}
}
