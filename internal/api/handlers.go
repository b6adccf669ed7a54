package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pihub/pihub/internal/services/history"
	"github.com/pihub/pihub/internal/services/probe"
	"github.com/pihub/pihub/internal/services/registry"
)

func (s *Server) respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	s.respondJSON(w, status, map[string]interface{}{
		"ok":    false,
		"error": msg,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

// handleWake dispatches a wake request: by raw MAC when the mac field is
// set, otherwise by configured target name. Exactly one of the two fields
// must be present.
func (s *Server) handleWake(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Target string `json:"target"`
		MAC    string `json:"mac"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch {
	case req.Target != "" && req.MAC != "":
		s.respondError(w, http.StatusBadRequest, "specify either target or mac, not both")
	case req.MAC != "":
		s.wakeByMAC(w, r, req.MAC)
	case req.Target != "":
		s.wakeByName(w, r, req.Target)
	default:
		s.respondError(w, http.StatusBadRequest, "target or mac is required")
	}
}

func (s *Server) wakeByMAC(w http.ResponseWriter, r *http.Request, macStr string) {
	mac, err := net.ParseMAC(macStr)
	if err != nil || len(mac) != 6 {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid MAC address: %s", macStr))
		return
	}

	if err := s.wol.Send(r.Context(), mac); err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to send magic packet")
		return
	}

	// No target name means no history record to key by.
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      true,
		"message": fmt.Sprintf("magic packet sent to %s", mac),
	})
}

func (s *Server) wakeByName(w http.ResponseWriter, r *http.Request, name string) {
	mac, err := s.registry.Resolve(name)
	if err != nil {
		if errors.Is(err, registry.ErrUnknownTarget) {
			s.respondError(w, http.StatusBadRequest, fmt.Sprintf("unknown target: %s", name))
			return
		}
		s.respondError(w, http.StatusInternalServerError, "target lookup failed")
		return
	}

	if err := s.wol.Send(r.Context(), mac); err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to send magic packet")
		return
	}

	s.history.Record(strings.ToLower(name), time.Now().UTC())

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      true,
		"message": fmt.Sprintf("magic packet sent to %s (%s)", name, mac),
	})
}

func (s *Server) handleLastWake(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	rec, err := s.history.Lookup(strings.ToLower(name))
	if err != nil {
		if errors.Is(err, history.ErrNoHistory) {
			s.respondError(w, http.StatusNotFound, fmt.Sprintf("no wake recorded for %s", name))
			return
		}
		s.respondError(w, http.StatusInternalServerError, "history lookup failed")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"ok":        true,
		"target":    rec.TargetName,
		"last_wake": rec.LastWake.Format(time.RFC3339),
	})
}

func (s *Server) handleTargetStatus(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	target, err := s.registry.Get(name)
	if err != nil {
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("unknown target: %s", name))
		return
	}

	result, err := s.probe.Check(r.Context(), target)
	if err != nil {
		if errors.Is(err, probe.ErrNotProbeable) {
			s.respondError(w, http.StatusBadRequest, fmt.Sprintf("target %s has no host configured", name))
			return
		}
		s.respondError(w, http.StatusInternalServerError, "probe failed")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"ok":     true,
		"target": target.Name,
		"awake":  result.Awake,
	})
}

func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Target string `json:"target"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Target == "" {
		s.respondError(w, http.StatusBadRequest, "target is required")
		return
	}

	target, err := s.registry.Get(req.Target)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("unknown target: %s", req.Target))
		return
	}
	if target.SSH == nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("target %s has no ssh configured", req.Target))
		return
	}

	if err := s.ssh.Shutdown(r.Context(), *target.SSH); err != nil {
		s.respondError(w, http.StatusInternalServerError, "shutdown failed")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      true,
		"message": fmt.Sprintf("shutdown initiated for %s", target.Name),
	})
}

func (s *Server) handleTVStatus(w http.ResponseWriter, r *http.Request) {
	state := s.cec.Status(r.Context())

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      true,
		"message": state.String(),
	})
}

func (s *Server) handleTVOn(w http.ResponseWriter, r *http.Request) {
	if err := s.cec.TurnOn(r.Context()); err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to turn TV on")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      true,
		"message": "TV turned on",
	})
}

func (s *Server) handleTVOff(w http.ResponseWriter, r *http.Request) {
	if err := s.cec.TurnOff(r.Context()); err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to turn TV off")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      true,
		"message": "TV turned off",
	})
}
