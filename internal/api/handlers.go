// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vurafps/Webpanel/internal/log"
	"github.com/vurafps/Webpanel/internal/ratelimit"
	"github.com/vurafps/Webpanel/internal/session/manager"
)

type loginRequest struct {
	Username string `json:"username"`
}

type startIdleRequest struct {
	Username string   `json:"username"`
	AppIDs   []string `json:"appIds"`
}

type usernameRequest struct {
	Username string `json:"username"`
}

const maxBodyBytes = 1 << 16

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, "invalid JSON body")
		return false
	}
	return true
}

// handleLogin starts the asynchronous login process. It answers 202 once
// the request is accepted; the outcome is polled via /login-status.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "api")

	if !s.loginLimiter.Allow(ratelimit.GetClientIP(r)) {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "too many login attempts"})
		return
	}

	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		writeError(w, "Username is required")
		return
	}

	err := s.orchestrator.BeginLogin(r.Context(), req.Username)
	switch {
	case errors.Is(err, manager.ErrDuplicateSession):
		writeConflict(w, "login already in progress or user logged in")
	case errors.Is(err, manager.ErrInvalidUsername):
		writeError(w, "invalid username")
	case err != nil:
		logger.Error().Err(err).Str(log.FieldUsername, req.Username).Msg("login initialization failed")
		writeInternalError(w, err)
	default:
		writeJSON(w, http.StatusAccepted, map[string]string{
			"message":  "Login process started",
			"username": req.Username,
		})
	}
}

// handleLoginStatus reports the polled login state. Unknown usernames get a
// not_found status, never an error.
func (s *Server) handleLoginStatus(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	view := s.orchestrator.Status(username)
	resp := map[string]any{
		"status":   view.Status,
		"username": view.Username,
	}
	if view.QRCode != "" {
		resp["qrCode"] = view.QRCode
	}
	if view.Error != "" {
		resp["error"] = view.Error
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleStartIdle validates and forwards the game list. IDs are trimmed,
// parsed, and non-numeric entries dropped; the request fails only when no
// valid ID remains.
func (s *Server) handleStartIdle(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "api")

	var req startIdleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Username == "" || len(req.AppIDs) == 0 {
		writeError(w, "Username and appIds array are required")
		return
	}

	gameIDs := make([]int, 0, len(req.AppIDs))
	for _, raw := range req.AppIDs {
		id, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || id <= 0 {
			continue
		}
		gameIDs = append(gameIDs, id)
	}
	if len(gameIDs) == 0 {
		writeError(w, "No valid app IDs provided")
		return
	}

	err := s.orchestrator.StartIdling(r.Context(), req.Username, gameIDs)
	switch {
	case errors.Is(err, manager.ErrNotLoggedIn):
		writeError(w, "User not logged in")
	case err != nil:
		logger.Error().Err(err).Str(log.FieldUsername, req.Username).Msg("start idle failed")
		writeInternalError(w, err)
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"message": fmt.Sprintf("Started idling %d games for %s", len(gameIDs), req.Username),
			"appIds":  gameIDs,
		})
	}
}

// handleStopIdle returns the session to the logged-in state.
func (s *Server) handleStopIdle(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "api")

	var req usernameRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Username == "" {
		writeError(w, "Username is required")
		return
	}

	err := s.orchestrator.StopIdling(r.Context(), req.Username)
	switch {
	case errors.Is(err, manager.ErrNotLoggedIn):
		writeError(w, "User not logged in")
	case errors.Is(err, manager.ErrNotIdling):
		writeError(w, "User not idling")
	case err != nil:
		logger.Error().Err(err).Str(log.FieldUsername, req.Username).Msg("stop idle failed")
		writeInternalError(w, err)
	default:
		writeJSON(w, http.StatusOK, map[string]string{
			"message": fmt.Sprintf("Stopped idling for %s", req.Username),
		})
	}
}

// handleIdleStatus never fails: unknown users read as logged out.
func (s *Server) handleIdleStatus(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	view := s.orchestrator.IdleStatus(username)
	writeJSON(w, http.StatusOK, map[string]any{
		"username":     view.Username,
		"loggedIn":     view.LoggedIn,
		"idling":       view.Idling,
		"currentGames": view.GameIDs,
	})
}

// handleLogout is best-effort: once a username is supplied this endpoint
// succeeds, and cleanup failures are logged rather than surfaced, so a user
// can always log in again.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req usernameRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Username == "" {
		writeError(w, "Username is required")
		return
	}

	s.orchestrator.EndSession(r.Context(), req.Username)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Logged out %s", req.Username),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	pending, active := s.orchestrator.Health()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"activeUsers":   active,
		"loginSessions": pending,
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
