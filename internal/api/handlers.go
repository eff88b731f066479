// ICSWatch - ICS Network Traffic Replay and Threat Classification
// Copyright 2026 ICSWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/icswatch/icswatch

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	gorillaws "github.com/gorilla/websocket"

	"github.com/icswatch/icswatch/internal/auth"
	"github.com/icswatch/icswatch/internal/config"
	"github.com/icswatch/icswatch/internal/logging"
	"github.com/icswatch/icswatch/internal/replay"
	ws "github.com/icswatch/icswatch/internal/websocket"
)

// Handler holds the dependencies for all HTTP handlers.
type Handler struct {
	controller *replay.Controller
	hub        *ws.Hub
	cfg        *config.Config

	// Auth is optional; nil when AUTH_ENABLED=false.
	creds *auth.Credentials
	jwt   *auth.JWTManager
}

// NewHandler creates the handler set for the control API.
func NewHandler(controller *replay.Controller, hub *ws.Hub, cfg *config.Config) *Handler {
	h := &Handler{
		controller: controller,
		hub:        hub,
		cfg:        cfg,
	}
	if cfg != nil && cfg.Security.AuthEnabled {
		h.creds = auth.NewCredentials(&cfg.Security)
	}
	return h
}

// SetJWTManager attaches the JWT manager used by Login.
func (h *Handler) SetJWTManager(m *auth.JWTManager) {
	h.jwt = m
}

// Health reports liveness plus basic engine state.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	rw.Success(map[string]interface{}{
		"status":      "ok",
		"state":       h.controller.State().String(),
		"subscribers": h.hub.GetClientCount(),
	})
}

// Start begins or restarts playback.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if err := h.controller.Start(); err != nil {
		h.respondTransitionError(rw, err)
		return
	}
	rw.Success(h.controller.Status())
}

// Stop halts playback from any state.
func (h *Handler) Stop(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	h.controller.Stop()
	rw.Success(h.controller.Status())
}

// Pause suspends a running playback.
func (h *Handler) Pause(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if err := h.controller.Pause(); err != nil {
		h.respondTransitionError(rw, err)
		return
	}
	rw.Success(h.controller.Status())
}

// Resume continues a paused playback.
func (h *Handler) Resume(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if err := h.controller.Resume(); err != nil {
		h.respondTransitionError(rw, err)
		return
	}
	rw.Success(h.controller.Status())
}

// Reset clears the replay cursor, statistics, and sampling pool.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if err := h.controller.Reset(); err != nil {
		h.respondTransitionError(rw, err)
		return
	}
	rw.Success(h.controller.Status())
}

// SetSpeed adjusts the playback pace. Out-of-range values are clamped.
func (h *Handler) SetSpeed(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req SpeedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.BadRequest("invalid request body")
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		rw.ErrorWithDetails(http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
		return
	}

	applied := h.controller.SetPace(req.Speed)
	rw.Success(map[string]interface{}{
		"playback_speed": applied,
	})
}

// SetRandomMode toggles weighted random replay order.
func (h *Handler) SetRandomMode(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req RandomModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.BadRequest("invalid request body")
		return
	}

	h.controller.SetRandomMode(req.Enabled)
	rw.Success(map[string]interface{}{
		"random_mode": req.Enabled,
	})
}

// Status returns the engine status snapshot.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	rw.Success(h.controller.Status())
}

// Classifications returns recent verdicts, oldest first.
func (h *Handler) Classifications(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	req := ClassificationsRequest{Limit: getIntParam(r, "limit", 100)}
	if apiErr := validateRequest(&req); apiErr != nil {
		rw.ErrorWithDetails(http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
		return
	}

	rw.Success(h.controller.Recent(req.Limit))
}

// Timeline returns attack observations in the requested window, newest first.
func (h *Handler) Timeline(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	req := TimelineRequest{Minutes: getIntParam(r, "minutes", 60)}
	if apiErr := validateRequest(&req); apiErr != nil {
		rw.ErrorWithDetails(http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
		return
	}

	rw.Success(h.controller.Timeline(req.Minutes))
}

// NetworkGraph returns the device graph over the recent window.
func (h *Handler) NetworkGraph(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	rw.Success(h.controller.DeviceGraph())
}

// Login authenticates an operator and returns a JWT token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if h.creds == nil || h.jwt == nil {
		rw.Error(http.StatusForbidden, ErrCodeForbidden, "authentication is disabled")
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.BadRequest("invalid request body")
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		rw.ErrorWithDetails(http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
		return
	}

	if !h.creds.Verify(req.Username, req.Password) {
		logging.Ctx(r.Context()).Warn().Str("username", req.Username).Msg("rejected login attempt")
		rw.Unauthorized("invalid credentials")
		return
	}

	token, err := h.jwt.GenerateToken(req.Username, auth.RoleAdmin)
	if err != nil {
		logging.Error().Err(err).Msg("failed to generate token")
		rw.InternalError("failed to generate token")
		return
	}

	rw.Success(map[string]interface{}{
		"token":      token,
		"expires_at": time.Now().Add(h.cfg.Security.SessionTimeout).Format(time.RFC3339),
	})
}

// WebSocket upgrades the connection and registers a broadcast subscriber.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		logging.Warn().Msg("websocket connection rejected: hub not initialized")
		NewResponseWriter(w, r).Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "websocket service unavailable")
		return
	}

	upgrader := gorillaws.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error().Err(err).Msg("websocket upgrade error")
		return
	}

	client := ws.NewClient(h.hub, conn)
	h.hub.Register <- client
	client.Start()
}

// checkWebSocketOrigin validates connection origins against the configured
// CORS origins. Non-browser clients without an Origin header are allowed so
// operator tooling can subscribe.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if h.cfg == nil {
		return true
	}
	for _, allowed := range h.cfg.Server.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	logging.Warn().Str("origin", origin).Msg("websocket connection rejected from unauthorized origin")
	return false
}

// respondTransitionError maps controller errors to API responses.
func (h *Handler) respondTransitionError(rw *ResponseWriter, err error) {
	if errors.Is(err, replay.ErrInvalidStateTransition) {
		rw.Conflict(ErrCodeInvalidState, err.Error())
		return
	}
	rw.InternalError(err.Error())
}
