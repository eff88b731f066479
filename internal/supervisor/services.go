// ICSWatch - ICS Network Traffic Replay and Threat Classification
// Copyright 2026 ICSWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/icswatch/icswatch

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ContextService matches components whose Serve already follows the
// suture pattern: run until the context is canceled, then return ctx.Err().
// Satisfied by *replay.Controller and, via RunWithContext, *websocket.Hub.
type ContextService interface {
	Serve(ctx context.Context) error
}

// NamedService wraps a ContextService with a name for supervisor logging.
type NamedService struct {
	svc  ContextService
	name string
}

// NewNamedService wraps svc so suture logs it under the given name.
func NewNamedService(name string, svc ContextService) *NamedService {
	return &NamedService{svc: svc, name: name}
}

// Serve implements suture.Service.
func (n *NamedService) Serve(ctx context.Context) error {
	return n.svc.Serve(ctx)
}

// String implements fmt.Stringer for supervisor log messages.
func (n *NamedService) String() string {
	return n.name
}

// hubRunner adapts the websocket hub's RunWithContext to ContextService.
type hubRunner struct {
	run func(ctx context.Context) error
}

func (h hubRunner) Serve(ctx context.Context) error { return h.run(ctx) }

// NewHubService wraps the websocket hub's RunWithContext as a supervised
// service.
func NewHubService(run func(ctx context.Context) error) *NamedService {
	return NewNamedService("websocket-hub", hubRunner{run: run})
}

// HTTPServer matches *http.Server's lifecycle methods.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPServerService bridges http.Server's blocking ListenAndServe to
// suture's context-aware Serve: the server runs in a goroutine and a
// canceled context triggers graceful Shutdown.
type HTTPServerService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
}

// NewHTTPServerService creates the HTTP server service wrapper.
func NewHTTPServerService(server HTTPServer, shutdownTimeout time.Duration) *HTTPServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPServerService{
		server:          server,
		shutdownTimeout: shutdownTimeout,
	}
}

// Serve implements suture.Service. http.ErrServerClosed is converted to
// nil since it is expected on shutdown.
func (h *HTTPServerService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil

	case <-ctx.Done():
		// The original context is canceled, so shutdown gets its own.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()

		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

// String implements fmt.Stringer for supervisor log messages.
func (h *HTTPServerService) String() string {
	return "http-server"
}
