// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

// Serve accepts connections on ln until ctx ends or the listener fails.
// On shutdown it calls stopSessions first, so that open event streams
// receive a terminal event and return, then shuts srv down within timeout.
func Serve(ctx context.Context, srv *http.Server, ln net.Listener, stopSessions func(), timeout time.Duration) error {
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		if stopSessions != nil {
			stopSessions()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	if stopSessions != nil {
		stopSessions()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-serveErr; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
