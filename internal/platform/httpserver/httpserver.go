// Package httpserver builds the dashboard API server with timeouts set.
package httpserver

import (
	"net/http"
	"time"
)

// New returns an HTTP server for the given handler. Mutation endpoints
// run transactional work, so the write timeout leaves headroom over the
// executor's transaction deadline.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
