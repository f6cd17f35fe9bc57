package httpserver

import (
	"net/http"
	"time"
)

// New builds the API server. ReadHeaderTimeout bounds slow-header clients
// before they reach the rate limiter.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
