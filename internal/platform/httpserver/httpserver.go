package httpserver

import (
	"net/http"
	"time"

	"provisor/internal/platform/config"
)

// New builds an HTTP server with sane defaults for this project. The write
// timeout comes from config because it must outlast a synchronous
// provisioning run.
func New(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
