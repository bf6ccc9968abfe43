package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gameguyr/tempest/internal/config"
)

func NewServer(cfg config.Config, mux *http.ServeMux, logger *slog.Logger) *http.Server {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "http")
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           Chain(mux, requestID, requestLogger(logger), recovery(logger)),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
}
