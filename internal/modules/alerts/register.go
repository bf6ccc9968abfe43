package alerts

import (
	"log/slog"
	"net/http"

	"github.com/gameguyr/tempest/internal/modules/alerts/controller"
	"github.com/gameguyr/tempest/internal/modules/alerts/repository"
	"github.com/gameguyr/tempest/internal/modules/alerts/service"
)

// RegisterFeature mounts the alert management routes and returns the
// service for startup seeding.
func RegisterFeature(mux *http.ServeMux, alerts repository.AlertRepository, history repository.HistoryRepository, stations service.StationChecker, logger *slog.Logger) *service.Service {
	alertService := service.NewService(alerts, history, stations, logger)
	alertController := controller.NewAlertController(alertService, logger)
	alertController.RegisterRoutes(mux)
	return alertService
}
