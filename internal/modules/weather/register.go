package weather

import (
	"log/slog"
	"net/http"

	"github.com/gameguyr/tempest/internal/modules/weather/controller"
	"github.com/gameguyr/tempest/internal/modules/weather/repository"
	"github.com/gameguyr/tempest/internal/modules/weather/service"
)

// RegisterFeature mounts the weather routes and returns the ingest service
// so other transports (MQTT) share the same pipeline.
func RegisterFeature(mux *http.ServeMux, repo repository.WeatherRepository, evaluator service.ReadingEvaluator, logger *slog.Logger) *service.Service {
	weatherService := service.NewService(repo, evaluator, logger)
	weatherController := controller.NewWeatherController(repo, weatherService, logger)
	weatherController.RegisterRoutes(mux)
	return weatherService
}
