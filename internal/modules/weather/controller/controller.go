package controller

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gameguyr/tempest/internal/modules/weather/repository"
	"github.com/gameguyr/tempest/internal/modules/weather/service"
	"github.com/gameguyr/tempest/internal/modules/weather/types"
)

type WeatherController interface {
	RegisterRoutes(mux *http.ServeMux)
}

// ReadingService is the write and aggregate side used by the controller.
type ReadingService interface {
	Ingest(ctx context.Context, reading types.Reading, source string) (types.Reading, error)
	Stats(ctx context.Context, stationID string, hours int) (types.Stats, error)
	StatsAll(ctx context.Context, hours int) (types.Stats, error)
	RegisterStation(ctx context.Context, in service.StationInput) (types.Station, error)
	UpdateStation(ctx context.Context, id string, in service.StationInput) (types.Station, error)
}

type weatherControllerImpl struct {
	repository repository.WeatherRepository
	service    ReadingService
	logger     *slog.Logger
}

func NewWeatherController(repository repository.WeatherRepository, service ReadingService, logger *slog.Logger) WeatherController {
	if logger == nil {
		logger = slog.Default()
	}
	return &weatherControllerImpl{repository: repository, service: service, logger: logger}
}

func (c *weatherControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/readings", c.handleIngest)
	mux.HandleFunc("GET /api/v1/readings/latest", c.handleLatestAll)
	mux.HandleFunc("GET /api/v1/stats", c.handleStatsAll)

	mux.HandleFunc("GET /api/v1/stations", c.handleStations)
	mux.HandleFunc("POST /api/v1/stations", c.handleRegisterStation)
	mux.HandleFunc("GET /api/v1/stations/active", c.handleActiveStations)
	mux.HandleFunc("GET /api/v1/stations/{id}", c.handleStation)
	mux.HandleFunc("PUT /api/v1/stations/{id}", c.handleUpdateStation)
	mux.HandleFunc("GET /api/v1/stations/{id}/latest", c.handleLatest)
	mux.HandleFunc("GET /api/v1/stations/{id}/readings", c.handleReadings)
	mux.HandleFunc("GET /api/v1/stations/{id}/stats", c.handleStats)
}
