package controller

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gameguyr/tempest/internal/modules/alerts/service"
	"github.com/gameguyr/tempest/internal/modules/alerts/types"
)

type AlertController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type AlertService interface {
	Create(ctx context.Context, in service.AlertInput) (types.Alert, error)
	Update(ctx context.Context, id int64, in service.AlertInput) (types.Alert, error)
	Toggle(ctx context.Context, id int64, enabled *bool) (types.Alert, error)
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (types.Alert, error)
	List(ctx context.Context, email string) ([]types.Alert, error)
	History(ctx context.Context, id int64, page, size int) (types.Page[types.TriggerEvent], error)
	RecentHistory(ctx context.Context) ([]types.TriggerEvent, error)
}

type alertControllerImpl struct {
	service AlertService
	logger  *slog.Logger
}

func NewAlertController(service AlertService, logger *slog.Logger) AlertController {
	if logger == nil {
		logger = slog.Default()
	}
	return &alertControllerImpl{service: service, logger: logger}
}

func (c *alertControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/alerts", c.handleList)
	mux.HandleFunc("POST /api/v1/alerts", c.handleCreate)
	mux.HandleFunc("GET /api/v1/alerts/history/recent", c.handleRecentHistory)
	mux.HandleFunc("GET /api/v1/alerts/{id}", c.handleGet)
	mux.HandleFunc("PUT /api/v1/alerts/{id}", c.handleUpdate)
	mux.HandleFunc("DELETE /api/v1/alerts/{id}", c.handleDelete)
	mux.HandleFunc("POST /api/v1/alerts/{id}/toggle", c.handleToggle)
	mux.HandleFunc("GET /api/v1/alerts/{id}/history", c.handleHistory)
}
