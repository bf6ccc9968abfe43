package controller

import (
	"errors"
	"net/http"

	"github.com/gameguyr/tempest/internal/modules/alerts/repository"
	"github.com/gameguyr/tempest/internal/modules/alerts/service"
	"github.com/gameguyr/tempest/internal/utils"
)

func (c *alertControllerImpl) handleList(w http.ResponseWriter, r *http.Request) {
	alerts, err := c.service.List(r.Context(), r.URL.Query().Get("email"))
	if err != nil {
		c.writeServiceError(w, "list alerts", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, alerts)
}

func (c *alertControllerImpl) handleCreate(w http.ResponseWriter, r *http.Request) {
	var in service.AlertInput
	if err := utils.DecodeJSON(w, r, &in); err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	alert, err := c.service.Create(r.Context(), in)
	if err != nil {
		c.writeServiceError(w, "create alert", err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, alert)
}

func (c *alertControllerImpl) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	alert, err := c.service.Get(r.Context(), id)
	if err != nil {
		c.writeServiceError(w, "get alert", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, alert)
}

func (c *alertControllerImpl) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	var in service.AlertInput
	if err := utils.DecodeJSON(w, r, &in); err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	alert, err := c.service.Update(r.Context(), id, in)
	if err != nil {
		c.writeServiceError(w, "update alert", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, alert)
}

func (c *alertControllerImpl) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := c.service.Delete(r.Context(), id); err != nil {
		c.writeServiceError(w, "delete alert", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *alertControllerImpl) handleToggle(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	enabled, err := parseEnabled(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	alert, err := c.service.Toggle(r.Context(), id, enabled)
	if err != nil {
		c.writeServiceError(w, "toggle alert", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, alert)
}

func (c *alertControllerImpl) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	page, size, err := parsePageQuery(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	history, err := c.service.History(r.Context(), id, page, size)
	if err != nil {
		c.writeServiceError(w, "alert history", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, history)
}

func (c *alertControllerImpl) handleRecentHistory(w http.ResponseWriter, r *http.Request) {
	events, err := c.service.RecentHistory(r.Context())
	if err != nil {
		c.writeServiceError(w, "recent history", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, events)
}

func (c *alertControllerImpl) writeServiceError(w http.ResponseWriter, op string, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		utils.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrAlertNotFound):
		utils.WriteError(w, http.StatusNotFound, err.Error())
	default:
		c.logger.Error(op+" failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, op+" failed")
	}
}
