package controller

import (
	"errors"
	"net/http"

	"github.com/gameguyr/tempest/internal/modules/weather/repository"
	"github.com/gameguyr/tempest/internal/modules/weather/service"
	"github.com/gameguyr/tempest/internal/modules/weather/types"
	"github.com/gameguyr/tempest/internal/utils"
)

func (c *weatherControllerImpl) handleIngest(w http.ResponseWriter, r *http.Request) {
	var reading types.Reading
	if err := utils.DecodeJSON(w, r, &reading); err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	reading.ID = 0

	stored, err := c.service.Ingest(r.Context(), reading, service.SourceHTTP)
	switch {
	case err == nil:
		utils.WriteJSON(w, http.StatusCreated, stored)
	case errors.Is(err, service.ErrInvalidReading):
		utils.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrDuplicateReading):
		utils.WriteError(w, http.StatusConflict, err.Error())
	default:
		c.logger.Error("ingest reading failed", "station_id", reading.StationID, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to store reading")
	}
}

func (c *weatherControllerImpl) handleStations(w http.ResponseWriter, r *http.Request) {
	stations, err := c.repository.GetStations(r.Context())
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.WriteJSON(w, http.StatusOK, stations)
}

func (c *weatherControllerImpl) handleActiveStations(w http.ResponseWriter, r *http.Request) {
	stations, err := c.repository.GetActiveStations(r.Context())
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.WriteJSON(w, http.StatusOK, stations)
}

func (c *weatherControllerImpl) handleStation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		utils.WriteError(w, http.StatusBadRequest, "missing station id")
		return
	}

	station, err := c.repository.GetStation(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrStationNotFound) {
			utils.WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		utils.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.WriteJSON(w, http.StatusOK, station)
}

func (c *weatherControllerImpl) handleRegisterStation(w http.ResponseWriter, r *http.Request) {
	var in service.StationInput
	if err := utils.DecodeJSON(w, r, &in); err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	station, err := c.service.RegisterStation(r.Context(), in)
	switch {
	case err == nil:
		utils.WriteJSON(w, http.StatusCreated, station)
	case errors.Is(err, service.ErrInvalidStation):
		utils.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrStationExists):
		utils.WriteError(w, http.StatusConflict, err.Error())
	default:
		c.logger.Error("register station failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to register station")
	}
}

func (c *weatherControllerImpl) handleUpdateStation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		utils.WriteError(w, http.StatusBadRequest, "missing station id")
		return
	}

	var in service.StationInput
	if err := utils.DecodeJSON(w, r, &in); err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	station, err := c.service.UpdateStation(r.Context(), id, in)
	switch {
	case err == nil:
		utils.WriteJSON(w, http.StatusOK, station)
	case errors.Is(err, service.ErrInvalidStation):
		utils.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrStationNotFound):
		utils.WriteError(w, http.StatusNotFound, err.Error())
	default:
		c.logger.Error("update station failed", "station_id", id, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to update station")
	}
}

func (c *weatherControllerImpl) handleLatestAll(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLatestAllQuery(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	latest, err := c.repository.GetLatestReadingsAll(r.Context(), limit)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.WriteJSON(w, http.StatusOK, latest)
}

func (c *weatherControllerImpl) handleStatsAll(w http.ResponseWriter, r *http.Request) {
	hours, err := parseStatsQuery(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	stats, err := c.service.StatsAll(r.Context(), hours)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.WriteJSON(w, http.StatusOK, stats)
}

func (c *weatherControllerImpl) handleLatest(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		utils.WriteError(w, http.StatusBadRequest, "missing station id")
		return
	}

	limit, err := parseLatestQuery(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	latest, err := c.repository.GetLatestReadings(r.Context(), id, limit)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.WriteJSON(w, http.StatusOK, latest)
}

func (c *weatherControllerImpl) handleReadings(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		utils.WriteError(w, http.StatusBadRequest, "missing station id")
		return
	}

	from, to, limit, err := parseReadingsQuery(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	readings, err := c.repository.GetReadings(r.Context(), id, from, to, limit, 0)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.WriteJSON(w, http.StatusOK, readings)
}

func (c *weatherControllerImpl) handleStats(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		utils.WriteError(w, http.StatusBadRequest, "missing station id")
		return
	}

	hours, err := parseStatsQuery(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	stats, err := c.service.Stats(r.Context(), id, hours)
	if err != nil {
		if errors.Is(err, repository.ErrStationNotFound) {
			utils.WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		utils.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.WriteJSON(w, http.StatusOK, stats)
}
