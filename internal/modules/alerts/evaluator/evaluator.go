// Package evaluator runs stored readings through the alert rules: match,
// cooldown gate, condition check, trigger claim, dispatch, history.
package evaluator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gameguyr/tempest/internal/metrics"
	"github.com/gameguyr/tempest/internal/modules/alerts/repository"
	"github.com/gameguyr/tempest/internal/modules/alerts/types"
	weathertypes "github.com/gameguyr/tempest/internal/modules/weather/types"
	"github.com/gameguyr/tempest/internal/notify"
)

// Result labels one alert evaluation.
type Result string

const (
	ResultCooldown  Result = "cooldown"
	ResultNoValue   Result = "no_value"
	ResultNotMet    Result = "not_met"
	ResultTriggered Result = "triggered"
	ResultLostRace  Result = "lost_race"
	ResultError     Result = "error"
)

// dispatchTimeout bounds notification delivery once a trigger is claimed.
const dispatchTimeout = 30 * time.Second

type Notifier interface {
	Dispatch(ctx context.Context, alert types.Alert, reading weathertypes.Reading, actual float64) notify.Outcome
}

type Evaluator struct {
	alerts   repository.AlertRepository
	history  repository.HistoryRepository
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

func New(alerts repository.AlertRepository, history repository.HistoryRepository, notifier Notifier, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		alerts:   alerts,
		history:  history,
		notifier: notifier,
		logger:   logger.With("component", "alerts"),
		now:      time.Now,
	}
}

// EvaluateReading checks every enabled alert that applies to the reading's
// station. Each alert is handled independently; failures are joined.
func (e *Evaluator) EvaluateReading(ctx context.Context, reading weathertypes.Reading) error {
	alerts, err := e.matching(ctx, reading.StationID)
	if err != nil {
		return err
	}

	var errs []error
	for _, a := range alerts {
		res, err := e.evaluate(ctx, a, reading)
		metrics.AlertEvaluationsTotal.WithLabelValues(string(res)).Inc()
		if err != nil {
			e.logger.Error("alert evaluation failed", "alert_id", a.ID, "station_id", reading.StationID, "error", err)
			errs = append(errs, fmt.Errorf("alert %d: %w", a.ID, err))
		}
	}
	return errors.Join(errs...)
}

// matching returns station-scoped alerts first, then global ones.
func (e *Evaluator) matching(ctx context.Context, stationID string) ([]types.Alert, error) {
	scoped, err := e.alerts.FindByStation(ctx, stationID)
	if err != nil {
		return nil, fmt.Errorf("find alerts for station %q: %w", stationID, err)
	}
	global, err := e.alerts.FindGlobal(ctx)
	if err != nil {
		return nil, fmt.Errorf("find global alerts: %w", err)
	}
	return append(scoped, global...), nil
}

func (e *Evaluator) evaluate(ctx context.Context, a types.Alert, reading weathertypes.Reading) (Result, error) {
	now := e.now().UTC()
	if a.InCooldown(now) {
		return ResultCooldown, nil
	}

	value := a.Metric.Value(reading)
	if value == nil {
		return ResultNoValue, nil
	}
	actual := *value
	if !a.Operator.Evaluate(actual, a.Threshold) {
		return ResultNotMet, nil
	}

	claimed, err := e.alerts.ClaimTrigger(ctx, a.ID, a.LastTriggeredAt, now)
	if err != nil {
		return ResultError, err
	}
	if !claimed {
		e.logger.Debug("alert already triggered elsewhere", "alert_id", a.ID)
		return ResultLostRace, nil
	}

	e.logger.Info("alert triggered",
		"alert_id", a.ID,
		"alert", a.Name,
		"station_id", reading.StationID,
		"metric", a.Metric,
		"actual", actual,
		"threshold", a.Threshold,
	)

	// The claim is committed. Dispatch and history outlive the caller.
	detached := context.WithoutCancel(ctx)
	dispatchCtx, cancel := context.WithTimeout(detached, dispatchTimeout)
	out := e.notifier.Dispatch(dispatchCtx, a, reading, actual)
	cancel()

	event := types.TriggerEvent{
		AlertID:            a.ID,
		AlertName:          a.Name,
		StationID:          reading.StationID,
		Metric:             a.Metric,
		Operator:           a.Operator,
		ActualValue:        actual,
		ThresholdValue:     a.Threshold,
		NotificationSent:   out.Delivered(),
		NotificationStatus: out.Status,
		EmailSent:          out.EmailSent,
		SMSSent:            out.SMSSent,
		TriggeredAt:        now,
	}
	if reading.ID != 0 {
		id := reading.ID
		event.ReadingID = &id
	}
	if out.Err != nil {
		event.NotificationError = out.Err.Error()
	}

	if _, err := e.history.Append(detached, event); err != nil {
		return ResultError, err
	}
	return ResultTriggered, nil
}
