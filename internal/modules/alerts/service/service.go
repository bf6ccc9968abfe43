package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/gameguyr/tempest/internal/modules/alerts/repository"
	"github.com/gameguyr/tempest/internal/modules/alerts/types"
)

// RecentHistoryLimit caps the recent-history feed.
const RecentHistoryLimit = 100

var (
	emailPattern = regexp.MustCompile(`^[A-Za-z0-9+_.-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	phonePattern = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)
)

// ValidationError rejects one field of an alert definition.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// StationChecker is the slice of the weather store alert validation needs.
type StationChecker interface {
	StationExists(ctx context.Context, id string) (bool, error)
}

// AlertInput is a create or update request. Nil fields are left at their
// default on create and unchanged on update.
type AlertInput struct {
	Name             *string                 `json:"name" yaml:"name"`
	Description      *string                 `json:"description" yaml:"description"`
	StationID        *string                 `json:"stationId" yaml:"stationId"`
	Metric           *types.Metric           `json:"metric" yaml:"metric"`
	Operator         *types.Operator         `json:"operator" yaml:"operator"`
	Threshold        *float64                `json:"threshold" yaml:"threshold"`
	NotificationType *types.NotificationType `json:"notificationType" yaml:"notificationType"`
	UserEmail        *string                 `json:"userEmail" yaml:"userEmail"`
	UserPhone        *string                 `json:"userPhone" yaml:"userPhone"`
	Enabled          *bool                   `json:"enabled" yaml:"enabled"`
	CooldownMinutes  *int                    `json:"cooldownMinutes" yaml:"cooldownMinutes"`
}

type Service struct {
	alerts   repository.AlertRepository
	history  repository.HistoryRepository
	stations StationChecker
	logger   *slog.Logger
}

func NewService(alerts repository.AlertRepository, history repository.HistoryRepository, stations StationChecker, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		alerts:   alerts,
		history:  history,
		stations: stations,
		logger:   logger.With("component", "alerts"),
	}
}

func (s *Service) Create(ctx context.Context, in AlertInput) (types.Alert, error) {
	a := types.Alert{
		NotificationType: types.NotifyEmail,
		Enabled:          true,
		CooldownMinutes:  types.DefaultCooldownMinutes,
	}
	var missing error
	if in.Threshold == nil {
		missing = &ValidationError{Field: "threshold", Message: "is required"}
	}
	apply(&a, in)
	if err := errors.Join(missing, s.validate(ctx, a)); err != nil {
		return types.Alert{}, err
	}

	created, err := s.alerts.Create(ctx, a)
	if err != nil {
		return types.Alert{}, err
	}
	s.logger.Info("alert created", "alert_id", created.ID, "alert", created.Name, "station", created.StationLabel())
	return created, nil
}

func (s *Service) Update(ctx context.Context, id int64, in AlertInput) (types.Alert, error) {
	a, err := s.alerts.Get(ctx, id)
	if err != nil {
		return types.Alert{}, err
	}
	apply(&a, in)
	if err := s.validate(ctx, a); err != nil {
		return types.Alert{}, err
	}

	updated, err := s.alerts.Update(ctx, a)
	if err != nil {
		return types.Alert{}, err
	}
	s.logger.Info("alert updated", "alert_id", id)
	return updated, nil
}

// Toggle sets the enabled flag, or flips it when enabled is nil.
func (s *Service) Toggle(ctx context.Context, id int64, enabled *bool) (types.Alert, error) {
	target := false
	if enabled != nil {
		target = *enabled
	} else {
		a, err := s.alerts.Get(ctx, id)
		if err != nil {
			return types.Alert{}, err
		}
		target = !a.Enabled
	}

	a, err := s.alerts.SetEnabled(ctx, id, target)
	if err != nil {
		return types.Alert{}, err
	}
	s.logger.Info("alert toggled", "alert_id", id, "enabled", target)
	return a, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.alerts.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("alert deleted", "alert_id", id)
	return nil
}

func (s *Service) Get(ctx context.Context, id int64) (types.Alert, error) {
	return s.alerts.Get(ctx, id)
}

// List returns every alert, or only those owned by email when it is set.
func (s *Service) List(ctx context.Context, email string) ([]types.Alert, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return s.alerts.List(ctx)
	}
	return s.alerts.ListByEmail(ctx, email)
}

func (s *Service) NameExists(ctx context.Context, name string) (bool, error) {
	return s.alerts.NameExists(ctx, strings.TrimSpace(name))
}

// History pages through one alert's trigger events, newest first. Pages are 0-based.
func (s *Service) History(ctx context.Context, id int64, page, size int) (types.Page[types.TriggerEvent], error) {
	if _, err := s.alerts.Get(ctx, id); err != nil {
		return types.Page[types.TriggerEvent]{}, err
	}
	total, err := s.history.CountByAlert(ctx, id)
	if err != nil {
		return types.Page[types.TriggerEvent]{}, err
	}
	events, err := s.history.ListByAlert(ctx, id, size, page*size)
	if err != nil {
		return types.Page[types.TriggerEvent]{}, err
	}
	return types.NewPage(events, page, size, total), nil
}

func (s *Service) RecentHistory(ctx context.Context) ([]types.TriggerEvent, error) {
	return s.history.Recent(ctx, RecentHistoryLimit)
}

func apply(a *types.Alert, in AlertInput) {
	if in.Name != nil {
		a.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		a.Description = strings.TrimSpace(*in.Description)
	}
	if in.StationID != nil {
		if id := strings.TrimSpace(*in.StationID); id != "" {
			a.StationID = &id
		} else {
			a.StationID = nil
		}
	}
	if in.Metric != nil {
		a.Metric = types.Metric(strings.ToUpper(string(*in.Metric)))
	}
	if in.Operator != nil {
		a.Operator = types.Operator(strings.ToUpper(string(*in.Operator)))
	}
	if in.Threshold != nil {
		a.Threshold = *in.Threshold
	}
	if in.NotificationType != nil {
		a.NotificationType = types.NotificationType(strings.ToUpper(string(*in.NotificationType)))
	}
	if in.UserEmail != nil {
		a.UserEmail = strings.TrimSpace(*in.UserEmail)
	}
	if in.UserPhone != nil {
		a.UserPhone = strings.TrimSpace(*in.UserPhone)
	}
	if in.Enabled != nil {
		a.Enabled = *in.Enabled
	}
	if in.CooldownMinutes != nil {
		a.CooldownMinutes = *in.CooldownMinutes
	}
}

func (s *Service) validate(ctx context.Context, a types.Alert) error {
	var errs []error
	fail := func(field, msg string) {
		errs = append(errs, &ValidationError{Field: field, Message: msg})
	}

	if a.Name == "" {
		fail("name", "is required")
	}
	if !a.Metric.Valid() {
		fail("metric", fmt.Sprintf("unknown metric %q", a.Metric))
	}
	if !a.Operator.Valid() {
		fail("operator", fmt.Sprintf("unknown operator %q", a.Operator))
	}
	if !a.NotificationType.Valid() {
		fail("notificationType", fmt.Sprintf("unknown notification type %q", a.NotificationType))
	}
	if a.CooldownMinutes < 0 || a.CooldownMinutes > types.MaxCooldownMinutes {
		fail("cooldownMinutes", fmt.Sprintf("must be between 0 and %d", types.MaxCooldownMinutes))
	}
	if a.NotificationType.WantsEmail() && !emailPattern.MatchString(a.UserEmail) {
		fail("userEmail", "a valid email address is required for email notifications")
	}
	if a.NotificationType.WantsSMS() && !phonePattern.MatchString(a.UserPhone) {
		fail("userPhone", "an E.164 phone number is required for SMS notifications")
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	if !a.IsGlobal() && s.stations != nil {
		ok, err := s.stations.StationExists(ctx, *a.StationID)
		if err != nil {
			return err
		}
		if !ok {
			return &ValidationError{Field: "stationId", Message: fmt.Sprintf("station %q does not exist", *a.StationID)}
		}
	}
	return nil
}
