package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gameguyr/tempest/internal/metrics"
	"github.com/gameguyr/tempest/internal/modules/weather/repository"
	"github.com/gameguyr/tempest/internal/modules/weather/types"
)

var (
	ErrInvalidReading = errors.New("invalid reading")
	ErrInvalidStation = errors.New("invalid station")
)

const (
	SourceHTTP = "http"
	SourceMQTT = "mqtt"
)

// ReadingEvaluator runs alert rules against a stored reading.
type ReadingEvaluator interface {
	EvaluateReading(ctx context.Context, reading types.Reading) error
}

type Service struct {
	repository repository.WeatherRepository
	evaluator  ReadingEvaluator
	logger     *slog.Logger
	now        func() time.Time
}

func NewService(repository repository.WeatherRepository, evaluator ReadingEvaluator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repository: repository,
		evaluator:  evaluator,
		logger:     logger.With("component", "weather"),
		now:        time.Now,
	}
}

// Ingest validates and stores a reading, then evaluates alerts against it.
// Evaluation failures are logged only; the stored reading stands.
func (s *Service) Ingest(ctx context.Context, reading types.Reading, source string) (types.Reading, error) {
	if reading.Timestamp.IsZero() {
		reading.Timestamp = s.now()
	}
	if err := reading.Validate(); err != nil {
		metrics.ReadingsIngestedTotal.WithLabelValues(source, "invalid").Inc()
		return types.Reading{}, fmt.Errorf("%w: %v", ErrInvalidReading, err)
	}

	stored, err := s.repository.InsertReading(ctx, reading)
	if err != nil {
		status := "failed"
		if errors.Is(err, repository.ErrDuplicateReading) {
			status = "duplicate"
		}
		metrics.ReadingsIngestedTotal.WithLabelValues(source, status).Inc()
		return types.Reading{}, err
	}
	metrics.ReadingsIngestedTotal.WithLabelValues(source, "stored").Inc()

	s.logger.Debug("reading stored",
		"source", source,
		"station_id", stored.StationID,
		"reading_id", stored.ID,
		"timestamp", stored.Timestamp,
	)

	if s.evaluator != nil {
		if err := s.evaluator.EvaluateReading(ctx, stored); err != nil {
			s.logger.Error("alert evaluation failed",
				"station_id", stored.StationID,
				"reading_id", stored.ID,
				"error", err,
			)
		}
	}
	return stored, nil
}

// HandleTelemetry is the MQTT entry point.
func (s *Service) HandleTelemetry(ctx context.Context, telemetry types.Telemetry) error {
	_, err := s.Ingest(ctx, telemetry.Reading(), SourceMQTT)
	return err
}

// Stats aggregates the trailing window of hours for a known station.
func (s *Service) Stats(ctx context.Context, stationID string, hours int) (types.Stats, error) {
	if _, err := s.repository.GetStation(ctx, stationID); err != nil {
		return types.Stats{}, err
	}
	to := s.now().UTC()
	from := to.Add(-time.Duration(hours) * time.Hour)
	return s.repository.GetStats(ctx, stationID, from, to)
}

// StatsAll aggregates the trailing window of hours across every station.
func (s *Service) StatsAll(ctx context.Context, hours int) (types.Stats, error) {
	to := s.now().UTC()
	from := to.Add(-time.Duration(hours) * time.Hour)
	return s.repository.GetStatsAll(ctx, from, to)
}

// StationInput is the body of a station register or update request. Nil
// fields keep their current value on update.
type StationInput struct {
	ID        *string  `json:"id"`
	Name      *string  `json:"name"`
	Location  *string  `json:"location"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Altitude  *float64 `json:"altitude"`
	Active    *bool    `json:"active"`
	APIKey    *string  `json:"apiKey"`
}

func (in StationInput) apply(st *types.Station) {
	if in.Name != nil {
		st.Name = strings.TrimSpace(*in.Name)
	}
	if in.Location != nil {
		st.Location = strings.TrimSpace(*in.Location)
	}
	if in.Latitude != nil {
		st.Latitude = in.Latitude
	}
	if in.Longitude != nil {
		st.Longitude = in.Longitude
	}
	if in.Altitude != nil {
		st.Altitude = in.Altitude
	}
	if in.Active != nil {
		st.Active = *in.Active
	}
}

// RegisterStation creates a station ahead of its first reading. The name
// defaults to the id and an API key is generated unless one is supplied.
func (s *Service) RegisterStation(ctx context.Context, in StationInput) (types.Station, error) {
	st := types.Station{Active: true}
	if in.ID != nil {
		st.ID = strings.TrimSpace(*in.ID)
	}
	st.Name = st.ID
	in.apply(&st)
	if st.Name == "" {
		st.Name = st.ID
	}
	if err := st.Validate(); err != nil {
		return types.Station{}, fmt.Errorf("%w: %v", ErrInvalidStation, err)
	}

	st.APIKey = uuid.NewString()
	if in.APIKey != nil && strings.TrimSpace(*in.APIKey) != "" {
		st.APIKey = strings.TrimSpace(*in.APIKey)
	}

	created, err := s.repository.CreateStation(ctx, st)
	if err != nil {
		return types.Station{}, err
	}
	s.logger.Info("station registered", "station_id", created.ID, "name", created.Name)
	return created, nil
}

// UpdateStation merges in onto the stored station. The id cannot change.
func (s *Service) UpdateStation(ctx context.Context, id string, in StationInput) (types.Station, error) {
	st, err := s.repository.GetStation(ctx, id)
	if err != nil {
		return types.Station{}, err
	}
	if in.ID != nil && strings.TrimSpace(*in.ID) != id {
		return types.Station{}, fmt.Errorf("%w: id cannot be changed", ErrInvalidStation)
	}
	in.apply(&st)
	if err := st.Validate(); err != nil {
		return types.Station{}, fmt.Errorf("%w: %v", ErrInvalidStation, err)
	}

	updated, err := s.repository.UpdateStation(ctx, st)
	if err != nil {
		return types.Station{}, err
	}
	s.logger.Info("station updated", "station_id", updated.ID, "active", updated.Active)
	return updated, nil
}
