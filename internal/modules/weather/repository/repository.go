package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/gameguyr/tempest/internal/db"
	"github.com/gameguyr/tempest/internal/modules/weather/types"
)

//go:embed sql/get-stations.sql
var getStationsSQL string

//go:embed sql/get-station.sql
var getStationSQL string

//go:embed sql/get-active-stations.sql
var getActiveStationsSQL string

//go:embed sql/insert-station.sql
var insertStationSQL string

//go:embed sql/update-station.sql
var updateStationSQL string

//go:embed sql/station-exists.sql
var stationExistsSQL string

//go:embed sql/upsert-station.sql
var upsertStationSQL string

//go:embed sql/insert-reading.sql
var insertReadingSQL string

//go:embed sql/get-latest-readings.sql
var getLatestReadingsSQL string

//go:embed sql/get-latest-readings-all.sql
var getLatestReadingsAllSQL string

//go:embed sql/get-readings.sql
var getReadingsSQL string

//go:embed sql/get-readings-count.sql
var getReadingsCountSQL string

//go:embed sql/get-readings-since.sql
var getReadingsSinceSQL string

//go:embed sql/get-stats.sql
var getStatsSQL string

//go:embed sql/get-stats-all.sql
var getStatsAllSQL string

var (
	ErrStationNotFound  = errors.New("station not found")
	ErrStationExists    = errors.New("station already exists")
	ErrDuplicateReading = errors.New("reading already exists for station and timestamp")
)

type WeatherRepository interface {
	GetStations(ctx context.Context) ([]types.Station, error)
	GetActiveStations(ctx context.Context) ([]types.Station, error)
	GetStation(ctx context.Context, id string) (types.Station, error)
	StationExists(ctx context.Context, id string) (bool, error)
	// CreateStation registers s with its API key. It fails with
	// ErrStationExists when the id is taken.
	CreateStation(ctx context.Context, s types.Station) (types.Station, error)
	// UpdateStation overwrites the editable fields of an existing station.
	UpdateStation(ctx context.Context, s types.Station) (types.Station, error)
	// InsertReading stores r, creating its station on first sight and
	// touching the station's last-seen time. The stored reading carries its ID.
	InsertReading(ctx context.Context, r types.Reading) (types.Reading, error)
	GetLatestReadings(ctx context.Context, stationID string, limit int) ([]types.Reading, error)
	GetLatestReadingsAll(ctx context.Context, limit int) ([]types.Reading, error)
	GetReadings(ctx context.Context, stationID string, from, to time.Time, limit, offset int) ([]types.Reading, error)
	GetReadingsCount(ctx context.Context, stationID string, from, to time.Time) (int, error)
	GetReadingsSince(ctx context.Context, since time.Time) ([]types.Reading, error)
	GetStats(ctx context.Context, stationID string, from, to time.Time) (types.Stats, error)
	GetStatsAll(ctx context.Context, from, to time.Time) (types.Stats, error)
}

type repositoryImpl struct {
	db  *sql.DB
	now func() time.Time
}

func NewRepository(db *sql.DB) WeatherRepository {
	return &repositoryImpl{db: db, now: time.Now}
}

func (r *repositoryImpl) GetStations(ctx context.Context) ([]types.Station, error) {
	return r.queryStations(ctx, getStationsSQL)
}

func (r *repositoryImpl) GetActiveStations(ctx context.Context) ([]types.Station, error) {
	return r.queryStations(ctx, getActiveStationsSQL)
}

func (r *repositoryImpl) queryStations(ctx context.Context, query string) ([]types.Station, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query stations: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close stations rows", "error", err)
		}
	}()

	out := []types.Station{}
	for rows.Next() {
		s, err := scanStation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *repositoryImpl) GetStation(ctx context.Context, id string) (types.Station, error) {
	s, err := scanStation(r.db.QueryRowContext(ctx, getStationSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return types.Station{}, fmt.Errorf("%w: %q", ErrStationNotFound, id)
	}
	return s, err
}

func (r *repositoryImpl) StationExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx, stationExistsSQL, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("station exists %q: %w", id, err)
	}
	return exists, nil
}

func (r *repositoryImpl) CreateStation(ctx context.Context, s types.Station) (types.Station, error) {
	_, err := r.db.ExecContext(ctx, insertStationSQL,
		s.ID,
		s.Name,
		nullString(s.Location),
		s.Latitude,
		s.Longitude,
		s.Altitude,
		s.Active,
		nullString(s.APIKey),
		db.FormatTime(r.now()),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.Station{}, fmt.Errorf("%w: %q", ErrStationExists, s.ID)
		}
		return types.Station{}, fmt.Errorf("insert station %q: %w", s.ID, err)
	}

	created, err := r.GetStation(ctx, s.ID)
	if err != nil {
		return types.Station{}, err
	}
	created.APIKey = s.APIKey
	return created, nil
}

func (r *repositoryImpl) UpdateStation(ctx context.Context, s types.Station) (types.Station, error) {
	res, err := r.db.ExecContext(ctx, updateStationSQL,
		s.ID,
		s.Name,
		nullString(s.Location),
		s.Latitude,
		s.Longitude,
		s.Altitude,
		s.Active,
		db.FormatTime(r.now()),
	)
	if err != nil {
		return types.Station{}, fmt.Errorf("update station %q: %w", s.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return types.Station{}, fmt.Errorf("update station %q: %w", s.ID, err)
	}
	if n == 0 {
		return types.Station{}, fmt.Errorf("%w: %q", ErrStationNotFound, s.ID)
	}
	return r.GetStation(ctx, s.ID)
}

func (r *repositoryImpl) InsertReading(ctx context.Context, reading types.Reading) (types.Reading, error) {
	now := db.FormatTime(r.now())
	reading.Timestamp = reading.Timestamp.UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Reading{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, upsertStationSQL, reading.StationID, now); err != nil {
		return types.Reading{}, fmt.Errorf("upsert station %q: %w", reading.StationID, err)
	}

	res, err := tx.ExecContext(ctx, insertReadingSQL,
		reading.StationID,
		db.FormatTime(reading.Timestamp),
		reading.Temperature,
		reading.Humidity,
		reading.Pressure,
		reading.WindSpeed,
		reading.WindDirection,
		reading.Rainfall,
		reading.UVIndex,
		reading.LightLevel,
		reading.BatteryVoltage,
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.Reading{}, fmt.Errorf("%w: %s at %s", ErrDuplicateReading, reading.StationID, db.FormatTime(reading.Timestamp))
		}
		return types.Reading{}, fmt.Errorf("insert reading: %w", err)
	}
	if reading.ID, err = res.LastInsertId(); err != nil {
		return types.Reading{}, fmt.Errorf("reading id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return types.Reading{}, fmt.Errorf("commit: %w", err)
	}
	return reading, nil
}

func (r *repositoryImpl) GetLatestReadings(ctx context.Context, stationID string, limit int) ([]types.Reading, error) {
	rows, err := r.db.QueryContext(ctx, getLatestReadingsSQL, stationID, limit)
	if err != nil {
		return nil, fmt.Errorf("query latest readings: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close latest readings rows", "error", err)
		}
	}()
	return scanReadings(rows)
}

func (r *repositoryImpl) GetLatestReadingsAll(ctx context.Context, limit int) ([]types.Reading, error) {
	rows, err := r.db.QueryContext(ctx, getLatestReadingsAllSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("query latest readings: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close latest readings rows", "error", err)
		}
	}()
	return scanReadings(rows)
}

func (r *repositoryImpl) GetReadings(ctx context.Context, stationID string, from, to time.Time, limit, offset int) ([]types.Reading, error) {
	rows, err := r.db.QueryContext(ctx, getReadingsSQL, stationID, db.NullTime(&from), db.NullTime(&to), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query readings: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close readings rows", "error", err)
		}
	}()
	return scanReadings(rows)
}

func (r *repositoryImpl) GetReadingsCount(ctx context.Context, stationID string, from, to time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, getReadingsCountSQL, stationID, db.NullTime(&from), db.NullTime(&to)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count readings: %w", err)
	}
	return n, nil
}

func (r *repositoryImpl) GetReadingsSince(ctx context.Context, since time.Time) ([]types.Reading, error) {
	rows, err := r.db.QueryContext(ctx, getReadingsSinceSQL, db.FormatTime(since))
	if err != nil {
		return nil, fmt.Errorf("query readings since: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close readings since rows", "error", err)
		}
	}()
	return scanReadings(rows)
}

func (r *repositoryImpl) GetStats(ctx context.Context, stationID string, from, to time.Time) (types.Stats, error) {
	stats := types.Stats{StationID: stationID, From: from.UTC(), To: to.UTC()}
	row := r.db.QueryRowContext(ctx, getStatsSQL, stationID, db.FormatTime(from), db.FormatTime(to))
	if err := scanStats(row, &stats); err != nil {
		return types.Stats{}, fmt.Errorf("query stats: %w", err)
	}
	return stats, nil
}

// GetStatsAll aggregates every station's readings in [from, to].
func (r *repositoryImpl) GetStatsAll(ctx context.Context, from, to time.Time) (types.Stats, error) {
	stats := types.Stats{From: from.UTC(), To: to.UTC()}
	row := r.db.QueryRowContext(ctx, getStatsAllSQL, db.FormatTime(from), db.FormatTime(to))
	if err := scanStats(row, &stats); err != nil {
		return types.Stats{}, fmt.Errorf("query stats: %w", err)
	}
	return stats, nil
}

func scanStats(row rowScanner, stats *types.Stats) error {
	return row.Scan(
		&stats.ReadingCount,
		&stats.MinTemperature,
		&stats.MaxTemperature,
		&stats.AvgTemperature,
		&stats.AvgHumidity,
		&stats.AvgPressure,
		&stats.TotalRainfall,
		&stats.MaxWindSpeed,
	)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStation(row rowScanner) (types.Station, error) {
	var (
		s                    types.Station
		location, lastSeen   sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&s.ID, &s.Name, &location, &s.Latitude, &s.Longitude, &s.Altitude,
		&s.Active, &lastSeen, &createdAt, &updatedAt)
	if err != nil {
		return types.Station{}, err
	}
	s.Location = location.String
	if s.LastSeen, err = db.ParseNullTime(lastSeen); err != nil {
		return types.Station{}, err
	}
	if s.CreatedAt, err = db.ParseTime(createdAt); err != nil {
		return types.Station{}, err
	}
	if s.UpdatedAt, err = db.ParseTime(updatedAt); err != nil {
		return types.Station{}, err
	}
	return s, nil
}

func scanReadings(rows *sql.Rows) ([]types.Reading, error) {
	out := []types.Reading{}
	for rows.Next() {
		var rec types.Reading
		var ts string
		if err := rows.Scan(
			&rec.ID, &rec.StationID, &ts,
			&rec.Temperature, &rec.Humidity, &rec.Pressure,
			&rec.WindSpeed, &rec.WindDirection, &rec.Rainfall,
			&rec.UVIndex, &rec.LightLevel, &rec.BatteryVoltage,
		); err != nil {
			return nil, err
		}
		t, err := db.ParseTime(ts)
		if err != nil {
			return nil, err
		}
		rec.Timestamp = t
		out = append(out, rec)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
