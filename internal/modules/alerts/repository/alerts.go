package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gameguyr/tempest/internal/db"
	"github.com/gameguyr/tempest/internal/modules/alerts/types"
)

//go:embed sql/find-by-station.sql
var findByStationSQL string

//go:embed sql/find-global.sql
var findGlobalSQL string

//go:embed sql/get-alert.sql
var getAlertSQL string

//go:embed sql/list-alerts.sql
var listAlertsSQL string

//go:embed sql/list-alerts-by-email.sql
var listAlertsByEmailSQL string

//go:embed sql/alert-name-exists.sql
var alertNameExistsSQL string

//go:embed sql/insert-alert.sql
var insertAlertSQL string

//go:embed sql/update-alert.sql
var updateAlertSQL string

//go:embed sql/set-alert-enabled.sql
var setAlertEnabledSQL string

//go:embed sql/delete-alert.sql
var deleteAlertSQL string

//go:embed sql/claim-trigger.sql
var claimTriggerSQL string

var ErrAlertNotFound = errors.New("alert not found")

type AlertRepository interface {
	// FindByStation returns enabled alerts scoped to stationID.
	FindByStation(ctx context.Context, stationID string) ([]types.Alert, error)
	// FindGlobal returns enabled alerts that apply to every station.
	FindGlobal(ctx context.Context) ([]types.Alert, error)
	Get(ctx context.Context, id int64) (types.Alert, error)
	List(ctx context.Context) ([]types.Alert, error)
	ListByEmail(ctx context.Context, email string) ([]types.Alert, error)
	NameExists(ctx context.Context, name string) (bool, error)
	Create(ctx context.Context, alert types.Alert) (types.Alert, error)
	// Update rewrites the rule fields. Cooldown state is left untouched.
	Update(ctx context.Context, alert types.Alert) (types.Alert, error)
	SetEnabled(ctx context.Context, id int64, enabled bool) (types.Alert, error)
	Delete(ctx context.Context, id int64) error
	// ClaimTrigger sets lastTriggeredAt to now and bumps triggerCount, but only
	// while the stored lastTriggeredAt still equals expectedLast. It reports
	// false when another evaluation got there first or the alert was disabled.
	ClaimTrigger(ctx context.Context, id int64, expectedLast *time.Time, now time.Time) (bool, error)
}

type alertRepositoryImpl struct {
	db  *sql.DB
	now func() time.Time
}

func NewAlertRepository(db *sql.DB) AlertRepository {
	return &alertRepositoryImpl{db: db, now: time.Now}
}

func (r *alertRepositoryImpl) FindByStation(ctx context.Context, stationID string) ([]types.Alert, error) {
	return r.queryAlerts(ctx, findByStationSQL, stationID)
}

func (r *alertRepositoryImpl) FindGlobal(ctx context.Context) ([]types.Alert, error) {
	return r.queryAlerts(ctx, findGlobalSQL)
}

func (r *alertRepositoryImpl) List(ctx context.Context) ([]types.Alert, error) {
	return r.queryAlerts(ctx, listAlertsSQL)
}

func (r *alertRepositoryImpl) ListByEmail(ctx context.Context, email string) ([]types.Alert, error) {
	return r.queryAlerts(ctx, listAlertsByEmailSQL, email)
}

func (r *alertRepositoryImpl) Get(ctx context.Context, id int64) (types.Alert, error) {
	a, err := scanAlert(r.db.QueryRowContext(ctx, getAlertSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return types.Alert{}, fmt.Errorf("%w: %d", ErrAlertNotFound, id)
	}
	if err != nil {
		return types.Alert{}, fmt.Errorf("get alert %d: %w", id, err)
	}
	return a, nil
}

func (r *alertRepositoryImpl) NameExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx, alertNameExistsSQL, name).Scan(&exists); err != nil {
		return false, fmt.Errorf("alert name exists: %w", err)
	}
	return exists, nil
}

func (r *alertRepositoryImpl) Create(ctx context.Context, a types.Alert) (types.Alert, error) {
	now := db.FormatTime(r.now())
	res, err := r.db.ExecContext(ctx, insertAlertSQL,
		a.Name, a.Description, nullString(a.StationID), a.Metric, a.Operator, a.Threshold,
		a.NotificationType, a.UserEmail, a.UserPhone, a.Enabled, a.CooldownMinutes, now, now,
	)
	if err != nil {
		return types.Alert{}, fmt.Errorf("insert alert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return types.Alert{}, fmt.Errorf("alert id: %w", err)
	}
	return r.Get(ctx, id)
}

func (r *alertRepositoryImpl) Update(ctx context.Context, a types.Alert) (types.Alert, error) {
	res, err := r.db.ExecContext(ctx, updateAlertSQL,
		a.Name, a.Description, nullString(a.StationID), a.Metric, a.Operator, a.Threshold,
		a.NotificationType, a.UserEmail, a.UserPhone, a.Enabled, a.CooldownMinutes,
		db.FormatTime(r.now()), a.ID,
	)
	if err != nil {
		return types.Alert{}, fmt.Errorf("update alert %d: %w", a.ID, err)
	}
	if err := expectOneRow(res, a.ID); err != nil {
		return types.Alert{}, err
	}
	return r.Get(ctx, a.ID)
}

func (r *alertRepositoryImpl) SetEnabled(ctx context.Context, id int64, enabled bool) (types.Alert, error) {
	res, err := r.db.ExecContext(ctx, setAlertEnabledSQL, enabled, db.FormatTime(r.now()), id)
	if err != nil {
		return types.Alert{}, fmt.Errorf("set alert %d enabled: %w", id, err)
	}
	if err := expectOneRow(res, id); err != nil {
		return types.Alert{}, err
	}
	return r.Get(ctx, id)
}

func (r *alertRepositoryImpl) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, deleteAlertSQL, id)
	if err != nil {
		return fmt.Errorf("delete alert %d: %w", id, err)
	}
	return expectOneRow(res, id)
}

func (r *alertRepositoryImpl) ClaimTrigger(ctx context.Context, id int64, expectedLast *time.Time, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, claimTriggerSQL, db.FormatTime(now), id, db.NullTime(expectedLast))
	if err != nil {
		return false, fmt.Errorf("claim trigger %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim trigger %d: %w", id, err)
	}
	return n == 1, nil
}

func (r *alertRepositoryImpl) queryAlerts(ctx context.Context, query string, args ...any) ([]types.Alert, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close alert rows", "error", err)
		}
	}()

	out := []types.Alert{}
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (types.Alert, error) {
	var (
		a                    types.Alert
		stationID, last      sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(
		&a.ID, &a.Name, &a.Description, &stationID, &a.Metric, &a.Operator, &a.Threshold,
		&a.NotificationType, &a.UserEmail, &a.UserPhone, &a.Enabled, &a.CooldownMinutes,
		&last, &a.TriggerCount, &createdAt, &updatedAt,
	)
	if err != nil {
		return types.Alert{}, err
	}
	if stationID.Valid && stationID.String != "" {
		s := stationID.String
		a.StationID = &s
	}
	if a.LastTriggeredAt, err = db.ParseNullTime(last); err != nil {
		return types.Alert{}, err
	}
	if a.CreatedAt, err = db.ParseTime(createdAt); err != nil {
		return types.Alert{}, err
	}
	if a.UpdatedAt, err = db.ParseTime(updatedAt); err != nil {
		return types.Alert{}, err
	}
	return a, nil
}

func nullString(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}

func expectOneRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrAlertNotFound, id)
	}
	return nil
}
