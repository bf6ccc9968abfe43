package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/gameguyr/tempest/internal/db"
	"github.com/gameguyr/tempest/internal/modules/alerts/types"
)

//go:embed sql/insert-history.sql
var insertHistorySQL string

//go:embed sql/list-history-by-alert.sql
var listHistoryByAlertSQL string

//go:embed sql/count-history-by-alert.sql
var countHistoryByAlertSQL string

//go:embed sql/recent-history.sql
var recentHistorySQL string

//go:embed sql/delete-history-before.sql
var deleteHistoryBeforeSQL string

type HistoryRepository interface {
	Append(ctx context.Context, event types.TriggerEvent) (types.TriggerEvent, error)
	ListByAlert(ctx context.Context, alertID int64, limit, offset int) ([]types.TriggerEvent, error)
	CountByAlert(ctx context.Context, alertID int64) (int, error)
	Recent(ctx context.Context, limit int) ([]types.TriggerEvent, error)
	// DeleteOlderThan removes rows triggered strictly before cutoff.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type historyRepositoryImpl struct {
	db *sql.DB
}

func NewHistoryRepository(db *sql.DB) HistoryRepository {
	return &historyRepositoryImpl{db: db}
}

func (r *historyRepositoryImpl) Append(ctx context.Context, e types.TriggerEvent) (types.TriggerEvent, error) {
	res, err := r.db.ExecContext(ctx, insertHistorySQL,
		e.AlertID, e.AlertName, e.StationID, e.ReadingID, e.Metric, e.Operator, e.ActualValue,
		e.ThresholdValue, e.NotificationSent, e.NotificationStatus, e.EmailSent, e.SMSSent,
		e.NotificationError, db.FormatTime(e.TriggeredAt),
	)
	if err != nil {
		return types.TriggerEvent{}, fmt.Errorf("insert history for alert %d: %w", e.AlertID, err)
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return types.TriggerEvent{}, fmt.Errorf("history id: %w", err)
	}
	e.TriggeredAt = e.TriggeredAt.UTC()
	return e, nil
}

func (r *historyRepositoryImpl) ListByAlert(ctx context.Context, alertID int64, limit, offset int) ([]types.TriggerEvent, error) {
	return r.queryEvents(ctx, listHistoryByAlertSQL, alertID, limit, offset)
}

func (r *historyRepositoryImpl) CountByAlert(ctx context.Context, alertID int64) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, countHistoryByAlertSQL, alertID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count history for alert %d: %w", alertID, err)
	}
	return n, nil
}

func (r *historyRepositoryImpl) Recent(ctx context.Context, limit int) ([]types.TriggerEvent, error) {
	return r.queryEvents(ctx, recentHistorySQL, limit)
}

func (r *historyRepositoryImpl) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, deleteHistoryBeforeSQL, db.FormatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("delete history before %s: %w", db.FormatTime(cutoff), err)
	}
	return res.RowsAffected()
}

func (r *historyRepositoryImpl) queryEvents(ctx context.Context, query string, args ...any) ([]types.TriggerEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close history rows", "error", err)
		}
	}()

	out := []types.TriggerEvent{}
	for rows.Next() {
		var (
			e           types.TriggerEvent
			triggeredAt string
		)
		if err := rows.Scan(
			&e.ID, &e.AlertID, &e.AlertName, &e.StationID, &e.ReadingID, &e.Metric, &e.Operator,
			&e.ActualValue, &e.ThresholdValue, &e.NotificationSent, &e.NotificationStatus,
			&e.EmailSent, &e.SMSSent, &e.NotificationError, &triggeredAt,
		); err != nil {
			return nil, err
		}
		if e.TriggeredAt, err = db.ParseTime(triggeredAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
