package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gameguyr/tempest/internal/db/dbtest"
	"github.com/gameguyr/tempest/internal/modules/alerts/repository"
	"github.com/gameguyr/tempest/internal/modules/alerts/types"
)

func ptr[T any](v T) *T { return &v }

type stationSet map[string]bool

func (s stationSet) StationExists(_ context.Context, id string) (bool, error) {
	return s[id], nil
}

func newService(t *testing.T) (*Service, repository.HistoryRepository) {
	t.Helper()
	conn := dbtest.Open(t)
	dbtest.Exec(t, conn, `INSERT INTO stations (id, name, created_at, updated_at)
		VALUES ('roof', 'Roof', '2025-01-01T00:00:00.000Z', '2025-01-01T00:00:00.000Z')`)
	history := repository.NewHistoryRepository(conn)
	svc := NewService(repository.NewAlertRepository(conn), history, stationSet{"roof": true}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return svc, history
}

func validInput() AlertInput {
	return AlertInput{
		Name:             ptr("Roof heat"),
		StationID:        ptr("roof"),
		Metric:           ptr(types.MetricTemperature),
		Operator:         ptr(types.OpGreaterThan),
		Threshold:        ptr(30.0),
		NotificationType: ptr(types.NotifyEmail),
		UserEmail:        ptr("ops@example.com"),
	}
}

func TestCreate_Defaults(t *testing.T) {
	svc, _ := newService(t)

	a, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	assert.True(t, a.Enabled)
	assert.Equal(t, types.DefaultCooldownMinutes, a.CooldownMinutes)
	assert.Equal(t, "roof", *a.StationID)
	assert.Zero(t, a.TriggerCount)
}

func TestCreate_NormalisesInput(t *testing.T) {
	svc, _ := newService(t)
	in := validInput()
	in.Name = ptr("  padded  ")
	in.StationID = ptr("")
	in.Metric = ptr(types.Metric("humidity"))
	in.Operator = ptr(types.Operator("less_equal"))

	a, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "padded", a.Name)
	assert.True(t, a.IsGlobal(), "empty station means global")
	assert.Equal(t, types.MetricHumidity, a.Metric)
	assert.Equal(t, types.OpLessEqual, a.Operator)
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*AlertInput)
		field string
	}{
		{"missing name", func(in *AlertInput) { in.Name = ptr(" ") }, "name"},
		{"missing threshold", func(in *AlertInput) { in.Threshold = nil }, "threshold"},
		{"unknown metric", func(in *AlertInput) { in.Metric = ptr(types.Metric("SNOW")) }, "metric"},
		{"unknown operator", func(in *AlertInput) { in.Operator = ptr(types.Operator("BETWEEN")) }, "operator"},
		{"unknown channel", func(in *AlertInput) { in.NotificationType = ptr(types.NotificationType("PIGEON")) }, "notificationType"},
		{"negative cooldown", func(in *AlertInput) { in.CooldownMinutes = ptr(-1) }, "cooldownMinutes"},
		{"cooldown beyond a year", func(in *AlertInput) { in.CooldownMinutes = ptr(200_000_000) }, "cooldownMinutes"},
		{"bad email", func(in *AlertInput) { in.UserEmail = ptr("not-an-email") }, "userEmail"},
		{"sms without phone", func(in *AlertInput) { in.NotificationType = ptr(types.NotifySMS) }, "userPhone"},
		{"bad phone", func(in *AlertInput) {
			in.NotificationType = ptr(types.NotifyBoth)
			in.UserPhone = ptr("5551234")
		}, "userPhone"},
		{"unknown station", func(in *AlertInput) { in.StationID = ptr("cellar") }, "stationId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newService(t)
			in := validInput()
			tt.edit(&in)

			_, err := svc.Create(context.Background(), in)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestCreate_SMSWithPhone(t *testing.T) {
	svc, _ := newService(t)
	in := validInput()
	in.NotificationType = ptr(types.NotifySMS)
	in.UserEmail = nil
	in.UserPhone = ptr("+15551234567")

	_, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	a, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	updated, err := svc.Update(ctx, a.ID, AlertInput{Threshold: ptr(35.0), CooldownMinutes: ptr(15)})
	require.NoError(t, err)
	assert.Equal(t, 35.0, updated.Threshold)
	assert.Equal(t, 15, updated.CooldownMinutes)
	assert.Equal(t, "Roof heat", updated.Name, "unset fields are kept")

	_, err = svc.Update(ctx, a.ID, AlertInput{UserEmail: ptr("nope")})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = svc.Update(ctx, 999, AlertInput{})
	assert.ErrorIs(t, err, repository.ErrAlertNotFound)
}

func TestToggle(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	a, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	off, err := svc.Toggle(ctx, a.ID, nil)
	require.NoError(t, err)
	assert.False(t, off.Enabled, "nil flips")

	on, err := svc.Toggle(ctx, a.ID, ptr(true))
	require.NoError(t, err)
	assert.True(t, on.Enabled)

	_, err = svc.Toggle(ctx, 999, nil)
	assert.ErrorIs(t, err, repository.ErrAlertNotFound)
}

func TestListAndDelete(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	a, err := svc.Create(ctx, validInput())
	require.NoError(t, err)
	other := validInput()
	other.Name = ptr("Other")
	other.UserEmail = ptr("someone@example.org")
	_, err = svc.Create(ctx, other)
	require.NoError(t, err)

	all, err := svc.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := svc.List(ctx, "ops@example.com")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, a.ID, mine[0].ID)

	exists, err := svc.NameExists(ctx, " Other ")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, svc.Delete(ctx, a.ID))
	_, err = svc.Get(ctx, a.ID)
	assert.ErrorIs(t, err, repository.ErrAlertNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, a.ID), repository.ErrAlertNotFound)
}

func TestHistory_Paging(t *testing.T) {
	ctx := context.Background()
	svc, history := newService(t)
	a, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	base := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, err := history.Append(ctx, types.TriggerEvent{
			AlertID: a.ID, AlertName: a.Name, StationID: "roof", Metric: a.Metric, Operator: a.Operator,
			ActualValue: float64(31 + i), ThresholdValue: 30, NotificationSent: true,
			NotificationStatus: types.StatusSent, TriggeredAt: base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}

	page, err := svc.History(ctx, a.ID, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 2, page.Size)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Items, 2)
	assert.Equal(t, 33.0, page.Items[0].ActualValue)

	last, err := svc.History(ctx, a.ID, 2, 2)
	require.NoError(t, err)
	assert.Len(t, last.Items, 1)

	_, err = svc.History(ctx, 999, 0, 20)
	assert.ErrorIs(t, err, repository.ErrAlertNotFound)

	recent, err := svc.RecentHistory(ctx)
	require.NoError(t, err)
	assert.Len(t, recent, 5)
}

type brokenStations struct{}

func (brokenStations) StationExists(context.Context, string) (bool, error) {
	return false, errors.New("database is locked")
}

func TestCreate_StationLookupError(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(repository.NewAlertRepository(conn), repository.NewHistoryRepository(conn), brokenStations{}, nil)

	_, err := svc.Create(context.Background(), validInput())
	require.Error(t, err)
	var verr *ValidationError
	assert.False(t, errors.As(err, &verr))
}
