package types

import (
	"math"
	"time"

	weathertypes "github.com/gameguyr/tempest/internal/modules/weather/types"
)

// Metric names a reading field an alert can watch.
type Metric string

const (
	MetricTemperature    Metric = "TEMPERATURE"
	MetricHumidity       Metric = "HUMIDITY"
	MetricPressure       Metric = "PRESSURE"
	MetricWindSpeed      Metric = "WIND_SPEED"
	MetricRainfall       Metric = "RAINFALL"
	MetricUVIndex        Metric = "UV_INDEX"
	MetricLightLevel     Metric = "LIGHT_LEVEL"
	MetricBatteryVoltage Metric = "BATTERY_VOLTAGE"
)

var Metrics = []Metric{
	MetricTemperature, MetricHumidity, MetricPressure, MetricWindSpeed,
	MetricRainfall, MetricUVIndex, MetricLightLevel, MetricBatteryVoltage,
}

type metricInfo struct {
	displayName string
	unit        string
}

// Stations report Celsius, so temperature is labelled °C.
var metricInfos = map[Metric]metricInfo{
	MetricTemperature:    {"Temperature", "°C"},
	MetricHumidity:       {"Humidity", "%"},
	MetricPressure:       {"Pressure", "hPa"},
	MetricWindSpeed:      {"Wind Speed", "km/h"},
	MetricRainfall:       {"Rainfall", "mm"},
	MetricUVIndex:        {"UV Index", ""},
	MetricLightLevel:     {"Light Level", "lux"},
	MetricBatteryVoltage: {"Battery Voltage", "V"},
}

func (m Metric) Valid() bool {
	_, ok := metricInfos[m]
	return ok
}

func (m Metric) DisplayName() string {
	if info, ok := metricInfos[m]; ok {
		return info.displayName
	}
	return string(m)
}

func (m Metric) Unit() string {
	return metricInfos[m].unit
}

// Value extracts the metric from r; nil when the station did not report it.
func (m Metric) Value(r weathertypes.Reading) *float64 {
	switch m {
	case MetricTemperature:
		return r.Temperature
	case MetricHumidity:
		return r.Humidity
	case MetricPressure:
		return r.Pressure
	case MetricWindSpeed:
		return r.WindSpeed
	case MetricRainfall:
		return r.Rainfall
	case MetricUVIndex:
		return r.UVIndex
	case MetricLightLevel:
		return r.LightLevel
	case MetricBatteryVoltage:
		return r.BatteryVoltage
	default:
		return nil
	}
}

type Operator string

const (
	OpGreaterThan  Operator = "GREATER_THAN"
	OpLessThan     Operator = "LESS_THAN"
	OpEquals       Operator = "EQUALS"
	OpGreaterEqual Operator = "GREATER_EQUAL"
	OpLessEqual    Operator = "LESS_EQUAL"
)

var Operators = []Operator{OpGreaterThan, OpLessThan, OpEquals, OpGreaterEqual, OpLessEqual}

// EqualsTolerance is the absolute difference under which EQUALS holds.
const EqualsTolerance = 0.01

func (o Operator) Valid() bool {
	switch o {
	case OpGreaterThan, OpLessThan, OpEquals, OpGreaterEqual, OpLessEqual:
		return true
	}
	return false
}

func (o Operator) Symbol() string {
	switch o {
	case OpGreaterThan:
		return ">"
	case OpLessThan:
		return "<"
	case OpEquals:
		return "="
	case OpGreaterEqual:
		return "≥"
	case OpLessEqual:
		return "≤"
	default:
		return string(o)
	}
}

func (o Operator) Evaluate(actual, threshold float64) bool {
	switch o {
	case OpGreaterThan:
		return actual > threshold
	case OpLessThan:
		return actual < threshold
	case OpEquals:
		return math.Abs(actual-threshold) < EqualsTolerance
	case OpGreaterEqual:
		return actual >= threshold
	case OpLessEqual:
		return actual <= threshold
	default:
		return false
	}
}

type NotificationType string

const (
	NotifyEmail NotificationType = "EMAIL"
	NotifySMS   NotificationType = "SMS"
	NotifyBoth  NotificationType = "BOTH"
)

func (n NotificationType) Valid() bool {
	return n == NotifyEmail || n == NotifySMS || n == NotifyBoth
}

func (n NotificationType) WantsEmail() bool { return n == NotifyEmail || n == NotifyBoth }

func (n NotificationType) WantsSMS() bool { return n == NotifySMS || n == NotifyBoth }

const (
	DefaultCooldownMinutes = 60
	// MaxCooldownMinutes is one year.
	MaxCooldownMinutes     = 365 * 24 * 60
)

type Alert struct {
	ID               int64            `json:"id"`
	Name             string           `json:"name"`
	Description      string           `json:"description,omitempty"`
	StationID        *string          `json:"stationId"`
	Metric           Metric           `json:"metric"`
	Operator         Operator         `json:"operator"`
	Threshold        float64          `json:"threshold"`
	NotificationType NotificationType `json:"notificationType"`
	UserEmail        string           `json:"userEmail,omitempty"`
	UserPhone        string           `json:"userPhone,omitempty"`
	Enabled          bool             `json:"enabled"`
	CooldownMinutes  int              `json:"cooldownMinutes"`
	LastTriggeredAt  *time.Time       `json:"lastTriggeredAt,omitempty"`
	TriggerCount     int              `json:"triggerCount"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

func (a Alert) IsGlobal() bool {
	return a.StationID == nil || *a.StationID == ""
}

// Cooldown is clamped to [0, MaxCooldownMinutes].
func (a Alert) Cooldown() time.Duration {
	minutes := min(max(a.CooldownMinutes, 0), MaxCooldownMinutes)
	return time.Duration(minutes) * time.Minute
}

// InCooldown reports whether now falls before lastTriggeredAt + cooldown.
// At exactly the boundary the alert is eligible again.
func (a Alert) InCooldown(now time.Time) bool {
	if a.LastTriggeredAt == nil {
		return false
	}
	return now.Before(a.LastTriggeredAt.Add(a.Cooldown()))
}

// StationLabel is the station id, or "All Stations" for a global alert.
func (a Alert) StationLabel() string {
	if a.IsGlobal() {
		return "All Stations"
	}
	return *a.StationID
}

type NotificationStatus string

const (
	StatusSent    NotificationStatus = "sent"
	StatusPartial NotificationStatus = "partial"
	StatusFailed  NotificationStatus = "failed"
)

// TriggerEvent is one immutable row of alert history.
type TriggerEvent struct {
	ID                 int64              `json:"id"`
	AlertID            int64              `json:"alertId"`
	AlertName          string             `json:"alertName"`
	StationID          string             `json:"stationId"`
	ReadingID          *int64             `json:"readingId,omitempty"`
	Metric             Metric             `json:"metric"`
	Operator           Operator           `json:"operator"`
	ActualValue        float64            `json:"actualValue"`
	ThresholdValue     float64            `json:"thresholdValue"`
	NotificationSent   bool               `json:"notificationSent"`
	NotificationStatus NotificationStatus `json:"notificationStatus"`
	EmailSent          *bool              `json:"emailSent,omitempty"`
	SMSSent            *bool              `json:"smsSent,omitempty"`
	NotificationError  string             `json:"notificationError,omitempty"`
	TriggeredAt        time.Time          `json:"triggeredAt"`
}

// Page is one page of a larger result set.
type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	Size       int `json:"size"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

func NewPage[T any](items []T, page, size, total int) Page[T] {
	if items == nil {
		items = []T{}
	}
	totalPages := 0
	if size > 0 {
		totalPages = (total + size - 1) / size
	}
	return Page[T]{Items: items, Page: page, Size: size, Total: total, TotalPages: totalPages}
}
