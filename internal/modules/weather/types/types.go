package types

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

var stationIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

type Station struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Location  string     `json:"location,omitempty"`
	Latitude  *float64   `json:"latitude,omitempty"`
	Longitude *float64   `json:"longitude,omitempty"`
	Altitude  *float64   `json:"altitude,omitempty"`
	Active    bool       `json:"active"`
	LastSeen  *time.Time `json:"lastSeen,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	// APIKey is only returned when the station is registered.
	APIKey    string     `json:"apiKey,omitempty"`
}

// Validate checks the identity and coordinates of a station.
func (s Station) Validate() error {
	if !stationIDPattern.MatchString(s.ID) {
		return fmt.Errorf("invalid station id %q (1-64 letters, digits, '.', '_' or '-')", s.ID)
	}
	if s.Name == "" {
		return errors.New("name is required")
	}
	if s.Latitude != nil && (*s.Latitude < -90 || *s.Latitude > 90) {
		return fmt.Errorf("latitude out of range: %g (must be -90 to 90)", *s.Latitude)
	}
	if s.Longitude != nil && (*s.Longitude < -180 || *s.Longitude > 180) {
		return fmt.Errorf("longitude out of range: %g (must be -180 to 180)", *s.Longitude)
	}
	return nil
}

// Reading is one immutable observation. Every metric is optional.
type Reading struct {
	ID             int64     `json:"id"`
	StationID      string    `json:"stationId"`
	Timestamp      time.Time `json:"timestamp"`
	Temperature    *float64  `json:"temperature,omitempty"`
	Humidity       *float64  `json:"humidity,omitempty"`
	Pressure       *float64  `json:"pressure,omitempty"`
	WindSpeed      *float64  `json:"windSpeed,omitempty"`
	WindDirection  *float64  `json:"windDirection,omitempty"`
	Rainfall       *float64  `json:"rainfall,omitempty"`
	UVIndex        *float64  `json:"uvIndex,omitempty"`
	LightLevel     *float64  `json:"lightLevel,omitempty"`
	BatteryVoltage *float64  `json:"batteryVoltage,omitempty"`
}

func (r Reading) HasMetrics() bool {
	for _, v := range []*float64{
		r.Temperature, r.Humidity, r.Pressure, r.WindSpeed, r.WindDirection,
		r.Rainfall, r.UVIndex, r.LightLevel, r.BatteryVoltage,
	} {
		if v != nil {
			return true
		}
	}
	return false
}

// Validate checks the ranges a station can physically report.
func (r Reading) Validate() error {
	if r.StationID == "" {
		return errors.New("station_id is required")
	}
	if !r.HasMetrics() {
		return errors.New("at least one sensor reading is required")
	}
	if r.Humidity != nil && (*r.Humidity < 0 || *r.Humidity > 100) {
		return fmt.Errorf("humidity out of range: %g (must be 0-100)", *r.Humidity)
	}
	if r.Pressure != nil && *r.Pressure <= 0 {
		return fmt.Errorf("pressure must be positive: %g", *r.Pressure)
	}
	if r.WindSpeed != nil && *r.WindSpeed < 0 {
		return fmt.Errorf("wind speed must not be negative: %g", *r.WindSpeed)
	}
	if r.WindDirection != nil && (*r.WindDirection < 0 || *r.WindDirection >= 360) {
		return fmt.Errorf("wind direction out of range: %g (must be 0-359)", *r.WindDirection)
	}
	if r.Rainfall != nil && *r.Rainfall < 0 {
		return fmt.Errorf("rainfall must not be negative: %g", *r.Rainfall)
	}
	if r.UVIndex != nil && *r.UVIndex < 0 {
		return fmt.Errorf("uv index must not be negative: %g", *r.UVIndex)
	}
	if r.LightLevel != nil && *r.LightLevel < 0 {
		return fmt.Errorf("light level must not be negative: %g", *r.LightLevel)
	}
	return nil
}

// Telemetry is the JSON payload published by station gateways over MQTT.
type Telemetry struct {
	StationID     string    `json:"station_id"`
	Timestamp     time.Time `json:"timestamp"`
	Temperature   *float64  `json:"temperature_c,omitempty"`
	Humidity      *float64  `json:"humidity_pct,omitempty"`
	Pressure      *float64  `json:"pressure_hpa,omitempty"`
	WindSpeed     *float64  `json:"wind_speed_kmh,omitempty"`
	WindDirection *float64  `json:"wind_direction_deg,omitempty"`
	Rainfall      *float64  `json:"rainfall_mm,omitempty"`
	UVIndex       *float64  `json:"uv_index,omitempty"`
	LightLevel    *float64  `json:"light_lux,omitempty"`
	Battery       *float64  `json:"battery_v,omitempty"`
	Sequence      *int      `json:"sequence,omitempty"`
}

func (t Telemetry) Reading() Reading {
	return Reading{
		StationID:      t.StationID,
		Timestamp:      t.Timestamp,
		Temperature:    t.Temperature,
		Humidity:       t.Humidity,
		Pressure:       t.Pressure,
		WindSpeed:      t.WindSpeed,
		WindDirection:  t.WindDirection,
		Rainfall:       t.Rainfall,
		UVIndex:        t.UVIndex,
		LightLevel:     t.LightLevel,
		BatteryVoltage: t.Battery,
	}
}

// Stats aggregates readings over a trailing window. StationID is empty for
// the all-station aggregate.
type Stats struct {
	StationID      string    `json:"stationId,omitempty"`
	From           time.Time `json:"from"`
	To             time.Time `json:"to"`
	ReadingCount   int       `json:"readingCount"`
	MinTemperature *float64  `json:"minTemperature,omitempty"`
	MaxTemperature *float64  `json:"maxTemperature,omitempty"`
	AvgTemperature *float64  `json:"avgTemperature,omitempty"`
	AvgHumidity    *float64  `json:"avgHumidity,omitempty"`
	AvgPressure    *float64  `json:"avgPressure,omitempty"`
	TotalRainfall  *float64  `json:"totalRainfall,omitempty"`
	MaxWindSpeed   *float64  `json:"maxWindSpeed,omitempty"`
}
