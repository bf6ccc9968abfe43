package types

import (
	"strings"
	"testing"
	"time"
)

func ptr(v float64) *float64 { return &v }

func TestReading_Validate(t *testing.T) {
	tests := []struct {
		name    string
		r       Reading
		wantErr string
	}{
		{name: "ok", r: Reading{StationID: "s1", Temperature: ptr(21)}},
		{name: "battery only", r: Reading{StationID: "s1", BatteryVoltage: ptr(3.7)}},
		{name: "missing station", r: Reading{Temperature: ptr(21)}, wantErr: "station_id"},
		{name: "no metrics", r: Reading{StationID: "s1"}, wantErr: "at least one"},
		{name: "humidity high", r: Reading{StationID: "s1", Humidity: ptr(101)}, wantErr: "humidity"},
		{name: "humidity low", r: Reading{StationID: "s1", Humidity: ptr(-1)}, wantErr: "humidity"},
		{name: "pressure zero", r: Reading{StationID: "s1", Pressure: ptr(0)}, wantErr: "pressure"},
		{name: "wind negative", r: Reading{StationID: "s1", WindSpeed: ptr(-2)}, wantErr: "wind speed"},
		{name: "direction 360", r: Reading{StationID: "s1", WindDirection: ptr(360)}, wantErr: "wind direction"},
		{name: "rain negative", r: Reading{StationID: "s1", Rainfall: ptr(-0.1)}, wantErr: "rainfall"},
		{name: "uv negative", r: Reading{StationID: "s1", UVIndex: ptr(-1)}, wantErr: "uv"},
		{name: "light negative", r: Reading{StationID: "s1", LightLevel: ptr(-1)}, wantErr: "light"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.r.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestTelemetry_Reading(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tel := Telemetry{
		StationID:   "backyard",
		Timestamp:   ts,
		Temperature: ptr(24.5),
		Rainfall:    ptr(1.2),
		Battery:     ptr(3.9),
	}
	r := tel.Reading()
	if r.StationID != "backyard" || !r.Timestamp.Equal(ts) {
		t.Fatalf("Reading() = %+v", r)
	}
	if r.Temperature == nil || *r.Temperature != 24.5 {
		t.Errorf("Temperature = %v", r.Temperature)
	}
	if r.BatteryVoltage == nil || *r.BatteryVoltage != 3.9 {
		t.Errorf("BatteryVoltage = %v", r.BatteryVoltage)
	}
	if r.Humidity != nil {
		t.Errorf("Humidity = %v, want nil", r.Humidity)
	}
}
