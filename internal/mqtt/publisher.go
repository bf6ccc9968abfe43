package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/gameguyr/tempest/internal/config"
	"github.com/gameguyr/tempest/internal/modules/weather/types"
)

// Publisher sends telemetry the way a station gateway does. Used by the
// tools binary to exercise alert rules end to end.
type Publisher struct {
	client mqtt.Client
	topic  string
	logger *slog.Logger
	now    func() time.Time
}

func NewPublisher(cfg config.Config, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	opts := clientOptions(cfg)
	// A one-shot publisher should fail instead of retrying forever.
	opts.SetConnectRetry(false)
	opts.SetAutoReconnect(false)
	return &Publisher{
		client: mqtt.NewClient(opts),
		topic:  cfg.MQTTTopic,
		logger: logger.With("component", "mqtt"),
		now:    time.Now,
	}
}

func (p *Publisher) Connect(ctx context.Context) error {
	if err := awaitToken(ctx, p.client.Connect(), nil); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

// Publish sends telemetry to the station's topic, stamping it with the
// current time when the timestamp is unset.
func (p *Publisher) Publish(ctx context.Context, telemetry types.Telemetry) error {
	if telemetry.StationID == "" {
		return fmt.Errorf("station_id is required")
	}
	if telemetry.Timestamp.IsZero() {
		telemetry.Timestamp = p.now().UTC()
	}

	data, err := json.Marshal(telemetry)
	if err != nil {
		return fmt.Errorf("marshal telemetry: %w", err)
	}

	topic := TopicFor(p.topic, telemetry.StationID)
	if err := awaitToken(ctx, p.client.Publish(topic, qos, false, data), nil); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	p.logger.Debug("published telemetry", "topic", topic, "station_id", telemetry.StationID)
	return nil
}

func (p *Publisher) Disconnect() {
	p.client.Disconnect(250)
}

// TopicFor fills a subscription filter with a concrete station id:
// "weather/+/telemetry" becomes "weather/roof/telemetry" and "weather/#"
// becomes "weather/roof".
func TopicFor(filter, stationID string) string {
	if strings.Contains(filter, "+") {
		return strings.Replace(filter, "+", stationID, 1)
	}
	if base, ok := strings.CutSuffix(filter, "#"); ok {
		return base + stationID
	}
	return filter
}
