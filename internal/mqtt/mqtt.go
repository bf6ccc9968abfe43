// Package mqtt carries station telemetry over an MQTT broker. The Subscriber
// feeds ingestion; the Publisher plays the gateway side.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/gameguyr/tempest/internal/config"
	"github.com/gameguyr/tempest/internal/metrics"
	"github.com/gameguyr/tempest/internal/modules/weather/types"
)

const (
	qos            = byte(1)
	handlerTimeout = 30 * time.Second
)

var ErrStopped = errors.New("subscriber stopped")

// Handler processes one decoded telemetry message.
type Handler func(ctx context.Context, telemetry types.Telemetry) error

type Subscriber struct {
	client    mqtt.Client
	topic     string
	handler   Handler
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool

	// base is cancelled on Disconnect so in-flight handlers stop early.
	base   context.Context
	cancel context.CancelFunc

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewSubscriber(cfg config.Config, handler Handler, logger *slog.Logger) *Subscriber {
	if logger == nil {
		logger = slog.Default()
	}
	base, cancel := context.WithCancel(context.Background())
	s := &Subscriber{
		topic:   cfg.MQTTTopic,
		handler: handler,
		logger:  logger.With("component", "mqtt"),
		base:    base,
		cancel:  cancel,
		stopCh:  make(chan struct{}),
	}

	opts := clientOptions(cfg)

	// Clean sessions drop subscriptions, so resubscribe on every (re)connect.
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		s.setConnected(true)
		s.logger.Info("mqtt connected", "broker", cfg.MQTTBroker, "port", cfg.MQTTPort)
		go func() {
			if err := s.subscribe(c); err != nil {
				s.logger.Error("mqtt subscribe failed", "topic", s.topic, "error", err)
			}
		}()
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.setConnected(false)
		s.logger.Warn("mqtt connection lost", "error", err)
	})

	s.client = mqtt.NewClient(opts)
	return s
}

// Connect blocks until the broker accepts the connection, ctx expires or the
// subscriber is stopped.
func (s *Subscriber) Connect(ctx context.Context) error {
	select {
	case <-s.stopCh:
		return ErrStopped
	default:
	}

	if s.IsConnected() {
		return nil
	}

	if err := awaitToken(ctx, s.client.Connect(), s.stopCh); err != nil {
		s.client.Disconnect(0)
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

// awaitToken waits for token in a ctx and stop aware loop.
func awaitToken(ctx context.Context, token mqtt.Token, stopCh <-chan struct{}) error {
	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			return token.Error()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopCh:
			return ErrStopped
		default:
		}
	}
}

func (s *Subscriber) subscribe(c mqtt.Client) error {
	token := c.Subscribe(s.topic, qos, func(_ mqtt.Client, msg mqtt.Message) {
		s.handleMessage(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe timeout for topic %s", s.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe to %s: %w", s.topic, err)
	}

	s.logger.Info("subscribed to mqtt topic", "topic", s.topic, "qos", qos)
	return nil
}

func (s *Subscriber) handleMessage(topic string, payload []byte) {
	s.logger.Debug("received mqtt message", "topic", topic, "size", len(payload))

	var telemetry types.Telemetry
	if err := json.Unmarshal(payload, &telemetry); err != nil {
		metrics.MQTTMessagesTotal.WithLabelValues("invalid").Inc()
		s.logger.Warn("failed to parse telemetry message",
			"topic", topic,
			"error", err,
			"payload", string(payload),
		)
		return
	}

	if err := validateTelemetry(telemetry); err != nil {
		metrics.MQTTMessagesTotal.WithLabelValues("invalid").Inc()
		s.logger.Warn("invalid telemetry message",
			"topic", topic,
			"station_id", telemetry.StationID,
			"error", err,
		)
		return
	}

	if s.handler == nil {
		return
	}

	ctx, cancel := context.WithTimeout(s.base, handlerTimeout)
	defer cancel()
	if err := s.handler(ctx, telemetry); err != nil {
		metrics.MQTTMessagesTotal.WithLabelValues("failed").Inc()
		s.logger.Error("message handler failed",
			"topic", topic,
			"station_id", telemetry.StationID,
			"error", err,
		)
		return
	}
	metrics.MQTTMessagesTotal.WithLabelValues("processed").Inc()
	s.logger.Debug("processed telemetry message",
		"station_id", telemetry.StationID,
		"timestamp", telemetry.Timestamp,
	)
}

func validateTelemetry(t types.Telemetry) error {
	if t.Timestamp.IsZero() {
		return errors.New("timestamp is required")
	}
	return t.Reading().Validate()
}

func clientOptions(cfg config.Config) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort))
	opts.SetClientID(cfg.MQTTClientID)
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	return opts
}

func (s *Subscriber) IsConnected() bool {
	s.mu.RLock()
	connected := s.connected
	s.mu.RUnlock()
	return connected && s.client.IsConnected()
}

// Disconnect stops the subscriber and closes the connection. Safe to call
// more than once.
func (s *Subscriber) Disconnect() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.cancel()
	})

	if s.IsConnected() {
		token := s.client.Unsubscribe(s.topic)
		token.WaitTimeout(2 * time.Second)
	}
	s.client.Disconnect(250)

	s.setConnected(false)
	s.logger.Info("mqtt subscriber disconnected")
}

func (s *Subscriber) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}
