// Package notify delivers alert notifications over email and SMS.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gameguyr/tempest/internal/metrics"
	"github.com/gameguyr/tempest/internal/modules/alerts/types"
	weathertypes "github.com/gameguyr/tempest/internal/modules/weather/types"
)

const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

var ErrNotConfigured = errors.New("channel not configured")

// Message is one rendered notification. Email uses Subject, Text and HTML;
// SMS uses Short.
type Message struct {
	Subject string
	Text    string
	HTML    string
	Short   string
}

// Sender delivers a message to a single contact on one channel.
type Sender interface {
	Channel() string
	Send(ctx context.Context, to string, msg Message) error
}

// Outcome is the result of dispatching one alert. EmailSent and SMSSent stay
// nil for channels the alert did not ask for.
type Outcome struct {
	EmailSent *bool
	SMSSent   *bool
	Status    types.NotificationStatus
	Err       error
}

// Delivered reports whether every attempted channel succeeded.
func (o Outcome) Delivered() bool {
	return o.Status == types.StatusSent
}

// Dispatcher fans an alert out to the channels its notification type names.
// A nil sender means that channel is not configured.
type Dispatcher struct {
	email  Sender
	sms    Sender
	logger *slog.Logger
}

func NewDispatcher(email, sms Sender, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{email: email, sms: sms, logger: logger.With("component", "notify")}
}

func (d *Dispatcher) Dispatch(ctx context.Context, alert types.Alert, reading weathertypes.Reading, actual float64) Outcome {
	msg, err := Render(alert, reading, actual)
	if err != nil {
		return Outcome{Status: types.StatusFailed, Err: fmt.Errorf("render notification: %w", err)}
	}

	var (
		out                  Outcome
		errs                 []error
		attempted, succeeded int
	)
	if alert.NotificationType.WantsEmail() {
		ok, err := d.deliver(ctx, d.email, ChannelEmail, alert.UserEmail, msg)
		out.EmailSent = &ok
		attempted++
		if ok {
			succeeded++
		} else {
			errs = append(errs, err)
		}
	}
	if alert.NotificationType.WantsSMS() {
		ok, err := d.deliver(ctx, d.sms, ChannelSMS, alert.UserPhone, msg)
		out.SMSSent = &ok
		attempted++
		if ok {
			succeeded++
		} else {
			errs = append(errs, err)
		}
	}

	switch {
	case attempted > 0 && succeeded == attempted:
		out.Status = types.StatusSent
	case succeeded > 0:
		out.Status = types.StatusPartial
	default:
		out.Status = types.StatusFailed
	}
	if attempted == 0 {
		errs = append(errs, fmt.Errorf("unknown notification type %q", alert.NotificationType))
	}
	out.Err = errors.Join(errs...)
	return out
}

func (d *Dispatcher) deliver(ctx context.Context, s Sender, channel, to string, msg Message) (bool, error) {
	var err error
	switch {
	case s == nil:
		err = ErrNotConfigured
	case to == "":
		err = errors.New("no recipient")
	default:
		start := time.Now()
		err = s.Send(ctx, to, msg)
		metrics.NotificationDuration.WithLabelValues(channel).Observe(time.Since(start).Seconds())
	}

	if err != nil {
		metrics.NotificationsTotal.WithLabelValues(channel, "failed").Inc()
		d.logger.Warn("notification failed", "channel", channel, "to", to, "error", err)
		return false, fmt.Errorf("%s: %w", channel, err)
	}
	metrics.NotificationsTotal.WithLabelValues(channel, "sent").Inc()
	d.logger.Info("notification sent", "channel", channel, "to", to)
	return true, nil
}
