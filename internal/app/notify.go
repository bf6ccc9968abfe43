package app

import (
	"log/slog"

	"github.com/gameguyr/tempest/internal/config"
	"github.com/gameguyr/tempest/internal/notify"
)

// NewDispatcher builds the notification dispatcher from config. Channels
// without credentials are left nil and reported as not configured at send time.
func NewDispatcher(cfg config.Config, logger *slog.Logger) *notify.Dispatcher {
	var email, sms notify.Sender

	if cfg.SMTPHost != "" {
		email = notify.NewSMTPSender(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.NotifyFromEmail,
			FromName: cfg.NotifyFromName,
		})
	} else {
		logger.Warn("smtp not configured, email notifications disabled")
	}

	if cfg.TwilioEnabled {
		// A nil *TwilioSender must not be stored in the interface.
		if s := notify.NewTwilioSender(notify.TwilioConfig{
			BaseURL:    cfg.TwilioBaseURL,
			AccountSID: cfg.TwilioAccountSID,
			AuthToken:  cfg.TwilioAuthToken,
			FromNumber: cfg.TwilioFromNumber,
		}); s != nil {
			sms = s
		} else {
			logger.Warn("twilio enabled but credentials incomplete, sms notifications disabled")
		}
	}

	return notify.NewDispatcher(email, sms, logger)
}
