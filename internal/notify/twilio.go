package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// MaxSMSLength is the single-segment limit; longer bodies are cut with "...".
const MaxSMSLength = 160

type TwilioConfig struct {
	BaseURL    string
	AccountSID string
	AuthToken  string
	FromNumber string
}

func (c TwilioConfig) complete() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.FromNumber != ""
}

type twilioMessage struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

type twilioError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// TwilioSender posts SMS messages to the Twilio Messages API.
type TwilioSender struct {
	client *resty.Client
	cfg    TwilioConfig
}

// NewTwilioSender returns nil when credentials are incomplete, which the
// dispatcher treats as an unconfigured channel.
func NewTwilioSender(cfg TwilioConfig) *TwilioSender {
	if !cfg.complete() {
		return nil
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(10*time.Second).
		SetBasicAuth(cfg.AccountSID, cfg.AuthToken).
		SetHeader("Accept", "application/json")
	return &TwilioSender{client: client, cfg: cfg}
}

func (s *TwilioSender) Channel() string { return ChannelSMS }

// Send makes a single attempt and is never retried.
func (s *TwilioSender) Send(ctx context.Context, to string, msg Message) error {
	var (
		result  twilioMessage
		failure twilioError
	)
	resp, err := s.client.R().
		SetContext(ctx).
		SetPathParam("sid", s.cfg.AccountSID).
		SetFormData(map[string]string{
			"To":   to,
			"From": s.cfg.FromNumber,
			"Body": TruncateSMS(msg.Short),
		}).
		SetResult(&result).
		SetError(&failure).
		Post("/2010-04-01/Accounts/{sid}/Messages.json")
	if err != nil {
		return fmt.Errorf("twilio request: %w", err)
	}
	if resp.IsError() {
		if failure.Message != "" {
			return fmt.Errorf("twilio returned %d: %s (code %d)", resp.StatusCode(), failure.Message, failure.Code)
		}
		return fmt.Errorf("twilio returned %d", resp.StatusCode())
	}
	return nil
}

// TruncateSMS cuts body to MaxSMSLength runes.
func TruncateSMS(body string) string {
	r := []rune(body)
	if len(r) <= MaxSMSLength {
		return body
	}
	return string(r[:MaxSMSLength-3]) + "..."
}
