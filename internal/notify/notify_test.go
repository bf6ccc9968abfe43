package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"net/smtp"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gameguyr/tempest/internal/modules/alerts/types"
	weathertypes "github.com/gameguyr/tempest/internal/modules/weather/types"
)

var readingAt = time.Date(2025, 7, 1, 14, 5, 9, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAlert(nt types.NotificationType, station *string) types.Alert {
	return types.Alert{
		ID:               4,
		Name:             "Roof heat",
		StationID:        station,
		Metric:           types.MetricTemperature,
		Operator:         types.OpGreaterThan,
		Threshold:        30,
		NotificationType: nt,
		UserEmail:        "ops@example.com",
		UserPhone:        "+15551234567",
		Enabled:          true,
		CooldownMinutes:  60,
	}
}

type fakeSender struct {
	channel string
	err     error
	sent    []string
	msgs    []Message
}

func (f *fakeSender) Channel() string { return f.channel }

func (f *fakeSender) Send(_ context.Context, to string, msg Message) error {
	f.sent = append(f.sent, to)
	f.msgs = append(f.msgs, msg)
	return f.err
}

func TestRender(t *testing.T) {
	station := "roof"
	reading := weathertypes.Reading{StationID: station, Timestamp: readingAt}

	msg, err := Render(testAlert(types.NotifyBoth, &station), reading, 32.5)
	require.NoError(t, err)

	assert.Equal(t, "Weather Alert: Roof heat", msg.Subject)
	assert.Equal(t, "ALERT: Roof heat | Temperature: 32.5°C > 30.0°C | Station: roof", msg.Short)
	assert.Contains(t, msg.HTML, "<strong>Station:</strong> roof")
	assert.Contains(t, msg.HTML, "32.50 °C")
	assert.Contains(t, msg.HTML, "Jul 01, 2025 14:05:09")
	assert.Contains(t, msg.Text, "Condition: Temperature > 30 °C")
}

func TestRender_GlobalAndEscaping(t *testing.T) {
	a := testAlert(types.NotifyEmail, nil)
	a.Name = "<b>hot</b>"
	msg, err := Render(a, weathertypes.Reading{StationID: "roof", Timestamp: readingAt}, 31)
	require.NoError(t, err)

	assert.Contains(t, msg.HTML, "All Stations")
	assert.Contains(t, msg.HTML, "&lt;b&gt;hot&lt;/b&gt;")
	assert.True(t, strings.HasSuffix(msg.Short, "| Station: All"))
}

func TestTruncateSMS(t *testing.T) {
	short := strings.Repeat("a", MaxSMSLength)
	assert.Equal(t, short, TruncateSMS(short))

	long := strings.Repeat("b", 200)
	got := TruncateSMS(long)
	assert.Len(t, got, MaxSMSLength)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, strings.Repeat("b", 157), got[:157])
}

func TestDispatch_Outcomes(t *testing.T) {
	station := "roof"
	reading := weathertypes.Reading{StationID: station, Timestamp: readingAt}
	boom := errors.New("relay refused")

	tests := []struct {
		name       string
		nt         types.NotificationType
		email, sms Sender
		wantStatus types.NotificationStatus
		wantEmail  *bool
		wantSMS    *bool
		wantErr    string
	}{
		{
			name:       "email ok",
			nt:         types.NotifyEmail,
			email:      &fakeSender{channel: ChannelEmail},
			wantStatus: types.StatusSent,
			wantEmail:  boolPtr(true),
		},
		{
			name:       "sms not configured",
			nt:         types.NotifySMS,
			email:      &fakeSender{channel: ChannelEmail},
			wantStatus: types.StatusFailed,
			wantSMS:    boolPtr(false),
			wantErr:    "sms: channel not configured",
		},
		{
			name:       "both with sms failure",
			nt:         types.NotifyBoth,
			email:      &fakeSender{channel: ChannelEmail},
			sms:        &fakeSender{channel: ChannelSMS, err: boom},
			wantStatus: types.StatusPartial,
			wantEmail:  boolPtr(true),
			wantSMS:    boolPtr(false),
			wantErr:    "relay refused",
		},
		{
			name:       "both fail",
			nt:         types.NotifyBoth,
			email:      &fakeSender{channel: ChannelEmail, err: boom},
			wantStatus: types.StatusFailed,
			wantEmail:  boolPtr(false),
			wantSMS:    boolPtr(false),
			wantErr:    "channel not configured",
		},
		{
			name:       "both ok",
			nt:         types.NotifyBoth,
			email:      &fakeSender{channel: ChannelEmail},
			sms:        &fakeSender{channel: ChannelSMS},
			wantStatus: types.StatusSent,
			wantEmail:  boolPtr(true),
			wantSMS:    boolPtr(true),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDispatcher(tt.email, tt.sms, quietLogger())
			out := d.Dispatch(context.Background(), testAlert(tt.nt, &station), reading, 33)

			assert.Equal(t, tt.wantStatus, out.Status)
			assert.Equal(t, tt.wantEmail, out.EmailSent)
			assert.Equal(t, tt.wantSMS, out.SMSSent)
			assert.Equal(t, tt.wantStatus == types.StatusSent, out.Delivered())
			if tt.wantErr == "" {
				assert.NoError(t, out.Err)
			} else {
				assert.ErrorContains(t, out.Err, tt.wantErr)
			}
		})
	}
}

func TestDispatch_UsesContacts(t *testing.T) {
	email := &fakeSender{channel: ChannelEmail}
	sms := &fakeSender{channel: ChannelSMS}
	d := NewDispatcher(email, sms, quietLogger())

	out := d.Dispatch(context.Background(), testAlert(types.NotifyBoth, nil), weathertypes.Reading{Timestamp: readingAt}, 40)
	require.NoError(t, out.Err)
	assert.Equal(t, []string{"ops@example.com"}, email.sent)
	assert.Equal(t, []string{"+15551234567"}, sms.sent)
	assert.Equal(t, "Weather Alert: Roof heat", email.msgs[0].Subject)
}

func TestDispatch_MissingRecipient(t *testing.T) {
	email := &fakeSender{channel: ChannelEmail}
	a := testAlert(types.NotifyEmail, nil)
	a.UserEmail = ""

	out := NewDispatcher(email, nil, quietLogger()).Dispatch(context.Background(), a, weathertypes.Reading{Timestamp: readingAt}, 40)
	assert.Equal(t, types.StatusFailed, out.Status)
	assert.ErrorContains(t, out.Err, "no recipient")
	assert.Empty(t, email.sent)
}

func TestSMTPSender_Compose(t *testing.T) {
	var (
		gotAddr string
		gotFrom string
		gotTo   []string
		gotMsg  []byte
	)
	s := NewSMTPSender(SMTPConfig{Host: "mail.local", Port: 2525, From: "alerts@example.com", FromName: "Tempest Weather"})
	s.now = func() time.Time { return readingAt }
	s.sendMail = func(_ context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		assert.Nil(t, a, "no auth without username")
		return nil
	}

	err := s.Send(context.Background(), "ops@example.com", Message{Subject: "Weather Alert: Hot", Text: "plain body", HTML: "<p>html body</p>"})
	require.NoError(t, err)
	assert.Equal(t, "mail.local:2525", gotAddr)
	assert.Equal(t, "alerts@example.com", gotFrom)
	assert.Equal(t, []string{"ops@example.com"}, gotTo)

	parsed, err := mail.ReadMessage(strings.NewReader(string(gotMsg)))
	require.NoError(t, err)
	assert.Equal(t, "Weather Alert: Hot", decodeHeader(t, parsed.Header.Get("Subject")))
	from, err := parsed.Header.AddressList("From")
	require.NoError(t, err)
	assert.Equal(t, "Tempest Weather", from[0].Name)

	mediaType, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/alternative", mediaType)

	mr := multipart.NewReader(parsed.Body, params["boundary"])
	var bodies []string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		b, err := io.ReadAll(p)
		require.NoError(t, err)
		bodies = append(bodies, string(b))
	}
	assert.Equal(t, []string{"plain body", "<p>html body</p>"}, bodies)
}

func TestSMTPSender_Error(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "mail.local", Port: 25, From: "a@example.com", Username: "u", Password: "p"})
	s.sendMail = func(context.Context, string, smtp.Auth, string, []string, []byte) error { return errors.New("421 try later") }

	err := s.Send(context.Background(), "ops@example.com", Message{Subject: "x"})
	assert.ErrorContains(t, err, "421 try later")
}

func TestSMTPSender_StalledRelay(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	// Accept connections but never send the 220 greeting.
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				_, _ = io.Copy(io.Discard, conn)
				_ = conn.Close()
			}()
		}
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	s := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: port, From: "alerts@example.com"})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = s.Send(ctx, "ops@example.com", Message{Subject: "x", Text: "y"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second, "send must return once ctx expires")
}

func TestTwilioSender(t *testing.T) {
	var gotPath, gotUser, gotPass string
	var gotForm map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, gotPass, _ = r.BasicAuth()
		assert.NoError(t, r.ParseForm())
		gotForm = map[string]string{"To": r.PostForm.Get("To"), "From": r.PostForm.Get("From"), "Body": r.PostForm.Get("Body")}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"sid":"SM123","status":"queued"}`)
	}))
	defer srv.Close()

	s := NewTwilioSender(TwilioConfig{BaseURL: srv.URL, AccountSID: "AC1", AuthToken: "tok", FromNumber: "+15550000000"})
	require.NotNil(t, s)

	err := s.Send(context.Background(), "+15551234567", Message{Short: strings.Repeat("x", 170)})
	require.NoError(t, err)
	assert.Equal(t, "/2010-04-01/Accounts/AC1/Messages.json", gotPath)
	assert.Equal(t, "AC1", gotUser)
	assert.Equal(t, "tok", gotPass)
	assert.Equal(t, "+15551234567", gotForm["To"])
	assert.Equal(t, "+15550000000", gotForm["From"])
	assert.Len(t, gotForm["Body"], MaxSMSLength)
}

func TestTwilioSender_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"code":21211,"message":"The 'To' number is not a valid phone number."}`)
	}))
	defer srv.Close()

	s := NewTwilioSender(TwilioConfig{BaseURL: srv.URL, AccountSID: "AC1", AuthToken: "tok", FromNumber: "+15550000000"})
	err := s.Send(context.Background(), "+1", Message{Short: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "twilio returned 400")
	assert.Contains(t, err.Error(), "21211")
}

func TestTwilioSender_ServerErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewTwilioSender(TwilioConfig{BaseURL: srv.URL, AccountSID: "AC1", AuthToken: "tok", FromNumber: "+15550000000"})
	err := s.Send(context.Background(), "+15551234567", Message{Short: "hi"})
	assert.ErrorContains(t, err, "twilio returned 500")
	assert.Equal(t, int32(1), calls.Load(), "a failed send must not be repeated")
}

func TestNewTwilioSender_Incomplete(t *testing.T) {
	assert.Nil(t, NewTwilioSender(TwilioConfig{BaseURL: "http://x", AccountSID: "AC1"}))
}

func boolPtr(b bool) *bool { return &b }

func decodeHeader(t *testing.T, s string) string {
	t.Helper()
	out, err := new(mime.WordDecoder).DecodeHeader(s)
	require.NoError(t, err)
	return out
}
