package notify

import (
	"bytes"
	htmltemplate "html/template"
	"text/template"

	"github.com/gameguyr/tempest/internal/modules/alerts/types"
	weathertypes "github.com/gameguyr/tempest/internal/modules/weather/types"
)

const timestampLayout = "Jan 02, 2006 15:04:05"

var subjectTmpl = template.Must(template.New("subject").Parse(`Weather Alert: {{.Name}}`))

var smsTmpl = template.Must(template.New("sms").Parse(
	`ALERT: {{.Name}} | {{.Metric}}: {{printf "%.1f" .Actual}}{{.Unit}} {{.Symbol}} {{printf "%.1f" .Threshold}}{{.Unit}} | Station: {{.ShortStation}}`,
))

var emailTmpl = htmltemplate.Must(htmltemplate.New("email").Parse(`<html>
<body style="font-family: Arial, sans-serif; color: #333; max-width: 600px; margin: 0 auto;">
  <div style="background: #5a67d8; padding: 30px; text-align: center; border-radius: 8px 8px 0 0;">
    <h1 style="color: white; margin: 0; font-size: 28px;">Weather Alert</h1>
  </div>
  <div style="background: #f7f7f7; padding: 30px; border-radius: 0 0 8px 8px;">
    <div style="background: white; padding: 25px; border-radius: 8px;">
      <h2 style="color: #e53e3e; margin-top: 0;">{{.Name}}</h2>
      <p><strong>Station:</strong> {{.Station}}</p>
      <p><strong>Condition:</strong> {{.Metric}} {{.Symbol}} {{.Threshold}} {{.Unit}}</p>
      <p style="font-size: 18px; padding: 15px; background: #fff3cd; border-left: 4px solid #ffc107;">
        <strong>Current Value:</strong> <span style="color: #e53e3e;">{{printf "%.2f" .Actual}} {{.Unit}}</span>
      </p>
      <p style="font-size: 14px; color: #666;"><strong>Time:</strong> {{.Time}}</p>
    </div>
    <p style="font-size: 12px; color: #999; text-align: center;">This is an automated alert from your Tempest weather station service.</p>
  </div>
</body>
</html>`))

var emailTextTmpl = template.Must(template.New("email-text").Parse(`Weather Alert: {{.Name}}

Station: {{.Station}}
Condition: {{.Metric}} {{.Symbol}} {{.Threshold}} {{.Unit}}
Current Value: {{printf "%.2f" .Actual}} {{.Unit}}
Time: {{.Time}}
`))

type messageData struct {
	Name         string
	Station      string
	ShortStation string
	Metric       string
	Unit         string
	Symbol       string
	Threshold    float64
	Actual       float64
	Time         string
}

// Render builds every body a triggered alert can be delivered with.
func Render(alert types.Alert, reading weathertypes.Reading, actual float64) (Message, error) {
	data := messageData{
		Name:         alert.Name,
		Station:      alert.StationLabel(),
		ShortStation: "All",
		Metric:       alert.Metric.DisplayName(),
		Unit:         alert.Metric.Unit(),
		Symbol:       alert.Operator.Symbol(),
		Threshold:    alert.Threshold,
		Actual:       actual,
		Time:         reading.Timestamp.UTC().Format(timestampLayout),
	}
	if !alert.IsGlobal() {
		data.ShortStation = *alert.StationID
	}

	var subject, text, html, short bytes.Buffer
	if err := subjectTmpl.Execute(&subject, data); err != nil {
		return Message{}, err
	}
	if err := emailTextTmpl.Execute(&text, data); err != nil {
		return Message{}, err
	}
	if err := emailTmpl.Execute(&html, data); err != nil {
		return Message{}, err
	}
	if err := smsTmpl.Execute(&short, data); err != nil {
		return Message{}, err
	}
	return Message{
		Subject: subject.String(),
		Text:    text.String(),
		HTML:    html.String(),
		Short:   short.String(),
	}, nil
}
