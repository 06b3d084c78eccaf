// Package channels provides concrete alert.Channel implementations:
// Slack, PagerDuty, email, generic webhook, and a metrics-only channel.
package channels

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shieldkit/shieldkit/alert"
)

// Slack posts alerts to an incoming webhook URL as a structured
// attachment, colored and emoji-tagged by severity.
type Slack struct {
	WebhookURL string
	Client     *http.Client
}

// NewSlack creates a Slack channel posting to webhookURL.
func NewSlack(webhookURL string) *Slack {
	return &Slack{WebhookURL: webhookURL, Client: &http.Client{Timeout: 5 * time.Second}}
}

func (s *Slack) Name() string { return "slack" }

type slackPayload struct {
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Color string           `json:"color"`
	Title string           `json:"title"`
	Text  string           `json:"text"`
	Ts    int64            `json:"ts"`
	Fields []slackField    `json:"fields,omitempty"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

func severityColor(sev alert.Severity) string {
	switch sev {
	case alert.Critical:
		return "#8B0000"
	case alert.Error:
		return "#D00000"
	case alert.Warning:
		return "#E6B800"
	default:
		return "#2E8B57"
	}
}

func severityEmoji(sev alert.Severity) string {
	switch sev {
	case alert.Critical:
		return ":rotating_light:"
	case alert.Error:
		return ":x:"
	case alert.Warning:
		return ":warning:"
	default:
		return ":information_source:"
	}
}

func (s *Slack) Send(a alert.Alert) alert.Result {
	fields := make([]slackField, 0, len(a.Labels))
	for k, v := range a.Labels {
		fields = append(fields, slackField{Title: k, Value: v, Short: true})
	}

	payload := slackPayload{Attachments: []slackAttachment{{
		Color: severityColor(a.Severity),
		Title: fmt.Sprintf("%s %s", severityEmoji(a.Severity), a.Name),
		Text:  a.Summary,
		Ts:    a.Timestamp.Unix(),
		Fields: fields,
	}}}

	body, err := json.Marshal(payload)
	if err != nil {
		return alert.Result{Success: false, Channel: s.Name(), Error: err}
	}

	resp, err := s.Client.Post(s.WebhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return alert.Result{Success: false, Channel: s.Name(), Error: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return alert.Result{Success: false, Channel: s.Name(), Error: fmt.Errorf("slack: webhook returned %d", resp.StatusCode)}
	}
	return alert.Result{Success: true, Channel: s.Name()}
}
