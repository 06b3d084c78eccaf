package channels

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shieldkit/shieldkit/alert"
)

const pagerDutyEventsURL = "https://events.pagerduty.com/v2/enqueue"

// PagerDuty sends alerts via the Events v2 API, using the alert's
// Fingerprint as the dedup_key so a resolved Alert closes the same
// incident it opened.
type PagerDuty struct {
	RoutingKey string
	Client     *http.Client
	eventsURL  string
}

// NewPagerDuty creates a PagerDuty channel for the given integration
// routing key.
func NewPagerDuty(routingKey string) *PagerDuty {
	return &PagerDuty{
		RoutingKey: routingKey,
		Client:     &http.Client{Timeout: 5 * time.Second},
		eventsURL:  pagerDutyEventsURL,
	}
}

func (p *PagerDuty) Name() string { return "pagerduty" }

type pagerDutyEvent struct {
	RoutingKey  string            `json:"routing_key"`
	EventAction string            `json:"event_action"`
	DedupKey    string            `json:"dedup_key"`
	Payload     pagerDutyPayload  `json:"payload"`
}

type pagerDutyPayload struct {
	Summary  string            `json:"summary"`
	Source   string            `json:"source"`
	Severity string            `json:"severity"`
	Custom   map[string]string `json:"custom_details,omitempty"`
}

func pagerDutySeverity(sev alert.Severity) string {
	switch sev {
	case alert.Critical:
		return "critical"
	case alert.Error:
		return "error"
	case alert.Warning:
		return "warning"
	default:
		return "info"
	}
}

func (p *PagerDuty) Send(a alert.Alert) alert.Result {
	action := "trigger"
	if a.Status == alert.Resolved {
		action = "resolve"
	}

	event := pagerDutyEvent{
		RoutingKey:  p.RoutingKey,
		EventAction: action,
		DedupKey:    a.Fingerprint(),
		Payload: pagerDutyPayload{
			Summary:  a.Summary,
			Source:   a.Source,
			Severity: pagerDutySeverity(a.Severity),
			Custom:   a.Labels,
		},
	}

	body, err := json.Marshal(event)
	if err != nil {
		return alert.Result{Success: false, Channel: p.Name(), Error: err}
	}

	resp, err := p.Client.Post(p.eventsURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return alert.Result{Success: false, Channel: p.Name(), Error: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return alert.Result{Success: false, Channel: p.Name(), Error: fmt.Errorf("pagerduty: events API returned %d", resp.StatusCode)}
	}
	return alert.Result{Success: true, Channel: p.Name()}
}
