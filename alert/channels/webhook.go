package channels

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shieldkit/shieldkit/alert"
)

// Webhook POSTs (or sends via a configurable method) the Alert as JSON to
// an arbitrary URL with caller-supplied headers.
type Webhook struct {
	Name_   string
	URL     string
	Method  string
	Headers map[string]string
	Client  *http.Client
}

// NewWebhook creates a generic Webhook channel. name distinguishes it
// from other webhook instances when several are registered.
func NewWebhook(name, url, method string, headers map[string]string) *Webhook {
	if method == "" {
		method = http.MethodPost
	}
	return &Webhook{Name_: name, URL: url, Method: method, Headers: headers, Client: &http.Client{Timeout: 5 * time.Second}}
}

func (w *Webhook) Name() string { return w.Name_ }

func (w *Webhook) Send(a alert.Alert) alert.Result {
	body, err := json.Marshal(a)
	if err != nil {
		return alert.Result{Success: false, Channel: w.Name(), Error: err}
	}

	req, err := http.NewRequest(w.Method, w.URL, bytes.NewReader(body))
	if err != nil {
		return alert.Result{Success: false, Channel: w.Name(), Error: err}
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.Headers {
		req.Header.Set(k, v)
	}

	resp, err := w.Client.Do(req)
	if err != nil {
		return alert.Result{Success: false, Channel: w.Name(), Error: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return alert.Result{Success: false, Channel: w.Name(), Error: fmt.Errorf("webhook: %s returned %d", w.URL, resp.StatusCode)}
	}
	return alert.Result{Success: true, Channel: w.Name()}
}
