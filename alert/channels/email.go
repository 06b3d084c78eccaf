package channels

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/shieldkit/shieldkit/alert"
)

// Email sends alerts via SMTP with a combined plain+HTML body.
type Email struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// NewEmail creates an Email channel.
func NewEmail(host string, port int, username, password, from string, to []string) *Email {
	return &Email{Host: host, Port: port, Username: username, Password: password, From: from, To: to}
}

func (e *Email) Name() string { return "email" }

func (e *Email) Send(a alert.Alert) alert.Result {
	subject := fmt.Sprintf("[%s] %s", strings.ToUpper(string(a.Severity)), a.Name)
	plain := fmt.Sprintf("%s\n\n%s\n\nSource: %s\nStatus: %s", a.Summary, a.Description, a.Source, a.Status)
	html := fmt.Sprintf("<h3>%s</h3><p>%s</p><p><b>Source:</b> %s</p><p><b>Status:</b> %s</p>",
		a.Name, a.Description, a.Source, a.Status)

	boundary := "shieldkit-alert-boundary"
	body := fmt.Sprintf(
		"Subject: %s\r\nFrom: %s\r\nTo: %s\r\nMIME-Version: 1.0\r\nContent-Type: multipart/alternative; boundary=%s\r\n\r\n"+
			"--%s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s\r\n"+
			"--%s\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s\r\n--%s--\r\n",
		subject, e.From, strings.Join(e.To, ","), boundary,
		boundary, plain,
		boundary, html, boundary,
	)

	var auth smtp.Auth
	if e.Username != "" {
		auth = smtp.PlainAuth("", e.Username, e.Password, e.Host)
	}
	addr := fmt.Sprintf("%s:%d", e.Host, e.Port)
	if err := smtp.SendMail(addr, auth, e.From, e.To, []byte(body)); err != nil {
		return alert.Result{Success: false, Channel: e.Name(), Error: err}
	}
	return alert.Result{Success: true, Channel: e.Name()}
}
