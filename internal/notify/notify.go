// Package notify pushes relay failures and submissions to operator webhooks.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"text/template"
	"time"

	"github.com/devblac/warden/internal/config"
)

// Report is the data passed to senders.
type Report struct {
	Direction string
	Outcome   string
	Window    string
	Event     string
	Function  string
	TxHash    string
	Kind      string
	Error     string
}

type Sender interface {
	Send(ctx context.Context, report Report) error
}

type httpSender struct {
	url     string
	method  string
	render  *template.Template
	client  *http.Client
	headers map[string]string
}

// NewWebhookSender builds a generic HTTP sink.
func NewWebhookSender(url, method, tmpl string, headers map[string]string) (Sender, error) {
	if url == "" {
		return nil, fmt.Errorf("webhook url required")
	}
	if method == "" {
		method = http.MethodPost
	}
	t, err := parseTemplate(tmpl)
	if err != nil {
		return nil, err
	}
	return &httpSender{
		url:     url,
		method:  strings.ToUpper(method),
		render:  t,
		client:  defaultClient(),
		headers: headers,
	}, nil
}

// NewSlackSender builds a Slack-compatible webhook sink.
func NewSlackSender(url, tmpl string) (Sender, error) {
	return NewWebhookSender(url, http.MethodPost, tmpl, map[string]string{
		"Content-Type": "application/json",
	})
}

// NewTeamsSender builds a Teams-compatible webhook sink.
func NewTeamsSender(url, tmpl string) (Sender, error) {
	// Teams accepts simple {text: "..."} payloads.
	return NewWebhookSender(url, http.MethodPost, tmpl, map[string]string{
		"Content-Type": "application/json",
	})
}

// FromConfig builds one sender per configured sink.
func FromConfig(sinks []config.Sink) (Sender, error) {
	var out Fanout
	for _, s := range sinks {
		var (
			sender Sender
			err    error
		)
		switch strings.ToLower(s.Type) {
		case "slack":
			sender, err = NewSlackSender(s.WebhookURL, s.Template)
		case "teams":
			sender, err = NewTeamsSender(s.WebhookURL, s.Template)
		case "webhook":
			sender, err = NewWebhookSender(s.URL, s.Method, s.Template, nil)
		default:
			err = fmt.Errorf("unsupported sink type: %s", s.Type)
		}
		if err != nil {
			return nil, fmt.Errorf("sink %s: %w", s.ID, err)
		}
		out = append(out, sender)
	}
	return out, nil
}

// Fanout sends a report to every sender and joins their errors.
type Fanout []Sender

func (f Fanout) Send(ctx context.Context, report Report) error {
	var errs []error
	for _, s := range f {
		if err := s.Send(ctx, report); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *httpSender) Send(ctx context.Context, report Report) error {
	bodyStr, err := executeTemplate(s.render, report)
	if err != nil {
		return err
	}
	reqBody, err := json.Marshal(map[string]string{
		"text": bodyStr,
	})
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, s.method, s.url, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sink http status %d", resp.StatusCode)
	}
	return nil
}

const defaultTemplate = `warden {{.Direction}} {{.Outcome}}{{if .Event}} event={{.Event}}{{end}} window={{.Window}}` +
	`{{if .TxHash}} tx={{short_hash .TxHash}}{{end}}{{if .Error}} [{{.Kind}}] {{.Error}}{{end}}`

func parseTemplate(tmpl string) (*template.Template, error) {
	if tmpl == "" {
		tmpl = defaultTemplate
	}
	funcs := template.FuncMap{
		"pretty_json": func(v any) string {
			out, _ := json.MarshalIndent(v, "", "  ")
			return string(out)
		},
		"short_hash": func(h string) string {
			if len(h) <= 14 {
				return h
			}
			return h[:8] + "..." + h[len(h)-4:]
		},
	}
	return template.New("msg").Funcs(funcs).Parse(tmpl)
}

func executeTemplate(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return buf.String(), nil
}

func defaultClient() *http.Client {
	return &http.Client{
		Timeout: 8 * time.Second,
	}
}
