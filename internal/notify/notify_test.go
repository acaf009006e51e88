package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/devblac/warden/internal/config"
)

func TestSlackSenderRendersTemplate(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf, _ := io.ReadAll(r.Body)
		got = string(buf)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender, err := NewSlackSender(server.URL, "RELAY {{.Direction}} {{.Event}} {{short_hash .TxHash}}")
	if err != nil {
		t.Fatalf("sender: %v", err)
	}

	err = sender.Send(context.Background(), Report{
		Direction: "source", Event: "source:101:0", TxHash: "0x1234567890abcdef1234",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if !strings.Contains(got, "RELAY source source:101:0 0x123456...1234") {
		t.Fatalf("unexpected payload: %s", got)
	}
}

func TestDefaultTemplateCarriesFailure(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf, _ := io.ReadAll(r.Body)
		got = string(buf)
	}))
	defer server.Close()

	sender, err := NewWebhookSender(server.URL, "", "", nil)
	if err != nil {
		t.Fatalf("sender: %v", err)
	}
	err = sender.Send(context.Background(), Report{
		Direction: "destination", Outcome: "reported", Window: "[10,15]",
		Event: "destination:12:1", Kind: "transient", Error: "submit: deadline exceeded",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	for _, want := range []string{"destination reported", "event=destination:12:1", "window=[10,15]", "[transient]"} {
		if !strings.Contains(got, want) {
			t.Fatalf("payload %s missing %q", got, want)
		}
	}
}

func TestWebhookStatusFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	sender, err := NewWebhookSender(server.URL, http.MethodPost, "msg", nil)
	if err != nil {
		t.Fatalf("sender: %v", err)
	}
	err = sender.Send(context.Background(), Report{Direction: "source"})
	if err == nil {
		t.Fatalf("expected error on 502")
	}
}

func TestFromConfigFansOut(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer server.Close()

	sender, err := FromConfig([]config.Sink{
		{ID: "ops", Type: "slack", WebhookURL: server.URL},
		{ID: "pager", Type: "webhook", URL: server.URL, Method: "POST"},
	})
	if err != nil {
		t.Fatalf("from config: %v", err)
	}
	if err := sender.Send(context.Background(), Report{Direction: "source"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if hits != 2 {
		t.Fatalf("expected 2 deliveries, got %d", hits)
	}

	if _, err := FromConfig([]config.Sink{{ID: "x", Type: "pigeon"}}); err == nil {
		t.Fatalf("expected unsupported sink error")
	}
}
