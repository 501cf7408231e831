package dispatch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/staykit/staykit/internal/staykit"
)

func TestWebhookSenderDispatch(t *testing.T) {
	var gotMethod, gotHeader string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotHeader = r.Header.Get("X-Source")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, `{"received": true}`)
	}))
	defer srv.Close()

	sender := &WebhookSender{Client: srv.Client()}
	output, err := sender.Dispatch(context.Background(), map[string]any{
		"url":     srv.URL,
		"body":    map[string]any{"subject": "res-1"},
		"headers": map[string]any{"X-Source": "automation"},
	})
	if err != nil {
		t.Fatalf("Dispatch returned unexpected error: %v", err)
	}

	if gotMethod != http.MethodPost {
		t.Errorf("method = %q, want POST default", gotMethod)
	}
	if gotHeader != "automation" {
		t.Errorf("X-Source = %q", gotHeader)
	}
	var payload map[string]any
	if err := json.Unmarshal(gotBody, &payload); err != nil || payload["subject"] != "res-1" {
		t.Errorf("body = %s", gotBody)
	}

	if output["statusCode"] != http.StatusOK {
		t.Errorf("statusCode = %v", output["statusCode"])
	}
	if body, _ := output["body"].(string); !strings.Contains(body, "received") {
		t.Errorf("body output = %v", output["body"])
	}
}

func TestWebhookSenderCustomMethodAndStringBody(t *testing.T) {
	var gotMethod string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotBody, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	sender := &WebhookSender{Client: srv.Client()}
	if _, err := sender.Dispatch(context.Background(), map[string]any{
		"url":    srv.URL,
		"method": "put",
		"body":   "raw payload",
	}); err != nil {
		t.Fatalf("Dispatch returned unexpected error: %v", err)
	}
	if gotMethod != http.MethodPut {
		t.Errorf("method = %q, want PUT", gotMethod)
	}
	if string(gotBody) != "raw payload" {
		t.Errorf("body = %q", gotBody)
	}
}

func TestWebhookSenderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	sender := &WebhookSender{Client: srv.Client()}
	output, err := sender.Dispatch(context.Background(), map[string]any{"url": srv.URL})
	if err == nil {
		t.Fatal("error = nil, want failure for 502")
	}
	if output["statusCode"] != http.StatusBadGateway {
		t.Errorf("statusCode = %v, want 502 preserved in output", output["statusCode"])
	}
}

func TestWebhookSenderMissingURL(t *testing.T) {
	sender := &WebhookSender{}
	if _, err := sender.Dispatch(context.Background(), map[string]any{}); err == nil {
		t.Fatal("error = nil, want missing url failure")
	}
}

func TestRegistryRoutesByActionType(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&WebhookSender{})

	if _, err := registry.Get(staykit.ActionWebhook); err != nil {
		t.Errorf("Get(webhook) returned unexpected error: %v", err)
	}
	if _, err := registry.Get(staykit.ActionSendMessage); err == nil {
		t.Error("Get(send_message) = nil error, want unregistered failure")
	}
}
