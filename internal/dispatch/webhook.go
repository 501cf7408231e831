package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/staykit/staykit/internal/staykit"
)

const maxWebhookResponseBytes = 64 * 1024

// WebhookSender POSTs (or the configured method) the step's body to an
// arbitrary URL. Config: url (required), method, body, headers.
type WebhookSender struct {
	Client *http.Client
}

func (s *WebhookSender) Type() staykit.ActionType { return staykit.ActionWebhook }

func (s *WebhookSender) Dispatch(ctx context.Context, config map[string]any) (map[string]any, error) {
	url, _ := config["url"].(string)
	if url == "" {
		return nil, fmt.Errorf("webhook config missing url")
	}

	method, _ := config["method"].(string)
	method = strings.ToUpper(method)
	if method == "" {
		method = http.MethodPost
	}

	var reqBody io.Reader
	if body, ok := config["body"]; ok {
		switch b := body.(type) {
		case string:
			reqBody = strings.NewReader(b)
		default:
			encoded, err := json.Marshal(b)
			if err != nil {
				return nil, fmt.Errorf("encode webhook body: %w", err)
			}
			reqBody = bytes.NewReader(encoded)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if headers, ok := config["headers"].(map[string]any); ok {
		for k, v := range headers {
			if s, isStr := v.(string); isStr {
				req.Header.Set(k, s)
			}
		}
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webhook call: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxWebhookResponseBytes))

	output := map[string]any{
		"statusCode": resp.StatusCode,
		"body":       string(respBody),
	}
	if resp.StatusCode >= 400 {
		return output, fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return output, nil
}
