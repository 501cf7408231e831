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

// Gateway posts JSON requests to the property's operations gateway, the
// service that fronts guest messaging, housekeeping tasks, and staff
// notifications.
type Gateway struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func (g *Gateway) post(ctx context.Context, path string, payload map[string]any) (map[string]any, error) {
	body, _ := json.Marshal(payload)

	url := strings.TrimSuffix(g.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.Token != "" {
		req.Header.Set("Authorization", "Bearer "+g.Token)
	}

	client := g.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("gateway %s returned %d", path, resp.StatusCode)
	}

	output := map[string]any{}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxWebhookResponseBytes))
	if len(data) > 0 {
		if err := json.Unmarshal(data, &output); err != nil {
			return nil, fmt.Errorf("decode gateway response: %w", err)
		}
	}
	return output, nil
}

// MessageSender delivers guest messages through the gateway.
// Config: channel, text (or template_id, resolved by the executor).
type MessageSender struct {
	Gateway *Gateway
}

func (s *MessageSender) Type() staykit.ActionType { return staykit.ActionSendMessage }

func (s *MessageSender) Dispatch(ctx context.Context, config map[string]any) (map[string]any, error) {
	channel, _ := config["channel"].(string)
	text, _ := config["text"].(string)
	if text == "" {
		return nil, fmt.Errorf("send_message config missing text")
	}
	return s.Gateway.post(ctx, "/messages", map[string]any{
		"channel": channel,
		"text":    text,
	})
}

// TaskSender creates operational tasks through the gateway.
// Config: department, description, priority.
type TaskSender struct {
	Gateway *Gateway
}

func (s *TaskSender) Type() staykit.ActionType { return staykit.ActionCreateTask }

func (s *TaskSender) Dispatch(ctx context.Context, config map[string]any) (map[string]any, error) {
	description, _ := config["description"].(string)
	if description == "" {
		return nil, fmt.Errorf("create_task config missing description")
	}
	return s.Gateway.post(ctx, "/tasks", map[string]any{
		"department":  config["department"],
		"description": description,
		"priority":    config["priority"],
	})
}

// StaffNotifySender pushes notifications to staff by role through the
// gateway. Config: role, message, priority.
type StaffNotifySender struct {
	Gateway *Gateway
}

func (s *StaffNotifySender) Type() staykit.ActionType { return staykit.ActionNotifyStaff }

func (s *StaffNotifySender) Dispatch(ctx context.Context, config map[string]any) (map[string]any, error) {
	message, _ := config["message"].(string)
	if message == "" {
		return nil, fmt.Errorf("notify_staff config missing message")
	}
	return s.Gateway.post(ctx, "/notifications", map[string]any{
		"role":     config["role"],
		"message":  message,
		"priority": config["priority"],
	})
}
