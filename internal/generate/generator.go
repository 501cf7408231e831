package generate

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/staykit/staykit/internal/staykit"
)

//go:embed prompts/rule-create.md
var createBasePrompt string

// completionClient is the slice of the OpenAI client the generator
// needs; tests substitute a fake.
type completionClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Generator converts natural-language descriptions into automation rule
// drafts. Drafts are always repaired and validated before they are shown
// to a human; they are never persisted enabled.
type Generator struct {
	client    completionClient
	model     string
	templates staykit.TemplateChecker
}

// New creates a Generator against an OpenAI-compatible endpoint.
func New(apiKey, baseURL, model string, templates staykit.TemplateChecker) *Generator {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Generator{
		client:    openai.NewClientWithConfig(cfg),
		model:     model,
		templates: templates,
	}
}

// GenerateDraft produces a repaired rule draft from a description. The
// returned error is a *staykit.ConfigurationError when the draft parsed
// but failed validation; the draft is returned alongside so the caller
// can surface both.
func (g *Generator) GenerateDraft(ctx context.Context, description string) (*staykit.AutomationRule, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: createBasePrompt},
			{Role: openai.ChatMessageRoleUser, Content: description},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("completion call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("completion returned no choices")
	}

	rule, err := ParseDraft(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	// Drafts always arrive disabled; a human flips the switch.
	rule.Enabled = false

	if err := staykit.Validate(rule, g.templates); err != nil {
		return rule, err
	}
	return rule, nil
}

// ParseDraft extracts an automation rule from raw model output: strips
// markdown fences, promotes the legacy single-"action" shape into a
// one-step chain, and normalizes step ids and ordering.
func ParseDraft(raw string) (*staykit.AutomationRule, error) {
	jsonText, err := stripMarkdownJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("parse draft: %w", err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(jsonText), &doc); err != nil {
		return nil, fmt.Errorf("parse draft: %w", err)
	}

	// Legacy shape: a single "action" object instead of "actions".
	if _, hasActions := doc["actions"]; !hasActions {
		if action, hasAction := doc["action"]; hasAction {
			doc["actions"] = json.RawMessage("[" + string(action) + "]")
			delete(doc, "action")
		}
	}

	normalized, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("parse draft: %w", err)
	}

	rule := &staykit.AutomationRule{}
	if err := json.Unmarshal(normalized, rule); err != nil {
		return nil, fmt.Errorf("parse draft: %w", err)
	}

	staykit.RepairDraft(rule)
	return rule, nil
}
