package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/staykit/staykit/internal/dispatch"
	"github.com/staykit/staykit/internal/staykit"
	"github.com/staykit/staykit/internal/staykit/ports"
)

// stepOutcome tracks the outcome of the last executed (not skipped) step
// for condition gating.
type stepOutcome string

const (
	outcomeNone    stepOutcome = "none"
	outcomeSuccess stepOutcome = "success"
	outcomeFailed  stepOutcome = "failed"
)

// ChainExecutor walks a rule's ordered action chain: condition gates,
// template substitution, sender dispatch with a per-step timeout, and
// per-step outcome recording. Steps run strictly sequentially so later
// steps can read earlier outputs.
type ChainExecutor struct {
	senders   *dispatch.Registry
	templates ports.TemplateRegistry
	timeout   time.Duration
}

func NewChainExecutor(senders *dispatch.Registry, templates ports.TemplateRegistry, timeout time.Duration) *ChainExecutor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ChainExecutor{senders: senders, templates: templates, timeout: timeout}
}

// Execute runs one attempt of the rule's chain for an occurrence and
// returns the execution record. The caller owns persistence of the
// record and any retry scheduling.
func (e *ChainExecutor) Execute(ctx context.Context, rule *staykit.AutomationRule, occ staykit.TriggerOccurrence, res *staykit.Reservation, payload map[string]any, attempt int) *staykit.ExecutionRecord {
	start := time.Now()

	steps := make([]staykit.ActionStep, len(rule.Actions))
	copy(steps, rule.Actions)
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Order < steps[j].Order })

	execCtx := BuildContext(res, payload)
	last := outcomeNone
	aborted := false
	optionalFailed := false
	var chainErr *string

	results := make([]staykit.StepResult, 0, len(steps))
	for _, step := range steps {
		if aborted {
			results = append(results, staykit.StepResult{
				StepID: step.ID, Status: staykit.StepSkipped, SkipReason: "chain aborted",
			})
			continue
		}
		if !shouldRun(step.Condition, last) {
			results = append(results, staykit.StepResult{
				StepID: step.ID, Status: staykit.StepSkipped, SkipReason: "condition not met",
			})
			continue
		}

		result := e.runStep(ctx, rule, step, execCtx)
		results = append(results, result)

		if result.Status == staykit.StepFailed {
			last = outcomeFailed
			if step.ContinueOnError {
				optionalFailed = true
				continue
			}
			aborted = true
			chainErr = result.Error
			continue
		}

		last = outcomeSuccess
		MergeStepOutput(execCtx, step.ID, result.Output)
	}

	status := staykit.ChainSuccess
	switch {
	case aborted:
		status = staykit.ChainFailed
	case optionalFailed:
		status = staykit.ChainPartial
	}

	return &staykit.ExecutionRecord{
		ID:           staykit.GenerateID("exec"),
		RuleID:       rule.ID,
		SubjectID:    occ.SubjectID,
		Bucket:       occ.Bucket,
		Attempt:      attempt,
		TriggerKind:  rule.Trigger.Kind,
		Status:       status,
		StepResults:  results,
		ErrorMessage: chainErr,
		DurationMs:   time.Since(start).Milliseconds(),
		CreatedAt:    time.Now(),
	}
}

// shouldRun evaluates a step's condition against the last executed
// outcome. The condition is ignored while nothing has executed yet.
func shouldRun(cond staykit.StepCondition, last stepOutcome) bool {
	if last == outcomeNone {
		return true
	}
	switch cond {
	case staykit.CondPreviousSuccess:
		return last == outcomeSuccess
	case staykit.CondPreviousFailed:
		return last == outcomeFailed
	default: // always, or unset
		return true
	}
}

func (e *ChainExecutor) runStep(ctx context.Context, rule *staykit.AutomationRule, step staykit.ActionStep, execCtx map[string]any) staykit.StepResult {
	result := staykit.StepResult{StepID: step.ID}

	rendered, unresolved := RenderConfig(step.Config, execCtx)
	for _, token := range unresolved {
		result.Warnings = append(result.Warnings, "unresolved placeholder {{"+token+"}}")
	}
	if len(unresolved) > 0 {
		slog.Warn("executor: unresolved placeholders",
			"rule", rule.ID, "step", step.ID, "tokens", unresolved)
	}

	// Named templates resolve through the registry before dispatch.
	if step.Type == staykit.ActionSendMessage {
		if id, _ := rendered["template_id"].(string); id != "" {
			text, err := e.templates.Render(id, execCtx)
			if err != nil {
				return failStep(result, &staykit.DispatchError{StepID: step.ID, Type: step.Type, Err: err})
			}
			rendered["text"] = text
		}
	}

	sender, err := e.senders.Get(step.Type)
	if err != nil {
		return failStep(result, &staykit.DispatchError{StepID: step.ID, Type: step.Type, Err: err})
	}

	stepCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	output, err := sender.Dispatch(stepCtx, rendered)
	if err != nil {
		if stepCtx.Err() != nil {
			err = fmt.Errorf("timed out after %s: %w", e.timeout, err)
		}
		slog.Warn("executor: step dispatch failed",
			"rule", rule.ID, "step", step.ID, "type", step.Type, "err", err)
		return failStep(result, &staykit.DispatchError{StepID: step.ID, Type: step.Type, Err: err})
	}

	result.Status = staykit.StepSuccess
	result.Output = output
	return result
}

func failStep(result staykit.StepResult, err error) staykit.StepResult {
	msg := err.Error()
	result.Status = staykit.StepFailed
	result.Error = &msg
	return result
}
