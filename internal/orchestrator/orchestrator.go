package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/adpilot/adpilot/internal/approval"
	"github.com/adpilot/adpilot/internal/audit"
	"github.com/adpilot/adpilot/internal/clarify"
	"github.com/adpilot/adpilot/internal/config"
	"github.com/adpilot/adpilot/internal/domain"
	"github.com/adpilot/adpilot/internal/metrics"
	"github.com/adpilot/adpilot/internal/policy"
	"github.com/adpilot/adpilot/internal/router"
	"github.com/adpilot/adpilot/internal/tools"
)

// Orchestrator drives one conversational turn end to end: route the
// message to a domain, resolve the policy, run the clarifying gate, then
// execute tools under the budget with dangerous calls parked for approval.
type Orchestrator struct {
	router        *router.Router
	registry      *tools.Registry
	approvals     *approval.Service
	model         model.BaseChatModel
	auditLog      *audit.Writer
	runtime       *metrics.RuntimeMetrics
	account       policy.AccountContext
	stack         domain.Stack
	toolBudget    int
	maxIterations int
	now           func() time.Time
}

// New creates an orchestrator. A nil chat model degrades gracefully:
// report intents still run through a deterministic single-call plan.
func New(cfg *config.Config, rt *router.Router, registry *tools.Registry, approvals *approval.Service, chatModel model.BaseChatModel) *Orchestrator {
	budget := cfg.Assistant.ToolBudget
	if budget <= 0 {
		budget = 1
	}
	iterations := cfg.Assistant.MaxToolIterations
	if iterations <= 0 {
		iterations = 20
	}
	return &Orchestrator{
		router:    rt,
		registry:  registry,
		approvals: approvals,
		model:     chatModel,
		account: policy.AccountContext{
			AccountID: cfg.Assistant.AccountID,
			Currency:  cfg.Assistant.Currency,
		},
		stack:         cfg.Stack(),
		toolBudget:    budget,
		maxIterations: iterations,
		now:           time.Now,
	}
}

// SetAuditWriter attaches an audit writer for turn and tool events.
func (o *Orchestrator) SetAuditWriter(w *audit.Writer) {
	o.auditLog = w
}

// SetRuntimeMetrics attaches a runtime metrics recorder.
func (o *Orchestrator) SetRuntimeMetrics(recorder *metrics.RuntimeMetrics) {
	o.runtime = recorder
}

// TurnRequest is one inbound message plus the state carried from the
// previous turns of the same session.
type TurnRequest struct {
	Channel   string
	ChatID    string
	SenderID  string
	RequestID string
	Message   string

	PriorIntent   domain.Intent
	Answers       map[string]clarify.Value
	PendingPlanID string
}

// TurnResult is the envelope plus the state the caller must carry into
// the next turn of the session.
type TurnResult struct {
	Envelope      Envelope
	Intent        domain.Intent
	Answers       map[string]clarify.Value
	PendingPlanID string
}

// HandleTurn processes one message and always returns exactly one envelope.
func (o *Orchestrator) HandleTurn(ctx context.Context, req TurnRequest) (TurnResult, error) {
	if _, err := o.approvals.ExpirePending(); err != nil {
		slog.Warn("expire pending approvals failed", "error", err)
	}

	if strings.TrimSpace(req.PendingPlanID) != "" {
		if result, handled := o.handlePendingPlan(ctx, req); handled {
			return result, nil
		}
		// Plan vanished or was already consumed: fall through to a clean turn.
		req.PendingPlanID = ""
	}

	route := o.router.Route(ctx, req.Message, o.stack)
	if o.runtime != nil {
		if _, err := o.runtime.RecordRoute(route); err != nil {
			slog.Warn("record runtime metrics failed", "scope", "router", "error", err)
		}
	}

	intent := router.DetectIntent(req.Message, route.Domain)
	answers := req.Answers

	// A follow-up that answers a clarifying question rarely re-matches the
	// intent keywords. When no new goal is recognized, the prior intent
	// continues and its answers stay sticky. A new recognized goal resets.
	switch {
	case intent == domain.IntentGeneralChat && req.PriorIntent != "" && req.PriorIntent != domain.IntentGeneralChat:
		intent = req.PriorIntent
		route.Domain = domain.ForIntent(intent)
	case intent != req.PriorIntent:
		answers = nil
	}

	pol := policy.Resolve(intent, route.Domain, o.account, o.stack)

	slog.Info("turn resolved",
		"request_id", req.RequestID,
		"channel", req.Channel,
		"domain", route.Domain,
		"method", route.Method,
		"intent", intent,
		"playbook", pol.PlaybookID,
	)

	state := clarify.Evaluate(clarify.Input{Message: req.Message, Policy: pol, Existing: answers})

	if state.NeedsClarifying {
		env := Envelope{
			Kind:      KindClarifying,
			Questions: state.PendingQuestions,
			Text:      joinPrompts(state.PendingQuestions),
			Domain:    route.Domain,
			Intent:    intent,
			Method:    route.Method,
		}
		o.auditTurn(req, route, intent, env)
		return TurnResult{Envelope: env, Intent: intent, Answers: state.Answers}, nil
	}

	var env Envelope
	var err error
	if pol.UseContextOnly {
		env, err = o.respondFromContext(ctx, req, route, intent)
	} else {
		env, err = o.runTools(ctx, req, pol, state, route)
	}
	if err != nil {
		return TurnResult{}, err
	}
	env.Domain = route.Domain
	env.Intent = intent
	env.Method = route.Method
	o.auditTurn(req, route, intent, env)

	result := TurnResult{Envelope: env, Intent: intent, Answers: state.Answers}
	if env.Kind == KindApprovalRequired {
		result.PendingPlanID = env.PlanID
	}
	if env.Kind == KindResponse {
		// A completed goal does not leak its answers into the next one.
		result.Intent = ""
		result.Answers = nil
	}
	return result, nil
}

// handlePendingPlan resolves a session that is parked on an approval. An
// explicit yes/no in the message decides the plan in-chat; otherwise the
// stored decision (made through the gateway or CLI) is consumed.
func (o *Orchestrator) handlePendingPlan(ctx context.Context, req TurnRequest) (TurnResult, bool) {
	plan, err := o.approvals.Get(req.PendingPlanID)
	if err != nil {
		slog.Warn("pending plan lookup failed", "plan_id", req.PendingPlanID, "error", err)
		return TurnResult{}, false
	}

	switch plan.Status {
	case approval.StatusPending:
		if v, ok := clarify.ExtractFromMessage(req.Message, policy.QuestionConfirmation); ok && v.Confirmed != nil {
			if *v.Confirmed {
				if _, err := o.approvals.Approve(plan.PlanID, approval.DecisionInput{DecidedBy: req.SenderID}); err != nil {
					return TurnResult{Envelope: errorEnvelope(err)}, true
				}
				return o.resumeApproved(ctx, req, plan.PlanID), true
			}
			if _, err := o.approvals.Reject(plan.PlanID, approval.DecisionInput{DecidedBy: req.SenderID}); err != nil {
				return TurnResult{Envelope: errorEnvelope(err)}, true
			}
			return TurnResult{Envelope: Envelope{
				Kind: KindResponse,
				Text: fmt.Sprintf("Действие %s отменено.", plan.ToolName),
			}}, true
		}
		return TurnResult{
			Envelope: Envelope{
				Kind:   KindApprovalRequired,
				PlanID: plan.PlanID,
				Text:   fmt.Sprintf("Действие %s всё ещё ждёт подтверждения (да/нет).", plan.ToolName),
			},
			Intent:        req.PriorIntent,
			Answers:       req.Answers,
			PendingPlanID: plan.PlanID,
		}, true
	case approval.StatusApproved:
		return o.resumeApproved(ctx, req, plan.PlanID), true
	case approval.StatusRejected:
		return TurnResult{Envelope: Envelope{
			Kind: KindResponse,
			Text: fmt.Sprintf("Действие %s было отклонено.", plan.ToolName),
		}}, true
	case approval.StatusExpired:
		return TurnResult{Envelope: Envelope{
			Kind: KindResponse,
			Text: fmt.Sprintf("Запрос на %s истёк, сформулируйте команду заново.", plan.ToolName),
		}}, true
	default:
		// Already executed: nothing left to consume.
		return TurnResult{}, false
	}
}

// resumeApproved runs an approved plan exactly once: the status transition
// to executed happens before the call, so a second resume cannot rerun it.
func (o *Orchestrator) resumeApproved(ctx context.Context, req TurnRequest, planID string) TurnResult {
	plan, err := o.approvals.MarkExecuted(planID)
	if err != nil {
		return TurnResult{Envelope: errorEnvelope(err)}
	}

	toolCtx := o.invocationContext(ctx, req)
	start := o.now()
	output, runErr := o.registry.Execute(toolCtx, plan.ToolName, plan.ParamsJSON)
	o.recordTool(req, plan.ToolName, plan.PlanID, output, o.now().Sub(start), runErr)

	result := ToolResult{Tool: plan.ToolName, Args: plan.ParamsJSON, Output: output}
	text := fmt.Sprintf("Выполнено: %s.\n%s", plan.ToolName, output)
	if runErr != nil {
		result.Error = runErr.Error()
		text = fmt.Sprintf("Действие %s подтверждено, но завершилось ошибкой: %v", plan.ToolName, runErr)
	}

	return TurnResult{Envelope: Envelope{
		Kind:    KindResponse,
		Text:    text,
		PlanID:  plan.PlanID,
		Results: []ToolResult{result},
	}}
}

// respondFromContext answers without tools: general chat and intents whose
// integration is disabled.
func (o *Orchestrator) respondFromContext(ctx context.Context, req TurnRequest, route domain.RouteResult, intent domain.Intent) (Envelope, error) {
	if o.model == nil {
		return Envelope{
			Kind: KindResponse,
			Text: "Могу отвечать по данным подключённых интеграций. Спросите про расходы, лиды или бюджеты.",
		}, nil
	}

	resp, err := o.model.Generate(ctx, []*schema.Message{
		schema.SystemMessage(o.systemPrompt(policy.Policy{Intent: intent}, clarify.State{})),
		schema.UserMessage(req.Message),
	})
	if err != nil {
		return Envelope{}, fmt.Errorf("context response: %w", err)
	}
	return Envelope{Kind: KindResponse, Text: resp.Content}, nil
}

// runTools is the budgeted execution loop. Tool calls run sequentially in
// proposal order; the first dangerous call parks the turn behind an
// approval plan and nothing after it runs.
func (o *Orchestrator) runTools(ctx context.Context, req TurnRequest, pol policy.Policy, state clarify.State, route domain.RouteResult) (Envelope, error) {
	if o.model == nil {
		return o.runDirect(ctx, req, pol, state)
	}

	infos, err := o.registry.GetToolInfos(ctx, pol.AllowedTools)
	if err != nil {
		return Envelope{}, err
	}
	if binder, ok := o.model.(interface {
		BindTools([]*schema.ToolInfo) error
	}); ok {
		if err := binder.BindTools(infos); err != nil {
			return Envelope{}, err
		}
	}

	messages := []*schema.Message{
		schema.SystemMessage(o.systemPrompt(pol, state)),
		schema.UserMessage(req.Message),
	}

	var results []ToolResult
	var finalContent string
	executed := 0
	toolCtx := o.invocationContext(ctx, req)

	// The tool budget only bounds executed calls; the iteration cap bounds
	// model round-trips, so a model that keeps proposing refused calls
	// cannot spin the turn forever.
	for i := 0; i < o.maxIterations; i++ {
		resp, err := o.model.Generate(ctx, messages)
		if err != nil {
			if executed > 0 {
				// Partial data beats a hard failure late in the turn.
				return Envelope{
					Kind:    KindResponse,
					Text:    "Модель недоступна, вот собранные данные:\n" + summarizeResults(results),
					Results: results,
				}, nil
			}
			return Envelope{}, fmt.Errorf("model call: %w", err)
		}

		if resp.Content != "" {
			finalContent = resp.Content
		}
		if len(resp.ToolCalls) == 0 {
			if finalContent == "" {
				finalContent = summarizeResults(results)
			}
			return Envelope{Kind: KindResponse, Text: finalContent, Results: results}, nil
		}
		messages = append(messages, resp)

		for _, tc := range resp.ToolCalls {
			name := tc.Function.Name
			args := tc.Function.Arguments

			if !pol.Allows(name) {
				messages = append(messages, &schema.Message{
					Role:       schema.Tool,
					Content:    "Error: tool is not allowed for this request",
					ToolCallID: tc.ID,
				})
				continue
			}

			if pol.Dangerous(name) {
				plan, err := o.approvals.Create(approval.CreateInput{
					ToolName:   name,
					ParamsJSON: args,
					Reason:     fmt.Sprintf("intent %s: %s", pol.Intent, strings.TrimSpace(req.Message)),
					Channel:    req.Channel,
					ChatID:     req.ChatID,
				})
				if err != nil {
					return Envelope{}, fmt.Errorf("create approval: %w", err)
				}
				return Envelope{
					Kind:    KindApprovalRequired,
					PlanID:  plan.PlanID,
					Text:    fmt.Sprintf("Требуется подтверждение: %s %s. Ответьте да или нет.", name, args),
					Results: results,
				}, nil
			}

			if executed >= o.toolBudget {
				return Envelope{
					Kind:    KindLimitReached,
					Text:    fmt.Sprintf("Лимит в %d вызовов за ход исчерпан. Частичные данные ниже, уточните запрос для продолжения.\n%s", o.toolBudget, summarizeResults(results)),
					Results: results,
				}, nil
			}

			start := o.now()
			output, runErr := o.registry.Execute(toolCtx, name, args)
			executed++
			o.recordTool(req, name, "", output, o.now().Sub(start), runErr)

			result := ToolResult{Tool: name, Args: args, Output: output}
			content := output
			if runErr != nil {
				result.Error = runErr.Error()
				content = "Error: " + runErr.Error()
				if tools.IsFatal(runErr) {
					results = append(results, result)
					return Envelope{
						Kind:    KindResponse,
						Text:    "Интеграция потеряла авторизацию, переподключите аккаунт и повторите запрос.",
						Results: results,
					}, nil
				}
			}
			results = append(results, result)

			messages = append(messages, &schema.Message{
				Role:       schema.Tool,
				Content:    content,
				ToolCallID: tc.ID,
			})
		}
	}

	return Envelope{
		Kind:    KindLimitReached,
		Text:    fmt.Sprintf("Ход остановлен после %d шагов, модель не пришла к ответу. Частичные данные ниже, уточните запрос.\n%s", o.maxIterations, summarizeResults(results)),
		Results: results,
	}, nil
}

// runDirect handles the no-model degradation: report intents map onto a
// single deterministic tool call built from the clarified answers.
func (o *Orchestrator) runDirect(ctx context.Context, req TurnRequest, pol policy.Policy, state clarify.State) (Envelope, error) {
	name, args, ok := directCall(pol.Intent, state.Answers)
	if !ok {
		return Envelope{
			Kind: KindResponse,
			Text: "Для этого действия нужна модель, настройте провайдера в конфигурации.",
		}, nil
	}

	if pol.Dangerous(name) {
		plan, err := o.approvals.Create(approval.CreateInput{
			ToolName:   name,
			ParamsJSON: args,
			Reason:     fmt.Sprintf("intent %s: %s", pol.Intent, strings.TrimSpace(req.Message)),
			Channel:    req.Channel,
			ChatID:     req.ChatID,
		})
		if err != nil {
			return Envelope{}, fmt.Errorf("create approval: %w", err)
		}
		return Envelope{
			Kind:   KindApprovalRequired,
			PlanID: plan.PlanID,
			Text:   fmt.Sprintf("Требуется подтверждение: %s %s. Ответьте да или нет.", name, args),
		}, nil
	}

	toolCtx := o.invocationContext(ctx, req)
	start := o.now()
	output, runErr := o.registry.Execute(toolCtx, name, args)
	o.recordTool(req, name, "", output, o.now().Sub(start), runErr)

	result := ToolResult{Tool: name, Args: args, Output: output}
	if runErr != nil {
		result.Error = runErr.Error()
		if tools.IsFatal(runErr) {
			return Envelope{
				Kind:    KindResponse,
				Text:    "Интеграция потеряла авторизацию, переподключите аккаунт и повторите запрос.",
				Results: []ToolResult{result},
			}, nil
		}
		return Envelope{
			Kind:    KindResponse,
			Text:    fmt.Sprintf("Не удалось выполнить %s: %v", name, runErr),
			Results: []ToolResult{result},
		}, nil
	}

	return Envelope{
		Kind:    KindResponse,
		Text:    output,
		Results: []ToolResult{result},
	}, nil
}

// directCall maps a clarified report intent to one tool invocation.
// Mutating intents need the model to pick concrete entities, so they are
// not mapped here.
func directCall(intent domain.Intent, answers map[string]clarify.Value) (string, string, bool) {
	period := "last_7_days"
	if v, ok := answers["period"]; ok && v.Period != nil {
		period = v.Period.String()
	}

	switch intent {
	case domain.IntentSpendReport:
		return tools.ToolAdsSpendReport, marshalArgs(map[string]any{"period": period}), true
	case domain.IntentROIAnalysis:
		return tools.ToolAdsROIReport, marshalArgs(map[string]any{"period": period}), true
	case domain.IntentTikTokSpendReport:
		return tools.ToolTikTokSpendReport, marshalArgs(map[string]any{"period": period}), true
	case domain.IntentDirectionsOverview:
		return tools.ToolAdsDirectionsOverview, "{}", true
	case domain.IntentLeadsList:
		return tools.ToolCRMLeadsList, "{}", true
	default:
		return "", "", false
	}
}

func marshalArgs(args map[string]any) string {
	raw, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

func (o *Orchestrator) systemPrompt(pol policy.Policy, state clarify.State) string {
	var b strings.Builder
	b.WriteString("Ты ассистент маркетолога: отчёты по рекламе, лиды, бюджеты. Отвечай кратко и по делу, на языке пользователя.")
	if o.account.AccountID != "" {
		fmt.Fprintf(&b, "\nАккаунт: %s, валюта %s.", o.account.AccountID, o.account.Currency)
	}
	if pol.PlaybookID != "" {
		fmt.Fprintf(&b, "\nСценарий: %s.", pol.PlaybookID)
	}
	if len(state.Answers) > 0 {
		b.WriteString("\nУточнённые параметры:")
		for field, value := range state.Answers {
			fmt.Fprintf(&b, " %s=%s", field, value.Describe())
		}
	}
	if len(pol.AllowedTools) > 0 {
		fmt.Fprintf(&b, "\nДоступные инструменты: %s.", strings.Join(pol.AllowedTools, ", "))
	}
	return b.String()
}

func (o *Orchestrator) invocationContext(ctx context.Context, req TurnRequest) context.Context {
	return tools.WithInvocationContext(ctx, tools.InvocationContext{
		Channel:   req.Channel,
		ChatID:    req.ChatID,
		SenderID:  req.SenderID,
		RequestID: req.RequestID,
		SessionID: req.Channel + ":" + req.ChatID,
	})
}

func (o *Orchestrator) recordTool(req TurnRequest, tool, planID, output string, duration time.Duration, runErr error) {
	if o.runtime != nil {
		if _, err := o.runtime.RecordToolExecution(duration, output, runErr); err != nil {
			slog.Warn("record runtime metrics failed", "scope", "tool", "error", err)
		}
	}
	if o.auditLog != nil {
		result := "ok"
		if runErr != nil {
			result = runErr.Error()
		}
		event := audit.Event{
			Time:      o.now().UTC(),
			Type:      "tool_execution",
			RequestID: req.RequestID,
			Channel:   req.Channel,
			Tool:      tool,
			PlanID:    planID,
			Result:    result,
		}
		if err := o.auditLog.Append(event); err != nil {
			slog.Warn("audit append failed", "error", err)
		}
	}
	slog.Info("tool execution finished",
		"request_id", req.RequestID,
		"tool", tool,
		"duration_ms", duration.Milliseconds(),
		"success", runErr == nil,
	)
}

func (o *Orchestrator) auditTurn(req TurnRequest, route domain.RouteResult, intent domain.Intent, env Envelope) {
	if o.auditLog == nil {
		return
	}
	event := audit.Event{
		Time:      o.now().UTC(),
		Type:      "turn",
		RequestID: req.RequestID,
		Channel:   req.Channel,
		Domain:    string(route.Domain),
		Intent:    string(intent),
		PlanID:    env.PlanID,
		Result:    string(env.Kind),
	}
	if route.Usage != nil {
		event.PromptTokens = route.Usage.PromptTokens
		event.CompletionTokens = route.Usage.CompletionTokens
	}
	if err := o.auditLog.Append(event); err != nil {
		slog.Warn("audit append failed", "error", err)
	}
}

func joinPrompts(questions []policy.ClarifyingQuestion) string {
	prompts := make([]string, 0, len(questions))
	for _, q := range questions {
		prompts = append(prompts, q.Prompt)
	}
	return strings.Join(prompts, "\n")
}

func summarizeResults(results []ToolResult) string {
	if len(results) == 0 {
		return "Данных пока нет."
	}
	var b strings.Builder
	for _, r := range results {
		if r.Error != "" {
			fmt.Fprintf(&b, "%s: ошибка (%s)\n", r.Tool, r.Error)
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", r.Tool, r.Output)
	}
	return strings.TrimSpace(b.String())
}

func errorEnvelope(err error) Envelope {
	return Envelope{Kind: KindResponse, Text: "Error: " + err.Error()}
}
