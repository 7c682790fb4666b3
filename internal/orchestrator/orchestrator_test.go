package orchestrator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/adpilot/adpilot/internal/approval"
	"github.com/adpilot/adpilot/internal/clarify"
	"github.com/adpilot/adpilot/internal/domain"
	"github.com/adpilot/adpilot/internal/policy"
	"github.com/adpilot/adpilot/internal/router"
	"github.com/adpilot/adpilot/internal/tools"
)

// stubTool records invocations and returns a fixed payload.
type stubTool struct {
	name     string
	output   string
	err      error
	calls    int
	lastArgs string
}

func (s *stubTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{Name: s.name, Desc: "stub"}, nil
}

func (s *stubTool) InvokableRun(ctx context.Context, args string, opts ...tool.Option) (string, error) {
	s.calls++
	s.lastArgs = args
	return s.output, s.err
}

// scriptedModel replays a fixed response sequence, then answers with plain
// text. BindTools is accepted so the orchestrator treats it as tool-capable.
type scriptedModel struct {
	responses []*schema.Message
	calls     int
	bound     []*schema.ToolInfo
}

func (m *scriptedModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.calls++
	if len(m.responses) == 0 {
		return &schema.Message{Role: schema.Assistant, Content: "Готово."}, nil
	}
	resp := m.responses[0]
	m.responses = m.responses[1:]
	return resp, nil
}

func (m *scriptedModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, nil
}

func (m *scriptedModel) BindTools(toolInfos []*schema.ToolInfo) error {
	m.bound = toolInfos
	return nil
}

// loopingModel returns the same response on every call, imitating a model
// that never converges on a plain answer.
type loopingModel struct {
	response *schema.Message
	calls    int
}

func (m *loopingModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.calls++
	return m.response, nil
}

func (m *loopingModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, nil
}

func (m *loopingModel) BindTools(toolInfos []*schema.ToolInfo) error {
	return nil
}

func toolCallMsg(name, args string) *schema.Message {
	return &schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{
			{ID: "call_1", Function: schema.FunctionCall{Name: name, Arguments: args}},
		},
	}
}

func newTestOrchestrator(t *testing.T, chatModel model.BaseChatModel, budget int) *Orchestrator {
	t.Helper()
	return &Orchestrator{
		router:    router.New(router.NewKeywordClassifier()),
		registry:  tools.NewRegistry(0),
		approvals: approval.NewService(t.TempDir()),
		model:     chatModel,
		account:   policy.AccountContext{AccountID: "acc-1", Currency: "RUB"},
		stack: domain.Stack{
			domain.CapabilityFacebook: true,
			domain.CapabilityTikTok:   true,
			domain.CapabilityCRM:      true,
		},
		toolBudget:    budget,
		maxIterations: 10,
		now:           time.Now,
	}
}

func TestHandleTurn_ClarifyingThenDirectReport(t *testing.T) {
	o := newTestOrchestrator(t, nil, 3)
	spend := &stubTool{name: tools.ToolAdsSpendReport, output: "Расходы: 1000 RUB"}
	if err := o.registry.Register(spend); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	// Turn 1: the period is missing, the gate must ask for it.
	first, err := o.HandleTurn(context.Background(), TurnRequest{
		Channel: "cli", ChatID: "direct", SenderID: "user",
		Message: "покажи расходы",
	})
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	if first.Envelope.Kind != KindClarifying {
		t.Fatalf("expected clarifying envelope, got %s", first.Envelope.Kind)
	}
	if len(first.Envelope.Questions) != 1 || first.Envelope.Questions[0].Field != "period" {
		t.Fatalf("expected pending period question, got %+v", first.Envelope.Questions)
	}
	if first.Intent != domain.IntentSpendReport {
		t.Errorf("expected carried intent spend_report, got %s", first.Intent)
	}
	if spend.calls != 0 {
		t.Errorf("no tool may run before the gate passes, got %d calls", spend.calls)
	}

	// Turn 2: the answer alone continues the prior intent and runs the report.
	second, err := o.HandleTurn(context.Background(), TurnRequest{
		Channel: "cli", ChatID: "direct", SenderID: "user",
		Message:     "за 7 дней",
		PriorIntent: first.Intent,
		Answers:     first.Answers,
	})
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	if second.Envelope.Kind != KindResponse {
		t.Fatalf("expected response envelope, got %s", second.Envelope.Kind)
	}
	if spend.calls != 1 {
		t.Fatalf("expected exactly one report call, got %d", spend.calls)
	}
	if !strings.Contains(spend.lastArgs, "last_7_days") {
		t.Errorf("expected clarified period in args, got %q", spend.lastArgs)
	}
	if second.Envelope.Text != "Расходы: 1000 RUB" {
		t.Errorf("unexpected response text: %q", second.Envelope.Text)
	}
	// A completed goal drops its carried state.
	if second.Intent != "" || second.Answers != nil {
		t.Errorf("expected cleared state after completion, got intent=%q answers=%v", second.Intent, second.Answers)
	}
}

func TestHandleTurn_NewIntentResetsAnswers(t *testing.T) {
	o := newTestOrchestrator(t, nil, 3)
	leads := &stubTool{name: tools.ToolCRMLeadsList, output: "Лидов: 5"}
	o.registry.Register(leads)

	week := clarify.Period{Token: clarify.PeriodLast7Days}
	carried := map[string]clarify.Value{
		"period": {Kind: policy.QuestionPeriod, Period: &week},
	}

	result, err := o.HandleTurn(context.Background(), TurnRequest{
		Channel: "cli", ChatID: "direct", SenderID: "user",
		Message:     "покажи лиды",
		PriorIntent: domain.IntentSpendReport,
		Answers:     carried,
	})
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	if result.Envelope.Kind != KindResponse {
		t.Fatalf("expected response, got %s", result.Envelope.Kind)
	}
	if leads.calls != 1 {
		t.Fatalf("expected one leads call, got %d", leads.calls)
	}
	if leads.lastArgs != "{}" {
		t.Errorf("expected empty args after intent switch, got %q", leads.lastArgs)
	}
}

func TestHandleTurn_BudgetIsExact(t *testing.T) {
	chatModel := &scriptedModel{
		responses: []*schema.Message{
			{
				Role: schema.Assistant,
				ToolCalls: []schema.ToolCall{
					{ID: "c1", Function: schema.FunctionCall{Name: tools.ToolAdsSpendReport, Arguments: `{"period":"last_7_days"}`}},
					{ID: "c2", Function: schema.FunctionCall{Name: tools.ToolAdsSpendReport, Arguments: `{"period":"yesterday"}`}},
					{ID: "c3", Function: schema.FunctionCall{Name: tools.ToolAdsSpendReport, Arguments: `{"period":"today"}`}},
				},
			},
		},
	}
	o := newTestOrchestrator(t, chatModel, 2)
	spend := &stubTool{name: tools.ToolAdsSpendReport, output: "ok"}
	o.registry.Register(spend)

	result, err := o.HandleTurn(context.Background(), TurnRequest{
		Channel: "cli", ChatID: "direct", SenderID: "user",
		Message: "покажи расходы за 7 дней",
	})
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	if result.Envelope.Kind != KindLimitReached {
		t.Fatalf("expected limit envelope, got %s", result.Envelope.Kind)
	}
	if spend.calls != 2 {
		t.Errorf("budget of 2 must allow exactly 2 executions, got %d", spend.calls)
	}
	if len(result.Envelope.Results) != 2 {
		t.Errorf("expected 2 partial results, got %d", len(result.Envelope.Results))
	}
}

func TestHandleTurn_IterationCapStopsNonConvergingModel(t *testing.T) {
	// Every proposal is off-policy, so no execution ever consumes the tool
	// budget and only the iteration cap can end the turn.
	chatModel := &loopingModel{
		response: toolCallMsg(tools.ToolCRMLeadStatus, `{"lead_id":"l-1"}`),
	}
	o := newTestOrchestrator(t, chatModel, 2)
	o.maxIterations = 5

	result, err := o.HandleTurn(context.Background(), TurnRequest{
		Channel: "cli", ChatID: "direct", SenderID: "user",
		Message: "расход за 7 дней",
	})
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	if result.Envelope.Kind != KindLimitReached {
		t.Fatalf("expected limit envelope, got %s", result.Envelope.Kind)
	}
	if chatModel.calls != 5 {
		t.Errorf("expected exactly 5 model calls, got %d", chatModel.calls)
	}
	if len(result.Envelope.Results) != 0 {
		t.Errorf("expected no tool results, got %d", len(result.Envelope.Results))
	}
}

func TestHandleTurn_DangerousCallParksForApproval(t *testing.T) {
	chatModel := &scriptedModel{
		responses: []*schema.Message{
			toolCallMsg(tools.ToolAdsPauseDirection, `{"direction_id":"d-1"}`),
		},
	}
	o := newTestOrchestrator(t, chatModel, 3)
	pause := &stubTool{name: tools.ToolAdsPauseDirection, output: "paused"}
	o.registry.Register(pause)

	result, err := o.HandleTurn(context.Background(), TurnRequest{
		Channel: "telegram", ChatID: "42", SenderID: "user-1",
		Message: "останови кампанию",
	})
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	if result.Envelope.Kind != KindApprovalRequired {
		t.Fatalf("expected approval envelope, got %s", result.Envelope.Kind)
	}
	if result.PendingPlanID == "" || result.PendingPlanID != result.Envelope.PlanID {
		t.Fatalf("expected carried plan id, got %q / %q", result.PendingPlanID, result.Envelope.PlanID)
	}
	if pause.calls != 0 {
		t.Fatalf("dangerous tool must not run before approval, got %d calls", pause.calls)
	}

	plan, err := o.approvals.Get(result.PendingPlanID)
	if err != nil {
		t.Fatalf("plan lookup failed: %v", err)
	}
	if plan.Status != approval.StatusPending || plan.ToolName != tools.ToolAdsPauseDirection {
		t.Errorf("unexpected plan: %+v", plan)
	}
	if plan.ParamsJSON != `{"direction_id":"d-1"}` {
		t.Errorf("expected frozen args, got %q", plan.ParamsJSON)
	}
}

func TestHandleTurn_InChatApprovalRunsExactlyOnce(t *testing.T) {
	chatModel := &scriptedModel{
		responses: []*schema.Message{
			toolCallMsg(tools.ToolAdsPauseDirection, `{"direction_id":"d-1"}`),
		},
	}
	o := newTestOrchestrator(t, chatModel, 3)
	pause := &stubTool{name: tools.ToolAdsPauseDirection, output: "paused"}
	o.registry.Register(pause)

	parked, err := o.HandleTurn(context.Background(), TurnRequest{
		Channel: "telegram", ChatID: "42", SenderID: "user-1",
		Message: "останови кампанию",
	})
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}

	// "да" in-chat approves and resumes immediately.
	resumed, err := o.HandleTurn(context.Background(), TurnRequest{
		Channel: "telegram", ChatID: "42", SenderID: "user-1",
		Message:       "да",
		PriorIntent:   parked.Intent,
		Answers:       parked.Answers,
		PendingPlanID: parked.PendingPlanID,
	})
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	if resumed.Envelope.Kind != KindResponse {
		t.Fatalf("expected response after approval, got %s", resumed.Envelope.Kind)
	}
	if pause.calls != 1 {
		t.Fatalf("expected exactly one execution, got %d", pause.calls)
	}
	if resumed.PendingPlanID != "" {
		t.Errorf("expected cleared pending plan, got %q", resumed.PendingPlanID)
	}

	plan, _ := o.approvals.Get(parked.PendingPlanID)
	if plan.Status != approval.StatusExecuted {
		t.Fatalf("expected executed plan, got %s", plan.Status)
	}

	// A stale pending plan id must not rerun the executed action.
	after, err := o.HandleTurn(context.Background(), TurnRequest{
		Channel: "telegram", ChatID: "42", SenderID: "user-1",
		Message:       "привет",
		PendingPlanID: parked.PendingPlanID,
	})
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	if pause.calls != 1 {
		t.Fatalf("executed plan ran again: %d calls", pause.calls)
	}
	if after.Envelope.Kind != KindResponse {
		t.Errorf("expected a normal turn after consumption, got %s", after.Envelope.Kind)
	}
}

func TestHandleTurn_InChatRejectCancelsPlan(t *testing.T) {
	chatModel := &scriptedModel{
		responses: []*schema.Message{
			toolCallMsg(tools.ToolAdsPauseDirection, `{"direction_id":"d-1"}`),
		},
	}
	o := newTestOrchestrator(t, chatModel, 3)
	pause := &stubTool{name: tools.ToolAdsPauseDirection, output: "paused"}
	o.registry.Register(pause)

	parked, err := o.HandleTurn(context.Background(), TurnRequest{
		Channel: "telegram", ChatID: "42", SenderID: "user-1",
		Message: "останови кампанию",
	})
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}

	rejected, err := o.HandleTurn(context.Background(), TurnRequest{
		Channel: "telegram", ChatID: "42", SenderID: "user-1",
		Message:       "нет",
		PendingPlanID: parked.PendingPlanID,
	})
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	if rejected.Envelope.Kind != KindResponse {
		t.Fatalf("expected response, got %s", rejected.Envelope.Kind)
	}
	if !strings.Contains(rejected.Envelope.Text, "отмен") {
		t.Errorf("expected cancellation text, got %q", rejected.Envelope.Text)
	}
	if pause.calls != 0 {
		t.Fatalf("rejected plan must never run, got %d calls", pause.calls)
	}

	plan, _ := o.approvals.Get(parked.PendingPlanID)
	if plan.Status != approval.StatusRejected {
		t.Errorf("expected rejected plan, got %s", plan.Status)
	}
}

func TestHandleTurn_OutOfBandApprovalConsumedOnNextMessage(t *testing.T) {
	chatModel := &scriptedModel{
		responses: []*schema.Message{
			toolCallMsg(tools.ToolAdsPauseDirection, `{"direction_id":"d-1"}`),
		},
	}
	o := newTestOrchestrator(t, chatModel, 3)
	pause := &stubTool{name: tools.ToolAdsPauseDirection, output: "paused"}
	o.registry.Register(pause)

	parked, err := o.HandleTurn(context.Background(), TurnRequest{
		Channel: "telegram", ChatID: "42", SenderID: "user-1",
		Message: "останови кампанию",
	})
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}

	// The owner approves through the gateway, not in chat.
	if _, err := o.approvals.Approve(parked.PendingPlanID, approval.DecisionInput{DecidedBy: "owner"}); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}

	resumed, err := o.HandleTurn(context.Background(), TurnRequest{
		Channel: "telegram", ChatID: "42", SenderID: "user-1",
		Message:       "ну что там?",
		PendingPlanID: parked.PendingPlanID,
	})
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	if resumed.Envelope.Kind != KindResponse {
		t.Fatalf("expected response, got %s", resumed.Envelope.Kind)
	}
	if pause.calls != 1 {
		t.Fatalf("expected one execution after out-of-band approval, got %d", pause.calls)
	}
}

func TestHandleTurn_UndecidedPlanKeepsWaiting(t *testing.T) {
	chatModel := &scriptedModel{
		responses: []*schema.Message{
			toolCallMsg(tools.ToolAdsPauseDirection, `{"direction_id":"d-1"}`),
		},
	}
	o := newTestOrchestrator(t, chatModel, 3)
	pause := &stubTool{name: tools.ToolAdsPauseDirection, output: "paused"}
	o.registry.Register(pause)

	parked, err := o.HandleTurn(context.Background(), TurnRequest{
		Channel: "telegram", ChatID: "42", SenderID: "user-1",
		Message: "останови кампанию",
	})
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}

	waiting, err := o.HandleTurn(context.Background(), TurnRequest{
		Channel: "telegram", ChatID: "42", SenderID: "user-1",
		Message:       "а это точно надо?",
		PriorIntent:   parked.Intent,
		PendingPlanID: parked.PendingPlanID,
	})
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	if waiting.Envelope.Kind != KindApprovalRequired {
		t.Fatalf("expected a reminder envelope, got %s", waiting.Envelope.Kind)
	}
	if waiting.PendingPlanID != parked.PendingPlanID {
		t.Errorf("expected the plan to stay pending in state, got %q", waiting.PendingPlanID)
	}
	if pause.calls != 0 {
		t.Fatalf("undecided plan must not run, got %d calls", pause.calls)
	}
}

func TestHandleTurn_DisallowedToolIsRefusedWithoutBudget(t *testing.T) {
	chatModel := &scriptedModel{
		responses: []*schema.Message{
			toolCallMsg(tools.ToolCRMLeadStatus, `{"lead_id":"l-1","status":"won"}`),
			{Role: schema.Assistant, Content: "Не могу это сделать в отчёте."},
		},
	}
	o := newTestOrchestrator(t, chatModel, 1)
	spend := &stubTool{name: tools.ToolAdsSpendReport, output: "ok"}
	crm := &stubTool{name: tools.ToolCRMLeadStatus, output: "updated"}
	o.registry.Register(spend)
	o.registry.Register(crm)

	result, err := o.HandleTurn(context.Background(), TurnRequest{
		Channel: "cli", ChatID: "direct", SenderID: "user",
		Message: "покажи расходы за 7 дней",
	})
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	if result.Envelope.Kind != KindResponse {
		t.Fatalf("expected response, got %s", result.Envelope.Kind)
	}
	if crm.calls != 0 {
		t.Fatalf("off-policy tool must not run, got %d calls", crm.calls)
	}
	if len(result.Envelope.Results) != 0 {
		t.Errorf("a refused call must not consume budget or produce results, got %v", result.Envelope.Results)
	}
}

func TestHandleTurn_AuthExpiryEndsTurn(t *testing.T) {
	chatModel := &scriptedModel{
		responses: []*schema.Message{
			toolCallMsg(tools.ToolAdsSpendReport, `{"period":"last_7_days"}`),
		},
	}
	o := newTestOrchestrator(t, chatModel, 3)
	spend := &stubTool{name: tools.ToolAdsSpendReport, err: tools.ErrAuthExpired}
	o.registry.Register(spend)

	result, err := o.HandleTurn(context.Background(), TurnRequest{
		Channel: "cli", ChatID: "direct", SenderID: "user",
		Message: "покажи расходы за 7 дней",
	})
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	if result.Envelope.Kind != KindResponse {
		t.Fatalf("expected response, got %s", result.Envelope.Kind)
	}
	if !strings.Contains(result.Envelope.Text, "авторизац") {
		t.Errorf("expected reauth guidance, got %q", result.Envelope.Text)
	}
	if chatModel.calls != 1 {
		t.Errorf("turn must end without another model round, got %d calls", chatModel.calls)
	}
	if len(result.Envelope.Results) != 1 || result.Envelope.Results[0].Error == "" {
		t.Errorf("expected the failed call in results, got %+v", result.Envelope.Results)
	}
}

func TestHandleTurn_GeneralChatWithoutModel(t *testing.T) {
	o := newTestOrchestrator(t, nil, 3)

	result, err := o.HandleTurn(context.Background(), TurnRequest{
		Channel: "cli", ChatID: "direct", SenderID: "user",
		Message: "привет",
	})
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	if result.Envelope.Kind != KindResponse {
		t.Fatalf("expected response, got %s", result.Envelope.Kind)
	}
	if result.Envelope.Text == "" {
		t.Error("expected a canned degradation text")
	}
}

func TestHandleTurn_MutatingIntentWithoutModel(t *testing.T) {
	o := newTestOrchestrator(t, nil, 3)
	budgetTool := &stubTool{name: tools.ToolAdsUpdateBudget, output: "done"}
	o.registry.Register(budgetTool)

	result, err := o.HandleTurn(context.Background(), TurnRequest{
		Channel: "cli", ChatID: "direct", SenderID: "user",
		Message: "увеличь бюджет кампании на 25%, подтверждаю",
	})
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	if result.Envelope.Kind != KindResponse {
		t.Fatalf("expected response, got %s", result.Envelope.Kind)
	}
	if budgetTool.calls != 0 {
		t.Fatalf("mutating intent must not run without a model, got %d calls", budgetTool.calls)
	}
	if !strings.Contains(result.Envelope.Text, "модел") {
		t.Errorf("expected model-required text, got %q", result.Envelope.Text)
	}
}
