package approval

import (
	"testing"
	"time"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(t.TempDir())
}

func TestService_CreateAndGet(t *testing.T) {
	svc := newTestService(t)

	req, err := svc.Create(CreateInput{
		ToolName:   "ads_pause_direction",
		ParamsJSON: `{"direction_id":"d-1"}`,
		Reason:     "intent pause_entity: останови направление",
		Channel:    "telegram",
		ChatID:     "42",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if req.PlanID == "" {
		t.Fatal("expected a plan id")
	}
	if req.Status != StatusPending {
		t.Errorf("expected pending, got %s", req.Status)
	}
	if req.ExpiresAt.IsZero() {
		t.Error("expected a default ttl to be applied")
	}

	got, err := svc.Get(req.PlanID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ToolName != "ads_pause_direction" || got.ParamsJSON != `{"direction_id":"d-1"}` {
		t.Errorf("unexpected stored request: %+v", got)
	}
}

func TestService_CreateRequiresToolName(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.Create(CreateInput{ToolName: "   "}); err == nil {
		t.Fatal("expected error for empty tool name")
	}
}

func TestService_ApproveRejectLifecycle(t *testing.T) {
	svc := newTestService(t)

	first, _ := svc.Create(CreateInput{ToolName: "ads_update_budget"})
	second, _ := svc.Create(CreateInput{ToolName: "crm_lead_status"})

	approved, err := svc.Approve(first.PlanID, DecisionInput{DecidedBy: "owner"})
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if approved.Status != StatusApproved || approved.DecidedBy != "owner" {
		t.Errorf("unexpected approved request: %+v", approved)
	}

	rejected, err := svc.Reject(second.PlanID, DecisionInput{DecidedBy: "owner", Note: "not now"})
	if err != nil {
		t.Fatalf("Reject failed: %v", err)
	}
	if rejected.Status != StatusRejected || rejected.DecisionNote != "not now" {
		t.Errorf("unexpected rejected request: %+v", rejected)
	}

	// A decided plan cannot be decided again.
	if _, err := svc.Approve(first.PlanID, DecisionInput{DecidedBy: "owner"}); err == nil {
		t.Error("expected error approving an already approved plan")
	}
	if _, err := svc.Reject(second.PlanID, DecisionInput{DecidedBy: "owner"}); err == nil {
		t.Error("expected error rejecting an already rejected plan")
	}
}

func TestService_MarkExecutedExactlyOnce(t *testing.T) {
	svc := newTestService(t)

	req, _ := svc.Create(CreateInput{ToolName: "ads_update_budget"})

	// Pending plans cannot be executed.
	if _, err := svc.MarkExecuted(req.PlanID); err == nil {
		t.Fatal("expected error executing a pending plan")
	}

	if _, err := svc.Approve(req.PlanID, DecisionInput{DecidedBy: "owner"}); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}

	executed, err := svc.MarkExecuted(req.PlanID)
	if err != nil {
		t.Fatalf("MarkExecuted failed: %v", err)
	}
	if executed.Status != StatusExecuted {
		t.Errorf("expected executed, got %s", executed.Status)
	}
	if executed.ExecutedAt.IsZero() {
		t.Error("expected executed_at to be set")
	}

	// Second transition must fail: this is the exactly-once guarantee.
	if _, err := svc.MarkExecuted(req.PlanID); err == nil {
		t.Fatal("expected error executing the plan twice")
	}
}

func TestService_ExpirePending(t *testing.T) {
	svc := newTestService(t)

	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	stale, _ := svc.Create(CreateInput{ToolName: "ads_pause_direction", TTL: time.Minute})
	fresh, _ := svc.Create(CreateInput{ToolName: "crm_lead_status", TTL: time.Hour})

	svc.now = func() time.Time { return base.Add(5 * time.Minute) }

	expired, err := svc.ExpirePending()
	if err != nil {
		t.Fatalf("ExpirePending failed: %v", err)
	}
	if len(expired) != 1 || expired[0].PlanID != stale.PlanID {
		t.Fatalf("expected exactly the stale plan to expire, got %+v", expired)
	}

	got, _ := svc.Get(stale.PlanID)
	if got.Status != StatusExpired || got.DecidedBy != "system" {
		t.Errorf("unexpected expired request: %+v", got)
	}

	stillPending, _ := svc.Get(fresh.PlanID)
	if stillPending.Status != StatusPending {
		t.Errorf("expected fresh plan to stay pending, got %s", stillPending.Status)
	}

	// An expired plan cannot be approved afterwards.
	if _, err := svc.Approve(stale.PlanID, DecisionInput{DecidedBy: "owner"}); err == nil {
		t.Error("expected error approving an expired plan")
	}
}

func TestService_ListFilters(t *testing.T) {
	svc := newTestService(t)

	a, _ := svc.Create(CreateInput{ToolName: "ads_pause_direction"})
	b, _ := svc.Create(CreateInput{ToolName: "ads_update_budget"})
	svc.Approve(b.PlanID, DecisionInput{DecidedBy: "owner"})

	pending, err := svc.List(Query{Status: StatusPending})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(pending) != 1 || pending[0].PlanID != a.PlanID {
		t.Errorf("expected only the pending plan, got %+v", pending)
	}

	byTool, _ := svc.List(Query{ToolName: "ADS_UPDATE_BUDGET"})
	if len(byTool) != 1 || byTool[0].PlanID != b.PlanID {
		t.Errorf("expected case-insensitive tool filter to match, got %+v", byTool)
	}

	byID, _ := svc.List(Query{PlanID: a.PlanID})
	if len(byID) != 1 {
		t.Errorf("expected plan id filter to match one request, got %d", len(byID))
	}
}

func TestService_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()

	first := NewService(dir)
	req, err := first.Create(CreateInput{ToolName: "ads_update_budget", ParamsJSON: `{"percent":25}`})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	second := NewService(dir)
	got, err := second.Get(req.PlanID)
	if err != nil {
		t.Fatalf("Get on a fresh instance failed: %v", err)
	}
	if got.ParamsJSON != `{"percent":25}` {
		t.Errorf("expected persisted params, got %q", got.ParamsJSON)
	}
}
