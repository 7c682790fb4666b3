package approval

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultTTL = 15 * time.Minute

// Service orchestrates approval lifecycle operations for blocked plans.
type Service struct {
	store      *Store
	defaultTTL time.Duration
	now        func() time.Time
	newPlanID  func() string
	mu         sync.Mutex
}

// NewService creates a service backed by <workspace>/state/approvals.json.
func NewService(workspace string) *Service {
	return &Service{
		store:      NewStore(workspace),
		defaultTTL: defaultTTL,
		now:        time.Now,
		newPlanID:  uuid.NewString,
	}
}

// Create inserts a new pending approval request and assigns it a plan id.
func (s *Service) Create(input CreateInput) (Request, error) {
	toolName := strings.TrimSpace(input.ToolName)
	if toolName == "" {
		return Request{}, fmt.Errorf("tool_name is required")
	}

	paramsJSON := strings.TrimSpace(input.ParamsJSON)
	if paramsJSON == "" {
		paramsJSON = "{}"
	}
	now := s.now().UTC()
	ttl := input.TTL
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.store.Load()
	if err != nil {
		return Request{}, err
	}

	request := Request{
		PlanID:      s.newPlanID(),
		ToolName:    toolName,
		ParamsJSON:  paramsJSON,
		Reason:      strings.TrimSpace(input.Reason),
		Status:      StatusPending,
		Channel:     strings.TrimSpace(input.Channel),
		ChatID:      strings.TrimSpace(input.ChatID),
		RequestedAt: now,
		ExpiresAt:   now.Add(ttl),
	}

	data.Requests = append(data.Requests, request)

	if err := s.store.Save(data); err != nil {
		return Request{}, err
	}
	return request, nil
}

// Get returns the request for the given plan id.
func (s *Service) Get(planID string) (Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.store.Load()
	if err != nil {
		return Request{}, err
	}

	id := strings.TrimSpace(planID)
	for _, req := range data.Requests {
		if req.PlanID == id {
			return req, nil
		}
	}
	return Request{}, fmt.Errorf("plan not found: %s", id)
}

// Approve marks a pending request as approved.
func (s *Service) Approve(planID string, decision DecisionInput) (Request, error) {
	return s.decide(planID, StatusApproved, decision, "approved")
}

// Reject marks a pending request as rejected.
func (s *Service) Reject(planID string, decision DecisionInput) (Request, error) {
	return s.decide(planID, StatusRejected, decision, "rejected")
}

// MarkExecuted transitions an approved plan to executed. It fails for any
// other status, which is what guarantees an approved plan runs exactly once.
func (s *Service) MarkExecuted(planID string) (Request, error) {
	id := strings.TrimSpace(planID)
	if id == "" {
		return Request{}, fmt.Errorf("plan id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.store.Load()
	if err != nil {
		return Request{}, err
	}

	for i := range data.Requests {
		req := &data.Requests[i]
		if req.PlanID != id {
			continue
		}
		if req.Status != StatusApproved {
			return Request{}, fmt.Errorf("plan %s is not approved (status: %s)", id, req.Status)
		}
		req.Status = StatusExecuted
		req.ExecutedAt = s.now().UTC()

		if err := s.store.Save(data); err != nil {
			return Request{}, err
		}
		return *req, nil
	}

	return Request{}, fmt.Errorf("plan not found: %s", id)
}

// List returns requests filtered by query values.
func (s *Service) List(query Query) ([]Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.store.Load()
	if err != nil {
		return nil, err
	}

	idFilter := strings.TrimSpace(query.PlanID)
	statusFilter := strings.TrimSpace(string(query.Status))
	toolFilter := strings.TrimSpace(query.ToolName)

	result := make([]Request, 0, len(data.Requests))
	for _, req := range data.Requests {
		if idFilter != "" && req.PlanID != idFilter {
			continue
		}
		if statusFilter != "" && string(req.Status) != statusFilter {
			continue
		}
		if toolFilter != "" && !strings.EqualFold(req.ToolName, toolFilter) {
			continue
		}
		result = append(result, req)
	}
	return result, nil
}

// ExpirePending marks pending requests as expired when TTL has elapsed.
func (s *Service) ExpirePending() ([]Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.store.Load()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	expired := make([]Request, 0)
	changed := false

	for i := range data.Requests {
		req := &data.Requests[i]
		if req.Status != StatusPending {
			continue
		}
		if req.ExpiresAt.IsZero() || req.ExpiresAt.After(now) {
			continue
		}

		req.Status = StatusExpired
		req.DecidedAt = now
		req.DecidedBy = "system"
		if strings.TrimSpace(req.DecisionNote) == "" {
			req.DecisionNote = "expired by ttl"
		}
		expired = append(expired, *req)
		changed = true
	}

	if changed {
		if err := s.store.Save(data); err != nil {
			return nil, err
		}
	}

	return expired, nil
}

func (s *Service) decide(planID string, status RequestStatus, decision DecisionInput, defaultNote string) (Request, error) {
	id := strings.TrimSpace(planID)
	if id == "" {
		return Request{}, fmt.Errorf("plan id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.store.Load()
	if err != nil {
		return Request{}, err
	}

	now := s.now().UTC()
	decidedBy := strings.TrimSpace(decision.DecidedBy)
	if decidedBy == "" {
		decidedBy = "unknown"
	}
	decisionNote := strings.TrimSpace(decision.Note)
	if decisionNote == "" {
		decisionNote = defaultNote
	}

	for i := range data.Requests {
		req := &data.Requests[i]
		if req.PlanID != id {
			continue
		}
		if req.Status != StatusPending {
			return Request{}, fmt.Errorf("plan %s is not pending", id)
		}

		req.Status = status
		req.DecidedAt = now
		req.DecidedBy = decidedBy
		req.DecisionNote = decisionNote

		if err := s.store.Save(data); err != nil {
			return Request{}, err
		}
		return *req, nil
	}

	return Request{}, fmt.Errorf("plan not found: %s", id)
}
