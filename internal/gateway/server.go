package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/adpilot/adpilot/internal/approval"
	"github.com/adpilot/adpilot/internal/bus"
	"github.com/adpilot/adpilot/internal/config"
	"github.com/adpilot/adpilot/internal/orchestrator"
	"github.com/adpilot/adpilot/internal/version"
)

// TurnProcessor runs one conversational turn and returns its envelope.
type TurnProcessor interface {
	ProcessForChannel(ctx context.Context, channel, chatID, senderID, content string) (orchestrator.Envelope, error)
}

// Approvals is the subset of the approval service the gateway exposes.
type Approvals interface {
	List(query approval.Query) ([]approval.Request, error)
	Approve(planID string, decision approval.DecisionInput) (approval.Request, error)
	Reject(planID string, decision approval.DecisionInput) (approval.Request, error)
}

type Server struct {
	cfg        config.GatewayConfig
	processor  TurnProcessor
	approvals  Approvals
	httpServer *http.Server
}

func New(cfg config.GatewayConfig, processor TurnProcessor, approvals Approvals) *Server {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	port := cfg.Port
	if port <= 0 {
		port = 18890
	}

	cfg.Host = host
	cfg.Port = port
	return &Server{
		cfg:       cfg,
		processor: processor,
		approvals: approvals,
	}
}

func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
}

func (s *Server) Start() error {
	mux := NewHandler(s.cfg.Token, s.processor, s.approvals)
	s.httpServer = &http.Server{
		Addr:              s.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	slog.Info("gateway listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func NewHandler(token string, processor TurnProcessor, approvals Approvals) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		requestID := getRequestID(r)
		if r.Method != http.MethodGet {
			writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":     "ok",
			"request_id": requestID,
		})
	})
	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		requestID := getRequestID(r)
		if r.Method != http.MethodGet {
			writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"version":    version.Version,
			"request_id": requestID,
		})
	})
	mux.HandleFunc("/turn", func(w http.ResponseWriter, r *http.Request) {
		requestID := getRequestID(r)
		if r.Method != http.MethodPost {
			writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		if strings.TrimSpace(token) != "" && !isAuthorized(r, token) {
			writeError(w, requestID, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
			return
		}

		var req struct {
			Message   string `json:"message"`
			SessionID string `json:"session_id"`
			SenderID  string `json:"sender_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, requestID, http.StatusBadRequest, "bad_request", "invalid json request")
			return
		}
		msg := strings.TrimSpace(req.Message)
		if msg == "" {
			writeError(w, requestID, http.StatusBadRequest, "bad_request", "message is required")
			return
		}
		sessionID := strings.TrimSpace(req.SessionID)
		if sessionID == "" {
			sessionID = "default"
		}
		senderID := strings.TrimSpace(req.SenderID)
		if senderID == "" {
			senderID = "api"
		}

		if processor == nil {
			writeError(w, requestID, http.StatusInternalServerError, "internal_error", "turn processor is not configured")
			return
		}

		ctx := bus.WithRequestID(r.Context(), requestID)
		env, err := processor.ProcessForChannel(ctx, "gateway", sessionID, senderID, msg)
		if err != nil {
			slog.Error("gateway turn failed", "request_id", requestID, "session_id", sessionID, "error", err)
			writeError(w, requestID, http.StatusInternalServerError, "internal_error", "failed to process turn")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"envelope":   env,
			"session_id": sessionID,
			"request_id": requestID,
		})
	})
	mux.HandleFunc("/approvals", func(w http.ResponseWriter, r *http.Request) {
		requestID := getRequestID(r)
		if r.Method != http.MethodGet {
			writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		if strings.TrimSpace(token) != "" && !isAuthorized(r, token) {
			writeError(w, requestID, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
			return
		}
		if approvals == nil {
			writeError(w, requestID, http.StatusInternalServerError, "internal_error", "approval service is not configured")
			return
		}

		query := approval.Query{
			PlanID:   strings.TrimSpace(r.URL.Query().Get("plan_id")),
			Status:   approval.RequestStatus(strings.TrimSpace(r.URL.Query().Get("status"))),
			ToolName: strings.TrimSpace(r.URL.Query().Get("tool")),
		}
		requests, err := approvals.List(query)
		if err != nil {
			writeError(w, requestID, http.StatusInternalServerError, "internal_error", "failed to list approvals")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"approvals":  requests,
			"request_id": requestID,
		})
	})
	mux.HandleFunc("/approvals/", func(w http.ResponseWriter, r *http.Request) {
		requestID := getRequestID(r)
		if r.Method != http.MethodPost {
			writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		if strings.TrimSpace(token) != "" && !isAuthorized(r, token) {
			writeError(w, requestID, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
			return
		}
		if approvals == nil {
			writeError(w, requestID, http.StatusInternalServerError, "internal_error", "approval service is not configured")
			return
		}

		rest := strings.TrimPrefix(r.URL.Path, "/approvals/")
		planID, action, ok := strings.Cut(rest, "/")
		if !ok || strings.TrimSpace(planID) == "" {
			writeError(w, requestID, http.StatusBadRequest, "bad_request", "expected /approvals/{plan_id}/{approve|reject}")
			return
		}

		var body struct {
			DecidedBy string `json:"decided_by"`
			Note      string `json:"note"`
		}
		// Decision body is optional.
		_ = json.NewDecoder(r.Body).Decode(&body)
		decision := approval.DecisionInput{DecidedBy: body.DecidedBy, Note: body.Note}
		if strings.TrimSpace(decision.DecidedBy) == "" {
			decision.DecidedBy = "api"
		}

		var request approval.Request
		var err error
		switch action {
		case "approve":
			request, err = approvals.Approve(planID, decision)
		case "reject":
			request, err = approvals.Reject(planID, decision)
		default:
			writeError(w, requestID, http.StatusBadRequest, "bad_request", "action must be approve or reject")
			return
		}
		if err != nil {
			writeError(w, requestID, http.StatusConflict, "conflict", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"approval":   request,
			"request_id": requestID,
		})
	})
	return mux
}

func isAuthorized(r *http.Request, expected string) bool {
	got := strings.TrimSpace(r.Header.Get("Authorization"))
	if got == "" {
		return false
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(got, prefix) {
		return false
	}
	token := strings.TrimSpace(strings.TrimPrefix(got, prefix))
	return token == expected
}

func getRequestID(r *http.Request) string {
	rid := strings.TrimSpace(r.Header.Get("X-Request-ID"))
	if rid != "" {
		return rid
	}
	return uuid.NewString()
}

func writeError(w http.ResponseWriter, requestID string, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"code":       code,
		"message":    message,
		"request_id": requestID,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
