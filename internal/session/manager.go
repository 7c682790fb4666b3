package session

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/adpilot/adpilot/internal/clarify"
)

// Message represents a single message in session
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// TurnState is the conversational state carried between turns: clarifying
// answers already given, the intent they belong to, and a pending approval
// plan when one dangerous call is waiting for a decision.
type TurnState struct {
	Intent        string                   `json:"intent,omitempty"`
	Answers       map[string]clarify.Value `json:"answers,omitempty"`
	PendingPlanID string                   `json:"pending_plan_id,omitempty"`
}

// Session represents a conversation session
type Session struct {
	Key      string
	Messages []*Message
	State    TurnState
	mu       sync.RWMutex
}

// AddMessage adds a message to the session
func (s *Session) AddMessage(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Messages = append(s.Messages, &Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	})
}

// GetHistory returns the last n messages
func (s *Session) GetHistory(limit int) []*Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.Messages) {
		limit = len(s.Messages)
	}
	start := len(s.Messages) - limit
	if start < 0 {
		start = 0
	}

	result := make([]*Message, limit)
	copy(result, s.Messages[start:])
	return result
}

// TurnState returns a copy of the carried state.
func (s *Session) TurnState() TurnState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state := s.State
	if state.Answers != nil {
		answers := make(map[string]clarify.Value, len(state.Answers))
		for k, v := range state.Answers {
			answers[k] = v
		}
		state.Answers = answers
	}
	return state
}

// SetTurnState replaces the carried state.
func (s *Session) SetTurnState(state TurnState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State = state
}

// ClearTurnState drops answers and pending plan, e.g. when the intent changes.
func (s *Session) ClearTurnState() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State = TurnState{}
}

// Manager manages sessions
type Manager struct {
	dir      string
	sessions map[string]*Session
	mu       sync.RWMutex
}

// NewManager creates a session manager
func NewManager(baseDir string) *Manager {
	dir := filepath.Join(baseDir, "sessions")
	os.MkdirAll(dir, 0755)
	return &Manager{
		dir:      dir,
		sessions: make(map[string]*Session),
	}
}

// GetOrCreate gets or creates a session
func (m *Manager) GetOrCreate(key string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sess, ok := m.sessions[key]; ok {
		return sess
	}

	sess := &Session{Key: key}
	m.loadFromDisk(sess)
	m.sessions[key] = sess
	return sess
}

// Save persists session messages and turn state to disk.
func (m *Manager) Save(sess *Session) error {
	sess.mu.RLock()
	defer sess.mu.RUnlock()

	if err := m.saveState(sess); err != nil {
		return err
	}

	if len(sess.Messages) == 0 {
		return nil
	}

	path := m.sessionPath(sess.Key)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, msg := range sess.Messages {
		if err := enc.Encode(msg); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) saveState(sess *Session) error {
	path := m.statePath(sess.Key)
	payload, err := json.Marshal(sess.State)
	if err != nil {
		return err
	}
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, payload, 0644); err != nil {
		return err
	}
	return os.Rename(tempPath, path)
}

func (m *Manager) loadFromDisk(sess *Session) {
	if raw, err := os.ReadFile(m.statePath(sess.Key)); err == nil {
		var state TurnState
		if json.Unmarshal(raw, &state) == nil {
			sess.State = state
		}
	}

	f, err := os.Open(m.sessionPath(sess.Key))
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var msg Message
		if err := json.Unmarshal(scanner.Bytes(), &msg); err == nil {
			sess.Messages = append(sess.Messages, &msg)
		}
	}
}

func (m *Manager) sessionPath(key string) string {
	return filepath.Join(m.dir, safeKey(key)+".jsonl")
}

func (m *Manager) statePath(key string) string {
	return filepath.Join(m.dir, safeKey(key)+".state.json")
}

func safeKey(key string) string {
	return strings.NewReplacer(":", "_", "/", "_", "\\", "_").Replace(key)
}
