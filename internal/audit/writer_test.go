package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestWriter_AppendsJSONLines(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	events := []Event{
		{
			Time:      time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC),
			Type:      "turn",
			RequestID: "req-1",
			Channel:   "telegram",
			Domain:    "ads",
			Intent:    "spend_report",
			Result:    "response",
		},
		{
			Time:      time.Date(2026, 8, 25, 10, 0, 1, 0, time.UTC),
			Type:      "tool_execution",
			RequestID: "req-1",
			Tool:      "ads_spend_report",
			Result:    "ok",
		},
	}

	for _, ev := range events {
		if err := w.Append(ev); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	f, err := os.Open(filepath.Join(dir, "state", "audit.jsonl"))
	if err != nil {
		t.Fatalf("open audit file: %v", err)
	}
	defer f.Close()

	var decoded []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("decode line: %v", err)
		}
		decoded = append(decoded, ev)
	}

	if len(decoded) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(decoded))
	}
	if decoded[0].Type != "turn" || decoded[0].Intent != "spend_report" {
		t.Errorf("unexpected first event: %+v", decoded[0])
	}
	if decoded[1].Type != "tool_execution" || decoded[1].Tool != "ads_spend_report" {
		t.Errorf("unexpected second event: %+v", decoded[1])
	}
}

func TestWriter_TokenFieldsOmittedWhenZero(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	if err := w.Append(Event{Time: time.Now().UTC(), Type: "turn"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "state", "audit.jsonl"))
	if err != nil {
		t.Fatalf("read audit file: %v", err)
	}
	got := string(raw)
	if strings.Contains(got, "prompt_tokens") || strings.Contains(got, "completion_tokens") {
		t.Errorf("expected zero token counts to be omitted, got %s", got)
	}
}
