package config

import (
	"testing"

	"github.com/adpilot/adpilot/internal/domain"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Assistant.ToolBudget != 6 {
		t.Errorf("expected ToolBudget=6, got %d", cfg.Assistant.ToolBudget)
	}
	if cfg.Assistant.MaxToolIterations != 20 {
		t.Errorf("expected MaxToolIterations=20, got %d", cfg.Assistant.MaxToolIterations)
	}
	if cfg.Assistant.Temperature != 0.3 {
		t.Errorf("expected Temperature=0.3, got %f", cfg.Assistant.Temperature)
	}
	if cfg.Assistant.Currency != "RUB" {
		t.Errorf("expected Currency=RUB, got %s", cfg.Assistant.Currency)
	}
	if cfg.Gateway.Port != 18890 {
		t.Errorf("expected Port=18890, got %d", cfg.Gateway.Port)
	}
	if cfg.Router.FallbackTimeoutSeconds != 15 {
		t.Errorf("expected FallbackTimeoutSeconds=15, got %d", cfg.Router.FallbackTimeoutSeconds)
	}
	if cfg.Tools.CallTimeoutSeconds != 30 {
		t.Errorf("expected CallTimeoutSeconds=30, got %d", cfg.Tools.CallTimeoutSeconds)
	}
	if cfg.Integrations.Facebook.Enabled || cfg.Integrations.TikTok.Enabled || cfg.Integrations.CRM.Enabled {
		t.Error("expected all integrations disabled by default")
	}
}

func TestStack(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Integrations.Facebook.Enabled = true
	cfg.Integrations.CRM.Enabled = true

	stack := cfg.Stack()
	if !stack.Has(domain.CapabilityFacebook) {
		t.Error("expected facebook capability")
	}
	if !stack.Has(domain.CapabilityCRM) {
		t.Error("expected crm capability")
	}
	if stack.Has(domain.CapabilityTikTok) {
		t.Error("expected tiktok to be absent")
	}
}

func TestValidate_Defaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Assistant.ToolBudget = 0
	cfg.Assistant.MaxToolIterations = 0
	cfg.Router.FallbackTimeoutSeconds = 0
	cfg.Tools.CallTimeoutSeconds = 0
	cfg.Log.Level = ""

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if cfg.Assistant.ToolBudget != 6 {
		t.Errorf("expected budget defaulted to 6, got %d", cfg.Assistant.ToolBudget)
	}
	if cfg.Assistant.MaxToolIterations != 20 {
		t.Errorf("expected iterations defaulted to 20, got %d", cfg.Assistant.MaxToolIterations)
	}
	if cfg.Router.FallbackTimeoutSeconds != 15 {
		t.Errorf("expected fallback timeout defaulted to 15, got %d", cfg.Router.FallbackTimeoutSeconds)
	}
	if cfg.Tools.CallTimeoutSeconds != 30 {
		t.Errorf("expected call timeout defaulted to 30, got %d", cfg.Tools.CallTimeoutSeconds)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected log level defaulted to info, got %q", cfg.Log.Level)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative budget", func(c *Config) { c.Assistant.ToolBudget = -1 }},
		{"negative tool iterations", func(c *Config) { c.Assistant.MaxToolIterations = -1 }},
		{"temperature too high", func(c *Config) { c.Assistant.Temperature = 2.5 }},
		{"zero max tokens", func(c *Config) { c.Assistant.MaxTokens = 0 }},
		{"bad workspace mode", func(c *Config) { c.Assistant.WorkspaceMode = "floating" }},
		{"path mode without workspace", func(c *Config) {
			c.Assistant.WorkspaceMode = "path"
			c.Assistant.Workspace = ""
		}},
		{"negative fallback timeout", func(c *Config) { c.Router.FallbackTimeoutSeconds = -1 }},
		{"negative call timeout", func(c *Config) { c.Tools.CallTimeoutSeconds = -5 }},
		{"port out of range", func(c *Config) { c.Gateway.Port = 70000 }},
	}

	for _, tt := range tests {
		cfg := DefaultConfig()
		tt.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}
}

func TestNormalizeKey(t *testing.T) {
	if normalizeKey("tool_budget") != normalizeKey("ToolBudget") {
		t.Error("expected snake_case and CamelCase to normalize equally")
	}
	if normalizeKey("max-classify-chars") != normalizeKey("MaxClassifyChars") {
		t.Error("expected kebab-case and CamelCase to normalize equally")
	}
}
