package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/adpilot/adpilot/internal/domain"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config root configuration
type Config struct {
	Assistant    AssistantConfig    `mapstructure:"assistant"`
	Channels     ChannelsConfig     `mapstructure:"channels"`
	Providers    ProvidersConfig    `mapstructure:"providers"`
	Integrations IntegrationsConfig `mapstructure:"integrations"`
	Router       RouterConfig       `mapstructure:"router"`
	Tools        ToolsConfig        `mapstructure:"tools"`
	Gateway      GatewayConfig      `mapstructure:"gateway"`
	Log          LogConfig          `mapstructure:"log"`
}

// AssistantConfig orchestration defaults
type AssistantConfig struct {
	Workspace         string  `mapstructure:"workspace"`
	WorkspaceMode     string  `mapstructure:"workspace_mode"`
	Model             string  `mapstructure:"model"`
	MaxTokens         int     `mapstructure:"max_tokens"`
	Temperature       float64 `mapstructure:"temperature"`
	ToolBudget        int     `mapstructure:"tool_budget"`
	MaxToolIterations int     `mapstructure:"max_tool_iterations"`
	AccountID         string  `mapstructure:"account_id"`
	Currency          string  `mapstructure:"currency"`
}

// ChannelsConfig channel settings
type ChannelsConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	WhatsApp WhatsAppConfig `mapstructure:"whatsapp"`
}

// TelegramConfig telegram bot settings
type TelegramConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Token     string   `mapstructure:"token"`
	AllowFrom []string `mapstructure:"allow_from"`
}

// WhatsAppConfig WhatsApp bridge settings
type WhatsAppConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	BridgeURL string   `mapstructure:"bridge_url"`
	AllowFrom []string `mapstructure:"allow_from"`
}

// ProvidersConfig LLM provider settings
type ProvidersConfig struct {
	OpenRouter ProviderConfig `mapstructure:"openrouter"`
	Claude     ProviderConfig `mapstructure:"claude"`
	OpenAI     ProviderConfig `mapstructure:"openai"`
	DeepSeek   ProviderConfig `mapstructure:"deepseek"`
	Ollama     ProviderConfig `mapstructure:"ollama"`
}

// ProviderConfig single provider settings
type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// IntegrationsConfig connected marketing platforms
type IntegrationsConfig struct {
	Facebook FacebookConfig `mapstructure:"facebook"`
	TikTok   TikTokConfig   `mapstructure:"tiktok"`
	CRM      CRMConfig      `mapstructure:"crm"`
}

// FacebookConfig Facebook Ads integration settings
type FacebookConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	AccessToken string `mapstructure:"access_token"`
	AdAccountID string `mapstructure:"ad_account_id"`
}

// TikTokConfig TikTok Ads integration settings
type TikTokConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	AccessToken  string `mapstructure:"access_token"`
	AdvertiserID string `mapstructure:"advertiser_id"`
}

// CRMConfig CRM integration settings
type CRMConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Provider string `mapstructure:"provider"`
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
}

// RouterConfig domain router settings
type RouterConfig struct {
	FallbackTimeoutSeconds int `mapstructure:"fallback_timeout_seconds"`
	MaxClassifyChars       int `mapstructure:"max_classify_chars"`
}

// ToolsConfig tool execution settings
type ToolsConfig struct {
	CallTimeoutSeconds int `mapstructure:"call_timeout_seconds"`
}

// GatewayConfig server settings
type GatewayConfig struct {
	Host  string `mapstructure:"host"`
	Port  int    `mapstructure:"port"`
	Token string `mapstructure:"token"`
}

// LogConfig application logging settings
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// DefaultConfig returns config with sensible defaults
func DefaultConfig() *Config {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		slog.Warn("failed to resolve home directory, using current directory as fallback", "error", err)
		homeDir = "."
	}
	return &Config{
		Assistant: AssistantConfig{
			Workspace:         filepath.Join(homeDir, ".adpilot", "workspace"),
			WorkspaceMode:     "default",
			Model:             "anthropic/claude-sonnet-4-5",
			MaxTokens:         8192,
			Temperature:       0.3,
			ToolBudget:        6,
			MaxToolIterations: 20,
			Currency:          "RUB",
		},
		Channels: ChannelsConfig{
			Telegram: TelegramConfig{
				Enabled:   false,
				AllowFrom: []string{},
			},
			WhatsApp: WhatsAppConfig{
				Enabled:   false,
				AllowFrom: []string{},
			},
		},
		Providers: ProvidersConfig{},
		Integrations: IntegrationsConfig{
			Facebook: FacebookConfig{Enabled: false},
			TikTok:   TikTokConfig{Enabled: false},
			CRM:      CRMConfig{Enabled: false},
		},
		Router: RouterConfig{
			FallbackTimeoutSeconds: 15,
			MaxClassifyChars:       200,
		},
		Tools: ToolsConfig{
			CallTimeoutSeconds: 30,
		},
		Gateway: GatewayConfig{
			Host:  "0.0.0.0",
			Port:  18890,
			Token: "",
		},
		Log: LogConfig{
			Level: "info",
			File:  "",
		},
	}
}

// Stack returns the enabled-capability stack derived from integrations.
func (c *Config) Stack() domain.Stack {
	return domain.Stack{
		domain.CapabilityFacebook: c.Integrations.Facebook.Enabled,
		domain.CapabilityTikTok:   c.Integrations.TikTok.Enabled,
		domain.CapabilityCRM:      c.Integrations.CRM.Enabled,
	}
}

// ConfigDir returns the adpilot config directory
func ConfigDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".adpilot")
}

// ConfigPath returns the config file path
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// Load loads config from file or returns defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configPath := ConfigPath()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := Save(cfg); err != nil {
			return cfg, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")
	v.SetEnvPrefix("ADPILOT")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return cfg, err
	}

	if err := v.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.MatchName = func(mapKey, fieldName string) bool {
			return normalizeKey(mapKey) == normalizeKey(fieldName)
		}
	}); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func normalizeKey(input string) string {
	input = strings.ReplaceAll(input, "_", "")
	input = strings.ReplaceAll(input, "-", "")
	return strings.ToLower(input)
}

// Save saves config to file
func Save(cfg *Config) error {
	configPath := ConfigPath()

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0600)
}

// Validate checks that the configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	a := &c.Assistant

	if a.ToolBudget < 0 {
		return fmt.Errorf("assistant.tool_budget must not be negative, got %d", a.ToolBudget)
	}
	if a.ToolBudget == 0 {
		a.ToolBudget = 6
	}

	if a.MaxToolIterations < 0 {
		return fmt.Errorf("assistant.max_tool_iterations must not be negative, got %d", a.MaxToolIterations)
	}
	if a.MaxToolIterations == 0 {
		a.MaxToolIterations = 20
	}

	if a.Temperature < 0 || a.Temperature > 2.0 {
		return fmt.Errorf("assistant.temperature must be between 0 and 2.0, got %f", a.Temperature)
	}

	if a.MaxTokens <= 0 {
		return fmt.Errorf("assistant.max_tokens must be > 0, got %d", a.MaxTokens)
	}

	mode := strings.TrimSpace(a.WorkspaceMode)
	if mode != "" {
		validModes := map[string]bool{"default": true, "cwd": true, "path": true}
		if !validModes[strings.ToLower(mode)] {
			return fmt.Errorf("assistant.workspace_mode must be one of: default, cwd, path; got %q", mode)
		}
		if strings.EqualFold(mode, "path") && strings.TrimSpace(a.Workspace) == "" {
			return fmt.Errorf("assistant.workspace must be non-empty when workspace_mode is \"path\"")
		}
	}

	if c.Router.FallbackTimeoutSeconds < 0 {
		return fmt.Errorf("router.fallback_timeout_seconds must not be negative, got %d", c.Router.FallbackTimeoutSeconds)
	}
	if c.Router.FallbackTimeoutSeconds == 0 {
		c.Router.FallbackTimeoutSeconds = 15
	}
	if c.Router.MaxClassifyChars <= 0 {
		c.Router.MaxClassifyChars = 200
	}

	if c.Tools.CallTimeoutSeconds < 0 {
		return fmt.Errorf("tools.call_timeout_seconds must not be negative, got %d", c.Tools.CallTimeoutSeconds)
	}
	if c.Tools.CallTimeoutSeconds == 0 {
		c.Tools.CallTimeoutSeconds = 30
	}

	if c.Gateway.Port <= 0 || c.Gateway.Port > 65535 {
		return fmt.Errorf("gateway.port must be between 1 and 65535, got %d", c.Gateway.Port)
	}

	level := strings.ToLower(strings.TrimSpace(c.Log.Level))
	if level == "" {
		c.Log.Level = "info"
	} else {
		validLevels := map[string]bool{
			"debug": true,
			"info":  true,
			"warn":  true,
			"error": true,
		}
		if !validLevels[level] {
			return fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", c.Log.Level)
		}
		c.Log.Level = level
	}

	if c.Integrations.CRM.Enabled && strings.TrimSpace(c.Integrations.CRM.Provider) == "" {
		return fmt.Errorf("integrations.crm.provider is required when crm is enabled")
	}

	return nil
}

// WorkspacePath returns the expanded workspace path
func (c *Config) WorkspacePath() string {
	path, err := c.WorkspacePathChecked()
	if err != nil {
		return filepath.Join(ConfigDir(), "workspace")
	}
	return path
}

// WorkspacePathChecked returns the expanded workspace path or an error if invalid.
func (c *Config) WorkspacePathChecked() (string, error) {
	mode := strings.TrimSpace(c.Assistant.WorkspaceMode)
	if mode == "" || strings.EqualFold(mode, "default") {
		return filepath.Join(ConfigDir(), "workspace"), nil
	}
	if strings.EqualFold(mode, "cwd") {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to resolve cwd: %w", err)
		}
		return wd, nil
	}
	if !strings.EqualFold(mode, "path") {
		return "", fmt.Errorf("unknown workspace_mode: %s", mode)
	}
	if c.Assistant.Workspace == "" {
		return "", fmt.Errorf("workspace is required when workspace_mode=path")
	}
	if c.Assistant.Workspace[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory for workspace path: %w", err)
		}
		rest := c.Assistant.Workspace[1:]
		rest = strings.TrimPrefix(rest, string(filepath.Separator))
		rest = strings.TrimPrefix(rest, "/")
		return filepath.Join(homeDir, rest), nil
	}
	return c.Assistant.Workspace, nil
}
