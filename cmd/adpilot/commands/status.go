package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adpilot/adpilot/internal/config"
	"github.com/adpilot/adpilot/internal/metrics"
)

func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show AdPilot configuration status",
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	workspacePath, err := cfg.WorkspacePathChecked()
	if err != nil {
		return fmt.Errorf("invalid workspace: %w", err)
	}

	fmt.Println("=== AdPilot Status ===")
	fmt.Println()

	fmt.Printf("Config: %s\n", config.ConfigPath())
	if _, err := os.Stat(config.ConfigPath()); err == nil {
		fmt.Println("  Status: OK")
	} else {
		fmt.Println("  Status: Not found (run 'adpilot init')")
	}

	fmt.Printf("\nWorkspace: %s\n", workspacePath)
	if _, err := os.Stat(workspacePath); err == nil {
		fmt.Println("  Status: OK")
	} else {
		fmt.Println("  Status: Not found")
	}

	fmt.Printf("\nModel: %s\n", cfg.Assistant.Model)
	fmt.Printf("  Tool budget: %d calls per turn\n", cfg.Assistant.ToolBudget)
	fmt.Printf("  Account: %s (%s)\n", cfg.Assistant.AccountID, cfg.Assistant.Currency)

	fmt.Println("\nProviders:")
	providers := []struct {
		name string
		key  string
	}{
		{"OpenRouter", cfg.Providers.OpenRouter.APIKey},
		{"Claude", cfg.Providers.Claude.APIKey},
		{"OpenAI", cfg.Providers.OpenAI.APIKey},
		{"DeepSeek", cfg.Providers.DeepSeek.APIKey},
		{"Ollama", cfg.Providers.Ollama.BaseURL},
	}
	for _, p := range providers {
		status := "Not configured"
		if strings.TrimSpace(p.key) != "" {
			status = "Configured"
		}
		fmt.Printf("  %s: %s\n", p.name, status)
	}

	fmt.Println("\nIntegrations:")
	fbStatus := "disabled"
	if cfg.Integrations.Facebook.Enabled {
		fbStatus = fmt.Sprintf("enabled (account=%s)", cfg.Integrations.Facebook.AdAccountID)
	}
	fmt.Printf("  Facebook Ads: %s\n", fbStatus)
	ttStatus := "disabled"
	if cfg.Integrations.TikTok.Enabled {
		ttStatus = fmt.Sprintf("enabled (advertiser=%s)", cfg.Integrations.TikTok.AdvertiserID)
	}
	fmt.Printf("  TikTok Ads: %s\n", ttStatus)
	crmStatus := "disabled"
	if cfg.Integrations.CRM.Enabled {
		crmStatus = fmt.Sprintf("enabled (%s)", cfg.Integrations.CRM.BaseURL)
	}
	fmt.Printf("  CRM: %s\n", crmStatus)

	fmt.Println("\nChannels:")
	tgStatus := "disabled"
	if cfg.Channels.Telegram.Enabled {
		tgStatus = "enabled"
		if strings.TrimSpace(cfg.Channels.Telegram.Token) == "" {
			tgStatus = "enabled (missing token)"
		}
	}
	fmt.Printf("  Telegram: %s\n", tgStatus)
	waStatus := "disabled"
	if cfg.Channels.WhatsApp.Enabled {
		waStatus = "enabled"
		if strings.TrimSpace(cfg.Channels.WhatsApp.BridgeURL) == "" {
			waStatus = "enabled (missing bridge_url)"
		}
	}
	fmt.Printf("  WhatsApp: %s\n", waStatus)

	fmt.Println("\nGateway:")
	fmt.Printf("  Address: %s:%d\n", cfg.Gateway.Host, cfg.Gateway.Port)
	if cfg.Gateway.Token != "" {
		fmt.Println("  Auth:    token configured")
	} else {
		fmt.Println("  Auth:    no token (open)")
	}

	fmt.Println("\nRuntime:")
	snapshot, err := metrics.ReadRuntimeSnapshot(workspacePath)
	if err != nil || !snapshot.HasData() {
		fmt.Println("  No runtime metrics recorded yet.")
		return nil
	}
	fmt.Printf("  Routed turns: %d (keyword=%d, model=%d, fallback=%d)\n",
		snapshot.Router.Total(),
		snapshot.Router.KeywordRoutes,
		snapshot.Router.ModelRoutes,
		snapshot.Router.FallbackRoutes,
	)
	fmt.Printf("  Routing tokens: prompt=%d, completion=%d\n",
		snapshot.Router.PromptTokens,
		snapshot.Router.CompletionTokens,
	)
	fmt.Printf("  Tool calls: %d (errors=%.0f%%, timeouts=%.0f%%)\n",
		snapshot.Tool.Total,
		snapshot.Tool.ErrorRatio()*100,
		snapshot.Tool.TimeoutRatio()*100,
	)
	fmt.Printf("  Tool latency: avg=%.0fms, p95~%dms, max=%dms\n",
		snapshot.Tool.AvgLatencyMs(),
		snapshot.Tool.P95ProxyLatencyMs,
		snapshot.Tool.MaxLatencyMs,
	)
	fmt.Printf("  Channel sends: %d (failures=%.0f%%)\n",
		snapshot.Channel.SendAttempts,
		snapshot.Channel.FailureRatio()*100,
	)
	fmt.Printf("  Updated: %s\n", snapshot.UpdatedAt.Format("2006-01-02 15:04:05"))

	return nil
}
