package commands

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"

	"github.com/adpilot/adpilot/internal/approval"
	"github.com/adpilot/adpilot/internal/audit"
	"github.com/adpilot/adpilot/internal/bus"
	"github.com/adpilot/adpilot/internal/config"
	"github.com/adpilot/adpilot/internal/metrics"
	"github.com/adpilot/adpilot/internal/orchestrator"
	"github.com/adpilot/adpilot/internal/router"
	"github.com/adpilot/adpilot/internal/session"
	"github.com/adpilot/adpilot/internal/tools"
)

// app bundles the assembled orchestration pieces shared by run and chat.
type app struct {
	runner    *orchestrator.Runner
	approvals *approval.Service
	runtime   *metrics.RuntimeMetrics
	registry  *tools.Registry
}

func buildApp(cfg *config.Config, msgBus *bus.MessageBus, chatModel model.ChatModel) (*app, error) {
	workspacePath, err := cfg.WorkspacePathChecked()
	if err != nil {
		return nil, fmt.Errorf("invalid workspace: %w", err)
	}

	registry := tools.NewRegistry(time.Duration(cfg.Tools.CallTimeoutSeconds) * time.Second)
	if err := registerIntegrationTools(registry, cfg, chatModel); err != nil {
		return nil, err
	}

	approvals := approval.NewService(workspacePath)
	runtime := metrics.NewRuntimeMetrics(workspacePath)

	rt := router.New(
		router.NewKeywordClassifier(),
		router.NewModelClassifier(
			chatModel,
			time.Duration(cfg.Router.FallbackTimeoutSeconds)*time.Second,
			cfg.Router.MaxClassifyChars,
		),
	)

	core := orchestrator.New(cfg, rt, registry, approvals, chatModel)
	core.SetAuditWriter(audit.NewWriter(workspacePath))
	core.SetRuntimeMetrics(runtime)

	runner := orchestrator.NewRunner(msgBus, core, session.NewManager(workspacePath))

	return &app{
		runner:    runner,
		approvals: approvals,
		runtime:   runtime,
		registry:  registry,
	}, nil
}

// registerIntegrationTools registers one tool set per enabled integration.
// A disabled integration registers nothing: the router's capability filter
// keeps its domain unreachable anyway.
func registerIntegrationTools(registry *tools.Registry, cfg *config.Config, chatModel model.ChatModel) error {
	var constructors []func() (tool.InvokableTool, error)

	if cfg.Integrations.Facebook.Enabled {
		client, err := tools.NewFacebookAdsClient(
			cfg.Integrations.Facebook.AccessToken,
			cfg.Integrations.Facebook.AdAccountID,
		)
		if err != nil {
			return fmt.Errorf("facebook integration: %w", err)
		}
		constructors = append(constructors,
			func() (tool.InvokableTool, error) { return tools.NewSpendReportTool(client) },
			func() (tool.InvokableTool, error) { return tools.NewDirectionsOverviewTool(client) },
			func() (tool.InvokableTool, error) { return tools.NewROIReportTool(client) },
			func() (tool.InvokableTool, error) { return tools.NewPauseDirectionTool(client) },
			func() (tool.InvokableTool, error) { return tools.NewResumeDirectionTool(client) },
			func() (tool.InvokableTool, error) { return tools.NewUpdateBudgetTool(client) },
		)

		if chatModel != nil {
			creative, err := tools.NewModelCreativeClient(chatModel)
			if err != nil {
				return fmt.Errorf("creative client: %w", err)
			}
			constructors = append(constructors,
				func() (tool.InvokableTool, error) { return tools.NewGenerateTextTool(creative) },
			)
		}
	}

	if cfg.Integrations.TikTok.Enabled {
		client, err := tools.NewTikTokAdsClient(
			cfg.Integrations.TikTok.AccessToken,
			cfg.Integrations.TikTok.AdvertiserID,
		)
		if err != nil {
			return fmt.Errorf("tiktok integration: %w", err)
		}
		constructors = append(constructors,
			func() (tool.InvokableTool, error) { return tools.NewTikTokSpendReportTool(client) },
		)
	}

	if cfg.Integrations.CRM.Enabled {
		client, err := tools.NewRESTCRMClient(
			cfg.Integrations.CRM.BaseURL,
			cfg.Integrations.CRM.APIKey,
		)
		if err != nil {
			return fmt.Errorf("crm integration: %w", err)
		}
		constructors = append(constructors,
			func() (tool.InvokableTool, error) { return tools.NewLeadsListTool(client) },
			func() (tool.InvokableTool, error) { return tools.NewLeadStatusTool(client) },
		)
	}

	for _, fn := range constructors {
		t, err := fn()
		if err != nil {
			return err
		}
		if err := registry.Register(t); err != nil {
			return err
		}
	}

	slog.Info("registered tools", "count", len(registry.Names()), "tools", registry.Names())
	return nil
}
