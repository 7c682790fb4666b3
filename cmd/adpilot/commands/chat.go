package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/adpilot/adpilot/internal/bus"
	"github.com/adpilot/adpilot/internal/config"
	"github.com/adpilot/adpilot/internal/orchestrator"
	"github.com/adpilot/adpilot/internal/provider"
)

var (
	promptStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8E4EC6"))
	noticeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#E8A33D"))
	approvalStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#D94F4F"))
)

func NewChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat [message]",
		Short: "Chat with AdPilot",
		RunE:  runChat,
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	chatModel, err := provider.NewChatModel(ctx, cfg)
	if err != nil {
		fmt.Println(noticeStyle.Render(fmt.Sprintf("No model configured (%v): reports run in direct mode.", err)))
		chatModel = nil
	}

	msgBus := bus.NewMessageBus(10)
	application, err := buildApp(cfg, msgBus, chatModel)
	if err != nil {
		return err
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		renderer = nil
	}

	if len(args) > 0 {
		env, err := application.runner.ProcessForChannel(ctx, "cli", "direct", "user", strings.Join(args, " "))
		if err != nil {
			return err
		}
		printEnvelope(renderer, env)
		return nil
	}

	fmt.Println("AdPilot ready. Type 'exit' to quit.")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print(promptStyle.Render("\n> "))
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "exit" || input == "quit" {
			break
		}
		if input == "" {
			continue
		}

		env, err := application.runner.ProcessForChannel(ctx, "cli", "direct", "user", input)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		printEnvelope(renderer, env)
	}

	return nil
}

func printEnvelope(renderer *glamour.TermRenderer, env orchestrator.Envelope) {
	switch env.Kind {
	case orchestrator.KindApprovalRequired:
		fmt.Println(approvalStyle.Render("Approval required") + " (plan " + env.PlanID + ")")
	case orchestrator.KindLimitReached:
		fmt.Println(noticeStyle.Render("Tool budget exhausted, partial data:"))
	}

	text := env.Text
	if renderer != nil {
		if rendered, err := renderer.Render(text); err == nil {
			text = rendered
		}
	}
	fmt.Println(text)
}
