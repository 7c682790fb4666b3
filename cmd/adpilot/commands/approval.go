package commands

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/adpilot/adpilot/internal/approval"
	"github.com/adpilot/adpilot/internal/config"
)

func NewApprovalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approval",
		Short: "Manage approval requests",
	}

	cmd.AddCommand(
		newApprovalListCmd(),
		newApprovalApproveCmd(),
		newApprovalRejectCmd(),
	)

	return cmd
}

func newApprovalListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List approval requests",
		RunE:  runApprovalList,
	}
	cmd.Flags().String("status", "pending", "Filter by status (pending|approved|rejected|expired|executed|all)")
	return cmd
}

func newApprovalApproveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approve <plan-id>",
		Short: "Approve a parked plan",
		Args:  cobra.ExactArgs(1),
		RunE:  runApprovalApprove,
	}
	cmd.Flags().String("by", "", "Decision maker")
	cmd.Flags().String("note", "", "Decision note")
	_ = cmd.MarkFlagRequired("by")
	return cmd
}

func newApprovalRejectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reject <plan-id>",
		Short: "Reject a parked plan",
		Args:  cobra.ExactArgs(1),
		RunE:  runApprovalReject,
	}
	cmd.Flags().String("by", "", "Decision maker")
	cmd.Flags().String("note", "", "Decision note")
	_ = cmd.MarkFlagRequired("by")
	return cmd
}

func runApprovalList(cmd *cobra.Command, args []string) error {
	svc, err := loadApprovalService()
	if err != nil {
		return err
	}

	statusFlag, _ := cmd.Flags().GetString("status")
	query := approval.Query{}
	if !strings.EqualFold(strings.TrimSpace(statusFlag), "all") {
		query.Status = approval.RequestStatus(strings.ToLower(strings.TrimSpace(statusFlag)))
	}

	requests, err := svc.List(query)
	if err != nil {
		return err
	}
	if len(requests) == 0 {
		fmt.Println("No matching approvals.")
		return nil
	}

	var (
		headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8E4EC6")).MarginRight(1)
		planStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(38).MarginRight(1)
		toolStyle   = lipgloss.NewStyle().Width(24).MarginRight(1)
		statusStyle = lipgloss.NewStyle().Width(10).MarginRight(1)
	)

	fmt.Println(
		headerStyle.Width(38).Render("PLAN") +
			headerStyle.Width(24).Render("TOOL") +
			headerStyle.Width(10).Render("STATUS") +
			headerStyle.Render("REQUESTED"),
	)
	for _, req := range requests {
		fmt.Println(
			planStyle.Render(req.PlanID) +
				toolStyle.Render(req.ToolName) +
				statusStyle.Render(string(req.Status)) +
				req.RequestedAt.Format("2006-01-02 15:04"),
		)
	}
	return nil
}

func runApprovalApprove(cmd *cobra.Command, args []string) error {
	return runApprovalDecision(cmd, args[0], true)
}

func runApprovalReject(cmd *cobra.Command, args []string) error {
	return runApprovalDecision(cmd, args[0], false)
}

func runApprovalDecision(cmd *cobra.Command, planID string, approve bool) error {
	svc, err := loadApprovalService()
	if err != nil {
		return err
	}

	by, _ := cmd.Flags().GetString("by")
	note, _ := cmd.Flags().GetString("note")
	if strings.TrimSpace(by) == "" {
		return fmt.Errorf("--by is required")
	}

	decision := approval.DecisionInput{
		DecidedBy: strings.TrimSpace(by),
		Note:      strings.TrimSpace(note),
	}

	if approve {
		if _, err := svc.Approve(planID, decision); err != nil {
			return err
		}
		fmt.Printf("Plan %s approved. It runs on the next message in that chat.\n", planID)
		return nil
	}

	if _, err := svc.Reject(planID, decision); err != nil {
		return err
	}
	fmt.Printf("Plan %s rejected.\n", planID)
	return nil
}

func loadApprovalService() (*approval.Service, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	workspacePath, err := cfg.WorkspacePathChecked()
	if err != nil {
		return nil, fmt.Errorf("invalid workspace: %w", err)
	}
	return approval.NewService(workspacePath), nil
}
