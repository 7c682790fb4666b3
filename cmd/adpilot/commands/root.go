package commands

import (
	"github.com/spf13/cobra"

	"github.com/adpilot/adpilot/internal/config"
)

var logLevelOverride string

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "adpilot",
		Short: "AdPilot - conversational marketing operations assistant",
		Long:  `AdPilot routes chat messages to marketing domains and runs policy-gated tool calls against ad and CRM platforms.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "init" {
				return configureLogger(config.DefaultConfig(), logLevelOverride, false)
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return configureLogger(cfg, logLevelOverride, cmd.Name() == "chat")
		},
	}

	cmd.PersistentFlags().StringVar(&logLevelOverride, "log-level", "", "Override log level (debug|info|warn|error)")

	cmd.AddCommand(
		NewInitCmd(),
		NewChatCmd(),
		NewRunCmd(),
		NewApprovalCmd(),
		NewStatusCmd(),
		NewVersionCmd(),
	)

	return cmd
}
