package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/adpilot/adpilot/internal/config"
)

func NewInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize AdPilot configuration",
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := config.ConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config already exists: %s\n", configPath)
		return nil
	}

	cfg := config.DefaultConfig()

	dirs := []string{
		config.ConfigDir(),
		cfg.WorkspacePath(),
		filepath.Join(cfg.WorkspacePath(), "state"),
		filepath.Join(cfg.WorkspacePath(), "sessions"),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("AdPilot initialized!\n")
	fmt.Printf("Config: %s\n", configPath)
	fmt.Printf("Workspace: %s\n", cfg.WorkspacePath())
	fmt.Printf("\nNext steps:\n")
	fmt.Printf("1. Edit %s: add a provider api_key and enable integrations\n", configPath)
	fmt.Printf("2. Run 'adpilot chat' to talk to the assistant\n")

	return nil
}
