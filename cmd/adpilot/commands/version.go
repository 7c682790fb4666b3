package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/adpilot/adpilot/internal/version"
)

// NewVersionCmd creates the version command
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of AdPilot",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("adpilot %s %s/%s\n", version.Version, runtime.GOOS, runtime.GOARCH)
		},
	}
}
