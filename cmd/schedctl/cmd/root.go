package cmd

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "schedctl",
		Short:        "Scheduled obligations operator tool",
		SilenceUsage: true,
	}
	root.AddCommand(newTokenCmd(), newProjectCmd())
	return root
}

// Execute is the main entry point called from main.go.
func Execute() error {
	return newRootCmd().Execute()
}
