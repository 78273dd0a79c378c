package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var settingsPath string

	root := &cobra.Command{
		Use:           "actrack",
		Short:         "actrack records how long applications and domains are in use.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&settingsPath, "config", "c", "", "settings file (default: per-user config dir)")

	root.AddCommand(newRunCommand(&settingsPath))
	root.AddCommand(newReportCommand(&settingsPath))
	root.AddCommand(newRecordCommand(&settingsPath))
	root.AddCommand(newCleanupCommand(&settingsPath))
	root.AddCommand(newConfigCommand(&settingsPath))
	root.AddCommand(newSettingsCommand(&settingsPath))

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
