// Package commands implements the vprojfs CLI surface with
// github.com/spf13/cobra, following the root-command-plus-subcommand split
// latentloop-latentfs/internal/cli/commands uses for its own daemon CLI.
package commands

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "vprojfs",
	Short: "Projects a logical filesystem into a Windows ProjFS virtual directory",
	Long:  "vprojfs bridges Windows ProjFS callbacks to a logical filesystem and a content-addressed object store, serving placeholders and file data on demand.",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "vprojfs.yaml", "path to the YAML configuration file")
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(mountCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
