package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vku/taskchat/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "taskchat",
	Short: "taskchat - conversational task assistant gateway",
	Long:  `taskchat is an authenticated gateway that lets a task-management client converse with a generative-AI backend about the caller's tasks.`,
	// No RunE - defaults to showing help when no subcommand is provided
}

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "Path to config file")

	// Add subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(taskCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
