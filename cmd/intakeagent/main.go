package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	cfgPath   string
	sessionID string
	dbPath    string
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "intakeagent",
		Short:         "Conversational data-collection agent",
		Long:          "intakeagent runs a structured, single-field-at-a-time data-collection dialogue driven by an LLM, validating each answer and escalating once everything is collected or the user asks for a human.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Path to agent YAML config (required)")
	rootCmd.PersistentFlags().StringVarP(&sessionID, "session", "s", "", "Session ID (default: generated)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (default: in-memory state)")
	_ = rootCmd.MarkPersistentFlagRequired("config")

	rootCmd.AddCommand(newChatCmd())
	rootCmd.AddCommand(newStateCmd())
	return rootCmd
}

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
