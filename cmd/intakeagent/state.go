package main

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/tbxark/intakeagent/config"
	"github.com/tbxark/intakeagent/state"
)

func newStateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Show the collected fields for a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if dbPath == "" {
				return fmt.Errorf("--db is required: in-memory sessions do not outlive the chat process")
			}
			if sessionID == "" {
				return fmt.Errorf("--session is required")
			}

			store, err := state.NewSQLiteStore(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			conv, err := store.Get(cmd.Context(), sessionID)
			if err != nil {
				return err
			}
			if conv == nil {
				return fmt.Errorf("no such session: %s", sessionID)
			}

			fmt.Printf("Session: %s\nPhase:   %s\n", conv.SessionID, conv.Phase)
			if conv.Escalation != nil {
				fmt.Printf("Escalated: %s", conv.Escalation.Reason)
				if conv.Escalation.HistorySummary != "" {
					fmt.Printf(" (%s)", conv.Escalation.HistorySummary)
				}
				fmt.Println()
			}
			fmt.Println()

			table := tablewriter.NewTable(os.Stdout)
			table.Header("Field", "Value", "Attempts")
			for _, f := range cfg.Fields {
				fs, ok := conv.Fields[f.Name]
				if !ok {
					continue
				}
				value := "-"
				if v, collected := fs.CurrentValue(); collected {
					value = v
				}
				_ = table.Append(f.Name, value, fmt.Sprintf("%d", len(fs.Attempts)))
			}
			return table.Render()
		},
	}
}
