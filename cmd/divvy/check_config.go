package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/celliott/divvy/internal/rules"
)

// checkConfigCmd loads and validates the INI rule file, printing the
// compiled rule table as JSON, then exits 0/1.
var checkConfigCmd = &cobra.Command{
	Use:   "check-config",
	Short: "Load and validate the rule file, printing the compiled rule table",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCheckConfig()
	},
}

type ruleSummary struct {
	Source       string `json:"source"`
	CreditLimit  int64  `json:"creditLimit"`
	ResetSeconds int64  `json:"resetSeconds"`
	ActorField   string `json:"actorField,omitempty"`
}

func runCheckConfig() error {
	table, err := rules.LoadFile(flags.configPath)
	if err != nil {
		return &exitError{code: 1, err: err}
	}

	summaries := make([]ruleSummary, 0, table.Len())
	for _, r := range table.Rules() {
		summaries = append(summaries, ruleSummary{
			Source:       r.Source(),
			CreditLimit:  r.CreditLimit,
			ResetSeconds: r.ResetSeconds,
			ActorField:   r.ActorField,
		})
	}

	data, err := json.MarshalIndent(summaries, "", "  ")
	if err != nil {
		return &exitError{code: 1, err: err}
	}
	fmt.Println(string(data))
	return nil
}
