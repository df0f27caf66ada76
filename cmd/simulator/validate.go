package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dynkv/internal/sim"
)

func validateCmd() *cobra.Command {
	var scenarioPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Parse and sanity-check a scenario file without running it",
		RunE: func(cmd *cobra.Command, args []string) error {
			scenario, err := sim.LoadScenario(scenarioPath)
			if err != nil {
				return err
			}
			fmt.Println(infoMsg("scenario %q: %d nodes, %d ticks, %d events", scenarioPath, scenario.Nodes, scenario.Ticks, len(scenario.Events)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&scenarioPath, "scenario", "s", "", "path to a scenario YAML file")
	_ = cmd.MarkFlagRequired("scenario")

	return cmd
}
