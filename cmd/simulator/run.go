package main

import (
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"dynkv/internal/params"
	"dynkv/internal/sim"
)

func runCmd() *cobra.Command {
	var scenarioPath string
	var seed int64
	var verbose bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a scenario file and print a summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			scenario, err := sim.LoadScenario(scenarioPath)
			if err != nil {
				return err
			}

			p := params.Default()
			if seed != 0 {
				p.Seed = seed
			}
			if err := p.Validate(); err != nil {
				return err
			}

			logger := logrus.New()
			if !verbose {
				logger.SetLevel(logrus.WarnLevel)
			}
			log := newCountingLog(logger)

			fmt.Println(infoMsg("bringing up %d nodes, running %d ticks", scenario.Nodes, scenario.Ticks))
			cluster := sim.Run(scenario, p, log)

			printSummary(cluster, log)
			return nil
		},
	}

	cmd.Flags().StringVarP(&scenarioPath, "scenario", "s", "", "path to a scenario YAML file")
	cmd.Flags().Int64Var(&seed, "seed", 0, "override the default PRNG seed (0 keeps the default)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "emit the full audit log instead of warnings only")
	_ = cmd.MarkFlagRequired("scenario")

	return cmd
}

func printSummary(cluster *sim.Cluster, log *countingLog) {
	live := cluster.LiveNodes()

	rows := make([][]string, 0, len(live))
	for _, n := range live {
		rows = append(rows, []string{
			n.Self().String(),
			strconv.Itoa(n.Ring().Len()),
			strconv.FormatBool(n.InGroup()),
			strconv.Itoa(n.PendingTransactions()),
		})
	}
	fmt.Println(renderTable([]string{"node", "ring_occupancy", "in_group", "pending_txns"}, rows))

	if log.fails > 0 {
		fmt.Println(warnMsg("%d coordinator-side failures logged", log.fails))
	}
	fmt.Println(mutedLine(fmt.Sprintf(
		"node_add=%d node_remove=%d coordinator_success=%d coordinator_fail=%d final_tick=%d",
		log.nodeAdds, log.nodeRemoves, log.successes, log.fails, cluster.Now(),
	)))
}
