package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/papibridge/pkg/papi"
)

var statsCmd = &cobra.Command{
	Use:   "stats [pattern ...]",
	Short: "Read counters from the VPP stats segment",
	Long: `Read counters from the VPP stats segment. Patterns select statistics
by path prefix; with none, every statistic is returned.

Examples:
  papi-exec stats
  papi-exec stats /if/rx /if/tx
  papi-exec stats /sys/vector_rate --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := sessionConfig()
		if err != nil {
			return err
		}

		ctx := cmdContext(cmd)
		start := time.Now()
		var resp *papi.Response
		err = papi.With(ctx, cfg, func(e *papi.Executor) error {
			var err error
			resp, err = e.AddStats(args...).GetStats(ctx)
			return err
		})
		record(cfg, papi.ModeStats, []string{papi.StatsCommand}, start, resp, err)
		if err != nil {
			return err
		}
		return report(stdout, resp, checks{})
	},
}
