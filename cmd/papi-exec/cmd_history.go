package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/papibridge/pkg/audit"
	"github.com/newtron-network/papibridge/pkg/cli"
	"github.com/newtron-network/papibridge/pkg/util"
)

var (
	historyAPI    string
	historyFailed bool
	historyLimit  int
	historySince  time.Duration
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent remote executions",
	Long: `Show the execution history kept in ~/.papibridge/audit.log.

Only the calls, target and outcome are recorded, never reply contents.
Disable with: papi-exec settings set audit_log off

Examples:
  papi-exec history
  papi-exec history --host dut1 --failed
  papi-exec history --api sw_interface_dump --since 24h`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := audit.Filter{
			Host:        host,
			Command:     historyAPI,
			FailureOnly: historyFailed,
			Limit:       historyLimit,
		}
		if historySince > 0 {
			filter.StartTime = time.Now().Add(-historySince)
		}
		events, err := audit.Query(filter)
		if err != nil {
			return fmt.Errorf("reading history: %w", err)
		}

		if jsonOutput {
			enc := json.NewEncoder(stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(events)
		}

		if len(events) == 0 {
			fmt.Fprintln(stdout, "No executions recorded")
			return nil
		}
		t := cli.NewTable(stdout, "TIME", "USER", "HOST", "MODE", "CALLS", "STATUS", "DURATION")
		for _, ev := range events {
			status := cli.Green("ok")
			if !ev.Success {
				status = cli.Red("FAIL")
			}
			target := ev.Host
			if ev.Node != "" {
				target += "/" + ev.Node
			}
			t.Row(
				ev.Timestamp.Local().Format("2006-01-02 15:04:05"),
				ev.User,
				target,
				ev.Mode,
				util.Truncate(strings.Join(ev.Commands, ","), 48),
				status,
				ev.Duration.Round(time.Millisecond).String(),
			)
		}
		t.Flush()
		return nil
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyAPI, "api", "", "Only executions that included this API call")
	historyCmd.Flags().BoolVar(&historyFailed, "failed", false, "Only failed executions")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Show at most this many (newest) executions; 0 for all")
	historyCmd.Flags().DurationVar(&historySince, "since", 0, "Only executions within this long ago")
	addOutputFlags(historyCmd)
}
