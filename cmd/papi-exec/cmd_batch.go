package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/papibridge/pkg/papi"
)

var batchChecks checks

var batchCmd = &cobra.Command{
	Use:   "batch <file.yaml>",
	Short: "Run a batch of API calls from a YAML file",
	Long: `Run the calls listed in a YAML batch file as one remote execution.

  mode: request          # request, dump or stats
  timeout: 30s
  ignore_errors: false
  commands:
    - api: show_version
    - api: control_ping

Replies come back in command order.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bf, err := papi.LoadBatchFile(args[0])
		if err != nil {
			return err
		}
		cfg, err := sessionConfig()
		if err != nil {
			return err
		}

		ctx := cmdContext(cmd)
		start := time.Now()
		var resp *papi.Response
		err = papi.With(ctx, cfg, func(e *papi.Executor) error {
			var err error
			resp, err = bf.Run(ctx, e)
			return err
		})
		record(cfg, bf.Mode, bf.Batch().Names(), start, resp, err)
		if err != nil {
			return err
		}
		return report(stdout, resp, batchChecks)
	},
}

func init() {
	batchChecks.register(batchCmd.Flags())
}
