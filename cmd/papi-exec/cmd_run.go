package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/papibridge/pkg/papi"
)

var (
	runDump         bool
	runIgnoreErrors bool
	runRaw          bool
	runChecks       checks
)

var runCmd = &cobra.Command{
	Use:   "run <api> [key=value ...]",
	Short: "Run one API call",
	Long: `Run one VPP binary API call on the remote host.

Arguments are key=value pairs. Integers (including 0x hex) and true/false
are typed; JSON objects and lists are accepted for nested fields; any
other value is sent as text and converted by the remote side according to
the message definition (IP addresses, prefixes, MAC addresses).

Examples:
  papi-exec run show_version
  papi-exec run sw_interface_dump sw_if_index=0xffffffff --dump
  papi-exec run sw_interface_set_flags sw_if_index=1 flags=1 --verify
  papi-exec run show_version --expect 'program: vpe'`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		apiArgs, err := parseArgs(args[1:])
		if err != nil {
			return err
		}
		cfg, err := sessionConfig()
		if err != nil {
			return err
		}

		mode := papi.ModeRequest
		if runDump {
			mode = papi.ModeDump
		}
		var opts []papi.Option
		if runIgnoreErrors {
			opts = append(opts, papi.WithIgnoreErrors())
		}
		if runRaw {
			opts = append(opts, papi.WithoutReplyProcessing())
		}

		ctx := cmdContext(cmd)
		start := time.Now()
		var resp *papi.Response
		err = papi.With(ctx, cfg, func(e *papi.Executor) error {
			var err error
			resp, err = e.Add(args[0], apiArgs).Execute(ctx, mode, opts...)
			return err
		})
		record(cfg, mode, []string{args[0]}, start, resp, err)
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}

		if runRaw {
			printRaw(stdout, resp)
			return nil
		}
		return report(stdout, resp, runChecks)
	},
}

func init() {
	runCmd.Flags().BoolVarP(&runDump, "dump", "D", false, "Treat the call as a dump (replies are lists of details)")
	runCmd.Flags().BoolVar(&runIgnoreErrors, "ignore-errors", false, "Skip malformed reply entries")
	runCmd.Flags().BoolVar(&runRaw, "raw", false, "Print remote stdout without processing it")
	runChecks.register(runCmd.Flags())
}
