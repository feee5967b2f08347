// vpp-api-executor runs a batch of VPP binary API calls on the host (or in
// the container) where VPP runs.
//
// It is invoked by papi-exec over SSH with the batch as a JSON envelope:
//
//	vpp-api-executor --mode request --data '[{"api_name":"show_version","api_args":{}}]'
//
// String and byte arguments in the envelope are hex encoded. On success the
// reply envelope is printed once on stdout and the exit status is 0. On any
// failure stdout stays empty, the error goes to stderr and the exit status
// is 1. Logs always go to stderr.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/newtron-network/papibridge/pkg/papi"
	"github.com/newtron-network/papibridge/pkg/util"
	"github.com/newtron-network/papibridge/pkg/version"
	"github.com/newtron-network/papibridge/pkg/vppapi/binding"
	"github.com/newtron-network/papibridge/pkg/vppapi/dispatch"
	"github.com/newtron-network/papibridge/pkg/vppapi/schema"
)

var (
	data            string
	mode            string
	apiDirs         []string
	apiSocket       string
	statsSocket     string
	continueOnError bool
	verbose         bool
	jsonLogs        bool
)

var stdout io.Writer = os.Stdout

// newBinding connects the dispatcher to VPP; tests substitute a fake.
var newBinding = func(apiSocket, statsSocket string) dispatch.Binding {
	return binding.NewGoVPP(apiSocket, statsSocket, binding.DefaultMessages())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "vpp-api-executor",
	Short:             "Execute a batch of VPP binary API calls",
	Version:           version.Info(),
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	Args:              cobra.NoArgs,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if jsonLogs {
			util.SetJSONFormat()
		}
		if verbose {
			util.SetLogLevel("debug")
		} else {
			util.SetLogLevel("warn")
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if data == "" {
			return papi.ErrEmptyBatch
		}
		m, err := papi.ParseMode(mode)
		if err != nil {
			return err
		}

		d, err := newDispatcher()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		out, err := d.Run(ctx, m, []byte(data))
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(stdout, string(out))
		return err
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the API calls the loaded descriptors provide",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDispatcher()
		if err != nil {
			return err
		}
		for _, name := range d.Commands() {
			fmt.Fprintln(stdout, name)
		}
		return nil
	},
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&data, "data", "", "JSON request envelope")
	f.StringVar(&mode, "mode", string(papi.ModeRequest), "Execution mode: request, dump or stats")
	f.BoolVar(&continueOnError, "continue-on-error", false, "Report failing calls in the envelope and keep going")

	pf := rootCmd.PersistentFlags()
	pf.StringSliceVar(&apiDirs, "api-dir", nil, "API descriptor directory (repeatable; default "+fmt.Sprint(schema.DefaultDirs)+")")
	pf.StringVar(&apiSocket, "socket", binding.DefaultAPISocket, "VPP binary API socket")
	pf.StringVar(&statsSocket, "stats-socket", binding.DefaultStatsSocket, "VPP stats segment socket")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Debug logging on stderr")
	pf.BoolVar(&jsonLogs, "log-json", false, "Log in JSON format")

	rootCmd.AddCommand(listCmd)
}

func newDispatcher() (*dispatch.Dispatcher, error) {
	reg, err := schema.Load(apiDirs...)
	if err != nil {
		return nil, fmt.Errorf("loading API descriptors: %w", err)
	}
	var opts []dispatch.Option
	if continueOnError {
		opts = append(opts, dispatch.WithContinueOnError())
	}
	return dispatch.New(reg, newBinding(apiSocket, statsSocket), opts...), nil
}
