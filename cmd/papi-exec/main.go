// papi-exec runs VPP binary API calls on a remote host over SSH.
//
// Each invocation opens one SSH session, ships a batch of API calls to the
// remote vpp-api-executor as a single command line and prints the
// normalized replies:
//
//	papi-exec --host dut1 --node vpp1 run show_version
//	papi-exec --host dut1 run sw_interface_dump sw_if_index=0xffffffff --dump
//	papi-exec --host dut1 run sw_interface_add_del_address sw_if_index=1 is_add=true prefix=10.0.0.1/24
//	papi-exec --host dut1 batch checks.yaml
//	papi-exec --host dut1 stats /if/rx /sys/vector_rate
//
// Connection flags default to the values stored with "papi-exec settings".
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/papibridge/pkg/papi"
	"github.com/newtron-network/papibridge/pkg/settings"
	"github.com/newtron-network/papibridge/pkg/util"
)

var (
	// Connection flags
	host          string
	user          string
	port          int
	keyFile       string
	knownHosts    string
	password      string
	passwordStdin bool
	node          string
	executor      string
	apiDirs       []string
	timeout       time.Duration

	// Output flags
	verbose    bool
	jsonOutput bool

	userSettings *settings.Settings
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	closeAudit()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "papi-exec",
	Short:             "Run VPP binary API calls on a remote host",
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	Long: `papi-exec sends VPP binary API calls to a remote host over SSH.

The calls of one invocation travel as a single batch to vpp-api-executor,
which runs them in order against VPP (optionally inside a container) and
returns one normalized reply per call.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			util.SetLogLevel("debug")
		} else {
			util.SetLogLevel("warn")
		}

		if isSettingsOrHelp(cmd) {
			return nil
		}

		var err error
		userSettings, err = settings.LoadFrom(settingsPath)
		if err != nil {
			util.Warnf("Could not load settings: %v", err)
			userSettings = &settings.Settings{}
		}
		openAudit(userSettings)
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&host, "host", "H", "", "Remote host running VPP")
	pf.StringVarP(&user, "user", "u", "", "SSH user")
	pf.IntVarP(&port, "port", "p", 0, "SSH port (default 22)")
	pf.StringVarP(&keyFile, "key", "k", "", "SSH private key file")
	pf.StringVar(&knownHosts, "known-hosts", "", "known_hosts file (host keys are not checked without it)")
	pf.StringVar(&password, "password", "", "SSH password (or set $"+passwordEnv+")")
	pf.BoolVar(&passwordStdin, "password-stdin", false, "Read the SSH password from stdin")
	pf.StringVarP(&node, "node", "N", "", "Container running VPP on the remote host")
	pf.StringVar(&executor, "executor", "", "Remote vpp-api-executor path")
	pf.StringSliceVar(&apiDirs, "api-dir", nil, "API descriptor directory on the remote side (repeatable)")
	pf.DurationVarP(&timeout, "timeout", "t", 0, "Execution timeout per batch (default 2m)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	for _, cmd := range []*cobra.Command{runCmd, batchCmd, statsCmd} {
		addOutputFlags(cmd)
	}

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(versionCmd)
}

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the reply envelope as JSON")
}

// isSettingsOrHelp reports whether cmd runs without a remote target.
func isSettingsOrHelp(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "settings", "version", "help":
			return true
		}
	}
	return false
}

// sessionConfig merges flags over stored settings.
func sessionConfig() (papi.Config, error) {
	s := userSettings
	if s == nil {
		s = &settings.Settings{}
	}

	cfg := papi.Config{
		Host:           firstNonEmpty(host, s.Host),
		User:           firstNonEmpty(user, s.User),
		Port:           port,
		KeyFile:        firstNonEmpty(keyFile, s.KeyFile),
		KnownHostsFile: knownHosts,
		Node:           firstNonEmpty(node, s.Node),
		Executor:       firstNonEmpty(executor, s.Executor),
		APIDirs:        apiDirs,
		Timeout:        timeout,
	}
	if cfg.Port == 0 {
		cfg.Port = s.Port
	}
	if len(cfg.APIDirs) == 0 {
		cfg.APIDirs = s.APIDirs
	}
	if cfg.Timeout == 0 {
		d, err := s.TimeoutDuration()
		if err != nil {
			return papi.Config{}, err
		}
		cfg.Timeout = d
	}

	pw, err := resolvePassword(cfg)
	if err != nil {
		return papi.Config{}, err
	}
	cfg.Password = pw
	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
