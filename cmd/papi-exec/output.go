package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/newtron-network/papibridge/pkg/cli"
	"github.com/newtron-network/papibridge/pkg/papi"
)

var stdout io.Writer = os.Stdout

// checks are the verifications a command runs on its response.
type checks struct {
	replies bool   // every request produced its _reply
	expect  string // text lines that must appear in the rendered replies
}

func (c *checks) register(fs interface {
	BoolVar(*bool, string, bool, string)
	StringVar(*string, string, string, string)
}) {
	fs.BoolVar(&c.replies, "verify", false, "Fail unless every call returned its _reply message")
	fs.StringVar(&c.expect, "expect", "", "Lines (newline separated) that must appear in the replies")
}

// report prints resp and runs the checks. The first failed check is
// returned after the output has been written.
func report(w io.Writer, resp *papi.Response, c checks) error {
	if jsonOutput {
		fmt.Fprintln(w, strings.TrimSpace(resp.Stdout))
	} else {
		cli.PrintResponse(w, resp)
	}

	var failed error
	if c.replies {
		err := resp.VerifyReplies()
		fmt.Fprintln(w, cli.Status("verify replies", 32, err))
		failed = err
	}
	if c.expect != "" {
		err := resp.VerifyReply(strings.ReplaceAll(c.expect, `\n`, "\n"))
		fmt.Fprintln(w, cli.Status("verify expected lines", 32, err))
		if failed == nil {
			failed = err
		}
	}
	return failed
}

// printRaw writes unprocessed remote output.
func printRaw(w io.Writer, resp *papi.Response) {
	fmt.Fprint(w, resp.Stdout)
	if resp.Stderr != "" {
		fmt.Fprintln(os.Stderr, strings.TrimRight(resp.Stderr, "\n"))
	}
}
