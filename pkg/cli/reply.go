package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/newtron-network/papibridge/pkg/papi"
	"github.com/newtron-network/papibridge/pkg/util"
)

// maxStatWidth caps a rendered stats value in table output.
const maxStatWidth = 72

// PrintResponse writes every reply of resp in reply order. Stats replies are
// tabulated by statistic name; other replies print one "key: value" line per
// leaf, dumps with one indented block per details entry.
func PrintResponse(w io.Writer, resp *papi.Response) {
	for _, rep := range resp.Replies {
		switch {
		case rep.Name == papi.StatsCommand:
			printStats(w, rep.Fields)
		case rep.IsDump():
			fmt.Fprintf(w, "%s %s\n", Bold(rep.Name), Dim(fmt.Sprintf("(%d entries)", len(rep.Details))))
			for i, d := range rep.Details {
				fmt.Fprintf(w, "  [%d]\n", i)
				printLeaves(w, "    ", d)
			}
		default:
			fmt.Fprintln(w, Bold(rep.Name))
			printLeaves(w, "  ", rep.Fields)
		}
	}
}

func printLeaves(w io.Writer, indent string, fields map[string]any) {
	// Lines starts with the reply name; leaves follow.
	lines := papi.Reply{Fields: fields}.Lines()[1:]
	for _, line := range lines {
		fmt.Fprintln(w, indent+line)
	}
}

func printStats(w io.Writer, stats map[string]any) {
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)

	t := NewTable(w, "STAT", "VALUE")
	for _, name := range names {
		t.Row(name, statValue(stats[name]))
	}
	t.Flush()
}

func statValue(v any) string {
	switch v.(type) {
	case map[string]any, []any:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return util.Truncate(string(data), maxStatWidth)
	}
	return fmt.Sprint(v)
}
