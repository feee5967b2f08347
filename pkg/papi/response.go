package papi

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Reply is one normalized API reply. Request/reply calls fill Fields; dumps
// fill Details with one mapping per details message.
type Reply struct {
	Name    string
	Fields  map[string]any
	Details []map[string]any
}

// IsDump reports whether the reply came from a dump call.
func (r Reply) IsDump() bool {
	return r.Details != nil
}

// Lines renders the reply as text: its name followed by one "key: value"
// line per leaf, nested keys joined with dots. Dumps repeat the name before
// each details entry.
func (r Reply) Lines() []string {
	if !r.IsDump() {
		return append([]string{r.Name}, flatten("", r.Fields)...)
	}
	var lines []string
	for _, d := range r.Details {
		lines = append(lines, r.Name)
		lines = append(lines, flatten("", d)...)
	}
	return lines
}

// Response is the outcome of one round trip. It holds no reference to the
// executor that produced it.
type Response struct {
	Replies []Reply
	Stdout  string
	Stderr  string

	// BatchID identifies the round trip in executor logs.
	BatchID string

	// Requests lists the API names of the batch in submission order.
	Requests []string
	// ExpectedReplyNames is "<request>_reply" for each request, or nil when
	// the response was built without requests. Used only by verification.
	ExpectedReplyNames []string
}

func newResponse(stdout, stderr string, requests []string) *Response {
	r := &Response{Stdout: stdout, Stderr: stderr, Requests: requests}
	if len(requests) > 0 {
		r.ExpectedReplyNames = make([]string, len(requests))
		for i, rqst := range requests {
			r.ExpectedReplyNames[i] = rqst + "_reply"
		}
	}
	return r
}

// ReplyNames returns the names of all replies in order.
func (r *Response) ReplyNames() []string {
	names := make([]string, len(r.Replies))
	for i, rep := range r.Replies {
		names[i] = rep.Name
	}
	return names
}

// Lines renders every reply as text, in reply order.
func (r *Response) Lines() []string {
	var lines []string
	for _, rep := range r.Replies {
		lines = append(lines, rep.Lines()...)
	}
	return lines
}

// VerifyReplies checks, position by position, that request i produced
// "<request>_reply". Dump replies carry the details message name instead
// and are not checked. A reply dropped by a failed command shifts the
// ones after it, so the first failed request is the one reported.
func (r *Response) VerifyReplies() error {
	if r.ExpectedReplyNames == nil {
		return ErrNoRequests
	}
	for i, want := range r.ExpectedReplyNames {
		if i >= len(r.Replies) {
			return &VerificationError{Missing: want}
		}
		if rep := r.Replies[i]; !rep.IsDump() && rep.Name != want {
			return &VerificationError{Missing: want}
		}
	}
	return nil
}

// VerifyReply checks that each non-empty line of expected appears among the
// response's text lines. Surrounding whitespace is ignored on both sides.
// The error names the first missing line and carries a line diff.
func (r *Response) VerifyReply(expected string) error {
	actual := r.Lines()
	present := make(map[string]bool, len(actual))
	for _, line := range actual {
		present[strings.TrimSpace(line)] = true
	}
	for _, line := range strings.Split(expected, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || present[line] {
			continue
		}
		return &VerificationError{
			Missing: line,
			Diff:    lineDiff(expected, strings.Join(actual, "\n")),
		}
	}
	return nil
}

// String returns a readable summary.
func (r *Response) String() string {
	return fmt.Sprintf("papi_reply=%v,stdout=%s,stderr=%s,requests=%v",
		r.Replies, r.Stdout, r.Stderr, r.Requests)
}

// lineDiff renders a line-oriented diff of want against got, prefixing
// removed lines with "-" and added lines with "+".
func lineDiff(want, got string) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(strings.TrimSpace(want)+"\n", strings.TrimSpace(got)+"\n")
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var sb strings.Builder
	for _, d := range diffs {
		prefix := "  "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		}
		for _, line := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			sb.WriteString(prefix + line + "\n")
		}
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

func flatten(prefix string, v any) []string {
	switch x := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var lines []string
		for _, k := range keys {
			lines = append(lines, flatten(join(prefix, k), x[k])...)
		}
		return lines
	case []map[string]any:
		var lines []string
		for i, item := range x {
			lines = append(lines, flatten(fmt.Sprintf("%s[%d]", prefix, i), item)...)
		}
		return lines
	case []any:
		var lines []string
		for i, item := range x {
			lines = append(lines, flatten(fmt.Sprintf("%s[%d]", prefix, i), item)...)
		}
		return lines
	}
	return []string{fmt.Sprintf("%s: %v", prefix, v)}
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
