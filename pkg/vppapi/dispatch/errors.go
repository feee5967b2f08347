package dispatch

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

var (
	// ErrUnknownCommand means an API name resolved to no handler.
	ErrUnknownCommand = errors.New("unknown API command")

	// ErrInvalidArgs means the arguments could not be bound to the request.
	ErrInvalidArgs = errors.New("invalid arguments")

	// ErrInvocation means the call reached VPP and failed there.
	ErrInvocation = errors.New("invocation failed")
)

// UnknownCommandError is returned for a name with no registered handler.
type UnknownCommandError struct {
	Name string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown API command %q", e.Name)
}

func (e *UnknownCommandError) Unwrap() error {
	return ErrUnknownCommand
}

// CommandError wraps the failure of one command with its name and decoded
// arguments. Input is set for unknown commands and bad arguments.
type CommandError struct {
	Name  string
	Args  map[string]any
	Input bool
	Err   error
}

func (e *CommandError) Error() string {
	kind := "error"
	if e.Input {
		kind = "input error"
	}
	return fmt.Sprintf("PAPI command %s(%s) %s:\n%v", e.Name, FormatArgs(e.Args), kind, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// newCommandError classifies err and wraps it.
func newCommandError(name string, args map[string]any, err error) *CommandError {
	input := errors.Is(err, ErrUnknownCommand) || errors.Is(err, ErrInvalidArgs)
	if !input && !errors.Is(err, ErrInvocation) {
		err = fmt.Errorf("%w: %w", ErrInvocation, err)
	}
	return &CommandError{Name: name, Args: args, Input: input, Err: err}
}

// FormatArgs renders decoded arguments as key=value pairs in key order.
// Byte strings print as quoted text when printable, else as hex.
func FormatArgs(args map[string]any) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + formatValue(args[k])
	}
	return strings.Join(parts, ", ")
}

func formatValue(v any) string {
	switch x := v.(type) {
	case []byte:
		if utf8.Valid(x) && !strings.ContainsFunc(string(x), func(r rune) bool { return r < 0x20 }) {
			return fmt.Sprintf("%q", x)
		}
		return fmt.Sprintf("0x%x", x)
	case map[string]any:
		return "{" + FormatArgs(x) + "}"
	case []any:
		parts := make([]string, len(x))
		for i, el := range x {
			parts[i] = formatValue(el)
		}
		return "[" + strings.Join(parts, " ") + "]"
	}
	return fmt.Sprint(v)
}
