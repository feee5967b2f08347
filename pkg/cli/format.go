// Package cli renders papi-exec output: status lines, aligned tables and
// API replies.
package cli

import (
	"os"
	"strings"
)

// colorEnabled is false when NO_COLOR is set (see no-color.org).
var colorEnabled = os.Getenv("NO_COLOR") == ""

// ANSI SGR codes.
const (
	sgrBold  = "1"
	sgrDim   = "2"
	sgrRed   = "31"
	sgrGreen = "32"
)

func paint(code, s string) string {
	if !colorEnabled {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

// Green marks success.
func Green(s string) string { return paint(sgrGreen, s) }

// Red marks failure.
func Red(s string) string { return paint(sgrRed, s) }

// Bold is used for reply names.
func Bold(s string) string { return paint(sgrBold, s) }

// Dim is used for counts and unset values.
func Dim(s string) string { return paint(sgrDim, s) }

// DotPad pads name with dots to width, so that
// DotPad("show_version", 20) is "show_version .......".
// Names that do not fit are returned unchanged.
func DotPad(name string, width int) string {
	if width <= 0 || len(name) >= width-1 {
		return name
	}
	return name + " " + strings.Repeat(".", width-len(name)-1)
}

// Status renders a check result: "name ..... ok", or FAIL followed by the
// error.
func Status(name string, width int, err error) string {
	if err != nil {
		return DotPad(name, width) + " " + Red("FAIL") + " " + err.Error()
	}
	return DotPad(name, width) + " " + Green("ok")
}
