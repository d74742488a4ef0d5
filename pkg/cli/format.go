// Package cli provides shared formatting helpers for portctl.
package cli

import (
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/newtron-network/portmgr/pkg/util"
)

// colorEnabled is false when NO_COLOR env var is set (per no-color.org).
var colorEnabled = os.Getenv("NO_COLOR") == ""

func paint(code, s string) string {
	if !colorEnabled {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

func Green(s string) string  { return paint("32", s) }
func Yellow(s string) string { return paint("33", s) }
func Red(s string) string    { return paint("31", s) }
func Bold(s string) string   { return paint("1", s) }
func Dim(s string) string    { return paint("2", s) }

// DotPad pads name with dots to the given width.
// Example: DotPad("port 4", 20) → "port 4 ............."
func DotPad(name string, width int) string {
	if width <= 0 || len(name) >= width-1 {
		return name
	}
	dots := width - len(name) - 1
	return name + " " + strings.Repeat(".", dots)
}

// UpDown renders a link or admin state.
func UpDown(up bool) string {
	if up {
		return Green("up")
	}
	return Red("down")
}

// Status renders the outcome of an operation as its status name, green on
// success and red otherwise.
func Status(err error) string {
	name := util.StatusName(err)
	if err == nil {
		return Green(name)
	}
	return Red(name)
}

// PrintJSON writes v as indented JSON followed by a newline.
func PrintJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
