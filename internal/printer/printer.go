// Package printer renders coloured CLI output for assay commands.
package printer

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
)

func init() {
	// Force color output even when not connected to TTY
	// Users can disable with NO_COLOR environment variable
	if os.Getenv("NO_COLOR") == "" {
		color.NoColor = false
	}
}

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
	bold   = color.New(color.Bold)
)

// Stdout and Stderr are the destinations used by the package-level helpers.
// Tests swap them for buffers.
var (
	Stdout io.Writer = os.Stdout
	Stderr io.Writer = os.Stderr
)

// Success prints a success message in green with a checkmark prefix
func Success(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "✓") {
		green.Fprintf(Stdout, "✓ %s", msg)
	} else {
		green.Fprint(Stdout, msg)
	}
}

// Info prints an informational message in the default color
func Info(format string, a ...any) {
	fmt.Fprintf(Stdout, format, a...)
}

// Warning prints a warning message in yellow with a warning emoji prefix
func Warning(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "⚠️") {
		yellow.Fprintf(Stdout, "⚠️  %s", msg)
	} else {
		yellow.Fprint(Stdout, msg)
	}
}

// Step prints a pipeline stage marker, e.g. "→ [2/5] extract".
func Step(format string, a ...any) {
	cyan.Fprintf(Stdout, "→ %s", fmt.Sprintf(format, a...))
}

// Error prints title, explanation and suggestions to stderr and returns an
// error carrying only the title, so Cobra (with SilenceErrors) does not repeat it.
func Error(title string, explanation string, suggestions []string) error {
	return ErrorWithContext(title, explanation, nil, suggestions)
}

// ErrorWithContext is Error plus a block of key/value details, printed in key order.
func ErrorWithContext(title string, explanation string, context map[string]string, suggestions []string) error {
	red.Fprintf(Stderr, "%s\n\n", title)

	if explanation != "" {
		fmt.Fprintf(Stderr, "%s\n", explanation)
	}

	if len(context) > 0 {
		fmt.Fprintf(Stderr, "\n")
		for _, key := range sortedKeys(context) {
			fmt.Fprintf(Stderr, "  %s: %s\n", key, context[key])
		}
	}

	writeSuggestions(Stderr, suggestions)

	return fmt.Errorf("%s", title)
}

func writeSuggestions(w io.Writer, suggestions []string) {
	if len(suggestions) == 0 {
		return
	}
	fmt.Fprintf(w, "\n")
	if len(suggestions) == 1 {
		fmt.Fprintf(w, "%s\n", suggestions[0])
		return
	}
	fmt.Fprintf(w, "Either:\n")
	for i, suggestion := range suggestions {
		fmt.Fprintf(w, "  %d. %s\n", i+1, suggestion)
	}
}

// Field is one line of a Section.
type Field struct {
	Key   string
	Value string
}

// Section prints a bold heading followed by aligned key/value lines.
// Fields keep the order given.
func Section(title string, fields []Field) {
	FprintSection(Stdout, title, fields)
}

// FprintSection is Section with an explicit writer.
func FprintSection(w io.Writer, title string, fields []Field) {
	bold.Fprintf(w, "%s\n", title)

	width := 0
	for _, f := range fields {
		if len(f.Key) > width {
			width = len(f.Key)
		}
	}
	for _, f := range fields {
		value := f.Value
		if value == "" {
			value = "-"
		}
		fmt.Fprintf(w, "  %-*s  %s\n", width+1, f.Key+":", value)
	}
}

// Println prints a plain message (for output that doesn't need coloring)
func Println(a ...any) {
	fmt.Fprintln(Stdout, a...)
}

// Printf prints a plain formatted message (for output that doesn't need coloring)
func Printf(format string, a ...any) {
	fmt.Fprintf(Stdout, format, a...)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
