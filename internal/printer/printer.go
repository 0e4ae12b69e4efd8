// Package printer provides colored terminal output helpers for the CLI.
package printer

import (
	"fmt"
	"os"
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
)

// Success prints a success message in green with a checkmark prefix
func Success(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "✓") {
		green.Printf("✓ %s", msg)
	} else {
		green.Print(msg)
	}
}

// Warning prints a warning message in yellow with a warning emoji prefix
func Warning(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "⚠️") {
		yellow.Printf("⚠️  %s", msg)
	} else {
		yellow.Print(msg)
	}
}

// Error prints a formatted error with title and suggestions to stderr and
// returns a simple error for Cobra (which won't reprint it due to SilenceErrors)
func Error(title string, explanation string, suggestions []string) error {
	red.Fprintf(os.Stderr, "%s\n\n", title)

	if explanation != "" {
		fmt.Fprintf(os.Stderr, "%s\n", explanation)
	}

	if len(suggestions) > 0 {
		fmt.Fprintf(os.Stderr, "\n")
		for _, suggestion := range suggestions {
			fmt.Fprintf(os.Stderr, "  %s\n", suggestion)
		}
	}

	return fmt.Errorf("%s", title)
}

// Println prints a plain message (for output that doesn't need coloring)
func Println(a ...any) {
	fmt.Println(a...)
}

// Printf prints a plain formatted message (for output that doesn't need coloring)
func Printf(format string, a ...any) {
	fmt.Printf(format, a...)
}
