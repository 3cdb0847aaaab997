package ui

import (
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"
)

// Banner printed before interactive commands
const Banner = `
   ┌─┐┌─┐┬─┐┌─┐┌─┐┬─┐┌─┐┌┐
   └─┐├┤ ├┬┘├─┘│ ┬├┬┘├─┤├┴┐
   └─┘└─┘┴└─┴  └─┘┴└─┴ ┴└─┘
   search result collector
`

var (
	mu           sync.RWMutex
	out          io.Writer = os.Stdout
	colorEnabled           = isTerminal(os.Stdout)
	quiet        bool
)

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// colorize returns a function that wraps text with ANSI color codes when
// color output is enabled
func colorize(colorString string) func(string) string {
	return func(text string) string {
		mu.RLock()
		enabled := colorEnabled
		mu.RUnlock()
		if !enabled {
			return text
		}
		return fmt.Sprintf(colorString, text)
	}
}

// SetColorEnabled overrides terminal detection
func SetColorEnabled(enabled bool) {
	mu.Lock()
	colorEnabled = enabled
	mu.Unlock()
}

// SetQuietMode suppresses everything except errors
func SetQuietMode(enabled bool) {
	mu.Lock()
	quiet = enabled
	mu.Unlock()
}

// SetOutput redirects printed output. A nil writer restores stdout.
func SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	mu.Lock()
	out = w
	mu.Unlock()
}

func writer(always bool) io.Writer {
	mu.RLock()
	defer mu.RUnlock()
	if quiet && !always {
		return io.Discard
	}
	return out
}

// PrintBanner prints the banner
func PrintBanner() {
	fmt.Fprint(writer(false), Cyan(Banner))
}

// PrintError prints an error message in red
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Fprintln(writer(true), Red(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(writer(true), Red(msg))
	}
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	fmt.Fprintln(writer(false), Green(msg))
}

// PrintInfo prints a labelled value
func PrintInfo(label string, value string) {
	fmt.Fprintf(writer(false), "%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Fprintln(writer(false), Yellow(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(writer(false), Yellow(msg))
	}
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	fmt.Fprintln(writer(false), Magenta(msg))
}

// PrintList prints one item per line. Items are printed even in quiet mode
// since they are the command's result.
func PrintList(items []string) {
	w := writer(true)
	for _, item := range items {
		fmt.Fprintln(w, item)
	}
}
