package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/mattn/go-runewidth"
)

// Out receives all console output of this package.
var Out io.Writer = os.Stdout

// Color is false when stdout is redirected, so logs stay free of escapes.
var Color = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

func colored(code, format string, a ...interface{}) {
	if Color {
		fmt.Fprint(Out, code)
	}
	fmt.Fprintf(Out, format, a...)
	if Color {
		fmt.Fprint(Out, "\033[0m")
	}
}

func Debugf(enabled bool, format string, a ...interface{}) {
	if enabled {
		colored("\033[33m", "[DEBUG] "+format, a...)
	}
}

func Greenf(format string, a ...interface{}) {
	colored("\033[92m", format, a...)
}

func Warningf(format string, a ...interface{}) {
	colored("\033[93m", format, a...)
}

func Errorf(format string, a ...interface{}) {
	colored("\033[91m", format, a...)
}

func ClearScreen() {
	if Color {
		fmt.Fprint(Out, "\033[2J\033[1;1H")
	}
}

// Table renders rows as left-aligned columns padded by display width, with a
// rule under the header row.
func Table(header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, r := range rows {
		for i := 0; i < len(r) && i < len(widths); i++ {
			widths[i] = max(widths[i], runewidth.StringWidth(r[i]))
		}
	}

	var b strings.Builder
	line := func(cells []string) {
		for i, w := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			if i == len(widths)-1 {
				b.WriteString(cell)
			} else {
				b.WriteString(runewidth.FillRight(cell, w))
				b.WriteString("  ")
			}
		}
		b.WriteString("\n")
	}
	line(header)
	rule := make([]string, len(widths))
	for i, w := range widths {
		rule[i] = strings.Repeat("-", w)
	}
	line(rule)
	for _, r := range rows {
		line(r)
	}
	return b.String()
}
