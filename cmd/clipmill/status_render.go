package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

var statusStyles = map[statusKind]struct {
	label string
	color text.Colors
}{
	statusInfo:  {"INFO", text.Colors{text.FgBlue}},
	statusOK:    {"OK", text.Colors{text.FgGreen}},
	statusWarn:  {"WARN", text.Colors{text.FgYellow}},
	statusError: {"ERROR", text.Colors{text.FgRed}},
}

// renderStatusLine formats "  label:            [OK] detail".
func renderStatusLine(label string, kind statusKind, detail string, colorize bool) string {
	line := fmt.Sprintf("  %-18s [%s]", label+":", statusStyles[kind].label)
	if detail != "" {
		line += " " + detail
	}
	return colorText(line, kind, colorize)
}

func colorText(value string, kind statusKind, colorize bool) string {
	if !colorize {
		return value
	}
	return statusStyles[kind].color.Sprint(value)
}

func renderSectionHeader(title string, colorize bool) []string {
	heading := "== " + strings.TrimSpace(title) + " =="
	return []string{
		colorText(heading, statusInfo, colorize),
		colorText(strings.Repeat("-", len(heading)), statusInfo, colorize),
	}
}

// shouldColorize reports whether w is a terminal and NO_COLOR is unset.
func shouldColorize(w io.Writer) bool {
	if _, set := os.LookupEnv("NO_COLOR"); set {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
