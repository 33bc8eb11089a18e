package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
)

const ansiReset = "\x1b[0m"

// label and ANSI color for each status kind.
func statusKindStyle(kind statusKind) (string, string) {
	switch kind {
	case statusOK:
		return "OK", "\x1b[32m"
	case statusWarn:
		return "WARN", "\x1b[33m"
	default:
		return "INFO", "\x1b[34m"
	}
}

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	name, color := statusKindStyle(kind)
	statusText := "[" + name + "]"
	if message != "" {
		statusText += " " + message
	}
	line := fmt.Sprintf("  %-18s %s", label+":", statusText)
	if colorize && color != "" {
		return color + line + ansiReset
	}
	return line
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		const blue = "\x1b[34m"
		line = blue + line + ansiReset
		rule = blue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}
