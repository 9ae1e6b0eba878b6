package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"minimill/internal/domain"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

// statusStyles is indexed by statusKind.
var statusStyles = [...]struct {
	tag   string
	color string
}{
	statusInfo:  {"INFO", ansiBlue},
	statusOK:    {"OK", ansiGreen},
	statusWarn:  {"WARN", ansiYellow},
	statusError: {"ERROR", ansiRed},
}

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

func styleFor(kind statusKind) (tag, color string) {
	if kind < 0 || int(kind) >= len(statusStyles) {
		kind = statusInfo
	}
	s := statusStyles[kind]
	return s.tag, s.color
}

// renderStatusLine lays out "  Label:   [TAG] message" with the label column
// padded so sections line up.
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	tag, _ := styleFor(kind)
	var b strings.Builder
	b.WriteString(statusIndent)
	fmt.Fprintf(&b, "%-*s [%s]", statusLabelWidth, label+":", tag)
	if message != "" {
		b.WriteByte(' ')
		b.WriteString(message)
	}
	return paint(b.String(), kind, colorize)
}

func renderNotice(notice *domain.Notice, colorize bool) string {
	kind := noticeKind(notice.Type)
	tag, _ := styleFor(kind)
	return paint("["+tag+"] "+notice.Message, kind, colorize)
}

func paint(line string, kind statusKind, colorize bool) string {
	if !colorize {
		return line
	}
	_, color := styleFor(kind)
	return color + line + ansiReset
}

func renderSectionHeader(title string, colorize bool) []string {
	line := "== " + strings.TrimSpace(title) + " =="
	lines := []string{line, strings.Repeat("-", len(line))}
	if colorize {
		for i := range lines {
			lines[i] = paint(lines[i], statusInfo, true)
		}
	}
	return lines
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	return ok && isTerminal(file)
}

func isTerminal(file *os.File) bool {
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
