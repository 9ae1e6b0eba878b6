package main

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"minimill/internal/domain"
)

var (
	titleCaser = cases.Title(language.English)
	printer    = message.NewPrinter(language.English)
)

func titleCase(value string) string {
	return titleCaser.String(strings.TrimSpace(value))
}

func formatCount(n int) string {
	return printer.Sprintf("%d", n)
}

func formatPercent(p float64) string {
	return printer.Sprintf("%.0f%%", p)
}

func noticeKind(t domain.NoticeType) statusKind {
	switch t {
	case domain.NoticeSuccess:
		return statusOK
	case domain.NoticeWarning:
		return statusWarn
	case domain.NoticeError:
		return statusError
	default:
		return statusInfo
	}
}

// printNotice writes a notice on its own line; nil is a no-op.
func printNotice(w io.Writer, notice *domain.Notice) {
	if notice == nil || notice.Message == "" {
		return
	}
	fmt.Fprintln(w, renderNotice(notice, shouldColorize(w)))
}

// printNavigate tells the user which command continues the workflow.
func printNavigate(w io.Writer, nav *domain.Navigation) {
	if nav == nil {
		return
	}
	hint := map[domain.Stage]string{
		domain.StageUpload:   "minimill files add <path>...",
		domain.StageOptions:  "minimill options show",
		domain.StageProgress: "minimill watch",
		domain.StageResults:  "minimill results",
	}[nav.Stage]
	if hint == "" {
		return
	}
	fmt.Fprintf(w, "Next: %s\n", hint)
}
