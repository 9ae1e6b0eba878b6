package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	progressbar "github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"minimill/internal/apiclient"
	"minimill/internal/domain"
	"minimill/internal/progress"
)

const (
	watchPollInterval  = 250 * time.Millisecond
	cancelConfirmation = "Cancel processing? This cannot be undone. y/n"
)

var (
	watchTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	watchMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	watchErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	watchOKStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	watchWarnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	watchPanelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the running job until it finishes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				return runWatch(cmd, client, plain)
			})
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "Print progress lines instead of the interactive view")
	return cmd
}

func runWatch(cmd *cobra.Command, client *apiclient.Client, plain bool) error {
	out := cmd.OutOrStdout()
	file, isFile := out.(*os.File)
	if plain || !isFile || !isTerminal(file) {
		return watchPlain(cmd.Context(), out, client, watchPollInterval)
	}

	m := newWatchModel(cmd.Context(), client)
	final, err := tea.NewProgram(m, tea.WithContext(cmd.Context()), tea.WithOutput(out)).Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	result, ok := final.(watchModel)
	if !ok {
		return nil
	}
	if result.err != nil {
		return result.err
	}
	printNotice(out, result.notice)
	printNavigate(out, result.navigate)
	if result.snap.ChoiceRequired && result.navigate == nil {
		fmt.Fprintln(out, "Next: minimill choose retry|restart")
	}
	return nil
}

// watchPlain follows the event stream and prints one line per milestone.
func watchPlain(ctx context.Context, out io.Writer, client *apiclient.Client, interval time.Duration) error {
	snap, resp, err := client.Progress(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Job %s: %s %d%%\n", snap.Job.ID, titleCase(string(snap.State)), snap.Percent)
	if snap.Navigate != nil || (snap.State.Terminal() && !snap.ChoiceRequired) {
		printNotice(out, snap.Notice)
		printNavigate(out, firstNavigation(snap.Navigate, resp.Navigate))
		return nil
	}
	if snap.ChoiceRequired {
		printNotice(out, snap.Notice)
		fmt.Fprintln(out, "Next: minimill choose retry|restart")
		return nil
	}

	since := snap.Seq
	lastDecile := snap.Percent / 10
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		page, err := client.Events(ctx, since)
		if err != nil {
			return err
		}
		since = page.Next
		failed, noticeShown := false, false
		for _, ev := range page.Events {
			switch ev.Type {
			case progress.EventProgress:
				if decile := int(ev.Progress) / 10; decile > lastDecile && ev.State == progress.StateProcessing {
					lastDecile = decile
					fmt.Fprintf(out, "  %s\n", formatPercent(ev.Progress))
				}
			case progress.EventStatus:
				if ev.State.Terminal() {
					fmt.Fprintf(out, "Job %s: %s after %s\n", ev.JobID, titleCase(string(ev.State)), ev.Elapsed)
					failed = ev.State == progress.StateFailed
					noticeShown = false
				}
			case progress.EventNotice:
				printNotice(out, ev.Notice)
				noticeShown = true
			case progress.EventNavigate:
				printNavigate(out, ev.Navigate)
				return nil
			}
		}
		if failed {
			// The failure notice may not have made it into this page.
			if !noticeShown {
				if snap, _, err := client.Progress(ctx); err == nil {
					printNotice(out, snap.Notice)
				}
			}
			fmt.Fprintln(out, "Next: minimill choose retry|restart")
			return nil
		}
	}
}

func firstNavigation(navs ...*domain.Navigation) *domain.Navigation {
	for _, nav := range navs {
		if nav != nil {
			return nav
		}
	}
	return nil
}

type snapshotMsg struct {
	snap progress.Snapshot
	err  error
}

type pollMsg struct{}

type actionMsg struct {
	notice   *domain.Notice
	navigate *domain.Navigation
	err      error
}

type watchModel struct {
	ctx      context.Context
	client   *apiclient.Client
	bar      progressbar.Model
	snap     progress.Snapshot
	loaded   bool
	notice   *domain.Notice
	navigate *domain.Navigation
	status   string
	err      error
	width    int

	// confirmCancel is set while the cancel prompt waits for y/n.
	confirmCancel bool
}

func newWatchModel(ctx context.Context, client *apiclient.Client) watchModel {
	bar := progressbar.New(progressbar.WithDefaultGradient())
	bar.Width = 48
	return watchModel{ctx: ctx, client: client, bar: bar}
}

func (m watchModel) Init() tea.Cmd {
	return fetchSnapshotCmd(m.ctx, m.client)
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(10, min(msg.Width-8, 64))
		return m, nil
	case snapshotMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		m.snap = msg.snap
		m.loaded = true
		if m.confirmCancel && msg.snap.State != progress.StateProcessing {
			m.confirmCancel = false
			m.status = ""
		}
		if msg.snap.Notice != nil {
			m.notice = msg.snap.Notice
		}
		if msg.snap.Navigate != nil {
			m.navigate = msg.snap.Navigate
			return m, tea.Quit
		}
		return m, tea.Tick(watchPollInterval, func(time.Time) tea.Msg { return pollMsg{} })
	case pollMsg:
		return m, fetchSnapshotCmd(m.ctx, m.client)
	case actionMsg:
		if msg.err != nil {
			m.status = msg.err.Error()
			return m, nil
		}
		if msg.notice != nil {
			m.notice = msg.notice
		}
		if msg.navigate != nil {
			m.navigate = msg.navigate
			return m, tea.Quit
		}
		return m, nil
	case tea.KeyMsg:
		if m.confirmCancel {
			return m.answerCancel(msg)
		}
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "c":
			if m.snap.State == progress.StateProcessing {
				m.confirmCancel = true
				m.status = cancelConfirmation
			}
		case "r":
			if m.snap.ChoiceRequired {
				return m, chooseCmd(m.ctx, m.client, "retry")
			}
		case "s":
			if m.snap.ChoiceRequired {
				return m, chooseCmd(m.ctx, m.client, "restart")
			}
		}
	}
	return m, nil
}

func (m watchModel) answerCancel(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "y", "Y":
		m.confirmCancel = false
		if m.snap.State != progress.StateProcessing {
			m.status = ""
			return m, nil
		}
		m.status = "Cancelling..."
		return m, cancelCmd(m.ctx, m.client)
	default:
		m.confirmCancel = false
		m.status = ""
		return m, nil
	}
}

func (m watchModel) View() string {
	if !m.loaded {
		return watchMutedStyle.Render("Connecting to minimill...") + "\n"
	}
	snap := m.snap

	header := watchTitleStyle.Render("minimill") + "  " + watchMutedStyle.Render("job "+snap.Job.ID)
	if primary, ok := snap.Job.PrimaryFile(); ok {
		header += "  " + primary.Name
	}

	var body []string
	body = append(body, stateStyle(snap.State).Render(titleCase(string(snap.State))))
	body = append(body, m.bar.ViewAs(snap.Progress/100))
	body = append(body, watchMutedStyle.Render(fmt.Sprintf("Elapsed %s   Speed %s   %d%%", snap.Elapsed, snap.Speed, snap.Percent)))
	body = append(body, "")
	for _, step := range snap.Steps {
		body = append(body, renderStep(step))
	}
	if snap.Error != "" {
		body = append(body, "", watchErrorStyle.Render(snap.Error))
	}

	var footer []string
	if m.notice != nil {
		footer = append(footer, noticeStyle(m.notice.Type).Render(m.notice.Message))
	}
	if m.status != "" {
		footer = append(footer, watchMutedStyle.Render(m.status))
	}
	switch {
	case m.confirmCancel:
		footer = append(footer, watchMutedStyle.Render("y cancel the job  any other key keeps processing"))
	case snap.ChoiceRequired:
		footer = append(footer, watchMutedStyle.Render("r retry with same options  s start over  q quit"))
	case snap.State == progress.StateProcessing:
		footer = append(footer, watchMutedStyle.Render("c cancel  q quit"))
	default:
		footer = append(footer, watchMutedStyle.Render("q quit"))
	}

	panel := watchPanelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, body...))
	return lipgloss.JoinVertical(lipgloss.Left, header, panel, strings.Join(footer, "\n")) + "\n"
}

func renderStep(step progress.Step) string {
	switch step.Status {
	case progress.StepCompleted:
		return watchOKStyle.Render("✓ ") + step.Label
	case progress.StepActive:
		return watchWarnStyle.Render("› ") + step.Label
	default:
		return watchMutedStyle.Render("· " + step.Label)
	}
}

func stateStyle(state progress.State) lipgloss.Style {
	switch state {
	case progress.StateCompleted:
		return watchOKStyle
	case progress.StateFailed:
		return watchErrorStyle
	case progress.StateCancelled:
		return watchWarnStyle
	default:
		return watchTitleStyle
	}
}

func noticeStyle(t domain.NoticeType) lipgloss.Style {
	switch t {
	case domain.NoticeSuccess:
		return watchOKStyle
	case domain.NoticeError:
		return watchErrorStyle
	case domain.NoticeWarning:
		return watchWarnStyle
	default:
		return watchMutedStyle
	}
}

func fetchSnapshotCmd(ctx context.Context, client *apiclient.Client) tea.Cmd {
	return func() tea.Msg {
		snap, _, err := client.Progress(ctx)
		return snapshotMsg{snap: snap, err: err}
	}
}

func cancelCmd(ctx context.Context, client *apiclient.Client) tea.Cmd {
	return func() tea.Msg {
		snap, resp, err := client.Cancel(ctx)
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{
			notice:   firstNotice(resp.Notice, snap.Notice),
			navigate: firstNavigation(resp.Navigate, snap.Navigate),
		}
	}
}

func chooseCmd(ctx context.Context, client *apiclient.Client, choice string) tea.Cmd {
	return func() tea.Msg {
		resp, err := client.Choose(ctx, choice)
		return actionMsg{notice: resp.Notice, navigate: resp.Navigate, err: err}
	}
}

func firstNotice(notices ...*domain.Notice) *domain.Notice {
	for _, n := range notices {
		if n != nil {
			return n
		}
	}
	return nil
}
