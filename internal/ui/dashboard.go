package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fluxfuzzer/fluxscan/pkg/types"
)

// StatusMsg carries a scan status notification
type StatusMsg types.StatusUpdate

// IssueMsg carries a newly reported issue
type IssueMsg types.Issue

// DoneMsg tells the dashboard that no more scans will be submitted
type DoneMsg struct{}

// TickMsg is sent on each animation tick
type TickMsg time.Time

// Dashboard is the bubbletea model for `scan --tui`
type Dashboard struct {
	width  int
	height int

	queue     *QueueView
	issues    []types.Issue
	maxIssues int
	total     int // issues received, including trimmed ones

	targetURL string
	started   time.Time
	done      bool

	spinner  Spinner
	progress *ProgressBar
}

// NewDashboard creates a new dashboard instance
func NewDashboard(targetURL string) *Dashboard {
	d := &Dashboard{
		width:     80,
		height:    24,
		queue:     NewQueueView(),
		maxIssues: 10,
		targetURL: targetURL,
		started:   time.Now(),
		progress:  NewProgressBar(70),
	}
	d.spinner.SetRunning(true)
	return d
}

// Queue returns the queue display model
func (d *Dashboard) Queue() *QueueView {
	return d.queue
}

// Issues returns the most recent issues, newest last
func (d *Dashboard) Issues() []types.Issue {
	return d.issues
}

// Init initializes the model
func (d *Dashboard) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// Update handles messages
func (d *Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return d, tea.Quit
		}

	case tea.WindowSizeMsg:
		d.width = msg.Width
		d.height = msg.Height
		d.progress.SetWidth(d.width - 4)

	case StatusMsg:
		d.queue.Apply(types.StatusUpdate(msg))
		d.updateProgress()

	case IssueMsg:
		d.total++
		d.issues = append(d.issues, types.Issue(msg))
		if len(d.issues) > d.maxIssues {
			d.issues = d.issues[len(d.issues)-d.maxIssues:]
		}

	case DoneMsg:
		d.done = true
		d.spinner.SetRunning(false)

	case TickMsg:
		d.spinner.Tick()
		return d, tickCmd()
	}

	return d, nil
}

func (d *Dashboard) updateProgress() {
	entries := d.queue.Entries()
	if len(entries) == 0 {
		d.progress.SetProgress(0)
		return
	}
	counts := d.queue.Counts()
	finished := counts[types.StatusCompleted] + counts[types.StatusError]
	d.progress.SetProgress(float64(finished) / float64(len(entries)))
}

// View renders the dashboard
func (d *Dashboard) View() string {
	var b strings.Builder
	b.WriteString(d.renderHeader())
	b.WriteString("\n")
	b.WriteString(d.renderQueue())
	b.WriteString("\n")
	b.WriteString(d.renderIssues())
	b.WriteString("\n")
	b.WriteString(d.progress.Render())
	b.WriteString("\n")
	b.WriteString(d.renderFooter())
	return b.String()
}

func (d *Dashboard) renderHeader() string {
	title := TitleStyle.Render("FluxScan")
	state := d.spinner.Render() + " scanning"
	if d.done {
		state = d.spinner.Render() + " done"
	}
	elapsed := time.Since(d.started).Round(time.Second)
	return lipgloss.JoinHorizontal(lipgloss.Center,
		title, "  ", state, "  ",
		RenderLabelValue("Target", d.targetURL), "  ",
		RenderLabelValue("Elapsed", elapsed.String()),
	)
}

func (d *Dashboard) renderQueue() string {
	var b strings.Builder
	b.WriteString(HeaderStyle.Render("Scan queue"))
	b.WriteString("\n")

	counts := d.queue.Counts()
	b.WriteString(fmt.Sprintf("%s  %s  %s  %s\n",
		RenderLabelValue("Queued", fmt.Sprint(counts[types.StatusQueued])),
		RenderLabelValue("Running", fmt.Sprint(counts[types.StatusRunning])),
		RenderLabelValue("Completed", fmt.Sprint(counts[types.StatusCompleted])),
		RenderLabelValue("Error", fmt.Sprint(counts[types.StatusError])),
	))

	urlWidth := max(d.width-60, 20)
	for _, e := range d.queue.Entries() {
		b.WriteString(fmt.Sprintf("%-42s %-*s %s\n",
			e.ScanID, urlWidth, truncate(e.BaseRequestURL, urlWidth), RenderStatus(e.Status)))
	}
	return PanelStyle.Width(max(d.width-2, 40)).Render(strings.TrimRight(b.String(), "\n"))
}

func (d *Dashboard) renderIssues() string {
	var b strings.Builder
	b.WriteString(HeaderStyle.Render(fmt.Sprintf("Issues (%d)", d.total)))
	if len(d.issues) == 0 {
		b.WriteString("\n")
		b.WriteString(HelpStyle.Render("none yet"))
	}
	for i := len(d.issues) - 1; i >= 0; i-- {
		issue := d.issues[i]
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("%-8s %s", RenderSeverity(issue.Severity), truncate(issue.Title, max(d.width-16, 30))))
	}
	return IssuePanelStyle.Width(max(d.width-2, 40)).Render(b.String())
}

func (d *Dashboard) renderFooter() string {
	return RenderHelp("q", "quit")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

// Run starts the TUI application and blocks until it exits
func Run(d *Dashboard) error {
	_, err := NewProgram(d).Run()
	return err
}

// NewProgram returns a tea.Program for external control
func NewProgram(d *Dashboard) *tea.Program {
	return tea.NewProgram(d, tea.WithAltScreen())
}
