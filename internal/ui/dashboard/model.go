package dashboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	activitydto "worktally/internal/modules/activity/dto"
	"worktally/internal/ui/theme"
)

// Port is the slice of the activity use case the dashboard reads.
type Port interface {
	DaySessions(ctx context.Context, input activitydto.DayInput) (activitydto.DaySummaryOutput, error)
	Stats(ctx context.Context) (activitydto.StatsOutput, error)
}

// RefreshedMsg carries a fresh snapshot of today and the running totals.
type RefreshedMsg struct {
	Today activitydto.DaySummaryOutput
	Stats activitydto.StatsOutput
	Err   error
	At    time.Time
}

type tickMsg time.Time

type Model struct {
	port        Port
	interval    time.Duration
	minDuration time.Duration
	loc         *time.Location

	today   activitydto.DaySummaryOutput
	stats   activitydto.StatsOutput
	err     error
	updated time.Time
	loaded  bool
	width   int
}

func New(port Port, interval, minDuration time.Duration, loc *time.Location) Model {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if loc == nil {
		loc = time.Local
	}
	return Model{port: port, interval: interval, minDuration: minDuration, loc: loc}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.refreshCmd(), m.tickCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tickMsg:
		return m, tea.Batch(m.refreshCmd(), m.tickCmd())
	case RefreshedMsg:
		m.err = msg.Err
		if msg.Err == nil {
			m.today = msg.Today
			m.stats = msg.Stats
			m.updated = msg.At
			m.loaded = true
		}
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, m.refreshCmd()
		}
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	header := theme.Title.Render("worktally")
	if m.today.Live {
		header += " " + theme.Live.Render("LIVE")
	}
	if m.today.DateKey != "" {
		header += " " + theme.Muted.Render(m.today.DateKey)
	}
	b.WriteString(header + "\n\n")

	if !m.loaded {
		if m.err != nil {
			b.WriteString(theme.Hot.Render("Error: "+m.err.Error()) + "\n")
		} else {
			b.WriteString(theme.Muted.Render("loading...") + "\n")
		}
		return theme.App.Render(b.String())
	}

	totals := fmt.Sprintf("%s  %s  %s",
		theme.Coding.Render("coding "+FormatDuration(m.today.TotalCodingMs)),
		theme.Planning.Render("planning "+FormatDuration(m.today.TotalPlanningMs)),
		"total "+FormatDuration(m.today.TotalTimeMs))
	left := theme.PaneActive.Render(theme.Title.Render("Today") + "\n" + totals + "\n\n" + m.renderSessions())
	right := theme.Pane.Render(theme.Title.Render("Totals") + "\n" + m.renderStats())
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right))
	b.WriteString("\n")

	footer := "r refresh · q quit"
	if !m.updated.IsZero() {
		footer = "updated " + m.updated.In(m.loc).Format("15:04:05") + " · " + footer
	}
	if m.err != nil {
		footer = theme.Hot.Render("refresh failed: "+m.err.Error()) + " · " + footer
	}
	b.WriteString(theme.Muted.Render(footer))
	return theme.App.Render(b.String())
}

func (m Model) renderSessions() string {
	if len(m.today.Sessions) == 0 {
		return theme.Muted.Render("no sessions yet")
	}
	lines := make([]string, 0, len(m.today.Sessions))
	for _, s := range m.today.Sessions {
		line := fmt.Sprintf("%s–%s %7s %s",
			FormatClock(s.Start, m.loc), FormatClock(s.End, m.loc),
			FormatDuration(s.DurationMs), m.bar(s))
		if len(s.Projects) > 0 {
			line += " " + theme.Muted.Render(strings.Join(s.Projects, ", "))
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// bar draws a proportional coding/planning split of one session.
func (m Model) bar(s activitydto.SessionOutput) string {
	const width = 20
	if s.DurationMs <= 0 {
		return theme.Muted.Render(strings.Repeat("·", width))
	}
	coding := int(s.CodingMs * width / s.DurationMs)
	planning := width - coding
	return theme.Coding.Render(strings.Repeat("█", coding)) + theme.Planning.Render(strings.Repeat("█", planning))
}

func (m Model) renderStats() string {
	rows := []string{
		"today       " + FormatDuration(m.stats.TodayMs),
		"this week   " + FormatDuration(m.stats.ThisWeekMs),
		"last week   " + FormatDuration(m.stats.LastWeekMs),
		"daily avg   " + FormatDuration(m.stats.ThisYearDailyAvgMs),
	}
	if m.stats.HasLastYearData {
		rows = append(rows, "last year   "+FormatDuration(m.stats.LastYearDailyAvgMs))
	}
	return strings.Join(rows, "\n")
}

func (m Model) refreshCmd() tea.Cmd {
	port, minDuration := m.port, m.minDuration
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		today, err := port.DaySessions(ctx, activitydto.DayInput{MinDuration: minDuration})
		if err != nil {
			return RefreshedMsg{Err: err}
		}
		stats, err := port.Stats(ctx)
		if err != nil {
			return RefreshedMsg{Err: err}
		}
		return RefreshedMsg{Today: today, Stats: stats, At: time.Now()}
	}
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}
