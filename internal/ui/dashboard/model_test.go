package dashboard_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	activitydto "worktally/internal/modules/activity/dto"
	"worktally/internal/ui/dashboard"
)

type fakePort struct {
	err error
}

func (f fakePort) DaySessions(context.Context, activitydto.DayInput) (activitydto.DaySummaryOutput, error) {
	if f.err != nil {
		return activitydto.DaySummaryOutput{}, f.err
	}
	return activitydto.DaySummaryOutput{
		DateKey: "2024-03-13",
		Live:    true,
		Sessions: []activitydto.SessionOutput{{
			Start: 1710320400000, End: 1710322200000, DurationMs: 1_800_000,
			CodingMs: 1_200_000, PlanningMs: 600_000, Projects: []string{"api"},
		}},
		TotalCodingMs:   1_200_000,
		TotalPlanningMs: 600_000,
		TotalTimeMs:     1_800_000,
	}, nil
}

func (f fakePort) Stats(context.Context) (activitydto.StatsOutput, error) {
	return activitydto.StatsOutput{TodayMs: 1_800_000, ThisWeekMs: 7_200_000}, nil
}

func TestDashboardRendersRefresh(t *testing.T) {
	t.Parallel()
	m := dashboard.New(fakePort{}, time.Second, 0, time.UTC)
	if !strings.Contains(m.View(), "loading") {
		t.Fatalf("expected loading state")
	}

	cmd := m.Init()
	if cmd == nil {
		t.Fatalf("expected init command")
	}
	msg := runRefresh(t, fakePort{})
	updated, _ := m.Update(msg)
	view := updated.View()
	for _, want := range []string{"2024-03-13", "LIVE", "30m", "2h 00m", "api", "09:00"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected %q in view:\n%s", want, view)
		}
	}
}

func TestDashboardKeepsLastSnapshotOnError(t *testing.T) {
	t.Parallel()
	m := dashboard.New(fakePort{}, time.Second, 0, time.UTC)
	next, _ := m.Update(runRefresh(t, fakePort{}))
	next, _ = next.Update(dashboard.RefreshedMsg{Err: errors.New("database is locked")})
	view := next.View()
	if !strings.Contains(view, "database is locked") || !strings.Contains(view, "api") {
		t.Fatalf("expected error alongside previous snapshot:\n%s", view)
	}

	_, cmd := next.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected quit message")
	}
}

func runRefresh(t *testing.T, port dashboard.Port) dashboard.RefreshedMsg {
	t.Helper()
	today, err := port.DaySessions(context.Background(), activitydto.DayInput{})
	if err != nil {
		t.Fatalf("day sessions: %v", err)
	}
	stats, _ := port.Stats(context.Background())
	return dashboard.RefreshedMsg{Today: today, Stats: stats, At: time.Now()}
}

func TestFormatDuration(t *testing.T) {
	t.Parallel()
	cases := map[int64]string{0: "0m", 40_000: "40s", 720_000: "12m", 3_900_000: "1h 05m"}
	for ms, want := range cases {
		if got := dashboard.FormatDuration(ms); got != want {
			t.Fatalf("FormatDuration(%d) = %q, want %q", ms, got, want)
		}
	}
}
