package out_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	activityoutadapter "worktally/internal/modules/activity/adapter/out"
	"worktally/internal/modules/activity/domain"
	apperrors "worktally/internal/platform/errors"
)

func newSQLiteStore(t *testing.T) *activityoutadapter.SQLiteStore {
	t.Helper()
	store, err := activityoutadapter.NewSQLiteStore(filepath.Join(t.TempDir(), "data", "worktally.db"))
	if err != nil {
		t.Fatalf("new sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteHeartbeatLog(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newSQLiteStore(t)

	if _, _, ok, err := store.HeartbeatBounds(ctx); err != nil || ok {
		t.Fatalf("expected empty bounds, got ok=%v err=%v", ok, err)
	}
	for _, ts := range []int64{3000, 1000, 2000} {
		if _, err := store.AppendHeartbeat(ctx, domain.Heartbeat{Timestamp: ts, Project: "api", Type: domain.ActivityCoding}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	listed, err := store.ListHeartbeats(ctx, 1000, 3000)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 2 || listed[0].Timestamp != 1000 || listed[1].Timestamp != 2000 {
		t.Fatalf("expected ordered half-open range, got %+v", listed)
	}
	if listed[0].ID == "" || listed[0].Project != "api" || listed[0].Type != domain.ActivityCoding {
		t.Fatalf("unexpected heartbeat %+v", listed[0])
	}
	last, err := store.LastHeartbeatID(ctx, 0, 10_000)
	if err != nil {
		t.Fatalf("last id: %v", err)
	}
	if last != "3" {
		t.Fatalf("expected last id 3, got %q", last)
	}
	first, lastTs, ok, err := store.HeartbeatBounds(ctx)
	if err != nil || !ok || first != 1000 || lastTs != 3000 {
		t.Fatalf("unexpected bounds %d..%d ok=%v err=%v", first, lastTs, ok, err)
	}

	n, err := store.ReplaceHeartbeats(ctx, 0, 2500, []domain.Heartbeat{
		{Timestamp: 1500, Type: domain.ActivityPlanning},
	})
	if err != nil || n != 1 {
		t.Fatalf("replace: n=%d err=%v", n, err)
	}
	all, err := store.ListHeartbeats(ctx, 0, 10_000)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 || all[0].Timestamp != 1500 || all[0].Type != domain.ActivityPlanning || all[1].Timestamp != 3000 {
		t.Fatalf("unexpected heartbeats after replace: %+v", all)
	}

	if _, err := store.ReplaceHeartbeats(ctx, 0, 2500, []domain.Heartbeat{{Timestamp: 9000, Type: domain.ActivityCoding}}); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("expected out-of-range replacement to fail, got %v", err)
	}
	unchanged, err := store.ListHeartbeats(ctx, 0, 10_000)
	if err != nil {
		t.Fatalf("list after failed replace: %v", err)
	}
	if len(unchanged) != 2 {
		t.Fatalf("failed replacement must roll back, got %+v", unchanged)
	}
}

func TestSQLiteDailyCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newSQLiteStore(t)

	if _, err := store.GetDaily(ctx, "2024-03-04"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	sessions := []domain.Session{{
		Start: 1000, End: 61_000, DurationMs: 60_000, HeartbeatCount: 2, Projects: []string{"api"},
		CodingMs: 60_000, Segments: []domain.ActivitySegment{{Start: 1000, End: 61_000, Type: domain.ActivityCoding}},
	}}
	computedAt := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	entry := domain.NewDailyEntry(domain.NewDaySummary("2024-03-04", sessions), "7", computedAt)
	if err := store.PutDaily(ctx, entry); err != nil {
		t.Fatalf("put daily: %v", err)
	}
	if err := store.PutDaily(ctx, domain.NewDailyEntry(domain.NewDaySummary("2024-03-06", nil), "", computedAt)); err != nil {
		t.Fatalf("put empty daily: %v", err)
	}

	got, err := store.GetDaily(ctx, "2024-03-04")
	if err != nil {
		t.Fatalf("get daily: %v", err)
	}
	if got.SessionCount != 1 || got.TotalTimeMs != 60_000 || got.LastHeartbeatID != "7" || !got.ComputedAt.Equal(computedAt) {
		t.Fatalf("unexpected entry %+v", got)
	}
	if len(got.Sessions) != 1 || got.Sessions[0].Segments[0].Type != domain.ActivityCoding {
		t.Fatalf("unexpected sessions %+v", got.Sessions)
	}

	total, err := store.SumDailyTotals(ctx, "2024-03-01", "2024-03-31")
	if err != nil || total != 60_000 {
		t.Fatalf("expected total 60000, got %d (%v)", total, err)
	}
	has, err := store.HasSessions(ctx, "2024-03-05", "2024-03-31")
	if err != nil || has {
		t.Fatalf("expected empty day not to count as data, got %v (%v)", has, err)
	}
	has, err = store.HasSessions(ctx, "2024-01-01", "2024-12-31")
	if err != nil || !has {
		t.Fatalf("expected data in 2024, got %v (%v)", has, err)
	}
	earliest, latest, ok, err := store.DailyKeyBounds(ctx)
	if err != nil || !ok || earliest != "2024-03-04" || latest != "2024-03-06" {
		t.Fatalf("unexpected key bounds %s..%s ok=%v err=%v", earliest, latest, ok, err)
	}
}

func TestSQLiteAggregateCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newSQLiteStore(t)
	at := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	applied, err := store.AddAggregateDelta(ctx, "week:2024-03-04", 100, at)
	if err != nil || applied {
		t.Fatalf("expected delta on missing entry to be rejected, got %v (%v)", applied, err)
	}
	if err := store.PutAggregate(ctx, domain.AggregateEntry{RangeKey: "week:2024-03-04", TotalTimeMs: 500, ComputedAt: at}); err != nil {
		t.Fatalf("put aggregate: %v", err)
	}
	applied, err = store.AddAggregateDelta(ctx, "week:2024-03-04", -200, at)
	if err != nil || !applied {
		t.Fatalf("expected delta to apply, got %v (%v)", applied, err)
	}
	entry, err := store.GetAggregate(ctx, "week:2024-03-04")
	if err != nil || entry.TotalTimeMs != 300 {
		t.Fatalf("expected 300, got %+v (%v)", entry, err)
	}
	n, err := store.DeleteAggregates(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected one deleted entry, got %d (%v)", n, err)
	}
	if _, err := store.GetAggregate(ctx, "week:2024-03-04"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestSQLiteImportRuns(t *testing.T) {
	t.Parallel()
	store := newSQLiteStore(t)
	run := domain.ImportRun{ID: "run-1", Source: "file", DaysReplaced: 1, StartedAt: time.Now(), FinishedAt: time.Now()}
	if err := store.SaveImportRun(context.Background(), run); err != nil {
		t.Fatalf("save run: %v", err)
	}
	if err := store.SaveImportRun(context.Background(), run); err == nil {
		t.Fatalf("expected duplicate run id to fail")
	}
}
