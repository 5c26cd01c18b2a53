package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"worktally/internal/modules/activity/domain"
	"worktally/internal/modules/activity/service"
	apperrors "worktally/internal/platform/errors"
)

func TestTrackingPersistsBeforeLive(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEngine(wednesday)

	if _, err := e.tracking.Push(ctx, domain.Heartbeat{Timestamp: at("2024-03-13", 9, 0), Type: "idle"}); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	stored, err := e.tracking.Push(ctx, domain.Heartbeat{Timestamp: at("2024-03-13", 9, 0), Type: domain.ActivityCoding, Project: "api"})
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if stored.ID == "" || len(e.store.heartbeats) != 1 {
		t.Fatalf("expected heartbeat in the log, got %+v", e.store.heartbeats)
	}
	if got := e.live.Summary(); len(got.Sessions) != 1 || got.Sessions[0].Projects[0] != "api" {
		t.Fatalf("expected live session, got %+v", got)
	}
}

func TestTrackingFinalizesPreviousDayOnRollover(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEngine(time.Date(2024, 3, 13, 23, 30, 0, 0, time.UTC))

	for _, h := range workBlock("2024-03-13", 23, 30, 25, domain.ActivityCoding) {
		if _, err := e.tracking.Push(ctx, h); err != nil {
			t.Fatalf("push: %v", err)
		}
	}
	e.dates.Set(time.Date(2024, 3, 14, 0, 10, 0, 0, time.UTC))
	if _, err := e.tracking.Push(ctx, domain.Heartbeat{Timestamp: at("2024-03-14", 0, 10), Type: domain.ActivityCoding}); err != nil {
		t.Fatalf("push after midnight: %v", err)
	}

	entry, ok := e.store.daily["2024-03-13"]
	if !ok || entry.TotalTimeMs != (24*time.Minute).Milliseconds() {
		t.Fatalf("expected finalized previous day, got %+v", entry)
	}
	today := e.live.Summary()
	if today.DateKey != "2024-03-14" || len(today.Sessions) != 1 || today.Sessions[0].HeartbeatCount != 1 {
		t.Fatalf("unexpected live state after rollover %+v", today)
	}
}

func TestTrackingFinalizesDayRolledByRead(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEngine(time.Date(2024, 3, 13, 23, 30, 0, 0, time.UTC))

	for _, h := range workBlock("2024-03-13", 23, 30, 25, domain.ActivityCoding) {
		if _, err := e.tracking.Push(ctx, h); err != nil {
			t.Fatalf("push: %v", err)
		}
	}
	e.dates.Set(time.Date(2024, 3, 14, 0, 10, 0, 0, time.UTC))

	// A query after midnight rolls the live store over before any push.
	if today := e.live.Summary(); today.DateKey != "2024-03-14" {
		t.Fatalf("expected rollover, got %s", today.DateKey)
	}
	e.tracking.CloseRolledDays(ctx)

	entry, ok := e.store.daily["2024-03-13"]
	if !ok || entry.TotalTimeMs != (24*time.Minute).Milliseconds() {
		t.Fatalf("expected the rolled day finalized, got %+v", entry)
	}
}

func TestTrackingLoadToday(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEngine(wednesday)
	e.seed(workBlock("2024-03-12", 9, 0, 5, domain.ActivityCoding)...)
	e.seed(workBlock("2024-03-13", 9, 0, 6, domain.ActivityCoding)...)

	fresh := service.NewTrackingService(e.store, service.NewLiveStore(e.dates), e.daily, e.dates, nil)
	if err := fresh.LoadToday(ctx); err != nil {
		t.Fatalf("load today: %v", err)
	}
	n, err := fresh.FinalizePending(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected one finalized day, got %d (%v)", n, err)
	}
	again, err := fresh.FinalizePending(ctx)
	if err != nil || again != 0 {
		t.Fatalf("expected nothing left, got %d (%v)", again, err)
	}
}
