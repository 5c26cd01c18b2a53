package service

import (
	"sync"

	"worktally/internal/modules/activity/domain"
	"worktally/internal/platform/clock"
	"worktally/internal/platform/datekey"
)

// LiveStore is the in-memory projection of today's heartbeats. It can be
// discarded and rebuilt with Load at any time.
type LiveStore struct {
	mu      sync.Mutex
	dates   clock.DateProvider
	date    string
	builder *domain.SessionBuilder
	// rolled holds days dropped by a rollover that still need a daily entry.
	rolled []string
}

func NewLiveStore(dates clock.DateProvider) *LiveStore {
	return &LiveStore{dates: dates, date: dates.Today(), builder: domain.NewSessionBuilder()}
}

// Load replaces the state with the given heartbeats of dateKey. Heartbeats
// that fall on another local day are ignored.
func (s *LiveStore) Load(dateKey string, heartbeats []domain.Heartbeat) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dateKey > s.date {
		s.retire()
	}
	s.date = dateKey
	s.builder = domain.NewSessionBuilder()
	for _, h := range heartbeats {
		if s.belongs(h) {
			s.builder.Push(h)
		}
	}
}

// PushHeartbeat reports whether h was applied; heartbeats outside the
// tracked day are dropped.
func (s *LiveStore) PushHeartbeat(h domain.Heartbeat) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rollover()
	if !s.belongs(h) {
		return false
	}
	s.builder.Push(h)
	return true
}

func (s *LiveStore) Summary() domain.DaySessionSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rollover()
	return domain.NewDaySummary(s.date, s.builder.Snapshot())
}

// TrackedDate returns the day the state belongs to without rolling over.
func (s *LiveStore) TrackedDate() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.date
}

// DrainClosed rolls over if the wall clock moved on and returns every day
// the store has let go of since the last call, oldest first.
func (s *LiveStore) DrainClosed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rollover()
	out := s.rolled
	s.rolled = nil
	return out
}

func (s *LiveStore) rollover() {
	today := s.dates.Today()
	if today == s.date {
		return
	}
	s.retire()
	s.date = today
	s.builder = domain.NewSessionBuilder()
}

func (s *LiveStore) retire() {
	if s.builder.Empty() {
		return
	}
	if n := len(s.rolled); n == 0 || s.rolled[n-1] != s.date {
		s.rolled = append(s.rolled, s.date)
	}
}

func (s *LiveStore) belongs(h domain.Heartbeat) bool {
	return datekey.FromMillis(h.Timestamp, s.dates.Location()) == s.date
}
