package service_test

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"worktally/internal/modules/activity/domain"
	"worktally/internal/modules/activity/service"
	"worktally/internal/platform/datekey"
	apperrors "worktally/internal/platform/errors"
	"worktally/internal/platform/tx"
)

var errBoom = errors.New("boom")

type fakeDates struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeDates(now time.Time) *fakeDates {
	return &fakeDates{now: now.UTC()}
}

func (f *fakeDates) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeDates) Today() string            { return datekey.Format(f.Now()) }
func (f *fakeDates) Location() *time.Location { return time.UTC }

func (f *fakeDates) Set(now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = now.UTC()
}

type fakeNotifier struct {
	messages []string
}

func (f *fakeNotifier) Notify(_ context.Context, title, message string) error {
	f.messages = append(f.messages, title+": "+message)
	return nil
}

type fakeIDs struct{ n int }

func (f *fakeIDs) New() string {
	f.n++
	return "run-" + strconv.Itoa(f.n)
}

// memoryStore is an in-memory stand-in for every storage port.
type memoryStore struct {
	mu         sync.Mutex
	nextID     int64
	heartbeats []domain.Heartbeat
	daily      map[string]domain.DailyEntry
	aggregates map[string]domain.AggregateEntry
	runs       []domain.ImportRun

	failDailyRead  bool
	failDailyWrite bool
	dailyWrites    int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{daily: map[string]domain.DailyEntry{}, aggregates: map[string]domain.AggregateEntry{}}
}

func (m *memoryStore) AppendHeartbeat(_ context.Context, h domain.Heartbeat) (domain.Heartbeat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	h.ID = strconv.FormatInt(m.nextID, 10)
	m.heartbeats = append(m.heartbeats, h)
	return h, nil
}

func (m *memoryStore) ListHeartbeats(_ context.Context, startMs, endMs int64) ([]domain.Heartbeat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Heartbeat{}
	for _, h := range m.heartbeats {
		if h.Timestamp >= startMs && h.Timestamp < endMs {
			out = append(out, h)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

func (m *memoryStore) ReplaceHeartbeats(_ context.Context, startMs, endMs int64, heartbeats []domain.Heartbeat) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.heartbeats[:0]
	for _, h := range m.heartbeats {
		if h.Timestamp < startMs || h.Timestamp >= endMs {
			kept = append(kept, h)
		}
	}
	m.heartbeats = kept
	for _, h := range heartbeats {
		m.nextID++
		h.ID = strconv.FormatInt(m.nextID, 10)
		m.heartbeats = append(m.heartbeats, h)
	}
	return len(heartbeats), nil
}

func (m *memoryStore) LastHeartbeatID(_ context.Context, startMs, endMs int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var last int64
	for _, h := range m.heartbeats {
		if h.Timestamp >= startMs && h.Timestamp < endMs {
			id, _ := strconv.ParseInt(h.ID, 10, 64)
			if id > last {
				last = id
			}
		}
	}
	if last == 0 {
		return "", nil
	}
	return strconv.FormatInt(last, 10), nil
}

func (m *memoryStore) HeartbeatBounds(context.Context) (int64, int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.heartbeats) == 0 {
		return 0, 0, false, nil
	}
	first, last := m.heartbeats[0].Timestamp, m.heartbeats[0].Timestamp
	for _, h := range m.heartbeats {
		first = min(first, h.Timestamp)
		last = max(last, h.Timestamp)
	}
	return first, last, true, nil
}

func (m *memoryStore) GetDaily(_ context.Context, dateKey string) (domain.DailyEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDailyRead {
		return domain.DailyEntry{}, errBoom
	}
	entry, ok := m.daily[dateKey]
	if !ok {
		return domain.DailyEntry{}, apperrors.ErrNotFound
	}
	return entry, nil
}

func (m *memoryStore) PutDaily(_ context.Context, entry domain.DailyEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDailyWrite {
		return errBoom
	}
	m.dailyWrites++
	m.daily[entry.DateKey] = entry
	return nil
}

func (m *memoryStore) SumDailyTotals(_ context.Context, fromKey, toKey string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for key, entry := range m.daily {
		if key >= fromKey && key <= toKey {
			total += entry.TotalTimeMs
		}
	}
	return total, nil
}

func (m *memoryStore) HasSessions(_ context.Context, fromKey, toKey string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, entry := range m.daily {
		if key >= fromKey && key <= toKey && entry.SessionCount > 0 {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryStore) DailyKeyBounds(context.Context) (string, string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.daily) == 0 {
		return "", "", false, nil
	}
	keys := make([]string, 0, len(m.daily))
	for key := range m.daily {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys[0], keys[len(keys)-1], true, nil
}

func (m *memoryStore) GetAggregate(_ context.Context, rangeKey string) (domain.AggregateEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.aggregates[rangeKey]
	if !ok {
		return domain.AggregateEntry{}, apperrors.ErrNotFound
	}
	return entry, nil
}

func (m *memoryStore) PutAggregate(_ context.Context, entry domain.AggregateEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aggregates[entry.RangeKey] = entry
	return nil
}

func (m *memoryStore) AddAggregateDelta(_ context.Context, rangeKey string, delta int64, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.aggregates[rangeKey]
	if !ok {
		return false, nil
	}
	entry.TotalTimeMs += delta
	entry.ComputedAt = at
	m.aggregates[rangeKey] = entry
	return true, nil
}

func (m *memoryStore) DeleteAggregates(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.aggregates)
	m.aggregates = map[string]domain.AggregateEntry{}
	return n, nil
}

func (m *memoryStore) SaveImportRun(_ context.Context, run domain.ImportRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

func (m *memoryStore) Close() error { return nil }

// engine wires every service over one memory store.
type engine struct {
	store       *memoryStore
	dates       *fakeDates
	notifier    *fakeNotifier
	live        *service.LiveStore
	aggregates  *service.AggregateCache
	daily       *service.DailyCache
	stats       *service.StatsService
	tracking    *service.TrackingService
	imports     *service.ImportService
	maintenance *service.MaintenanceService
}

func newEngine(now time.Time) *engine {
	e := &engine{store: newMemoryStore(), dates: newFakeDates(now), notifier: &fakeNotifier{}}
	e.live = service.NewLiveStore(e.dates)
	e.aggregates = service.NewAggregateCache(e.store, e.store, e.dates, nil)
	e.daily = service.NewDailyCache(e.store, e.store, e.aggregates, tx.NoopManager{}, e.dates, e.notifier, nil)
	e.stats = service.NewStatsService(e.live, e.daily, e.aggregates, e.store, e.dates)
	e.tracking = service.NewTrackingService(e.store, e.live, e.daily, e.dates, nil)
	e.imports = service.NewImportService(e.store, e.store, e.daily, tx.NoopManager{}, e.dates, &fakeIDs{}, time.Minute, nil)
	e.maintenance = service.NewMaintenanceService(e.store, e.store, e.daily, e.aggregates, e.dates, nil)
	return e
}

// seed writes heartbeats straight into the log, bypassing the live store.
func (e *engine) seed(heartbeats ...domain.Heartbeat) {
	for _, h := range heartbeats {
		_, _ = e.store.AppendHeartbeat(context.Background(), h)
	}
}

func at(day string, hour, minute int) int64 {
	t, err := time.ParseInLocation(datekey.Layout, day, time.UTC)
	if err != nil {
		panic(err)
	}
	return t.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute).UnixMilli()
}

// workBlock returns one heartbeat per minute for n minutes.
func workBlock(day string, hour, minute, n int, kind domain.ActivityType) []domain.Heartbeat {
	out := make([]domain.Heartbeat, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.Heartbeat{Timestamp: at(day, hour, minute+i), Type: kind, Project: "worktally"})
	}
	return out
}
