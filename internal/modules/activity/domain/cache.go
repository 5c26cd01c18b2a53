package domain

import "time"

// DailyEntry is the persisted summary of a closed day.
type DailyEntry struct {
	DateKey         string
	SessionCount    int
	TotalTimeMs     int64
	Sessions        []Session
	LastHeartbeatID string
	ComputedAt      time.Time
}

func NewDailyEntry(summary DaySessionSummary, lastHeartbeatID string, computedAt time.Time) DailyEntry {
	return DailyEntry{
		DateKey:         summary.DateKey,
		SessionCount:    len(summary.Sessions),
		TotalTimeMs:     summary.TotalTimeMs,
		Sessions:        summary.Sessions,
		LastHeartbeatID: lastHeartbeatID,
		ComputedAt:      computedAt,
	}
}

func (e DailyEntry) Summary() DaySessionSummary {
	return NewDaySummary(e.DateKey, e.Sessions)
}

// AggregateEntry holds the total of every daily entry inside a week or year.
type AggregateEntry struct {
	RangeKey    string
	TotalTimeMs int64
	ComputedAt  time.Time
}

type StatsSummary struct {
	TodayMs            int64
	ThisWeekMs         int64
	LastWeekMs         int64
	ThisYearDailyAvgMs int64
	LastYearDailyAvgMs int64
	HasLastYearData    bool
}

type RecalculateReport struct {
	DaysRecomputed int
	DaysSkipped    int
}
