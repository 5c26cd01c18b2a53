package dto

import "time"

type PushHeartbeatInput struct {
	Timestamp    int64
	Project      string
	ActivityType string
}

type PushHeartbeatOutput struct {
	ID        string
	Timestamp int64
	DateKey   string
}

type DayInput struct {
	DateKey     string
	MinDuration time.Duration
}

type SegmentOutput struct {
	Start int64  `json:"start"`
	End   int64  `json:"end"`
	Type  string `json:"type"`
}

type SessionOutput struct {
	Start          int64           `json:"start"`
	End            int64           `json:"end"`
	DurationMs     int64           `json:"durationMs"`
	HeartbeatCount int             `json:"heartbeatCount"`
	Projects       []string        `json:"projects"`
	CodingMs       int64           `json:"codingMs"`
	PlanningMs     int64           `json:"planningMs"`
	Segments       []SegmentOutput `json:"segments"`
}

type DaySummaryOutput struct {
	DateKey         string          `json:"dateKey"`
	Live            bool            `json:"live"`
	Sessions        []SessionOutput `json:"sessions"`
	TotalCodingMs   int64           `json:"totalCodingMs"`
	TotalPlanningMs int64           `json:"totalPlanningMs"`
	TotalTimeMs     int64           `json:"totalTimeMs"`
}

type StatsOutput struct {
	TodayMs            int64 `json:"todayMs"`
	ThisWeekMs         int64 `json:"thisWeekMs"`
	LastWeekMs         int64 `json:"lastWeekMs"`
	ThisYearDailyAvgMs int64 `json:"thisYearDailyAvgMs"`
	LastYearDailyAvgMs int64 `json:"lastYearDailyAvgMs"`
	HasLastYearData    bool  `json:"hasLastYearData"`
}

type ImportRecord struct {
	Timestamp  int64  `json:"timestamp"`
	Project    string `json:"project,omitempty"`
	Category   string `json:"category,omitempty"`
	DurationMs int64  `json:"durationMs,omitempty"`
}

type ImportInput struct {
	Source  string
	Records []ImportRecord
}

type ImportDayOutput struct {
	DateKey          string
	Replaced         bool
	Reason           string
	ImportedCodingMs int64
	ExistingCodingMs int64
	Heartbeats       int
}

type ImportOutput struct {
	RunID              string
	DaysReplaced       int
	DaysSkipped        int
	HeartbeatsReplaced int
	Days               []ImportDayOutput
}

type RecalculateInput struct {
	Force bool
}

type RecalculateOutput struct {
	DaysRecomputed int
	DaysSkipped    int
}

type FinalizeOutput struct {
	DaysFinalized int
}
