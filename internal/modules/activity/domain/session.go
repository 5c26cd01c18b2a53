package domain

import "time"

type ActivitySegment struct {
	Start int64        `json:"start"`
	End   int64        `json:"end"`
	Type  ActivityType `json:"type"`
}

func (s ActivitySegment) DurationMs() int64 {
	return s.End - s.Start
}

type Session struct {
	Start          int64             `json:"start"`
	End            int64             `json:"end"`
	DurationMs     int64             `json:"durationMs"`
	HeartbeatCount int               `json:"heartbeatCount"`
	Projects       []string          `json:"projects"`
	CodingMs       int64             `json:"codingMs"`
	PlanningMs     int64             `json:"planningMs"`
	Segments       []ActivitySegment `json:"segments"`
}

type DaySessionSummary struct {
	DateKey         string
	Sessions        []Session
	TotalCodingMs   int64
	TotalPlanningMs int64
	TotalTimeMs     int64
}

func NewDaySummary(dateKey string, sessions []Session) DaySessionSummary {
	summary := DaySessionSummary{DateKey: dateKey, Sessions: sessions}
	if summary.Sessions == nil {
		summary.Sessions = []Session{}
	}
	for _, s := range sessions {
		summary.TotalCodingMs += s.CodingMs
		summary.TotalPlanningMs += s.PlanningMs
		summary.TotalTimeMs += s.DurationMs
	}
	return summary
}

// FilterSessions drops sessions shorter than min. Display only; stored
// summaries always keep every session.
func FilterSessions(sessions []Session, min time.Duration) []Session {
	minMs := min.Milliseconds()
	out := make([]Session, 0, len(sessions))
	for _, s := range sessions {
		if s.DurationMs >= minMs {
			out = append(out, s)
		}
	}
	return out
}
