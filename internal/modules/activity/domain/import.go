package domain

import (
	"strings"
	"time"
)

const (
	SkipReasonOpenDay    = "open day"
	SkipReasonNotGreater = "not greater"
)

var planningCategories = map[string]struct{}{
	"planning":       {},
	"researching":    {},
	"meeting":        {},
	"designing":      {},
	"learning":       {},
	"writing docs":   {},
	"code reviewing": {},
}

// CategoryType maps an externally reported activity category onto the
// coding/planning classification. Unknown categories count as coding.
func CategoryType(category string) ActivityType {
	if _, ok := planningCategories[strings.ToLower(strings.TrimSpace(category))]; ok {
		return ActivityPlanning
	}
	return ActivityCoding
}

type ImportRecord struct {
	Timestamp  int64  `json:"timestamp"`
	Project    string `json:"project,omitempty"`
	Category   string `json:"category,omitempty"`
	DurationMs int64  `json:"durationMs,omitempty"`
}

type ImportDayResult struct {
	DateKey          string
	Replaced         bool
	Reason           string
	ImportedCodingMs int64
	ExistingCodingMs int64
	Heartbeats       int
}

type ImportReport struct {
	RunID              string
	Source             string
	DaysReplaced       int
	DaysSkipped        int
	HeartbeatsReplaced int
	Days               []ImportDayResult
}

type ImportRun struct {
	ID                 string
	Source             string
	DaysReplaced       int
	DaysSkipped        int
	HeartbeatsReplaced int
	StartedAt          time.Time
	FinishedAt         time.Time
}
